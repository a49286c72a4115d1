package models

import (
	"time"

	"github.com/google/uuid"
)

// Workflow defines the phase universe for its cases.
type Workflow struct {
	ID           uuid.UUID            `json:"id" db:"id"`
	Name         string                `json:"name" db:"name"`
	Phases       []string              `json:"phases" db:"phases"`
	InitialPhase string                `json:"initial_phase" db:"initial_phase"`
	WebhookURL   *string               `json:"webhook_url,omitempty" db:"webhook_url"`
	Description  *string               `json:"description,omitempty" db:"description"`
	Active       bool                  `json:"active" db:"active"`
	Automations  *WorkflowAutomations  `json:"automations,omitempty" db:"automations"`
	SlaConfig    *WorkflowSlaConfig    `json:"sla_config,omitempty" db:"sla_config"`
	CreatedAt    time.Time             `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time             `json:"updated_at" db:"updated_at"`
}

// HasPhase reports whether phaseName is one of w's declared phases.
func (w Workflow) HasPhase(phaseName string) bool {
	for _, p := range w.Phases {
		if p == phaseName {
			return true
		}
	}
	return false
}

// Validate enforces the Workflow invariants from spec.md §3: the initial
// phase must be declared, and the phase list must be non-empty.
func (w Workflow) Validate() error {
	if len(w.Phases) == 0 {
		return ErrEmptyPhases
	}
	if !w.HasPhase(w.InitialPhase) {
		return ErrInitialPhaseNotInPhases
	}
	return nil
}

// CreateWorkflowRequest is the inbound payload for POST /workflows.
type CreateWorkflowRequest struct {
	Name         string               `json:"name" binding:"required"`
	Phases       []string             `json:"phases" binding:"required"`
	InitialPhase string               `json:"initial_phase" binding:"required"`
	WebhookURL   *string              `json:"webhook_url"`
	Description  *string              `json:"description"`
	Automations  *WorkflowAutomations `json:"automations"`
	SlaConfig    *WorkflowSlaConfig   `json:"sla_config"`
	Active       *bool                `json:"active"`
}

// UpdateWorkflowRequest is the inbound payload for PUT /workflows/{id}.
// Every field is optional; present fields replace the stored value.
type UpdateWorkflowRequest struct {
	Name         *string              `json:"name"`
	Phases       []string             `json:"phases"`
	InitialPhase *string              `json:"initial_phase"`
	WebhookURL   *string              `json:"webhook_url"`
	Description  *string              `json:"description"`
	Automations  *WorkflowAutomations `json:"automations"`
	SlaConfig    *WorkflowSlaConfig   `json:"sla_config"`
	Active       *bool                `json:"active"`
}

// NewWorkflow constructs a Workflow from a create request, validating the
// initial-phase invariant.
func NewWorkflow(req CreateWorkflowRequest) (Workflow, error) {
	active := true
	if req.Active != nil {
		active = *req.Active
	}
	now := time.Now().UTC()
	w := Workflow{
		ID:           uuid.New(),
		Name:         req.Name,
		Phases:       req.Phases,
		InitialPhase: req.InitialPhase,
		WebhookURL:   req.WebhookURL,
		Description:  req.Description,
		Automations:  req.Automations,
		SlaConfig:    req.SlaConfig,
		Active:       active,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := w.Validate(); err != nil {
		return Workflow{}, err
	}
	return w, nil
}
