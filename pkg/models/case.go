package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// CaseStatus is the lifecycle state of a Case.
type CaseStatus string

const (
	CaseActive    CaseStatus = "active"
	CaseCompleted CaseStatus = "completed"
	CaseFailed    CaseStatus = "failed"
	CasePaused    CaseStatus = "paused"
)

// Case is a workflow instance with arbitrary JSON data and a current phase.
type Case struct {
	ID             uuid.UUID       `json:"id" db:"id"`
	WorkflowID     uuid.UUID       `json:"workflow_id" db:"workflow_id"`
	CurrentPhase   string          `json:"current_phase" db:"current_phase"`
	PreviousPhase  *string         `json:"previous_phase,omitempty" db:"previous_phase"`
	Data           json.RawMessage `json:"data" db:"data"`
	Status         CaseStatus      `json:"status" db:"status"`
	Metadata       json.RawMessage `json:"metadata,omitempty" db:"metadata"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at" db:"updated_at"`
	CompletedAt    *time.Time      `json:"completed_at,omitempty" db:"completed_at"`
	PhaseEnteredAt time.Time       `json:"phase_entered_at" db:"phase_entered_at"`
}

// CaseHistory is one append-only transition record for a Case.
type CaseHistory struct {
	ID             uuid.UUID `json:"id" db:"id"`
	CaseID         uuid.UUID `json:"case_id" db:"case_id"`
	FromPhase      *string   `json:"from_phase,omitempty" db:"from_phase"`
	ToPhase        string    `json:"to_phase" db:"to_phase"`
	Reason         *string   `json:"reason,omitempty" db:"reason"`
	TriggeredBy    *string   `json:"triggered_by,omitempty" db:"triggered_by"`
	TransitionedAt time.Time `json:"transitioned_at" db:"transitioned_at"`
}

// NewCaseHistory mints a history row with a fresh id and timestamp.
func NewCaseHistory(caseID uuid.UUID, fromPhase *string, toPhase string, reason, triggeredBy *string) CaseHistory {
	return CaseHistory{
		ID:             uuid.New(),
		CaseID:         caseID,
		FromPhase:      fromPhase,
		ToPhase:        toPhase,
		Reason:         reason,
		TriggeredBy:    triggeredBy,
		TransitionedAt: time.Now().UTC(),
	}
}

// CreateCaseRequest is the inbound payload for POST /cases.
type CreateCaseRequest struct {
	WorkflowID   uuid.UUID       `json:"workflow_id" binding:"required"`
	Data         json.RawMessage `json:"data"`
	Metadata     json.RawMessage `json:"metadata"`
	InitialPhase *string         `json:"initial_phase"`
}

// UpdateCaseDataRequest is the inbound payload for PATCH /cases/{id}/data.
// Shallow-merges into the stored data object.
type UpdateCaseDataRequest struct {
	Data json.RawMessage `json:"data" binding:"required"`
}

// MoveCaseRequest is the inbound payload for PUT /cases/{id}/move.
type MoveCaseRequest struct {
	ToPhase     string  `json:"to_phase" binding:"required"`
	Reason      *string `json:"reason"`
	TriggeredBy *string `json:"triggered_by"`
}

// NewCase constructs a Case in the given initial phase with status active.
func NewCase(workflowID uuid.UUID, initialPhase string, data, metadata json.RawMessage) Case {
	now := time.Now().UTC()
	if data == nil {
		data = json.RawMessage("{}")
	}
	return Case{
		ID:             uuid.New(),
		WorkflowID:     workflowID,
		CurrentPhase:   initialPhase,
		Data:           data,
		Status:         CaseActive,
		Metadata:       metadata,
		CreatedAt:      now,
		UpdatedAt:      now,
		PhaseEnteredAt: now,
	}
}
