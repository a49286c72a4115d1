// Package orchestrator implements the transition orchestrator (spec.md
// §4.7) — case creation and case moves, with their on_enter/on_exit
// automation runs and follow-on async work — and event submission
// (spec.md §4.8).
package orchestrator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"orchepy/internal/automation"
	"orchepy/internal/casestate"
	"orchepy/internal/flow"
	"orchepy/internal/logging"
	"orchepy/pkg/models"
)

// CaseRepo is the subset of the case repository the orchestrator consumes.
type CaseRepo interface {
	Create(ctx context.Context, c models.Case) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Case, error)
	CreateHistory(ctx context.Context, h models.CaseHistory) error
	UpdatePhase(ctx context.Context, id uuid.UUID, currentPhase string, previousPhase *string) error
}

// WorkflowRepo is the subset of the workflow repository the orchestrator consumes.
type WorkflowRepo interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Workflow, error)
	FindActiveByID(ctx context.Context, id uuid.UUID) (*models.Workflow, error)
}

// EventRepo is the subset of the event repository the orchestrator consumes.
type EventRepo interface {
	Create(ctx context.Context, e models.Event) error
}

// FlowRepo is the subset of the flow repository the orchestrator consumes.
type FlowRepo interface {
	ListActive(ctx context.Context) ([]models.Flow, error)
}

// ExecutionRepo is the subset of the execution repository the orchestrator consumes.
type ExecutionRepo interface {
	Create(ctx context.Context, e *models.Execution) error
}

// Config carries the environment toggles named in spec.md §6.
type Config struct {
	WebhookOnCaseCreate bool
	WebhookOnCaseMove   bool
}

// DefaultConfig matches spec.md's documented defaults (both true).
func DefaultConfig() Config {
	return Config{WebhookOnCaseCreate: true, WebhookOnCaseMove: true}
}

// caseWebhookTimeout is the case-move webhook's own timeout, distinct
// from the automation/flow webhook clients (spec.md §6).
const caseWebhookTimeout = 10 * time.Second

// Orchestrator ties together the repositories, the automation executor,
// the case-state transaction, and the flow engine to implement case
// transitions and event submission.
type Orchestrator struct {
	cases      CaseRepo
	workflows  WorkflowRepo
	events     EventRepo
	flows      FlowRepo
	executions ExecutionRepo

	automations   *automation.Executor
	applier       *casestate.Applier
	flowExecutor  *flow.Executor
	webhookClient *http.Client
	cfg           Config
}

// New constructs an Orchestrator over the given repositories and engine components.
func New(cases CaseRepo, workflows WorkflowRepo, events EventRepo, flows FlowRepo, executions ExecutionRepo, applier *casestate.Applier, cfg Config) *Orchestrator {
	return &Orchestrator{
		cases:         cases,
		workflows:     workflows,
		events:        events,
		flows:         flows,
		executions:    executions,
		automations:   automation.New(),
		applier:       applier,
		flowExecutor:  flow.New(),
		webhookClient: &http.Client{Timeout: caseWebhookTimeout},
		cfg:           cfg,
	}
}

// CreateCase implements spec.md §4.7 "Create case".
func (o *Orchestrator) CreateCase(ctx context.Context, req models.CreateCaseRequest) (models.Case, error) {
	workflow, err := o.workflows.FindActiveByID(ctx, req.WorkflowID)
	if err != nil {
		return models.Case{}, fmt.Errorf("failed to fetch workflow: %w", err)
	}
	if workflow == nil {
		return models.Case{}, models.ErrWorkflowNotFound
	}

	initialPhase := workflow.InitialPhase
	if req.InitialPhase != nil {
		initialPhase = *req.InitialPhase
	}
	if !workflow.HasPhase(initialPhase) {
		return models.Case{}, models.ErrInitialPhaseNotInPhases
	}

	c := models.NewCase(req.WorkflowID, initialPhase, req.Data, req.Metadata)
	if err := o.cases.Create(ctx, c); err != nil {
		return models.Case{}, fmt.Errorf("failed to create case: %w", err)
	}
	logging.Info("created case %s in phase %q", c.ID, c.CurrentPhase)

	reason := "Case created"
	triggeredBy := "system"
	history := models.NewCaseHistory(c.ID, nil, initialPhase, &reason, &triggeredBy)
	if err := o.cases.CreateHistory(ctx, history); err != nil {
		logging.Error("failed to create history entry: %v", err)
	}

	if workflow.Automations != nil {
		onEnter := workflow.Automations.ForTrigger(models.TriggerOnEnter, c.CurrentPhase)
		updated, err := o.runAndApply(ctx, onEnter, c, nil, *workflow, "on_enter")
		if err != nil {
			return models.Case{}, err
		}
		if updated != nil {
			c = *updated
		}
	}

	caseCopy := c
	go func() {
		bgCtx := context.Background()
		logging.Info("submitting internal event for case.created: %s", caseCopy.ID)
		data, _ := json.Marshal(map[string]any{
			"case_id":     caseCopy.ID,
			"workflow_id": caseCopy.WorkflowID,
			"to_phase":    caseCopy.CurrentPhase,
			"from_phase":  nil,
			"case_data":   json.RawMessage(caseCopy.Data),
		})
		if _, _, _, err := o.SubmitEvent(bgCtx, models.CreateEventRequest{EventType: "case.created", Data: data, Metadata: caseCopy.Metadata}); err != nil {
			logging.Error("failed to submit internal case.created event: %v", err)
		}
	}()

	if o.cfg.WebhookOnCaseCreate && workflow.WebhookURL != nil {
		url := *workflow.WebhookURL
		go o.sendCaseWebhookWithRetry(url, caseCopy, nil, 3)
	}

	return c, nil
}

// MoveCase implements spec.md §4.7 "Move case".
func (o *Orchestrator) MoveCase(ctx context.Context, caseID uuid.UUID, req models.MoveCaseRequest) (models.Case, error) {
	c, err := o.cases.FindByID(ctx, caseID)
	if err != nil {
		return models.Case{}, fmt.Errorf("failed to fetch case: %w", err)
	}
	if c == nil {
		return models.Case{}, models.ErrCaseNotFound
	}

	workflow, err := o.workflows.FindByID(ctx, c.WorkflowID)
	if err != nil {
		return models.Case{}, fmt.Errorf("failed to fetch workflow: %w", err)
	}
	if workflow == nil {
		return models.Case{}, models.ErrWorkflowNotFound
	}

	if !workflow.HasPhase(req.ToPhase) {
		return models.Case{}, models.ErrTargetPhaseNotInPhases
	}

	if c.CurrentPhase == req.ToPhase {
		return *c, nil
	}

	fromPhase := c.CurrentPhase
	c.PreviousPhase = &fromPhase
	c.CurrentPhase = req.ToPhase
	now := time.Now().UTC()
	c.PhaseEnteredAt = now
	c.UpdatedAt = now

	if err := o.cases.UpdatePhase(ctx, caseID, c.CurrentPhase, c.PreviousPhase); err != nil {
		return models.Case{}, fmt.Errorf("failed to move case: %w", err)
	}
	logging.Info("moved case %s from %q to %q", caseID, fromPhase, c.CurrentPhase)

	history := models.NewCaseHistory(caseID, &fromPhase, req.ToPhase, req.Reason, req.TriggeredBy)
	if err := o.cases.CreateHistory(ctx, history); err != nil {
		logging.Error("failed to create history entry: %v", err)
	}

	if workflow.Automations != nil {
		onExit := workflow.Automations.ForTrigger(models.TriggerOnExit, fromPhase)
		updated, err := o.runAndApply(ctx, onExit, *c, &fromPhase, *workflow, "on_exit")
		if err != nil {
			return models.Case{}, err
		}
		if updated != nil {
			c = updated
		}

		onEnter := workflow.Automations.ForTrigger(models.TriggerOnEnter, c.CurrentPhase)
		updated, err = o.runAndApply(ctx, onEnter, *c, &fromPhase, *workflow, "on_enter")
		if err != nil {
			return models.Case{}, err
		}
		if updated != nil {
			c = updated
		}
	}

	caseCopy := *c
	go func() {
		bgCtx := context.Background()
		logging.Info("submitting internal event for case.moved: %s", caseCopy.ID)
		data, _ := json.Marshal(map[string]any{
			"case_id":     caseCopy.ID,
			"workflow_id": caseCopy.WorkflowID,
			"to_phase":    caseCopy.CurrentPhase,
			"from_phase":  fromPhase,
			"case_data":   json.RawMessage(caseCopy.Data),
		})
		if _, _, _, err := o.SubmitEvent(bgCtx, models.CreateEventRequest{EventType: "case.moved", Data: data, Metadata: caseCopy.Metadata}); err != nil {
			logging.Error("failed to submit internal case.moved event: %v", err)
		}
	}()

	if o.cfg.WebhookOnCaseMove && workflow.WebhookURL != nil {
		url := *workflow.WebhookURL
		from := fromPhase
		go o.sendCaseWebhookWithRetry(url, caseCopy, &from, 3)
	}

	return *c, nil
}

// runAndApply runs the given automations (spec.md §4.3) and, if they
// produced mutations, applies them transactionally (spec.md §4.6) and
// re-reads the case. Automation-execution failure aborts the transition
// (spec.md §7, departing from the lenient original_source behavior — see
// DESIGN.md).
func (o *Orchestrator) runAndApply(ctx context.Context, automations []models.PhaseAutomation, c models.Case, fromPhase *string, workflow models.Workflow, label string) (*models.Case, error) {
	if len(automations) == 0 {
		return nil, nil
	}

	result, err := o.automations.Run(ctx, automations, c, fromPhase)
	if err != nil {
		return nil, fmt.Errorf("failed to execute %s automations: %w", label, err)
	}
	if len(result.Modifications) == 0 {
		return nil, nil
	}

	if err := o.applier.Apply(ctx, c.ID, workflow, result.Modifications, label); err != nil {
		return nil, fmt.Errorf("failed to apply %s automation modifications: %w", label, err)
	}

	updated, err := o.cases.FindByID(ctx, c.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to re-fetch case after %s automation modifications: %w", label, err)
	}
	return updated, nil
}

// SubmitEvent implements spec.md §4.8: persist the event, match it
// against active flows, run each matched flow, and persist its execution.
func (o *Orchestrator) SubmitEvent(ctx context.Context, req models.CreateEventRequest) (uuid.UUID, []uuid.UUID, int, error) {
	event := models.NewEvent(req)

	if err := o.events.Create(ctx, event); err != nil {
		return uuid.Nil, nil, 0, fmt.Errorf("failed to save event: %w", err)
	}

	flows, err := o.flows.ListActive(ctx)
	if err != nil {
		return uuid.Nil, nil, 0, fmt.Errorf("failed to load flows: %w", err)
	}

	matched := flow.Match(event, flows)
	logging.Info("matched %d flow(s) for event %s", len(matched), event.ID)

	executionIDs := make([]uuid.UUID, 0, len(matched))
	for _, f := range matched {
		logging.Info("triggering flow %q for event %s", f.Name, event.ID)
		execution := o.flowExecutor.Execute(ctx, f, event)
		executionIDs = append(executionIDs, execution.ID)

		if err := o.executions.Create(ctx, execution); err != nil {
			logging.Error("failed to save execution: %v", err)
		}
	}

	return event.ID, executionIDs, len(matched), nil
}

// caseWebhookPayload is the outbound envelope for case webhooks (spec.md §6).
type caseWebhookPayload struct {
	Action string          `json:"action"`
	Data   caseWebhookData `json:"data"`
}

type caseWebhookData struct {
	CaseID     uuid.UUID       `json:"case_id"`
	WorkflowID uuid.UUID       `json:"workflow_id"`
	FromPhase  *string         `json:"from_phase"`
	ToPhase    string          `json:"to_phase"`
	CaseData   json.RawMessage `json:"case_data"`
	Metadata   json.RawMessage `json:"metadata,omitempty"`
}

// sendCaseWebhookWithRetry sends the "case.moved" webhook envelope with
// exponential 1s/2s/4s backoff between up to maxRetries attempts
// (spec.md §4.7).
func (o *Orchestrator) sendCaseWebhookWithRetry(url string, c models.Case, fromPhase *string, maxRetries int) {
	payload := caseWebhookPayload{
		Action: "case.moved",
		Data: caseWebhookData{
			CaseID:     c.ID,
			WorkflowID: c.WorkflowID,
			FromPhase:  fromPhase,
			ToPhase:    c.CurrentPhase,
			CaseData:   c.Data,
			Metadata:   c.Metadata,
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		logging.Error("failed to encode case webhook payload: %v", err)
		return
	}

	for attempt := 1; attempt <= maxRetries; attempt++ {
		if err := o.sendCaseWebhook(url, body); err == nil {
			logging.Info("webhook sent successfully: %s", url)
			return
		} else if attempt >= maxRetries {
			logging.Error("webhook failed after %d attempts: %v", maxRetries, err)
			return
		} else {
			logging.Error("webhook attempt %d/%d failed, retrying: %v", attempt, maxRetries, err)
			time.Sleep(time.Duration(1<<uint(attempt-1)) * time.Second)
		}
	}
}

func (o *Orchestrator) sendCaseWebhook(url string, body []byte) error {
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.webhookClient.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
