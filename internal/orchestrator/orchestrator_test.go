package orchestrator

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"orchepy/internal/casestate"
	"orchepy/pkg/models"
)

// fakeCaseRepo is an in-process stand-in for repositories.CaseRepo
// (SPEC_FULL.md §10, "in-process fake repository layer").
type fakeCaseRepo struct {
	mu      sync.Mutex
	cases   map[uuid.UUID]models.Case
	history []models.CaseHistory
}

func newFakeCaseRepo() *fakeCaseRepo {
	return &fakeCaseRepo{cases: map[uuid.UUID]models.Case{}}
}

func (f *fakeCaseRepo) Create(ctx context.Context, c models.Case) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cases[c.ID] = c
	return nil
}

func (f *fakeCaseRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Case, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.cases[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (f *fakeCaseRepo) CreateHistory(ctx context.Context, h models.CaseHistory) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.history = append(f.history, h)
	return nil
}

func (f *fakeCaseRepo) UpdatePhase(ctx context.Context, id uuid.UUID, currentPhase string, previousPhase *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := f.cases[id]
	c.PreviousPhase = previousPhase
	c.CurrentPhase = currentPhase
	f.cases[id] = c
	return nil
}

func (f *fakeCaseRepo) historyCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.history)
}

type fakeWorkflowRepo struct {
	workflows map[uuid.UUID]models.Workflow
}

func newFakeWorkflowRepo(workflows ...models.Workflow) *fakeWorkflowRepo {
	r := &fakeWorkflowRepo{workflows: map[uuid.UUID]models.Workflow{}}
	for _, w := range workflows {
		r.workflows[w.ID] = w
	}
	return r
}

func (f *fakeWorkflowRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Workflow, error) {
	w, ok := f.workflows[id]
	if !ok {
		return nil, nil
	}
	return &w, nil
}

func (f *fakeWorkflowRepo) FindActiveByID(ctx context.Context, id uuid.UUID) (*models.Workflow, error) {
	w, ok := f.workflows[id]
	if !ok || !w.Active {
		return nil, nil
	}
	return &w, nil
}

type fakeEventRepo struct {
	mu     sync.Mutex
	events []models.Event
}

func newFakeEventRepo() *fakeEventRepo { return &fakeEventRepo{} }

func (f *fakeEventRepo) Create(ctx context.Context, e models.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, e)
	return nil
}

func (f *fakeEventRepo) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events)
}

type fakeFlowRepo struct {
	flows []models.Flow
}

func (f *fakeFlowRepo) ListActive(ctx context.Context) ([]models.Flow, error) {
	return f.flows, nil
}

type fakeExecutionRepo struct {
	mu         sync.Mutex
	executions []*models.Execution
}

func newFakeExecutionRepo() *fakeExecutionRepo { return &fakeExecutionRepo{} }

func (f *fakeExecutionRepo) Create(ctx context.Context, e *models.Execution) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.executions = append(f.executions, e)
	return nil
}

func (f *fakeExecutionRepo) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.executions)
}

// newUnusedApplier builds a casestate.Applier over an unexercised sqlmock
// connection, for scenarios where no automation produces a modification.
func newUnusedApplier(t *testing.T) *casestate.Applier {
	t.Helper()
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return casestate.New(sqlx.NewDb(db, "sqlmock"))
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	require.Fail(t, "condition not met before timeout")
}

func approvalWorkflow() models.Workflow {
	return models.Workflow{
		ID:           uuid.New(),
		Name:         "Approval",
		Phases:       []string{"Review", "Approved", "Rejected"},
		InitialPhase: "Review",
		Active:       true,
	}
}

func TestCreateCaseStartsInInitialPhaseAndRecordsHistory(t *testing.T) {
	workflow := approvalWorkflow()
	cases := newFakeCaseRepo()
	events := newFakeEventRepo()
	orc := New(cases, newFakeWorkflowRepo(workflow), events, &fakeFlowRepo{}, newFakeExecutionRepo(), newUnusedApplier(t), Config{})

	c, err := orc.CreateCase(context.Background(), models.CreateCaseRequest{WorkflowID: workflow.ID, Data: json.RawMessage(`{"amount":10}`)})
	require.NoError(t, err)
	require.Equal(t, "Review", c.CurrentPhase)
	require.Equal(t, 1, cases.historyCount())

	waitFor(t, time.Second, func() bool { return events.count() == 1 })
	require.Equal(t, "case.created", events.events[0].EventType)
}

func TestCreateCaseUnknownWorkflowReturnsNotFound(t *testing.T) {
	cases := newFakeCaseRepo()
	orc := New(cases, newFakeWorkflowRepo(), newFakeEventRepo(), &fakeFlowRepo{}, newFakeExecutionRepo(), newUnusedApplier(t), Config{})

	_, err := orc.CreateCase(context.Background(), models.CreateCaseRequest{WorkflowID: uuid.New()})
	require.ErrorIs(t, err, models.ErrWorkflowNotFound)
}

func TestCreateCaseRejectsInitialPhaseNotInWorkflow(t *testing.T) {
	workflow := approvalWorkflow()
	bogus := "NotAPhase"
	orc := New(newFakeCaseRepo(), newFakeWorkflowRepo(workflow), newFakeEventRepo(), &fakeFlowRepo{}, newFakeExecutionRepo(), newUnusedApplier(t), Config{})

	_, err := orc.CreateCase(context.Background(), models.CreateCaseRequest{WorkflowID: workflow.ID, InitialPhase: &bogus})
	require.ErrorIs(t, err, models.ErrInitialPhaseNotInPhases)
}

func TestMoveCaseAdvancesPhaseAndRecordsHistory(t *testing.T) {
	workflow := approvalWorkflow()
	cases := newFakeCaseRepo()
	c := models.NewCase(workflow.ID, "Review", nil, nil)
	require.NoError(t, cases.Create(context.Background(), c))

	orc := New(cases, newFakeWorkflowRepo(workflow), newFakeEventRepo(), &fakeFlowRepo{}, newFakeExecutionRepo(), newUnusedApplier(t), Config{})

	moved, err := orc.MoveCase(context.Background(), c.ID, models.MoveCaseRequest{ToPhase: "Approved"})
	require.NoError(t, err)
	require.Equal(t, "Approved", moved.CurrentPhase)
	require.NotNil(t, moved.PreviousPhase)
	require.Equal(t, "Review", *moved.PreviousPhase)
	require.Equal(t, 1, cases.historyCount())
}

func TestMoveCaseToSamePhaseIsNoOp(t *testing.T) {
	workflow := approvalWorkflow()
	cases := newFakeCaseRepo()
	c := models.NewCase(workflow.ID, "Review", nil, nil)
	require.NoError(t, cases.Create(context.Background(), c))

	orc := New(cases, newFakeWorkflowRepo(workflow), newFakeEventRepo(), &fakeFlowRepo{}, newFakeExecutionRepo(), newUnusedApplier(t), Config{})

	moved, err := orc.MoveCase(context.Background(), c.ID, models.MoveCaseRequest{ToPhase: "Review"})
	require.NoError(t, err)
	require.Equal(t, "Review", moved.CurrentPhase)
	require.Equal(t, 0, cases.historyCount())
}

func TestMoveCaseRejectsUnknownTargetPhase(t *testing.T) {
	workflow := approvalWorkflow()
	cases := newFakeCaseRepo()
	c := models.NewCase(workflow.ID, "Review", nil, nil)
	require.NoError(t, cases.Create(context.Background(), c))

	orc := New(cases, newFakeWorkflowRepo(workflow), newFakeEventRepo(), &fakeFlowRepo{}, newFakeExecutionRepo(), newUnusedApplier(t), Config{})

	_, err := orc.MoveCase(context.Background(), c.ID, models.MoveCaseRequest{ToPhase: "DoesNotExist"})
	require.ErrorIs(t, err, models.ErrTargetPhaseNotInPhases)
}

func TestMoveCaseUnknownCaseReturnsNotFound(t *testing.T) {
	workflow := approvalWorkflow()
	orc := New(newFakeCaseRepo(), newFakeWorkflowRepo(workflow), newFakeEventRepo(), &fakeFlowRepo{}, newFakeExecutionRepo(), newUnusedApplier(t), Config{})

	_, err := orc.MoveCase(context.Background(), uuid.New(), models.MoveCaseRequest{ToPhase: "Approved"})
	require.ErrorIs(t, err, models.ErrCaseNotFound)
}

func TestMoveCaseRunsOnExitWebhookAutomationWithNoModifications(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	workflow := approvalWorkflow()
	workflow.Automations = &models.WorkflowAutomations{Automations: []models.PhaseAutomation{
		{
			Trigger: models.TriggerOnExit,
			Phase:   "Review",
			Actions: []models.AutomationAction{
				{Type: models.ActionWebhook, Name: "notify", URL: server.URL, Method: http.MethodPost},
			},
		},
	}}

	cases := newFakeCaseRepo()
	c := models.NewCase(workflow.ID, "Review", nil, nil)
	require.NoError(t, cases.Create(context.Background(), c))

	orc := New(cases, newFakeWorkflowRepo(workflow), newFakeEventRepo(), &fakeFlowRepo{}, newFakeExecutionRepo(), newUnusedApplier(t), Config{})

	moved, err := orc.MoveCase(context.Background(), c.ID, models.MoveCaseRequest{ToPhase: "Approved"})
	require.NoError(t, err)
	require.Equal(t, "Approved", moved.CurrentPhase)
	require.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestSubmitEventMatchesActiveFlowAndRecordsExecution(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	flow := models.Flow{
		ID:     uuid.New(),
		Name:   "notify-on-order",
		Active: true,
		Trigger: models.FlowTrigger{EventType: "order.created"},
		Steps: []models.Step{
			{Name: "notify", Type: models.StepWebhook, URL: server.URL, Method: http.MethodPost},
		},
	}

	executions := newFakeExecutionRepo()
	orc := New(newFakeCaseRepo(), newFakeWorkflowRepo(), newFakeEventRepo(), &fakeFlowRepo{flows: []models.Flow{flow}}, executions, newUnusedApplier(t), Config{})

	eventID, executionIDs, matched, err := orc.SubmitEvent(context.Background(), models.CreateEventRequest{EventType: "order.created", Data: json.RawMessage(`{"amount":42}`)})
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, eventID)
	require.Equal(t, 1, matched)
	require.Len(t, executionIDs, 1)
	require.Equal(t, 1, executions.count())
	require.Equal(t, models.ExecutionComplete, executions.executions[0].Status)
}

func TestSubmitEventNoMatchRecordsNoExecutions(t *testing.T) {
	flow := models.Flow{
		ID:      uuid.New(),
		Name:    "unrelated",
		Active:  true,
		Trigger: models.FlowTrigger{EventType: "invoice.paid"},
	}

	executions := newFakeExecutionRepo()
	orc := New(newFakeCaseRepo(), newFakeWorkflowRepo(), newFakeEventRepo(), &fakeFlowRepo{flows: []models.Flow{flow}}, executions, newUnusedApplier(t), Config{})

	_, executionIDs, matched, err := orc.SubmitEvent(context.Background(), models.CreateEventRequest{EventType: "order.created", Data: json.RawMessage(`{}`)})
	require.NoError(t, err)
	require.Equal(t, 0, matched)
	require.Empty(t, executionIDs)
	require.Equal(t, 0, executions.count())
}
