package slamonitor

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"orchepy/pkg/models"
)

type fakeWorkflowRepo struct {
	workflows []models.Workflow
}

func (f *fakeWorkflowRepo) ListActive(ctx context.Context) ([]models.Workflow, error) {
	return f.workflows, nil
}

func TestScanOnceQueriesConfiguredPhase(t *testing.T) {
	workflowID := uuid.New()
	sla := models.WorkflowSlaConfig{"Review": models.PhaseSla{Hours: 1}}
	workflow := models.Workflow{ID: workflowID, Name: "Approval", Phases: []string{"Review"}, Active: true, SlaConfig: &sla}

	staleCase := models.Case{ID: uuid.New(), WorkflowID: workflowID, CurrentPhase: "Review", PhaseEnteredAt: time.Now().UTC().Add(-2 * time.Hour)}
	freshCase := models.Case{ID: uuid.New(), WorkflowID: workflowID, CurrentPhase: "Review", PhaseEnteredAt: time.Now().UTC()}

	var queried []string
	listFn := func(ctx context.Context, wfID, phase string) ([]models.Case, error) {
		queried = append(queried, phase)
		return []models.Case{staleCase, freshCase}, nil
	}

	m := New(&fakeWorkflowRepo{workflows: []models.Workflow{workflow}}, listFn)
	m.scanOnce()

	require.Equal(t, []string{"Review"}, queried)
}

func TestScanOnceSkipsWorkflowsWithoutSlaConfig(t *testing.T) {
	workflow := models.Workflow{ID: uuid.New(), Name: "NoSLA", Phases: []string{"Review"}, Active: true}

	called := false
	listFn := func(ctx context.Context, wfID, phase string) ([]models.Case, error) {
		called = true
		return nil, nil
	}

	m := New(&fakeWorkflowRepo{workflows: []models.Workflow{workflow}}, listFn)
	m.scanOnce()

	require.False(t, called)
}

func TestScanOnceSkipsUndeclaredPhase(t *testing.T) {
	sla := models.WorkflowSlaConfig{"Ghost": models.PhaseSla{Hours: 1}}
	workflow := models.Workflow{ID: uuid.New(), Name: "Approval", Phases: []string{"Review"}, Active: true, SlaConfig: &sla}

	called := false
	listFn := func(ctx context.Context, wfID, phase string) ([]models.Case, error) {
		called = true
		return nil, nil
	}

	m := New(&fakeWorkflowRepo{workflows: []models.Workflow{workflow}}, listFn)
	m.scanOnce()

	require.False(t, called)
}
