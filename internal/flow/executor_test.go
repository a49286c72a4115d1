package flow

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orchepy/pkg/models"
)

func TestExecuteSimpleWebhookFlowCompletes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	f := models.Flow{
		ID:   uuid.New(),
		Name: "test-flow",
		Steps: []models.Step{
			{
				Name:         "call",
				Type:         models.StepWebhook,
				URL:          srv.URL,
				Method:       "POST",
				BodyTemplate: json.RawMessage(`{"id":"${event.data.order_id}"}`),
				OnFailure:    models.FailureContinue,
			},
		},
	}
	event := models.Event{ID: uuid.New(), EventType: "payment.completed", Data: json.RawMessage(`{"amount":500,"order_id":"A1"}`)}

	exec := New().Execute(context.Background(), f, event)
	assert.Equal(t, models.ExecutionComplete, exec.Status)
	require.Contains(t, exec.StepsStatus, "call")
	assert.Equal(t, models.StepCompleted, exec.StepsStatus["call"].Status)
}

func TestExecuteWebhookFailureStopsFlow(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("boom"))
	}))
	defer srv.Close()

	f := models.Flow{
		ID:   uuid.New(),
		Name: "fails",
		Steps: []models.Step{
			{Name: "first", Type: models.StepWebhook, URL: srv.URL, Method: "POST", OnFailure: models.FailureStop},
			{Name: "never", Type: models.StepDelay, DurationMs: 1},
		},
	}
	event := models.Event{ID: uuid.New(), EventType: "x", Data: json.RawMessage(`{}`)}

	exec := New().Execute(context.Background(), f, event)
	assert.Equal(t, models.ExecutionFailed, exec.Status)
	assert.NotNil(t, exec.Error)
	assert.NotContains(t, exec.StepsStatus, "never")
}

func TestEvaluateStepConditionOnlySupportsGt(t *testing.T) {
	data := map[string]any{"amount": 500.0}
	assert.True(t, evaluateStepCondition("${event.data.amount} > 100", data))
	assert.False(t, evaluateStepCondition("${event.data.amount} < 100", data))
	assert.False(t, evaluateStepCondition("not a condition", data))
}
