package flow

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"orchepy/internal/httpclient"
	"orchepy/internal/logging"
	"orchepy/internal/retry"
	"orchepy/internal/template"
	"orchepy/pkg/models"
)

// webhookTimeout is the default ceiling for a flow webhook step when the
// step does not declare its own TimeoutMs (spec.md §4.4/§5).
const webhookTimeout = 30 * time.Second

// Executor runs an ordered step list for one (flow, event) pair.
type Executor struct {
	httpClient *http.Client
}

// New constructs a flow Executor with its own HTTP client, distinct from
// the automation interpreter's (spec.md §5, "two HTTP clients").
func New() *Executor {
	return &Executor{httpClient: &http.Client{Timeout: webhookTimeout}}
}

// Execute runs flow's steps against event in order, recording a StepStatus
// per step and stopping early if a step with on_failure=stop fails.
func (e *Executor) Execute(ctx context.Context, f models.Flow, event models.Event) *models.Execution {
	execution := models.NewExecution(f.ID, event.ID)
	execution.Status = models.ExecutionRunning

	logging.Debug("starting execution %s for flow %q (event %s)", execution.ID, f.Name, event.EventType)

	eventData := template.DataAsMap(event.Data)
	flowFailed := false

	for _, step := range f.Steps {
		name := step.Name
		execution.CurrentStep = &name
		logging.Debug("executing step: %s", name)

		started := time.Now().UTC()
		response, err := e.executeStep(ctx, step, eventData)
		completed := time.Now().UTC()

		status := models.StepStatus{
			StartedAt:   started,
			CompletedAt: &completed,
			Attempts:    1,
		}
		if err != nil {
			errMsg := err.Error()
			status.Status = models.StepFailed
			status.Error = &errMsg
			logging.Error("step %q failed: %v", name, err)
		} else {
			status.Status = models.StepCompleted
			status.Response = response
		}
		execution.StepsStatus[name] = status

		if err != nil && step.EffectiveOnFailure() == models.FailureStop {
			logging.Error("step %q failed, stopping flow", name)
			flowFailed = true
			execution.Error = status.Error
			break
		}
	}

	if flowFailed {
		execution.Status = models.ExecutionFailed
	} else {
		execution.Status = models.ExecutionComplete
	}
	completedAt := time.Now().UTC()
	execution.CompletedAt = &completedAt

	logging.Debug("execution %s finished with status %s", execution.ID, execution.Status)
	return execution
}

func (e *Executor) executeStep(ctx context.Context, step models.Step, eventData map[string]any) (json.RawMessage, error) {
	switch step.Type {
	case models.StepWebhook:
		return e.executeWebhookStep(ctx, step, eventData)
	case models.StepCondition:
		result := evaluateStepCondition(step.ConditionExpr, eventData)
		branch := step.IfFalse
		if result {
			branch = step.IfTrue
		}
		if branch == nil {
			body, _ := json.Marshal(map[string]any{"condition_result": result})
			return body, nil
		}
		return e.executeStep(ctx, *branch, eventData)
	case models.StepDelay:
		logging.Debug("delaying for %dms", step.DurationMs)
		time.Sleep(time.Duration(step.DurationMs) * time.Millisecond)
		body, _ := json.Marshal(map[string]any{"delayed_ms": step.DurationMs})
		return body, nil
	default:
		body, _ := json.Marshal(map[string]any{"error": "unknown step type"})
		return body, nil
	}
}

func (e *Executor) executeWebhookStep(ctx context.Context, step models.Step, eventData map[string]any) (json.RawMessage, error) {
	url := template.InterpolateString(step.URL, eventData)
	headers := template.InterpolateHeaders(step.Headers, eventData)
	body, err := template.InterpolateJSON(step.BodyTemplate, eventData)
	if err != nil {
		return nil, err
	}

	method := step.Method
	if method == "" {
		method = http.MethodPost
	}

	timeout := webhookTimeout
	if step.TimeoutMs != nil {
		timeout = time.Duration(*step.TimeoutMs) * time.Millisecond
	}

	call := func() (json.RawMessage, error) {
		return httpclient.Call(ctx, e.httpClient, method, url, headers, body, timeout)
	}

	if step.Retry != nil {
		return retry.Do(retry.Config{
			MaxAttempts:    step.Retry.MaxAttempts,
			Backoff:        retry.Backoff(step.Retry.Backoff),
			InitialDelayMs: step.Retry.InitialDelayMs,
		}, call)
	}
	return call()
}

// evaluateStepCondition implements the minimal step condition DSL from
// spec.md §4.4: only "LHS > RHS" is supported; any other shape evaluates
// to false with a logged warning.
func evaluateStepCondition(expr string, eventData map[string]any) bool {
	parts := strings.SplitN(expr, ">", 2)
	if len(parts) != 2 {
		logging.Debug("could not evaluate condition: %s", expr)
		return false
	}
	left := extractConditionValue(strings.TrimSpace(parts[0]), eventData)
	right := extractConditionValue(strings.TrimSpace(parts[1]), eventData)

	leftNum, leftOk := toFloat(left)
	rightNum, rightOk := toFloat(right)
	if !leftOk || !rightOk {
		logging.Debug("could not evaluate condition: %s", expr)
		return false
	}
	return leftNum > rightNum
}

func extractConditionValue(expr string, eventData map[string]any) any {
	if strings.HasPrefix(expr, "${") && strings.HasSuffix(expr, "}") {
		inner := expr[2 : len(expr)-1]
		field := strings.TrimPrefix(inner, "event.data.")
		if field != inner {
			return lookupEventField(eventData, field)
		}
		return nil
	}
	if n, err := strconv.ParseFloat(expr, 64); err == nil {
		return n
	}
	return expr
}

func lookupEventField(data map[string]any, path string) any {
	parts := strings.Split(path, ".")
	var cur any = data
	for _, part := range parts {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur = obj[part]
	}
	return cur
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}
