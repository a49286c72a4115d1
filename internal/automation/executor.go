// Package automation implements the recursive automation interpreter
// described in spec.md §4.3: it walks a phase's action tree, calls
// external webhooks with retry, and collects deferred case mutations
// without touching the database mid-batch (spec.md §9, "Deferred
// mutations"). Structurally this follows the teacher's recursive
// executor-dispatch idiom in internal/workflows/runtime
// (switch_executor.go's evaluate-then-dispatch shape and
// trycatch_executor.go's recursive block execution), generalized to the
// five automation action variants named in spec.md §3.
package automation

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"orchepy/internal/condition"
	"orchepy/internal/httpclient"
	"orchepy/internal/logging"
	"orchepy/internal/retry"
	"orchepy/pkg/models"
)

// webhookTimeout is the fixed ceiling on automation webhook calls
// (spec.md §4.3 / §5).
const webhookTimeout = 30 * time.Second

// Executor runs phase automations against a case, dispatching webhook
// calls through a shared HTTP client.
type Executor struct {
	httpClient *http.Client
}

// New constructs an Executor with its own HTTP client, matching the
// spec's "two HTTP clients ... reused across all requests" resource model
// (spec.md §5) — this one dedicated to automation webhooks.
func New() *Executor {
	return &Executor{httpClient: &http.Client{Timeout: webhookTimeout}}
}

// Run executes, in order, every PhaseAutomation's action list and merges
// their modifications into a single AutomationResult. Any automation's
// action-batch failure aborts the whole run and propagates the error
// (spec.md §4.3 step 1, §7 "Action failure").
func (e *Executor) Run(ctx context.Context, automations []models.PhaseAutomation, c models.Case, fromPhase *string) (models.AutomationResult, error) {
	result := models.AutomationResult{}
	for _, automation := range automations {
		logging.Debug("executing automation for phase %q (trigger %s)", automation.Phase, automation.Trigger)
		sub, err := e.executeActions(ctx, automation.Actions, c, fromPhase)
		if err != nil {
			return models.AutomationResult{}, fmt.Errorf("automation for phase %q failed: %w", automation.Phase, err)
		}
		result.Modifications = append(result.Modifications, sub.Modifications...)
	}
	return result, nil
}

// executeActions runs one action list with its own local response map
// (spec.md §9 "Response chaining" — children do not inherit webhook ids).
func (e *Executor) executeActions(ctx context.Context, actions []models.AutomationAction, c models.Case, fromPhase *string) (models.AutomationResult, error) {
	responses := map[string]json.RawMessage{}
	result := models.AutomationResult{}

	for idx, action := range actions {
		name := action.ActionName(idx)
		logging.Debug("executing action: %s", name)

		response, mods, err := e.executeAction(ctx, action, c, fromPhase, responses)
		if err != nil {
			logging.Error("action %q failed: %v", name, err)
			if action.EffectiveOnError() == models.OnErrorStop {
				return models.AutomationResult{}, fmt.Errorf("action %q failed: %w", name, err)
			}
			logging.Debug("action %q failed but continuing execution", name)
			continue
		}

		if action.Type == models.ActionWebhook && action.ID != "" {
			responses[action.ID] = response
		}
		result.Modifications = append(result.Modifications, mods...)
	}

	return result, nil
}

func (e *Executor) executeAction(ctx context.Context, action models.AutomationAction, c models.Case, fromPhase *string, previousResponses map[string]json.RawMessage) (json.RawMessage, []models.CaseModification, error) {
	switch action.Type {
	case models.ActionWebhook:
		return e.executeWebhookAction(ctx, action, c, fromPhase, previousResponses)

	case models.ActionDelay:
		logging.Debug("delaying for %dms", action.DurationMs)
		time.Sleep(time.Duration(action.DurationMs) * time.Millisecond)
		body, _ := json.Marshal(map[string]any{"delayed_ms": action.DurationMs})
		return body, nil, nil

	case models.ActionConditional:
		src := condition.SourceFromCase(c)
		matched, err := condition.EvaluateCondition(action.Condition, src)
		if err != nil {
			return nil, nil, fmt.Errorf("condition evaluation failed: %w", err)
		}

		var branch models.AutomationResult
		if matched {
			logging.Debug("condition evaluated to true, executing then branch")
			branch, err = e.executeActions(ctx, action.Then, c, fromPhase)
		} else if action.Else != nil {
			logging.Debug("condition evaluated to false, executing else branch")
			branch, err = e.executeActions(ctx, action.Else, c, fromPhase)
		}
		if err != nil {
			return nil, nil, err
		}
		body, _ := json.Marshal(map[string]any{"condition_result": matched})
		return body, branch.Modifications, nil

	case models.ActionMoveToPhase:
		logging.Debug("queueing move to phase: %s", action.Phase)
		body, _ := json.Marshal(map[string]any{"action": "move_to_phase", "phase": action.Phase})
		return body, []models.CaseModification{{Kind: models.ModMoveToPhase, Phase: action.Phase}}, nil

	case models.ActionSetField:
		logging.Debug("queueing set field %q", action.Field)
		body, _ := json.Marshal(map[string]any{"action": "set_field", "field": action.Field, "value": json.RawMessage(action.Value)})
		return body, []models.CaseModification{{Kind: models.ModSetField, Field: action.Field, Value: action.Value}}, nil

	default:
		return nil, nil, fmt.Errorf("unknown action type: %s", action.Type)
	}
}

func (e *Executor) executeWebhookAction(ctx context.Context, action models.AutomationAction, c models.Case, fromPhase *string, previousResponses map[string]json.RawMessage) (json.RawMessage, []models.CaseModification, error) {
	var body []byte
	if action.UseResponseFrom != "" {
		stored, ok := previousResponses[action.UseResponseFrom]
		if !ok {
			return nil, nil, fmt.Errorf("response from %q not found", action.UseResponseFrom)
		}
		body = stored
	} else {
		body = buildWebhookBody(c, fromPhase, action.Fields)
	}

	method := action.Method
	if method == "" {
		method = http.MethodPost
	}

	var (
		response json.RawMessage
		err      error
	)
	if action.Retry.Enabled {
		response, err = retry.Do(retry.Config{
			MaxAttempts:    action.Retry.MaxAttempts,
			Backoff:        retry.Fixed,
			InitialDelayMs: int64(action.Retry.DelayMs),
		}, func() (json.RawMessage, error) {
			return httpclient.Call(ctx, e.httpClient, method, action.URL, action.Headers, body, webhookTimeout)
		})
	} else {
		response, err = httpclient.Call(ctx, e.httpClient, method, action.URL, action.Headers, body, webhookTimeout)
	}
	if err != nil {
		return nil, nil, err
	}
	return response, nil, nil
}

// buildWebhookBody implements the field-whitelist projection from
// spec.md §4.3: with no `fields` list the full default payload is sent;
// with one, only the named projections are included and unknown names
// are skipped with a log.
func buildWebhookBody(c models.Case, fromPhase *string, fields []string) []byte {
	full := map[string]any{
		"case_id":        c.ID,
		"workflow_id":    c.WorkflowID,
		"current_phase":  c.CurrentPhase,
		"previous_phase": fromPhase,
		"data":           json.RawMessage(c.Data),
		"metadata":       json.RawMessage(c.Metadata),
		"status":         c.Status,
		"created_at":     c.CreatedAt,
		"updated_at":     c.UpdatedAt,
	}
	if fields == nil {
		out, _ := json.Marshal(full)
		return out
	}

	projected := map[string]any{}
	for _, f := range fields {
		switch f {
		case "case_id", "id":
			projected["case_id"] = c.ID
		case "workflow_id":
			projected["workflow_id"] = c.WorkflowID
		case "current_phase":
			projected["current_phase"] = c.CurrentPhase
		case "previous_phase":
			projected["previous_phase"] = fromPhase
		case "data":
			projected["data"] = json.RawMessage(c.Data)
		case "metadata":
			projected["metadata"] = json.RawMessage(c.Metadata)
		case "status":
			projected["status"] = c.Status
		case "created_at":
			projected["created_at"] = c.CreatedAt
		case "updated_at":
			projected["updated_at"] = c.UpdatedAt
		default:
			logging.Debug("unknown field %q requested in automation", f)
		}
	}
	out, _ := json.Marshal(projected)
	return out
}
