package models

import "encoding/json"

// StepKind tags the Step variant.
type StepKind string

const (
	StepWebhook   StepKind = "webhook"
	StepCondition StepKind = "condition"
	StepDelay     StepKind = "delay"
)

// FailureAction controls whether a step's failure stops the enclosing flow
// or lets execution continue to the next step.
type FailureAction string

const (
	FailureStop     FailureAction = "stop"
	FailureContinue FailureAction = "continue"
)

// BackoffStrategy selects the retry delay growth for a webhook step.
type BackoffStrategy string

const (
	BackoffFixed       BackoffStrategy = "fixed"
	BackoffExponential BackoffStrategy = "exponential"
)

// StepRetryConfig configures a flow webhook step's retry executor.
type StepRetryConfig struct {
	MaxAttempts    int             `json:"max_attempts"`
	Backoff        BackoffStrategy `json:"backoff"`
	InitialDelayMs int64           `json:"initial_delay_ms"`
}

// Step is one node of a Flow: webhook, condition, or delay. Condition steps
// recurse via IfTrue/IfFalse.
type Step struct {
	Name      string        `json:"name"`
	Type      StepKind      `json:"type"`
	OnFailure FailureAction `json:"on_failure,omitempty"`

	// webhook
	URL          string            `json:"url,omitempty"`
	Method       string            `json:"method,omitempty"`
	Headers      map[string]string `json:"headers,omitempty"`
	BodyTemplate json.RawMessage   `json:"body_template,omitempty"`
	TimeoutMs    *int64            `json:"timeout_ms,omitempty"`
	Retry        *StepRetryConfig  `json:"retry,omitempty"`

	// condition
	ConditionExpr string `json:"condition,omitempty"`
	IfTrue        *Step  `json:"if_true,omitempty"`
	IfFalse       *Step  `json:"if_false,omitempty"`

	// delay
	DurationMs int64 `json:"duration_ms,omitempty"`
}

// EffectiveOnFailure defaults an unset OnFailure to stop, per spec.md §3.
func (s Step) EffectiveOnFailure() FailureAction {
	if s.OnFailure == "" {
		return FailureStop
	}
	return s.OnFailure
}
