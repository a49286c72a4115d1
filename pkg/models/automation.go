package models

import "encoding/json"

// AutomationTrigger selects whether a PhaseAutomation fires when a case
// enters or exits a phase.
type AutomationTrigger string

const (
	TriggerOnEnter AutomationTrigger = "on_enter"
	TriggerOnExit  AutomationTrigger = "on_exit"
)

// OnError controls whether a failed action aborts the enclosing automation
// batch or is logged and skipped.
type OnError string

const (
	OnErrorStop     OnError = "stop"
	OnErrorContinue OnError = "continue"
)

// RetryConfig configures the fixed-delay retry used by webhook actions.
type RetryConfig struct {
	Enabled     bool `json:"enabled"`
	MaxAttempts int  `json:"max_attempts"`
	DelayMs     int  `json:"delay_ms"`
}

// DefaultRetryConfig mirrors the original's RetryConfig::default().
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{Enabled: false, MaxAttempts: 3, DelayMs: 1000}
}

// LogicalOperator combines Simple conditions inside a Complex condition.
type LogicalOperator string

const (
	LogicalAnd LogicalOperator = "AND"
	LogicalOr  LogicalOperator = "OR"
)

// SimpleCondition is one leaf comparison used inside a Complex condition's
// conditions list.
type SimpleCondition struct {
	Field    string          `json:"field"`
	Operator string          `json:"operator"`
	Value    json.RawMessage `json:"value"`
}

// Condition is either a single field comparison (Simple) or an AND/OR
// combination of SimpleConditions (Complex). The wire format is untagged:
// presence of "operator"+"conditions" means Complex, presence of
// "field"+"operator"+"value" means Simple.
type Condition struct {
	// Simple fields
	Field    string          `json:"field,omitempty"`
	Operator string          `json:"operator,omitempty"`
	Value    json.RawMessage `json:"value,omitempty"`

	// Complex fields
	LogicalOp LogicalOperator   `json:"-"`
	Conditions []SimpleCondition `json:"conditions,omitempty"`
}

// IsComplex reports whether this Condition carries a Conditions list
// rather than a single Simple comparison.
func (c Condition) IsComplex() bool {
	return len(c.Conditions) > 0
}

// UnmarshalJSON implements the untagged Simple/Complex distinction the
// original Rust model expresses via #[serde(untagged)].
func (c *Condition) UnmarshalJSON(data []byte) error {
	var probe struct {
		Field      string            `json:"field"`
		Operator   string            `json:"operator"`
		Value      json.RawMessage   `json:"value"`
		Conditions []SimpleCondition `json:"conditions"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return err
	}
	if len(probe.Conditions) > 0 {
		c.LogicalOp = LogicalOperator(probe.Operator)
		c.Conditions = probe.Conditions
		c.Field, c.Operator, c.Value = "", "", nil
		return nil
	}
	c.Field = probe.Field
	c.Operator = probe.Operator
	c.Value = probe.Value
	return nil
}

// MarshalJSON round-trips Complex vs Simple conditions without emitting
// the unused half of the struct.
func (c Condition) MarshalJSON() ([]byte, error) {
	if c.IsComplex() {
		return json.Marshal(struct {
			Operator   LogicalOperator   `json:"operator"`
			Conditions []SimpleCondition `json:"conditions"`
		}{c.LogicalOp, c.Conditions})
	}
	return json.Marshal(struct {
		Field    string          `json:"field"`
		Operator string          `json:"operator"`
		Value    json.RawMessage `json:"value"`
	}{c.Field, c.Operator, c.Value})
}

// ActionType tags the AutomationAction variant.
type ActionType string

const (
	ActionWebhook      ActionType = "webhook"
	ActionDelay        ActionType = "delay"
	ActionConditional  ActionType = "conditional"
	ActionMoveToPhase  ActionType = "move_to_phase"
	ActionSetField     ActionType = "set_field"
)

// AutomationAction is a tagged union over the five action variants named
// in spec.md §3. Only the fields relevant to the action's Type are
// populated; the rest are left zero-valued.
type AutomationAction struct {
	Type ActionType `json:"type"`
	ID   string     `json:"id,omitempty"` // only meaningful when Type is webhook; used for response chaining
	Name string     `json:"name,omitempty"`

	// webhook
	URL             string            `json:"url,omitempty"`
	Method          string            `json:"method,omitempty"`
	Headers         map[string]string `json:"headers,omitempty"`
	Fields          []string          `json:"fields,omitempty"`
	UseResponseFrom string            `json:"use_response_from,omitempty"`
	Retry           RetryConfig       `json:"retry,omitempty"`
	OnErrorPolicy   OnError           `json:"on_error,omitempty"`

	// delay
	DurationMs int64 `json:"duration_ms,omitempty"`

	// conditional
	Condition Condition          `json:"condition,omitempty"`
	Then      []AutomationAction `json:"then,omitempty"`
	Else      []AutomationAction `json:"else,omitempty"`

	// move_to_phase
	Phase string `json:"phase,omitempty"`

	// set_field
	Field string          `json:"field,omitempty"`
	Value json.RawMessage `json:"value,omitempty"`
}

// EffectiveOnError returns the action's error policy: configurable for
// webhook (default stop), implicitly continue for every other variant.
func (a AutomationAction) EffectiveOnError() OnError {
	if a.Type != ActionWebhook {
		return OnErrorContinue
	}
	if a.OnErrorPolicy == "" {
		return OnErrorStop
	}
	return a.OnErrorPolicy
}

// ActionName returns a’s declared name, or a positional fallback.
func (a AutomationAction) ActionName(idx int) string {
	if a.Name != "" {
		return a.Name
	}
	return "action_" + itoa(idx)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	digits := []byte{}
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}

// PhaseAutomation binds an action list to a (trigger, phase) pair.
type PhaseAutomation struct {
	Trigger AutomationTrigger  `json:"trigger"`
	Phase   string             `json:"phase"`
	Actions []AutomationAction `json:"actions"`
}

// WorkflowAutomations is the ordered list of PhaseAutomations attached to
// a Workflow.
type WorkflowAutomations struct {
	Automations []PhaseAutomation `json:"automations"`
}

// ForTrigger returns, in declared order, the PhaseAutomations matching the
// given (trigger, phase) pair. Multiple entries for the same key run in
// declared order (spec.md §3).
func (w WorkflowAutomations) ForTrigger(trigger AutomationTrigger, phase string) []PhaseAutomation {
	var out []PhaseAutomation
	for _, a := range w.Automations {
		if a.Trigger == trigger && a.Phase == phase {
			out = append(out, a)
		}
	}
	return out
}

// PhaseSla is the configured SLA budget, in hours, for one phase.
type PhaseSla struct {
	Hours int `json:"hours"`
}

// WorkflowSlaConfig maps phase name to its configured SLA.
type WorkflowSlaConfig map[string]PhaseSla

// CaseModification is a deferred mutation produced by the automation
// interpreter and applied by the case state transaction (§4.6).
type CaseModification struct {
	Kind  ModificationKind
	Phase string          // for MoveToPhase
	Field string          // for SetField, dotted path starting with "data."
	Value json.RawMessage // for SetField
}

// ModificationKind tags a CaseModification.
type ModificationKind string

const (
	ModMoveToPhase ModificationKind = "move_to_phase"
	ModSetField    ModificationKind = "set_field"
)

// AutomationResult is the accumulated outcome of running an automation
// action list: the deferred modifications, in application order.
type AutomationResult struct {
	Modifications []CaseModification
}
