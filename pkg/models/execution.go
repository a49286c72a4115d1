package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ExecutionStatus is the outcome of running a Flow against one Event.
type ExecutionStatus string

const (
	ExecutionPending  ExecutionStatus = "pending"
	ExecutionRunning  ExecutionStatus = "running"
	ExecutionComplete ExecutionStatus = "completed"
	ExecutionFailed   ExecutionStatus = "failed"
	ExecutionRetrying ExecutionStatus = "retrying"
)

// StepExecutionStatus is the outcome of one step within an Execution.
type StepExecutionStatus string

const (
	StepRunning   StepExecutionStatus = "running"
	StepCompleted StepExecutionStatus = "completed"
	StepFailed    StepExecutionStatus = "failed"
	StepSkipped   StepExecutionStatus = "skipped"
)

// StepStatus records the outcome of one step inside an Execution.
type StepStatus struct {
	Status      StepExecutionStatus `json:"status"`
	StartedAt   time.Time           `json:"started_at"`
	CompletedAt *time.Time          `json:"completed_at,omitempty"`
	Attempts    int                 `json:"attempts"`
	Response    json.RawMessage     `json:"response,omitempty"`
	Error       *string             `json:"error,omitempty"`
}

// Execution is the recorded outcome of running one Flow for one Event.
// Persisted once after the flow finishes, not incrementally (spec.md §9).
type Execution struct {
	ID           uuid.UUID              `json:"id" db:"id"`
	FlowID       uuid.UUID              `json:"flow_id" db:"flow_id"`
	EventID      uuid.UUID              `json:"event_id" db:"event_id"`
	Status       ExecutionStatus        `json:"status" db:"status"`
	CurrentStep  *string                `json:"current_step,omitempty" db:"current_step"`
	StepsStatus  map[string]StepStatus  `json:"steps_status" db:"steps_status"`
	StartedAt    time.Time              `json:"started_at" db:"started_at"`
	CompletedAt  *time.Time             `json:"completed_at,omitempty" db:"completed_at"`
	Error        *string                `json:"error,omitempty" db:"error"`
}

// NewExecution starts a pending Execution record for (flowID, eventID).
func NewExecution(flowID, eventID uuid.UUID) *Execution {
	return &Execution{
		ID:          uuid.New(),
		FlowID:      flowID,
		EventID:     eventID,
		Status:      ExecutionPending,
		StepsStatus: map[string]StepStatus{},
		StartedAt:   time.Now().UTC(),
	}
}
