package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// FlowTrigger selects which events a Flow reacts to and the filter
// predicates applied against the event's data.
type FlowTrigger struct {
	EventType string          `json:"event_type"`
	Filters   json.RawMessage `json:"filters,omitempty"`
}

// Flow is an event-triggered sequence of Steps.
type Flow struct {
	ID        uuid.UUID   `json:"id" db:"id"`
	Name      string      `json:"name" db:"name"`
	Trigger   FlowTrigger `json:"trigger" db:"trigger"`
	Steps     []Step      `json:"steps" db:"steps"`
	Active    bool        `json:"active" db:"active"`
	CreatedAt time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt time.Time   `json:"updated_at" db:"updated_at"`
}

// CreateFlowRequest is the inbound payload for POST /flows.
type CreateFlowRequest struct {
	Name    string      `json:"name" binding:"required"`
	Trigger FlowTrigger `json:"trigger" binding:"required"`
	Steps   []Step      `json:"steps" binding:"required"`
	Active  *bool       `json:"active"`
}

// UpdateFlowRequest is the inbound payload for PUT /flows/{id}.
type UpdateFlowRequest struct {
	Name    *string      `json:"name"`
	Trigger *FlowTrigger `json:"trigger"`
	Steps   []Step       `json:"steps"`
	Active  *bool        `json:"active"`
}

// NewFlow constructs a Flow from a create request.
func NewFlow(req CreateFlowRequest) Flow {
	active := true
	if req.Active != nil {
		active = *req.Active
	}
	now := time.Now().UTC()
	return Flow{
		ID:        uuid.New(),
		Name:      req.Name,
		Trigger:   req.Trigger,
		Steps:     req.Steps,
		Active:    active,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
