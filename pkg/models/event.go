package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event is a typed JSON payload submitted to the system; candidate input
// to flows.
type Event struct {
	ID         uuid.UUID       `json:"id" db:"id"`
	EventType  string          `json:"event_type" db:"event_type"`
	Data       json.RawMessage `json:"data" db:"data"`
	Metadata   json.RawMessage `json:"metadata,omitempty" db:"metadata"`
	ReceivedAt time.Time       `json:"received_at" db:"received_at"`
}

// CreateEventRequest is the inbound payload for POST /events.
type CreateEventRequest struct {
	EventType string          `json:"event_type" binding:"required"`
	Data      json.RawMessage `json:"data" binding:"required"`
	Metadata  json.RawMessage `json:"metadata"`
}

// NewEvent constructs an Event from a create request.
func NewEvent(req CreateEventRequest) Event {
	return Event{
		ID:         uuid.New(),
		EventType:  req.EventType,
		Data:       req.Data,
		Metadata:   req.Metadata,
		ReceivedAt: time.Now().UTC(),
	}
}
