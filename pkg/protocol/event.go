package protocol

import (
	"time"

	"github.com/google/uuid"
)

// EventKind classifies a progress event for display purposes.
type EventKind string

const (
	EventInfo    EventKind = "info"
	EventSuccess EventKind = "success"
	EventWarning EventKind = "warning"
	EventError   EventKind = "error"
)

// Event is a single lifecycle progress event. Delivery to sinks is
// best-effort and at-most-once; events are never buffered or replayed.
type Event struct {
	ID        string    `json:"id"`
	Message   string    `json:"message"`
	Kind      EventKind `json:"kind"`
	Timestamp time.Time `json:"timestamp"`
}

// NewEvent creates an event stamped with the current time.
func NewEvent(kind EventKind, message string) Event {
	return Event{
		ID:        uuid.NewString(),
		Message:   message,
		Kind:      kind,
		Timestamp: time.Now().UTC(),
	}
}
