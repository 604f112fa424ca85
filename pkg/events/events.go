package events

import (
	"time"

	"github.com/cuemby/mirrorctl/pkg/types"
	"github.com/google/uuid"
)

// Event is one delivery of a lifecycle event by the runtime
type Event struct {
	ID        string
	Kind      types.EventKind
	Timestamp time.Time
}

// New stamps a lifecycle event with a fresh invocation ID
func New(kind types.EventKind) *Event {
	return &Event{
		ID:        uuid.NewString(),
		Kind:      kind,
		Timestamp: time.Now().UTC(),
	}
}

// Parse validates an event name and stamps it
func Parse(name string) (*Event, error) {
	kind, err := types.ParseEventKind(name)
	if err != nil {
		return nil, err
	}
	return New(kind), nil
}
