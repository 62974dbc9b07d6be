package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Lifecycle event types.
const (
	TypeTaskSubmitted = "task_submitted"
	TypeTaskCompleted = "task_completed"
	TypeTaskFailed    = "task_failed"
)

// TaskEvent describes one lifecycle transition of a task. It carries plain
// values rather than task package types so observers need no knowledge of
// the queue internals.
type TaskEvent struct {
	// ID is a unique identifier for this event
	ID uuid.UUID `json:"id"`

	// Type is one of the lifecycle event type constants
	Type string `json:"type"`

	// TaskID identifies the task the event is about
	TaskID uuid.UUID `json:"task_id"`

	// Kind is the task's handler kind
	Kind string `json:"kind"`

	// Error carries the failure message for TypeTaskFailed events
	Error string `json:"error,omitempty"`

	// OccurredAt is the timestamp when the event was created
	OccurredAt time.Time `json:"occurred_at"`
}

// NewTaskEvent creates a lifecycle event for the given task.
func NewTaskEvent(eventType string, taskID uuid.UUID, kind, errMsg string) *TaskEvent {
	return &TaskEvent{
		ID:         uuid.New(),
		Type:       eventType,
		TaskID:     taskID,
		Kind:       kind,
		Error:      errMsg,
		OccurredAt: time.Now(),
	}
}

// EventHandler defines an interface for components that can handle events.
type EventHandler interface {
	// HandleEvent processes the given event within the provided context.
	// Returns an error if the event cannot be handled successfully.
	HandleEvent(ctx context.Context, event *TaskEvent) error
}

// EventEmitter defines an interface for components that can emit events.
// This allows the task subsystem to publish lifecycle transitions without
// direct knowledge of the observers.
type EventEmitter interface {
	// EmitEvent publishes the given event to all registered handlers.
	EmitEvent(ctx context.Context, event *TaskEvent) error

	// RegisterHandler adds a handler that will receive future events.
	RegisterHandler(handler EventHandler)
}
