package domain

import "time"

// EventKind names the lifecycle events published on the event bus.
type EventKind string

const (
	EventSubmitted EventKind = "task.submitted"
	EventStarted   EventKind = "task.started"
	EventCompleted EventKind = "task.completed"
	EventFailed    EventKind = "task.failed"
)

// TaskEvent is the payload published for every lifecycle transition
// worth telling external observers about. It is deliberately flat and
// keyed by the task id alone — spec.md has no workflow/execution
// grouping concept to key events by.
type TaskEvent struct {
	Kind      EventKind `json:"kind"`
	TaskID    string    `json:"task_id"`
	Type      string    `json:"type"`
	Status    string    `json:"status"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
