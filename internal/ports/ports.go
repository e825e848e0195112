// Package ports defines the small collaborator interfaces the core
// depends on but does not implement itself — the event bus is the only
// one, since Store already lives in its own package as the primary
// port of §4.1.
package ports

import (
	"context"

	"taskorch/internal/domain"
)

// EventPublisher publishes lifecycle events for external observers.
// It is best-effort: a publish failure is logged, never returned to
// the caller, since event delivery is not one of spec.md's correctness
// properties.
type EventPublisher interface {
	Publish(ctx context.Context, event domain.TaskEvent)
	Close() error
}
