// Package events provides EventPublisher implementations: a no-op
// default and an optional Redis-backed publisher.
package events

import (
	"context"

	"taskorch/internal/domain"
)

// Noop discards every event. Used when REDIS_ADDR is unset, keeping
// the server a genuinely single-process, zero-external-dependency
// system per spec.md §1.
type Noop struct{}

func NewNoop() *Noop { return &Noop{} }

func (*Noop) Publish(context.Context, domain.TaskEvent) {}

func (*Noop) Close() error { return nil }
