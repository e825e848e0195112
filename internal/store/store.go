// Package store implements the durable, crash-safe, version-gated task
// repository of spec.md §4.1.
package store

import (
	"context"

	"taskorch/internal/domain"
)

// StatusCounts is the result of Stats(): the number of tasks currently
// in each status.
type StatusCounts map[domain.TaskStatus]int

// Store is the sole mutation and query surface for Task records.
// Implementations must guarantee that concurrent UpdateStatus calls
// for the same id are linearized: exactly one observes the matching
// version and returns claimed==true.
type Store interface {
	// Insert persists a brand new task record with version 0. Returns
	// apperr.ErrConflict if id already exists.
	Insert(ctx context.Context, t *domain.Task) error

	// Get returns the full record, or apperr.ErrNotFound.
	Get(ctx context.Context, id string) (*domain.Task, error)

	// GetWithVersion is Get plus the version, for use immediately
	// before a versioned write.
	GetWithVersion(ctx context.Context, id string) (*domain.Task, int, error)

	// ListAll returns every task ordered by created_at ascending.
	ListAll(ctx context.Context) ([]*domain.Task, error)

	// ListByStatus returns every task in the given status, ordered by
	// created_at ascending.
	ListByStatus(ctx context.Context, status domain.TaskStatus) ([]*domain.Task, error)

	// ListReady returns every task in WAITING or QUEUED whose
	// dependencies (if any) are all COMPLETED, ordered by created_at
	// ascending then id ascending — the FIFO order §4.3 claims from.
	// Implemented as an indexed query rather than a full in-memory
	// scan, per spec.md §9's open permission to do so.
	ListReady(ctx context.Context) ([]*domain.Task, error)

	// UpdateStatus is the sole mutation primitive: it applies iff the
	// stored version equals expectedVersion, incrementing version by
	// exactly 1 and applying updates. claimed reports whether the
	// write took effect; claimed==false ("stale") is not an error.
	UpdateStatus(ctx context.Context, id string, newStatus domain.TaskStatus, expectedVersion int, updates domain.StatusUpdate) (claimed bool, err error)

	// Stats returns a count of tasks by status.
	Stats(ctx context.Context) (StatusCounts, error)

	// Close releases underlying resources.
	Close() error
}
