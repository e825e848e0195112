package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"taskorch/internal/apperr"
	"taskorch/internal/domain"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	log := zap.NewNop().Sugar()
	path := filepath.Join(t.TempDir(), "tasks.db")
	s, err := Open(path, log)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleTask(id string, deps ...string) *domain.Task {
	return &domain.Task{
		ID:           id,
		Type:         "noop",
		DurationMS:   0,
		Dependencies: deps,
		Status:       domain.StatusQueued,
		CreatedAt:    time.Now(),
	}
}

func TestInsertAndGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	task := sampleTask("a")
	if err := s.Insert(ctx, task); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	got, err := s.Get(ctx, "a")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.ID != "a" || got.Type != "noop" || got.Version != 0 {
		t.Errorf("Get returned unexpected task: %+v", got)
	}
}

func TestInsertDuplicateReturnsConflict(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.Insert(ctx, sampleTask("dup")); err != nil {
		t.Fatalf("first Insert: %v", err)
	}
	err := s.Insert(ctx, sampleTask("dup"))
	if !apperr.Is(err, apperr.ErrConflict) {
		t.Fatalf("second Insert error = %v, want ErrConflict", err)
	}
}

func TestGetMissingReturnsNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Get(context.Background(), "missing")
	if !apperr.Is(err, apperr.ErrNotFound) {
		t.Fatalf("Get error = %v, want ErrNotFound", err)
	}
}

func TestUpdateStatusVersionGating(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.Insert(ctx, sampleTask("x")); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	now := time.Now()
	claimed, err := s.UpdateStatus(ctx, "x", domain.StatusRunning, 0, domain.StatusUpdate{StartedAt: &now})
	if err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if !claimed {
		t.Fatal("expected claim to succeed with correct version")
	}

	// Stale expected version must not apply.
	claimed, err = s.UpdateStatus(ctx, "x", domain.StatusRunning, 0, domain.StatusUpdate{StartedAt: &now})
	if err != nil {
		t.Fatalf("UpdateStatus (stale): %v", err)
	}
	if claimed {
		t.Fatal("expected stale claim to be rejected")
	}

	got, err := s.Get(ctx, "x")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != domain.StatusRunning || got.Version != 1 {
		t.Errorf("got status=%s version=%d, want RUNNING/1", got.Status, got.Version)
	}
}

func TestListReadyRespectsDependencies(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := sampleTask("a")
	a.Status = domain.StatusQueued
	if err := s.Insert(ctx, a); err != nil {
		t.Fatalf("Insert a: %v", err)
	}

	b := sampleTask("b", "a")
	b.Status = domain.StatusWaiting
	if err := s.Insert(ctx, b); err != nil {
		t.Fatalf("Insert b: %v", err)
	}

	ready, err := s.ListReady(ctx)
	if err != nil {
		t.Fatalf("ListReady: %v", err)
	}
	if len(ready) != 1 || ready[0].ID != "a" {
		t.Fatalf("ListReady = %v, want only [a]", idsOf(ready))
	}

	now := time.Now()
	if _, err := s.UpdateStatus(ctx, "a", domain.StatusRunning, 0, domain.StatusUpdate{StartedAt: &now}); err != nil {
		t.Fatalf("claim a: %v", err)
	}
	if _, err := s.UpdateStatus(ctx, "a", domain.StatusCompleted, 1, domain.StatusUpdate{CompletedAt: &now}); err != nil {
		t.Fatalf("complete a: %v", err)
	}

	ready, err = s.ListReady(ctx)
	if err != nil {
		t.Fatalf("ListReady after completion: %v", err)
	}
	if len(ready) != 1 || ready[0].ID != "b" {
		t.Fatalf("ListReady after a completed = %v, want only [b]", idsOf(ready))
	}
}

func TestRepeatedNotFoundAndConflictDoNotTripBreaker(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.Insert(ctx, sampleTask("dup")); err != nil {
		t.Fatalf("seed Insert: %v", err)
	}

	// More than the three-consecutive-failure threshold of ordinary
	// business outcomes must never open the breaker.
	for i := 0; i < 5; i++ {
		if _, err := s.Get(ctx, "missing"); !apperr.Is(err, apperr.ErrNotFound) {
			t.Fatalf("Get(missing) iteration %d error = %v, want ErrNotFound", i, err)
		}
		if err := s.Insert(ctx, sampleTask("dup")); !apperr.Is(err, apperr.ErrConflict) {
			t.Fatalf("Insert(dup) iteration %d error = %v, want ErrConflict", i, err)
		}
	}

	// The breaker should still be closed: a perfectly normal call must
	// succeed rather than fail fast with ErrStoreFatal.
	if err := s.Insert(ctx, sampleTask("fresh")); err != nil {
		t.Fatalf("Insert(fresh) after repeated business errors: %v", err)
	}
}

func TestStats(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.Insert(ctx, sampleTask("a")); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	b := sampleTask("b", "a")
	b.Status = domain.StatusWaiting
	if err := s.Insert(ctx, b); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	counts, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if counts[domain.StatusQueued] != 1 || counts[domain.StatusWaiting] != 1 {
		t.Errorf("Stats = %+v, want queued=1 waiting=1", counts)
	}
}

func idsOf(tasks []*domain.Task) []string {
	ids := make([]string, len(tasks))
	for i, t := range tasks {
		ids[i] = t.ID
	}
	return ids
}
