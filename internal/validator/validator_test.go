package validator

import (
	"context"
	"sync"
	"testing"
	"time"

	"taskorch/internal/apperr"
	"taskorch/internal/domain"
	"taskorch/internal/store"
)

// fakeStore is an in-memory store.Store used to exercise the validator
// without pulling in sqlite. It implements just enough of the
// interface's contract (version-gated UpdateStatus, ErrNotFound on
// missing ids) for these tests.
type fakeStore struct {
	mu    sync.Mutex
	tasks map[string]*domain.Task
}

func newFakeStore() *fakeStore {
	return &fakeStore{tasks: make(map[string]*domain.Task)}
}

func (f *fakeStore) put(t *domain.Task) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *t
	f.tasks[t.ID] = &cp
}

func (f *fakeStore) Insert(ctx context.Context, t *domain.Task) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.tasks[t.ID]; ok {
		return apperr.Conflict(t.ID)
	}
	cp := *t
	f.tasks[t.ID] = &cp
	return nil
}

func (f *fakeStore) Get(ctx context.Context, id string) (*domain.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tasks[id]
	if !ok {
		return nil, apperr.NotFound(id)
	}
	cp := *t
	return &cp, nil
}

func (f *fakeStore) GetWithVersion(ctx context.Context, id string) (*domain.Task, int, error) {
	t, err := f.Get(ctx, id)
	if err != nil {
		return nil, 0, err
	}
	return t, t.Version, nil
}

func (f *fakeStore) ListAll(ctx context.Context) ([]*domain.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*domain.Task, 0, len(f.tasks))
	for _, t := range f.tasks {
		cp := *t
		out = append(out, &cp)
	}
	return out, nil
}

func (f *fakeStore) ListByStatus(ctx context.Context, status domain.TaskStatus) ([]*domain.Task, error) {
	all, _ := f.ListAll(ctx)
	out := make([]*domain.Task, 0)
	for _, t := range all {
		if t.Status == status {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeStore) ListReady(ctx context.Context) ([]*domain.Task, error) {
	return nil, nil
}

func (f *fakeStore) UpdateStatus(ctx context.Context, id string, newStatus domain.TaskStatus, expectedVersion int, updates domain.StatusUpdate) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tasks[id]
	if !ok {
		return false, apperr.NotFound(id)
	}
	if t.Version != expectedVersion {
		return false, nil
	}
	t.Status = newStatus
	t.Version++
	return true, nil
}

func (f *fakeStore) Stats(ctx context.Context) (store.StatusCounts, error) {
	return nil, nil
}

func (f *fakeStore) Close() error { return nil }

func mustValidate(t *testing.T, v *Validator, req SubmitRequest) map[string]domain.TaskStatus {
	t.Helper()
	snapshot, err := v.Validate(context.Background(), req)
	if err != nil {
		t.Fatalf("Validate(%q) unexpected error: %v", req.ID, err)
	}
	return snapshot
}

func TestValidateEmptyID(t *testing.T) {
	v := New(newFakeStore())
	_, err := v.Validate(context.Background(), SubmitRequest{Type: "noop"})
	if !apperr.Is(err, apperr.ErrValidation) {
		t.Fatalf("error = %v, want ErrValidation", err)
	}
}

func TestValidateEmptyType(t *testing.T) {
	v := New(newFakeStore())
	_, err := v.Validate(context.Background(), SubmitRequest{ID: "a"})
	if !apperr.Is(err, apperr.ErrValidation) {
		t.Fatalf("error = %v, want ErrValidation", err)
	}
}

func TestValidateNegativeDuration(t *testing.T) {
	v := New(newFakeStore())
	_, err := v.Validate(context.Background(), SubmitRequest{ID: "a", Type: "noop", DurationMS: -1})
	if !apperr.Is(err, apperr.ErrValidation) {
		t.Fatalf("error = %v, want ErrValidation", err)
	}
}

func TestValidateDuplicateID(t *testing.T) {
	fs := newFakeStore()
	fs.put(&domain.Task{ID: "a", Type: "noop", Status: domain.StatusQueued})
	v := New(fs)
	_, err := v.Validate(context.Background(), SubmitRequest{ID: "a", Type: "noop"})
	if !apperr.Is(err, apperr.ErrConflict) {
		t.Fatalf("error = %v, want ErrConflict", err)
	}
}

func TestValidateEmptyDependencyString(t *testing.T) {
	v := New(newFakeStore())
	_, err := v.Validate(context.Background(), SubmitRequest{ID: "a", Type: "noop", Dependencies: []string{""}})
	if !apperr.Is(err, apperr.ErrValidation) {
		t.Fatalf("error = %v, want ErrValidation", err)
	}
}

func TestValidateSelfDependency(t *testing.T) {
	v := New(newFakeStore())
	_, err := v.Validate(context.Background(), SubmitRequest{ID: "a", Type: "noop", Dependencies: []string{"a"}})
	if !apperr.Is(err, apperr.ErrValidation) {
		t.Fatalf("error = %v, want ErrValidation", err)
	}
}

func TestValidateMissingDependency(t *testing.T) {
	v := New(newFakeStore())
	_, err := v.Validate(context.Background(), SubmitRequest{ID: "a", Type: "noop", Dependencies: []string{"missing"}})
	if !apperr.Is(err, apperr.ErrValidation) {
		t.Fatalf("error = %v, want ErrValidation", err)
	}
}

// TestValidateDirectCycle builds the chain b->a, c->b, d->c and checks
// that closing it with a->d (a 4-cycle) is rejected.
func TestValidateDirectCycle(t *testing.T) {
	fs := newFakeStore()
	fs.put(&domain.Task{ID: "a", Type: "noop", Status: domain.StatusQueued, Dependencies: []string{}})
	fs.put(&domain.Task{ID: "b", Type: "noop", Status: domain.StatusWaiting, Dependencies: []string{"a"}})
	fs.put(&domain.Task{ID: "c", Type: "noop", Status: domain.StatusWaiting, Dependencies: []string{"b"}})
	fs.put(&domain.Task{ID: "d", Type: "noop", Status: domain.StatusWaiting, Dependencies: []string{"c"}})
	v := New(fs)

	_, err := v.checkAcyclicPublic("a", []string{"d"})
	if !apperr.Is(err, apperr.ErrValidation) {
		t.Fatalf("error = %v, want ErrValidation (cycle a -> d -> c -> b -> a)", err)
	}
}

func TestValidateNoCycleForDiamondDependency(t *testing.T) {
	fs := newFakeStore()
	fs.put(&domain.Task{ID: "a", Type: "noop", Status: domain.StatusCompleted, Dependencies: []string{}})
	fs.put(&domain.Task{ID: "b", Type: "noop", Status: domain.StatusWaiting, Dependencies: []string{"a"}})
	fs.put(&domain.Task{ID: "c", Type: "noop", Status: domain.StatusWaiting, Dependencies: []string{"a"}})
	v := New(fs)

	snapshot := mustValidate(t, v, SubmitRequest{ID: "d", Type: "noop", Dependencies: []string{"b", "c"}})
	if len(snapshot) != 2 {
		t.Fatalf("snapshot = %v, want entries for b and c", snapshot)
	}
}

func TestMaterializeQueuedWhenNoDependencies(t *testing.T) {
	task := Materialize(SubmitRequest{ID: "a", Type: "noop"}, nil)
	if task.Status != domain.StatusQueued {
		t.Errorf("Status = %s, want QUEUED", task.Status)
	}
}

func TestMaterializeQueuedWhenAllDependenciesCompleted(t *testing.T) {
	snapshot := map[string]domain.TaskStatus{"a": domain.StatusCompleted, "b": domain.StatusCompleted}
	task := Materialize(SubmitRequest{ID: "c", Type: "noop", Dependencies: []string{"a", "b"}}, snapshot)
	if task.Status != domain.StatusQueued {
		t.Errorf("Status = %s, want QUEUED", task.Status)
	}
}

func TestMaterializeWaitingWhenAnyDependencyIncomplete(t *testing.T) {
	snapshot := map[string]domain.TaskStatus{"a": domain.StatusCompleted, "b": domain.StatusRunning}
	task := Materialize(SubmitRequest{ID: "c", Type: "noop", Dependencies: []string{"a", "b"}}, snapshot)
	if task.Status != domain.StatusWaiting {
		t.Errorf("Status = %s, want WAITING", task.Status)
	}
}

func TestMaterializeNeverEmitsNilDependencies(t *testing.T) {
	task := Materialize(SubmitRequest{ID: "a", Type: "noop"}, nil)
	if task.Dependencies == nil {
		t.Error("Dependencies should default to an empty slice, not nil")
	}
}

// checkAcyclicPublic exposes checkAcyclic for the direct-cycle test
// above without going through Validate's earlier checks (which would
// reject "a" as already existing before reaching the cycle check).
func (v *Validator) checkAcyclicPublic(id string, dependencies []string) (map[string]domain.TaskStatus, error) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	return nil, v.checkAcyclic(ctx, id, dependencies)
}
