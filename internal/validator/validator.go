// Package validator implements spec.md §4.2: the eight ordered
// submission checks, DFS cycle detection, and the initial-status
// decision.
package validator

import (
	"context"
	"time"

	"taskorch/internal/apperr"
	"taskorch/internal/domain"
	"taskorch/internal/store"
)

// SubmitRequest is the caller-supplied shape of a new task, prior to
// validation. Dependencies defaults to empty when omitted.
type SubmitRequest struct {
	ID           string
	Type         string
	DurationMS   int
	Dependencies []string
}

// Validator gatekeeps submissions against a Store snapshot. It holds
// no state of its own — every check reads the Store fresh, per §4.2's
// "pure with respect to a store snapshot."
type Validator struct {
	store store.Store
}

func New(s store.Store) *Validator {
	return &Validator{store: s}
}

// Validate runs the eight ordered checks of §4.2, first failure wins.
// On success it returns the dependency statuses read by check 7, for
// Materialize's initial-status decision. The cycle check (check 8)
// reads the store again on its own, so the two do not share one
// snapshot: a dependency whose status changes between those reads is
// classified by the status check 7 saw.
func (v *Validator) Validate(ctx context.Context, req SubmitRequest) (map[string]domain.TaskStatus, error) {
	// 1. id present, non-empty.
	if req.ID == "" {
		return nil, apperr.ValidationMsg("id is required and must be a non-empty string")
	}
	// 2. type present, non-empty.
	if req.Type == "" {
		return nil, apperr.ValidationMsg("type is required and must be a non-empty string")
	}
	// 3. duration_ms >= 0.
	if req.DurationMS < 0 {
		return nil, apperr.ValidationMsg("duration_ms must be a number >= 0")
	}
	// 4. id must not already exist.
	if _, err := v.store.Get(ctx, req.ID); err == nil {
		return nil, apperr.Conflict(req.ID)
	} else if !apperr.Is(err, apperr.ErrNotFound) {
		return nil, err
	}
	// 5. dependencies is a sequence of non-empty strings.
	for _, d := range req.Dependencies {
		if d == "" {
			return nil, apperr.ValidationMsg("dependencies must be non-empty strings")
		}
	}
	// 6. no self-dependency.
	for _, d := range req.Dependencies {
		if d == req.ID {
			return nil, apperr.Validation("task %q cannot depend on itself", req.ID)
		}
	}
	// 7. every dependency must already exist. Also builds the status
	// snapshot returned for Materialize.
	snapshot := make(map[string]domain.TaskStatus, len(req.Dependencies))
	for _, d := range req.Dependencies {
		dep, err := v.store.Get(ctx, d)
		if err != nil {
			if apperr.Is(err, apperr.ErrNotFound) {
				return nil, apperr.Validation("dependency %q does not exist", d)
			}
			return nil, err
		}
		snapshot[d] = dep.Status
	}
	// 8. adding {id -> d | d in dependencies} must not create a cycle.
	if err := v.checkAcyclic(ctx, req.ID, req.Dependencies); err != nil {
		return nil, err
	}

	return snapshot, nil
}

// checkAcyclic performs a DFS from each declared dependency, searching
// for id as a target. If id is reachable from any dependency through
// the existing (committed) dependency edges, adding id -> dependency
// would close a cycle. This mirrors the DFS/coloring cycle search used
// elsewhere in the retrieval pack (script-weaver's
// findCycleDeterministic) rather than a general topological-sort
// library, because the candidate edges from id are not yet committed
// to the store — there is nothing yet to topologically sort.
func (v *Validator) checkAcyclic(ctx context.Context, id string, dependencies []string) error {
	visited := make(map[string]bool)

	var dfs func(current string) (bool, error)
	dfs = func(current string) (bool, error) {
		if current == id {
			return true, nil
		}
		if visited[current] {
			return false, nil
		}
		visited[current] = true

		task, err := v.store.Get(ctx, current)
		if err != nil {
			// Already validated to exist in check 7; a concurrent
			// mutation racing us here is harmless — nothing to search
			// through means no path found via this branch.
			if apperr.Is(err, apperr.ErrNotFound) {
				return false, nil
			}
			return false, err
		}
		for _, next := range task.Dependencies {
			found, err := dfs(next)
			if err != nil {
				return false, err
			}
			if found {
				return true, nil
			}
		}
		return false, nil
	}

	for _, d := range dependencies {
		found, err := dfs(d)
		if err != nil {
			return err
		}
		if found {
			return apperr.Validation("adding task %q would create a cycle through dependency %q", id, d)
		}
	}
	return nil
}

// Materialize builds the initial Task record from a validated request
// and the snapshot Validate observed. Per §4.2: QUEUED if dependencies
// is empty or every dependency is COMPLETED in the snapshot, else
// WAITING.
func Materialize(req SubmitRequest, snapshot map[string]domain.TaskStatus) *domain.Task {
	status := domain.StatusWaiting
	if domain.DependenciesSatisfied(req.Dependencies, func(id string) (domain.TaskStatus, bool) {
		st, ok := snapshot[id]
		return st, ok
	}) {
		status = domain.StatusQueued
	}

	deps := req.Dependencies
	if deps == nil {
		deps = []string{}
	}

	return &domain.Task{
		ID:           req.ID,
		Type:         req.Type,
		DurationMS:   req.DurationMS,
		Dependencies: deps,
		Status:       status,
		CreatedAt:    time.Now(),
		RetryCount:   0,
		Version:      0,
	}
}

