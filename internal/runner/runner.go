// Package runner defines the pluggable task-execution contract of
// spec.md §1 and provides the reference sleep runner. Simplified from
// teacher's action-name-keyed TaskRegistry (internal/worker/registry.go)
// to a single interface, since spec.md's runner contract is one
// function — run(task) -> success | failure(reason) — not an
// action-dispatch table; the dispatch concept belonged to teacher's
// own workflow-action domain, not this one.
package runner

import (
	"context"
	"time"

	"taskorch/internal/domain"
)

// Result is the terminal outcome of running a task.
type Result struct {
	Success bool
	Reason  string // populated iff !Success
}

// Runner executes exactly one task and reports its outcome. It must
// not mutate the Store itself — the Scheduler owns the terminal write.
type Runner interface {
	Run(ctx context.Context, task *domain.Task) Result
}

// SleepRunner is the reference runner of §1: it sleeps for
// duration_ms and reports success.
type SleepRunner struct{}

func NewSleepRunner() *SleepRunner { return &SleepRunner{} }

func (*SleepRunner) Run(ctx context.Context, task *domain.Task) Result {
	select {
	case <-time.After(time.Duration(task.DurationMS) * time.Millisecond):
		return Result{Success: true}
	case <-ctx.Done():
		return Result{Success: false, Reason: ctx.Err().Error()}
	}
}
