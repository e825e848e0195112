// Package scheduler implements the polling scheduling loop of spec.md
// §4.3: discover ready tasks, bound concurrency, claim, and hand off
// to the runner.
package scheduler

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"taskorch/internal/apperr"
	"taskorch/internal/domain"
	"taskorch/internal/metrics"
	"taskorch/internal/ports"
	"taskorch/internal/runner"
	"taskorch/internal/store"
)

// Config holds the two tunables of §4.3.
type Config struct {
	MaxConcurrent int
	PollInterval  time.Duration
}

// Scheduler is the long-running loop described in §4.3/§5. It owns a
// single goroutine driving the periodic tick; task execution happens
// on separate goroutines spawned per claim, bounded by a
// golang.org/x/sync/semaphore.Weighted rather than hand-rolled slot
// arithmetic (grounded on aristath-orchestrator's direct dependency on
// golang.org/x/sync).
type Scheduler struct {
	store    store.Store
	runner   runner.Runner
	events   ports.EventPublisher
	log      *zap.SugaredLogger
	cfg      Config

	sem      *semaphore.Weighted
	inFlight *inFlightSet

	wake chan struct{}
	stop chan struct{}
	once sync.Once

	// onFatal is invoked at most once, the first time a Store call
	// returns apperr.ErrStoreFatal, so main.go can begin the graceful
	// shutdown §7 calls for ("Store-fatal errors propagate up ...
	// causes graceful shutdown initiation").
	onFatal     func(error)
	fatalCalled sync.Once
}

// New constructs a Scheduler. onFatal may be nil.
func New(s store.Store, r runner.Runner, ev ports.EventPublisher, log *zap.SugaredLogger, cfg Config, onFatal func(error)) *Scheduler {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 100 * time.Millisecond
	}
	if onFatal == nil {
		onFatal = func(error) {}
	}
	return &Scheduler{
		store:    s,
		runner:   r,
		events:   ev,
		log:      log,
		cfg:      cfg,
		sem:      semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
		inFlight: newInFlightSet(),
		wake:     make(chan struct{}, 1),
		stop:     make(chan struct{}),
		onFatal:  onFatal,
	}
}

// Run drives the scheduling loop until ctx is cancelled or Stop is
// called. It blocks; callers run it in a goroutine.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stop:
			return
		case <-ticker.C:
			s.tick(ctx)
		case <-s.wake:
			s.tick(ctx)
		}
	}
}

// Stop halts further scheduling ticks. In-flight runners are not
// cancelled — they complete naturally, per §4.3's cancellation policy.
func (s *Scheduler) Stop() {
	s.once.Do(func() { close(s.stop) })
}

// triggerWake requests one additional scheduling pass without waiting
// for the next tick, per §4.3's runner-handoff contract.
func (s *Scheduler) triggerWake() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	free := s.cfg.MaxConcurrent - s.inFlight.len()
	if free <= 0 {
		return
	}

	ready, err := s.store.ListReady(ctx)
	if err != nil {
		s.handleStoreErr(err)
		return
	}

	sort.SliceStable(ready, func(i, j int) bool {
		if !ready[i].CreatedAt.Equal(ready[j].CreatedAt) {
			return ready[i].CreatedAt.Before(ready[j].CreatedAt)
		}
		return ready[i].ID < ready[j].ID
	})

	if len(ready) > free {
		ready = ready[:free]
	}

	for _, task := range ready {
		s.attemptClaim(ctx, task)
	}
}

func (s *Scheduler) attemptClaim(ctx context.Context, task *domain.Task) {
	if !s.sem.TryAcquire(1) {
		return
	}

	now := time.Now()
	claimed, err := s.store.UpdateStatus(ctx, task.ID, domain.StatusRunning, task.Version, domain.StatusUpdate{StartedAt: &now})
	if err != nil {
		s.sem.Release(1)
		s.handleStoreErr(err)
		return
	}
	if !claimed {
		s.sem.Release(1)
		metrics.StaleClaims.Inc()
		return
	}

	s.inFlight.add(task.ID)
	metrics.InFlight.Set(float64(s.inFlight.len()))

	claimedTask := *task
	claimedTask.Status = domain.StatusRunning
	claimedTask.StartedAt = &now
	claimedTask.Version = task.Version + 1

	s.events.Publish(ctx, domain.TaskEvent{
		Kind:      domain.EventStarted,
		TaskID:    task.ID,
		Type:      task.Type,
		Status:    string(domain.StatusRunning),
		Timestamp: now,
	})

	// Runner execution is detached from ctx's cancellation: Stop/shutdown
	// stops ticking but must not abort a task already running (§4.3/§5 —
	// "stop() ... does NOT cancel in-flight Runners"). context.WithoutCancel
	// still carries ctx's values, just not its Done channel.
	go s.execute(context.WithoutCancel(ctx), &claimedTask)
}

// execute runs the task and performs the terminal write. The version
// used for the terminal write is re-fetched immediately beforehand
// rather than assumed to be claim_version+1 — spec.md §9's chosen
// resolution of that open question. ctx here is already detached from
// scheduler shutdown (see attemptClaim), so the terminal write always
// has a chance to land regardless of when shutdown was requested.
func (s *Scheduler) execute(ctx context.Context, task *domain.Task) {
	result := s.runner.Run(ctx, task)

	_, version, err := s.store.GetWithVersion(ctx, task.ID)
	if err != nil {
		s.log.Errorw("failed to re-fetch task before terminal write", "task_id", task.ID, "error", err)
		s.handleStoreErr(err)
		s.finishInFlight(task.ID)
		return
	}

	now := time.Now()
	var claimed bool
	if result.Success {
		claimed, err = s.store.UpdateStatus(ctx, task.ID, domain.StatusCompleted, version, domain.StatusUpdate{CompletedAt: &now})
		if err == nil && claimed {
			metrics.TasksCompleted.Inc()
			s.events.Publish(ctx, domain.TaskEvent{
				Kind: domain.EventCompleted, TaskID: task.ID, Type: task.Type,
				Status: string(domain.StatusCompleted), Timestamp: now,
			})
		}
	} else {
		reason := result.Reason
		if reason == "" {
			reason = apperr.ErrRunnerFailure.Error()
		}
		claimed, err = s.store.UpdateStatus(ctx, task.ID, domain.StatusFailed, version, domain.StatusUpdate{CompletedAt: &now, Error: &reason})
		if err == nil && claimed {
			metrics.TasksFailed.Inc()
			s.events.Publish(ctx, domain.TaskEvent{
				Kind: domain.EventFailed, TaskID: task.ID, Type: task.Type,
				Status: string(domain.StatusFailed), Error: reason, Timestamp: now,
			})
		}
	}
	if err != nil {
		s.handleStoreErr(err)
	} else if !claimed {
		// Another actor (recovery, a future maintenance pass) advanced
		// the version between claim and terminal write. Per §9 this is
		// an accepted race; the task's true state is whatever that
		// other write left it in.
		metrics.StaleClaims.Inc()
	}

	s.finishInFlight(task.ID)
}

func (s *Scheduler) finishInFlight(id string) {
	s.inFlight.remove(id)
	s.sem.Release(1)
	metrics.InFlight.Set(float64(s.inFlight.len()))
	s.triggerWake()
}

func (s *Scheduler) handleStoreErr(err error) {
	if errors.Is(err, apperr.ErrStoreFatal) {
		s.log.Errorw("store fatal error, initiating shutdown", "error", err)
		s.fatalCalled.Do(func() { s.onFatal(err) })
		return
	}
	s.log.Warnw("store error during scheduling", "error", err)
}

// RuntimeStats reports the fields §6's /api/stats needs beyond the
// Store's status counts: the configured bound, the ids currently
// running, and the remaining slot count.
type RuntimeStats struct {
	MaxConcurrentTasks int
	CurrentlyRunning   []string
	SlotsAvailable     int
}

// AwaitDrain blocks until no tasks remain in flight or ctx is done,
// polling on a short interval. It reports whether the set drained
// before ctx expired — the "await in-flight runners for up to 10s"
// half of §6's shutdown contract (the HTTP half is srv.Shutdown).
func (s *Scheduler) AwaitDrain(ctx context.Context) bool {
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	for {
		if s.inFlight.len() == 0 {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) RuntimeStats() RuntimeStats {
	running := s.inFlight.snapshot()
	sort.Strings(running)
	return RuntimeStats{
		MaxConcurrentTasks: s.cfg.MaxConcurrent,
		CurrentlyRunning:   running,
		SlotsAvailable:     s.cfg.MaxConcurrent - len(running),
	}
}
