// Package recovery implements the one-shot crash-recovery protocol of
// spec.md §4.4, run once before the scheduler's first tick.
package recovery

import (
	"context"

	"go.uber.org/zap"

	"taskorch/internal/apperr"
	"taskorch/internal/domain"
	"taskorch/internal/metrics"
	"taskorch/internal/store"
)

// Run lists every RUNNING task and version-gates it back to QUEUED
// with the interruption marker. A stale result is expected and
// ignored — per §4.4 it means another actor already moved the task.
//
// Grounded on the read-snapshot/guarded-write/ignore-no-op shape of
// teacher's coordinator.checkIfWorkflowFinished, applied here in the
// opposite direction (moving a task out of RUNNING rather than into
// it) through the same Store.UpdateStatus primitive.
func Run(ctx context.Context, s store.Store, log *zap.SugaredLogger) error {
	orphaned, err := s.ListByStatus(ctx, domain.StatusRunning)
	if err != nil {
		return err
	}

	if len(orphaned) == 0 {
		log.Info("recovery: no orphaned tasks found")
		return nil
	}

	log.Warnw("recovery: found orphaned tasks", "count", len(orphaned))

	marker := domain.InterruptedMarker
	for _, task := range orphaned {
		_, version, err := s.GetWithVersion(ctx, task.ID)
		if err != nil {
			if apperr.Is(err, apperr.ErrNotFound) {
				continue
			}
			return err
		}

		claimed, err := s.UpdateStatus(ctx, task.ID, domain.StatusQueued, version, domain.StatusUpdate{
			ClearStart: true,
			Error:      &marker,
		})
		if err != nil {
			return err
		}
		if !claimed {
			log.Debugw("recovery: task already moved by another actor", "task_id", task.ID)
			continue
		}

		metrics.RecoveredTasks.Inc()
		log.Infow("recovery: requeued orphaned task", "task_id", task.ID)
	}

	return nil
}
