package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"taskorch/internal/apperr"
	"taskorch/internal/domain"
)

// SQLiteStore is the gorm+sqlite implementation of Store: a single
// file, WAL-journaled, content-addressed by id. Grounded on
// aristath-orchestrator's NewSQLiteStore for the DSN/WAL/MkdirAll
// technique and on the teacher's task_repository_impl.go for the
// optimistic-locking Updates(map) pattern.
type SQLiteStore struct {
	db     *gorm.DB
	log    *zap.SugaredLogger
	cb     *gobreaker.CircuitBreaker
}

// Open creates parent directories if needed, opens the database with
// WAL mode and a busy timeout, migrates the schema, and returns a
// ready Store. A three-consecutive-failure circuit breaker wraps every
// call; once it trips, subsequent calls fail fast with
// apperr.ErrStoreFatal instead of blocking on a wedged file.
func Open(path string, log *zap.SugaredLogger) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL&_foreign_keys=on", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("unwrap sql.DB: %w", err)
	}
	// A single writer connection avoids SQLITE_BUSY under our own
	// concurrent claim attempts; WAL still allows concurrent readers.
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&taskRow{}); err != nil {
		return nil, fmt.Errorf("migrate schema: %w", err)
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "sqlite-store",
		MaxRequests: 1,
		Interval:    0,
		Timeout:     5 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		// A miss or a duplicate id is a normal, expected outcome of a
		// Get/Insert call, not a store failure — without this, three
		// consecutive 404s or 409s trip the breaker just as surely as
		// three consecutive disk errors would.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, gorm.ErrRecordNotFound) || isUniqueViolation(err)
		},
	})

	return &SQLiteStore{db: db, log: log, cb: cb}, nil
}

// run executes fn through the circuit breaker. Business-normal results
// (not-found, unique violation) and ordinary I/O errors pass back
// unchanged — only a breaker that has actually tripped open is
// translated into apperr.ErrStoreFatal, per §7's "three consecutive
// failures" contract. Callers translate the business-normal cases into
// their apperr kind themselves.
func (s *SQLiteStore) run(fn func() error) error {
	_, err := s.cb.Execute(func() (any, error) {
		return nil, fn()
	})
	if err == nil {
		return nil
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		s.log.Errorw("store circuit breaker open", "error", err)
		return apperr.StoreFatal(err)
	}
	return err
}

func (s *SQLiteStore) Insert(ctx context.Context, t *domain.Task) error {
	row, err := toRow(t)
	if err != nil {
		return apperr.StoreFatal(err)
	}
	row.Version = 0
	err = s.run(func() error {
		return s.db.WithContext(ctx).Create(row).Error
	})
	if err != nil {
		if isUniqueViolation(err) {
			return apperr.Conflict(t.ID)
		}
		return err
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (*domain.Task, error) {
	task, _, err := s.GetWithVersion(ctx, id)
	return task, err
}

func (s *SQLiteStore) GetWithVersion(ctx context.Context, id string) (*domain.Task, int, error) {
	var row taskRow
	err := s.run(func() error {
		return s.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, 0, apperr.NotFound(id)
		}
		return nil, 0, err
	}
	task, err := fromRow(&row)
	if err != nil {
		return nil, 0, apperr.StoreFatal(err)
	}
	return task, row.Version, nil
}

func (s *SQLiteStore) ListAll(ctx context.Context) ([]*domain.Task, error) {
	var rows []taskRow
	err := s.run(func() error {
		return s.db.WithContext(ctx).Order("created_at ASC, id ASC").Find(&rows).Error
	})
	if err != nil {
		return nil, err
	}
	return fromRows(rows)
}

func (s *SQLiteStore) ListByStatus(ctx context.Context, status domain.TaskStatus) ([]*domain.Task, error) {
	var rows []taskRow
	err := s.run(func() error {
		return s.db.WithContext(ctx).
			Where("status = ?", string(status)).
			Order("created_at ASC, id ASC").
			Find(&rows).Error
	})
	if err != nil {
		return nil, err
	}
	return fromRows(rows)
}

func (s *SQLiteStore) UpdateStatus(ctx context.Context, id string, newStatus domain.TaskStatus, expectedVersion int, updates domain.StatusUpdate) (bool, error) {
	fields := map[string]any{
		"status":  string(newStatus),
		"version": expectedVersion + 1,
	}
	if updates.ClearStart {
		fields["started_at"] = nil
	} else if updates.StartedAt != nil {
		fields["started_at"] = *updates.StartedAt
	}
	if updates.CompletedAt != nil {
		fields["completed_at"] = *updates.CompletedAt
	}
	if updates.Error != nil {
		fields["error"] = *updates.Error
	}
	if updates.RetryCount != nil {
		fields["retry_count"] = *updates.RetryCount
	}

	var claimed bool
	err := s.run(func() error {
		res := s.db.WithContext(ctx).
			Model(&taskRow{}).
			Where("id = ? AND version = ?", id, expectedVersion).
			Updates(fields)
		if res.Error != nil {
			return res.Error
		}
		claimed = res.RowsAffected > 0
		return nil
	})
	if err != nil {
		return false, err
	}
	return claimed, nil
}

func (s *SQLiteStore) Stats(ctx context.Context) (StatusCounts, error) {
	type row struct {
		Status string
		N      int
	}
	var rows []row
	err := s.run(func() error {
		return s.db.WithContext(ctx).
			Model(&taskRow{}).
			Select("status, count(*) as n").
			Group("status").
			Scan(&rows).Error
	})
	if err != nil {
		return nil, err
	}
	counts := StatusCounts{}
	for _, r := range rows {
		counts[domain.TaskStatus(r.Status)] = r.N
	}
	return counts, nil
}

func (s *SQLiteStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func fromRows(rows []taskRow) ([]*domain.Task, error) {
	tasks := make([]*domain.Task, 0, len(rows))
	for i := range rows {
		t, err := fromRow(&rows[i])
		if err != nil {
			return nil, apperr.StoreFatal(err)
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}

func isUniqueViolation(err error) bool {
	// mattn/go-sqlite3 reports UNIQUE constraint violations with this
	// substring; gorm doesn't normalize sqlite error codes the way it
	// does for postgres/mysql.
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "unique constraint")
}
