package store

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"

	"taskorch/internal/domain"
)

// taskRow is the gorm-mapped row. Dependencies is stored as a JSON
// array of ids (gorm.io/datatypes.JSON, teacher's convention for
// Task.Dependencies) rather than a join table — spec.md models
// dependencies as "a set of task ids, encoded as an ordered sequence
// for stability," which a JSON array represents directly, and doubles
// as the operand for the json_each-based readiness query in query.go.
type taskRow struct {
	ID           string `gorm:"primaryKey"`
	Type         string
	DurationMS   int
	Dependencies datatypes.JSON
	Status       string `gorm:"index"`
	CreatedAt    time.Time `gorm:"index"`
	StartedAt    *time.Time
	CompletedAt  *time.Time
	Error        *string
	RetryCount   int
	Version      int
}

func (taskRow) TableName() string { return "tasks" }

func toRow(t *domain.Task) (*taskRow, error) {
	deps := t.Dependencies
	if deps == nil {
		deps = []string{}
	}
	depJSON, err := json.Marshal(deps)
	if err != nil {
		return nil, err
	}
	return &taskRow{
		ID:           t.ID,
		Type:         t.Type,
		DurationMS:   t.DurationMS,
		Dependencies: datatypes.JSON(depJSON),
		Status:       string(t.Status),
		CreatedAt:    t.CreatedAt,
		StartedAt:    t.StartedAt,
		CompletedAt:  t.CompletedAt,
		Error:        t.Error,
		RetryCount:   t.RetryCount,
		Version:      t.Version,
	}, nil
}

func fromRow(r *taskRow) (*domain.Task, error) {
	var deps []string
	if len(r.Dependencies) > 0 {
		if err := json.Unmarshal(r.Dependencies, &deps); err != nil {
			return nil, err
		}
	}
	return &domain.Task{
		ID:           r.ID,
		Type:         r.Type,
		DurationMS:   r.DurationMS,
		Dependencies: deps,
		Status:       domain.TaskStatus(r.Status),
		CreatedAt:    r.CreatedAt,
		StartedAt:    r.StartedAt,
		CompletedAt:  r.CompletedAt,
		Error:        r.Error,
		RetryCount:   r.RetryCount,
		Version:      r.Version,
	}, nil
}
