package store

import (
	"context"

	"taskorch/internal/domain"
)

// readyQuery selects every task in WAITING or QUEUED whose dependency
// list is empty or every listed id resolves to a COMPLETED task. It
// uses sqlite's json_each table-valued function (bundled with
// mattn/go-sqlite3) to correlate against the JSON-array Dependencies
// column instead of loading every task into the scheduler process —
// the indexed-query alternative spec.md §9 explicitly permits in place
// of the reference implementation's full in-memory scan.
const readyQuery = `
SELECT * FROM tasks AS t
WHERE t.status IN ('WAITING', 'QUEUED')
  AND NOT EXISTS (
    SELECT 1 FROM json_each(t.dependencies) AS dep
    WHERE NOT EXISTS (
      SELECT 1 FROM tasks AS parent
      WHERE parent.id = dep.value AND parent.status = 'COMPLETED'
    )
  )
ORDER BY t.created_at ASC, t.id ASC
`

func (s *SQLiteStore) ListReady(ctx context.Context) ([]*domain.Task, error) {
	var rows []taskRow
	err := s.run(func() error {
		return s.db.WithContext(ctx).Raw(readyQuery).Scan(&rows).Error
	})
	if err != nil {
		return nil, err
	}
	return fromRows(rows)
}
