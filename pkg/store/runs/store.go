package runs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/de-tools/campaign-atlas/pkg/models/store"
	"github.com/de-tools/campaign-atlas/pkg/store/sqltx"
)

var ErrNotFound = errors.New("run not found")

type Store interface {
	Add(ctx context.Context, run store.Run) error
	Get(ctx context.Context, id string) (*store.Run, error)
	List(ctx context.Context, limit int) ([]store.Run, error)
}

type runStore struct {
	db *sql.DB
}

func NewStore(db *sql.DB) (Store, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}
	return &runStore{db: db}, nil
}

const selectRuns = `
	SELECT id, started_at, finished_at, config_version, config_is_active,
		range_start, range_end, group_rows, aggregate_rows, field_failures
	FROM runs`

func (s *runStore) Add(ctx context.Context, run store.Run) error {
	query := `
		INSERT INTO runs (
			id, started_at, finished_at, config_version, config_is_active,
			range_start, range_end, group_rows, aggregate_rows, field_failures
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := sqltx.From(ctx, s.db).ExecContext(ctx, query,
		run.ID,
		run.StartedAt,
		run.FinishedAt,
		run.ConfigVersion,
		run.ConfigIsActive,
		nullTime(run.RangeStart),
		nullTime(run.RangeEnd),
		run.GroupRows,
		run.AggregateRows,
		run.FieldFailures,
	)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", run.ID, err)
	}
	return nil
}

func (s *runStore) Get(ctx context.Context, id string) (*store.Run, error) {
	rows, err := sqltx.From(ctx, s.db).QueryContext(ctx, selectRuns+" WHERE id = ?", id)
	if err != nil {
		return nil, fmt.Errorf("get run %s: %w", id, err)
	}
	defer rows.Close()

	runs, err := scanRuns(rows)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return &runs[0], nil
}

func (s *runStore) List(ctx context.Context, limit int) ([]store.Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := sqltx.From(ctx, s.db).QueryContext(ctx, selectRuns+" ORDER BY started_at DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()
	return scanRuns(rows)
}

func scanRuns(rows *sql.Rows) ([]store.Run, error) {
	runs := make([]store.Run, 0)
	for rows.Next() {
		var (
			r          store.Run
			start, end sql.NullTime
		)
		if err := rows.Scan(
			&r.ID, &r.StartedAt, &r.FinishedAt, &r.ConfigVersion, &r.ConfigIsActive,
			&start, &end, &r.GroupRows, &r.AggregateRows, &r.FieldFailures,
		); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if start.Valid {
			t := start.Time
			r.RangeStart = &t
		}
		if end.Valid {
			t := end.Time
			r.RangeEnd = &t
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
