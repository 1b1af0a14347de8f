package records

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/de-tools/campaign-atlas/pkg/models/store"
	"github.com/de-tools/campaign-atlas/pkg/store/sqltx"
	"github.com/rs/zerolog"
)

const DefaultBatchSize = 100

// Store persists campaign records. The same SQL serves DuckDB, Databricks SQL
// and Snowflake since all three accept ? placeholders.
type Store interface {
	Insert(ctx context.Context, records []store.Record) error
	Query(ctx context.Context, filter store.RecordFilter) ([]store.Record, error)
}

type Settings struct {
	Table     string
	BatchSize int
}

type recordStore struct {
	db        *sql.DB
	table     string
	batchSize int
}

func NewStore(db *sql.DB, settings Settings) (Store, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}
	if settings.Table == "" {
		settings.Table = "campaign_records"
	}
	if settings.BatchSize <= 0 {
		settings.BatchSize = DefaultBatchSize
	}
	return &recordStore{
		db:        db,
		table:     settings.Table,
		batchSize: settings.BatchSize,
	}, nil
}

// Insert writes records in multi-row statements of at most batchSize rows.
// Inside sqltx.Run all batches share the caller's transaction.
func (s *recordStore) Insert(ctx context.Context, records []store.Record) error {
	logger := zerolog.Ctx(ctx)
	exec := sqltx.From(ctx, s.db)

	for start := 0; start < len(records); start += s.batchSize {
		end := min(start+s.batchSize, len(records))
		batch := records[start:end]

		placeholders := make([]string, 0, len(batch))
		args := make([]any, 0, len(batch)*6)
		for _, r := range batch {
			payload, err := json.Marshal(r.Payload)
			if err != nil {
				return fmt.Errorf("marshal payload of %s: %w", r.ID, err)
			}
			var date any
			if r.Date != nil {
				date = *r.Date
			}
			placeholders = append(placeholders, "(?, ?, ?, ?, ?, ?)")
			args = append(args, r.ID, r.RunID, r.Source, r.GroupKey, date, string(payload))
		}

		query := fmt.Sprintf(
			"INSERT INTO %s (id, run_id, source, group_key, record_date, payload) VALUES %s",
			s.table, strings.Join(placeholders, ", "))
		if _, err := exec.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("insert records batch %d-%d: %w", start, end, err)
		}
		logger.Debug().Int("from", start).Int("to", end).Msg("inserted record batch")
	}
	return nil
}

func (s *recordStore) Query(ctx context.Context, filter store.RecordFilter) ([]store.Record, error) {
	var (
		conditions []string
		args       []any
	)
	if filter.Source != "" {
		conditions = append(conditions, "source = ?")
		args = append(args, filter.Source)
	}
	if filter.RunID != "" {
		conditions = append(conditions, "run_id = ?")
		args = append(args, filter.RunID)
	}
	if !filter.Start.IsZero() {
		conditions = append(conditions, "record_date >= ?")
		args = append(args, filter.Start)
	}
	if !filter.End.IsZero() {
		conditions = append(conditions, "record_date <= ?")
		args = append(args, filter.End)
	}

	query := fmt.Sprintf("SELECT id, run_id, source, group_key, record_date, payload FROM %s", s.table)
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY record_date, id"

	rows, err := sqltx.From(ctx, s.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	records := make([]store.Record, 0)
	for rows.Next() {
		var (
			r       store.Record
			date    sql.NullTime
			payload sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.RunID, &r.Source, &r.GroupKey, &date, &payload); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		if date.Valid {
			t := date.Time
			r.Date = &t
		}
		r.Payload = map[string]any{}
		if payload.Valid && payload.String != "" {
			if err := json.Unmarshal([]byte(payload.String), &r.Payload); err != nil {
				return nil, fmt.Errorf("decode payload of %s: %w", r.ID, err)
			}
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return records, nil
}
