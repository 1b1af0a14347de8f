package duckdb

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"

	"github.com/marcboeker/go-duckdb/v2"
)

const CampaignRecordsSchema = `
	CREATE TABLE IF NOT EXISTS campaign_records (
		id VARCHAR NOT NULL PRIMARY KEY,
		run_id VARCHAR NOT NULL,
		source VARCHAR NOT NULL,
		group_key VARCHAR,
		record_date TIMESTAMP NULL,
		payload VARCHAR
	);
`

const RunsSchema = `
	CREATE TABLE IF NOT EXISTS runs (
		id VARCHAR NOT NULL PRIMARY KEY,
		started_at TIMESTAMP NOT NULL,
		finished_at TIMESTAMP NOT NULL,
		config_version VARCHAR NOT NULL,
		config_is_active BOOLEAN NOT NULL,
		range_start TIMESTAMP NULL,
		range_end TIMESTAMP NULL,
		group_rows INTEGER NOT NULL DEFAULT 0,
		aggregate_rows INTEGER NOT NULL DEFAULT 0,
		field_failures INTEGER NOT NULL DEFAULT 0
	);
`

var bootQueries = []string{
	CampaignRecordsSchema,
	RunsSchema,
	`CREATE INDEX IF NOT EXISTS campaign_records_source_date ON campaign_records (source, record_date);`,
}

type Settings struct {
	DbPath  string
	Threads int
}

// NewDB opens the embedded store and creates its tables on every new connection.
func NewDB(settings Settings) (*sql.DB, error) {
	threads := settings.Threads
	if threads <= 0 {
		threads = 4
	}
	c, err := duckdb.NewConnector(fmt.Sprintf("%s?threads=%d", settings.DbPath, threads), func(exec driver.ExecerContext) error {
		for _, query := range bootQueries {
			if _, err := exec.ExecContext(context.Background(), query, nil); err != nil {
				return fmt.Errorf("boot query failed: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create duckdb connector: %w", err)
	}

	return sql.OpenDB(c), nil
}
