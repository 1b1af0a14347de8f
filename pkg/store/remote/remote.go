package remote

import (
	"context"
	"database/sql"
	"fmt"
)

type Kind string

const (
	KindDatabricks Kind = "databricks"
	KindSnowflake  Kind = "snowflake"
)

type Settings struct {
	Kind       Kind
	ConfigFile string // .databrickscfg or a snowflake profile
	Profile    string // .databrickscfg section
}

// Open connects to a remote warehouse and makes sure the record tables exist.
func Open(ctx context.Context, settings Settings) (*sql.DB, error) {
	var (
		db  *sql.DB
		err error
	)
	switch settings.Kind {
	case KindDatabricks:
		db, err = openDatabricks(ctx, settings)
	case KindSnowflake:
		db, err = openSnowflake(ctx, settings)
	default:
		return nil, fmt.Errorf("unsupported remote store %q", settings.Kind)
	}
	if err != nil {
		return nil, err
	}

	if err := EnsureSchema(ctx, db, settings.Kind); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

var schemas = map[Kind][]string{
	KindDatabricks: {
		`CREATE TABLE IF NOT EXISTS campaign_records (
			id STRING NOT NULL,
			run_id STRING NOT NULL,
			source STRING NOT NULL,
			group_key STRING,
			record_date TIMESTAMP,
			payload STRING
		)`,
		`CREATE TABLE IF NOT EXISTS runs (
			id STRING NOT NULL,
			started_at TIMESTAMP NOT NULL,
			finished_at TIMESTAMP NOT NULL,
			config_version STRING NOT NULL,
			config_is_active BOOLEAN NOT NULL,
			range_start TIMESTAMP,
			range_end TIMESTAMP,
			group_rows INT,
			aggregate_rows INT,
			field_failures INT
		)`,
	},
	KindSnowflake: {
		`CREATE TABLE IF NOT EXISTS campaign_records (
			id VARCHAR NOT NULL PRIMARY KEY,
			run_id VARCHAR NOT NULL,
			source VARCHAR NOT NULL,
			group_key VARCHAR,
			record_date TIMESTAMP_NTZ,
			payload VARCHAR
		)`,
		`CREATE TABLE IF NOT EXISTS runs (
			id VARCHAR NOT NULL PRIMARY KEY,
			started_at TIMESTAMP_NTZ NOT NULL,
			finished_at TIMESTAMP_NTZ NOT NULL,
			config_version VARCHAR NOT NULL,
			config_is_active BOOLEAN NOT NULL,
			range_start TIMESTAMP_NTZ,
			range_end TIMESTAMP_NTZ,
			group_rows INTEGER DEFAULT 0,
			aggregate_rows INTEGER DEFAULT 0,
			field_failures INTEGER DEFAULT 0
		)`,
	},
}

func EnsureSchema(ctx context.Context, db *sql.DB, kind Kind) error {
	queries, ok := schemas[kind]
	if !ok {
		return fmt.Errorf("no schema for remote store %q", kind)
	}
	for _, query := range queries {
		if _, err := db.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("create %s tables: %w", kind, err)
		}
	}
	return nil
}
