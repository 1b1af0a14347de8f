package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/de-tools/campaign-atlas/pkg/models/domain"
	"github.com/de-tools/campaign-atlas/pkg/services/formula"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "atlas.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, domain.DefaultColumnMapping(), cfg.Columns)
	assert.Equal(t, StoreNone, cfg.Store.Kind)
	assert.Equal(t, 100, cfg.Store.BatchSize)
	assert.Equal(t, "localhost:8080", cfg.Addr())
	assert.Equal(t, formula.FilterPerRecord, cfg.EvaluatorSettings().FilterMode)
	assert.Nil(t, cfg.ValidatorSettings().Essentials)
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
columns:
  sessions:
    primary_column: campaign
    visitors: users
filters:
  mode: retention_ratio
template:
  strict_formulas: true
  essentials:
    group_level: [Date, Campaign, Spend]
store:
  kind: duckdb
  batch_size: 250
  duckdb:
    path: /tmp/atlas.db
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "campaign", cfg.Columns.Sessions.Primary)
	assert.Equal(t, "users", cfg.Columns.Sessions.Visitors)
	assert.Equal(t, "UTM content", cfg.Columns.Sessions.Secondary, "unset keys keep their defaults")
	assert.Equal(t, formula.FilterRetentionRatio, cfg.EvaluatorSettings().FilterMode)

	validator := cfg.ValidatorSettings()
	assert.True(t, validator.StrictFormulas)
	assert.Equal(t, []string{"Date", "Campaign", "Spend"}, validator.Essentials[domain.OutputGroupLevel])

	assert.Equal(t, StoreDuckDB, cfg.Store.Kind)
	assert.Equal(t, 250, cfg.RecordSettings().BatchSize)
	assert.Equal(t, "/tmp/atlas.db", cfg.Store.DuckDB.Path)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("ATLAS_SERVER_PORT", "9090")
	t.Setenv("ATLAS_STORE_KIND", "duckdb")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "localhost:9090", cfg.Addr())
	assert.Equal(t, StoreDuckDB, cfg.Store.Kind)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		message string
	}{
		{
			name:    "unknown filter mode",
			content: "filters:\n  mode: sometimes\n",
			message: `unknown filters.mode "sometimes"`,
		},
		{
			name:    "unknown store",
			content: "store:\n  kind: postgres\n",
			message: `unknown store.kind "postgres"`,
		},
		{
			name:    "remote store without profile file",
			content: "store:\n  kind: snowflake\n",
			message: "store.remote.config_file is required for snowflake",
		},
		{
			name:    "unknown essential target",
			content: "template:\n  essentials:\n    totals: [Date]\n",
			message: `unknown output target "totals"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.ErrorContains(t, err, "failed to read config file")
}
