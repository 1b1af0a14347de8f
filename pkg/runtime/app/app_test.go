package app

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/de-tools/campaign-atlas/pkg/models/domain"
	"github.com/de-tools/campaign-atlas/pkg/services/config"
	"github.com/de-tools/campaign-atlas/pkg/services/dataset"
	"github.com/de-tools/campaign-atlas/pkg/services/processing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_WithoutStore(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)

	a, err := New(context.Background(), cfg)
	require.NoError(t, err)
	defer a.Close()

	assert.Nil(t, a.Records)
	assert.Nil(t, a.Runs)
	assert.Equal(t, "1.0.0", a.Templates.Active().Version)
	assert.ElementsMatch(t, []string{"file", "s3", "azblob"}, a.Fetchers.Schemes())

	_, err = a.Runner.Run(context.Background(), processing.Request{Loader: dataset.Static{}, Persist: true})
	assert.ErrorIs(t, err, processing.ErrPersistenceDisabled)
}

func TestNew_DuckDB(t *testing.T) {
	t.Setenv("ATLAS_STORE_KIND", "duckdb")
	t.Setenv("ATLAS_STORE_DUCKDB_PATH", filepath.Join(t.TempDir(), "atlas.db"))
	cfg, err := config.Load("")
	require.NoError(t, err)

	a, err := New(context.Background(), cfg)
	require.NoError(t, err)
	defer a.Close()

	data := dataset.Static{Sessions: []domain.Record{
		{"UTM campaign": "spring", "UTM content": "video", "Day": "2024-04-01", "Online store visitors": "40"},
	}}
	result, err := a.Runner.Run(context.Background(), processing.Request{Loader: data, Persist: true})
	require.NoError(t, err)

	stored, err := a.Runs.List(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, result.RunID, stored[0].ID)
}
