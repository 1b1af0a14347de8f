package app

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/de-tools/campaign-atlas/pkg/services/config"
	"github.com/de-tools/campaign-atlas/pkg/services/dataset"
	"github.com/de-tools/campaign-atlas/pkg/services/formula"
	"github.com/de-tools/campaign-atlas/pkg/services/identity"
	"github.com/de-tools/campaign-atlas/pkg/services/processing"
	"github.com/de-tools/campaign-atlas/pkg/services/template"
	"github.com/de-tools/campaign-atlas/pkg/store/duckdb"
	"github.com/de-tools/campaign-atlas/pkg/store/records"
	"github.com/de-tools/campaign-atlas/pkg/store/remote"
	"github.com/de-tools/campaign-atlas/pkg/store/runs"
	"github.com/rs/zerolog"
)

// App holds the services shared by the CLI and the web server.
type App struct {
	Config    *config.Config
	Templates template.Manager
	Runner    *processing.Runner
	Fetchers  dataset.Registry

	// Records and Runs are nil when no store is configured.
	Records records.Store
	Runs    runs.Store

	db *sql.DB
}

func New(ctx context.Context, cfg *config.Config) (*App, error) {
	logger := zerolog.Ctx(ctx)

	catalog, err := formula.NewFilterCatalog()
	if err != nil {
		return nil, fmt.Errorf("failed to compile filter catalog: %w", err)
	}
	grammar := formula.NewGrammar(catalog)
	evaluator := formula.NewEvaluator(grammar, cfg.EvaluatorSettings())
	resolver := identity.NewResolver(cfg.Columns.Sessions)

	manager, err := template.NewManager(template.NewValidator(grammar, cfg.ValidatorSettings()))
	if err != nil {
		return nil, fmt.Errorf("failed to load default template: %w", err)
	}

	a := &App{
		Config:    cfg,
		Templates: manager,
		Fetchers:  dataset.NewDefaultRegistry(cfg.Dataset),
	}

	persistence, err := a.openStore(ctx)
	if err != nil {
		return nil, err
	}
	a.Runner = processing.NewRunner(evaluator, resolver, manager, persistence)

	logger.Info().
		Str("store", string(cfg.Store.Kind)).
		Str("template_version", manager.Active().Version).
		Strs("dataset_schemes", a.Fetchers.Schemes()).
		Msg("campaign atlas initialised")
	return a, nil
}

func (a *App) openStore(ctx context.Context) (*processing.Persistence, error) {
	cfg := a.Config
	var (
		db  *sql.DB
		err error
	)
	switch cfg.Store.Kind {
	case config.StoreNone, "":
		return nil, nil
	case config.StoreDuckDB:
		db, err = duckdb.NewDB(duckdb.Settings{DbPath: cfg.Store.DuckDB.Path, Threads: cfg.Store.DuckDB.Threads})
	default:
		db, err = remote.Open(ctx, cfg.RemoteSettings())
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", cfg.Store.Kind, err)
	}

	recordStore, err := records.NewStore(db, cfg.RecordSettings())
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create record store: %w", err)
	}
	runStore, err := runs.NewStore(db)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create run store: %w", err)
	}

	a.db = db
	a.Records = recordStore
	a.Runs = runStore
	return &processing.Persistence{DB: db, Records: recordStore, Runs: runStore}, nil
}

// Loader reads the datasets named in a sources file.
func (a *App) Loader(sources dataset.Sources) dataset.Loader {
	return dataset.NewLoader(sources, a.Fetchers)
}

func (a *App) Close() error {
	if a.db == nil {
		return nil
	}
	return a.db.Close()
}
