package processing

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/de-tools/campaign-atlas/pkg/adapters"
	"github.com/de-tools/campaign-atlas/pkg/models/domain"
	"github.com/de-tools/campaign-atlas/pkg/models/store"
	"github.com/de-tools/campaign-atlas/pkg/services/dataset"
	"github.com/de-tools/campaign-atlas/pkg/services/formula"
	"github.com/de-tools/campaign-atlas/pkg/services/identity"
	"github.com/de-tools/campaign-atlas/pkg/services/template"
	"github.com/de-tools/campaign-atlas/pkg/store/records"
	"github.com/de-tools/campaign-atlas/pkg/store/runs"
	"github.com/de-tools/campaign-atlas/pkg/store/sqltx"
	"github.com/rs/zerolog"
)

var (
	ErrDatasetAccess       = errors.New("dataset access failed")
	ErrPersistenceDisabled = errors.New("no record store configured")
)

type Request struct {
	Loader    dataset.Loader
	DateRange domain.DateRange
	Persist   bool
}

// Persistence is optional. Without it runs are computed but never stored.
type Persistence struct {
	DB      *sql.DB
	Records records.Store
	Runs    runs.Store
}

// Runner loads datasets, processes them against a snapshot of the active
// template and optionally stores the output.
type Runner struct {
	evaluator   *formula.Evaluator
	resolver    *identity.Resolver
	templates   template.Manager
	persistence *Persistence
}

func NewRunner(
	evaluator *formula.Evaluator,
	resolver *identity.Resolver,
	templates template.Manager,
	persistence *Persistence,
) *Runner {
	return &Runner{
		evaluator:   evaluator,
		resolver:    resolver,
		templates:   templates,
		persistence: persistence,
	}
}

func (r *Runner) Run(ctx context.Context, req Request) (*domain.RunResult, error) {
	if req.Persist && r.persistence == nil {
		return nil, ErrPersistenceDisabled
	}

	data, err := req.Loader.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDatasetAccess, err)
	}

	cfg := r.templates.Active()
	logger := zerolog.Ctx(ctx).With().Str("config_version", cfg.Version).Logger()
	ctx = logger.WithContext(ctx)

	result := Process(ctx, r.evaluator, r.resolver, data, cfg, req.DateRange)

	if req.Persist {
		if err := r.persist(ctx, cfg, result); err != nil {
			return nil, err
		}
		logger.Info().Str("run_id", result.RunID).Msg("run persisted")
	}
	return &result, nil
}

// persist writes output rows and run metadata in one transaction.
func (r *Runner) persist(ctx context.Context, cfg *domain.LogicConfiguration, result domain.RunResult) error {
	dateField := firstDateField(cfg)
	rows := adapters.MapOutputRowsToStoreRecords(result.RunID, store.SourceGroupLevel, result.GroupRows, dateField)
	rows = append(rows, adapters.MapOutputRowsToStoreRecords(result.RunID, store.SourceAggregateLevel, result.AggregateRows, dateField)...)

	err := sqltx.Run(ctx, r.persistence.DB, func(ctx context.Context) error {
		if err := r.persistence.Records.Insert(ctx, rows); err != nil {
			return err
		}
		return r.persistence.Runs.Add(ctx, adapters.MapRunResultToStoreRun(result))
	})
	if err != nil {
		return fmt.Errorf("persist run %s: %w", result.RunID, err)
	}
	return nil
}

func firstDateField(cfg *domain.LogicConfiguration) string {
	for _, d := range cfg.Definitions {
		if d.DataType == domain.DataTypeDate {
			return d.FieldName
		}
	}
	return ""
}
