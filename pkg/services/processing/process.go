package processing

import (
	"context"
	"fmt"
	"time"

	"github.com/de-tools/campaign-atlas/pkg/models/domain"
	"github.com/de-tools/campaign-atlas/pkg/services/formula"
	"github.com/de-tools/campaign-atlas/pkg/services/identity"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Process runs one configuration over one set of datasets. It only reads its
// inputs, so two calls with the same arguments produce the same rows.
func Process(
	ctx context.Context,
	evaluator *formula.Evaluator,
	resolver *identity.Resolver,
	data domain.Datasets,
	cfg *domain.LogicConfiguration,
	dateRange domain.DateRange,
) domain.RunResult {
	logger := zerolog.Ctx(ctx)
	result := domain.RunResult{
		RunID:          uuid.NewString(),
		StartedAt:      time.Now().UTC(),
		ConfigVersion:  cfg.Version,
		ConfigIsActive: cfg.IsActive,
		DateRange:      dateRange,
	}

	cols := evaluator.Columns()
	data = domain.Datasets{
		Sessions: filterByDate(data.Sessions, cols.Sessions.Date, dateRange),
		Meta:     filterByDate(data.Meta, cols.Meta.Date, dateRange),
		Google:   filterByDate(data.Google, cols.Google.Date, dateRange),
	}

	pivots := resolver.Resolve(data.Sessions)
	groupDefs := cfg.ForTarget(domain.OutputGroupLevel)
	aggregateDefs := cfg.ForTarget(domain.OutputAggregateLevel)

	result.GroupRows = make([]domain.OutputRow, 0, len(pivots))
	for i := range pivots {
		pivot := &pivots[i]
		row := domain.NewOutputRow()
		row.Key = pivot.Key
		siblings := make(map[string]any, len(groupDefs))
		for _, def := range groupDefs {
			row.Set(def.FieldName, evaluateField(ctx, evaluator, def, pivot, data, siblings, &result))
		}
		result.GroupRows = append(result.GroupRows, row)
	}

	aggregate := domain.NewOutputRow()
	siblings := make(map[string]any, len(aggregateDefs))
	for _, def := range aggregateDefs {
		aggregate.Set(def.FieldName, evaluateField(ctx, evaluator, def, nil, data, siblings, &result))
	}
	result.AggregateRows = []domain.OutputRow{aggregate}

	result.GroupRowCount = len(result.GroupRows)
	result.AggregateRowCount = len(result.AggregateRows)
	result.FinishedAt = time.Now().UTC()

	logger.Info().
		Str("run_id", result.RunID).
		Str("config_version", result.ConfigVersion).
		Int("pivots", len(pivots)).
		Int("field_failures", len(result.FieldFailures)).
		Dur("took", result.FinishedAt.Sub(result.StartedAt)).
		Msg("processing finished")
	return result
}

// evaluateField isolates one field. Errors and panics become a nil value and a
// recorded failure so the rest of the row still computes.
func evaluateField(
	ctx context.Context,
	evaluator *formula.Evaluator,
	def domain.FieldDefinition,
	pivot *domain.PivotRow,
	data domain.Datasets,
	siblings map[string]any,
	result *domain.RunResult,
) (value any) {
	groupKey := ""
	if pivot != nil {
		groupKey = pivot.Key
	}
	fail := func(err error) {
		zerolog.Ctx(ctx).Warn().
			Err(err).
			Str("field", def.FieldName).
			Str("output", string(def.OutputTarget)).
			Str("group", groupKey).
			Msg("field evaluation failed")
		result.FieldFailures = append(result.FieldFailures, domain.FieldFailure{
			Field:        def.FieldName,
			OutputTarget: def.OutputTarget,
			GroupKey:     groupKey,
			Error:        err.Error(),
		})
		siblings[def.FieldName] = nil
		value = nil
	}

	defer func() {
		if r := recover(); r != nil {
			fail(fmt.Errorf("panic: %v", r))
		}
	}()

	v, err := evaluator.Evaluate(ctx, def, pivot, data, siblings)
	if err != nil {
		fail(err)
		return nil
	}
	return v
}

// filterByDate keeps records inside r. Records whose date is missing or does
// not parse are kept.
func filterByDate(records []domain.Record, column string, r domain.DateRange) []domain.Record {
	if r.IsZero() || column == "" {
		return records
	}
	kept := make([]domain.Record, 0, len(records))
	for _, rec := range records {
		if t, ok := domain.ParseDate(rec[column]); ok && !r.Contains(t) {
			continue
		}
		kept = append(kept, rec)
	}
	return kept
}
