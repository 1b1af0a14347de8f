package formula

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/de-tools/campaign-atlas/pkg/models/domain"
	"github.com/rs/zerolog"
)

type FilterMode string

const (
	// FilterPerRecord checks the filter against each record and falls back to the
	// retention ratios only when the records lack the filtered columns.
	FilterPerRecord FilterMode = "per_record"
	// FilterRetentionRatio always applies the named retention ratios.
	FilterRetentionRatio FilterMode = "retention_ratio"
)

type Settings struct {
	Columns    domain.ColumnMapping
	FilterMode FilterMode
}

type input struct {
	def      domain.FieldDefinition
	formula  Formula
	pivot    *domain.PivotRow
	data     domain.Datasets
	siblings map[string]any
}

type handler func(ctx context.Context, in input) (any, error)

// Evaluator computes one field definition at a time.
type Evaluator struct {
	grammar  *Grammar
	settings Settings
	handlers map[Kind]handler
}

func NewEvaluator(grammar *Grammar, settings Settings) *Evaluator {
	if settings.FilterMode == "" {
		settings.FilterMode = FilterPerRecord
	}
	e := &Evaluator{grammar: grammar, settings: settings}
	e.handlers = map[Kind]handler{
		KindDirect:            e.direct,
		KindSum:               e.aggregate,
		KindAverage:           e.aggregate,
		KindPrimaryGroup:      e.groupKey,
		KindSecondaryGroup:    e.groupKey,
		KindLookup:            e.lookup,
		KindPercentage:        e.percentage,
		KindFilteredAggregate: e.filteredAggregate,
		KindBinary:            e.binary,
		KindEmpty:             e.empty,
	}
	return e
}

func (e *Evaluator) Columns() domain.ColumnMapping {
	return e.settings.Columns
}

// Evaluate computes def for the given group (nil at aggregate level) and stores
// the result in siblings under the field name.
func (e *Evaluator) Evaluate(
	ctx context.Context,
	def domain.FieldDefinition,
	pivot *domain.PivotRow,
	data domain.Datasets,
	siblings map[string]any,
) (any, error) {
	logger := zerolog.Ctx(ctx)

	if def.InputSource == domain.SourceManual {
		siblings[def.FieldName] = nil
		return nil, nil
	}

	f := e.grammar.Parse(def.Formula)
	h, ok := e.handlers[f.Kind]
	if !ok {
		logger.Warn().
			Str("field", def.FieldName).
			Str("formula", def.Formula).
			Msg("unrecognized formula, field left empty")
		siblings[def.FieldName] = nil
		return nil, nil
	}

	value, err := h(ctx, input{def: def, formula: f, pivot: pivot, data: data, siblings: siblings})
	if err != nil {
		return nil, fmt.Errorf("evaluate %s (%s): %w", def.FieldName, f.Kind, err)
	}
	siblings[def.FieldName] = value
	return value, nil
}

func (e *Evaluator) direct(_ context.Context, in input) (any, error) {
	field := in.formula.Field
	cols := e.settings.Columns.Sessions
	readsSessions := !in.def.InputSource.IsPlatform()

	if in.pivot != nil && readsSessions {
		switch {
		case strings.EqualFold(field, cols.Primary):
			return in.pivot.Primary, nil
		case strings.EqualFold(field, cols.Secondary):
			return in.pivot.Secondary, nil
		}
		if m, ok := cols.Metric(field); ok {
			return in.pivot.Metric(m), nil
		}
	}

	records := e.records(in)
	column := e.column(in.def.InputSource, field)
	if in.def.DataType == domain.DataTypeNumber {
		if in.pivot == nil && readsSessions {
			if m, ok := cols.Metric(field); ok {
				return datasetMetric(records, cols, m), nil
			}
		}
		return sumColumn(records, column), nil
	}
	return firstValue(records, column), nil
}

func (e *Evaluator) aggregate(_ context.Context, in input) (any, error) {
	records := e.records(in)
	column := e.column(in.def.InputSource, in.formula.Field)
	if in.formula.Aggregate == AggregateAverage {
		return meanColumn(records, column), nil
	}
	return sumColumn(records, column), nil
}

func (e *Evaluator) groupKey(_ context.Context, in input) (any, error) {
	if in.pivot == nil {
		return nil, nil
	}
	if in.formula.Kind == KindSecondaryGroup {
		return in.pivot.Secondary, nil
	}
	return in.pivot.Primary, nil
}

func (e *Evaluator) lookup(_ context.Context, in input) (any, error) {
	if in.pivot == nil {
		return nil, nil
	}
	if in.formula.Field == "" {
		return nil, fmt.Errorf("lookup target field missing in %q", in.formula.Raw)
	}
	column := e.column(in.def.InputSource, in.formula.Field)
	for _, rec := range e.records(in) {
		if !rec.HasValue(column) {
			continue
		}
		if in.def.DataType == domain.DataTypeNumber {
			return rec.Number(column), nil
		}
		return rec.String(column), nil
	}
	if in.def.DataType == domain.DataTypeNumber {
		return 0.0, nil
	}
	return nil, nil
}

func (e *Evaluator) percentage(_ context.Context, in input) (any, error) {
	num := e.operand(in, in.formula.Left)
	den := e.operand(in, in.formula.Right)
	if den == 0 {
		return 0.0, nil
	}
	return finite(num * 100 / den), nil
}

func (e *Evaluator) filteredAggregate(_ context.Context, in input) (any, error) {
	f := in.formula
	records := e.records(in)
	column := e.column(in.def.InputSource, f.Field)
	cols := e.settings.Columns.Sessions

	if e.settings.FilterMode == FilterRetentionRatio || !canFilterPerRecord(records, f.Filter, cols) {
		switch f.Aggregate {
		case AggregateCount:
			return float64(len(records)) * f.Filter.Retention, nil
		case AggregateAverage:
			// a ratio scales totals, not means
			return meanColumn(records, column), nil
		default:
			return sumColumn(records, column) * f.Filter.Retention, nil
		}
	}

	var matched []domain.Record
	for _, rec := range records {
		ok, err := f.Filter.Match(rec.Number(cols.Duration), rec.Number(cols.PageViews))
		if err != nil {
			return nil, err
		}
		if ok {
			matched = append(matched, rec)
		}
	}
	switch f.Aggregate {
	case AggregateCount:
		return float64(len(matched)), nil
	case AggregateAverage:
		return meanColumn(matched, column), nil
	default:
		return sumColumn(matched, column), nil
	}
}

func (e *Evaluator) binary(_ context.Context, in input) (any, error) {
	a := e.operand(in, in.formula.Left)
	b := e.operand(in, in.formula.Right)
	switch in.formula.Operator {
	case "+":
		return finite(a + b), nil
	case "-":
		return finite(a - b), nil
	case "*":
		return finite(a * b), nil
	case "/":
		if b == 0 {
			return 0.0, nil
		}
		return finite(a / b), nil
	default:
		return nil, fmt.Errorf("unsupported operator %q", in.formula.Operator)
	}
}

func (e *Evaluator) empty(_ context.Context, _ input) (any, error) {
	return nil, nil
}

// operand resolves a reference against sibling values, then the current group
// (or the whole session dataset at aggregate level), then as a literal.
func (e *Evaluator) operand(in input, op Operand) float64 {
	if !op.Ref {
		return op.Value
	}
	if v, ok := siblingValue(in.siblings, op.Text); ok {
		return domain.ParseNumber(v)
	}

	cols := e.settings.Columns.Sessions
	records := in.data.Sessions
	if in.pivot != nil {
		if m, ok := cols.Metric(op.Text); ok {
			return in.pivot.Metric(m)
		}
		records = in.pivot.Records
	} else if m, ok := cols.Metric(op.Text); ok {
		return datasetMetric(records, cols, m)
	}
	if hasColumn(records, op.Text) {
		return sumColumn(records, op.Text)
	}
	return domain.ParseNumber(op.Text)
}

// records selects the rows a field reads. At group level Meta rows match on
// primary and secondary identity, Google rows on primary identity only.
func (e *Evaluator) records(in input) []domain.Record {
	source := in.def.InputSource
	if in.pivot == nil {
		return in.data.ForSource(source)
	}
	switch source {
	case domain.SourceMeta:
		return matchIdentity(in.data.Meta, e.settings.Columns.Meta, in.pivot, true)
	case domain.SourceGoogle:
		return matchIdentity(in.data.Google, e.settings.Columns.Google, in.pivot, false)
	default:
		return in.pivot.Records
	}
}

func (e *Evaluator) column(source domain.InputSource, field string) string {
	if source.IsPlatform() {
		return strings.TrimSpace(field)
	}
	return e.settings.Columns.Sessions.Column(field)
}

func matchIdentity(records []domain.Record, cols domain.PlatformColumns, pivot *domain.PivotRow, withSecondary bool) []domain.Record {
	var matched []domain.Record
	for _, rec := range records {
		if !sameIdentity(rec.String(cols.Primary), pivot.Primary) {
			continue
		}
		if withSecondary && cols.Secondary != "" && !sameIdentity(rec.String(cols.Secondary), pivot.Secondary) {
			continue
		}
		matched = append(matched, rec)
	}
	return matched
}

func sameIdentity(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

func canFilterPerRecord(records []domain.Record, f *Filter, cols domain.SessionColumns) bool {
	if len(records) == 0 {
		return true
	}
	for _, rec := range records {
		if f.UsesDuration && !rec.HasValue(cols.Duration) {
			return false
		}
		if f.UsesPageViews && !rec.HasValue(cols.PageViews) {
			return false
		}
	}
	return true
}

func siblingValue(siblings map[string]any, name string) (any, bool) {
	if v, ok := siblings[name]; ok {
		return v, true
	}
	keys := make([]string, 0, len(siblings))
	for k := range siblings {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if strings.EqualFold(strings.TrimSpace(k), strings.TrimSpace(name)) {
			return siblings[k], true
		}
	}
	return nil, false
}

// datasetMetric totals a session metric over records; duration is visitor weighted.
func datasetMetric(records []domain.Record, cols domain.SessionColumns, m domain.Metric) float64 {
	if m != domain.MetricDuration {
		return sumColumn(records, cols.Column(string(m)))
	}
	var weighted, weight float64
	for _, rec := range records {
		visitors := rec.Number(cols.Visitors)
		if visitors == 0 {
			continue
		}
		weighted += rec.Number(cols.Duration) * visitors
		weight += visitors
	}
	if weight == 0 {
		return 0
	}
	return weighted / weight
}

func sumColumn(records []domain.Record, column string) float64 {
	var total float64
	for _, rec := range records {
		total += rec.Number(column)
	}
	return total
}

func meanColumn(records []domain.Record, column string) float64 {
	if len(records) == 0 {
		return 0
	}
	return sumColumn(records, column) / float64(len(records))
}

func hasColumn(records []domain.Record, column string) bool {
	for _, rec := range records {
		if rec.Has(column) {
			return true
		}
	}
	return false
}

func firstValue(records []domain.Record, column string) any {
	for _, rec := range records {
		if v := rec.String(column); v != "" {
			return v
		}
	}
	return nil
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
