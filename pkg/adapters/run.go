package adapters

import (
	"time"

	"github.com/de-tools/campaign-atlas/pkg/models/api"
	"github.com/de-tools/campaign-atlas/pkg/models/domain"
	"github.com/de-tools/campaign-atlas/pkg/models/store"
	"github.com/google/uuid"
)

func MapDatasetsApiToDomain(d api.Datasets) domain.Datasets {
	return domain.Datasets{
		Sessions: mapRecords(d.Sessions),
		Meta:     mapRecords(d.Meta),
		Google:   mapRecords(d.Google),
	}
}

func mapRecords(in []map[string]any) []domain.Record {
	if in == nil {
		return nil
	}
	out := make([]domain.Record, 0, len(in))
	for _, r := range in {
		out = append(out, domain.Record(r))
	}
	return out
}

func MapOutputRowsDomainToApi(rows []domain.OutputRow) api.OutputTable {
	table := api.OutputTable{Columns: []string{}, Rows: make([]map[string]any, 0, len(rows))}
	seen := make(map[string]bool)
	for _, row := range rows {
		for _, c := range row.Columns {
			if !seen[c] {
				seen[c] = true
				table.Columns = append(table.Columns, c)
			}
		}
		values := make(map[string]any, len(row.Values))
		for k, v := range row.Values {
			values[k] = v
		}
		table.Rows = append(table.Rows, values)
	}
	return table
}

func MapRunResultDomainToApi(r domain.RunResult) api.RunResult {
	res := api.RunResult{
		RunID:          r.RunID,
		StartedAt:      r.StartedAt,
		FinishedAt:     r.FinishedAt,
		ConfigVersion:  r.ConfigVersion,
		ConfigIsActive: r.ConfigIsActive,
		GroupLevel:     MapOutputRowsDomainToApi(r.GroupRows),
		AggregateLevel: MapOutputRowsDomainToApi(r.AggregateRows),
		FieldFailures:  make([]api.FieldFailure, 0, len(r.FieldFailures)),
	}
	for _, f := range r.FieldFailures {
		res.FieldFailures = append(res.FieldFailures, api.FieldFailure{
			Field:        f.Field,
			OutputTarget: string(f.OutputTarget),
			GroupKey:     f.GroupKey,
			Error:        f.Error,
		})
	}
	return res
}

// MapOutputRowsToStoreRecords stamps each row with a fresh id. dateField names
// the column whose value becomes the record date, when it parses.
func MapOutputRowsToStoreRecords(runID, source string, rows []domain.OutputRow, dateField string) []store.Record {
	out := make([]store.Record, 0, len(rows))
	for _, row := range rows {
		rec := store.Record{
			ID:       uuid.NewString(),
			RunID:    runID,
			Source:   source,
			GroupKey: row.Key,
			Payload:  row.Values,
		}
		if dateField != "" {
			if t, ok := domain.ParseDate(row.Get(dateField)); ok {
				rec.Date = &t
			}
		}
		out = append(out, rec)
	}
	return out
}

func MapRunResultToStoreRun(r domain.RunResult) store.Run {
	return store.Run{
		ID:             r.RunID,
		StartedAt:      r.StartedAt,
		FinishedAt:     r.FinishedAt,
		ConfigVersion:  r.ConfigVersion,
		ConfigIsActive: r.ConfigIsActive,
		RangeStart:     optionalTime(r.DateRange.Start),
		RangeEnd:       optionalTime(r.DateRange.End),
		GroupRows:      r.GroupRowCount,
		AggregateRows:  r.AggregateRowCount,
		FieldFailures:  len(r.FieldFailures),
	}
}

func MapStoreRecordToApi(r store.Record) api.Record {
	return api.Record{
		ID:       r.ID,
		RunID:    r.RunID,
		Source:   r.Source,
		GroupKey: r.GroupKey,
		Date:     r.Date,
		Payload:  r.Payload,
	}
}

func MapStoreRunToApi(r store.Run) api.Run {
	return api.Run{
		ID:             r.ID,
		StartedAt:      r.StartedAt,
		FinishedAt:     r.FinishedAt,
		ConfigVersion:  r.ConfigVersion,
		ConfigIsActive: r.ConfigIsActive,
		RangeStart:     r.RangeStart,
		RangeEnd:       r.RangeEnd,
		GroupRows:      r.GroupRows,
		AggregateRows:  r.AggregateRows,
		FieldFailures:  r.FieldFailures,
	}
}

func optionalTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
