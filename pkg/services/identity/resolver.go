package identity

import (
	"github.com/de-tools/campaign-atlas/pkg/models/domain"
)

// Resolver buckets session records into one PivotRow per primary/secondary identity.
type Resolver struct {
	columns domain.SessionColumns
}

func NewResolver(columns domain.SessionColumns) *Resolver {
	return &Resolver{columns: columns}
}

type accumulator struct {
	row *domain.PivotRow
	// duration is recovered as Σ(duration·visitors) / Σ(visitors)
	weightedDuration float64
	durationWeight   float64
}

// Resolve groups records by composite identity. Rows come out in order of first appearance.
func (r *Resolver) Resolve(records []domain.Record) []domain.PivotRow {
	groups := make(map[string]*accumulator)
	order := make([]string, 0)

	for _, rec := range records {
		primary := identityValue(rec, r.columns.Primary)
		secondary := identityValue(rec, r.columns.Secondary)
		key := domain.GroupKey(primary, secondary)

		acc, exists := groups[key]
		if !exists {
			acc = &accumulator{row: &domain.PivotRow{
				Key:       key,
				Primary:   primary,
				Secondary: secondary,
			}}
			groups[key] = acc
			order = append(order, key)
		}
		acc.add(rec, r.columns)
	}

	rows := make([]domain.PivotRow, 0, len(order))
	for _, key := range order {
		rows = append(rows, groups[key].finalize())
	}
	return rows
}

func (a *accumulator) add(rec domain.Record, cols domain.SessionColumns) {
	row := a.row
	row.Records = append(row.Records, rec)

	visitors := rec.Number(cols.Visitors)
	row.Visitors += visitors
	row.CartAdds += rec.Number(cols.CartAdds)
	row.CheckoutStarts += rec.Number(cols.CheckoutStarts)
	row.CheckoutCompletes += rec.Number(cols.CheckoutCompletes)
	row.PageViews += rec.Number(cols.PageViews)

	if visitors == 0 {
		return
	}
	a.weightedDuration += rec.Number(cols.Duration) * visitors
	a.durationWeight += visitors
}

func (a *accumulator) finalize() domain.PivotRow {
	if a.durationWeight != 0 {
		a.row.AvgDuration = a.weightedDuration / a.durationWeight
	}
	return *a.row
}

func identityValue(rec domain.Record, column string) string {
	if column == "" {
		return domain.UnknownGroup
	}
	if v := rec.String(column); v != "" {
		return v
	}
	return domain.UnknownGroup
}
