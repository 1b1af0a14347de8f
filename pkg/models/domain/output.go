package domain

import "time"

// OutputRow is one row of an output table. Columns keeps first-seen order;
// a repeated field name overwrites the earlier value.
type OutputRow struct {
	Key     string // group key; empty on the aggregate row
	Columns []string
	Values  map[string]any
}

func NewOutputRow() OutputRow {
	return OutputRow{Values: map[string]any{}}
}

func (r *OutputRow) Set(name string, value any) {
	if _, exists := r.Values[name]; !exists {
		r.Columns = append(r.Columns, name)
	}
	r.Values[name] = value
}

func (r OutputRow) Get(name string) any {
	return r.Values[name]
}

type FieldFailure struct {
	Field        string
	OutputTarget OutputTarget
	GroupKey     string
	Error        string
}

type RunResult struct {
	RunID             string
	StartedAt         time.Time
	FinishedAt        time.Time
	ConfigVersion     string
	ConfigIsActive    bool
	DateRange         DateRange
	GroupRows         []OutputRow
	AggregateRows     []OutputRow
	GroupRowCount     int
	AggregateRowCount int
	FieldFailures     []FieldFailure
}
