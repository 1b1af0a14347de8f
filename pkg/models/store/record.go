package store

import "time"

// Record sources besides the three input datasets.
const (
	SourceGroupLevel     = "group_level"
	SourceAggregateLevel = "aggregate_level"
)

type Record struct {
	ID       string
	RunID    string
	Source   string
	GroupKey string
	Date     *time.Time
	Payload  map[string]any
}

// RecordFilter selects stored records. Zero values do not filter.
type RecordFilter struct {
	Start  time.Time
	End    time.Time
	Source string
	RunID  string
}
