package store

import "time"

type Run struct {
	ID             string
	StartedAt      time.Time
	FinishedAt     time.Time
	ConfigVersion  string
	ConfigIsActive bool
	RangeStart     *time.Time
	RangeEnd       *time.Time
	GroupRows      int
	AggregateRows  int
	FieldFailures  int
}
