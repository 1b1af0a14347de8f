package api

import "time"

type Datasets struct {
	Sessions []map[string]any `json:"sessions"`
	Meta     []map[string]any `json:"meta"`
	Google   []map[string]any `json:"google"`
}

type RunRequest struct {
	Datasets Datasets `json:"datasets"`
	From     string   `json:"from,omitempty"` // YYYY-MM-DD
	To       string   `json:"to,omitempty"`
	Persist  bool     `json:"persist"`
}

type OutputTable struct {
	Columns []string         `json:"columns"`
	Rows    []map[string]any `json:"rows"`
}

type FieldFailure struct {
	Field        string `json:"field"`
	OutputTarget string `json:"output_file_name"`
	GroupKey     string `json:"group_key,omitempty"`
	Error        string `json:"error"`
}

type RunResult struct {
	RunID          string         `json:"run_id"`
	StartedAt      time.Time      `json:"started_at"`
	FinishedAt     time.Time      `json:"finished_at"`
	ConfigVersion  string         `json:"config_version"`
	ConfigIsActive bool           `json:"config_is_active"`
	GroupLevel     OutputTable    `json:"group_level"`
	AggregateLevel OutputTable    `json:"aggregate_level"`
	FieldFailures  []FieldFailure `json:"field_failures"`
}

type Record struct {
	ID       string         `json:"id"`
	RunID    string         `json:"run_id"`
	Source   string         `json:"source"`
	GroupKey string         `json:"group_key,omitempty"`
	Date     *time.Time     `json:"date,omitempty"`
	Payload  map[string]any `json:"payload"`
}

type Run struct {
	ID             string     `json:"id"`
	StartedAt      time.Time  `json:"started_at"`
	FinishedAt     time.Time  `json:"finished_at"`
	ConfigVersion  string     `json:"config_version"`
	ConfigIsActive bool       `json:"config_is_active"`
	RangeStart     *time.Time `json:"range_start,omitempty"`
	RangeEnd       *time.Time `json:"range_end,omitempty"`
	GroupRows      int        `json:"group_rows"`
	AggregateRows  int        `json:"aggregate_rows"`
	FieldFailures  int        `json:"field_failures"`
}
