package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseLabels(t *testing.T) {
	tests := []struct {
		input  string
		target OutputTarget
		ok     bool
	}{
		{"Group Level", OutputGroupLevel, true},
		{"  group level ", OutputGroupLevel, true},
		{"GroupLevel", OutputGroupLevel, true},
		{"aggregate_level", OutputAggregateLevel, true},
		{"Totals", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			target, ok := ParseOutputTarget(tt.input)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.target, target)
		})
	}

	source, ok := ParseInputSource("SourceB")
	assert.True(t, ok)
	assert.Equal(t, SourceMeta, source)
	assert.True(t, source.IsPlatform())

	dataType, ok := ParseDataType("NUMBER")
	assert.True(t, ok)
	assert.Equal(t, DataTypeNumber, dataType)
}

func TestParseNumber(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		expected float64
	}{
		{"float", 1.5, 1.5},
		{"int", 7, 7},
		{"currency", "$1,234.50", 1234.5},
		{"percent", "12%", 12},
		{"blank", "", 0},
		{"text", "n/a", 0},
		{"nil", nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseNumber(tt.input))
		})
	}
}

func TestDateRangeContains(t *testing.T) {
	day := func(d int) time.Time { return time.Date(2024, 3, d, 0, 0, 0, 0, time.UTC) }
	r := DateRange{Start: day(2), End: day(4)}

	assert.False(t, r.Contains(day(1)))
	assert.True(t, r.Contains(day(2)))
	assert.True(t, r.Contains(day(4)))
	assert.True(t, r.Contains(day(4).Add(10*time.Hour)))
	assert.True(t, r.Contains(day(4).Add(24*time.Hour-time.Nanosecond)))
	assert.False(t, r.Contains(day(5)))
	assert.True(t, DateRange{}.Contains(day(1)))
}

func TestRecordHasValue(t *testing.T) {
	rec := Record{"blank": "  ", "empty": "", "zero": 0, "nil": nil, "text": "x"}

	assert.True(t, rec.Has("blank"))
	assert.False(t, rec.HasValue("blank"))
	assert.False(t, rec.HasValue("empty"))
	assert.True(t, rec.HasValue("zero"))
	assert.False(t, rec.HasValue("nil"))
	assert.False(t, rec.HasValue("missing"))
	assert.True(t, rec.HasValue("text"))
}

func TestDayEnd(t *testing.T) {
	got := DayEnd(time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC))

	assert.Equal(t, time.Date(2024, 3, 4, 23, 59, 59, 999999999, time.UTC), got)
	assert.True(t, DayEnd(time.Time{}).IsZero())
}

func TestOutputRowLastWriteWins(t *testing.T) {
	row := NewOutputRow()
	row.Set("Users", 1.0)
	row.Set("ATC", 2.0)
	row.Set("Users", 3.0)

	assert.Equal(t, []string{"Users", "ATC"}, row.Columns)
	assert.Equal(t, 3.0, row.Get("Users"))
}
