package domain

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Record is one row of an input dataset. Values arrive loosely typed.
type Record map[string]any

type Datasets struct {
	Sessions []Record
	Meta     []Record
	Google   []Record
}

// ForSource returns the dataset an input source reads from. Calculate reads sessions.
func (d Datasets) ForSource(source InputSource) []Record {
	switch source {
	case SourceMeta:
		return d.Meta
	case SourceGoogle:
		return d.Google
	case SourceSessions, SourceCalculate:
		return d.Sessions
	default:
		return nil
	}
}

type DateRange struct {
	Start time.Time
	End   time.Time
}

func (r DateRange) IsZero() bool {
	return r.Start.IsZero() && r.End.IsZero()
}

// Contains checks t against the inclusive range; a zero bound is open. End
// names the last day to include, so any time on that day is inside.
func (r DateRange) Contains(t time.Time) bool {
	if !r.Start.IsZero() && t.Before(r.Start) {
		return false
	}
	if !r.End.IsZero() && t.After(DayEnd(r.End)) {
		return false
	}
	return true
}

// DayEnd extends a date-only upper bound to the last instant of that day.
func DayEnd(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, int(time.Second-time.Nanosecond), t.Location())
}

func (r Record) Has(column string) bool {
	v, ok := r[column]
	return ok && v != nil
}

// HasValue is Has with blank strings treated as absent. CSV cells arrive as "".
func (r Record) HasValue(column string) bool {
	if !r.Has(column) {
		return false
	}
	s, ok := r[column].(string)
	return !ok || strings.TrimSpace(s) != ""
}

func (r Record) String(column string) string {
	v, ok := r[column]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s)
	}
	return fmt.Sprint(v)
}

func (r Record) Number(column string) float64 {
	return ParseNumber(r[column])
}

var numberCleaner = strings.NewReplacer(
	",", "", "$", "", "€", "", "£", "", "¥", "", "%", "", " ", "", "\u00a0", "",
)

// ParseNumber coerces a loosely typed value to a finite float. Anything that
// cannot be read as a number is 0.
func ParseNumber(v any) float64 {
	var f float64
	switch n := v.(type) {
	case nil:
		return 0
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case uint:
		f = float64(n)
	case uint64:
		f = float64(n)
	case bool:
		if n {
			f = 1
		}
	case string:
		f = parseNumberString(n)
	default:
		f = parseNumberString(fmt.Sprint(n))
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

func parseNumberString(s string) float64 {
	s = numberCleaner.Replace(strings.TrimSpace(s))
	if s == "" {
		return 0
	}
	// accounting negatives, e.g. (12.50)
	neg := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		neg = true
		s = s[1 : len(s)-1]
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	if neg {
		return -f
	}
	return f
}

// IsNumeric reports whether s reads as a number after the same cleanup ParseNumber applies.
func IsNumeric(s string) bool {
	s = numberCleaner.Replace(strings.TrimSpace(s))
	if s == "" {
		return false
	}
	_, err := strconv.ParseFloat(s, 64)
	return err == nil
}

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	time.RFC3339,
	"01/02/2006",
	"1/2/2006",
	"Jan 2, 2006",
	"2 Jan 2006",
}

// ParseDate reads the date formats the storefront and ad platform exports use.
func ParseDate(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case nil:
		return time.Time{}, false
	}
	s := strings.TrimSpace(fmt.Sprint(v))
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
