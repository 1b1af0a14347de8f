package formula

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/google/cel-go/cel"
)

// Named retention ratios used when an engagement filter cannot be checked per
// record. They estimate the share of sessions that pass the filter.
const (
	QualityDurationRetention   = 0.70 // session duration above one minute
	QualityEngagementRetention = 0.60 // any clause set that includes a page view threshold
)

var (
	durationClause = regexp.MustCompile(
		`(?i)session\s+duration\s+(?:is\s+)?(?:above|over|greater\s+than|more\s+than|longer\s+than|>)\s*(?:one\s+minute|1\s*minute|a\s+minute|60\s*seconds|60\s*s\b)`)
	pageViewsClause = regexp.MustCompile(
		`(?i)page\s*views?\s+(?:is\s+|are\s+)?(?:above|over|greater\s+than|more\s+than|>)\s*(\d+(?:\.\d+)?|one|two|three|four|five|six|seven|eight|nine|ten)\b`)
	filterHint = regexp.MustCompile(`(?i)\b(?:limit|limited|filter|filtered|where)\b`)
)

var numberWords = map[string]float64{
	"one": 1, "two": 2, "three": 3, "four": 4, "five": 5,
	"six": 6, "seven": 7, "eight": 8, "nine": 9, "ten": 10,
}

// Filter is a recognised engagement restriction compiled to a CEL predicate
// over the per-record variables duration and pageviews.
type Filter struct {
	Clauses       []string
	Expr          string
	Retention     float64
	UsesDuration  bool
	UsesPageViews bool

	catalog *FilterCatalog
}

// Match evaluates the predicate for one record.
func (f *Filter) Match(duration, pageViews float64) (bool, error) {
	prg, err := f.catalog.program(f.Expr)
	if err != nil {
		return false, err
	}
	out, _, err := prg.Eval(map[string]any{
		"duration":  duration,
		"pageviews": pageViews,
	})
	if err != nil {
		return false, fmt.Errorf("eval filter %q: %w", f.Expr, err)
	}
	matched, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("filter %q did not produce a bool", f.Expr)
	}
	return matched, nil
}

// FilterCatalog recognises filter clauses in formula text and caches compiled programs.
type FilterCatalog struct {
	env *cel.Env

	mu       sync.RWMutex
	programs map[string]cel.Program
}

func NewFilterCatalog() (*FilterCatalog, error) {
	env, err := cel.NewEnv(
		cel.Variable("duration", cel.DoubleType),
		cel.Variable("pageviews", cel.DoubleType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}
	return &FilterCatalog{
		env:      env,
		programs: make(map[string]cel.Program),
	}, nil
}

// Detect returns the filter described in text, or nil when no clause is recognised.
func (c *FilterCatalog) Detect(text string) *Filter {
	f := &Filter{catalog: c}
	var exprs []string

	if durationClause.MatchString(text) {
		f.UsesDuration = true
		f.Clauses = append(f.Clauses, "session_duration_above_one_minute")
		exprs = append(exprs, "duration > 60.0")
	}
	if m := pageViewsClause.FindStringSubmatch(text); m != nil {
		threshold, ok := numberWords[strings.ToLower(m[1])]
		if !ok {
			threshold, _ = strconv.ParseFloat(m[1], 64)
		}
		f.UsesPageViews = true
		f.Clauses = append(f.Clauses, fmt.Sprintf("page_views_above_%g", threshold))
		exprs = append(exprs, fmt.Sprintf("pageviews > %.2f", threshold))
	}

	if len(exprs) == 0 {
		return nil
	}
	f.Expr = strings.Join(exprs, " && ")
	f.Retention = QualityEngagementRetention
	if f.UsesDuration && !f.UsesPageViews {
		f.Retention = QualityDurationRetention
	}
	return f
}

// MentionsFilter reports whether text talks about filtering at all, recognised or not.
func MentionsFilter(text string) bool {
	return filterHint.MatchString(text)
}

func (c *FilterCatalog) program(expr string) (cel.Program, error) {
	c.mu.RLock()
	prg, hit := c.programs[expr]
	c.mu.RUnlock()
	if hit {
		return prg, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if prg, hit = c.programs[expr]; hit {
		return prg, nil
	}
	ast, issues := c.env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile filter %q: %w", expr, issues.Err())
	}
	prg, err := c.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("program filter %q: %w", expr, err)
	}
	c.programs[expr] = prg
	return prg, nil
}
