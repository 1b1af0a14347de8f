package formula

import (
	"regexp"
	"strings"

	"github.com/de-tools/campaign-atlas/pkg/models/domain"
)

type Kind int

const (
	KindUnrecognized Kind = iota
	KindDirect
	KindSum
	KindAverage
	KindPrimaryGroup
	KindSecondaryGroup
	KindLookup
	KindPercentage
	KindFilteredAggregate
	KindBinary
	KindEmpty
)

var kindNames = map[Kind]string{
	KindUnrecognized:      "unrecognized",
	KindDirect:            "direct",
	KindSum:               "sum",
	KindAverage:           "average",
	KindPrimaryGroup:      "primary_group",
	KindSecondaryGroup:    "secondary_group",
	KindLookup:            "lookup",
	KindPercentage:        "percentage",
	KindFilteredAggregate: "filtered_aggregate",
	KindBinary:            "binary",
	KindEmpty:             "empty",
}

func (k Kind) String() string {
	return kindNames[k]
}

type Aggregate string

const (
	AggregateSum     Aggregate = "sum"
	AggregateAverage Aggregate = "average"
	AggregateCount   Aggregate = "count"
)

// Operand is one side of a binary or percentage formula.
type Operand struct {
	Text  string
	Ref   bool // names a field; otherwise Value holds a literal
	Value float64
}

// Formula is the classified form of a formula string.
type Formula struct {
	Kind      Kind
	Raw       string
	Field     string
	Aggregate Aggregate
	Filter    *Filter
	// UnknownFilter is set when the text talks about a filter the catalogue does not know.
	UnknownFilter bool
	Operator      string
	Left          Operand
	Right         Operand
}

// Refs lists the field names the formula reads from sibling values.
func (f Formula) Refs() []string {
	if f.Kind != KindBinary && f.Kind != KindPercentage {
		return nil
	}
	var refs []string
	for _, op := range []Operand{f.Left, f.Right} {
		if op.Ref {
			refs = append(refs, op.Text)
		}
	}
	return refs
}

// GroupOnly reports whether the formula needs a current group to mean anything.
func (f Formula) GroupOnly() bool {
	switch f.Kind {
	case KindPrimaryGroup, KindSecondaryGroup, KindLookup:
		return true
	}
	return false
}

type matcher func(g *Grammar, s string) (Formula, bool)

// Grammar classifies formula strings. Rules are tried in order and the first
// match wins:
//
//  1. direct mapping      As is from input file column name "X"
//  2. sum                 SUM: All numeric field of "X" [filter text]
//  3. average             AVERAGE: X [filter text]
//  4. group keys          PRIMARY GROUP / SECONDARY GROUP
//  5. lookup              Look up ... from pivot_temp.csv / ... and match it to ...
//  6. percentage          Percentage of (A / B)
//  7. filtered aggregate  SUM|AVERAGE|COUNT ... <recognised filter clause>
//  8. binary              A <op> B
//  9. empty
//
// Binary operators need whitespace on both sides of a bare name. Braced, quoted
// or numeric operands may be written without spaces: {Revenue}/{Users}.
type Grammar struct {
	rules   []matcher
	filters *FilterCatalog
}

func NewGrammar(filters *FilterCatalog) *Grammar {
	return &Grammar{
		filters: filters,
		rules: []matcher{
			matchDirect,
			matchSum,
			matchAverage,
			matchGroupKey,
			matchLookup,
			matchPercentage,
			matchFilteredAggregate,
			matchBinary,
			matchEmpty,
		},
	}
}

// Parse classifies raw. Unmatched text yields KindUnrecognized.
func (g *Grammar) Parse(raw string) Formula {
	s := strings.TrimSpace(raw)
	for _, match := range g.rules {
		if f, ok := match(g, s); ok {
			f.Raw = raw
			return f
		}
	}
	return Formula{Kind: KindUnrecognized, Raw: raw}
}

var (
	directPattern     = regexp.MustCompile(`(?is)^as\s+is\s+from\s+input\s+file\s+column\s+name\s*[:=]?\s*"([^"]+)"`)
	sumPattern        = regexp.MustCompile(`(?is)^sum\s*:\s*all\s+numeric\s+fields?\s+of\s*"([^"]+)"(.*)$`)
	averagePattern    = regexp.MustCompile(`(?is)^average\s*:\s*(.+)$`)
	primaryPattern    = regexp.MustCompile(`(?i)^primary\s+group\b`)
	secondaryPattern  = regexp.MustCompile(`(?i)^secondary\s+group\b`)
	lookupStart       = regexp.MustCompile(`(?is)^look\s*up\b.*pivot_temp\.csv`)
	lookupMatch       = regexp.MustCompile(`(?i)\band\s+match\s+it\s+to\b`)
	lookupBareField   = regexp.MustCompile(`(?is)^look\s*up\s+(?:the\s+)?(.+?)\s+(?:from|and\s+match)\b`)
	percentagePattern = regexp.MustCompile(`(?is)^percentage\s+of\s*\(\s*(.+?)\s*/\s*(.+?)\s*\)`)
	aggregateLead     = regexp.MustCompile(`(?is)^(sum|average|avg|count)\b\s*:?\s*(.*)$`)
	aggregateBare     = regexp.MustCompile(`(?is)^(?:of\s+)?(?:the\s+)?(.+?)\s+(?:where|limit|limited|filter|filtered|only|with|for)\b`)
	binaryPattern     = regexp.MustCompile(`^(.+?)\s+([-+*/])\s+(.+)$`)
	compactPattern    = regexp.MustCompile(`^(\{[^}]+\}|"[^"]+"|\d[\d.,]*)\s*([-+*/])\s*(\{[^}]+\}|"[^"]+"|\d[\d.,]*)$`)
	quotedPattern     = regexp.MustCompile(`"([^"]+)"|\{([^}]+)\}`)
	fieldStop         = regexp.MustCompile(`(?i)\s+(?:where|limit|limited|filter|filtered|only|with)\b|\(`)
)

func matchDirect(_ *Grammar, s string) (Formula, bool) {
	m := directPattern.FindStringSubmatch(s)
	if m == nil {
		return Formula{}, false
	}
	return Formula{Kind: KindDirect, Field: strings.TrimSpace(m[1])}, true
}

func matchSum(g *Grammar, s string) (Formula, bool) {
	m := sumPattern.FindStringSubmatch(s)
	if m == nil {
		return Formula{}, false
	}
	return g.withFilter(Formula{Kind: KindSum, Aggregate: AggregateSum, Field: strings.TrimSpace(m[1])}, m[2]), true
}

func matchAverage(g *Grammar, s string) (Formula, bool) {
	m := averagePattern.FindStringSubmatch(s)
	if m == nil {
		return Formula{}, false
	}
	body := strings.TrimSpace(m[1])
	var field, rest string
	if q := quotedPattern.FindStringSubmatchIndex(body); q != nil && q[0] == 0 {
		field = firstGroup(body, q)
		rest = body[q[1]:]
	} else if loc := fieldStop.FindStringIndex(body); loc != nil {
		field = strings.TrimSpace(body[:loc[0]])
		rest = body[loc[0]:]
	} else {
		field = body
	}
	if field == "" {
		return Formula{}, false
	}
	return g.withFilter(Formula{Kind: KindAverage, Aggregate: AggregateAverage, Field: field}, rest), true
}

// withFilter turns a SUM/AVERAGE into a filtered aggregate when its trailing text
// carries a recognised clause.
func (g *Grammar) withFilter(f Formula, rest string) Formula {
	if strings.TrimSpace(rest) == "" {
		return f
	}
	if filter := g.filters.Detect(rest); filter != nil {
		f.Kind = KindFilteredAggregate
		f.Filter = filter
		return f
	}
	f.UnknownFilter = MentionsFilter(rest)
	return f
}

func matchGroupKey(_ *Grammar, s string) (Formula, bool) {
	switch {
	case primaryPattern.MatchString(s):
		return Formula{Kind: KindPrimaryGroup}, true
	case secondaryPattern.MatchString(s):
		return Formula{Kind: KindSecondaryGroup}, true
	}
	return Formula{}, false
}

func matchLookup(_ *Grammar, s string) (Formula, bool) {
	if !lookupStart.MatchString(s) && !lookupMatch.MatchString(s) {
		return Formula{}, false
	}
	f := Formula{Kind: KindLookup}
	if q := quotedPattern.FindStringSubmatchIndex(s); q != nil {
		f.Field = firstGroup(s, q)
	} else if m := lookupBareField.FindStringSubmatch(s); m != nil {
		f.Field = strings.TrimSpace(m[1])
	}
	return f, true
}

func matchPercentage(_ *Grammar, s string) (Formula, bool) {
	m := percentagePattern.FindStringSubmatch(s)
	if m == nil {
		return Formula{}, false
	}
	return Formula{
		Kind:     KindPercentage,
		Operator: "/",
		Left:     parseOperand(m[1]),
		Right:    parseOperand(m[2]),
	}, true
}

func matchFilteredAggregate(g *Grammar, s string) (Formula, bool) {
	m := aggregateLead.FindStringSubmatch(s)
	if m == nil {
		return Formula{}, false
	}
	filter := g.filters.Detect(m[2])
	if filter == nil {
		return Formula{}, false
	}

	agg := AggregateSum
	switch strings.ToLower(m[1]) {
	case "average", "avg":
		agg = AggregateAverage
	case "count":
		agg = AggregateCount
	}

	var field string
	if q := quotedPattern.FindStringSubmatchIndex(m[2]); q != nil {
		field = firstGroup(m[2], q)
	} else if b := aggregateBare.FindStringSubmatch(strings.TrimSpace(m[2])); b != nil {
		field = strings.TrimSpace(b[1])
	}
	if field == "" && agg != AggregateCount {
		return Formula{}, false
	}
	return Formula{Kind: KindFilteredAggregate, Aggregate: agg, Field: field, Filter: filter}, true
}

func matchBinary(_ *Grammar, s string) (Formula, bool) {
	m := binaryPattern.FindStringSubmatch(s)
	// one operator only: calculated fields chain through siblings, not nesting
	if m == nil || binaryPattern.MatchString(strings.TrimSpace(m[3])) {
		m = compactPattern.FindStringSubmatch(s)
		if m == nil || (domain.IsNumeric(m[1]) && domain.IsNumeric(m[3])) {
			return Formula{}, false
		}
	}
	left, right := parseOperand(m[1]), parseOperand(m[3])
	if left.Text == "" || right.Text == "" {
		return Formula{}, false
	}
	return Formula{Kind: KindBinary, Operator: m[2], Left: left, Right: right}, true
}

func matchEmpty(_ *Grammar, s string) (Formula, bool) {
	if s != "" {
		return Formula{}, false
	}
	return Formula{Kind: KindEmpty}, true
}

// parseOperand reads {Name} or "Name" as a reference, numbers as literals and
// any other bare text as a reference.
func parseOperand(text string) Operand {
	t := strings.TrimSpace(text)
	if len(t) >= 2 && ((t[0] == '{' && t[len(t)-1] == '}') || (t[0] == '"' && t[len(t)-1] == '"')) {
		return Operand{Text: strings.TrimSpace(t[1 : len(t)-1]), Ref: true}
	}
	if domain.IsNumeric(t) {
		return Operand{Text: t, Value: domain.ParseNumber(t)}
	}
	return Operand{Text: t, Ref: true}
}

func firstGroup(s string, loc []int) string {
	for i := 2; i+1 < len(loc); i += 2 {
		if loc[i] >= 0 {
			return strings.TrimSpace(s[loc[i]:loc[i+1]])
		}
	}
	return ""
}
