package template

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/de-tools/campaign-atlas/pkg/models/domain"
	"github.com/de-tools/campaign-atlas/pkg/services/formula"
)

// DefaultEssentials are the field names each output table must define.
func DefaultEssentials() map[domain.OutputTarget][]string {
	return map[domain.OutputTarget][]string{
		domain.OutputGroupLevel:     {"Date", "Campaign"},
		domain.OutputAggregateLevel: {"Date", "Users"},
	}
}

type Settings struct {
	// StrictFormulas reports every unrecognised formula as an error.
	StrictFormulas bool
	Essentials     map[domain.OutputTarget][]string
	Sessions       domain.SessionColumns
}

type Validator struct {
	grammar  *formula.Grammar
	settings Settings
}

func NewValidator(grammar *formula.Grammar, settings Settings) *Validator {
	if settings.Essentials == nil {
		settings.Essentials = DefaultEssentials()
	}
	return &Validator{grammar: grammar, settings: settings}
}

// plausible text at least mentions something the grammar knows about.
var plausible = regexp.MustCompile(
	`(?i)\b(?:sum|average|avg|count|look\s*up|percentage|group|as\s+is|column|match|total)\b|"[^"]+"|\{[^}]+\}`)

// row is a template row after enum parsing. Fields that failed to parse are zero.
type row struct {
	index   int
	name    string
	key     string
	target  domain.OutputTarget
	source  domain.InputSource
	formula formula.Formula
}

// Validate runs every check over rows and accumulates the issues. Rows are
// indexed from 0 in template order.
func (v *Validator) Validate(rows []domain.TemplateRow) domain.ValidationResult {
	var result domain.ValidationResult

	parsed := make([]row, 0, len(rows))
	for i, raw := range rows {
		parsed = append(parsed, v.checkRow(&result, i, raw))
	}

	v.checkEssentials(&result, parsed)
	checkDuplicates(&result, parsed)
	cyclic := checkCycles(&result, parsed)
	v.checkReferences(&result, parsed, cyclic)

	result.IsValid = len(result.Errors) == 0
	return result
}

func (v *Validator) checkRow(result *domain.ValidationResult, i int, raw domain.TemplateRow) row {
	r := row{index: i, name: strings.TrimSpace(raw.Fields)}
	r.key = fieldKey(r.name)
	issue := func(code string, severity domain.Severity, format string, args ...any) {
		result.Add(domain.ValidationIssue{
			Row:      i,
			Field:    r.name,
			Message:  fmt.Sprintf(format, args...),
			Severity: severity,
			Code:     code,
		})
	}

	if r.name == "" {
		issue(domain.CodeMissingFieldName, domain.SeverityError, "field name is required")
	}

	if strings.TrimSpace(raw.OutputTarget) == "" {
		issue(domain.CodeMissingOutputTarget, domain.SeverityError, "output file name is required")
	} else if target, ok := domain.ParseOutputTarget(raw.OutputTarget); ok {
		r.target = target
	} else {
		issue(domain.CodeInvalidOutputTarget, domain.SeverityError,
			"output file name %q is not one of %q, %q", raw.OutputTarget, domain.OutputGroupLevel, domain.OutputAggregateLevel)
	}

	if strings.TrimSpace(raw.InputSource) == "" {
		issue(domain.CodeMissingInputSource, domain.SeverityError, "input source is required")
	} else if source, ok := domain.ParseInputSource(raw.InputSource); ok {
		r.source = source
	} else {
		issue(domain.CodeInvalidInputSource, domain.SeverityError, "input source %q is not recognised", raw.InputSource)
	}

	if _, ok := domain.ParseDataType(raw.Type); !ok {
		issue(domain.CodeInvalidDataType, domain.SeverityError, "type %q is not one of Date, Text, Number", raw.Type)
	}

	text := strings.TrimSpace(raw.Formula)
	if r.source == domain.SourceManual {
		if text != "" {
			issue(domain.CodeManualFormulaIgnored, domain.SeverityWarning, "manual fields are not computed, formula is ignored")
		}
		return r
	}
	if text == "" {
		if r.source != "" {
			issue(domain.CodeMissingFormula, domain.SeverityError, "formula is required for %s fields", r.source)
		}
		return r
	}

	r.formula = v.grammar.Parse(text)
	switch {
	case r.formula.Kind == formula.KindUnrecognized:
		severity := domain.SeverityWarning
		if v.settings.StrictFormulas || !plausible.MatchString(text) {
			severity = domain.SeverityError
		}
		issue(domain.CodeUnrecognizedFormula, severity, "formula %q does not match any known pattern", text)
	case r.formula.UnknownFilter:
		issue(domain.CodeUnrecognizedFilter, domain.SeverityWarning,
			"filter in %q is not recognised, the aggregate runs unfiltered", text)
	}
	if r.target == domain.OutputAggregateLevel && r.formula.GroupOnly() {
		issue(domain.CodeGroupOnlyFormula, domain.SeverityError,
			"%s formulas need a group and cannot be used at %s", r.formula.Kind, domain.OutputAggregateLevel)
	}
	return r
}

func (v *Validator) checkEssentials(result *domain.ValidationResult, rows []row) {
	present := make(map[domain.OutputTarget]map[string]bool)
	for _, r := range rows {
		if r.target == "" || r.key == "" {
			continue
		}
		if present[r.target] == nil {
			present[r.target] = make(map[string]bool)
		}
		present[r.target][r.key] = true
	}

	for _, target := range []domain.OutputTarget{domain.OutputGroupLevel, domain.OutputAggregateLevel} {
		for _, name := range v.settings.Essentials[target] {
			if present[target][fieldKey(name)] {
				continue
			}
			result.Add(domain.ValidationIssue{
				Row:      domain.TemplateWide,
				Field:    name,
				Message:  fmt.Sprintf("%s is missing essential field %q", target, name),
				Severity: domain.SeverityError,
				Code:     domain.CodeMissingEssentialField,
			})
		}
	}
}

// checkDuplicates warns about repeated names within one output table. The later
// definition wins at evaluation time.
func checkDuplicates(result *domain.ValidationResult, rows []row) {
	first := make(map[string]int)
	for _, r := range rows {
		if r.target == "" || r.key == "" {
			continue
		}
		k := tableKey(r.target, r.key)
		if prev, seen := first[k]; seen {
			result.Add(domain.ValidationIssue{
				Row:      r.index,
				Field:    r.name,
				Message:  fmt.Sprintf("%q is already defined in row %d for %s, this row wins", r.name, prev, r.target),
				Severity: domain.SeverityWarning,
				Code:     domain.CodeDuplicateField,
			})
			continue
		}
		first[k] = r.index
	}
}

// checkCycles walks the references of calculated fields depth first within each
// output table and reports every cycle once with its full path. It returns the
// members of the cycles found, keyed by tableKey.
func checkCycles(result *domain.ValidationResult, rows []row) map[string]bool {
	members := make(map[string]bool)
	for _, target := range []domain.OutputTarget{domain.OutputGroupLevel, domain.OutputAggregateLevel} {
		calculated := make(map[string]row)
		var order []string
		for _, r := range rows {
			if r.target != target || r.source != domain.SourceCalculate || r.key == "" {
				continue
			}
			if _, seen := calculated[r.key]; !seen {
				order = append(order, r.key)
			}
			calculated[r.key] = r
		}

		reported := make(map[string]bool)
		done := make(map[string]bool)
		var path []string
		onPath := make(map[string]int)

		var visit func(key string)
		visit = func(key string) {
			if at, ok := onPath[key]; ok {
				cycle := append(append([]string{}, path[at:]...), key)
				for _, k := range cycle {
					members[tableKey(target, k)] = true
				}
				id := cycleID(cycle[:len(cycle)-1])
				if reported[id] {
					return
				}
				reported[id] = true
				names := make([]string, len(cycle))
				for i, k := range cycle {
					names[i] = calculated[k].name
				}
				start := calculated[cycle[0]]
				result.Add(domain.ValidationIssue{
					Row:      start.index,
					Field:    start.name,
					Message:  "circular dependency: " + strings.Join(names, " -> "),
					Severity: domain.SeverityError,
					Code:     domain.CodeCircularDependency,
				})
				return
			}
			if done[key] {
				return
			}
			r, ok := calculated[key]
			if !ok {
				return
			}
			onPath[key] = len(path)
			path = append(path, key)
			for _, ref := range r.formula.Refs() {
				visit(fieldKey(ref))
			}
			path = path[:len(path)-1]
			delete(onPath, key)
			done[key] = true
		}

		for _, key := range order {
			visit(key)
		}
	}
	return members
}

func tableKey(target domain.OutputTarget, key string) string {
	return string(target) + "\x00" + key
}

// cycleID names a cycle independently of where the walk entered it.
func cycleID(keys []string) string {
	lowest := 0
	for i, k := range keys {
		if k < keys[lowest] {
			lowest = i
		}
	}
	rotated := append(append([]string{}, keys[lowest:]...), keys[:lowest]...)
	return strings.Join(rotated, "\x00")
}

// checkReferences resolves calculated operands the way the evaluator does:
// fields run in template order, so an operand sees the siblings of earlier rows,
// then a session metric of the same name. Naming a later sibling is an error.
// References inside a reported cycle are left to checkCycles.
func (v *Validator) checkReferences(result *domain.ValidationResult, rows []row, cyclic map[string]bool) {
	firstRow := make(map[string]int)
	for _, r := range rows {
		if r.target == "" || r.key == "" {
			continue
		}
		if _, seen := firstRow[tableKey(r.target, r.key)]; !seen {
			firstRow[tableKey(r.target, r.key)] = r.index
		}
	}

	defined := make(map[string]bool)
	for _, r := range rows {
		if r.source == domain.SourceCalculate && r.target != "" {
			for _, ref := range r.formula.Refs() {
				key := tableKey(r.target, fieldKey(ref))
				if defined[key] {
					continue
				}
				if cyclic[key] && cyclic[tableKey(r.target, r.key)] {
					continue
				}
				if at, later := firstRow[key]; later {
					result.Add(domain.ValidationIssue{
						Row:      r.index,
						Field:    r.name,
						Message:  fmt.Sprintf("reference %q is defined later in row %d, move it above %q", ref, at, r.name),
						Severity: domain.SeverityError,
						Code:     domain.CodeForwardReference,
					})
					continue
				}
				if _, ok := v.settings.Sessions.Metric(ref); ok {
					continue
				}
				result.Add(domain.ValidationIssue{
					Row:      r.index,
					Field:    r.name,
					Message:  fmt.Sprintf("reference %q is not a field of %s or a session metric", ref, r.target),
					Severity: domain.SeverityWarning,
					Code:     domain.CodeUnresolvedReference,
				})
			}
		}
		if r.target != "" && r.key != "" {
			defined[tableKey(r.target, r.key)] = true
		}
	}
}

// Definitions converts rows that passed validation. Rows whose enums do not
// parse are skipped.
func Definitions(rows []domain.TemplateRow) []domain.FieldDefinition {
	defs := make([]domain.FieldDefinition, 0, len(rows))
	for _, raw := range rows {
		target, okTarget := domain.ParseOutputTarget(raw.OutputTarget)
		source, okSource := domain.ParseInputSource(raw.InputSource)
		dataType, okType := domain.ParseDataType(raw.Type)
		name := strings.TrimSpace(raw.Fields)
		if !okTarget || !okSource || !okType || name == "" {
			continue
		}
		defs = append(defs, domain.FieldDefinition{
			FieldName:    name,
			OutputTarget: target,
			InputSource:  source,
			DataType:     dataType,
			Formula:      strings.TrimSpace(raw.Formula),
			Notes:        strings.TrimSpace(raw.Notes),
		})
	}
	return defs
}

func fieldKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
