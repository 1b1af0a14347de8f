package domain

type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// TemplateWide is the row index used for issues that concern the whole template.
const TemplateWide = -1

const (
	CodeMissingFieldName      = "MISSING_FIELD_NAME"
	CodeMissingOutputTarget   = "MISSING_OUTPUT_TARGET"
	CodeInvalidOutputTarget   = "INVALID_OUTPUT_TARGET"
	CodeMissingInputSource    = "MISSING_INPUT_SOURCE"
	CodeInvalidInputSource    = "INVALID_INPUT_SOURCE"
	CodeInvalidDataType       = "INVALID_DATA_TYPE"
	CodeMissingFormula        = "MISSING_FORMULA"
	CodeUnrecognizedFormula   = "UNRECOGNIZED_FORMULA"
	CodeUnrecognizedFilter    = "UNRECOGNIZED_FILTER"
	CodeMissingEssentialField = "MISSING_ESSENTIAL_FIELD"
	CodeDuplicateField        = "DUPLICATE_FIELD"
	CodeCircularDependency    = "CIRCULAR_DEPENDENCY"
	CodeGroupOnlyFormula      = "GROUP_ONLY_FORMULA"
	CodeUnresolvedReference   = "UNRESOLVED_REFERENCE"
	CodeForwardReference      = "FORWARD_REFERENCE"
	CodeManualFormulaIgnored  = "MANUAL_FORMULA_IGNORED"
)

type ValidationIssue struct {
	Row      int
	Field    string
	Message  string
	Severity Severity
	Code     string
}

type ValidationResult struct {
	IsValid  bool
	Errors   []ValidationIssue
	Warnings []ValidationIssue
}

func (r *ValidationResult) Add(issue ValidationIssue) {
	if issue.Severity == SeverityError {
		r.Errors = append(r.Errors, issue)
		return
	}
	r.Warnings = append(r.Warnings, issue)
}

// HasCode reports whether any error or warning carries the given code.
func (r ValidationResult) HasCode(code string) bool {
	for _, list := range [][]ValidationIssue{r.Errors, r.Warnings} {
		for _, issue := range list {
			if issue.Code == code {
				return true
			}
		}
	}
	return false
}
