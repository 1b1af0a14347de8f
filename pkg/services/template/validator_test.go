package template

import (
	"testing"

	"github.com/de-tools/campaign-atlas/pkg/models/domain"
	"github.com/de-tools/campaign-atlas/pkg/services/formula"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestValidator(t *testing.T, strict bool) *Validator {
	t.Helper()
	catalog, err := formula.NewFilterCatalog()
	require.NoError(t, err)
	return NewValidator(formula.NewGrammar(catalog), Settings{
		StrictFormulas: strict,
		Sessions:       domain.DefaultColumnMapping().Sessions,
	})
}

// essentials returns the minimal rows that satisfy the essential field checks.
func essentials() []domain.TemplateRow {
	return []domain.TemplateRow{
		{Fields: "Date", OutputTarget: "Group Level", InputSource: "Sessions", Type: "Date", Formula: `As is from input file column name "Day"`},
		{Fields: "Campaign", OutputTarget: "Group Level", InputSource: "Sessions", Type: "Text", Formula: "PRIMARY GROUP"},
		{Fields: "Date", OutputTarget: "Aggregate Level", InputSource: "Sessions", Type: "Date", Formula: `As is from input file column name "Day"`},
		{Fields: "Users", OutputTarget: "Aggregate Level", InputSource: "Sessions", Type: "Number", Formula: `As is from input file column name "Online store visitors"`},
	}
}

func calc(name, formulaText string) domain.TemplateRow {
	return domain.TemplateRow{Fields: name, OutputTarget: "Group Level", InputSource: "Calculate", Type: "Number", Formula: formulaText}
}

func codes(issues []domain.ValidationIssue) []string {
	var out []string
	for _, i := range issues {
		out = append(out, i.Code)
	}
	return out
}

func TestValidator_Essentials(t *testing.T) {
	v := newTestValidator(t, false)

	t.Run("minimal template is valid", func(t *testing.T) {
		result := v.Validate(essentials())

		assert.True(t, result.IsValid)
		assert.Empty(t, result.Errors)
		assert.Empty(t, result.Warnings)
	})

	t.Run("empty template misses every essential field", func(t *testing.T) {
		result := v.Validate(nil)

		assert.False(t, result.IsValid)
		require.Len(t, result.Errors, 4)
		for _, issue := range result.Errors {
			assert.Equal(t, domain.CodeMissingEssentialField, issue.Code)
			assert.Equal(t, domain.TemplateWide, issue.Row)
		}
	})

	t.Run("names match case insensitively", func(t *testing.T) {
		rows := essentials()
		rows[3].Fields = "  users "

		assert.True(t, v.Validate(rows).IsValid)
	})
}

func TestValidator_Structural(t *testing.T) {
	v := newTestValidator(t, false)
	rows := append(essentials(),
		domain.TemplateRow{OutputTarget: "Group Level", InputSource: "Sessions", Type: "Number", Formula: "PRIMARY GROUP"},
		domain.TemplateRow{Fields: "A", InputSource: "Sessions", Type: "Number", Formula: "PRIMARY GROUP"},
		domain.TemplateRow{Fields: "B", OutputTarget: "Row Level", InputSource: "Sessions", Type: "Number", Formula: "PRIMARY GROUP"},
		domain.TemplateRow{Fields: "C", OutputTarget: "Group Level", Type: "Number", Formula: "PRIMARY GROUP"},
		domain.TemplateRow{Fields: "D", OutputTarget: "Group Level", InputSource: "Spreadsheet", Type: "Number", Formula: "PRIMARY GROUP"},
		domain.TemplateRow{Fields: "E", OutputTarget: "Group Level", InputSource: "Sessions", Type: "Currency", Formula: "PRIMARY GROUP"},
		domain.TemplateRow{Fields: "F", OutputTarget: "Group Level", InputSource: "Calculate", Type: "Number"},
	)

	result := v.Validate(rows)

	assert.False(t, result.IsValid)
	assert.Equal(t, []string{
		domain.CodeMissingFieldName,
		domain.CodeMissingOutputTarget,
		domain.CodeInvalidOutputTarget,
		domain.CodeMissingInputSource,
		domain.CodeInvalidInputSource,
		domain.CodeInvalidDataType,
		domain.CodeMissingFormula,
	}, codes(result.Errors))
	assert.Equal(t, 4, result.Errors[0].Row)
	assert.Equal(t, "F", result.Errors[6].Field)
}

func TestValidator_UnrecognizedFormula(t *testing.T) {
	t.Run("garbage is an error", func(t *testing.T) {
		v := newTestValidator(t, false)
		result := v.Validate(append(essentials(), calc("Broken", "???invalid???")))

		assert.False(t, result.IsValid)
		require.Len(t, result.Errors, 1)
		assert.Equal(t, domain.CodeUnrecognizedFormula, result.Errors[0].Code)
		assert.Equal(t, "Broken", result.Errors[0].Field)
	})

	t.Run("plausible text is a warning", func(t *testing.T) {
		v := newTestValidator(t, false)
		result := v.Validate(append(essentials(), calc("Odd", `total of "Sessions" per week`)))

		assert.True(t, result.IsValid)
		assert.Equal(t, []string{domain.CodeUnrecognizedFormula}, codes(result.Warnings))
	})

	t.Run("strict mode promotes warnings", func(t *testing.T) {
		v := newTestValidator(t, true)
		result := v.Validate(append(essentials(), calc("Odd", `total of "Sessions" per week`)))

		assert.False(t, result.IsValid)
		assert.Equal(t, []string{domain.CodeUnrecognizedFormula}, codes(result.Errors))
	})
}

func TestValidator_CircularDependency(t *testing.T) {
	v := newTestValidator(t, false)

	t.Run("two fields referencing each other", func(t *testing.T) {
		result := v.Validate(append(essentials(), calc("X", "Y + 1"), calc("Y", "X + 1")))

		assert.False(t, result.IsValid)
		require.Len(t, result.Errors, 1)
		assert.Equal(t, domain.CodeCircularDependency, result.Errors[0].Code)
		assert.Contains(t, result.Errors[0].Message, "X -> Y -> X")
	})

	t.Run("self reference", func(t *testing.T) {
		result := v.Validate(append(essentials(), calc("Loop", "{Loop} * 2")))

		require.Len(t, result.Errors, 1)
		assert.Contains(t, result.Errors[0].Message, "Loop -> Loop")
	})

	t.Run("longer cycle reported once", func(t *testing.T) {
		result := v.Validate(append(essentials(),
			calc("A", "{B} + 1"),
			calc("B", "{C} + 1"),
			calc("C", "{A} + 1"),
		))

		require.Len(t, result.Errors, 1)
		assert.Contains(t, result.Errors[0].Message, "A -> B -> C -> A")
	})

	t.Run("chains without a cycle pass", func(t *testing.T) {
		result := v.Validate(append(essentials(),
			calc("A", "{Users} + 1"),
			calc("B", "{A} * 2"),
		))

		assert.True(t, result.IsValid)
	})
}

func TestValidator_ForwardReference(t *testing.T) {
	v := newTestValidator(t, false)
	sum := func(name, column string) domain.TemplateRow {
		return domain.TemplateRow{Fields: name, OutputTarget: "Group Level", InputSource: "Sessions", Type: "Number",
			Formula: `SUM: All numeric field of "` + column + `"`}
	}

	t.Run("sibling defined in a later row", func(t *testing.T) {
		// Given a calculated field placed above the fields it reads
		rows := append(essentials(), calc("Margin", "{Revenue} - {Cost}"), sum("Revenue", "sales"), sum("Cost", "spend"))

		// When the template is validated
		result := v.Validate(rows)

		// Then both operands are reported against the Margin row
		assert.False(t, result.IsValid)
		assert.Equal(t, []string{domain.CodeForwardReference, domain.CodeForwardReference}, codes(result.Errors))
		assert.Equal(t, 4, result.Errors[0].Row)
		assert.Contains(t, result.Errors[0].Message, "row 5")
		assert.Contains(t, result.Errors[1].Message, "row 6")
	})

	t.Run("later sibling shadows a session metric", func(t *testing.T) {
		rows := append(essentials(), calc("Half", "{Users} / 2"), sum("Users", "Online store visitors"))

		result := v.Validate(rows)

		assert.Equal(t, []string{domain.CodeForwardReference}, codes(result.Errors))
	})

	t.Run("siblings defined above pass", func(t *testing.T) {
		rows := append(essentials(), sum("Revenue", "sales"), sum("Cost", "spend"), calc("Margin", "{Revenue} - {Cost}"))

		result := v.Validate(rows)

		assert.True(t, result.IsValid)
		assert.Empty(t, result.Warnings)
	})

	t.Run("same name in the other table does not count", func(t *testing.T) {
		rows := append(essentials(), calc("Per User", "{Spend} / {Users}"))
		rows = append(rows, domain.TemplateRow{Fields: "Spend", OutputTarget: "Aggregate Level", InputSource: "Meta", Type: "Number",
			Formula: `SUM: All numeric field of "Amount spent (USD)"`})

		result := v.Validate(rows)

		assert.True(t, result.IsValid)
		assert.Equal(t, []string{domain.CodeUnresolvedReference}, codes(result.Warnings))
	})
}

func TestValidator_Warnings(t *testing.T) {
	v := newTestValidator(t, false)

	tests := []struct {
		name string
		row  domain.TemplateRow
		code string
	}{
		{
			name: "duplicate field",
			row:  domain.TemplateRow{Fields: "campaign", OutputTarget: "Group Level", InputSource: "Sessions", Type: "Text", Formula: "SECONDARY GROUP"},
			code: domain.CodeDuplicateField,
		},
		{
			name: "manual formula",
			row:  domain.TemplateRow{Fields: "Notes", OutputTarget: "Group Level", InputSource: "Manual", Type: "Text", Formula: "ask the team"},
			code: domain.CodeManualFormulaIgnored,
		},
		{
			name: "unknown filter",
			row: domain.TemplateRow{Fields: "Loyal", OutputTarget: "Group Level", InputSource: "Sessions", Type: "Number",
				Formula: `SUM: All numeric field of "Online store visitors" filtered to returning customers`},
			code: domain.CodeUnrecognizedFilter,
		},
		{
			name: "unresolved reference",
			row:  calc("Ratio", "{Revenue} / {Users}"),
			code: domain.CodeUnresolvedReference,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := v.Validate(append(essentials(), tt.row))

			assert.True(t, result.IsValid)
			assert.Equal(t, []string{tt.code}, codes(result.Warnings))
		})
	}
}

func TestValidator_GroupOnlyAtAggregateLevel(t *testing.T) {
	v := newTestValidator(t, false)
	rows := append(essentials(), domain.TemplateRow{
		Fields: "Campaign", OutputTarget: "Aggregate Level", InputSource: "Sessions", Type: "Text", Formula: "PRIMARY GROUP",
	})

	result := v.Validate(rows)

	assert.False(t, result.IsValid)
	assert.Equal(t, []string{domain.CodeGroupOnlyFormula}, codes(result.Errors))
}

func TestValidator_DefaultTemplate(t *testing.T) {
	v := newTestValidator(t, true)
	rows, version, err := DefaultRows()
	require.NoError(t, err)

	result := v.Validate(rows)

	assert.Equal(t, "1.0.0", version)
	assert.True(t, result.IsValid, "%+v", result.Errors)
	assert.Empty(t, result.Warnings)
}

func TestDefinitions(t *testing.T) {
	defs := Definitions([]domain.TemplateRow{
		{Fields: " Users ", OutputTarget: "group level", InputSource: "SourceA", Type: "number", Formula: " PRIMARY GROUP "},
		{Fields: "Bad", OutputTarget: "nowhere", InputSource: "Sessions", Type: "Number"},
	})

	require.Len(t, defs, 1)
	assert.Equal(t, domain.FieldDefinition{
		FieldName:    "Users",
		OutputTarget: domain.OutputGroupLevel,
		InputSource:  domain.SourceSessions,
		DataType:     domain.DataTypeNumber,
		Formula:      "PRIMARY GROUP",
	}, defs[0])
}
