package domain

import (
	"strings"
	"time"
)

type OutputTarget string

const (
	OutputGroupLevel     OutputTarget = "Group Level"
	OutputAggregateLevel OutputTarget = "Aggregate Level"
)

type InputSource string

const (
	SourceSessions  InputSource = "Sessions" // storefront session export
	SourceMeta      InputSource = "Meta"     // ad platform 1
	SourceGoogle    InputSource = "Google"   // ad platform 2
	SourceManual    InputSource = "Manual"
	SourceCalculate InputSource = "Calculate"
)

type DataType string

const (
	DataTypeDate   DataType = "Date"
	DataTypeText   DataType = "Text"
	DataTypeNumber DataType = "Number"
)

var (
	outputTargets = map[string]OutputTarget{
		"grouplevel":     OutputGroupLevel,
		"aggregatelevel": OutputAggregateLevel,
	}
	inputSources = map[string]InputSource{
		"sessions":  SourceSessions,
		"sourcea":   SourceSessions,
		"meta":      SourceMeta,
		"sourceb":   SourceMeta,
		"google":    SourceGoogle,
		"sourcec":   SourceGoogle,
		"manual":    SourceManual,
		"calculate": SourceCalculate,
	}
	dataTypes = map[string]DataType{
		"date":   DataTypeDate,
		"text":   DataTypeText,
		"number": DataTypeNumber,
	}
)

var labelSeparators = strings.NewReplacer("_", " ", "-", " ")

// enumKey folds case and drops separators, so "group level", "GroupLevel"
// and "group_level" are the same label.
func enumKey(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(labelSeparators.Replace(s)), ""))
}

func ParseOutputTarget(s string) (OutputTarget, bool) {
	v, ok := outputTargets[enumKey(s)]
	return v, ok
}

func ParseInputSource(s string) (InputSource, bool) {
	v, ok := inputSources[enumKey(s)]
	return v, ok
}

func ParseDataType(s string) (DataType, bool) {
	v, ok := dataTypes[enumKey(s)]
	return v, ok
}

// IsPlatform reports whether the source is one of the two ad platform exports.
func (s InputSource) IsPlatform() bool {
	return s == SourceMeta || s == SourceGoogle
}

// TemplateRow is one raw row of a logic template as authored, before enum parsing.
type TemplateRow struct {
	Fields       string `json:"fields" yaml:"fields"`
	OutputTarget string `json:"output_file_name" yaml:"output"`
	InputSource  string `json:"input_from" yaml:"input"`
	Type         string `json:"type" yaml:"type"`
	Formula      string `json:"formula" yaml:"formula"`
	Notes        string `json:"notes,omitempty" yaml:"notes,omitempty"`
}

type FieldDefinition struct {
	FieldName    string
	OutputTarget OutputTarget
	InputSource  InputSource
	DataType     DataType
	Formula      string
	Notes        string
}

// Row converts the definition back to its authored form.
func (d FieldDefinition) Row() TemplateRow {
	return TemplateRow{
		Fields:       d.FieldName,
		OutputTarget: string(d.OutputTarget),
		InputSource:  string(d.InputSource),
		Type:         string(d.DataType),
		Formula:      d.Formula,
		Notes:        d.Notes,
	}
}

type LogicConfiguration struct {
	Definitions  []FieldDefinition
	LastModified time.Time
	Version      string
	IsActive     bool // true when user supplied, false for the built-in default
}

// ForTarget returns the definitions of one output table in template order.
func (c *LogicConfiguration) ForTarget(target OutputTarget) []FieldDefinition {
	var defs []FieldDefinition
	for _, d := range c.Definitions {
		if d.OutputTarget == target {
			defs = append(defs, d)
		}
	}
	return defs
}
