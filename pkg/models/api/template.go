package api

import "time"

type FieldDefinition struct {
	Field        string `json:"field"`
	OutputTarget string `json:"output_file_name"`
	InputSource  string `json:"input_from"`
	Type         string `json:"type"`
	Formula      string `json:"formula"`
	Notes        string `json:"notes,omitempty"`
}

type LogicConfiguration struct {
	Version      string            `json:"version"`
	IsActive     bool              `json:"is_active"`
	LastModified time.Time         `json:"last_modified"`
	Fields       []FieldDefinition `json:"fields"`
}

type ValidationIssue struct {
	Row      int    `json:"row"`
	Field    string `json:"field"`
	Message  string `json:"message"`
	Severity string `json:"severity"`
	Code     string `json:"code"`
}

type ValidationResult struct {
	IsValid  bool              `json:"is_valid"`
	Errors   []ValidationIssue `json:"errors"`
	Warnings []ValidationIssue `json:"warnings"`
}

// ActivationResponse answers a template upload.
type ActivationResponse struct {
	Configuration *LogicConfiguration `json:"configuration,omitempty"`
	Validation    ValidationResult    `json:"validation"`
}
