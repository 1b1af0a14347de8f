package adapters

import (
	"github.com/de-tools/campaign-atlas/pkg/models/api"
	"github.com/de-tools/campaign-atlas/pkg/models/domain"
)

func MapValidationIssueDomainToApi(i domain.ValidationIssue) api.ValidationIssue {
	return api.ValidationIssue{
		Row:      i.Row,
		Field:    i.Field,
		Message:  i.Message,
		Severity: string(i.Severity),
		Code:     i.Code,
	}
}

func MapValidationResultDomainToApi(r domain.ValidationResult) api.ValidationResult {
	res := api.ValidationResult{
		IsValid:  r.IsValid,
		Errors:   make([]api.ValidationIssue, 0, len(r.Errors)),
		Warnings: make([]api.ValidationIssue, 0, len(r.Warnings)),
	}
	for _, i := range r.Errors {
		res.Errors = append(res.Errors, MapValidationIssueDomainToApi(i))
	}
	for _, i := range r.Warnings {
		res.Warnings = append(res.Warnings, MapValidationIssueDomainToApi(i))
	}
	return res
}

func MapConfigurationDomainToApi(c *domain.LogicConfiguration) *api.LogicConfiguration {
	if c == nil {
		return nil
	}
	res := &api.LogicConfiguration{
		Version:      c.Version,
		IsActive:     c.IsActive,
		LastModified: c.LastModified,
		Fields:       make([]api.FieldDefinition, 0, len(c.Definitions)),
	}
	for _, d := range c.Definitions {
		res.Fields = append(res.Fields, api.FieldDefinition{
			Field:        d.FieldName,
			OutputTarget: string(d.OutputTarget),
			InputSource:  string(d.InputSource),
			Type:         string(d.DataType),
			Formula:      d.Formula,
			Notes:        d.Notes,
		})
	}
	return res
}
