package template

import (
	_ "embed"
	"fmt"

	"github.com/de-tools/campaign-atlas/pkg/models/domain"
	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultTemplate []byte

type templateFile struct {
	Version string               `yaml:"version"`
	Fields  []domain.TemplateRow `yaml:"fields"`
}

// DefaultRows returns the built-in template as authored rows.
func DefaultRows() ([]domain.TemplateRow, string, error) {
	var file templateFile
	if err := yaml.Unmarshal(defaultTemplate, &file); err != nil {
		return nil, "", fmt.Errorf("failed to parse default template: %w", err)
	}
	return file.Fields, file.Version, nil
}
