package commands

import (
	"fmt"

	"github.com/de-tools/campaign-atlas/pkg/runtime/terminal/export"
	"github.com/de-tools/campaign-atlas/pkg/services/template"
	"github.com/spf13/cobra"
)

func NewTemplateCmd(app AppProvider, reporter *export.Reporter) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "template",
		Short: "Validate and export logic templates",
	}
	cmd.AddCommand(newTemplateValidateCmd(app, reporter))
	cmd.AddCommand(newTemplateExportCmd(app))
	cmd.AddCommand(newTemplateDefaultCmd())
	return cmd
}

func newTemplateValidateCmd(app AppProvider, reporter *export.Reporter) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <template.csv>",
		Short: "Check a template without activating it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rows, err := readTemplate(args[0])
			if err != nil {
				return err
			}
			result := app().Templates.Validate(rows)
			if err := reporter.Validation(result); err != nil {
				return err
			}
			if !result.IsValid {
				return fmt.Errorf("%s: %w", args[0], template.ErrInvalidTemplate)
			}
			return nil
		},
	}
}

func newTemplateExportCmd(app AppProvider) *cobra.Command {
	var templatePath string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the active template as CSV with canonical labels",
		RunE: func(cmd *cobra.Command, _ []string) error {
			manager := app().Templates
			if templatePath != "" {
				rows, err := readTemplate(templatePath)
				if err != nil {
					return err
				}
				if err := manager.Apply(cmd.Context(), template.NewDraft(rows)); err != nil {
					return fmt.Errorf("template %s: %w", templatePath, err)
				}
			}
			return template.WriteCSV(cmd.OutOrStdout(), manager.Active().Definitions)
		},
	}
	cmd.Flags().StringVar(&templatePath, "template", "", "Template CSV to normalise (default is the built-in template)")
	return cmd
}

func newTemplateDefaultCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "default",
		Short: "Write the built-in default template as CSV",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rows, _, err := template.DefaultRows()
			if err != nil {
				return err
			}
			return template.WriteRows(cmd.OutOrStdout(), rows)
		},
	}
}
