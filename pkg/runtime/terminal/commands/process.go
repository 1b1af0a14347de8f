package commands

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/de-tools/campaign-atlas/pkg/adapters"
	"github.com/de-tools/campaign-atlas/pkg/runtime/terminal/export"
	"github.com/de-tools/campaign-atlas/pkg/services/dataset"
	"github.com/de-tools/campaign-atlas/pkg/services/processing"
	"github.com/de-tools/campaign-atlas/pkg/services/template"
	"github.com/spf13/cobra"
)

type ProcessCmd struct {
	sourcesPath  string
	templatePath string
	from         string
	to           string
	persist      bool
	jsonOutput   bool
	app          AppProvider
	reporter     *export.Reporter
}

func NewProcessCmd(app AppProvider, reporter *export.Reporter) *cobra.Command {
	pc := &ProcessCmd{app: app, reporter: reporter}
	cmd := &cobra.Command{
		Use:   "process",
		Short: "Build the group and aggregate tables from the configured datasets",
		RunE:  pc.run,
	}

	cmd.Flags().StringVar(&pc.sourcesPath, "sources", "", "Path to the INI file naming the dataset locations")
	cmd.Flags().StringVar(&pc.templatePath, "template", "", "Template CSV to activate before processing (default is the built-in template)")
	cmd.Flags().StringVar(&pc.from, "from", "", "First day to include (YYYY-MM-DD)")
	cmd.Flags().StringVar(&pc.to, "to", "", "Last day to include (YYYY-MM-DD)")
	cmd.Flags().BoolVar(&pc.persist, "persist", false, "Store the output rows in the configured record store")
	cmd.Flags().BoolVar(&pc.jsonOutput, "json", false, "Print the result as JSON")

	_ = cmd.MarkFlagRequired("sources")

	return cmd
}

func (pc *ProcessCmd) run(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a := pc.app()

	dateRange, err := parseRange(pc.from, pc.to)
	if err != nil {
		return err
	}
	sources, err := dataset.LoadSources(pc.sourcesPath)
	if err != nil {
		return err
	}

	if pc.templatePath != "" {
		rows, err := readTemplate(pc.templatePath)
		if err != nil {
			return err
		}
		draft := template.NewDraft(rows)
		if err := a.Templates.Apply(ctx, draft); err != nil {
			err = fmt.Errorf("template %s: %w", pc.templatePath, err)
			var invalid *template.ValidationError
			if errors.As(err, &invalid) {
				if reportErr := pc.reporter.Validation(invalid.Result); reportErr != nil {
					return errors.Join(err, fmt.Errorf("report validation: %w", reportErr))
				}
			}
			return err
		}
	}

	result, err := a.Runner.Run(ctx, processing.Request{
		Loader:    a.Loader(sources),
		DateRange: dateRange,
		Persist:   pc.persist,
	})
	if err != nil {
		return err
	}

	if pc.jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(adapters.MapRunResultDomainToApi(*result))
	}
	return pc.reporter.Run(result)
}
