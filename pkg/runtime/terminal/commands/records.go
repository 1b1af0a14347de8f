package commands

import (
	"github.com/de-tools/campaign-atlas/pkg/models/domain"
	"github.com/de-tools/campaign-atlas/pkg/models/store"
	"github.com/de-tools/campaign-atlas/pkg/runtime/terminal/export"
	"github.com/spf13/cobra"
)

type RecordsCmd struct {
	source   string
	runID    string
	from     string
	to       string
	app      AppProvider
	reporter *export.Reporter
}

func NewRecordsCmd(app AppProvider, reporter *export.Reporter) *cobra.Command {
	rc := &RecordsCmd{app: app, reporter: reporter}
	cmd := &cobra.Command{
		Use:   "records",
		Short: "Query stored output rows",
		RunE:  rc.run,
	}

	cmd.Flags().StringVar(&rc.source, "source", "", "group_level or aggregate_level (default is both)")
	cmd.Flags().StringVar(&rc.runID, "run", "", "Only rows of this run")
	cmd.Flags().StringVar(&rc.from, "from", "", "First day to include (YYYY-MM-DD)")
	cmd.Flags().StringVar(&rc.to, "to", "", "Last day to include (YYYY-MM-DD)")

	return cmd
}

func (rc *RecordsCmd) run(cmd *cobra.Command, _ []string) error {
	a := rc.app()
	if a.Records == nil {
		return ErrNoStore
	}
	dateRange, err := parseRange(rc.from, rc.to)
	if err != nil {
		return err
	}

	stored, err := a.Records.Query(cmd.Context(), store.RecordFilter{
		Start:  dateRange.Start,
		End:    domain.DayEnd(dateRange.End),
		Source: rc.source,
		RunID:  rc.runID,
	})
	if err != nil {
		return err
	}
	return rc.reporter.Records(stored)
}

func NewRunsCmd(app AppProvider, reporter *export.Reporter) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recent runs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := app()
			if a.Runs == nil {
				return ErrNoStore
			}
			stored, err := a.Runs.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			return reporter.Runs(stored)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of runs to list")
	return cmd
}
