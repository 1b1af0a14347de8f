package terminal

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/de-tools/campaign-atlas/pkg/runtime/app"
	"github.com/de-tools/campaign-atlas/pkg/runtime/terminal/commands"
	"github.com/de-tools/campaign-atlas/pkg/runtime/terminal/export"
	"github.com/de-tools/campaign-atlas/pkg/services/config"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// CLI represents the command-line interface
type CLI struct {
	reporter   *export.Reporter
	rootCmd    *cobra.Command
	logger     zerolog.Logger
	configPath string
	app        *app.App
}

// Options contain configuration for the CLI
type Options struct {
	Output io.Writer
	// Logger receives diagnostics; reports go to Output.
	Logger *zerolog.Logger
}

// NewCLI creates a new CLI instance
func NewCLI(opts Options) *CLI {
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	logger := zerolog.New(os.Stderr).With().Timestamp().Logger().Level(zerolog.WarnLevel)
	if opts.Logger != nil {
		logger = *opts.Logger
	}

	cli := &CLI{
		reporter: export.NewReporter(opts.Output),
		logger:   logger,
	}

	cli.rootCmd = cli.newRootCmd()
	cli.rootCmd.SetOut(opts.Output)
	return cli
}

func (cli *CLI) Execute() error {
	return cli.ExecuteContext(context.Background())
}

func (cli *CLI) ExecuteContext(ctx context.Context) error {
	return cli.rootCmd.ExecuteContext(cli.logger.WithContext(ctx))
}

func (cli *CLI) newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:               "atlas",
		Short:             "Campaign reconciliation and reporting tool",
		SilenceUsage:      true,
		PersistentPreRunE: cli.init,
		PersistentPostRunE: func(*cobra.Command, []string) error {
			if cli.app == nil {
				return nil
			}
			return cli.app.Close()
		},
	}
	cmd.PersistentFlags().StringVarP(&cli.configPath, "config", "c", "", "Path to the configuration file")

	provider := func() *app.App { return cli.app }
	cmd.AddCommand(commands.NewProcessCmd(provider, cli.reporter))
	cmd.AddCommand(commands.NewTemplateCmd(provider, cli.reporter))
	cmd.AddCommand(commands.NewRecordsCmd(provider, cli.reporter))
	cmd.AddCommand(commands.NewRunsCmd(provider, cli.reporter))

	return cmd
}

func (cli *CLI) init(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(cli.configPath)
	if err != nil {
		return err
	}
	a, err := app.New(cmd.Context(), cfg)
	if err != nil {
		return fmt.Errorf("failed to initialise: %w", err)
	}
	cli.app = a
	return nil
}
