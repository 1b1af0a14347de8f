package main

import (
	"fmt"
	"os"

	"github.com/de-tools/campaign-atlas/pkg/runtime/app"
	"github.com/de-tools/campaign-atlas/pkg/server"
	"github.com/de-tools/campaign-atlas/pkg/services/config"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var cfgPath string

func main() {
	var rootCmd = &cobra.Command{
		Use:   "web",
		Short: "Start the web server for Campaign Atlas",
		RunE:  runServer,
	}

	rootCmd.Flags().StringVarP(&cfgPath, "config", "c", "",
		"Path to the configuration file (ATLAS_* environment variables override it)")

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func runServer(cmd *cobra.Command, _ []string) error {
	if err := godotenv.Load(); err != nil {
		fmt.Printf("Error loading .env file: %v\n", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	ctx := logger.WithContext(cmd.Context())

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	a, err := app.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialise: %w", err)
	}
	defer a.Close()

	if cfgPath != "" {
		logger.Info().Msgf("Configuration found at `%s` successfully loaded.", cfgPath)
	}

	api := server.NewWebAPI(server.Config{
		Addr: cfg.Addr(),
		Dependencies: server.Dependencies{
			Templates: a.Templates,
			Runner:    a.Runner,
			Records:   a.Records,
			Runs:      a.Runs,
			Logger:    logger,
		},
	})
	return api.Start()
}
