// Command ingestor turns PDFs into searchable vector collections.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/JoaoPedroMBiofy/ingestor/internal/app"
	"github.com/JoaoPedroMBiofy/ingestor/internal/config"
	"github.com/JoaoPedroMBiofy/ingestor/internal/logging"
)

type rootFlags struct {
	configPath string
	logLevel   string
	logFormat  string
}

func main() {
	var flags rootFlags

	rootCmd := &cobra.Command{
		Use:           "ingestor",
		Short:         "PDF to vector store ingestion pipeline",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&flags.configPath, "config", "ingestor.yaml", "Config file path")
	rootCmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&flags.logFormat, "log-format", "", "Log format (text, json, pretty)")

	rootCmd.AddCommand(
		newServeCmd(&flags),
		newIngestCmd(&flags),
		newSubmitCmd(&flags),
		newWatchCmd(&flags),
		newSearchCmd(&flags),
		newProvidersCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// load reads the config and builds the logger.
func (f *rootFlags) load() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return nil, nil, err
	}
	if f.logLevel != "" {
		cfg.Log.Level = f.logLevel
	}
	if f.logFormat != "" {
		cfg.Log.Format = f.logFormat
	}

	logger, err := logging.FromConfig(cfg.Log.Level, cfg.Log.Format, os.Stderr)
	if err != nil {
		return nil, nil, err
	}
	slog.SetDefault(logger)
	return cfg, logger, nil
}

// build loads the config and wires the application.
func (f *rootFlags) build(ctx context.Context) (*app.App, error) {
	cfg, logger, err := f.load()
	if err != nil {
		return nil, err
	}
	return app.New(ctx, cfg, logger, app.Options{})
}
