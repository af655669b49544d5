// Package main is the entry point for the insightdash CLI.
//
// Usage:
//
//	insightdash watch -c insightdash.yaml     # Follow live updates, persist and serve health
//	insightdash feed -c insightdash.yaml      # Run a local push endpoint with simulated data
//	insightdash login -u alice                # Save a bearer token for later commands
//	insightdash datasets                      # List datasets from the REST API
//	insightdash forecast 3 --periods 14       # Request a forecast for dataset 3
//	insightdash validate -c insightdash.yaml  # Validate configuration
//	insightdash version                       # Show version info
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/rickgao/insightdash/internal/config"
	"github.com/rickgao/insightdash/internal/version"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "insightdash",
	Short: "Live-update client for the InsightDash analytics backend",
	Long: `insightdash follows the InsightDash push endpoint and keeps a rolling
window of the latest data points per dataset.

The live client reconnects with a linear backoff (base delay times the
attempt number) and gives up after a configured number of attempts.
Points can optionally be persisted to PostgreSQL and refreshed from the
REST API on an interval.

Without -c, built-in defaults are used (backend on localhost:8000, push
endpoint on localhost:8001).`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func main() {
	Execute()
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "insightdash %s\n", version.Version)
		fmt.Fprintf(cmd.OutOrStdout(), "  commit: %s\n", version.Commit)
		fmt.Fprintf(cmd.OutOrStdout(), "  built:  %s\n", version.BuildTime)
	},
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "path to config file")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "log at debug level")

	rootCmd.AddCommand(versionCmd)
}

// loadConfig reads the --config file, or the defaults when none is given.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		return config.Default(), nil
	}

	cfg, err := config.LoadAndValidate(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// newLogger creates the process logger. --verbose overrides log.level.
func newLogger(cmd *cobra.Command, cfg *config.Config) *slog.Logger {
	level, err := config.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		level = slog.LevelDebug
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)
	return logger
}
