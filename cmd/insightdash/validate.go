package main

import (
	"errors"
	"fmt"

	"github.com/rickgao/insightdash/internal/config"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a config file",
	Long: `Validate an insightdash configuration file without connecting anywhere.

This command parses the YAML, expands environment variables, applies
defaults and validates all fields.

Example:
  insightdash validate -c insightdash.yaml`,
	Args: cobra.NoArgs,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		return errors.New("--config is required")
	}

	cfg, err := config.LoadAndValidate(path)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	persistence := "disabled"
	if cfg.Database.Enabled() {
		persistence = fmt.Sprintf("%s:%d/%s", cfg.Database.Host, cfg.Database.Port, cfg.Database.Name)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Config is valid!\n")
	fmt.Fprintf(out, "  Push endpoint: %s\n", cfg.API.WSURL)
	fmt.Fprintf(out, "  Reconnect:     %d attempts, %s base delay\n", cfg.Live.MaxReconnectAttempts, cfg.Live.ReconnectBaseDelay)
	fmt.Fprintf(out, "  Datasets:      %v\n", cfg.Live.Datasets)
	fmt.Fprintf(out, "  Persistence:   %s\n", persistence)
	return nil
}
