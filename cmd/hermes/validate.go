package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"quantra-hq/hermes/pkg/config"
)

var validateFlags struct {
	quiet bool
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	Long: `Load and validate a configuration file without starting the gateway.

Validation checks the listener address, registry limits, pipeline retry
policy, account definitions, and audit settings, and reports every
problem found.

Examples:
  # Validate the default config
  hermes validate

  # Validate a specific file
  hermes validate --config /etc/hermes/config.yaml`,
	RunE: validateConfig,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().BoolVarP(&validateFlags.quiet, "quiet", "q", false, "suppress the summary, only report errors")
}

func validateConfig(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		return err
	}

	if validateFlags.quiet {
		return nil
	}

	fmt.Printf("✓ %s is valid\n\n", cfgFile)
	fmt.Printf("Listen address:   %s\n", cfg.Server.ListenAddress)
	fmt.Printf("Max connections:  %d (per user: %d)\n", cfg.Gateway.MaxConnections, cfg.Gateway.MaxPerUser)
	fmt.Printf("Stream retries:   %d (backoff %s..%s)\n", cfg.Stream.MaxRetries, cfg.Stream.BackoffBase, cfg.Stream.BackoffMax)
	fmt.Printf("Accounts:         %d\n", len(cfg.Accounts))
	fmt.Printf("Auth tokens:      %d\n", len(cfg.Auth.Tokens))
	fmt.Printf("Metrics:          %v\n", cfg.Telemetry.Metrics.Enabled)
	if cfg.Audit.Enabled {
		fmt.Printf("Audit backend:    %s\n", cfg.Audit.Backend)
	} else {
		fmt.Println("Audit:            disabled")
	}
	return nil
}
