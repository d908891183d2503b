package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "hermes",
	Short: "Hermes - real-time conversational gateway",
	Long: `Hermes is a real-time conversational gateway that sits between trading
platform clients and upstream AI model providers.

It terminates client WebSocket connections and provides:
  - Connection registry with per-user caps and heartbeat reaping
  - Last-writer-wins request coordination with cascading cancel
  - Streaming delivery with retry, circuit breaking, and fallback
  - Prometheus metrics and a lifecycle audit trail`,
	Version: Version,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Global persistent flags (available to all subcommands)
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
