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
	Use:   "kepler",
	Short: "Kepler Saturn - policy enforcement server for rate limits and quotas",
	Long: `Kepler Saturn is a policy enforcement server that answers one question
for the services in front of it: may this request proceed?

It provides:
  - Rate limiting (token bucket, sliding window, fixed window)
  - Usage quotas across minute-to-lifetime windows
  - Tier-based limit multipliers and overrides
  - Soft, hard, throttle, and overage enforcement postures
  - Threshold alerts with cooldown

For more information, visit: https://github.com/kepler-hq/saturn`,
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
