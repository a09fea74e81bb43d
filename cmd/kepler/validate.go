package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"
	"kepler-hq/saturn/pkg/cli"
	"kepler-hq/saturn/pkg/config"
)

var validateFlags struct {
	format string
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	Long: `Load and validate a configuration file without starting the server.

The validate command applies defaults and environment overrides, runs
the full validation pass (including every declared rate limit and
quota policy), and prints a summary of what the server would run with.

Examples:
  # Validate the default config file
  kepler validate

  # Validate a specific file
  kepler validate --config /etc/saturn/config.yaml

  # Machine-readable summary
  kepler validate --format json`,
	RunE: validateConfig,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringVar(&validateFlags.format, "format", "text", "output format: text, json")
}

// configSummary is the validate command's report. JSON tags drive the
// --format json output.
type configSummary struct {
	ConfigFile     string   `json:"config_file"`
	ListenAddress  string   `json:"listen_address"`
	CacheBackend   string   `json:"cache_backend"`
	StorageBackend string   `json:"storage_backend"`
	RateLimits     []string `json:"rate_limits"`
	Quotas         []string `json:"quotas"`
	Tiers          []string `json:"tiers"`
	OverageEnabled bool     `json:"overage_enabled"`
	MetricsEnabled bool     `json:"metrics_enabled"`
}

func validateConfig(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return cli.NewConfigError("", fmt.Sprintf("validation failed: %v", err))
	}

	summary := summarize(cfgFile, cfg)

	if validateFlags.format == string(cli.FormatJSON) {
		formatter := cli.NewFormatter(cli.FormatJSON)
		return formatter.FormatTo(os.Stdout, summary)
	}

	fmt.Println("✓ Configuration valid")
	fmt.Println()
	fmt.Printf("Config file:     %s\n", summary.ConfigFile)
	fmt.Printf("Listen address:  %s\n", summary.ListenAddress)
	fmt.Printf("Cache backend:   %s\n", summary.CacheBackend)
	fmt.Printf("Storage backend: %s\n", summary.StorageBackend)
	fmt.Printf("Rate limits:     %d\n", len(summary.RateLimits))
	for _, id := range summary.RateLimits {
		fmt.Printf("  - %s\n", id)
	}
	fmt.Printf("Quotas:          %d\n", len(summary.Quotas))
	for _, id := range summary.Quotas {
		fmt.Printf("  - %s\n", id)
	}
	if len(summary.Tiers) > 0 {
		fmt.Printf("Tiers:           %d\n", len(summary.Tiers))
		for _, tier := range summary.Tiers {
			fmt.Printf("  - %s\n", tier)
		}
	}
	fmt.Printf("Overage billing: %t\n", summary.OverageEnabled)
	fmt.Printf("Metrics:         %t\n", summary.MetricsEnabled)

	return nil
}

func summarize(path string, cfg *config.Config) configSummary {
	summary := configSummary{
		ConfigFile:     path,
		ListenAddress:  cfg.Server.ListenAddress,
		CacheBackend:   cfg.Cache.Backend,
		StorageBackend: cfg.Storage.Backend,
		RateLimits:     sortedKeys(cfg.RateLimits),
		Quotas:         sortedKeys(cfg.Quotas),
		OverageEnabled: cfg.Billing.OverageEnabled,
		MetricsEnabled: cfg.Telemetry.Metrics.MetricsEnabled(),
	}
	summary.Tiers = sortedKeys(cfg.Tiers.Limits)
	return summary
}

func sortedKeys[M ~map[string]V, V any](m M) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
