package main

import (
	"os"
	"path/filepath"
	"testing"

	"kepler-hq/saturn/pkg/config"
)

const validateTestConfig = `
server:
  listen_address: "127.0.0.1:9600"
cache:
  backend: memory
storage:
  backend: memory
rate_limits:
  api-requests:
    scope: user
    algorithm: token_bucket
    requests_per_window: 60
    window_seconds: 60
quotas:
  api-calls-daily:
    scope: user
    metric: api_calls
    window: day
    limit: 1000
    level: hard
tiers:
  limits:
    pro:
      api_calls: 5000
  assignments:
    user-1: pro
`

func writeValidateConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

func TestValidateConfigValidFile(t *testing.T) {
	origCfgFile := cfgFile
	defer func() { cfgFile = origCfgFile }()

	cfgFile = writeValidateConfig(t, validateTestConfig)
	validateFlags.format = "text"

	if err := validateConfig(nil, []string{}); err != nil {
		t.Errorf("validateConfig() with valid file returned error: %v", err)
	}
}

func TestValidateConfigJSONFormat(t *testing.T) {
	origCfgFile := cfgFile
	defer func() { cfgFile = origCfgFile }()

	cfgFile = writeValidateConfig(t, validateTestConfig)
	validateFlags.format = "json"

	if err := validateConfig(nil, []string{}); err != nil {
		t.Errorf("validateConfig() with json format returned error: %v", err)
	}
}

func TestValidateConfigNonexistentFile(t *testing.T) {
	origCfgFile := cfgFile
	defer func() { cfgFile = origCfgFile }()

	cfgFile = filepath.Join(t.TempDir(), "missing.yaml")
	validateFlags.format = "text"

	if err := validateConfig(nil, []string{}); err == nil {
		t.Error("validateConfig() with nonexistent file should return error")
	}
}

func TestValidateConfigInvalidPolicy(t *testing.T) {
	origCfgFile := cfgFile
	defer func() { cfgFile = origCfgFile }()

	cfgFile = writeValidateConfig(t, `
rate_limits:
  broken:
    scope: user
    algorithm: token_bucket
    requests_per_window: -5
`)
	validateFlags.format = "text"

	if err := validateConfig(nil, []string{}); err == nil {
		t.Error("validateConfig() with invalid policy should return error")
	}
}

func TestSummarize(t *testing.T) {
	path := writeValidateConfig(t, validateTestConfig)
	cfg, err := config.LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() returned error: %v", err)
	}

	summary := summarize(path, cfg)

	if summary.ListenAddress != "127.0.0.1:9600" {
		t.Errorf("ListenAddress = %q, want %q", summary.ListenAddress, "127.0.0.1:9600")
	}
	if summary.CacheBackend != "memory" {
		t.Errorf("CacheBackend = %q, want %q", summary.CacheBackend, "memory")
	}
	if len(summary.RateLimits) != 1 || summary.RateLimits[0] != "api-requests" {
		t.Errorf("RateLimits = %v, want [api-requests]", summary.RateLimits)
	}
	if len(summary.Quotas) != 1 || summary.Quotas[0] != "api-calls-daily" {
		t.Errorf("Quotas = %v, want [api-calls-daily]", summary.Quotas)
	}
	if len(summary.Tiers) != 1 || summary.Tiers[0] != "pro" {
		t.Errorf("Tiers = %v, want [pro]", summary.Tiers)
	}
	if !summary.MetricsEnabled {
		t.Error("MetricsEnabled = false, want true")
	}
}

func TestRunCommandRegistered(t *testing.T) {
	var found bool
	for _, cmd := range rootCmd.Commands() {
		if cmd.Use == "run" {
			found = true
		}
	}
	if !found {
		t.Error("run command is not registered on the root command")
	}
}
