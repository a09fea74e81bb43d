package quota

import (
	"errors"
	"testing"

	"kepler-hq/saturn/pkg/enforce/window"
)

func validQuota() Config {
	return Config{
		ID:      "api-calls-daily",
		Metric:  "api_calls",
		Scope:   ScopeOrganization,
		Window:  window.Day,
		Limit:   1000,
		Level:   LevelHard,
		Enabled: true,
	}
}

func TestQuotaConfig_Defaults(t *testing.T) {
	cfg := validQuota().WithDefaults()

	if cfg.WarningThreshold != 0.8 {
		t.Errorf("Expected warning threshold to default to 0.8, got %v", cfg.WarningThreshold)
	}
	if cfg.CriticalThreshold != 0.95 {
		t.Errorf("Expected critical threshold to default to 0.95, got %v", cfg.CriticalThreshold)
	}
}

func TestQuotaConfig_Validate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty id", func(c *Config) { c.ID = "" }},
		{"empty metric", func(c *Config) { c.Metric = "" }},
		{"unknown scope", func(c *Config) { c.Scope = "tenant" }},
		{"unknown window", func(c *Config) { c.Window = "fortnight" }},
		{"unknown level", func(c *Config) { c.Level = "audit" }},
		{"zero limit", func(c *Config) { c.Limit = 0 }},
		{"negative limit", func(c *Config) { c.Limit = -5 }},
		{"warning out of range", func(c *Config) { c.WarningThreshold = 1.5 }},
		{"critical below warning", func(c *Config) {
			c.WarningThreshold = 0.9
			c.CriticalThreshold = 0.5
		}},
		{"overage without rate", func(c *Config) { c.Level = LevelOverage; c.OverageRate = 0 }},
		{"negative overage rate", func(c *Config) { c.OverageRate = -0.1 }},
		{"auto limit below base", func(c *Config) {
			c.AutoIncrease = true
			c.MaxAutoLimit = 500
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validQuota().WithDefaults()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("Expected validation to fail")
			}
			if !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("Expected ErrInvalidConfig, got %v", err)
			}
		})
	}

	if err := validQuota().WithDefaults().Validate(); err != nil {
		t.Errorf("Expected valid config to pass, got %v", err)
	}
}

func TestQuotaConfig_EqualThresholdsAllowed(t *testing.T) {
	cfg := validQuota()
	cfg.WarningThreshold = 0.9
	cfg.CriticalThreshold = 0.9

	if err := cfg.Validate(); err != nil {
		t.Errorf("Expected equal thresholds to pass, got %v", err)
	}
}
