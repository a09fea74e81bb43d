package config

import (
	"testing"

	"kepler-hq/saturn/pkg/enforce/quota"
	"kepler-hq/saturn/pkg/enforce/ratelimit"
	"kepler-hq/saturn/pkg/enforce/window"
)

func TestRateLimitConfig_ToLimit(t *testing.T) {
	rc := RateLimitConfig{
		Scope:             "user",
		Algorithm:         "token_bucket",
		RequestsPerWindow: 60,
		WindowSeconds:     60,
		BurstCapacity:     10,
		TierMultipliers:   map[string]float64{"pro": 2.0},
		PathPatterns:      []string{"/api/*"},
		ExcludePaths:      []string{"/api/health"},
		ThrottleEnabled:   true,
		ThrottleThreshold: 0.9,
	}

	lc := rc.ToLimit("api-default")

	if lc.ID != "api-default" {
		t.Errorf("expected id %q, got %q", "api-default", lc.ID)
	}
	if lc.Scope != ratelimit.ScopeUser {
		t.Errorf("expected scope %q, got %q", ratelimit.ScopeUser, lc.Scope)
	}
	if lc.Algorithm != ratelimit.AlgorithmTokenBucket {
		t.Errorf("expected algorithm %q, got %q", ratelimit.AlgorithmTokenBucket, lc.Algorithm)
	}
	if lc.TierMultipliers["pro"] != 2.0 {
		t.Errorf("expected pro multiplier 2.0, got %f", lc.TierMultipliers["pro"])
	}
	if !lc.Enabled {
		t.Error("expected omitted enabled flag to default to true")
	}
	if err := lc.Validate(); err != nil {
		t.Errorf("expected converted config to validate, got: %v", err)
	}
}

func TestRateLimitConfig_ToLimitDisabled(t *testing.T) {
	disabled := false
	rc := RateLimitConfig{
		Scope:             "user",
		Algorithm:         "fixed_window",
		RequestsPerWindow: 10,
		WindowSeconds:     60,
		Enabled:           &disabled,
	}

	if rc.ToLimit("off").Enabled {
		t.Error("expected explicit enabled=false to carry through")
	}
}

func TestQuotaConfig_ToQuota(t *testing.T) {
	qc := QuotaConfig{
		Metric:            "api_calls",
		Scope:             "organization",
		Window:            "day",
		Limit:             100000,
		Level:             "overage",
		WarningThreshold:  0.75,
		CriticalThreshold: 0.9,
		OverageRate:       0.002,
		AutoIncrease:      true,
		MaxAutoLimit:      400000,
	}

	q := qc.ToQuota("api-calls-daily")

	if q.ID != "api-calls-daily" {
		t.Errorf("expected id %q, got %q", "api-calls-daily", q.ID)
	}
	if q.Scope != quota.ScopeOrganization {
		t.Errorf("expected scope %q, got %q", quota.ScopeOrganization, q.Scope)
	}
	if q.Window != window.Day {
		t.Errorf("expected window %q, got %q", window.Day, q.Window)
	}
	if q.Level != quota.LevelOverage {
		t.Errorf("expected level %q, got %q", quota.LevelOverage, q.Level)
	}
	if q.OverageRate != 0.002 {
		t.Errorf("expected overage rate 0.002, got %f", q.OverageRate)
	}
	if !q.Enabled {
		t.Error("expected omitted enabled flag to default to true")
	}
	if err := q.Validate(); err != nil {
		t.Errorf("expected converted config to validate, got: %v", err)
	}
}
