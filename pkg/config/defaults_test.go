package config

import (
	"testing"
	"time"
)

func TestApplyDefaults_EmptyConfig(t *testing.T) {
	var cfg Config
	ApplyDefaults(&cfg)

	if cfg.Server.ListenAddress != DefaultListenAddress {
		t.Errorf("expected listen address %q, got %q", DefaultListenAddress, cfg.Server.ListenAddress)
	}
	if cfg.Server.ReadTimeout != DefaultReadTimeout {
		t.Errorf("expected read timeout %v, got %v", DefaultReadTimeout, cfg.Server.ReadTimeout)
	}
	if cfg.Cache.Backend != DefaultCacheBackend {
		t.Errorf("expected cache backend %q, got %q", DefaultCacheBackend, cfg.Cache.Backend)
	}
	if cfg.Cache.Memory.MaxEntries != DefaultCacheMaxEntries {
		t.Errorf("expected max entries %d, got %d", DefaultCacheMaxEntries, cfg.Cache.Memory.MaxEntries)
	}
	if cfg.Cache.Redis.Addr != DefaultRedisAddr {
		t.Errorf("expected redis addr %q, got %q", DefaultRedisAddr, cfg.Cache.Redis.Addr)
	}
	if cfg.Storage.Backend != DefaultStorageBackend {
		t.Errorf("expected storage backend %q, got %q", DefaultStorageBackend, cfg.Storage.Backend)
	}
	if cfg.Storage.SQLite.CheckpointInterval != DefaultSQLiteCheckpointEvery {
		t.Errorf("expected checkpoint interval %v, got %v", DefaultSQLiteCheckpointEvery, cfg.Storage.SQLite.CheckpointInterval)
	}
	if cfg.Alerts.Cooldown != DefaultAlertCooldown {
		t.Errorf("expected alert cooldown %v, got %v", DefaultAlertCooldown, cfg.Alerts.Cooldown)
	}
	if cfg.Sweep.Schedule != DefaultSweepSchedule {
		t.Errorf("expected sweep schedule %q, got %q", DefaultSweepSchedule, cfg.Sweep.Schedule)
	}
	if cfg.Sweep.MaxIdle != DefaultSweepMaxIdle {
		t.Errorf("expected sweep max idle %v, got %v", DefaultSweepMaxIdle, cfg.Sweep.MaxIdle)
	}
	if cfg.Telemetry.Logging.Level != DefaultLoggingLevel {
		t.Errorf("expected logging level %q, got %q", DefaultLoggingLevel, cfg.Telemetry.Logging.Level)
	}
	if cfg.Telemetry.Logging.Format != DefaultLoggingFormat {
		t.Errorf("expected logging format %q, got %q", DefaultLoggingFormat, cfg.Telemetry.Logging.Format)
	}
	if cfg.Telemetry.Metrics.Path != DefaultMetricsPath {
		t.Errorf("expected metrics path %q, got %q", DefaultMetricsPath, cfg.Telemetry.Metrics.Path)
	}
	if cfg.Sweep.Retention != 0 {
		t.Errorf("expected zero retention (keep forever), got %v", cfg.Sweep.Retention)
	}
}

func TestApplyDefaults_PreservesExplicitValues(t *testing.T) {
	cfg := Config{
		Server: ServerConfig{
			ListenAddress: "0.0.0.0:9000",
			ReadTimeout:   time.Minute,
		},
		Cache: CacheConfig{Backend: "redis"},
		Telemetry: TelemetryConfig{
			Logging: LoggingConfig{Level: "error", Format: "text"},
		},
	}

	ApplyDefaults(&cfg)

	if cfg.Server.ListenAddress != "0.0.0.0:9000" {
		t.Errorf("expected explicit listen address preserved, got %q", cfg.Server.ListenAddress)
	}
	if cfg.Server.ReadTimeout != time.Minute {
		t.Errorf("expected explicit read timeout preserved, got %v", cfg.Server.ReadTimeout)
	}
	if cfg.Cache.Backend != "redis" {
		t.Errorf("expected explicit cache backend preserved, got %q", cfg.Cache.Backend)
	}
	if cfg.Telemetry.Logging.Level != "error" {
		t.Errorf("expected explicit logging level preserved, got %q", cfg.Telemetry.Logging.Level)
	}
	if cfg.Telemetry.Logging.Format != "text" {
		t.Errorf("expected explicit logging format preserved, got %q", cfg.Telemetry.Logging.Format)
	}
}

func TestApplyDefaults_Idempotent(t *testing.T) {
	var cfg Config
	ApplyDefaults(&cfg)
	first := cfg

	ApplyDefaults(&cfg)

	if cfg.Server != first.Server {
		t.Error("expected second ApplyDefaults to leave server config unchanged")
	}
	if cfg.Cache != first.Cache {
		t.Error("expected second ApplyDefaults to leave cache config unchanged")
	}
	if cfg.Storage != first.Storage {
		t.Error("expected second ApplyDefaults to leave storage config unchanged")
	}
}
