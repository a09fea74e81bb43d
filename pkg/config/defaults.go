package config

import "time"

// Default values for configuration fields.
const (
	// Server defaults
	DefaultListenAddress   = "127.0.0.1:8600"
	DefaultReadTimeout     = 10 * time.Second
	DefaultWriteTimeout    = 10 * time.Second
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 15 * time.Second

	// Cache defaults
	DefaultCacheBackend       = "memory"
	DefaultCacheMaxEntries    = 100000
	DefaultCacheSweepInterval = time.Minute
	DefaultRedisAddr          = "127.0.0.1:6379"
	DefaultRedisDialTimeout   = 2 * time.Second
	DefaultRedisOpTimeout     = 250 * time.Millisecond

	// Storage defaults
	DefaultStorageBackend        = "memory"
	DefaultSQLitePath            = "data/saturn.db"
	DefaultSQLiteCheckpointEvery = 5 * time.Minute
	DefaultSQLiteBusyTimeout     = 5 * time.Second

	// Alert defaults
	DefaultAlertCooldown = 5 * time.Minute

	// Sweep defaults
	DefaultSweepSchedule = "@every 5m"
	DefaultSweepMaxIdle  = 30 * time.Minute

	// Telemetry defaults
	DefaultLoggingLevel  = "info"
	DefaultLoggingFormat = "json"
	DefaultMetricsPath   = "/metrics"
)

// ApplyDefaults applies default values to a Config struct.
// It sets defaults for any fields that have zero values.
// This function is idempotent and safe to call multiple times.
func ApplyDefaults(cfg *Config) {
	// Server defaults
	if cfg.Server.ListenAddress == "" {
		cfg.Server.ListenAddress = DefaultListenAddress
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = DefaultReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultShutdownTimeout
	}

	// Cache defaults
	if cfg.Cache.Backend == "" {
		cfg.Cache.Backend = DefaultCacheBackend
	}
	if cfg.Cache.Memory.MaxEntries == 0 {
		cfg.Cache.Memory.MaxEntries = DefaultCacheMaxEntries
	}
	if cfg.Cache.Memory.SweepInterval == 0 {
		cfg.Cache.Memory.SweepInterval = DefaultCacheSweepInterval
	}
	if cfg.Cache.Redis.Addr == "" {
		cfg.Cache.Redis.Addr = DefaultRedisAddr
	}
	if cfg.Cache.Redis.DialTimeout == 0 {
		cfg.Cache.Redis.DialTimeout = DefaultRedisDialTimeout
	}
	if cfg.Cache.Redis.OpTimeout == 0 {
		cfg.Cache.Redis.OpTimeout = DefaultRedisOpTimeout
	}

	// Storage defaults
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = DefaultStorageBackend
	}
	if cfg.Storage.SQLite.Path == "" {
		cfg.Storage.SQLite.Path = DefaultSQLitePath
	}
	if cfg.Storage.SQLite.CheckpointInterval == 0 {
		cfg.Storage.SQLite.CheckpointInterval = DefaultSQLiteCheckpointEvery
	}
	if cfg.Storage.SQLite.BusyTimeout == 0 {
		cfg.Storage.SQLite.BusyTimeout = DefaultSQLiteBusyTimeout
	}

	// Alert defaults
	if cfg.Alerts.Cooldown == 0 {
		cfg.Alerts.Cooldown = DefaultAlertCooldown
	}

	// Sweep defaults
	if cfg.Sweep.Schedule == "" {
		cfg.Sweep.Schedule = DefaultSweepSchedule
	}
	if cfg.Sweep.MaxIdle == 0 {
		cfg.Sweep.MaxIdle = DefaultSweepMaxIdle
	}

	// Telemetry defaults
	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = DefaultLoggingLevel
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = DefaultLoggingFormat
	}
	if cfg.Telemetry.Metrics.Path == "" {
		cfg.Telemetry.Metrics.Path = DefaultMetricsPath
	}
}
