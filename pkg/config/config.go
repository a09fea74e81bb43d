package config

import (
	"time"

	"kepler-hq/saturn/pkg/enforce/quota"
	"kepler-hq/saturn/pkg/enforce/ratelimit"
	"kepler-hq/saturn/pkg/enforce/window"
)

// Config is the root configuration structure for Saturn. It declares
// the enforcement policies (rate limits, quotas, tiers) and the
// infrastructure they run on (server, cache, storage, telemetry).
type Config struct {
	// Server contains the HTTP decision API configuration.
	Server ServerConfig `yaml:"server"`

	// Cache selects and configures the shared cache backend used for
	// window counters, bucket snapshots, and alert cooldowns.
	Cache CacheConfig `yaml:"cache"`

	// Storage selects and configures the durable usage ledger.
	Storage StorageConfig `yaml:"storage"`

	// RateLimits declares the rate limit policies, keyed by limit id.
	RateLimits map[string]RateLimitConfig `yaml:"rate_limits"`

	// Quotas declares the quota policies, keyed by quota id.
	Quotas map[string]QuotaConfig `yaml:"quotas"`

	// Tiers declares per-tier metric limit overrides and which scopes
	// belong to which tier.
	Tiers TiersConfig `yaml:"tiers"`

	// Billing contains billing toggles that change enforcement semantics.
	Billing BillingConfig `yaml:"billing"`

	// Alerts configures quota alert delivery.
	Alerts AlertsConfig `yaml:"alerts"`

	// Sweep configures the periodic maintenance job.
	Sweep SweepConfig `yaml:"sweep"`

	// Telemetry contains logging and metrics configuration.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig contains configuration for the HTTP decision API.
type ServerConfig struct {
	// ListenAddress is the address and port to listen on.
	// Format: "host:port" (e.g., "127.0.0.1:8600", "0.0.0.0:8600").
	// Default: "127.0.0.1:8600"
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout is the maximum duration for reading the entire
	// request, including the body.
	// Default: 10s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out writes
	// of the response.
	// Default: 10s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout is the maximum amount of time to wait for the next
	// request when keep-alives are enabled.
	// Default: 120s
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout is the maximum duration to wait for graceful
	// shutdown before forcing the server closed.
	// Default: 15s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// CacheConfig selects the shared cache backend.
type CacheConfig struct {
	// Backend selects the cache implementation: "memory" or "redis".
	// Default: "memory"
	Backend string `yaml:"backend"`

	// Memory configures the in-process cache backend.
	Memory MemoryCacheConfig `yaml:"memory"`

	// Redis configures the Redis backend, used when Backend is "redis".
	Redis RedisCacheConfig `yaml:"redis"`
}

// MemoryCacheConfig configures the in-process cache backend.
type MemoryCacheConfig struct {
	// MaxEntries bounds the number of cached entries.
	// Default: 100000
	MaxEntries int `yaml:"max_entries"`

	// SweepInterval is how often expired entries are collected.
	// Default: 1m
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

// RedisCacheConfig configures the Redis cache backend.
type RedisCacheConfig struct {
	// Addr is the Redis server address.
	// Default: "127.0.0.1:6379"
	Addr string `yaml:"addr"`

	// Password authenticates against the server. Empty disables auth.
	Password string `yaml:"password"`

	// DB selects the Redis logical database.
	// Default: 0
	DB int `yaml:"db"`

	// DialTimeout bounds connection establishment.
	// Default: 2s
	DialTimeout time.Duration `yaml:"dial_timeout"`

	// OpTimeout bounds individual cache operations. Enforcement fails
	// open when an operation exceeds it.
	// Default: 250ms
	OpTimeout time.Duration `yaml:"op_timeout"`
}

// StorageConfig selects the durable usage ledger backend.
type StorageConfig struct {
	// Backend selects the ledger implementation: "memory" or "sqlite".
	// Default: "memory"
	Backend string `yaml:"backend"`

	// SQLite configures the SQLite ledger, used when Backend is "sqlite".
	SQLite SQLiteStorageConfig `yaml:"sqlite"`
}

// SQLiteStorageConfig configures the SQLite usage ledger.
type SQLiteStorageConfig struct {
	// Path is the database file path. Required when the sqlite
	// backend is selected.
	Path string `yaml:"path"`

	// CheckpointInterval is how often the WAL is checkpointed.
	// Default: 5m
	CheckpointInterval time.Duration `yaml:"checkpoint_interval"`

	// BusyTimeout is how long a statement waits for locks.
	// Default: 5s
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

// RateLimitConfig declares one rate limit policy. Field semantics
// match ratelimit.Config; this type only adds YAML mapping and an
// optional Enabled flag that defaults to true when omitted.
type RateLimitConfig struct {
	// Scope is the dimension the counter is keyed on: global, user,
	// api_key, ip, or endpoint.
	Scope string `yaml:"scope"`

	// Algorithm is token_bucket, sliding_window, fixed_window, or
	// leaky_bucket.
	Algorithm string `yaml:"algorithm"`

	// RequestsPerWindow is the steady-state allowance per window.
	RequestsPerWindow int64 `yaml:"requests_per_window"`

	// WindowSeconds is the window length in seconds.
	WindowSeconds int `yaml:"window_seconds"`

	// BurstCapacity is the instantaneous allowance for token buckets.
	// Defaults to RequestsPerWindow.
	BurstCapacity int64 `yaml:"burst_capacity"`

	// TierMultipliers scales the limit per subscription tier.
	TierMultipliers map[string]float64 `yaml:"tier_multipliers"`

	// PathPatterns restricts the limit to matching request paths.
	PathPatterns []string `yaml:"path_patterns"`

	// ExcludePaths exempts matching request paths.
	ExcludePaths []string `yaml:"exclude_paths"`

	// ThrottleEnabled turns on the progressive-delay signal below the
	// hard limit.
	ThrottleEnabled bool `yaml:"throttle_enabled"`

	// ThrottleThreshold is the usage fraction where throttling starts.
	// Default: 0.8
	ThrottleThreshold float64 `yaml:"throttle_threshold"`

	// Enabled turns the limit on. Omitted means enabled.
	Enabled *bool `yaml:"enabled"`
}

// QuotaConfig declares one quota policy. Field semantics match
// quota.Config.
type QuotaConfig struct {
	// Metric is the usage-counter name this quota bounds.
	Metric string `yaml:"metric"`

	// Scope is the dimension usage is keyed on: global, organization,
	// user, api_key, or feature.
	Scope string `yaml:"scope"`

	// Window is minute, hour, day, week, month, year, or lifetime.
	Window string `yaml:"window"`

	// Limit is the base allowance per window.
	Limit int64 `yaml:"limit"`

	// Level is soft, hard, throttle, or overage.
	Level string `yaml:"level"`

	// WarningThreshold is the usage fraction that flips status to
	// Warning. Default: 0.8
	WarningThreshold float64 `yaml:"warning_threshold"`

	// CriticalThreshold is the usage fraction that flips status to
	// Critical. Default: 0.95
	CriticalThreshold float64 `yaml:"critical_threshold"`

	// OverageRate is the charge per unit above the limit. Required
	// for level overage.
	OverageRate float64 `yaml:"overage_rate"`

	// AutoIncrease lets the limit grow once exhausted.
	AutoIncrease bool `yaml:"auto_increase"`

	// MaxAutoLimit is the ceiling for an auto-increasing limit.
	MaxAutoLimit int64 `yaml:"max_auto_limit"`

	// Enabled turns the quota on. Omitted means enabled.
	Enabled *bool `yaml:"enabled"`
}

// TiersConfig declares the static tier catalog.
type TiersConfig struct {
	// Limits maps tier name to metric name to limit override.
	Limits map[string]map[string]int64 `yaml:"limits"`

	// Assignments maps scope id to tier name.
	Assignments map[string]string `yaml:"assignments"`
}

// BillingConfig contains billing toggles.
type BillingConfig struct {
	// OverageEnabled turns on overage billing globally. When false,
	// overage quotas behave like hard quotas.
	// Default: false
	OverageEnabled bool `yaml:"overage_enabled"`
}

// AlertsConfig configures quota alerting.
type AlertsConfig struct {
	// Cooldown is the minimum gap between identical alerts for the
	// same quota, scope, and alert type.
	// Default: 5m
	Cooldown time.Duration `yaml:"cooldown"`
}

// SweepConfig configures the periodic maintenance job.
type SweepConfig struct {
	// Schedule is a standard cron expression or descriptor such as
	// "@every 5m".
	// Default: "@every 5m"
	Schedule string `yaml:"schedule"`

	// MaxIdle is how long unused limiter state is kept before
	// eviction.
	// Default: 30m
	MaxIdle time.Duration `yaml:"max_idle"`

	// Retention is how long usage events are kept in the ledger.
	// Zero keeps them forever.
	// Default: 0
	Retention time.Duration `yaml:"retention"`
}

// TelemetryConfig contains observability configuration.
type TelemetryConfig struct {
	// Logging configures the structured logger.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics configures the Prometheus endpoint.
	Metrics MetricsConfig `yaml:"metrics"`
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, or error.
	// Default: "info"
	Level string `yaml:"level"`

	// Format is the output encoding: "json" or "text".
	// Default: "json"
	Format string `yaml:"format"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	// Enabled controls whether the metrics endpoint is served.
	// Omitted means enabled.
	Enabled *bool `yaml:"enabled"`

	// Path is the metrics endpoint path.
	// Default: "/metrics"
	Path string `yaml:"path"`
}

// MetricsEnabled reports whether the metrics endpoint should be served.
func (c MetricsConfig) MetricsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// ToLimit converts a declared rate limit into the limiter's config
// type. Defaults are applied by the limiter at registration.
func (c RateLimitConfig) ToLimit(id string) ratelimit.Config {
	return ratelimit.Config{
		ID:                id,
		Scope:             ratelimit.LimitScope(c.Scope),
		Algorithm:         ratelimit.Algorithm(c.Algorithm),
		RequestsPerWindow: c.RequestsPerWindow,
		WindowSeconds:     c.WindowSeconds,
		BurstCapacity:     c.BurstCapacity,
		TierMultipliers:   c.TierMultipliers,
		PathPatterns:      c.PathPatterns,
		ExcludePaths:      c.ExcludePaths,
		ThrottleEnabled:   c.ThrottleEnabled,
		ThrottleThreshold: c.ThrottleThreshold,
		Enabled:           c.Enabled == nil || *c.Enabled,
	}
}

// ToQuota converts a declared quota into the quota manager's config
// type. Defaults are applied by the manager at registration.
func (c QuotaConfig) ToQuota(id string) quota.Config {
	return quota.Config{
		ID:                id,
		Metric:            c.Metric,
		Scope:             quota.Scope(c.Scope),
		Window:            window.Window(c.Window),
		Limit:             c.Limit,
		Level:             quota.Level(c.Level),
		WarningThreshold:  c.WarningThreshold,
		CriticalThreshold: c.CriticalThreshold,
		OverageRate:       c.OverageRate,
		AutoIncrease:      c.AutoIncrease,
		MaxAutoLimit:      c.MaxAutoLimit,
		Enabled:           c.Enabled == nil || *c.Enabled,
	}
}
