package config

import (
	"fmt"
	"strings"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field (e.g., "server.listen_address").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a configuration.
// It implements the error interface and provides access to all field errors.
type ValidationError struct {
	// Errors contains all validation errors found in the configuration.
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// Validate validates the entire configuration and returns a ValidationError
// if any validation rules fail. It returns nil if the configuration is valid.
// All validation errors are collected and returned together.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateServer(&cfg.Server)...)
	errs = append(errs, validateCache(&cfg.Cache)...)
	errs = append(errs, validateStorage(&cfg.Storage)...)
	errs = append(errs, validateRateLimits(cfg.RateLimits)...)
	errs = append(errs, validateQuotas(cfg.Quotas)...)
	errs = append(errs, validateTiers(&cfg.Tiers)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)

	if cfg.Alerts.Cooldown < 0 {
		errs = append(errs, FieldError{
			Field:   "alerts.cooldown",
			Message: "cooldown must be non-negative",
		})
	}
	if cfg.Sweep.MaxIdle < 0 {
		errs = append(errs, FieldError{
			Field:   "sweep.max_idle",
			Message: "max idle must be non-negative",
		})
	}
	if cfg.Sweep.Retention < 0 {
		errs = append(errs, FieldError{
			Field:   "sweep.retention",
			Message: "retention must be non-negative",
		})
	}

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}

	return nil
}

// validateServer validates the HTTP server configuration.
func validateServer(cfg *ServerConfig) []FieldError {
	var errs []FieldError

	if cfg.ListenAddress == "" {
		errs = append(errs, FieldError{
			Field:   "server.listen_address",
			Message: "listen address is required",
		})
	}
	if cfg.ReadTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "server.read_timeout",
			Message: "read timeout must be positive",
		})
	}
	if cfg.WriteTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "server.write_timeout",
			Message: "write timeout must be positive",
		})
	}
	if cfg.IdleTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "server.idle_timeout",
			Message: "idle timeout must be positive",
		})
	}
	if cfg.ShutdownTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "server.shutdown_timeout",
			Message: "shutdown timeout must be positive",
		})
	}

	return errs
}

// validateCache validates the cache backend selection.
func validateCache(cfg *CacheConfig) []FieldError {
	var errs []FieldError

	switch cfg.Backend {
	case "memory", "redis":
	default:
		errs = append(errs, FieldError{
			Field:   "cache.backend",
			Message: fmt.Sprintf("invalid backend %q (must be memory or redis)", cfg.Backend),
		})
	}

	if cfg.Backend == "redis" && cfg.Redis.Addr == "" {
		errs = append(errs, FieldError{
			Field:   "cache.redis.addr",
			Message: "addr is required for the redis backend",
		})
	}
	if cfg.Memory.MaxEntries < 0 {
		errs = append(errs, FieldError{
			Field:   "cache.memory.max_entries",
			Message: "max entries must be non-negative",
		})
	}

	return errs
}

// validateStorage validates the usage ledger backend selection.
func validateStorage(cfg *StorageConfig) []FieldError {
	var errs []FieldError

	switch cfg.Backend {
	case "memory", "sqlite":
	default:
		errs = append(errs, FieldError{
			Field:   "storage.backend",
			Message: fmt.Sprintf("invalid backend %q (must be memory or sqlite)", cfg.Backend),
		})
	}

	if cfg.Backend == "sqlite" && cfg.SQLite.Path == "" {
		errs = append(errs, FieldError{
			Field:   "storage.sqlite.path",
			Message: "path is required for the sqlite backend",
		})
	}

	return errs
}

// validateRateLimits delegates per-limit validation to the limiter's
// own config rules, with the same defaults registration applies.
func validateRateLimits(limits map[string]RateLimitConfig) []FieldError {
	var errs []FieldError

	for id, lc := range limits {
		if err := lc.ToLimit(id).WithDefaults().Validate(); err != nil {
			errs = append(errs, FieldError{
				Field:   fmt.Sprintf("rate_limits.%s", id),
				Message: err.Error(),
			})
		}
	}

	return errs
}

// validateQuotas delegates per-quota validation to the quota manager's
// own config rules, with the same defaults registration applies.
func validateQuotas(quotas map[string]QuotaConfig) []FieldError {
	var errs []FieldError

	for id, qc := range quotas {
		if err := qc.ToQuota(id).WithDefaults().Validate(); err != nil {
			errs = append(errs, FieldError{
				Field:   fmt.Sprintf("quotas.%s", id),
				Message: err.Error(),
			})
		}
	}

	return errs
}

// validateTiers checks the static tier catalog for internal consistency.
func validateTiers(cfg *TiersConfig) []FieldError {
	var errs []FieldError

	for tier, metrics := range cfg.Limits {
		for metric, limit := range metrics {
			if limit < 0 {
				errs = append(errs, FieldError{
					Field:   fmt.Sprintf("tiers.limits.%s.%s", tier, metric),
					Message: "limit must be non-negative",
				})
			}
		}
	}

	for scopeID, tier := range cfg.Assignments {
		if tier == "" {
			errs = append(errs, FieldError{
				Field:   fmt.Sprintf("tiers.assignments.%s", scopeID),
				Message: "tier name must not be empty",
			})
			continue
		}
		if _, ok := cfg.Limits[tier]; !ok {
			errs = append(errs, FieldError{
				Field:   fmt.Sprintf("tiers.assignments.%s", scopeID),
				Message: fmt.Sprintf("tier %q is not declared in tiers.limits", tier),
			})
		}
	}

	return errs
}

// validateTelemetry validates logging and metrics configuration.
func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError

	switch cfg.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: fmt.Sprintf("invalid level %q (must be debug, info, warn, or error)", cfg.Logging.Level),
		})
	}

	switch cfg.Logging.Format {
	case "json", "text":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: fmt.Sprintf("invalid format %q (must be json or text)", cfg.Logging.Format),
		})
	}

	if cfg.Metrics.MetricsEnabled() && !strings.HasPrefix(cfg.Metrics.Path, "/") {
		errs = append(errs, FieldError{
			Field:   "telemetry.metrics.path",
			Message: "path must start with /",
		})
	}

	return errs
}
