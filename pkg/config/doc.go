// Package config provides configuration management for Saturn.
//
// This package handles loading, validating, and managing configuration from
// YAML files with environment variable overrides. It provides a type-safe
// configuration system with comprehensive validation and sensible defaults.
//
// # Configuration Loading
//
// Configuration can be loaded in two ways:
//
//  1. From a YAML file only:
//     cfg, err := config.LoadConfig("config.yaml")
//
//  2. From a YAML file with environment variable overrides:
//     cfg, err := config.LoadConfigWithEnvOverrides("config.yaml")
//
// # Environment Variable Overrides
//
// Environment variables follow the naming convention SATURN_SECTION_FIELD.
// For example:
//
//   - SATURN_SERVER_LISTEN_ADDRESS overrides server.listen_address
//   - SATURN_CACHE_REDIS_ADDR overrides cache.redis.addr
//   - SATURN_TELEMETRY_LOGGING_LEVEL overrides telemetry.logging.level
//
// Environment variables always take precedence over file-based configuration.
//
// # Configuration Precedence
//
// Configuration values are applied in the following order (later overrides earlier):
//
//  1. Default values (defined in defaults.go)
//  2. Values from YAML file
//  3. Environment variable overrides
//  4. Validation (fails fast if invalid)
//
// # Hot Reload
//
// FileWatcher watches the configuration file and delivers a freshly
// loaded Config to a callback after a debounce interval. A file that
// fails to load or validate is skipped and the previous configuration
// stays in effect:
//
//	fw, err := config.NewFileWatcher("config.yaml", 0, logger)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	go fw.Watch(ctx, func(cfg *config.Config) {
//	    // re-register rate limits and quotas
//	})
//
// # Policy Declarations
//
// Rate limits and quotas are declared as maps keyed by policy id and
// converted to the enforcement packages' config types with ToLimit and
// ToQuota. Validation delegates to those packages so the file rules
// and the programmatic rules never drift:
//
//	rate_limits:
//	  api-default:
//	    scope: "user"
//	    algorithm: "token_bucket"
//	    requests_per_window: 60
//	    window_seconds: 60
//	    burst_capacity: 10
//
//	quotas:
//	  api-calls-daily:
//	    metric: "api_calls"
//	    scope: "organization"
//	    window: "day"
//	    limit: 100000
//	    level: "hard"
//
// # Thread Safety
//
// All configuration access is thread-safe. The singleton pattern uses read-write
// locks to allow concurrent reads while protecting against concurrent writes during
// reload operations.
package config
