package ratelimit

import (
	"fmt"
	"strings"
)

// Config is the immutable definition of a named rate limit.
//
// Configs are validated at registration time; an invalid config is
// rejected eagerly rather than failing during evaluation.
type Config struct {
	// ID is the unique name of this limit.
	ID string

	// Scope is the dimension the counter is keyed on.
	Scope LimitScope

	// Algorithm selects the limiting algorithm.
	Algorithm Algorithm

	// RequestsPerWindow is the steady-state allowance per window.
	RequestsPerWindow int64

	// WindowSeconds is the window length in seconds.
	WindowSeconds int

	// BurstCapacity is the maximum instantaneous allowance. Defaults to
	// RequestsPerWindow when zero.
	BurstCapacity int64

	// TierMultipliers scales the limit per subscription tier. A tier
	// without an entry uses 1.0. A multiplier of 0 gives the tier no
	// capacity at all.
	TierMultipliers map[string]float64

	// PathPatterns restricts the limit to matching request paths. An
	// empty list covers every path. Patterns support a leading or
	// trailing "*" wildcard.
	PathPatterns []string

	// ExcludePaths exempts matching paths from this limit.
	ExcludePaths []string

	// ThrottleEnabled turns on the progressive-delay signal as usage
	// approaches the limit.
	ThrottleEnabled bool

	// ThrottleThreshold is the usage fraction at which throttling
	// starts. Defaults to 0.8 when zero.
	ThrottleThreshold float64

	// Enabled turns the limit on. Disabled limits always allow.
	Enabled bool
}

// WithDefaults returns a copy of c with zero-value fields filled in.
func (c Config) WithDefaults() Config {
	if c.BurstCapacity == 0 {
		c.BurstCapacity = c.RequestsPerWindow
	}
	if c.ThrottleThreshold == 0 {
		c.ThrottleThreshold = 0.8
	}
	return c
}

// Validate checks the config for registration. Defaults are not
// applied here; apply WithDefaults first, as Limiter.Register does.
func (c Config) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("%w: id cannot be empty", ErrInvalidConfig)
	}
	if !c.Scope.Valid() {
		return fmt.Errorf("%w: unknown scope %q", ErrInvalidConfig, c.Scope)
	}
	if !c.Algorithm.Valid() {
		return fmt.Errorf("%w: unknown algorithm %q", ErrInvalidConfig, c.Algorithm)
	}
	if c.RequestsPerWindow <= 0 {
		return fmt.Errorf("%w: requests per window must be positive", ErrInvalidConfig)
	}
	if c.WindowSeconds <= 0 {
		return fmt.Errorf("%w: window seconds must be positive", ErrInvalidConfig)
	}
	if c.BurstCapacity <= 0 {
		return fmt.Errorf("%w: burst capacity must be positive", ErrInvalidConfig)
	}
	if c.ThrottleThreshold < 0 || c.ThrottleThreshold > 1 {
		return fmt.Errorf("%w: throttle threshold must be within [0, 1]", ErrInvalidConfig)
	}
	for tier, mult := range c.TierMultipliers {
		if mult < 0 {
			return fmt.Errorf("%w: negative multiplier for tier %q", ErrInvalidConfig, tier)
		}
	}
	return nil
}

// multiplier returns the tier scaling factor, defaulting to 1.0 for
// unknown or unset tiers.
func (c *Config) multiplier(tier string) float64 {
	if c.TierMultipliers == nil {
		return 1.0
	}
	mult, ok := c.TierMultipliers[tier]
	if !ok {
		return 1.0
	}
	return mult
}

// effective returns the tier-scaled limit and burst capacity.
func (c *Config) effective(tier string) (limit, burst float64) {
	mult := c.multiplier(tier)
	return float64(c.RequestsPerWindow) * mult, float64(c.BurstCapacity) * mult
}

// excluded reports whether path matches any exclude pattern.
func (c *Config) excluded(path string) bool {
	for _, pattern := range c.ExcludePaths {
		if matchPath(pattern, path) {
			return true
		}
	}
	return false
}

// covers reports whether this limit applies to path. A limit with no
// path patterns covers every path.
func (c *Config) covers(path string) bool {
	if len(c.PathPatterns) == 0 {
		return true
	}
	for _, pattern := range c.PathPatterns {
		if matchPath(pattern, path) {
			return true
		}
	}
	return false
}

// matchPath matches a glob-style pattern against a request path.
// Supported forms: "*" (everything), "prefix/*", "*.suffix",
// "*infix*", and exact match.
func matchPath(pattern, path string) bool {
	if pattern == "*" {
		return true
	}

	leading := strings.HasPrefix(pattern, "*")
	trailing := strings.HasSuffix(pattern, "*")

	switch {
	case leading && trailing:
		return strings.Contains(path, strings.Trim(pattern, "*"))
	case trailing:
		return strings.HasPrefix(path, strings.TrimSuffix(pattern, "*"))
	case leading:
		return strings.HasSuffix(path, strings.TrimPrefix(pattern, "*"))
	default:
		return path == pattern
	}
}
