package quota

import (
	"fmt"

	"kepler-hq/saturn/pkg/enforce/window"
)

// Config is the immutable definition of a named quota.
//
// Configs are validated at registration time; an invalid config is
// rejected eagerly rather than failing during evaluation.
type Config struct {
	// ID is the unique name of this quota.
	ID string

	// Metric is the opaque usage-counter name this quota bounds,
	// such as "api_calls" or "invoices_processed".
	Metric string

	// Scope is the dimension usage is keyed on.
	Scope Scope

	// Window is the measurement period.
	Window window.Window

	// Limit is the base allowance per window. A tier catalog may
	// override it per scope.
	Limit int64

	// Level is the enforcement posture once usage reaches the limit.
	Level Level

	// WarningThreshold is the usage fraction that flips status to
	// Warning and fires a warning alert. Defaults to 0.8 when zero.
	WarningThreshold float64

	// CriticalThreshold is the usage fraction that flips status to
	// Critical. Defaults to 0.95 when zero. Must be at least
	// WarningThreshold.
	CriticalThreshold float64

	// OverageRate is the charge per unit above the limit, in currency
	// units. Required for LevelOverage.
	OverageRate float64

	// AutoIncrease lets the effective limit grow once exhausted, up
	// to MaxAutoLimit.
	AutoIncrease bool

	// MaxAutoLimit is the ceiling for an auto-increasing limit.
	MaxAutoLimit int64

	// Enabled turns the quota on. Disabled quotas always allow.
	Enabled bool
}

// WithDefaults returns a copy of c with zero-value fields filled in.
func (c Config) WithDefaults() Config {
	if c.WarningThreshold == 0 {
		c.WarningThreshold = 0.8
	}
	if c.CriticalThreshold == 0 {
		c.CriticalThreshold = 0.95
	}
	return c
}

// Validate checks the config for registration. Defaults are not
// applied here; apply WithDefaults first, as Manager.Register does.
func (c Config) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("%w: id cannot be empty", ErrInvalidConfig)
	}
	if c.Metric == "" {
		return fmt.Errorf("%w: metric cannot be empty", ErrInvalidConfig)
	}
	if !c.Scope.Valid() {
		return fmt.Errorf("%w: unknown scope %q", ErrInvalidConfig, c.Scope)
	}
	if !c.Window.Valid() {
		return fmt.Errorf("%w: unknown window %q", ErrInvalidConfig, c.Window)
	}
	if !c.Level.Valid() {
		return fmt.Errorf("%w: unknown enforcement level %q", ErrInvalidConfig, c.Level)
	}
	if c.Limit <= 0 {
		return fmt.Errorf("%w: limit must be positive", ErrInvalidConfig)
	}
	if c.WarningThreshold < 0 || c.WarningThreshold > 1 {
		return fmt.Errorf("%w: warning threshold must be within [0, 1]", ErrInvalidConfig)
	}
	if c.CriticalThreshold < 0 || c.CriticalThreshold > 1 {
		return fmt.Errorf("%w: critical threshold must be within [0, 1]", ErrInvalidConfig)
	}
	if c.CriticalThreshold < c.WarningThreshold {
		return fmt.Errorf("%w: critical threshold must be at least the warning threshold", ErrInvalidConfig)
	}
	if c.Level == LevelOverage && c.OverageRate <= 0 {
		return fmt.Errorf("%w: overage rate is required for overage enforcement", ErrInvalidConfig)
	}
	if c.OverageRate < 0 {
		return fmt.Errorf("%w: overage rate cannot be negative", ErrInvalidConfig)
	}
	if c.AutoIncrease && c.MaxAutoLimit < c.Limit {
		return fmt.Errorf("%w: max auto limit must be at least the base limit", ErrInvalidConfig)
	}
	return nil
}
