package quota

import (
	"errors"
	"time"
)

// Scope identifies what kind of entity a quota applies to.
type Scope string

const (
	ScopeGlobal       Scope = "global"
	ScopeOrganization Scope = "organization"
	ScopeUser         Scope = "user"
	ScopeAPIKey       Scope = "api_key"
	ScopeFeature      Scope = "feature"
)

// Valid reports whether s is a known scope.
func (s Scope) Valid() bool {
	switch s {
	case ScopeGlobal, ScopeOrganization, ScopeUser, ScopeAPIKey, ScopeFeature:
		return true
	}
	return false
}

// Level is the enforcement posture applied when usage meets or
// exceeds a quota.
type Level string

const (
	// LevelSoft logs and alerts but never denies.
	LevelSoft Level = "soft"

	// LevelHard denies once the projected usage would exceed the limit.
	LevelHard Level = "hard"

	// LevelThrottle applies a progressive delay approaching the limit
	// and denies above it.
	LevelThrottle Level = "throttle"

	// LevelOverage allows above the limit and computes a monetary
	// charge. If overage billing is globally disabled it behaves
	// like LevelHard.
	LevelOverage Level = "overage"
)

// Valid reports whether l is a known enforcement level.
func (l Level) Valid() bool {
	switch l {
	case LevelSoft, LevelHard, LevelThrottle, LevelOverage:
		return true
	}
	return false
}

// Action is what the caller should do with the request after an
// enforcement check.
type Action string

const (
	ActionLogOnly       Action = "log_only"
	ActionBlock         Action = "block"
	ActionThrottle      Action = "throttle"
	ActionChargeOverage Action = "charge_overage"
)

// UsageStatus classifies current usage against the quota's thresholds.
type UsageStatus string

const (
	StatusNormal    UsageStatus = "normal"
	StatusWarning   UsageStatus = "warning"
	StatusCritical  UsageStatus = "critical"
	StatusExceeded  UsageStatus = "exceeded"
	StatusSuspended UsageStatus = "suspended"
)

// AlertType identifies what threshold an alert reports.
type AlertType string

const (
	AlertWarning       AlertType = "warning"
	AlertCritical      AlertType = "critical"
	AlertLimitExceeded AlertType = "limit_exceeded"
	AlertOverage       AlertType = "overage"
)

var (
	// ErrInvalidAmount is returned when a check or record is attempted
	// with a non-positive amount.
	ErrInvalidAmount = errors.New("amount must be positive")

	// ErrEmptyScopeID is returned when the scope identifier is empty.
	ErrEmptyScopeID = errors.New("scope id cannot be empty")

	// ErrInvalidConfig is returned when a quota configuration fails validation.
	ErrInvalidConfig = errors.New("invalid quota configuration")
)

// Usage is a point-in-time view of consumption against a quota.
type Usage struct {
	// CurrentUsage is the amount consumed in the current window.
	CurrentUsage int64

	// Limit is the effective limit after any tier-catalog override.
	Limit int64

	// Remaining is max(0, Limit-CurrentUsage).
	Remaining int64

	// UsagePercentage is CurrentUsage/Limit expressed as a percentage.
	UsagePercentage float64

	// WindowStart and WindowEnd bound the current window, half-open
	// [start, end).
	WindowStart time.Time
	WindowEnd   time.Time

	// Status classifies the usage against the warning and critical
	// thresholds.
	Status UsageStatus
}

// Enforcement is the outcome of a quota enforcement check.
type Enforcement struct {
	// Allowed reports whether the request may proceed.
	Allowed bool

	// Reason is a human-readable explanation for denials and
	// degraded outcomes.
	Reason string

	// CurrentUsage, Limit, and Remaining mirror the usage view the
	// decision was made against.
	CurrentUsage int64
	Limit        int64
	Remaining    int64

	// Action is what the caller should do with the request.
	Action Action

	// RetryAfter is how long to wait before retrying a denied request.
	RetryAfter time.Duration

	// ThrottleDelay is a non-blocking slow-down signal on allowed
	// requests near the limit.
	ThrottleDelay time.Duration

	// OverageCost is the monetary charge for usage above the limit,
	// in the quota's currency units. Set only for ActionChargeOverage.
	OverageCost float64
}

// Alert reports a quota threshold breach or overage. Alerts are
// transient: they are handed to the Notifier and not persisted beyond
// the cooldown marker in the shared cache.
type Alert struct {
	ID        string
	QuotaID   string
	ScopeID   string
	Type      AlertType
	Message   string
	Usage     int64
	Limit     int64
	Timestamp time.Time
}
