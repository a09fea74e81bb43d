package ratelimit

import (
	"errors"
	"strconv"
	"time"
)

// LimitScope identifies whose usage a counter tracks.
type LimitScope string

const (
	// ScopeGlobal tracks one counter for all traffic.
	ScopeGlobal LimitScope = "global"

	// ScopeIPAddress tracks usage per client IP address.
	ScopeIPAddress LimitScope = "ip"

	// ScopeUser tracks usage per user ID.
	ScopeUser LimitScope = "user"

	// ScopeOrganization tracks usage per organization ID.
	ScopeOrganization LimitScope = "organization"

	// ScopeAPIKey tracks usage per API key.
	ScopeAPIKey LimitScope = "api_key"

	// ScopeEndpoint tracks usage per endpoint path.
	ScopeEndpoint LimitScope = "endpoint"

	// ScopeFeature tracks usage per product feature.
	ScopeFeature LimitScope = "feature"
)

// Valid reports whether s is a defined scope.
func (s LimitScope) Valid() bool {
	switch s {
	case ScopeGlobal, ScopeIPAddress, ScopeUser, ScopeOrganization,
		ScopeAPIKey, ScopeEndpoint, ScopeFeature:
		return true
	}
	return false
}

// Algorithm selects the limiting algorithm for a configured limit.
type Algorithm string

const (
	// AlgorithmTokenBucket is a lazily refilled token bucket.
	AlgorithmTokenBucket Algorithm = "token_bucket"

	// AlgorithmSlidingWindow is a rolling window of request timestamps.
	AlgorithmSlidingWindow Algorithm = "sliding_window"

	// AlgorithmFixedWindow is an aligned-window counter held in the
	// shared cache.
	AlgorithmFixedWindow Algorithm = "fixed_window"

	// AlgorithmLeakyBucket is an alias of AlgorithmTokenBucket.
	AlgorithmLeakyBucket Algorithm = "leaky_bucket"
)

// Valid reports whether a is a defined algorithm.
func (a Algorithm) Valid() bool {
	switch a {
	case AlgorithmTokenBucket, AlgorithmSlidingWindow, AlgorithmFixedWindow, AlgorithmLeakyBucket:
		return true
	}
	return false
}

// Decision is the outcome of a rate limit check.
type Decision string

const (
	// DecisionAllowed permits the request.
	DecisionAllowed Decision = "allowed"

	// DecisionThrottled permits the request but signals the caller to
	// back off for ThrottleDelay before servicing it.
	DecisionThrottled Decision = "throttled"

	// DecisionBlocked rejects the request.
	DecisionBlocked Decision = "blocked"
)

// Caller-input errors. These indicate programming errors at the call
// site and are returned before any counter state is touched.
var (
	// ErrInvalidAmount is returned when the requested amount is not positive.
	ErrInvalidAmount = errors.New("requested amount must be positive")

	// ErrEmptyScopeID is returned when the scope identifier is empty.
	ErrEmptyScopeID = errors.New("scope id cannot be empty")

	// ErrInvalidConfig is returned when a limit configuration fails validation.
	ErrInvalidConfig = errors.New("invalid rate limit configuration")
)

// Standard response header names for HTTP integration.
const (
	HeaderLimit         = "X-RateLimit-Limit"
	HeaderRemaining     = "X-RateLimit-Remaining"
	HeaderReset         = "X-RateLimit-Reset"
	HeaderWindow        = "X-RateLimit-Window"
	HeaderRetryAfter    = "Retry-After"
	HeaderThrottleDelay = "X-RateLimit-Throttle-Delay"
)

// Result contains the decision and metadata from a rate limit check.
// A Result is built fresh per check and never mutated afterwards.
type Result struct {
	// Decision is the check outcome.
	Decision Decision

	// Allowed indicates if the request may proceed. Throttled results
	// are allowed.
	Allowed bool

	// Reason annotates the decision (why a check was skipped, which
	// limit blocked, or the fail-open cause).
	Reason string

	// CurrentUsage is the usage counted against the limit, including
	// this request when it was admitted.
	CurrentUsage int64

	// Limit is the effective limit after tier scaling.
	Limit int64

	// Remaining is the capacity left in the window.
	Remaining int64

	// ResetTime is when the counter resets or the bucket refills.
	ResetTime time.Time

	// RetryAfter suggests how long to wait before retrying (blocked only).
	RetryAfter time.Duration

	// ThrottleDelay is the advisory backoff for throttled results.
	ThrottleDelay time.Duration

	// WindowSeconds is the configured window length.
	WindowSeconds int
}

// Headers renders the standard rate limit response headers.
func (r *Result) Headers() map[string]string {
	h := map[string]string{
		HeaderLimit:     strconv.FormatInt(r.Limit, 10),
		HeaderRemaining: strconv.FormatInt(r.Remaining, 10),
		HeaderWindow:    strconv.Itoa(r.WindowSeconds),
	}
	if !r.ResetTime.IsZero() {
		h[HeaderReset] = strconv.FormatInt(r.ResetTime.Unix(), 10)
	}
	if r.RetryAfter > 0 {
		h[HeaderRetryAfter] = strconv.Itoa(int(r.RetryAfter.Round(time.Second) / time.Second))
	}
	if r.ThrottleDelay > 0 {
		h[HeaderThrottleDelay] = strconv.FormatFloat(r.ThrottleDelay.Seconds(), 'f', -1, 64)
	}
	return h
}

// ThrottleDelayFor maps a usage fraction to an advisory delay. The
// quota manager reuses the same step table for its throttle posture.
func ThrottleDelayFor(used float64) time.Duration {
	switch {
	case used >= 0.95:
		return 2 * time.Second
	case used >= 0.90:
		return time.Second
	case used >= 0.80:
		return 500 * time.Millisecond
	default:
		return 100 * time.Millisecond
	}
}
