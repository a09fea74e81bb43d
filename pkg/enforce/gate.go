package enforce

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"kepler-hq/saturn/pkg/enforce/quota"
	"kepler-hq/saturn/pkg/enforce/ratelimit"
)

// Request is one resolved admission question: who is asking, for what,
// and under which configured policies.
type Request struct {
	// LimitID names the rate limit to check. Empty skips rate limiting.
	LimitID string

	// QuotaID names the quota to check. Empty skips quota enforcement.
	QuotaID string

	// ScopeID identifies the consuming entity.
	ScopeID string

	// Path is the request path, used by the limit's path filters.
	Path string

	// Tier is the caller's subscription tier, used by the limit's
	// tier multipliers.
	Tier string

	// Amount is the number of units requested. Defaults to 1.
	Amount int
}

func (r Request) amount() int {
	if r.Amount == 0 {
		return 1
	}
	return r.Amount
}

// Verdict is the combined outcome of the rate limit and quota checks.
type Verdict struct {
	// Allowed reports whether the request may proceed.
	Allowed bool

	// Reason explains a denial or degraded outcome.
	Reason string

	// RetryAfter is how long a denied caller should wait.
	RetryAfter time.Duration

	// ThrottleDelay is the slow-down signal for allowed requests near
	// a limit. The caller sleeps it (cancellable) before serving.
	ThrottleDelay time.Duration

	// OverageCost is the billed charge when an overage quota admitted
	// usage above its limit.
	OverageCost float64

	// RateLimit is the rate limiter's result, nil when no limit was
	// checked.
	RateLimit *ratelimit.Result

	// Quota is the quota manager's result, nil when no quota was
	// checked or the rate limiter already denied.
	Quota *quota.Enforcement
}

// Gate runs the rate limiter and the quota manager in order and
// applies the most restrictive verdict.
type Gate struct {
	limiter *ratelimit.Limiter
	quotas  *quota.Manager
	logger  *slog.Logger
}

// GateOptions configures a Gate. Both subsystems are optional; a Gate
// with neither allows everything.
type GateOptions struct {
	Limiter *ratelimit.Limiter
	Quotas  *quota.Manager
	Logger  *slog.Logger
}

// NewGate creates a Gate.
func NewGate(opts GateOptions) *Gate {
	if opts.Logger == nil {
		opts.Logger = slog.Default().With("component", "enforce")
	}
	return &Gate{
		limiter: opts.Limiter,
		quotas:  opts.Quotas,
		logger:  opts.Logger,
	}
}

// Check evaluates req against its rate limit and quota. The quota is
// consulted only when the rate limiter admits the request, so a
// rate-blocked request never trips quota alerts.
//
// Denials are values: the returned error is non-nil only for caller
// input errors.
func (g *Gate) Check(ctx context.Context, req Request) (*Verdict, error) {
	verdict := &Verdict{Allowed: true}
	n := req.amount()

	if g.limiter != nil && req.LimitID != "" {
		res, err := g.limiter.Check(ctx, req.LimitID, req.ScopeID, req.Path, req.Tier, n)
		if err != nil {
			return nil, fmt.Errorf("rate limit check: %w", err)
		}
		verdict.RateLimit = res

		if !res.Allowed {
			verdict.Allowed = false
			verdict.Reason = res.Reason
			verdict.RetryAfter = res.RetryAfter
			return verdict, nil
		}
		verdict.ThrottleDelay = res.ThrottleDelay
	}

	if g.quotas != nil && req.QuotaID != "" {
		res, err := g.quotas.CheckEnforcement(ctx, req.QuotaID, req.ScopeID, n)
		if err != nil {
			return nil, fmt.Errorf("quota check: %w", err)
		}
		verdict.Quota = res

		if !res.Allowed {
			verdict.Allowed = false
			verdict.Reason = res.Reason
			if res.RetryAfter > verdict.RetryAfter {
				verdict.RetryAfter = res.RetryAfter
			}
			return verdict, nil
		}
		if res.ThrottleDelay > verdict.ThrottleDelay {
			verdict.ThrottleDelay = res.ThrottleDelay
		}
		verdict.OverageCost = res.OverageCost
		if verdict.Reason == "" {
			verdict.Reason = res.Reason
		}
	}

	return verdict, nil
}

// Record charges usage for a request that was handled successfully.
// Callers invoke it exactly once per completed request; rejected or
// cancelled requests are never charged.
func (g *Gate) Record(ctx context.Context, req Request) error {
	if g.quotas == nil || req.QuotaID == "" {
		return nil
	}

	var metadata map[string]string
	if req.Path != "" {
		metadata = map[string]string{"path": req.Path}
	}

	return g.quotas.RecordUsage(ctx, req.QuotaID, req.ScopeID, req.amount(), metadata)
}
