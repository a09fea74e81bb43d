package ratelimit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	"kepler-hq/saturn/pkg/enforce/cache"
)

// Limiter owns the rate limit configuration registry and dispatches
// checks to the matching algorithm implementation.
//
// Configs are registered once at startup (or re-registered on config
// reload) and are read-mostly afterwards. Per-key counter state is
// created on first access and evicted when idle.
//
// # Failure Policy
//
// The limiter fails open: any internal error (cache unavailable,
// corrupt persisted state) is logged and the check resolves as
// allowed. Denials are successful evaluations, not errors. Only
// caller-input errors (non-positive amount, empty scope) surface as
// errors, before any state mutation.
type Limiter struct {
	configMu sync.RWMutex
	configs  map[string]*Config

	stateMu sync.Mutex
	buckets map[string]*bucketEntry
	windows map[string]*windowEntry

	cache   cache.Cache
	persist bool
	metrics *Metrics
	logger  *slog.Logger

	now func() time.Time
}

type bucketEntry struct {
	bucket     *TokenBucket
	lastAccess time.Time
}

type windowEntry struct {
	counter    *SlidingWindowCounter
	lastAccess time.Time
}

// LimiterOptions configures a Limiter. The zero value is usable: an
// in-process cache, no persistence, no metrics.
type LimiterOptions struct {
	// Cache is the shared cache used for fixed-window counters and
	// bucket snapshots. Defaults to an in-process memory cache.
	Cache cache.Cache

	// PersistState snapshots token buckets to the cache after each
	// check so a restarted process resumes partially drained buckets.
	PersistState bool

	// Metrics receives per-check counters. May be nil.
	Metrics *Metrics

	// Logger defaults to slog.Default with a component attribute.
	Logger *slog.Logger
}

// NewLimiter creates a rate limiter with an empty config registry.
func NewLimiter(opts LimiterOptions) *Limiter {
	if opts.Cache == nil {
		opts.Cache = cache.NewMemory()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default().With("component", "ratelimit")
	}

	return &Limiter{
		configs: make(map[string]*Config),
		buckets: make(map[string]*bucketEntry),
		windows: make(map[string]*windowEntry),
		cache:   opts.Cache,
		persist: opts.PersistState,
		metrics: opts.Metrics,
		logger:  opts.Logger,
		now:     time.Now,
	}
}

// Register adds or replaces a limit definition. Registration is
// idempotent by ID; re-registering drops any counter state accumulated
// under the previous definition.
func (l *Limiter) Register(cfg Config) error {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return err
	}

	l.configMu.Lock()
	l.configs[cfg.ID] = &cfg
	l.configMu.Unlock()

	l.dropState(cfg.ID)
	return nil
}

// Unregister removes a limit definition and its counter state.
// Unregistering an unknown ID is a no-op.
func (l *Limiter) Unregister(id string) {
	l.configMu.Lock()
	delete(l.configs, id)
	l.configMu.Unlock()

	l.dropState(id)
}

// Config returns the registered config for id, or nil.
func (l *Limiter) Config(id string) *Config {
	l.configMu.RLock()
	defer l.configMu.RUnlock()
	return l.configs[id]
}

// Check evaluates a request of weight n against the named limit.
//
// A missing or disabled limit, an excluded path, or a path outside the
// limit's patterns all resolve as allowed with an annotated reason.
// The tier multiplier scales both the steady-state limit and the burst
// capacity; unknown tiers use 1.0.
func (l *Limiter) Check(ctx context.Context, limitID, scopeID, path, tier string, n int) (*Result, error) {
	if n <= 0 {
		return nil, ErrInvalidAmount
	}
	if scopeID == "" {
		return nil, ErrEmptyScopeID
	}

	cfg := l.Config(limitID)
	if cfg == nil {
		res := l.skip("limit not configured")
		l.metrics.RecordCheck(limitID, "", res.Decision)
		return res, nil
	}

	started := l.now()
	defer func() {
		l.metrics.RecordDuration(cfg.Algorithm, l.now().Sub(started).Seconds())
	}()

	var skipReason string
	switch {
	case !cfg.Enabled:
		skipReason = "limit disabled"
	case cfg.excluded(path):
		skipReason = "path excluded"
	case !cfg.covers(path):
		skipReason = "path not covered"
	}
	if skipReason != "" {
		res := l.skip(skipReason)
		l.metrics.RecordCheck(limitID, cfg.Scope, res.Decision)
		return res, nil
	}

	limit, burst := cfg.effective(tier)
	if limit <= 0 || burst <= 0 {
		// A zero multiplier leaves the tier with no capacity.
		res := &Result{
			Decision:      DecisionBlocked,
			Reason:        fmt.Sprintf("tier %q has no capacity for limit %q", tier, limitID),
			Limit:         0,
			Remaining:     0,
			ResetTime:     l.now().Add(cfg.windowDuration()),
			RetryAfter:    cfg.windowDuration(),
			WindowSeconds: cfg.WindowSeconds,
		}
		l.metrics.RecordCheck(limitID, cfg.Scope, res.Decision)
		return res, nil
	}

	var res *Result
	switch cfg.Algorithm {
	case AlgorithmTokenBucket, AlgorithmLeakyBucket:
		res = l.checkBucket(ctx, cfg, scopeID, limit, burst, n)
	case AlgorithmSlidingWindow:
		res = l.checkSliding(cfg, scopeID, limit, n)
	case AlgorithmFixedWindow:
		res = l.checkFixed(ctx, cfg, scopeID, limit, n)
	default:
		// Unreachable after validation; treat as a fail-open evaluation error.
		l.logger.Error("unknown algorithm", "limit_id", cfg.ID, "algorithm", cfg.Algorithm)
		l.metrics.RecordFailOpen(cfg.ID)
		res = l.skip("unknown algorithm (fail-open)")
	}

	l.metrics.RecordCheck(limitID, cfg.Scope, res.Decision)
	return res, nil
}

// checkBucket runs the token bucket algorithm for one (limit, scope) key.
func (l *Limiter) checkBucket(ctx context.Context, cfg *Config, scopeID string, limit, burst float64, n int) *Result {
	rate := limit / float64(cfg.WindowSeconds)
	key := stateKey(cfg.ID, scopeID)
	bucket := l.bucketFor(ctx, key, burst, rate)

	consumed := bucket.Consume(float64(n))
	tokens := bucket.Peek()
	used := 0.0
	if burst > 0 {
		used = (burst - tokens) / burst
	}

	res := &Result{
		CurrentUsage:  int64(math.Ceil(burst - tokens)),
		Limit:         int64(burst),
		Remaining:     int64(tokens),
		WindowSeconds: cfg.WindowSeconds,
	}

	if consumed {
		res.Decision = DecisionAllowed
		res.Allowed = true
		if cfg.ThrottleEnabled && used >= cfg.ThrottleThreshold {
			res.Decision = DecisionThrottled
			res.ThrottleDelay = ThrottleDelayFor(used)
		}
		// The bucket is conceptually "reset" once it has refilled.
		if rate > 0 {
			res.ResetTime = l.now().Add(time.Duration((burst - tokens) / rate * float64(time.Second)))
		}
	} else {
		res.Decision = DecisionBlocked
		res.Reason = fmt.Sprintf("rate limit %q exceeded", cfg.ID)
		res.RetryAfter = retryAfterForRefill(n, rate, cfg.windowDuration())
		res.ResetTime = l.now().Add(res.RetryAfter)
	}

	if l.persist {
		l.persistBucket(ctx, key, bucket, cfg.windowDuration())
	}

	return res
}

// checkSliding runs the sliding window algorithm for one key.
// Multi-unit admission is all-or-nothing under the counter's lock.
func (l *Limiter) checkSliding(cfg *Config, scopeID string, limit float64, n int) *Result {
	maxRequests := int(limit)
	key := stateKey(cfg.ID, scopeID)
	counter := l.windowFor(key, cfg.windowDuration(), maxRequests)

	admitted := counter.AddN(n)
	count := counter.Count()
	reset := l.now().Add(counter.TimeUntilReset())

	res := &Result{
		CurrentUsage:  int64(count),
		Limit:         int64(maxRequests),
		Remaining:     int64(maxRequests - count),
		ResetTime:     reset,
		WindowSeconds: cfg.WindowSeconds,
	}

	if admitted {
		res.Decision = DecisionAllowed
		res.Allowed = true
		used := float64(count) / limit
		if cfg.ThrottleEnabled && used >= cfg.ThrottleThreshold {
			res.Decision = DecisionThrottled
			res.ThrottleDelay = ThrottleDelayFor(used)
		}
	} else {
		res.Decision = DecisionBlocked
		res.Reason = fmt.Sprintf("rate limit %q exceeded", cfg.ID)
		res.RetryAfter = counter.TimeUntilReset()
	}

	return res
}

// checkFixed runs the fixed window algorithm against the shared cache.
// Counters are keyed on the aligned window start so two calls
// straddling a boundary land in different windows.
func (l *Limiter) checkFixed(ctx context.Context, cfg *Config, scopeID string, limit float64, n int) *Result {
	now := l.now()
	windowDur := cfg.windowDuration()
	start := now.Truncate(windowDur)
	end := start.Add(windowDur)
	key := fmt.Sprintf("ratelimit:fixed:%s:%s:%d", cfg.ID, scopeID, start.Unix())

	count, err := l.cache.IncrBy(ctx, key, int64(n), end.Sub(now))
	if err != nil {
		l.logger.Error("fixed window cache increment failed",
			"limit_id", cfg.ID,
			"scope_id", scopeID,
			"error", err,
		)
		l.metrics.RecordFailOpen(cfg.ID)
		return l.skip("cache unavailable (fail-open)")
	}

	intLimit := int64(limit)
	res := &Result{
		CurrentUsage:  count,
		Limit:         intLimit,
		Remaining:     maxInt64(0, intLimit-count),
		ResetTime:     end,
		WindowSeconds: cfg.WindowSeconds,
	}

	if count <= intLimit {
		res.Decision = DecisionAllowed
		res.Allowed = true
		used := float64(count) / limit
		if cfg.ThrottleEnabled && used >= cfg.ThrottleThreshold {
			res.Decision = DecisionThrottled
			res.ThrottleDelay = ThrottleDelayFor(used)
		}
		return res
	}

	// Over the limit: release the speculative increment so rejected
	// requests do not consume window capacity.
	if _, err := l.cache.IncrBy(ctx, key, -int64(n), end.Sub(now)); err != nil {
		l.logger.Warn("failed to release fixed window increment",
			"limit_id", cfg.ID,
			"scope_id", scopeID,
			"error", err,
		)
	}

	res.Decision = DecisionBlocked
	res.Allowed = false
	res.Reason = fmt.Sprintf("rate limit %q exceeded", cfg.ID)
	res.CurrentUsage = count - int64(n)
	res.RetryAfter = end.Sub(now)
	return res
}

// EvictStale removes in-memory counter state idle for longer than
// maxIdle. It returns the number of evicted entries.
func (l *Limiter) EvictStale(maxIdle time.Duration) int {
	cutoff := l.now().Add(-maxIdle)

	l.stateMu.Lock()
	defer l.stateMu.Unlock()

	evicted := 0
	for key, entry := range l.buckets {
		if entry.lastAccess.Before(cutoff) {
			delete(l.buckets, key)
			evicted++
		}
	}
	for key, entry := range l.windows {
		if entry.lastAccess.Before(cutoff) {
			delete(l.windows, key)
			evicted++
		}
	}

	return evicted
}

// PersistAll snapshots every live token bucket to the shared cache.
// Failures are logged; persistence is best-effort by design.
func (l *Limiter) PersistAll(ctx context.Context) {
	type pair struct {
		key    string
		bucket *TokenBucket
	}

	l.stateMu.Lock()
	pairs := make([]pair, 0, len(l.buckets))
	for key, entry := range l.buckets {
		pairs = append(pairs, pair{key, entry.bucket})
	}
	l.stateMu.Unlock()

	for _, p := range pairs {
		l.persistBucket(ctx, p.key, p.bucket, 0)
	}
}

// skip builds the uniform allowed result for checks that do not apply.
func (l *Limiter) skip(reason string) *Result {
	return &Result{
		Decision: DecisionAllowed,
		Allowed:  true,
		Reason:   reason,
	}
}

// bucketFor returns the bucket for key, creating it on first access.
// The check-then-create race is resolved by re-checking under the
// creation lock; the restore read happens outside the lock so cache
// latency never blocks unrelated keys.
func (l *Limiter) bucketFor(ctx context.Context, key string, capacity, rate float64) *TokenBucket {
	l.stateMu.Lock()
	if entry, ok := l.buckets[key]; ok {
		entry.lastAccess = l.now()
		l.stateMu.Unlock()
		return entry.bucket
	}
	l.stateMu.Unlock()

	bucket := NewTokenBucket(capacity, rate)
	bucket.now = l.now
	bucket.lastRefill = l.now()
	if l.persist {
		if restored := l.restoreBucket(ctx, key, capacity, rate); restored != nil {
			restored.now = l.now
			bucket = restored
		}
	}

	l.stateMu.Lock()
	defer l.stateMu.Unlock()
	if entry, ok := l.buckets[key]; ok {
		entry.lastAccess = l.now()
		return entry.bucket
	}
	l.buckets[key] = &bucketEntry{bucket: bucket, lastAccess: l.now()}
	return bucket
}

// windowFor returns the sliding window counter for key, creating it on
// first access.
func (l *Limiter) windowFor(key string, window time.Duration, maxRequests int) *SlidingWindowCounter {
	l.stateMu.Lock()
	defer l.stateMu.Unlock()

	if entry, ok := l.windows[key]; ok {
		entry.lastAccess = l.now()
		return entry.counter
	}

	counter := NewSlidingWindowCounter(window, maxRequests)
	counter.now = l.now
	l.windows[key] = &windowEntry{counter: counter, lastAccess: l.now()}
	return counter
}

// restoreBucket loads a persisted snapshot for key. The capacity and
// refill rate always come from the current config so a config change
// is not undone by a stale snapshot; only the drain level carries over.
func (l *Limiter) restoreBucket(ctx context.Context, key string, capacity, rate float64) *TokenBucket {
	raw, found, err := l.cache.Get(ctx, bucketCacheKey(key))
	if err != nil {
		l.logger.Warn("bucket restore failed", "key", key, "error", err)
		return nil
	}
	if !found {
		return nil
	}

	var snap BucketSnapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		l.logger.Warn("corrupt bucket snapshot", "key", key, "error", err)
		return nil
	}

	snap.Capacity = capacity
	snap.RefillRate = rate
	return RestoreTokenBucket(snap)
}

func (l *Limiter) persistBucket(ctx context.Context, key string, bucket *TokenBucket, window time.Duration) {
	snap := bucket.Snapshot()
	raw, err := json.Marshal(snap)
	if err != nil {
		l.logger.Warn("bucket snapshot encode failed", "key", key, "error", err)
		return
	}

	// Keep snapshots around long enough to survive a restart, not
	// long enough to resurrect ancient state.
	ttl := 2 * window
	if err := l.cache.Set(ctx, bucketCacheKey(key), string(raw), ttl); err != nil {
		l.logger.Warn("bucket snapshot write failed", "key", key, "error", err)
	}
}

// dropState removes all counter state for a limit ID.
func (l *Limiter) dropState(limitID string) {
	prefix := limitID + ":"

	l.stateMu.Lock()
	defer l.stateMu.Unlock()

	for key := range l.buckets {
		if strings.HasPrefix(key, prefix) {
			delete(l.buckets, key)
		}
	}
	for key := range l.windows {
		if strings.HasPrefix(key, prefix) {
			delete(l.windows, key)
		}
	}
}

func (c *Config) windowDuration() time.Duration {
	return time.Duration(c.WindowSeconds) * time.Second
}

func stateKey(limitID, scopeID string) string {
	return limitID + ":" + scopeID
}

func bucketCacheKey(stateKey string) string {
	return "ratelimit:bucket:" + stateKey
}

// retryAfterForRefill computes how long a blocked caller should wait:
// the time to refill n tokens, rounded up to a whole second.
func retryAfterForRefill(n int, rate float64, window time.Duration) time.Duration {
	if rate <= 0 {
		return window
	}
	return time.Duration(math.Ceil(float64(n)/rate)) * time.Second
}

func maxInt64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
