package quota

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"kepler-hq/saturn/pkg/enforce/cache"
	"kepler-hq/saturn/pkg/enforce/ratelimit"
	"kepler-hq/saturn/pkg/enforce/storage"
	"kepler-hq/saturn/pkg/enforce/window"
)

// DefaultAlertCooldown is the minimum gap between two alerts for the
// same (quota, scope, type) triple.
const DefaultAlertCooldown = 300 * time.Second

// Manager evaluates quota enforcement for registered quota configs.
//
// Usage is tracked per (quotaID, scopeID) in the window the config
// declares. Reads go through the shared cache keyed on the window
// start, falling back to the durable usage ledger on a miss. Writes
// (RecordUsage) update both.
//
// Denials are values, not errors: a request over quota yields an
// Enforcement with Allowed=false and a nil error. Internal faults
// fail open.
type Manager struct {
	configMu sync.RWMutex
	configs  map[string]*Config

	store    storage.Store
	cache    cache.Cache
	tiers    TierCatalog
	notifier Notifier
	metrics  *Metrics
	logger   *slog.Logger

	overageEnabled bool
	alertCooldown  time.Duration

	now func() time.Time
}

// ManagerOptions configures a Manager. Zero values select working
// in-process defaults.
type ManagerOptions struct {
	// Store is the durable usage ledger. Defaults to an in-memory store.
	Store storage.Store

	// Cache is the shared cache for window counters and alert
	// cooldowns. Defaults to an in-memory cache.
	Cache cache.Cache

	// Tiers resolves per-scope limit overrides. Optional; without a
	// catalog every scope uses the config's base limit.
	Tiers TierCatalog

	// Notifier receives quota alerts. Defaults to the log notifier.
	Notifier Notifier

	// Metrics collects check and alert counters. Optional.
	Metrics *Metrics

	// Logger for evaluation errors and fail-open events.
	Logger *slog.Logger

	// OverageEnabled turns on overage billing globally. When false,
	// LevelOverage quotas behave like LevelHard.
	OverageEnabled bool

	// AlertCooldown is the minimum gap between identical alerts.
	// Defaults to DefaultAlertCooldown.
	AlertCooldown time.Duration
}

// NewManager creates a quota manager.
func NewManager(opts ManagerOptions) *Manager {
	if opts.Store == nil {
		opts.Store = storage.NewMemory()
	}
	if opts.Cache == nil {
		opts.Cache = cache.NewMemory()
	}
	if opts.Notifier == nil {
		opts.Notifier = NewLogNotifier(opts.Logger)
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default().With("component", "quota")
	}
	if opts.AlertCooldown == 0 {
		opts.AlertCooldown = DefaultAlertCooldown
	}

	return &Manager{
		configs:        make(map[string]*Config),
		store:          opts.Store,
		cache:          opts.Cache,
		tiers:          opts.Tiers,
		notifier:       opts.Notifier,
		metrics:        opts.Metrics,
		logger:         opts.Logger,
		overageEnabled: opts.OverageEnabled,
		alertCooldown:  opts.AlertCooldown,
		now:            time.Now,
	}
}

// Register adds or replaces a quota config. Registration is
// idempotent by ID.
func (m *Manager) Register(cfg Config) error {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return err
	}

	m.configMu.Lock()
	defer m.configMu.Unlock()
	m.configs[cfg.ID] = &cfg
	return nil
}

// Unregister removes a quota config. Recorded usage stays in the
// store; only the enforcement rule goes away.
func (m *Manager) Unregister(id string) {
	m.configMu.Lock()
	defer m.configMu.Unlock()
	delete(m.configs, id)
}

// Config returns the registered config for id, or nil.
func (m *Manager) Config(id string) *Config {
	m.configMu.RLock()
	defer m.configMu.RUnlock()
	return m.configs[id]
}

// CheckEnforcement evaluates whether a request for n units may
// proceed under the named quota.
//
// The check does not consume usage; callers invoke RecordUsage after
// the request is successfully handled.
func (m *Manager) CheckEnforcement(ctx context.Context, quotaID, scopeID string, n int) (*Enforcement, error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidAmount, n)
	}
	if scopeID == "" {
		return nil, ErrEmptyScopeID
	}

	cfg := m.Config(quotaID)
	if cfg == nil || !cfg.Enabled {
		res := &Enforcement{Allowed: true, Action: ActionLogOnly, Reason: "quota not configured"}
		if cfg != nil {
			res.Reason = "quota disabled"
		}
		m.metrics.RecordCheck(quotaID, res.Action)
		return res, nil
	}

	usage, err := m.usageFor(ctx, cfg, scopeID)
	if err != nil {
		m.logger.Error("quota evaluation failed, allowing request",
			"quota_id", quotaID, "scope_id", scopeID, "error", err)
		m.metrics.RecordFailOpen(quotaID)
		res := &Enforcement{
			Allowed: true,
			Action:  ActionLogOnly,
			Reason:  fmt.Sprintf("quota evaluation failed (fail-open): %v", err),
		}
		m.metrics.RecordCheck(quotaID, res.Action)
		return res, nil
	}

	projected := usage.CurrentUsage + int64(n)

	res := &Enforcement{
		Allowed:      true,
		Action:       ActionLogOnly,
		CurrentUsage: usage.CurrentUsage,
		Limit:        usage.Limit,
		Remaining:    usage.Remaining,
	}

	switch cfg.Level {
	case LevelSoft:
		if projected >= usage.Limit {
			res.Reason = fmt.Sprintf("quota %q reached (soft enforcement)", cfg.ID)
			m.triggerAlert(ctx, cfg, scopeID, usage, AlertLimitExceeded)
		}

	case LevelHard:
		if projected > usage.Limit {
			m.deny(res, cfg, usage, ActionBlock)
			m.triggerAlert(ctx, cfg, scopeID, usage, AlertLimitExceeded)
		}
		m.thresholdAlerts(ctx, cfg, scopeID, usage)

	case LevelThrottle:
		if projected > usage.Limit {
			m.deny(res, cfg, usage, ActionThrottle)
			res.RetryAfter = ratelimit.ThrottleDelayFor(usage.UsagePercentage / 100)
		} else if usage.UsagePercentage >= cfg.WarningThreshold*100 {
			res.Action = ActionThrottle
			res.ThrottleDelay = ratelimit.ThrottleDelayFor(usage.UsagePercentage / 100)
			res.Reason = fmt.Sprintf("quota %q approaching limit", cfg.ID)
		}

	case LevelOverage:
		if projected > usage.Limit {
			if m.overageEnabled {
				res.Action = ActionChargeOverage
				res.OverageCost = float64(projected-usage.Limit) * cfg.OverageRate
				res.Reason = fmt.Sprintf("quota %q exceeded, billing overage", cfg.ID)
				m.triggerAlert(ctx, cfg, scopeID, usage, AlertOverage)
			} else {
				// Overage billing is globally off: behave like Hard.
				m.deny(res, cfg, usage, ActionBlock)
				m.triggerAlert(ctx, cfg, scopeID, usage, AlertLimitExceeded)
			}
		}
	}

	m.metrics.RecordCheck(quotaID, res.Action)
	return res, nil
}

// deny marks res as a denial with the window's reset as retry-after.
func (m *Manager) deny(res *Enforcement, cfg *Config, usage *Usage, action Action) {
	res.Allowed = false
	res.Action = action
	res.Remaining = 0
	res.Reason = fmt.Sprintf("quota %q exceeded", cfg.ID)
	if !usage.WindowEnd.IsZero() {
		if until := usage.WindowEnd.Sub(m.now()); until > 0 {
			res.RetryAfter = until
		}
	}
}

// GetCurrentUsage returns the current usage view for (quotaID, scopeID).
func (m *Manager) GetCurrentUsage(ctx context.Context, quotaID, scopeID string) (*Usage, error) {
	if scopeID == "" {
		return nil, ErrEmptyScopeID
	}
	cfg := m.Config(quotaID)
	if cfg == nil {
		return nil, fmt.Errorf("quota %q not registered", quotaID)
	}
	return m.usageFor(ctx, cfg, scopeID)
}

// usageFor resolves the effective limit and current counter value for
// the config's window.
func (m *Manager) usageFor(ctx context.Context, cfg *Config, scopeID string) (*Usage, error) {
	now := m.now()
	start, end := window.Boundaries(cfg.Window, now)

	current, err := m.currentCount(ctx, cfg, scopeID, start, end, now)
	if err != nil {
		return nil, err
	}

	limit := m.effectiveLimit(cfg, scopeID, current)

	usage := &Usage{
		CurrentUsage: current,
		Limit:        limit,
		Remaining:    maxInt64(0, limit-current),
		WindowStart:  start,
		WindowEnd:    end,
	}
	if limit > 0 {
		usage.UsagePercentage = float64(current) / float64(limit) * 100
	}
	usage.Status = statusFor(usage.UsagePercentage, cfg)

	return usage, nil
}

// effectiveLimit applies the tier-catalog override and, when the
// config allows it, elastic growth up to the auto-limit ceiling.
func (m *Manager) effectiveLimit(cfg *Config, scopeID string, current int64) int64 {
	limit := cfg.Limit
	if m.tiers != nil {
		if override, ok := m.tiers.EffectiveLimit(scopeID, cfg.Metric); ok {
			limit = override
		}
	}

	if cfg.AutoIncrease && cfg.MaxAutoLimit > limit {
		// Double the limit while exhausted, up to the ceiling.
		for limit <= current && limit < cfg.MaxAutoLimit {
			limit *= 2
			if limit > cfg.MaxAutoLimit {
				limit = cfg.MaxAutoLimit
			}
		}
	}

	return limit
}

// currentCount reads the windowed counter, read-through: cache first,
// ledger on a miss, then the ledger value is cached for the rest of
// the window.
func (m *Manager) currentCount(ctx context.Context, cfg *Config, scopeID string, start, end, now time.Time) (int64, error) {
	key := usageKey(cfg.ID, scopeID, start)

	value, found, err := m.cache.Get(ctx, key)
	if err == nil && found {
		count, parseErr := strconv.ParseInt(value, 10, 64)
		if parseErr == nil {
			return count, nil
		}
		m.logger.Warn("malformed cached usage counter, falling back to store",
			"quota_id", cfg.ID, "scope_id", scopeID, "value", value)
	} else if err != nil {
		m.logger.Warn("usage cache read failed, falling back to store",
			"quota_id", cfg.ID, "scope_id", scopeID, "error", err)
	}

	count, err := m.store.Sum(ctx, cfg.ID, scopeID, start, end)
	if err != nil {
		return 0, fmt.Errorf("usage store read: %w", err)
	}

	// TTL 0 (lifetime window) caches without expiry.
	ttl := window.TTL(cfg.Window, now)
	if err := m.cache.Set(ctx, key, strconv.FormatInt(count, 10), ttl); err != nil {
		m.logger.Warn("usage cache write failed",
			"quota_id", cfg.ID, "scope_id", scopeID, "error", err)
	}

	return count, nil
}

// RecordUsage adds n units of consumption for (quotaID, scopeID).
//
// Callers invoke it after the request was handled successfully so
// that rejected requests are never charged. Additions are idempotent
// only per invocation; upstream retries must call it exactly once per
// completed request.
func (m *Manager) RecordUsage(ctx context.Context, quotaID, scopeID string, n int, metadata map[string]string) error {
	if n <= 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidAmount, n)
	}
	if scopeID == "" {
		return ErrEmptyScopeID
	}

	cfg := m.Config(quotaID)
	if cfg == nil {
		m.logger.Warn("usage recorded for unknown quota, dropping", "quota_id", quotaID)
		return nil
	}

	now := m.now()
	start, _ := window.Boundaries(cfg.Window, now)

	// Window counter on the shared cache, best-effort: on failure the
	// next read falls back to the ledger.
	key := usageKey(cfg.ID, scopeID, start)
	if _, err := m.cache.IncrBy(ctx, key, int64(n), window.TTL(cfg.Window, now)); err != nil {
		m.logger.Warn("usage cache increment failed",
			"quota_id", quotaID, "scope_id", scopeID, "error", err)
	}

	event := &storage.Event{
		ID:         uuid.NewString(),
		QuotaID:    cfg.ID,
		Metric:     cfg.Metric,
		ScopeID:    scopeID,
		Amount:     int64(n),
		Metadata:   metadata,
		RecordedAt: now,
	}
	if err := m.store.Record(ctx, event); err != nil {
		return fmt.Errorf("record usage for quota %q: %w", quotaID, err)
	}

	m.metrics.RecordUsage(quotaID, int64(n))
	return nil
}

// thresholdAlerts fires a warning or critical alert when usage sits
// at or above the configured thresholds. Only the highest applicable
// alert fires.
func (m *Manager) thresholdAlerts(ctx context.Context, cfg *Config, scopeID string, usage *Usage) {
	switch {
	case usage.UsagePercentage >= cfg.CriticalThreshold*100:
		m.triggerAlert(ctx, cfg, scopeID, usage, AlertCritical)
	case usage.UsagePercentage >= cfg.WarningThreshold*100:
		m.triggerAlert(ctx, cfg, scopeID, usage, AlertWarning)
	}
}

// triggerAlert dispatches an alert unless an identical one fired
// within the cooldown window. The cooldown marker lives in the shared
// cache so replicas share it.
func (m *Manager) triggerAlert(ctx context.Context, cfg *Config, scopeID string, usage *Usage, alertType AlertType) {
	key := alertCooldownKey(cfg.ID, scopeID, alertType)

	_, cooling, err := m.cache.Get(ctx, key)
	if err != nil {
		m.logger.Warn("alert cooldown read failed, dispatching anyway",
			"quota_id", cfg.ID, "scope_id", scopeID, "error", err)
	}
	if cooling {
		return
	}

	alert := &Alert{
		ID:        uuid.NewString(),
		QuotaID:   cfg.ID,
		ScopeID:   scopeID,
		Type:      alertType,
		Message:   alertMessage(cfg, scopeID, usage, alertType),
		Usage:     usage.CurrentUsage,
		Limit:     usage.Limit,
		Timestamp: m.now(),
	}

	if err := m.notifier.SendAlert(ctx, alert); err != nil {
		m.logger.Error("alert delivery failed",
			"quota_id", cfg.ID, "scope_id", scopeID, "alert_type", alertType, "error", err)
	}

	if err := m.cache.Set(ctx, key, "1", m.alertCooldown); err != nil {
		m.logger.Warn("alert cooldown write failed",
			"quota_id", cfg.ID, "scope_id", scopeID, "error", err)
	}

	m.metrics.RecordAlert(cfg.ID, alertType)
}

func alertMessage(cfg *Config, scopeID string, usage *Usage, alertType AlertType) string {
	switch alertType {
	case AlertWarning:
		return fmt.Sprintf("quota %q for %s at %.0f%% of limit %d",
			cfg.ID, scopeID, usage.UsagePercentage, usage.Limit)
	case AlertCritical:
		return fmt.Sprintf("quota %q for %s critically at %.0f%% of limit %d",
			cfg.ID, scopeID, usage.UsagePercentage, usage.Limit)
	case AlertOverage:
		return fmt.Sprintf("quota %q for %s over limit %d, overage billing active",
			cfg.ID, scopeID, usage.Limit)
	default:
		return fmt.Sprintf("quota %q for %s exceeded limit %d",
			cfg.ID, scopeID, usage.Limit)
	}
}

// statusFor classifies a usage percentage against the thresholds.
func statusFor(pct float64, cfg *Config) UsageStatus {
	switch {
	case pct >= 100:
		return StatusExceeded
	case pct >= cfg.CriticalThreshold*100:
		return StatusCritical
	case pct >= cfg.WarningThreshold*100:
		return StatusWarning
	default:
		return StatusNormal
	}
}

func usageKey(quotaID, scopeID string, start time.Time) string {
	return fmt.Sprintf("quota:usage:%s:%s:%d", quotaID, scopeID, start.Unix())
}

func alertCooldownKey(quotaID, scopeID string, alertType AlertType) string {
	return fmt.Sprintf("quota:alert:%s:%s:%s", quotaID, scopeID, alertType)
}

func maxInt64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
