package quota

import "sync"

// TierCatalog resolves per-scope limit overrides. It lets an
// organization's subscription tier replace a quota's base limit
// without re-registering the quota.
type TierCatalog interface {
	// EffectiveLimit returns the limit override for (scopeID, metric),
	// or found=false when the base limit applies.
	EffectiveLimit(scopeID, metric string) (limit int64, found bool)
}

// StaticCatalog is a TierCatalog backed by declared per-tier metric
// limits and explicit scope-to-tier assignments. It serves deployments
// without an external subscription service.
type StaticCatalog struct {
	mu sync.RWMutex

	// tierLimits maps tier name to metric to limit.
	tierLimits map[string]map[string]int64

	// assignments maps scope id to tier name.
	assignments map[string]string
}

// NewStaticCatalog creates a catalog from per-tier metric limits.
func NewStaticCatalog(tierLimits map[string]map[string]int64) *StaticCatalog {
	if tierLimits == nil {
		tierLimits = make(map[string]map[string]int64)
	}
	return &StaticCatalog{
		tierLimits:  tierLimits,
		assignments: make(map[string]string),
	}
}

// Assign maps a scope id to a tier. An empty tier removes the
// assignment.
func (c *StaticCatalog) Assign(scopeID, tier string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if tier == "" {
		delete(c.assignments, scopeID)
		return
	}
	c.assignments[scopeID] = tier
}

// Replace swaps the tier limits and assignments wholesale. Used on
// configuration reload. Nil maps clear the catalog.
func (c *StaticCatalog) Replace(tierLimits map[string]map[string]int64, assignments map[string]string) {
	if tierLimits == nil {
		tierLimits = make(map[string]map[string]int64)
	}
	if assignments == nil {
		assignments = make(map[string]string)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.tierLimits = tierLimits
	c.assignments = assignments
}

// EffectiveLimit implements TierCatalog.
func (c *StaticCatalog) EffectiveLimit(scopeID, metric string) (int64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	tier, ok := c.assignments[scopeID]
	if !ok {
		return 0, false
	}
	limits, ok := c.tierLimits[tier]
	if !ok {
		return 0, false
	}
	limit, ok := limits[metric]
	return limit, ok
}
