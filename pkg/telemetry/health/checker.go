package health

import (
	"context"
	"sync"
	"time"
)

// CheckFunc probes one backing component. It returns nil when the
// component is healthy.
type CheckFunc func(ctx context.Context) error

// CheckResult is the outcome of a single component probe.
type CheckResult struct {
	// Status is "ok" or "unhealthy".
	Status string `json:"status"`

	// Message carries the probe error for unhealthy components.
	Message string `json:"message,omitempty"`

	// Duration is how long the probe took.
	Duration time.Duration `json:"duration_ms,omitempty"`
}

// Status is the aggregated health report.
type Status struct {
	// Overall is "ok", "ready", or "degraded".
	Overall string `json:"status"`

	// Checks holds per-component results. Empty for liveness.
	Checks map[string]CheckResult `json:"checks,omitempty"`

	// Timestamp is when the report was produced.
	Timestamp time.Time `json:"timestamp"`
}

// Checker runs registered component probes. The decision API stays up
// when a backend degrades (enforcement fails open), so readiness
// reports "degraded" rather than removing the instance outright;
// operators decide what a 503 means for their deployment.
type Checker struct {
	mu     sync.RWMutex
	checks map[string]CheckFunc

	probeTimeout time.Duration
}

// DefaultProbeTimeout bounds a single component probe.
const DefaultProbeTimeout = 5 * time.Second

// New creates a checker. A zero timeout selects DefaultProbeTimeout.
func New(probeTimeout time.Duration) *Checker {
	if probeTimeout == 0 {
		probeTimeout = DefaultProbeTimeout
	}
	return &Checker{
		checks:       make(map[string]CheckFunc),
		probeTimeout: probeTimeout,
	}
}

// Register adds or replaces the probe for a named component.
func (c *Checker) Register(name string, check CheckFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = check
}

// Liveness reports that the process is alive. It never probes
// components.
func (c *Checker) Liveness() Status {
	return Status{
		Overall:   "ok",
		Timestamp: time.Now(),
	}
}

// Readiness probes every registered component concurrently and
// aggregates the results. With no probes registered the instance is
// ready by definition.
func (c *Checker) Readiness(ctx context.Context) Status {
	c.mu.RLock()
	checks := make(map[string]CheckFunc, len(c.checks))
	for name, check := range c.checks {
		checks[name] = check
	}
	c.mu.RUnlock()

	results := make(map[string]CheckResult, len(checks))
	var resultMu sync.Mutex
	var wg sync.WaitGroup

	for name, check := range checks {
		wg.Add(1)
		go func(name string, check CheckFunc) {
			defer wg.Done()
			result := c.probe(ctx, check)

			resultMu.Lock()
			results[name] = result
			resultMu.Unlock()
		}(name, check)
	}
	wg.Wait()

	overall := "ready"
	for _, result := range results {
		if result.Status == "unhealthy" {
			overall = "degraded"
		}
	}

	return Status{
		Overall:   overall,
		Checks:    results,
		Timestamp: time.Now(),
	}
}

func (c *Checker) probe(ctx context.Context, check CheckFunc) CheckResult {
	probeCtx, cancel := context.WithTimeout(ctx, c.probeTimeout)
	defer cancel()

	started := time.Now()

	errChan := make(chan error, 1)
	go func() {
		errChan <- check(probeCtx)
	}()

	select {
	case err := <-errChan:
		duration := time.Since(started)
		if err != nil {
			return CheckResult{Status: "unhealthy", Message: err.Error(), Duration: duration}
		}
		return CheckResult{Status: "ok", Duration: duration}

	case <-probeCtx.Done():
		return CheckResult{Status: "unhealthy", Message: "probe timeout", Duration: time.Since(started)}
	}
}
