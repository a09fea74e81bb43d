// Package health provides liveness and readiness probes for the
// decision API server.
//
// # Overview
//
// Liveness answers whether the process is running; readiness probes
// the backing components (cache, usage ledger) and reports degraded
// when any fails. Because enforcement fails open, a degraded instance
// still answers decisions; the 503 from the readiness endpoint is a
// signal for orchestrators, not a hard outage.
//
// # Usage
//
//	checker := health.New(0)
//	checker.Register("cache", func(ctx context.Context) error {
//		_, _, err := sharedCache.Get(ctx, "health:probe")
//		return err
//	})
//
//	mux.Handle("GET /healthz", checker.LivenessHandler())
//	mux.Handle("GET /readyz", checker.ReadinessHandler())
package health
