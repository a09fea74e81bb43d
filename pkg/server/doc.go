// Package server provides the HTTP decision API for Saturn.
//
// # Overview
//
// The server exposes the enforcement core to out-of-process callers.
// Edge proxies and application services POST a check describing the
// request they are about to serve and receive an allow, throttle, or
// block decision with the metadata needed to act on it (retry-after,
// advisory delay, overage cost, rate limit headers).
//
// # Endpoints
//
//   - POST /v1/ratelimit/check  - evaluate one rate limit
//   - POST /v1/quota/check      - evaluate one quota
//   - POST /v1/quota/record     - record consumed usage after the fact
//   - GET  /v1/quota/usage      - current usage snapshot for a scope
//   - POST /v1/enforce/check    - combined rate limit and quota verdict
//   - POST /v1/enforce/record   - post-hoc usage recording via the gate
//   - GET  /healthz             - liveness probe
//   - GET  /readyz              - readiness probe (cache and ledger)
//   - GET  /metrics             - Prometheus exposition (when enabled)
//
// Check endpoints never consume quota; callers record actual usage
// with the record endpoints once the work has been served. Caller
// input errors (non-positive amount, empty scope id) return 400;
// internal failures return 500 while the enforcement core itself
// fails open.
//
// # Lifecycle
//
// Start blocks until the context is cancelled, SIGINT/SIGTERM is
// received, or Shutdown is called, then drains in-flight requests
// within the configured shutdown timeout.
package server
