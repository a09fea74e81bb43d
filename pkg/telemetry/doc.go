// Package telemetry groups the observability layers for Saturn.
//
// # Overview
//
// Saturn sits on the request path of every caller it protects, so its
// own observability stays deliberately small: structured logs, a
// Prometheus registry, and liveness/readiness probes.
//
// # Components
//
//   - logging: structured slog logging with scope id redaction
//   - metrics: Prometheus collectors for the HTTP decision API
//   - health: liveness and readiness probes
//
// The enforcement packages register their own domain collectors
// (check decisions, fail-opens, quota alerts) on the same registry.
package telemetry
