// Package metrics provides Prometheus collectors for the decision API
// HTTP surface.
//
// # Overview
//
// The enforcement packages (ratelimit, quota) register their own
// domain collectors. This package only covers the transport layer:
// request counts, latencies, and in-flight gauge for the HTTP server.
//
// All collectors take an explicit prometheus.Registerer so tests can
// use a private registry.
//
// # Usage
//
//	registry := prometheus.NewRegistry()
//	httpMetrics := metrics.NewHTTP(registry)
//
//	mux.Handle("POST /v1/enforce/check",
//		httpMetrics.Instrument("/v1/enforce/check", handler))
//
// The route label is the registered pattern rather than the request
// URL, so per-scope identifiers never become label values.
package metrics
