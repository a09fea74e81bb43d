// Package enforce composes rate limiting and quota enforcement into a
// single admission decision.
//
// # Overview
//
// The Gate is the composition root: given a resolved request identity
// (scope id, tier, path), it runs the rate limiter first and, only if
// the request survives, the quota manager, then applies the most
// restrictive verdict. Identity resolution stays with the caller; the
// HTTP middleware takes a Resolver so authentication schemes remain
// pluggable.
//
//	gate := enforce.NewGate(enforce.GateOptions{
//	    Limiter: limiter,
//	    Quotas:  quotas,
//	})
//
//	verdict, err := gate.Check(ctx, enforce.Request{
//	    LimitID: "api-requests",
//	    QuotaID: "api-calls-daily",
//	    ScopeID: "org-123",
//	    Tier:    "pro",
//	    Path:    "/v1/invoices",
//	})
//
// Usage is charged after the request succeeds, never during the check:
//
//	if verdict.Allowed {
//	    // handle the request, then:
//	    _ = gate.Record(ctx, req)
//	}
//
// The Sweeper keeps long-running processes bounded: on a cron schedule
// it evicts idle per-key limiter state, persists bucket snapshots to
// the shared cache, and prunes old usage events from the ledger.
package enforce
