package storage

import (
	"context"
	"time"
)

// Store is the durable usage-tracking collaborator. It is the
// authoritative record of quota consumption: the windowed cache in
// front of it answers most reads, and a cache miss falls back to a
// windowed Sum here.
//
// Implementations must be safe for concurrent use.
type Store interface {
	// Record appends one usage event. Events are additive; recording
	// the same logical event twice double-counts, so callers must
	// invoke it exactly once per completed request.
	Record(ctx context.Context, event *Event) error

	// Sum returns the total amount recorded for (quotaID, scopeID)
	// in the half-open interval [start, end).
	Sum(ctx context.Context, quotaID, scopeID string, start, end time.Time) (int64, error)

	// Cleanup removes events recorded before the given time.
	// Returns the number of events deleted.
	Cleanup(ctx context.Context, olderThan time.Time) (int, error)

	// Close releases any resources held by the store.
	// The store should not be used after calling Close.
	Close() error
}

// Event is a single usage increment against a quota.
type Event struct {
	// ID uniquely identifies the event.
	ID string

	// QuotaID names the quota configuration the usage counts against.
	QuotaID string

	// Metric is the usage-counter name from the quota configuration.
	Metric string

	// ScopeID identifies the consuming entity (organization, user,
	// API key) within the quota's scope.
	ScopeID string

	// Amount is the number of units consumed. Always positive.
	Amount int64

	// Metadata carries optional caller-supplied context, such as the
	// request path or a billing reference.
	Metadata map[string]string

	// RecordedAt is when the usage occurred.
	RecordedAt time.Time
}
