// Package cache provides the shared key-value cache used by the
// enforcement core for fixed-window counters, bucket snapshots, quota
// window counters, and alert-cooldown markers.
//
// Two implementations are provided: an in-process memory cache (the
// default) and a Redis-backed cache for cross-instance visibility.
// Both are best-effort: the enforcement core fails open when a cache
// call errors, so implementations should return errors rather than
// block.
package cache

import (
	"context"
	"time"
)

// Cache is the shared cache contract.
//
// A zero TTL means the entry does not expire. Implementations must be
// safe for concurrent use. Writes are last-write-wins per key; no
// transactional guarantees are provided.
type Cache interface {
	// Get returns the value for key and whether it was found.
	Get(ctx context.Context, key string) (string, bool, error)

	// Set stores value under key with the given TTL.
	Set(ctx context.Context, key string, value string, ttl time.Duration) error

	// IncrBy atomically adds n to the integer counter at key and returns
	// the new value. If the key is created by this call, the TTL is
	// applied; an existing key keeps its remaining TTL.
	IncrBy(ctx context.Context, key string, n int64, ttl time.Duration) (int64, error)

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases resources held by the cache.
	Close() error
}
