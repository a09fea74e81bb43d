package ratelimit

import (
	"sync"
	"time"
)

// TokenBucket implements the token bucket rate limiting algorithm.
//
// The bucket allows bursts up to its capacity while maintaining an
// average rate over time. Refill is lazy: tokens are credited from the
// elapsed time on each operation rather than by a background timer.
// Tokens are fractional so low refill rates accumulate correctly
// between closely spaced calls.
//
// # Thread Safety
//
// All operations serialize on a single mutex per bucket instance.
// Callers hitting the same scope key contend on that lock only.
type TokenBucket struct {
	capacity   float64
	refillRate float64 // tokens per second
	tokens     float64
	lastRefill time.Time
	mu         sync.Mutex

	now func() time.Time
}

// BucketSnapshot is the persistable state of a token bucket. It is
// written to the shared cache so a restarted process can resume a
// partially drained bucket instead of starting full.
type BucketSnapshot struct {
	Capacity   float64   `json:"capacity"`
	RefillRate float64   `json:"refill_rate"`
	Tokens     float64   `json:"tokens"`
	LastRefill time.Time `json:"last_refill"`
}

// NewTokenBucket creates a token bucket that starts full.
//
// Parameters:
//   - capacity: maximum tokens in the bucket (burst size)
//   - refillRate: tokens added per second (steady-state rate)
func NewTokenBucket(capacity, refillRate float64) *TokenBucket {
	tb := &TokenBucket{
		capacity:   capacity,
		refillRate: refillRate,
		tokens:     capacity,
		now:        time.Now,
	}
	tb.lastRefill = tb.now()
	return tb
}

// RestoreTokenBucket creates a bucket from a persisted snapshot. The
// elapsed time since the snapshot is credited on the first operation.
func RestoreTokenBucket(snap BucketSnapshot) *TokenBucket {
	tokens := snap.Tokens
	if tokens < 0 {
		tokens = 0
	}
	if tokens > snap.Capacity {
		tokens = snap.Capacity
	}
	return &TokenBucket{
		capacity:   snap.Capacity,
		refillRate: snap.RefillRate,
		tokens:     tokens,
		lastRefill: snap.LastRefill,
		now:        time.Now,
	}
}

// Consume attempts to take n tokens. It returns true if the tokens
// were available and taken; otherwise the bucket is left unchanged
// (no partial consumption).
func (tb *TokenBucket) Consume(n float64) bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refillLocked()

	if tb.tokens >= n {
		tb.tokens -= n
		return true
	}
	return false
}

// Peek refills and returns the current token count without consuming.
func (tb *TokenBucket) Peek() float64 {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refillLocked()
	return tb.tokens
}

// Capacity returns the bucket capacity.
func (tb *TokenBucket) Capacity() float64 {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	return tb.capacity
}

// TimeUntilAvailable returns how long until n tokens will be
// available, or 0 if they already are. A bucket with no refill rate
// never becomes available; a sentinel of -1 signals that.
func (tb *TokenBucket) TimeUntilAvailable(n float64) time.Duration {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refillLocked()

	if tb.tokens >= n {
		return 0
	}
	if tb.refillRate <= 0 {
		return -1
	}

	needed := n - tb.tokens
	return time.Duration(needed / tb.refillRate * float64(time.Second))
}

// Snapshot returns the persistable bucket state.
func (tb *TokenBucket) Snapshot() BucketSnapshot {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refillLocked()
	return BucketSnapshot{
		Capacity:   tb.capacity,
		RefillRate: tb.refillRate,
		Tokens:     tb.tokens,
		LastRefill: tb.lastRefill,
	}
}

// refillLocked credits tokens for the elapsed time. Caller must hold
// the lock.
func (tb *TokenBucket) refillLocked() {
	now := tb.now()
	elapsed := now.Sub(tb.lastRefill).Seconds()
	if elapsed <= 0 {
		return
	}

	tb.tokens += elapsed * tb.refillRate
	if tb.tokens > tb.capacity {
		tb.tokens = tb.capacity
	}
	tb.lastRefill = now
}
