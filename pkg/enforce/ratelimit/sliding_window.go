package ratelimit

import (
	"sync"
	"time"
)

// SlidingWindowCounter tracks request timestamps over a trailing
// window. Timestamps older than the window are pruned on every
// operation, so memory is bounded by maxRequests entries per key.
//
// Admission is all-or-nothing: a multi-unit request is checked and
// reserved under the same lock as a single-unit request, so a burst of
// n can never be half admitted.
type SlidingWindowCounter struct {
	window      time.Duration
	maxRequests int
	stamps      []time.Time
	mu          sync.Mutex

	now func() time.Time
}

// NewSlidingWindowCounter creates a counter admitting at most
// maxRequests per trailing window.
func NewSlidingWindowCounter(window time.Duration, maxRequests int) *SlidingWindowCounter {
	return &SlidingWindowCounter{
		window:      window,
		maxRequests: maxRequests,
		stamps:      make([]time.Time, 0, maxRequests),
		now:         time.Now,
	}
}

// AddRequest admits a single request if capacity remains in the
// trailing window. Returns true if admitted.
func (sw *SlidingWindowCounter) AddRequest() bool {
	return sw.AddN(1)
}

// AddN admits n requests atomically: either all n are recorded or
// none are.
func (sw *SlidingWindowCounter) AddN(n int) bool {
	if n <= 0 {
		return false
	}

	sw.mu.Lock()
	defer sw.mu.Unlock()

	now := sw.now()
	sw.pruneLocked(now)

	if len(sw.stamps)+n > sw.maxRequests {
		return false
	}

	for i := 0; i < n; i++ {
		sw.stamps = append(sw.stamps, now)
	}
	return true
}

// Count prunes and returns the number of requests in the window.
func (sw *SlidingWindowCounter) Count() int {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	sw.pruneLocked(sw.now())
	return len(sw.stamps)
}

// TimeUntilReset returns how long until the oldest recorded request
// leaves the window, or 0 if the window is empty.
func (sw *SlidingWindowCounter) TimeUntilReset() time.Duration {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	now := sw.now()
	sw.pruneLocked(now)

	if len(sw.stamps) == 0 {
		return 0
	}

	remaining := sw.window - now.Sub(sw.stamps[0])
	if remaining < 0 {
		return 0
	}
	return remaining
}

// pruneLocked drops timestamps older than the trailing window.
// Timestamps are appended in order, so pruning is a prefix cut.
// Caller must hold the lock.
func (sw *SlidingWindowCounter) pruneLocked(now time.Time) {
	cutoff := now.Add(-sw.window)

	idx := 0
	for idx < len(sw.stamps) && !sw.stamps[idx].After(cutoff) {
		idx++
	}
	if idx > 0 {
		sw.stamps = append(sw.stamps[:0], sw.stamps[idx:]...)
	}
}
