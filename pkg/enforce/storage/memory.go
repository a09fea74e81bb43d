package storage

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Memory implements Store using in-memory storage. This is the default
// store for tests and single-instance deployments that accept losing
// usage history on restart.
//
// Memory is thread-safe and supports concurrent access using sync.RWMutex.
type Memory struct {
	// events maps composite key (quotaID:scopeID) to that pair's
	// ordered event list.
	events map[string][]*Event

	mu sync.RWMutex
}

// NewMemory creates a new in-memory usage store.
func NewMemory() *Memory {
	return &Memory{
		events: make(map[string][]*Event),
	}
}

// Record appends one usage event.
func (m *Memory) Record(ctx context.Context, event *Event) error {
	if event == nil {
		return fmt.Errorf("event cannot be nil")
	}
	if event.QuotaID == "" {
		return fmt.Errorf("quota id cannot be empty")
	}
	if event.ScopeID == "" {
		return fmt.Errorf("scope id cannot be empty")
	}

	stored := *event
	if stored.RecordedAt.IsZero() {
		stored.RecordedAt = time.Now().UTC()
	}

	key := eventKey(event.QuotaID, event.ScopeID)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.events[key] = append(m.events[key], &stored)
	return nil
}

// Sum returns the total amount for (quotaID, scopeID) in [start, end).
func (m *Memory) Sum(ctx context.Context, quotaID, scopeID string, start, end time.Time) (int64, error) {
	if quotaID == "" {
		return 0, fmt.Errorf("quota id cannot be empty")
	}
	if scopeID == "" {
		return 0, fmt.Errorf("scope id cannot be empty")
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var total int64
	for _, ev := range m.events[eventKey(quotaID, scopeID)] {
		if ev.RecordedAt.Before(start) || !ev.RecordedAt.Before(end) {
			continue
		}
		total += ev.Amount
	}
	return total, nil
}

// Cleanup removes events recorded before the given time.
func (m *Memory) Cleanup(ctx context.Context, olderThan time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	deleted := 0
	for key, list := range m.events {
		kept := list[:0]
		for _, ev := range list {
			if ev.RecordedAt.Before(olderThan) {
				deleted++
				continue
			}
			kept = append(kept, ev)
		}
		if len(kept) == 0 {
			delete(m.events, key)
			continue
		}
		m.events[key] = kept
	}
	return deleted, nil
}

// Close releases resources. The memory store holds none.
func (m *Memory) Close() error {
	return nil
}

// Len returns the total number of stored events. Used in tests.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := 0
	for _, list := range m.events {
		n += len(list)
	}
	return n
}

func eventKey(quotaID, scopeID string) string {
	return quotaID + ":" + scopeID
}
