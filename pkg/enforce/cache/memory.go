package cache

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"
)

// Memory is an in-process Cache backed by a TTL map.
//
// Expired entries are lazily dropped on access and swept periodically
// by a background janitor. When the entry count reaches MaxEntries the
// oldest entry is evicted to make room.
type Memory struct {
	entries map[string]*memoryEntry
	mu      sync.RWMutex

	maxEntries    int
	sweepInterval time.Duration
	done          chan struct{}
	closeOnce     sync.Once

	now func() time.Time
}

type memoryEntry struct {
	value     string
	expiresAt time.Time // zero means no expiry
	updatedAt time.Time
}

// MemoryConfig configures the memory cache.
type MemoryConfig struct {
	// MaxEntries is the maximum number of entries before eviction.
	// Default: 100,000.
	MaxEntries int

	// SweepInterval is how often the janitor removes expired entries.
	// Default: 1 minute.
	SweepInterval time.Duration
}

// NewMemory creates a memory cache with default settings.
func NewMemory() *Memory {
	return NewMemoryWithConfig(MemoryConfig{})
}

// NewMemoryWithConfig creates a memory cache with custom configuration.
func NewMemoryWithConfig(cfg MemoryConfig) *Memory {
	if cfg.MaxEntries == 0 {
		cfg.MaxEntries = 100000
	}
	if cfg.SweepInterval == 0 {
		cfg.SweepInterval = time.Minute
	}

	m := &Memory{
		entries:       make(map[string]*memoryEntry),
		maxEntries:    cfg.MaxEntries,
		sweepInterval: cfg.SweepInterval,
		done:          make(chan struct{}),
		now:           time.Now,
	}

	go m.sweepLoop()

	return m
}

// Get returns the value for key and whether it was found.
func (m *Memory) Get(ctx context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	entry, ok := m.entries[key]
	m.mu.RUnlock()

	if !ok {
		return "", false, nil
	}

	if m.expired(entry) {
		m.mu.Lock()
		// Re-check under the write lock; another goroutine may have
		// replaced the entry since the read.
		if cur, ok := m.entries[key]; ok && m.expired(cur) {
			delete(m.entries, key)
		}
		m.mu.Unlock()
		return "", false, nil
	}

	return entry.value, true, nil
}

// Set stores value under key with the given TTL.
func (m *Memory) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	if key == "" {
		return fmt.Errorf("key cannot be empty")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.entries[key]; !exists && len(m.entries) >= m.maxEntries {
		m.evictOldestLocked()
	}

	now := m.now()
	entry := &memoryEntry{value: value, updatedAt: now}
	if ttl > 0 {
		entry.expiresAt = now.Add(ttl)
	}
	m.entries[key] = entry

	return nil
}

// IncrBy atomically adds n to the counter at key.
func (m *Memory) IncrBy(ctx context.Context, key string, n int64, ttl time.Duration) (int64, error) {
	if key == "" {
		return 0, fmt.Errorf("key cannot be empty")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()

	entry, ok := m.entries[key]
	if ok && m.expired(entry) {
		delete(m.entries, key)
		ok = false
	}

	if !ok {
		if len(m.entries) >= m.maxEntries {
			m.evictOldestLocked()
		}
		entry = &memoryEntry{value: strconv.FormatInt(n, 10), updatedAt: now}
		if ttl > 0 {
			entry.expiresAt = now.Add(ttl)
		}
		m.entries[key] = entry
		return n, nil
	}

	current, err := strconv.ParseInt(entry.value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("value at %q is not an integer: %w", key, err)
	}

	current += n
	entry.value = strconv.FormatInt(current, 10)
	entry.updatedAt = now

	return current, nil
}

// Delete removes key.
func (m *Memory) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.entries, key)
	return nil
}

// Close stops the janitor. The cache must not be used after Close.
func (m *Memory) Close() error {
	m.closeOnce.Do(func() {
		close(m.done)
	})
	return nil
}

// Len returns the current number of entries, expired or not.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

func (m *Memory) expired(e *memoryEntry) bool {
	return !e.expiresAt.IsZero() && !m.now().Before(e.expiresAt)
}

// evictOldestLocked evicts the least recently written entry.
// Caller must hold the write lock.
func (m *Memory) evictOldestLocked() {
	var (
		oldestKey  string
		oldestTime time.Time
		found      bool
	)

	for key, entry := range m.entries {
		if !found || entry.updatedAt.Before(oldestTime) {
			oldestKey = key
			oldestTime = entry.updatedAt
			found = true
		}
	}

	if found {
		delete(m.entries, oldestKey)
	}
}

func (m *Memory) sweepLoop() {
	ticker := time.NewTicker(m.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.mu.Lock()
			for key, entry := range m.entries {
				if m.expired(entry) {
					delete(m.entries, key)
				}
			}
			m.mu.Unlock()
		case <-m.done:
			return
		}
	}
}
