package cache

import (
	"context"
	"testing"
	"time"
)

func newTestMemory() *Memory {
	return NewMemoryWithConfig(MemoryConfig{
		MaxEntries:    100,
		SweepInterval: time.Hour, // keep the janitor out of the way
	})
}

func TestMemory_SetGet(t *testing.T) {
	m := newTestMemory()
	defer m.Close()
	ctx := context.Background()

	if err := m.Set(ctx, "k", "v", 0); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	val, found, err := m.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !found || val != "v" {
		t.Errorf("Expected (v, true), got (%q, %v)", val, found)
	}
}

func TestMemory_GetMissing(t *testing.T) {
	m := newTestMemory()
	defer m.Close()

	_, found, err := m.Get(context.Background(), "nope")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if found {
		t.Error("Expected miss for unknown key")
	}
}

func TestMemory_Expiry(t *testing.T) {
	m := newTestMemory()
	defer m.Close()
	ctx := context.Background()

	now := time.Now()
	m.now = func() time.Time { return now }

	if err := m.Set(ctx, "k", "v", time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	// Move the clock past the TTL.
	now = now.Add(2 * time.Minute)

	_, found, err := m.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if found {
		t.Error("Expected expired entry to be a miss")
	}
}

func TestMemory_IncrBy(t *testing.T) {
	m := newTestMemory()
	defer m.Close()
	ctx := context.Background()

	v, err := m.IncrBy(ctx, "counter", 3, time.Minute)
	if err != nil {
		t.Fatalf("IncrBy failed: %v", err)
	}
	if v != 3 {
		t.Errorf("Expected 3, got %d", v)
	}

	v, err = m.IncrBy(ctx, "counter", 2, time.Minute)
	if err != nil {
		t.Fatalf("IncrBy failed: %v", err)
	}
	if v != 5 {
		t.Errorf("Expected 5, got %d", v)
	}
}

func TestMemory_IncrByExpiredCounter(t *testing.T) {
	m := newTestMemory()
	defer m.Close()
	ctx := context.Background()

	now := time.Now()
	m.now = func() time.Time { return now }

	if _, err := m.IncrBy(ctx, "counter", 10, time.Minute); err != nil {
		t.Fatalf("IncrBy failed: %v", err)
	}

	now = now.Add(2 * time.Minute)

	// The expired counter restarts from zero.
	v, err := m.IncrBy(ctx, "counter", 1, time.Minute)
	if err != nil {
		t.Fatalf("IncrBy failed: %v", err)
	}
	if v != 1 {
		t.Errorf("Expected counter to restart at 1, got %d", v)
	}
}

func TestMemory_IncrByNonInteger(t *testing.T) {
	m := newTestMemory()
	defer m.Close()
	ctx := context.Background()

	if err := m.Set(ctx, "k", "not-a-number", 0); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	if _, err := m.IncrBy(ctx, "k", 1, 0); err == nil {
		t.Error("Expected error incrementing a non-integer value")
	}
}

func TestMemory_Delete(t *testing.T) {
	m := newTestMemory()
	defer m.Close()
	ctx := context.Background()

	if err := m.Set(ctx, "k", "v", 0); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := m.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	_, found, _ := m.Get(ctx, "k")
	if found {
		t.Error("Expected deleted key to be a miss")
	}

	// Deleting again is a no-op, not an error.
	if err := m.Delete(ctx, "k"); err != nil {
		t.Errorf("Delete of missing key failed: %v", err)
	}
}

func TestMemory_EvictionAtCapacity(t *testing.T) {
	m := NewMemoryWithConfig(MemoryConfig{MaxEntries: 2, SweepInterval: time.Hour})
	defer m.Close()
	ctx := context.Background()

	now := time.Now()
	m.now = func() time.Time { return now }

	m.Set(ctx, "a", "1", 0)
	now = now.Add(time.Second)
	m.Set(ctx, "b", "2", 0)
	now = now.Add(time.Second)
	m.Set(ctx, "c", "3", 0)

	if m.Len() != 2 {
		t.Fatalf("Expected 2 entries after eviction, got %d", m.Len())
	}

	// The oldest entry was evicted.
	_, found, _ := m.Get(ctx, "a")
	if found {
		t.Error("Expected oldest entry to be evicted")
	}
}
