package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func TestSQLite_RequiresPath(t *testing.T) {
	if _, err := NewSQLiteWithConfig(SQLiteConfig{}); err == nil {
		t.Error("Expected empty db path to be rejected")
	}
}

func TestSQLite_SurvivesReopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "usage.db")
	base := time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC)
	ctx := context.Background()

	store, err := NewSQLite(dbPath)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	if err := store.Record(ctx, testEvent("q1", "org-1", 42, base)); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened, err := NewSQLite(dbPath)
	if err != nil {
		t.Fatalf("Failed to reopen store: %v", err)
	}
	defer reopened.Close()

	total, err := reopened.Sum(ctx, "q1", "org-1", base, base.Add(time.Hour))
	if err != nil {
		t.Fatalf("Sum failed: %v", err)
	}
	if total != 42 {
		t.Errorf("Expected persisted sum 42, got %d", total)
	}
}

func TestSQLite_DuplicateEventID(t *testing.T) {
	store, err := NewSQLite(filepath.Join(t.TempDir(), "usage.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	defer store.Close()
	ctx := context.Background()

	ev := testEvent("q1", "org-1", 1, time.Now().UTC())
	if err := store.Record(ctx, ev); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	// The primary key rejects a replayed event id.
	if err := store.Record(ctx, ev); err == nil {
		t.Error("Expected duplicate event id to be rejected")
	}
}

func TestSQLite_CloseIdempotent(t *testing.T) {
	store, err := NewSQLite(filepath.Join(t.TempDir(), "usage.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	if err := store.Close(); err != nil {
		t.Fatalf("First close failed: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Second close failed: %v", err)
	}
}
