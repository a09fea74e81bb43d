// Package storage provides the durable usage ledger behind quota
// accounting.
//
// # Overview
//
// The storage package defines the Store interface for recording usage
// events and answering windowed sums, and provides two implementations:
//
//   - Memory: fast in-memory storage (default, no persistence)
//   - SQLite: lightweight file-based persistence with WAL checkpoints
//
// # Usage
//
//	store := storage.NewMemory()
//
//	// Record usage
//	err := store.Record(ctx, &storage.Event{
//	    ID:      uuid.NewString(),
//	    QuotaID: "api-calls-daily",
//	    Metric:  "api_calls",
//	    ScopeID: "org-123",
//	    Amount:  1,
//	})
//
//	// Sum usage for a window
//	total, err := store.Sum(ctx, "api-calls-daily", "org-123", start, end)
//
// # Thread Safety
//
// All stores are thread-safe and support concurrent access from
// multiple goroutines. Locking is handled internally by each store.
package storage
