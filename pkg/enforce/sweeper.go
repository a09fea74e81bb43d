package enforce

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"kepler-hq/saturn/pkg/enforce/ratelimit"
	"kepler-hq/saturn/pkg/enforce/storage"
)

// Sweeper runs periodic maintenance: evicting idle per-key limiter
// state, persisting bucket snapshots to the shared cache, and pruning
// old usage events from the ledger.
type Sweeper struct {
	limiter *ratelimit.Limiter
	store   storage.Store
	config  SweeperConfig

	cron    *cron.Cron
	mu      sync.Mutex
	logger  *slog.Logger
	running bool
}

// SweeperConfig configures sweep cadence and retention.
type SweeperConfig struct {
	// Schedule is a cron expression or descriptor.
	// Default: "@every 5m"
	Schedule string

	// MaxIdle is how long a (limit, scope) key may sit unused before
	// its in-memory state is evicted. Default: 30 minutes.
	MaxIdle time.Duration

	// Retention is how long usage events are kept in the ledger.
	// Zero keeps them forever.
	Retention time.Duration
}

// NewSweeper creates a sweeper. The store is optional; without one
// only limiter maintenance runs.
func NewSweeper(limiter *ratelimit.Limiter, store storage.Store, cfg SweeperConfig) *Sweeper {
	if cfg.Schedule == "" {
		cfg.Schedule = "@every 5m"
	}
	if cfg.MaxIdle == 0 {
		cfg.MaxIdle = 30 * time.Minute
	}

	return &Sweeper{
		limiter: limiter,
		store:   store,
		config:  cfg,
		cron:    cron.New(),
		logger:  slog.Default().With("component", "enforce.sweeper"),
	}
}

// Start begins scheduled sweeping. The sweeper stops when ctx is
// cancelled or Stop is called.
func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := cron.ParseStandard(s.config.Schedule); err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", s.config.Schedule, err)
	}

	_, err := s.cron.AddFunc(s.config.Schedule, func() {
		s.Sweep(ctx)
	})
	if err != nil {
		return fmt.Errorf("failed to schedule sweep: %w", err)
	}

	s.cron.Start()
	s.running = true

	s.logger.Info("sweeper started",
		"schedule", s.config.Schedule,
		"max_idle", s.config.MaxIdle,
		"retention", s.config.Retention,
	)

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	return nil
}

// Sweep executes one maintenance cycle.
func (s *Sweeper) Sweep(ctx context.Context) {
	if s.limiter != nil {
		evicted := s.limiter.EvictStale(s.config.MaxIdle)
		s.limiter.PersistAll(ctx)
		if evicted > 0 {
			s.logger.Info("evicted stale limiter state", "evicted", evicted)
		}
	}

	if s.store != nil && s.config.Retention > 0 {
		deleted, err := s.store.Cleanup(ctx, time.Now().Add(-s.config.Retention))
		if err != nil {
			s.logger.Error("usage ledger cleanup failed", "error", err)
			return
		}
		if deleted > 0 {
			s.logger.Info("pruned usage events", "deleted", deleted)
		}
	}
}

// Stop stops the scheduler and waits for a running sweep to complete.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil && s.running {
		ctx := s.cron.Stop()
		<-ctx.Done()
		s.running = false
		s.logger.Info("sweeper stopped")
	}
}

// IsRunning reports whether the scheduler is active.
func (s *Sweeper) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}
