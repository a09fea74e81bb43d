package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"kepler-hq/saturn/pkg/cli"
	"kepler-hq/saturn/pkg/config"
	"kepler-hq/saturn/pkg/enforce"
	"kepler-hq/saturn/pkg/enforce/cache"
	"kepler-hq/saturn/pkg/enforce/quota"
	"kepler-hq/saturn/pkg/enforce/ratelimit"
	"kepler-hq/saturn/pkg/enforce/storage"
	"kepler-hq/saturn/pkg/server"
	"kepler-hq/saturn/pkg/telemetry/health"
	"kepler-hq/saturn/pkg/telemetry/logging"
)

var runFlags struct {
	listenAddress string
	logLevel      string
	dryRun        bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the Saturn decision API server",
	Long: `Start the Saturn decision API server with the specified configuration.

The server listens on the configured address and answers rate limit and
quota decisions for the services in front of it. Check endpoints never
consume quota; callers report consumed usage through the record
endpoints after handling the request.

Examples:
  # Start with default config
  kepler run

  # Start with custom config
  kepler run --config /etc/saturn/config.yaml

  # Override listen address
  kepler run --listen 0.0.0.0:8600

  # Validate config without starting server
  kepler run --dry-run`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override listen address")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config without starting server")
}

func runServer(cmd *cobra.Command, args []string) error {
	// Load configuration
	if err := config.Initialize(cfgFile); err != nil {
		return cli.NewConfigError("", fmt.Sprintf("failed to load config: %v", err))
	}
	cfg := config.GetConfig()

	// Apply flag overrides
	if runFlags.listenAddress != "" {
		cfg.Server.ListenAddress = runFlags.listenAddress
	}
	if runFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = runFlags.logLevel
	}

	// Initialize logging based on config
	logger, err := logging.New(logging.Config{
		Level:  cfg.Telemetry.Logging.Level,
		Format: cfg.Telemetry.Logging.Format,
	})
	if err != nil {
		return cli.NewConfigError("telemetry.logging", err.Error())
	}
	slog.SetDefault(logger)

	if runFlags.dryRun {
		fmt.Println("✓ Configuration valid")
		return nil
	}

	// Print startup banner
	printBanner(cfg)

	// Shared cache (counters, bucket snapshots, alert cooldowns)
	sharedCache, err := newCache(cfg)
	if err != nil {
		return cli.NewCommandError("run", err)
	}
	defer sharedCache.Close()
	fmt.Printf("✓ Cache initialized (%s)\n", cfg.Cache.Backend)

	// Durable usage ledger
	store, err := newStore(cfg)
	if err != nil {
		return cli.NewCommandError("run", err)
	}
	defer store.Close()
	fmt.Printf("✓ Usage ledger initialized (%s)\n", cfg.Storage.Backend)

	// Metrics registry shared by the limiter, quota manager, and the
	// /metrics endpoint
	registry := prometheus.NewRegistry()

	limiter := ratelimit.NewLimiter(ratelimit.LimiterOptions{
		Cache: sharedCache,
		// Bucket state survives restarts only when the cache does.
		PersistState: cfg.Cache.Backend == "redis",
		Metrics:      ratelimit.NewMetrics(registry),
		Logger:       logger.With("component", "ratelimit"),
	})

	catalog := quota.NewStaticCatalog(cfg.Tiers.Limits)
	for scopeID, tier := range cfg.Tiers.Assignments {
		catalog.Assign(scopeID, tier)
	}

	quotas := quota.NewManager(quota.ManagerOptions{
		Store:          store,
		Cache:          sharedCache,
		Tiers:          catalog,
		Metrics:        quota.NewMetrics(registry),
		Logger:         logger.With("component", "quota"),
		OverageEnabled: cfg.Billing.OverageEnabled,
		AlertCooldown:  cfg.Alerts.Cooldown,
	})

	if err := registerPolicies(cfg, limiter, quotas); err != nil {
		return cli.NewConfigError("", err.Error())
	}
	fmt.Printf("✓ Policies registered (%d rate limits, %d quotas)\n",
		len(cfg.RateLimits), len(cfg.Quotas))

	gate := enforce.NewGate(enforce.GateOptions{
		Limiter: limiter,
		Quotas:  quotas,
		Logger:  logger.With("component", "enforce"),
	})

	// Root context: cancelled on SIGINT or SIGTERM, which drives the
	// sweeper, the config watcher, and server shutdown.
	ctx, cancel := context.WithCancel(cli.SetupSignalHandler())
	defer cancel()

	// Background sweep: evicts idle counter state and prunes the ledger
	sweeper := enforce.NewSweeper(limiter, store, enforce.SweeperConfig{
		Schedule:  cfg.Sweep.Schedule,
		MaxIdle:   cfg.Sweep.MaxIdle,
		Retention: cfg.Sweep.Retention,
	})
	if err := sweeper.Start(ctx); err != nil {
		return cli.NewConfigError("sweep.schedule", err.Error())
	}
	defer sweeper.Stop()

	// Hot reload: re-register policies when the config file changes
	watcher, err := config.NewFileWatcher(cfgFile, 0, logger)
	if err != nil {
		slog.Warn("config watcher unavailable, hot reload disabled", "error", err)
	} else {
		defer watcher.Stop()
		previous := cfg
		go func() {
			watchErr := watcher.Watch(ctx, func(next *config.Config) {
				config.SetConfig(next)
				reconcilePolicies(previous, next, limiter, quotas, catalog)
				previous = next
			})
			if watchErr != nil {
				slog.Warn("config watcher stopped", "error", watchErr)
			}
		}()
	}

	checker := health.New(0)
	checker.Register("cache", func(ctx context.Context) error {
		_, _, err := sharedCache.Get(ctx, "health:probe")
		return err
	})
	checker.Register("storage", func(ctx context.Context) error {
		now := time.Now()
		_, err := store.Sum(ctx, "health:probe", "health:probe", now, now)
		return err
	})

	srv, err := server.NewServer(server.Options{
		Config:   &cfg.Server,
		Metrics:  &cfg.Telemetry.Metrics,
		Gate:     gate,
		Limiter:  limiter,
		Quotas:   quotas,
		Registry: registry,
		Health:   checker,
		Logger:   logger,
	})
	if err != nil {
		return cli.NewCommandError("run", err)
	}

	fmt.Println()
	fmt.Printf("✓ Server listening on %s\n", cfg.Server.ListenAddress)
	fmt.Printf("✓ Health endpoint: http://%s/healthz\n", cfg.Server.ListenAddress)
	if cfg.Telemetry.Metrics.MetricsEnabled() {
		fmt.Printf("✓ Metrics endpoint: http://%s%s\n", cfg.Server.ListenAddress, cfg.Telemetry.Metrics.Path)
	}
	fmt.Println("\nPress Ctrl+C to stop")

	// Start blocks until a shutdown signal, context cancellation, or a
	// listener error
	if err := srv.Start(ctx); err != nil {
		return cli.NewCommandError("run", err)
	}

	fmt.Println("✓ Server stopped")
	return nil
}

func newCache(cfg *config.Config) (cache.Cache, error) {
	switch cfg.Cache.Backend {
	case "memory":
		return cache.NewMemoryWithConfig(cache.MemoryConfig{
			MaxEntries:    cfg.Cache.Memory.MaxEntries,
			SweepInterval: cfg.Cache.Memory.SweepInterval,
		}), nil
	case "redis":
		return cache.NewRedis(cache.RedisConfig{
			Addr:        cfg.Cache.Redis.Addr,
			Password:    cfg.Cache.Redis.Password,
			DB:          cfg.Cache.Redis.DB,
			DialTimeout: cfg.Cache.Redis.DialTimeout,
			OpTimeout:   cfg.Cache.Redis.OpTimeout,
		})
	default:
		return nil, fmt.Errorf("unsupported cache backend: %s", cfg.Cache.Backend)
	}
}

func newStore(cfg *config.Config) (storage.Store, error) {
	switch cfg.Storage.Backend {
	case "memory":
		return storage.NewMemory(), nil
	case "sqlite":
		return storage.NewSQLiteWithConfig(storage.SQLiteConfig{
			DBPath:             cfg.Storage.SQLite.Path,
			CheckpointInterval: cfg.Storage.SQLite.CheckpointInterval,
			BusyTimeout:        cfg.Storage.SQLite.BusyTimeout,
		})
	default:
		return nil, fmt.Errorf("unsupported storage backend: %s", cfg.Storage.Backend)
	}
}

func registerPolicies(cfg *config.Config, limiter *ratelimit.Limiter, quotas *quota.Manager) error {
	for id, lc := range cfg.RateLimits {
		if err := limiter.Register(lc.ToLimit(id)); err != nil {
			return fmt.Errorf("rate limit %q: %w", id, err)
		}
	}
	for id, qc := range cfg.Quotas {
		if err := quotas.Register(qc.ToQuota(id)); err != nil {
			return fmt.Errorf("quota %q: %w", id, err)
		}
	}
	return nil
}

// reconcilePolicies applies a reloaded configuration: declared policies
// are re-registered, policies dropped from the file are unregistered,
// and the tier catalog is replaced wholesale. Registration errors are
// logged and skipped; the validated previous policy stays in effect.
func reconcilePolicies(prev, next *config.Config, limiter *ratelimit.Limiter, quotas *quota.Manager, catalog *quota.StaticCatalog) {
	for id, lc := range next.RateLimits {
		if err := limiter.Register(lc.ToLimit(id)); err != nil {
			slog.Warn("rate limit re-registration failed", "limit_id", id, "error", err)
		}
	}
	for id := range prev.RateLimits {
		if _, ok := next.RateLimits[id]; !ok {
			limiter.Unregister(id)
			slog.Info("rate limit removed", "limit_id", id)
		}
	}

	for id, qc := range next.Quotas {
		if err := quotas.Register(qc.ToQuota(id)); err != nil {
			slog.Warn("quota re-registration failed", "quota_id", id, "error", err)
		}
	}
	for id := range prev.Quotas {
		if _, ok := next.Quotas[id]; !ok {
			quotas.Unregister(id)
			slog.Info("quota removed", "quota_id", id)
		}
	}

	catalog.Replace(next.Tiers.Limits, next.Tiers.Assignments)

	slog.Info("configuration reloaded",
		"rate_limits", len(next.RateLimits),
		"quotas", len(next.Quotas),
	)
}

func printBanner(cfg *config.Config) {
	fmt.Printf("Kepler Saturn v%s\n", Version)
	fmt.Printf("Loading configuration from: %s\n", cfgFile)
	fmt.Println("✓ Configuration loaded")

	slog.Debug("backends selected",
		"cache", cfg.Cache.Backend,
		"storage", cfg.Storage.Backend,
	)
	if cfg.Billing.OverageEnabled {
		slog.Debug("overage billing enabled")
	}
}
