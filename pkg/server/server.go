// Package server provides the HTTP decision API for Saturn.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"kepler-hq/saturn/pkg/config"
	"kepler-hq/saturn/pkg/enforce"
	"kepler-hq/saturn/pkg/enforce/quota"
	"kepler-hq/saturn/pkg/enforce/ratelimit"
	"kepler-hq/saturn/pkg/telemetry/health"
	"kepler-hq/saturn/pkg/telemetry/logging"
	"kepler-hq/saturn/pkg/telemetry/metrics"
)

// Server is the HTTP decision API server. It exposes the rate limiter
// and quota manager to out-of-process callers and serves health and
// metrics endpoints.
type Server struct {
	config       *config.ServerConfig
	metricsCfg   *config.MetricsConfig
	gate         *enforce.Gate
	limiter      *ratelimit.Limiter
	quotas       *quota.Manager
	registry     *prometheus.Registry
	httpMetrics  *metrics.HTTP
	checker      *health.Checker
	logger       *slog.Logger
	httpServer   *http.Server
	shutdownChan chan struct{}
	shutdownOnce sync.Once
	mu           sync.RWMutex
	isRunning    bool
}

// Options configures a Server.
type Options struct {
	// Config is the HTTP server configuration. Required.
	Config *config.ServerConfig

	// Metrics configures the Prometheus endpoint. Nil disables it.
	Metrics *config.MetricsConfig

	// Gate orchestrates combined rate limit and quota checks. Required.
	Gate *enforce.Gate

	// Limiter serves the standalone rate limit endpoints. Required.
	Limiter *ratelimit.Limiter

	// Quotas serves the standalone quota endpoints. Required.
	Quotas *quota.Manager

	// Registry is the Prometheus registry to expose. Nil disables
	// the metrics endpoint and HTTP instrumentation.
	Registry *prometheus.Registry

	// Health probes the backing components for the readiness
	// endpoint. Nil means readiness mirrors liveness.
	Health *health.Checker

	// Logger receives server logs. Defaults to slog.Default().
	Logger *slog.Logger
}

// NewServer creates a decision API server.
func NewServer(opts Options) (*Server, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("server config is required")
	}
	if opts.Gate == nil || opts.Limiter == nil || opts.Quotas == nil {
		return nil, fmt.Errorf("gate, limiter, and quota manager are required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var httpMetrics *metrics.HTTP
	if opts.Registry != nil {
		httpMetrics = metrics.NewHTTP(opts.Registry)
	}

	checker := opts.Health
	if checker == nil {
		checker = health.New(0)
	}

	return &Server{
		config:       opts.Config,
		metricsCfg:   opts.Metrics,
		gate:         opts.Gate,
		limiter:      opts.Limiter,
		quotas:       opts.Quotas,
		registry:     opts.Registry,
		httpMetrics:  httpMetrics,
		checker:      checker,
		logger:       logger.With("component", "server"),
		shutdownChan: make(chan struct{}),
	}, nil
}

// Start starts the HTTP server and blocks until shutdown.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return fmt.Errorf("server is already running")
	}
	s.isRunning = true
	s.mu.Unlock()

	s.httpServer = &http.Server{
		Addr:         s.config.ListenAddress,
		Handler:      s.Handler(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("starting decision API server", "address", s.config.ListenAddress)

		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	// Signal handling belongs to the caller; cancelling ctx is the
	// shutdown path.
	select {
	case <-ctx.Done():
		s.logger.Info("context cancelled, initiating shutdown")
		return s.Shutdown(context.Background())
	case err := <-errChan:
		return err
	case <-s.shutdownChan:
		s.logger.Info("shutdown requested")
		return s.Shutdown(context.Background())
	}
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.mu.Lock()
		if !s.isRunning {
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()

		s.logger.Info("initiating graceful shutdown", "timeout", s.config.ShutdownTimeout.String())

		shutdownCtx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
		defer cancel()

		if s.httpServer != nil {
			if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
				s.logger.Error("error during server shutdown", "error", err)
				shutdownErr = fmt.Errorf("server shutdown error: %w", err)
			}
		}

		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()

		s.logger.Info("decision API server stopped")
	})

	return shutdownErr
}

// Handler returns the configured HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	s.route(mux, http.MethodPost, "/v1/ratelimit/check", http.HandlerFunc(s.handleRateLimitCheck))
	s.route(mux, http.MethodPost, "/v1/quota/check", http.HandlerFunc(s.handleQuotaCheck))
	s.route(mux, http.MethodPost, "/v1/quota/record", http.HandlerFunc(s.handleQuotaRecord))
	s.route(mux, http.MethodGet, "/v1/quota/usage", http.HandlerFunc(s.handleQuotaUsage))
	s.route(mux, http.MethodPost, "/v1/enforce/check", http.HandlerFunc(s.handleEnforceCheck))
	s.route(mux, http.MethodPost, "/v1/enforce/record", http.HandlerFunc(s.handleEnforceRecord))
	s.route(mux, http.MethodGet, "/healthz", s.checker.LivenessHandler())
	s.route(mux, http.MethodGet, "/readyz", s.checker.ReadinessHandler())

	if s.registry != nil && s.metricsCfg != nil && s.metricsCfg.MetricsEnabled() {
		mux.Handle("GET "+s.metricsCfg.Path, promhttp.HandlerFor(
			s.registry,
			promhttp.HandlerOpts{
				EnableOpenMetrics: true,
				ErrorHandling:     promhttp.ContinueOnError,
			},
		))
	}

	return s.requestLogging(mux)
}

// route registers a handler with per-route HTTP instrumentation. The
// instrumented label is the registered path, never the request URL.
func (s *Server) route(mux *http.ServeMux, method, path string, handler http.Handler) {
	mux.Handle(method+" "+path, s.httpMetrics.Instrument(path, handler))
}

// IsRunning returns true if the server is running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// requestLogging wraps the handler with request ID propagation and
// debug-level access logging. A caller-supplied X-Request-ID is kept;
// otherwise one is generated. The ID travels on the request context so
// handler error logs carry it too.
func (s *Server) requestLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		ctx := logging.WithRequestID(r.Context(), requestID)
		w.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(w, r.WithContext(ctx))

		fields := append([]any{"method", r.Method, "path", r.URL.Path}, logging.ContextFields(ctx)...)
		s.logger.Debug("request served", fields...)
	})
}
