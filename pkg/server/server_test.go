package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"kepler-hq/saturn/pkg/config"
	"kepler-hq/saturn/pkg/enforce"
	"kepler-hq/saturn/pkg/enforce/cache"
	"kepler-hq/saturn/pkg/enforce/quota"
	"kepler-hq/saturn/pkg/enforce/ratelimit"
	"kepler-hq/saturn/pkg/enforce/storage"
	"kepler-hq/saturn/pkg/enforce/window"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(t *testing.T) (*Server, *storage.Memory) {
	t.Helper()

	shared := cache.NewMemoryWithConfig(cache.MemoryConfig{SweepInterval: time.Hour})
	t.Cleanup(func() { shared.Close() })
	store := storage.NewMemory()

	limiter := ratelimit.NewLimiter(ratelimit.LimiterOptions{
		Cache:  shared,
		Logger: testLogger(),
	})
	if err := limiter.Register(ratelimit.Config{
		ID:                "api-requests",
		Scope:             ratelimit.ScopeUser,
		Algorithm:         ratelimit.AlgorithmTokenBucket,
		RequestsPerWindow: 60,
		WindowSeconds:     60,
		BurstCapacity:     5,
		Enabled:           true,
	}); err != nil {
		t.Fatalf("failed to register limit: %v", err)
	}

	quotas := quota.NewManager(quota.ManagerOptions{
		Store:  store,
		Cache:  shared,
		Logger: testLogger(),
	})
	if err := quotas.Register(quota.Config{
		ID:      "api-calls-daily",
		Metric:  "api_calls",
		Scope:   quota.ScopeUser,
		Window:  window.Day,
		Limit:   10,
		Level:   quota.LevelHard,
		Enabled: true,
	}); err != nil {
		t.Fatalf("failed to register quota: %v", err)
	}

	gate := enforce.NewGate(enforce.GateOptions{
		Limiter: limiter,
		Quotas:  quotas,
		Logger:  testLogger(),
	})

	serverCfg := &config.ServerConfig{
		ListenAddress:   "127.0.0.1:0",
		ShutdownTimeout: time.Second,
	}
	metricsCfg := &config.MetricsConfig{Path: "/metrics"}

	srv, err := NewServer(Options{
		Config:   serverCfg,
		Metrics:  metricsCfg,
		Gate:     gate,
		Limiter:  limiter,
		Quotas:   quotas,
		Registry: prometheus.NewRegistry(),
		Logger:   testLogger(),
	})
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}
	return srv, store
}

func postJSON(t *testing.T, handler http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("failed to marshal body: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestServer_RequiresDependencies(t *testing.T) {
	if _, err := NewServer(Options{}); err == nil {
		t.Error("expected error for missing dependencies")
	}
}

func TestHandleRateLimitCheck(t *testing.T) {
	srv, _ := newTestServer(t)
	handler := srv.Handler()

	rec := postJSON(t, handler, "/v1/ratelimit/check", checkRequest{
		LimitID: "api-requests",
		ScopeID: "user-1",
		Path:    "/api/data",
	})

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp rateLimitResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !resp.Allowed {
		t.Errorf("expected first request allowed, got %+v", resp)
	}
	if resp.Decision != "allowed" {
		t.Errorf("expected decision %q, got %q", "allowed", resp.Decision)
	}
	if got := rec.Header().Get("X-RateLimit-Limit"); got != "5" {
		t.Errorf("expected X-RateLimit-Limit header 5, got %q", got)
	}
}

func TestHandleRateLimitCheck_Exhaustion(t *testing.T) {
	srv, _ := newTestServer(t)
	handler := srv.Handler()

	var last rateLimitResponse
	for i := 0; i < 6; i++ {
		rec := postJSON(t, handler, "/v1/ratelimit/check", checkRequest{
			LimitID: "api-requests",
			ScopeID: "user-1",
		})
		if rec.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rec.Code)
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &last); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
	}

	if last.Allowed {
		t.Errorf("expected sixth request blocked, got %+v", last)
	}
	if last.Decision != "blocked" {
		t.Errorf("expected decision %q, got %q", "blocked", last.Decision)
	}
	if last.RetryAfter <= 0 {
		t.Error("expected positive retry_after_seconds on blocked response")
	}
}

func TestHandleRateLimitCheck_BadInput(t *testing.T) {
	srv, _ := newTestServer(t)
	handler := srv.Handler()

	rec := postJSON(t, handler, "/v1/ratelimit/check", checkRequest{
		LimitID: "api-requests",
		ScopeID: "",
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected status 400 for empty scope id, got %d", rec.Code)
	}

	rec = postJSON(t, handler, "/v1/ratelimit/check", checkRequest{
		LimitID: "api-requests",
		ScopeID: "user-1",
		Amount:  -2,
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected status 400 for negative amount, got %d", rec.Code)
	}
}

func TestHandleQuotaCheckAndRecord(t *testing.T) {
	srv, store := newTestServer(t)
	handler := srv.Handler()

	rec := postJSON(t, handler, "/v1/quota/check", quotaRequest{
		QuotaID: "api-calls-daily",
		ScopeID: "user-1",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var check quotaCheckResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &check); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !check.Allowed {
		t.Errorf("expected check allowed, got %+v", check)
	}
	if check.Limit != 10 {
		t.Errorf("expected limit 10, got %d", check.Limit)
	}

	// Checks never consume quota
	if store.Len() != 0 {
		t.Errorf("expected no usage events after check, got %d", store.Len())
	}

	rec = postJSON(t, handler, "/v1/quota/record", quotaRequest{
		QuotaID:  "api-calls-daily",
		ScopeID:  "user-1",
		Amount:   3,
		Metadata: map[string]string{"path": "/api/data"},
	})
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected status 204, got %d: %s", rec.Code, rec.Body.String())
	}
	if store.Len() != 1 {
		t.Errorf("expected 1 usage event after record, got %d", store.Len())
	}
}

func TestHandleQuotaUsage(t *testing.T) {
	srv, _ := newTestServer(t)
	handler := srv.Handler()

	rec := postJSON(t, handler, "/v1/quota/record", quotaRequest{
		QuotaID: "api-calls-daily",
		ScopeID: "user-1",
		Amount:  4,
	})
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected status 204, got %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/quota/usage?quota_id=api-calls-daily&scope_id=user-1", nil)
	getRec := httptest.NewRecorder()
	handler.ServeHTTP(getRec, req)

	if getRec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", getRec.Code, getRec.Body.String())
	}

	var usage quotaUsageResponse
	if err := json.Unmarshal(getRec.Body.Bytes(), &usage); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if usage.CurrentUsage != 4 {
		t.Errorf("expected current usage 4, got %d", usage.CurrentUsage)
	}
	if usage.Remaining != 6 {
		t.Errorf("expected remaining 6, got %d", usage.Remaining)
	}
	if usage.Status != "normal" {
		t.Errorf("expected status %q, got %q", "normal", usage.Status)
	}
}

func TestHandleQuotaUsage_MissingQuotaID(t *testing.T) {
	srv, _ := newTestServer(t)
	handler := srv.Handler()

	req := httptest.NewRequest(http.MethodGet, "/v1/quota/usage?scope_id=user-1", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", rec.Code)
	}
}

func TestHandleEnforceCheck(t *testing.T) {
	srv, store := newTestServer(t)
	handler := srv.Handler()

	rec := postJSON(t, handler, "/v1/enforce/check", checkRequest{
		LimitID: "api-requests",
		QuotaID: "api-calls-daily",
		ScopeID: "user-1",
		Path:    "/api/data",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var verdict verdictResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &verdict); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !verdict.Allowed {
		t.Errorf("expected verdict allowed, got %+v", verdict)
	}
	if verdict.RateLimit == nil || verdict.Quota == nil {
		t.Fatalf("expected both rate limit and quota sections, got %+v", verdict)
	}

	rec = postJSON(t, handler, "/v1/enforce/record", checkRequest{
		QuotaID: "api-calls-daily",
		ScopeID: "user-1",
		Path:    "/api/data",
	})
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected status 204, got %d: %s", rec.Code, rec.Body.String())
	}
	if store.Len() != 1 {
		t.Errorf("expected 1 usage event, got %d", store.Len())
	}
}

func TestHandleHealth(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"status":"ok"`) {
		t.Errorf("expected ok status body, got %q", rec.Body.String())
	}
}

func TestReadyz(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"status":"ready"`) {
		t.Errorf("expected ready status body, got %q", rec.Body.String())
	}
}

func TestReadyz_DegradedComponent(t *testing.T) {
	srv, _ := newTestServer(t)
	srv.checker.Register("storage", func(ctx context.Context) error {
		return errors.New("database is locked")
	})

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"status":"degraded"`) {
		t.Errorf("expected degraded status body, got %q", rec.Body.String())
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200 from metrics endpoint, got %d", rec.Code)
	}
}

func TestHandleInvalidBody(t *testing.T) {
	srv, _ := newTestServer(t)
	handler := srv.Handler()

	req := httptest.NewRequest(http.MethodPost, "/v1/quota/check", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected status 400 for malformed body, got %d", rec.Code)
	}
}

func TestRequestIDPropagation(t *testing.T) {
	srv, _ := newTestServer(t)
	handler := srv.Handler()

	t.Run("generated when absent", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

		if rec.Header().Get("X-Request-ID") == "" {
			t.Error("expected a generated X-Request-ID header")
		}
	})

	t.Run("caller value echoed", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		req.Header.Set("X-Request-ID", "req-abc-123")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if got := rec.Header().Get("X-Request-ID"); got != "req-abc-123" {
			t.Errorf("expected X-Request-ID req-abc-123, got %q", got)
		}
	})
}

func TestErrorLogRedactsScopeID(t *testing.T) {
	srv, _ := newTestServer(t)
	var buf bytes.Buffer
	srv.logger = slog.New(slog.NewTextHandler(&buf, nil))
	handler := srv.Handler()

	req := httptest.NewRequest(http.MethodGet,
		"/v1/quota/usage?quota_id=missing&scope_id=sk-live-abcdef123456", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500 for an unregistered quota, got %d", rec.Code)
	}

	logged := buf.String()
	if !strings.Contains(logged, "sk-l***") {
		t.Errorf("expected redacted scope id in error log, got: %s", logged)
	}
	if strings.Contains(logged, "sk-live-abcdef123456") {
		t.Errorf("expected full scope id absent from error log, got: %s", logged)
	}
}

func TestServer_StartShutdown(t *testing.T) {
	srv, _ := newTestServer(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Start(ctx) }()

	// Give the listener time to come up, then cancel
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("expected clean shutdown, got: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for shutdown")
	}

	if srv.IsRunning() {
		t.Error("expected server not running after shutdown")
	}
}
