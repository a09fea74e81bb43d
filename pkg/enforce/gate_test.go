package enforce

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"kepler-hq/saturn/pkg/enforce/cache"
	"kepler-hq/saturn/pkg/enforce/quota"
	"kepler-hq/saturn/pkg/enforce/ratelimit"
	"kepler-hq/saturn/pkg/enforce/storage"
	"kepler-hq/saturn/pkg/enforce/window"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestGate wires a limiter and a quota manager over in-memory
// collaborators.
func newTestGate(t *testing.T) (*Gate, *storage.Memory) {
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
		Scope:             ratelimit.ScopeOrganization,
		Algorithm:         ratelimit.AlgorithmTokenBucket,
		RequestsPerWindow: 60,
		WindowSeconds:     60,
		BurstCapacity:     5,
		Enabled:           true,
	}); err != nil {
		t.Fatalf("Register limit failed: %v", err)
	}

	quotas := quota.NewManager(quota.ManagerOptions{
		Store:  store,
		Cache:  shared,
		Logger: testLogger(),
	})
	if err := quotas.Register(quota.Config{
		ID:      "api-calls-daily",
		Metric:  "api_calls",
		Scope:   quota.ScopeOrganization,
		Window:  window.Day,
		Limit:   10,
		Level:   quota.LevelHard,
		Enabled: true,
	}); err != nil {
		t.Fatalf("Register quota failed: %v", err)
	}

	gate := NewGate(GateOptions{
		Limiter: limiter,
		Quotas:  quotas,
		Logger:  testLogger(),
	})
	return gate, store
}

func gateRequest() Request {
	return Request{
		LimitID: "api-requests",
		QuotaID: "api-calls-daily",
		ScopeID: "org-1",
		Path:    "/v1/invoices",
	}
}

func TestGate_AllowsWithinBothPolicies(t *testing.T) {
	gate, _ := newTestGate(t)

	verdict, err := gate.Check(context.Background(), gateRequest())
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if !verdict.Allowed {
		t.Errorf("Expected allow, got %+v", verdict)
	}
	if verdict.RateLimit == nil || verdict.Quota == nil {
		t.Error("Expected both subsystem results to be populated")
	}
}

func TestGate_RateLimitDenialSkipsQuota(t *testing.T) {
	gate, _ := newTestGate(t)
	ctx := context.Background()
	req := gateRequest()

	// Exhaust the burst of 5.
	for i := 0; i < 5; i++ {
		gate.Check(ctx, req)
	}

	verdict, err := gate.Check(ctx, req)
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if verdict.Allowed {
		t.Fatal("Expected the 6th request to be rate limited")
	}
	if verdict.Quota != nil {
		t.Error("Quota must not be consulted after a rate limit denial")
	}
	if verdict.RetryAfter <= 0 {
		t.Errorf("Expected a retry-after, got %v", verdict.RetryAfter)
	}
}

func TestGate_QuotaDenial(t *testing.T) {
	gate, _ := newTestGate(t)
	ctx := context.Background()
	req := gateRequest()

	// Fill the daily quota of 10.
	for i := 0; i < 10; i++ {
		if err := gate.Record(ctx, req); err != nil {
			t.Fatalf("Record failed: %v", err)
		}
	}

	verdict, err := gate.Check(ctx, req)
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if verdict.Allowed {
		t.Fatal("Expected quota denial")
	}
	if verdict.Quota == nil || verdict.Quota.Action != quota.ActionBlock {
		t.Errorf("Expected a blocking quota result, got %+v", verdict.Quota)
	}
}

func TestGate_RecordChargesQuotaOnly(t *testing.T) {
	gate, store := newTestGate(t)
	ctx := context.Background()

	if err := gate.Record(ctx, gateRequest()); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if store.Len() != 1 {
		t.Errorf("Expected one usage event, got %d", store.Len())
	}

	// A request without a quota id records nothing.
	req := gateRequest()
	req.QuotaID = ""
	if err := gate.Record(ctx, req); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if store.Len() != 1 {
		t.Errorf("Expected no additional event, got %d", store.Len())
	}
}

func TestGate_InputErrorPropagates(t *testing.T) {
	gate, _ := newTestGate(t)

	req := gateRequest()
	req.ScopeID = ""
	if _, err := gate.Check(context.Background(), req); err == nil {
		t.Error("Expected empty scope id to surface an error")
	}
}

func TestGate_EmptyGateAllows(t *testing.T) {
	gate := NewGate(GateOptions{Logger: testLogger()})

	verdict, err := gate.Check(context.Background(), gateRequest())
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if !verdict.Allowed {
		t.Error("A gate with no subsystems must allow")
	}
}
