package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestInstrument_CountsRequests(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewHTTP(registry)

	handler := m.Instrument("/v1/enforce/check", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/enforce/check", nil))
	}

	count := testutil.ToFloat64(m.requestsTotal.WithLabelValues("POST", "/v1/enforce/check", "200"))
	if count != 3 {
		t.Errorf("expected 3 requests counted, got %v", count)
	}
}

func TestInstrument_RecordsStatusCode(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewHTTP(registry)

	handler := m.Instrument("/v1/quota/check", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad request", http.StatusBadRequest)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/quota/check", nil))

	count := testutil.ToFloat64(m.requestsTotal.WithLabelValues("POST", "/v1/quota/check", "400"))
	if count != 1 {
		t.Errorf("expected 1 request counted with status 400, got %v", count)
	}
}

func TestInstrument_DefaultsTo200WhenHandlerNeverWritesHeader(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewHTTP(registry)

	handler := m.Instrument("/healthz", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	count := testutil.ToFloat64(m.requestsTotal.WithLabelValues("GET", "/healthz", "200"))
	if count != 1 {
		t.Errorf("expected 1 request counted with status 200, got %v", count)
	}
}

func TestInstrument_NilMetricsPassesThrough(t *testing.T) {
	var m *HTTP

	handler := m.Instrument("/healthz", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusNoContent {
		t.Errorf("expected status 204, got %d", rec.Code)
	}
}
