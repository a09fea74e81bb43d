package health

import (
	"encoding/json"
	"net/http"
)

// LivenessHandler serves the liveness probe. It answers 200 whenever
// the process can still serve HTTP.
//
// Example response:
//
//	{"status": "ok", "timestamp": "2026-08-29T10:30:00Z"}
func (c *Checker) LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, r, http.StatusOK, c.Liveness())
	}
}

// ReadinessHandler serves the readiness probe. It probes every
// registered component and answers 503 when any is unhealthy.
//
// Example response (degraded):
//
//	{
//	    "status": "degraded",
//	    "checks": {
//	        "cache": {"status": "unhealthy", "message": "dial tcp: connection refused"},
//	        "storage": {"status": "ok", "duration_ms": 210000}
//	    },
//	    "timestamp": "2026-08-29T10:30:00Z"
//	}
func (c *Checker) ReadinessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := c.Readiness(r.Context())

		code := http.StatusOK
		if status.Overall == "degraded" {
			code = http.StatusServiceUnavailable
		}
		writeStatus(w, r, code, status)
	}
}

func writeStatus(w http.ResponseWriter, r *http.Request, code int, status Status) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)

	if r.Method != http.MethodHead {
		_ = json.NewEncoder(w).Encode(status)
	}
}
