package enforce

import (
	"net/http"
	"time"
)

// Resolver extracts the admission question from an incoming request.
// How the scope id and tier are derived (API key lookup, JWT claims,
// client IP) is the host service's concern.
type Resolver func(r *http.Request) Request

// Middleware gates an http.Handler behind the rate limiter and quota
// manager. Denied requests get a 429 with Retry-After; throttled
// requests sleep the computed delay (cancellable by the client) before
// being served; successfully handled requests are charged post-hoc.
func (g *Gate) Middleware(resolve Resolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			req := resolve(r)

			verdict, err := g.Check(r.Context(), req)
			if err != nil {
				// Caller-input errors out of the resolver are a
				// wiring bug, not a client fault worth a retry.
				g.logger.Error("admission check failed", "path", r.URL.Path, "error", err)
				http.Error(w, "invalid enforcement request", http.StatusInternalServerError)
				return
			}

			if verdict.RateLimit != nil {
				for name, value := range verdict.RateLimit.Headers() {
					w.Header().Set(name, value)
				}
			}

			if !verdict.Allowed {
				http.Error(w, verdict.Reason, http.StatusTooManyRequests)
				return
			}

			if verdict.ThrottleDelay > 0 {
				if !sleepCtx(r, verdict.ThrottleDelay) {
					// Client went away during the delay; no usage
					// is charged for a cancelled request.
					return
				}
			}

			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			if rec.status >= 200 && rec.status < 300 {
				if err := g.Record(r.Context(), req); err != nil {
					g.logger.Error("usage recording failed",
						"quota_id", req.QuotaID, "scope_id", req.ScopeID, "error", err)
				}
			}
		})
	}
}

// sleepCtx waits d or until the request is cancelled. Reports whether
// the full delay elapsed.
func sleepCtx(r *http.Request, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return true
	case <-r.Context().Done():
		return false
	}
}

// statusRecorder captures the status code written by the handler so
// the middleware can charge usage only for successful responses.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
