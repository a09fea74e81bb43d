package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"kepler-hq/saturn/pkg/enforce"
	"kepler-hq/saturn/pkg/enforce/quota"
	"kepler-hq/saturn/pkg/enforce/ratelimit"
	"kepler-hq/saturn/pkg/telemetry/logging"
)

// checkRequest is the body for the rate limit and enforce endpoints.
type checkRequest struct {
	LimitID string `json:"limit_id"`
	QuotaID string `json:"quota_id"`
	ScopeID string `json:"scope_id"`
	Path    string `json:"path"`
	Tier    string `json:"tier"`
	Amount  int    `json:"amount"`
}

// quotaRequest is the body for the quota endpoints.
type quotaRequest struct {
	QuotaID  string            `json:"quota_id"`
	ScopeID  string            `json:"scope_id"`
	Amount   int               `json:"amount"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// rateLimitResponse mirrors ratelimit.Result on the wire.
type rateLimitResponse struct {
	Decision      string  `json:"decision"`
	Allowed       bool    `json:"allowed"`
	Reason        string  `json:"reason,omitempty"`
	CurrentUsage  int64   `json:"current_usage"`
	Limit         int64   `json:"limit"`
	Remaining     int64   `json:"remaining"`
	ResetTime     int64   `json:"reset_time,omitempty"`
	RetryAfter    float64 `json:"retry_after_seconds,omitempty"`
	ThrottleDelay float64 `json:"throttle_delay_seconds,omitempty"`
	WindowSeconds int     `json:"window_seconds"`
}

// quotaCheckResponse mirrors quota.Enforcement on the wire.
type quotaCheckResponse struct {
	Allowed       bool    `json:"allowed"`
	Reason        string  `json:"reason,omitempty"`
	CurrentUsage  int64   `json:"current_usage"`
	Limit         int64   `json:"limit"`
	Remaining     int64   `json:"remaining"`
	Action        string  `json:"action"`
	RetryAfter    float64 `json:"retry_after_seconds,omitempty"`
	ThrottleDelay float64 `json:"throttle_delay_seconds,omitempty"`
	OverageCost   float64 `json:"overage_cost,omitempty"`
}

// quotaUsageResponse mirrors quota.Usage on the wire.
type quotaUsageResponse struct {
	CurrentUsage    int64   `json:"current_usage"`
	Limit           int64   `json:"limit"`
	Remaining       int64   `json:"remaining"`
	UsagePercentage float64 `json:"usage_percentage"`
	WindowStart     int64   `json:"window_start"`
	WindowEnd       int64   `json:"window_end,omitempty"`
	Status          string  `json:"status"`
}

// verdictResponse mirrors enforce.Verdict on the wire.
type verdictResponse struct {
	Allowed       bool                `json:"allowed"`
	Reason        string              `json:"reason,omitempty"`
	RetryAfter    float64             `json:"retry_after_seconds,omitempty"`
	ThrottleDelay float64             `json:"throttle_delay_seconds,omitempty"`
	OverageCost   float64             `json:"overage_cost,omitempty"`
	RateLimit     *rateLimitResponse  `json:"rate_limit,omitempty"`
	Quota         *quotaCheckResponse `json:"quota,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleRateLimitCheck(w http.ResponseWriter, r *http.Request) {
	var req checkRequest
	if !s.decode(w, r, &req) {
		return
	}

	ctx := logging.WithTier(logging.WithScopeID(r.Context(), req.ScopeID), req.Tier)
	res, err := s.limiter.Check(ctx, req.LimitID, req.ScopeID, req.Path, req.Tier, amount(req.Amount))
	if err != nil {
		s.writeError(ctx, w, err)
		return
	}

	for k, v := range res.Headers() {
		w.Header().Set(k, v)
	}
	s.writeJSON(w, http.StatusOK, toRateLimitResponse(res))
}

func (s *Server) handleQuotaCheck(w http.ResponseWriter, r *http.Request) {
	var req quotaRequest
	if !s.decode(w, r, &req) {
		return
	}

	ctx := logging.WithScopeID(r.Context(), req.ScopeID)
	res, err := s.quotas.CheckEnforcement(ctx, req.QuotaID, req.ScopeID, amount(req.Amount))
	if err != nil {
		s.writeError(ctx, w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, toQuotaCheckResponse(res))
}

func (s *Server) handleQuotaRecord(w http.ResponseWriter, r *http.Request) {
	var req quotaRequest
	if !s.decode(w, r, &req) {
		return
	}

	ctx := logging.WithScopeID(r.Context(), req.ScopeID)
	if err := s.quotas.RecordUsage(ctx, req.QuotaID, req.ScopeID, amount(req.Amount), req.Metadata); err != nil {
		s.writeError(ctx, w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleQuotaUsage(w http.ResponseWriter, r *http.Request) {
	quotaID := r.URL.Query().Get("quota_id")
	scopeID := r.URL.Query().Get("scope_id")
	if quotaID == "" {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "quota_id query parameter is required"})
		return
	}

	ctx := logging.WithScopeID(r.Context(), scopeID)
	usage, err := s.quotas.GetCurrentUsage(ctx, quotaID, scopeID)
	if err != nil {
		s.writeError(ctx, w, err)
		return
	}

	resp := quotaUsageResponse{
		CurrentUsage:    usage.CurrentUsage,
		Limit:           usage.Limit,
		Remaining:       usage.Remaining,
		UsagePercentage: usage.UsagePercentage,
		WindowStart:     usage.WindowStart.Unix(),
		Status:          string(usage.Status),
	}
	if !usage.WindowEnd.IsZero() {
		resp.WindowEnd = usage.WindowEnd.Unix()
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleEnforceCheck(w http.ResponseWriter, r *http.Request) {
	var req checkRequest
	if !s.decode(w, r, &req) {
		return
	}

	ctx := logging.WithTier(logging.WithScopeID(r.Context(), req.ScopeID), req.Tier)
	verdict, err := s.gate.Check(ctx, enforce.Request{
		LimitID: req.LimitID,
		QuotaID: req.QuotaID,
		ScopeID: req.ScopeID,
		Path:    req.Path,
		Tier:    req.Tier,
		Amount:  req.Amount,
	})
	if err != nil {
		s.writeError(ctx, w, err)
		return
	}

	resp := verdictResponse{
		Allowed:       verdict.Allowed,
		Reason:        verdict.Reason,
		RetryAfter:    verdict.RetryAfter.Seconds(),
		ThrottleDelay: verdict.ThrottleDelay.Seconds(),
		OverageCost:   verdict.OverageCost,
	}
	if verdict.RateLimit != nil {
		rl := toRateLimitResponse(verdict.RateLimit)
		resp.RateLimit = &rl
	}
	if verdict.Quota != nil {
		q := toQuotaCheckResponse(verdict.Quota)
		resp.Quota = &q
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleEnforceRecord(w http.ResponseWriter, r *http.Request) {
	var req checkRequest
	if !s.decode(w, r, &req) {
		return
	}

	ctx := logging.WithTier(logging.WithScopeID(r.Context(), req.ScopeID), req.Tier)
	err := s.gate.Record(ctx, enforce.Request{
		LimitID: req.LimitID,
		QuotaID: req.QuotaID,
		ScopeID: req.ScopeID,
		Path:    req.Path,
		Tier:    req.Tier,
		Amount:  req.Amount,
	})
	if err != nil {
		s.writeError(ctx, w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// decode parses the JSON request body, writing a 400 on failure.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body: " + err.Error()})
		return false
	}
	return true
}

// writeError maps caller-input sentinels to 400 and everything else
// to 500. Server-side failures are logged with the request and scope
// fields carried on ctx; scope identifiers arrive redacted.
func (s *Server) writeError(ctx context.Context, w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, ratelimit.ErrInvalidAmount) ||
		errors.Is(err, ratelimit.ErrEmptyScopeID) ||
		errors.Is(err, quota.ErrInvalidAmount) ||
		errors.Is(err, quota.ErrEmptyScopeID) {
		status = http.StatusBadRequest
	}
	if status == http.StatusInternalServerError {
		fields := append([]any{"error", err}, logging.ContextFields(ctx)...)
		s.logger.Error("request failed", fields...)
	}
	s.writeJSON(w, status, errorResponse{Error: err.Error()})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

func toRateLimitResponse(res *ratelimit.Result) rateLimitResponse {
	out := rateLimitResponse{
		Decision:      string(res.Decision),
		Allowed:       res.Allowed,
		Reason:        res.Reason,
		CurrentUsage:  res.CurrentUsage,
		Limit:         res.Limit,
		Remaining:     res.Remaining,
		RetryAfter:    res.RetryAfter.Seconds(),
		ThrottleDelay: res.ThrottleDelay.Seconds(),
		WindowSeconds: res.WindowSeconds,
	}
	if !res.ResetTime.IsZero() {
		out.ResetTime = res.ResetTime.Unix()
	}
	return out
}

func toQuotaCheckResponse(res *quota.Enforcement) quotaCheckResponse {
	return quotaCheckResponse{
		Allowed:       res.Allowed,
		Reason:        res.Reason,
		CurrentUsage:  res.CurrentUsage,
		Limit:         res.Limit,
		Remaining:     res.Remaining,
		Action:        string(res.Action),
		RetryAfter:    res.RetryAfter.Seconds(),
		ThrottleDelay: res.ThrottleDelay.Seconds(),
		OverageCost:   res.OverageCost,
	}
}

// amount normalizes an omitted request amount to one unit.
func amount(n int) int {
	if n == 0 {
		return 1
	}
	return n
}
