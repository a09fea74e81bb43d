package logging

import (
	"context"
)

// Context keys for common log fields.
type contextKey string

const (
	// RequestIDKey is the context key for request IDs.
	RequestIDKey contextKey = "request_id"

	// ScopeIDKey is the context key for enforcement scope identifiers
	// (user id, organization id, API key id).
	ScopeIDKey contextKey = "scope_id"

	// TierKey is the context key for subscription tier names.
	TierKey contextKey = "tier"
)

// WithRequestID adds a request ID to the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// GetRequestID retrieves the request ID from the context.
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}

// WithScopeID adds a scope identifier to the context.
func WithScopeID(ctx context.Context, scopeID string) context.Context {
	return context.WithValue(ctx, ScopeIDKey, scopeID)
}

// GetScopeID retrieves the scope identifier from the context.
func GetScopeID(ctx context.Context) string {
	if scopeID, ok := ctx.Value(ScopeIDKey).(string); ok {
		return scopeID
	}
	return ""
}

// WithTier adds a tier name to the context.
func WithTier(ctx context.Context, tier string) context.Context {
	return context.WithValue(ctx, TierKey, tier)
}

// GetTier retrieves the tier name from the context.
func GetTier(ctx context.Context) string {
	if tier, ok := ctx.Value(TierKey).(string); ok {
		return tier
	}
	return ""
}

// ContextFields extracts common fields from context for logging.
// Returns a slice of key-value pairs suitable for logger.With().
// Scope identifiers are redacted before they reach the log stream.
func ContextFields(ctx context.Context) []any {
	var fields []any

	if requestID := GetRequestID(ctx); requestID != "" {
		fields = append(fields, "request_id", requestID)
	}
	if scopeID := GetScopeID(ctx); scopeID != "" {
		fields = append(fields, "scope_id", RedactID(scopeID))
	}
	if tier := GetTier(ctx); tier != "" {
		fields = append(fields, "tier", tier)
	}

	return fields
}
