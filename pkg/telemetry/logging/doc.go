// Package logging provides structured logging for Saturn.
//
// # Overview
//
// The logging package configures Go's standard log/slog package:
//   - JSON or text output selected by configuration
//   - Configurable log levels (debug, info, warn, error)
//   - Context helpers carrying request id, scope id, and tier
//   - Identifier redaction so raw API keys never reach the log stream
//
// # Usage
//
//	logger, err := logging.New(logging.Config{
//	    Level:  "info",
//	    Format: "json",
//	})
//	if err != nil {
//	    return err
//	}
//
//	logger.Info("Request evaluated",
//	    "limit_id", "api-default",
//	    "scope_id", logging.RedactID(scopeID),
//	    "allowed", true,
//	)
//
//	// Context-carried fields
//	ctx = logging.WithRequestID(ctx, "req-123")
//	ctx = logging.WithScopeID(ctx, scopeID)
//	logger.With(logging.ContextFields(ctx)...).Info("Usage recorded")
//
// # Redaction
//
// Scope identifiers are frequently raw API keys. RedactID keeps a
// four character prefix for correlation and drops the rest:
//
//	sk-abc123xyz -> sk-a***
package logging
