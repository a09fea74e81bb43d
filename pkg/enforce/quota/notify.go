package quota

import (
	"context"
	"log/slog"
)

// Notifier delivers quota alerts. The production notifier is a
// collaborator (pager, webhook, email); delivery is fire-and-forget
// from the alerting path and failures are logged, never propagated to
// the request being checked.
type Notifier interface {
	SendAlert(ctx context.Context, alert *Alert) error
}

// LogNotifier is the default Notifier. It writes alerts to the
// structured log.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a log-backed notifier. A nil logger uses the
// process default.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default().With("component", "quota")
	}
	return &LogNotifier{logger: logger}
}

// SendAlert implements Notifier.
func (n *LogNotifier) SendAlert(ctx context.Context, alert *Alert) error {
	level := slog.LevelWarn
	if alert.Type == AlertLimitExceeded || alert.Type == AlertCritical {
		level = slog.LevelError
	}

	n.logger.Log(ctx, level, "quota alert",
		"alert_id", alert.ID,
		"quota_id", alert.QuotaID,
		"scope_id", alert.ScopeID,
		"alert_type", alert.Type,
		"usage", alert.Usage,
		"limit", alert.Limit,
		"message", alert.Message,
	)
	return nil
}
