package notify

import (
	"context"
	"log/slog"

	"gissues/internal/bootstrap/logging"
	"gissues/internal/ports"
)

// LogNotifier writes notifications to the structured log instead of delivering them.
type LogNotifier struct {
	from string
}

var _ ports.Notifier = (*LogNotifier)(nil)

func NewLogNotifier(from string) *LogNotifier {
	return &LogNotifier{from: from}
}

func (n *LogNotifier) Notify(ctx context.Context, recipient string, subject string, body string) error {
	if err := validateMessage(recipient, subject); err != nil {
		return err
	}
	logging.Info(logging.WithComponent(ctx, "notify.log"), "notification",
		slog.String("from", n.from),
		slog.String("to", recipient),
		slog.String("subject", subject),
		slog.String("body", body),
	)
	return nil
}
