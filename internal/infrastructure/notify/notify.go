package notify

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"gissues/internal/bootstrap/config"
	"gissues/internal/ports"
)

// New picks the driver named in cfg.Driver.
func New(cfg config.NotifyConfig) (ports.Notifier, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", "log":
		return NewLogNotifier(cfg.From), nil
	case "smtp":
		notifier, err := NewSMTPNotifier(cfg.SMTP, cfg.From)
		if err != nil {
			return nil, err
		}
		return notifier, nil
	default:
		return nil, fmt.Errorf("unsupported notify driver %q", cfg.Driver)
	}
}

func validateMessage(recipient string, subject string) error {
	if strings.TrimSpace(recipient) == "" {
		return errors.New("recipient is required")
	}
	if _, err := mail.ParseAddress(recipient); err != nil {
		return fmt.Errorf("invalid recipient %q: %w", recipient, err)
	}
	if strings.ContainsAny(subject, "\r\n") {
		return errors.New("subject must be a single line")
	}
	return nil
}
