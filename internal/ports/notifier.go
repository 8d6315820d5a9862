package ports

import "context"

type Notifier interface {
	Notify(ctx context.Context, recipient string, subject string, body string) error
}
