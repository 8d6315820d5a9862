package mirror

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"gissues/internal/bootstrap/logging"
	domainmirror "gissues/internal/domain/mirror"
	"gissues/internal/errs"
	"gissues/internal/ports"
)

type SyncRepositoryPayload struct {
	Owner           string `json:"owner"`
	Name            string `json:"name"`
	FollowCreatedAt string `json:"follow_created_at,omitempty"`
	RecipientEmail  string `json:"recipient_email,omitempty"`
}

type SyncCommentsPayload struct {
	Owner       string `json:"owner"`
	Name        string `json:"name"`
	IssueNumber int    `json:"issue_number"`
}

type SendNotificationPayload struct {
	Recipient string `json:"recipient"`
	Subject   string `json:"subject"`
	Body      string `json:"body"`
}

type taskHandlerFunc func(ctx context.Context, payload json.RawMessage) error

func (s *Service) taskHandlers() map[ports.TaskKind]taskHandlerFunc {
	return map[ports.TaskKind]taskHandlerFunc{
		ports.TaskSyncRepository: func(ctx context.Context, raw json.RawMessage) error {
			payload, err := decodePayload[SyncRepositoryPayload](raw)
			if err != nil {
				return err
			}
			_, err = s.SyncRepository(ctx, SyncRepositoryInput(payload))
			return err
		},
		ports.TaskSyncComments: func(ctx context.Context, raw json.RawMessage) error {
			payload, err := decodePayload[SyncCommentsPayload](raw)
			if err != nil {
				return err
			}
			_, err = s.SyncComments(ctx, payload.Owner, payload.Name, payload.IssueNumber)
			return err
		},
		ports.TaskSendNotification: func(ctx context.Context, raw json.RawMessage) error {
			payload, err := decodePayload[SendNotificationPayload](raw)
			if err != nil {
				return err
			}
			return s.SendNotification(ctx, payload.Recipient, payload.Subject, payload.Body)
		},
	}
}

// HandleTask dispatches one queued task by kind. It is the ports.TaskHandler given to
// queue consumers.
func (s *Service) HandleTask(ctx context.Context, task ports.Task) error {
	handler, ok := s.taskHandlers()[task.Kind]
	if !ok {
		return fmt.Errorf("unknown task kind %q", task.Kind)
	}
	return handler(ctx, task.Payload)
}

// SendNotification delivers one message. Failures are returned, never retried.
func (s *Service) SendNotification(ctx context.Context, recipient string, subject string, body string) error {
	if err := checkContext(ctx); err != nil {
		return err
	}
	if s.notifier == nil {
		return errNotifierRequired
	}
	if strings.TrimSpace(recipient) == "" {
		return domainmirror.Validationf("notification recipient is required")
	}
	if err := s.notifier.Notify(ctx, recipient, subject, body); err != nil {
		return errs.Wrapf(err, "notify %s", recipient)
	}
	return nil
}

func (s *Service) enqueue(ctx context.Context, kind ports.TaskKind, payload any) error {
	if s.queue == nil {
		return errQueueRequired
	}
	task, err := newTask(kind, payload, s.clock())
	if err != nil {
		return err
	}
	if err := s.queue.Enqueue(ctx, task); err != nil {
		return errs.Wrapf(err, "enqueue %s", kind)
	}
	logging.Debug(ctx, "task enqueued", slog.String("task_id", task.ID), slog.String("task_kind", string(kind)))
	return nil
}

func newTask(kind ports.TaskKind, payload any, now time.Time) (ports.Task, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return ports.Task{}, errs.Wrapf(err, "marshal %s payload", kind)
	}
	return ports.Task{
		ID:         uuid.NewString(),
		Kind:       kind,
		Payload:    raw,
		EnqueuedAt: now.UTC(),
	}, nil
}

func decodePayload[T any](raw json.RawMessage) (T, error) {
	var out T
	if len(raw) == 0 {
		return out, domainmirror.Validationf("task payload is empty")
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, domainmirror.Validationf("decode task payload: %v", err)
	}
	return out, nil
}
