package ports

import (
	"context"
	"encoding/json"
	"time"
)

type TaskKind string

const (
	TaskSyncRepository   TaskKind = "sync_repository"
	TaskSyncComments     TaskKind = "sync_comments"
	TaskSendNotification TaskKind = "send_notification"
)

type Task struct {
	ID         string          `json:"id"`
	Kind       TaskKind        `json:"kind"`
	Payload    json.RawMessage `json:"payload"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
}

type TaskHandler func(ctx context.Context, task Task) error

// TaskQueue is the fire-and-forget side used by the orchestrator.
type TaskQueue interface {
	Enqueue(ctx context.Context, task Task) error
}

// TaskConsumer runs handler for every delivered task until Close.
type TaskConsumer interface {
	Consume(ctx context.Context, handler TaskHandler) error
	// WaitIdle blocks until no task accepted by this process is queued or running.
	WaitIdle(ctx context.Context) error
	Close() error
}
