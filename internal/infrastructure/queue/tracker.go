package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"gissues/internal/bootstrap/logging"
	"gissues/internal/errs"
	"gissues/internal/ports"
)

// tracker counts tasks accepted but not finished so callers can wait for quiescence.
type tracker struct {
	mu      sync.Mutex
	pending int
	waiters []chan struct{}
}

func (t *tracker) add() {
	t.mu.Lock()
	t.pending++
	t.mu.Unlock()
}

func (t *tracker) done() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.pending > 0 {
		t.pending--
	}
	if t.pending == 0 {
		for _, ch := range t.waiters {
			close(ch)
		}
		t.waiters = nil
	}
}

func (t *tracker) wait(ctx context.Context) error {
	t.mu.Lock()
	if t.pending == 0 {
		t.mu.Unlock()
		return nil
	}
	ch := make(chan struct{})
	t.waiters = append(t.waiters, ch)
	t.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return errs.Wrap(ctx.Err(), "wait for idle queue")
	}
}

// runTask executes one task under its own log attrs. A panic is turned into an error so
// one bad task cannot take the worker down; failures are logged and not retried.
func runTask(ctx context.Context, handler ports.TaskHandler, task ports.Task) (err error) {
	taskCtx := logging.WithAttrs(ctx,
		slog.String("task_id", task.ID),
		slog.String("task_kind", string(task.Kind)),
	)
	started := time.Now()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panicked: %v", r)
		}
		if err != nil {
			logging.Error(taskCtx, "task failed", errs.Attr(err), slog.Duration("elapsed", time.Since(started)))
			return
		}
		logging.Debug(taskCtx, "task finished", slog.Duration("elapsed", time.Since(started)))
	}()

	return handler(taskCtx, task)
}
