package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"gissues/internal/ports"
)

func newTask(id string, kind ports.TaskKind) ports.Task {
	return ports.Task{
		ID:         id,
		Kind:       kind,
		Payload:    json.RawMessage(`{"owner":"octo","name":"hello"}`),
		EnqueuedAt: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestLocalQueueRunsNestedTasksUntilIdle(t *testing.T) {
	q := NewLocalQueue(2, 8)
	t.Cleanup(func() { _ = q.Close() })
	ctx := context.Background()

	var (
		mu   sync.Mutex
		seen []string
	)
	handler := func(ctx context.Context, task ports.Task) error {
		mu.Lock()
		seen = append(seen, task.ID)
		mu.Unlock()
		if task.Kind == ports.TaskSyncRepository {
			for _, id := range []string{"comments-10", "notify-10"} {
				if err := q.Enqueue(ctx, newTask(id, ports.TaskSyncComments)); err != nil {
					return err
				}
			}
		}
		return nil
	}

	if err := q.Enqueue(ctx, newTask("repo-1", ports.TaskSyncRepository)); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
	if err := q.Consume(ctx, handler); err != nil {
		t.Fatalf("Consume() error = %v", err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := q.WaitIdle(waitCtx); err != nil {
		t.Fatalf("WaitIdle() error = %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 3 {
		t.Fatalf("handled %v, want 3 tasks", seen)
	}
}

func TestLocalQueueFanOutBeyondBufferDoesNotStall(t *testing.T) {
	q := NewLocalQueue(2, 4)
	t.Cleanup(func() { _ = q.Close() })
	ctx := context.Background()

	var handled atomic.Int32
	handler := func(ctx context.Context, task ports.Task) error {
		handled.Add(1)
		if task.Kind != ports.TaskSyncRepository {
			return nil
		}
		for i := 0; i < 10; i++ {
			if err := q.Enqueue(ctx, newTask(fmt.Sprintf("%s-comments-%d", task.ID, i), ports.TaskSyncComments)); err != nil {
				return err
			}
		}
		return nil
	}
	if err := q.Consume(ctx, handler); err != nil {
		t.Fatalf("Consume() error = %v", err)
	}

	for _, id := range []string{"repo-1", "repo-2"} {
		if err := q.Enqueue(ctx, newTask(id, ports.TaskSyncRepository)); err != nil {
			t.Fatalf("Enqueue(%s) error = %v", id, err)
		}
	}

	waitCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := q.WaitIdle(waitCtx); err != nil {
		t.Fatalf("WaitIdle() error = %v", err)
	}
	if got := handled.Load(); got != 22 {
		t.Fatalf("handled = %d, want 22", got)
	}
}

func TestLocalQueueEnqueueBeforeConsumeDoesNotBlock(t *testing.T) {
	q := NewLocalQueue(1, 1)
	t.Cleanup(func() { _ = q.Close() })
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for i := 0; i < 16; i++ {
		if err := q.Enqueue(ctx, newTask(fmt.Sprintf("early-%d", i), ports.TaskSendNotification)); err != nil {
			t.Fatalf("Enqueue(%d) error = %v", i, err)
		}
	}

	var handled atomic.Int32
	if err := q.Consume(ctx, func(context.Context, ports.Task) error {
		handled.Add(1)
		return nil
	}); err != nil {
		t.Fatalf("Consume() error = %v", err)
	}
	if err := q.WaitIdle(ctx); err != nil {
		t.Fatalf("WaitIdle() error = %v", err)
	}
	if got := handled.Load(); got != 16 {
		t.Fatalf("handled = %d, want 16", got)
	}
}

func TestLocalQueueSurvivesFailingAndPanickingTasks(t *testing.T) {
	q := NewLocalQueue(1, 4)
	t.Cleanup(func() { _ = q.Close() })
	ctx := context.Background()

	var handled atomic.Int32
	if err := q.Consume(ctx, func(ctx context.Context, task ports.Task) error {
		handled.Add(1)
		switch task.ID {
		case "fail":
			return errors.New("boom")
		case "panic":
			panic("bad task")
		}
		return nil
	}); err != nil {
		t.Fatalf("Consume() error = %v", err)
	}

	for _, id := range []string{"fail", "panic", "ok"} {
		if err := q.Enqueue(ctx, newTask(id, ports.TaskSendNotification)); err != nil {
			t.Fatalf("Enqueue(%s) error = %v", id, err)
		}
	}

	waitCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := q.WaitIdle(waitCtx); err != nil {
		t.Fatalf("WaitIdle() error = %v", err)
	}
	if got := handled.Load(); got != 3 {
		t.Fatalf("handled = %d, want 3", got)
	}
}

func TestLocalQueueRejectsAfterClose(t *testing.T) {
	q := NewLocalQueue(1, 1)
	if err := q.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := q.Enqueue(context.Background(), newTask("late", ports.TaskSyncComments)); !errors.Is(err, ErrQueueClosed) {
		t.Fatalf("Enqueue() after close error = %v", err)
	}
	if err := q.WaitIdle(context.Background()); err != nil {
		t.Fatalf("WaitIdle() after close error = %v", err)
	}
}

func TestLocalQueueEnqueueHonorsContext(t *testing.T) {
	q := NewLocalQueue(1, 0)
	t.Cleanup(func() { _ = q.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := q.Enqueue(ctx, newTask("blocked", ports.TaskSyncComments)); !errors.Is(err, context.Canceled) {
		t.Fatalf("Enqueue() error = %v, want context.Canceled", err)
	}
	if err := q.WaitIdle(context.Background()); err != nil {
		t.Fatalf("WaitIdle() error = %v", err)
	}
}

func TestEnvelopeValidation(t *testing.T) {
	if _, err := encodeTask(ports.Task{Kind: ports.TaskSyncComments}); err == nil {
		t.Fatalf("encodeTask() expected error for missing id")
	}
	if _, err := decodeTask([]byte(`{"id":"x"}`)); err == nil {
		t.Fatalf("decodeTask() expected error for missing kind")
	}

	data, err := encodeTask(newTask("t-1", ports.TaskSyncRepository))
	if err != nil {
		t.Fatalf("encodeTask() error = %v", err)
	}
	task, err := decodeTask(data)
	if err != nil {
		t.Fatalf("decodeTask() error = %v", err)
	}
	if task.ID != "t-1" || task.Kind != ports.TaskSyncRepository || string(task.Payload) != `{"owner":"octo","name":"hello"}` {
		t.Fatalf("decodeTask() = %+v", task)
	}
}

func TestSubjectFor(t *testing.T) {
	if got := subjectFor("gissues.tasks.", ports.TaskSyncComments); got != "gissues.tasks.sync_comments" {
		t.Fatalf("subjectFor() = %q", got)
	}
	if got := subjectFor("gissues.tasks", ">"); got != "gissues.tasks.>" {
		t.Fatalf("subjectFor(>) = %q", got)
	}
}
