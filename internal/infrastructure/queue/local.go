package queue

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"gissues/internal/bootstrap/logging"
	"gissues/internal/errs"
	"gissues/internal/ports"
)

// LocalQueue is an in-process queue drained by a fixed worker pool. Enqueue never blocks:
// tasks land in an unbounded backlog and a dispatcher hands them to the workers through
// a channel of the configured buffer size, so a worker can fan out into its own pool.
// Tasks not yet run at Close are dropped.
type LocalQueue struct {
	tasks   chan ports.Task
	workers int

	tracker tracker

	mu      sync.Mutex
	backlog []ports.Task
	closed  bool
	wake    chan struct{}

	startOnce sync.Once
	closeOnce sync.Once
	done      chan struct{}
	wg        sync.WaitGroup
}

var (
	_ ports.TaskQueue    = (*LocalQueue)(nil)
	_ ports.TaskConsumer = (*LocalQueue)(nil)
)

func NewLocalQueue(workers int, buffer int) *LocalQueue {
	if workers <= 0 {
		workers = 1
	}
	if buffer < 0 {
		buffer = 0
	}
	return &LocalQueue{
		tasks:   make(chan ports.Task, buffer),
		workers: workers,
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
}

func (q *LocalQueue) Enqueue(ctx context.Context, task ports.Task) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if err := validateTask(task); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return errs.Wrap(err, "enqueue task")
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrQueueClosed
	}
	q.tracker.add()
	q.backlog = append(q.backlog, task)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
	return nil
}

// Consume starts the dispatcher and the worker pool; later calls are no-ops.
func (q *LocalQueue) Consume(ctx context.Context, handler ports.TaskHandler) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if handler == nil {
		return errors.New("task handler is required")
	}
	select {
	case <-q.done:
		return ErrQueueClosed
	default:
	}

	q.startOnce.Do(func() {
		logCtx := logging.WithComponent(ctx, "queue.local")
		logging.Info(logCtx, "starting local workers", slog.Int("workers", q.workers), slog.Int("buffer", cap(q.tasks)))
		q.wg.Add(1)
		go q.dispatch(logCtx)
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go q.work(logging.WithAttrs(logCtx, slog.Int("worker", i)), handler)
		}
	})
	return nil
}

// dispatch moves backlog tasks onto the worker channel in FIFO order.
func (q *LocalQueue) dispatch(ctx context.Context) {
	defer q.wg.Done()
	for {
		task, ok := q.pop()
		if !ok {
			select {
			case <-q.wake:
				continue
			case <-q.done:
				return
			case <-ctx.Done():
				return
			}
		}

		select {
		case q.tasks <- task:
		case <-q.done:
			q.pushFront(task)
			return
		case <-ctx.Done():
			q.pushFront(task)
			return
		}
	}
}

func (q *LocalQueue) pop() (ports.Task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.backlog) == 0 {
		return ports.Task{}, false
	}
	task := q.backlog[0]
	q.backlog[0] = ports.Task{}
	q.backlog = q.backlog[1:]
	return task, true
}

func (q *LocalQueue) pushFront(task ports.Task) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.backlog = append([]ports.Task{task}, q.backlog...)
}

func (q *LocalQueue) work(ctx context.Context, handler ports.TaskHandler) {
	defer q.wg.Done()
	for {
		select {
		case <-q.done:
			return
		case <-ctx.Done():
			return
		case task := <-q.tasks:
			_ = runTask(ctx, handler, task)
			q.tracker.done()
		}
	}
}

func (q *LocalQueue) WaitIdle(ctx context.Context) error {
	return q.tracker.wait(ctx)
}

func (q *LocalQueue) Close() error {
	q.closeOnce.Do(func() {
		q.mu.Lock()
		q.closed = true
		q.mu.Unlock()

		close(q.done)
		q.wg.Wait()

		q.mu.Lock()
		dropped := len(q.backlog)
		q.backlog = nil
		q.mu.Unlock()
		for i := 0; i < dropped; i++ {
			q.tracker.done()
		}
		for {
			select {
			case <-q.tasks:
				q.tracker.done()
			default:
				return
			}
		}
	})
	return nil
}
