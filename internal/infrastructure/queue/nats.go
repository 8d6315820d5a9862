package queue

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/nats-io/nats.go"

	"gissues/internal/bootstrap/config"
	"gissues/internal/bootstrap/logging"
	"gissues/internal/errs"
	"gissues/internal/ports"
)

// NATSQueue publishes tasks as JSON envelopes on "<prefix>.<kind>". Consumers join one
// queue group so each task is handled by exactly one worker process. Delivery is core
// NATS: at most once, no redelivery.
type NATSQueue struct {
	conn    *nats.Conn
	prefix  string
	group   string
	workers int
	buffer  int

	tracker tracker

	mu   sync.Mutex
	sub  *nats.Subscription
	done chan struct{}
	wg   sync.WaitGroup
}

var (
	_ ports.TaskQueue    = (*NATSQueue)(nil)
	_ ports.TaskConsumer = (*NATSQueue)(nil)
)

func DialNATS(cfg config.QueueConfig) (*NATSQueue, error) {
	conn, err := nats.Connect(cfg.NATS.URL, nats.Name("gissues"), nats.MaxReconnects(-1))
	if err != nil {
		return nil, errs.Wrapf(err, "connect nats %s", cfg.NATS.URL)
	}
	return NewNATSQueue(conn, cfg.NATS.SubjectPrefix, cfg.NATS.QueueGroup, cfg.Workers, cfg.Buffer), nil
}

func NewNATSQueue(conn *nats.Conn, prefix string, group string, workers int, buffer int) *NATSQueue {
	if workers <= 0 {
		workers = 1
	}
	if buffer <= 0 {
		buffer = 64
	}
	return &NATSQueue{
		conn:    conn,
		prefix:  prefix,
		group:   group,
		workers: workers,
		buffer:  buffer,
		done:    make(chan struct{}),
	}
}

func (q *NATSQueue) Enqueue(ctx context.Context, task ports.Task) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return errs.Wrap(err, "check context")
	}
	data, err := encodeTask(task)
	if err != nil {
		return err
	}

	msg := nats.NewMsg(subjectFor(q.prefix, task.Kind))
	msg.Header.Set(nats.MsgIdHdr, task.ID)
	msg.Data = data
	if err := q.conn.PublishMsg(msg); err != nil {
		return errs.Wrapf(err, "publish task %s", task.ID)
	}
	return nil
}

func (q *NATSQueue) Consume(ctx context.Context, handler ports.TaskHandler) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if handler == nil {
		return errors.New("task handler is required")
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.sub != nil {
		return nil
	}

	logCtx := logging.WithComponent(ctx, "queue.nats")
	messages := make(chan *nats.Msg, q.buffer)
	subject := subjectFor(q.prefix, ">")
	sub, err := q.conn.ChanQueueSubscribe(subject, q.group, messages)
	if err != nil {
		return errs.Wrapf(err, "subscribe %s", subject)
	}
	q.sub = sub

	logging.Info(logCtx, "consuming nats tasks",
		slog.String("subject", subject),
		slog.String("queue_group", q.group),
		slog.Int("workers", q.workers),
	)
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.work(logging.WithAttrs(logCtx, slog.Int("worker", i)), messages, handler)
	}
	return nil
}

func (q *NATSQueue) work(ctx context.Context, messages <-chan *nats.Msg, handler ports.TaskHandler) {
	defer q.wg.Done()
	for {
		select {
		case <-q.done:
			return
		case <-ctx.Done():
			return
		case msg := <-messages:
			q.tracker.add()
			task, err := decodeTask(msg.Data)
			if err != nil {
				logging.Error(ctx, "dropping malformed task", slog.String("subject", msg.Subject), errs.Attr(err))
				q.tracker.done()
				continue
			}
			_ = runTask(ctx, handler, task)
			q.tracker.done()
		}
	}
}

// WaitIdle flushes outstanding publishes and waits for tasks this process is running.
// Tasks picked up by other workers in the group are not observed.
func (q *NATSQueue) WaitIdle(ctx context.Context) error {
	if err := q.conn.FlushWithContext(ctx); err != nil {
		return errs.Wrap(err, "flush nats")
	}
	return q.tracker.wait(ctx)
}

func (q *NATSQueue) Close() error {
	q.mu.Lock()
	sub := q.sub
	q.sub = nil
	q.mu.Unlock()

	select {
	case <-q.done:
		return nil
	default:
	}

	var unsubErr error
	if sub != nil {
		unsubErr = sub.Unsubscribe()
	}
	close(q.done)
	q.wg.Wait()
	q.conn.Close()
	if unsubErr != nil && !errors.Is(unsubErr, nats.ErrConnectionClosed) {
		return errs.Wrap(unsubErr, "unsubscribe tasks")
	}
	return nil
}
