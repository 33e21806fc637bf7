package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/noah-isme/bookstore/internal/resilience"
)

// TaskTypeEmail is the asynq task type for queued notifications.
const TaskTypeEmail = "notify:email"

type taskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// QueueOptions tunes how notifications are enqueued.
type QueueOptions struct {
	Queue    string
	MaxRetry int
	Delay    time.Duration
	Breaker  *resilience.Breaker
}

// QueueNotifier hands messages to asynq instead of delivering them inline.
type QueueNotifier struct {
	client taskEnqueuer
	opts   QueueOptions
}

// NewQueueNotifier wraps an asynq client.
func NewQueueNotifier(client *asynq.Client, opts QueueOptions) *QueueNotifier {
	return newQueueNotifier(client, opts)
}

func newQueueNotifier(client taskEnqueuer, opts QueueOptions) *QueueNotifier {
	if opts.Queue == "" {
		opts.Queue = "default"
	}
	if opts.MaxRetry <= 0 {
		opts.MaxRetry = 5
	}
	return &QueueNotifier{client: client, opts: opts}
}

// NewEmailTask encodes msg as a notify:email task.
func NewEmailTask(msg Message) (*asynq.Task, error) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("notify: encode task: %w", err)
	}
	return asynq.NewTask(TaskTypeEmail, payload), nil
}

// Notify implements Notifier by enqueueing the message. The configured delay
// is applied by the queue, not by blocking the caller.
func (q *QueueNotifier) Notify(ctx context.Context, msg Message) error {
	if q == nil || q.client == nil {
		return errors.New("notify: queue client not configured")
	}
	task, err := NewEmailTask(msg)
	if err != nil {
		return err
	}
	opts := []asynq.Option{asynq.Queue(q.opts.Queue), asynq.MaxRetry(q.opts.MaxRetry)}
	if q.opts.Delay > 0 {
		opts = append(opts, asynq.ProcessIn(q.opts.Delay))
	}
	enqueue := func(ctx context.Context) error {
		_, err := q.client.EnqueueContext(ctx, task, opts...)
		return err
	}
	if q.opts.Breaker != nil {
		err = q.opts.Breaker.Do(ctx, enqueue)
	} else {
		err = enqueue(ctx)
	}
	if err != nil {
		return fmt.Errorf("notify: enqueue: %w", err)
	}
	return nil
}

// TaskHandler processes notify:email tasks on the worker side.
type TaskHandler struct {
	Notifier Notifier
	Logger   zerolog.Logger
}

// ProcessTask implements asynq.Handler. Undecodable payloads are not retried.
func (h TaskHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var msg Message
	if err := json.Unmarshal(t.Payload(), &msg); err != nil {
		h.Logger.Error().Err(err).Str("task", t.Type()).Msg("notification payload invalid")
		return fmt.Errorf("notify: decode task: %v: %w", err, asynq.SkipRetry)
	}
	if h.Notifier == nil {
		return fmt.Errorf("notify: no notifier: %w", asynq.SkipRetry)
	}
	if err := h.Notifier.Notify(ctx, msg); err != nil {
		h.Logger.Warn().Err(err).Str("to", msg.To).Str("order_id", msg.OrderID).Msg("notification delivery failed")
		return err
	}
	h.Logger.Info().Str("to", msg.To).Str("order_id", msg.OrderID).Msg("notification delivered")
	return nil
}

// Register mounts the handler on mux.
func (h TaskHandler) Register(mux *asynq.ServeMux) {
	mux.Handle(TaskTypeEmail, h)
}
