package notify_test

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/bookstore/internal/common"
	"github.com/noah-isme/bookstore/internal/notify"
	"github.com/noah-isme/bookstore/internal/resilience"
)

type failingSender struct{}

func (failingSender) Send(string, string, string) error { return errors.New("smtp down") }

type fakeEnqueuer struct {
	tasks []*asynq.Task
	opts  [][]asynq.Option
	err   error
}

func (f *fakeEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.tasks = append(f.tasks, task)
	f.opts = append(f.opts, opts)
	return &asynq.TaskInfo{ID: "task-1"}, nil
}

var _ notify.TaskEnqueuer = (*fakeEnqueuer)(nil)

func TestEmailNotifierSendsOrderPlaced(t *testing.T) {
	mail := &common.InMemoryEmail{}
	n := notify.EmailNotifier{Mail: mail, Enabled: true, From: "Bookstore"}

	require.NoError(t, n.Notify(context.Background(), notify.OrderPlaced("alice", "ord-1")))
	out := mail.Outbox()
	require.Len(t, out, 1)
	require.Equal(t, "alice", out[0].To)
	require.Contains(t, out[0].Subject, "ord-1")
	require.Contains(t, out[0].Body, notify.OrderPlacedBody)
	require.Contains(t, out[0].Body, "Bookstore")
}

func TestEmailNotifierDisabledOrNoRecipient(t *testing.T) {
	mail := &common.InMemoryEmail{}
	require.NoError(t, notify.EmailNotifier{Mail: mail}.Notify(context.Background(), notify.OrderPlaced("a", "1")))
	require.NoError(t, notify.EmailNotifier{Mail: mail, Enabled: true}.Notify(context.Background(), notify.Message{To: "  "}))
	require.Empty(t, mail.Outbox())
}

func TestEmailNotifierDelayHonoursContext(t *testing.T) {
	mail := &common.InMemoryEmail{}
	n := notify.EmailNotifier{Mail: mail, Enabled: true, Delay: time.Hour}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := n.Notify(ctx, notify.OrderPlaced("bob", "2"))
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Empty(t, mail.Outbox())
}

func TestMultiJoinsErrors(t *testing.T) {
	mail := &common.InMemoryEmail{}
	m := notify.Multi{
		notify.EmailNotifier{Mail: failingSender{}, Enabled: true},
		nil,
		notify.EmailNotifier{Mail: mail, Enabled: true},
	}
	err := m.Notify(context.Background(), notify.OrderPlaced("carol", "3"))
	require.ErrorContains(t, err, "smtp down")
	require.Len(t, mail.Outbox(), 1)
}

func TestQueueNotifierEnqueuesTask(t *testing.T) {
	client := &fakeEnqueuer{}
	q := notify.NewQueueNotifierWithClient(client, notify.QueueOptions{Delay: time.Second})

	require.NoError(t, q.Notify(context.Background(), notify.OrderPlaced("dave", "ord-4")))
	require.Len(t, client.tasks, 1)
	require.Equal(t, notify.TaskTypeEmail, client.tasks[0].Type())
	require.JSONEq(t, `{"to":"dave","subject":"Order ord-4 placed","body":"Your order has been placed successfully!","orderId":"ord-4"}`,
		string(client.tasks[0].Payload()))
	require.Len(t, client.opts[0], 3)
}

func TestQueueNotifierBreakerOpensOnRedisFailure(t *testing.T) {
	client := &fakeEnqueuer{err: errors.New("redis: connection refused")}
	q := notify.NewQueueNotifierWithClient(client, notify.QueueOptions{
		Breaker: resilience.NewBreaker("notify-queue", 1, 0.5, time.Minute),
	})

	require.ErrorContains(t, q.Notify(context.Background(), notify.OrderPlaced("e", "5")), "connection refused")
	require.ErrorIs(t, q.Notify(context.Background(), notify.OrderPlaced("e", "6")), resilience.ErrOpenCircuit)
}

func TestTaskHandlerDeliversAndSkipsBadPayload(t *testing.T) {
	mail := &common.InMemoryEmail{}
	var logs bytes.Buffer
	h := notify.TaskHandler{
		Notifier: notify.EmailNotifier{Mail: mail, Enabled: true},
		Logger:   zerolog.New(&logs),
	}

	task, err := notify.NewEmailTask(notify.OrderPlaced("frank", "ord-7"))
	require.NoError(t, err)
	require.NoError(t, h.ProcessTask(context.Background(), task))
	require.Len(t, mail.Outbox(), 1)
	require.Contains(t, logs.String(), "notification delivered")

	err = h.ProcessTask(context.Background(), asynq.NewTask(notify.TaskTypeEmail, []byte("{broken")))
	require.ErrorIs(t, err, asynq.SkipRetry)
}

func TestTaskHandlerReturnsDeliveryErrorForRetry(t *testing.T) {
	h := notify.TaskHandler{Notifier: notify.EmailNotifier{Mail: failingSender{}, Enabled: true}, Logger: zerolog.Nop()}
	task, err := notify.NewEmailTask(notify.OrderPlaced("gina", "8"))
	require.NoError(t, err)

	err = h.ProcessTask(context.Background(), task)
	require.ErrorContains(t, err, "smtp down")
	require.NotErrorIs(t, err, asynq.SkipRetry)
}

func TestLogMailerWritesMessage(t *testing.T) {
	var buf bytes.Buffer
	n := notify.EmailNotifier{Mail: notify.LogMailer{Logger: zerolog.New(&buf)}, Enabled: true}
	require.NoError(t, n.Notify(context.Background(), notify.OrderPlaced("hana", "9")))
	require.Contains(t, buf.String(), `"to":"hana"`)
	require.Contains(t, buf.String(), notify.OrderPlacedBody)
}
