package events_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	kafkaGo "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/bookstore/internal/events"
	"github.com/noah-isme/bookstore/internal/resilience"
)

type capturePublisher struct {
	events []events.Event
	err    error
}

func (c *capturePublisher) Publish(_ context.Context, ev events.Event) error {
	c.events = append(c.events, ev)
	return c.err
}

type fakeWriter struct {
	msgs   []kafkaGo.Message
	closed bool
	err    error
	calls  int
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafkaGo.Message) error {
	f.calls++
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

var _ events.MessageWriter = (*fakeWriter)(nil)

func TestEmitFansOutAndJoinsErrors(t *testing.T) {
	ok := &capturePublisher{}
	failing := &capturePublisher{err: errors.New("broker down")}
	fixed := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	bus := &events.Bus{Publishers: []events.Publisher{failing, nil, ok}, Now: func() time.Time { return fixed }}

	ev, err := bus.Emit(context.Background(), events.TopicOrderCreated, "order-1", map[string]any{"total": "72.00"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "broker down")
	require.Len(t, ok.events, 1)
	require.Len(t, failing.events, 1)
	require.Equal(t, fixed, ev.OccurredAt)
	require.JSONEq(t, `{"total":"72.00"}`, string(ok.events[0].Payload))
}

func TestEmitValidatesInput(t *testing.T) {
	bus := &events.Bus{}
	_, err := bus.Emit(context.Background(), " ", "k", nil)
	require.Error(t, err)

	_, err = bus.Emit(context.Background(), events.TopicSessionStarted, "k", []byte("{not json"))
	require.Error(t, err)

	ev, err := bus.Emit(context.Background(), events.TopicSessionStarted, "k", nil)
	require.NoError(t, err)
	require.JSONEq(t, `{}`, string(ev.Payload))
}

func TestLogPublisherWritesEvent(t *testing.T) {
	var buf bytes.Buffer
	bus := &events.Bus{Publishers: []events.Publisher{events.LogPublisher{Logger: zerolog.New(&buf)}}}
	_, err := bus.Emit(context.Background(), events.TopicSessionStarted, "alice", map[string]string{"username": "alice"})
	require.NoError(t, err)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "session.started", entry["topic"])
	require.Equal(t, map[string]any{"username": "alice"}, entry["payload"])
}

func TestKafkaPublisherRoutesTopics(t *testing.T) {
	w := &fakeWriter{}
	pub := events.NewKafkaPublisherWithWriter(w, map[string]string{events.TopicOrderCreated: "orders.created"})
	bus := &events.Bus{Publishers: []events.Publisher{pub}}

	ev, err := bus.Emit(context.Background(), events.TopicOrderCreated, "order-9", map[string]int{"lines": 2})
	require.NoError(t, err)
	_, err = bus.Emit(context.Background(), events.TopicSessionStarted, "bob", nil)
	require.NoError(t, err)

	require.Len(t, w.msgs, 2)
	require.Equal(t, "orders.created", w.msgs[0].Topic)
	require.Equal(t, "order-9", string(w.msgs[0].Key))
	require.Equal(t, "session.started", w.msgs[1].Topic)

	var decoded events.Event
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &decoded))
	require.Equal(t, ev.ID, decoded.ID)

	require.NoError(t, pub.Close())
	require.True(t, w.closed)
}

func TestKafkaPublisherFailsFastWhenBreakerOpen(t *testing.T) {
	w := &fakeWriter{err: errors.New("dial tcp: connection refused")}
	pub := events.NewKafkaPublisherWithWriter(w, nil).
		WithBreaker(resilience.NewBreaker("kafka", 1, 0.5, time.Minute))
	bus := &events.Bus{Publishers: []events.Publisher{pub}}

	_, err := bus.Emit(context.Background(), events.TopicOrderCreated, "order-1", nil)
	require.ErrorContains(t, err, "connection refused")

	_, err = bus.Emit(context.Background(), events.TopicOrderCreated, "order-2", nil)
	require.ErrorIs(t, err, resilience.ErrOpenCircuit)
	require.Equal(t, 1, w.calls)
}
