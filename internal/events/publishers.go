package events

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/rs/zerolog"
	kafkaGo "github.com/segmentio/kafka-go"

	"github.com/noah-isme/bookstore/internal/resilience"
)

// LogPublisher writes every event to the structured log.
type LogPublisher struct {
	Logger zerolog.Logger
}

// Publish implements Publisher.
func (p LogPublisher) Publish(_ context.Context, ev Event) error {
	p.Logger.Info().
		Str("event_id", ev.ID.String()).
		Str("topic", ev.Topic).
		Str("key", ev.Key).
		RawJSON("payload", ev.Payload).
		Msg("domain_event")
	return nil
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkaGo.Message) error
	Close() error
}

// KafkaPublisher writes events to Kafka, one message per event keyed by Event.Key.
type KafkaPublisher struct {
	writer  messageWriter
	routes  map[string]string
	breaker *resilience.Breaker
}

// NewKafkaPublisher creates a publisher for brokers. routes maps event topics
// to Kafka topics; unmapped topics are published under their own name.
func NewKafkaPublisher(brokers []string, routes map[string]string) *KafkaPublisher {
	return newKafkaPublisher(&kafkaGo.Writer{
		Addr:                   kafkaGo.TCP(brokers...),
		Balancer:               &kafkaGo.LeastBytes{},
		AllowAutoTopicCreation: true,
	}, routes)
}

func newKafkaPublisher(w messageWriter, routes map[string]string) *KafkaPublisher {
	if routes == nil {
		routes = map[string]string{}
	}
	return &KafkaPublisher{writer: w, routes: routes}
}

// WithBreaker guards writes with b so an unreachable broker fails fast.
func (p *KafkaPublisher) WithBreaker(b *resilience.Breaker) *KafkaPublisher {
	p.breaker = b
	return p
}

// Publish implements Publisher. The whole event envelope is the message value.
func (p *KafkaPublisher) Publish(ctx context.Context, ev Event) error {
	if p == nil || p.writer == nil {
		return errors.New("events: kafka writer not configured")
	}
	topic := ev.Topic
	if mapped, ok := p.routes[ev.Topic]; ok && mapped != "" {
		topic = mapped
	}
	value, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	msg := kafkaGo.Message{
		Topic: topic,
		Key:   []byte(ev.Key),
		Value: value,
		Headers: []kafkaGo.Header{
			{Key: "event-id", Value: []byte(ev.ID.String())},
			{Key: "event-topic", Value: []byte(ev.Topic)},
		},
	}
	if p.breaker == nil {
		return p.writer.WriteMessages(ctx, msg)
	}
	return p.breaker.Do(ctx, func(ctx context.Context) error {
		return p.writer.WriteMessages(ctx, msg)
	})
}

// Close flushes and closes the underlying writer.
func (p *KafkaPublisher) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
