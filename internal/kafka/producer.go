// Package kafka wraps segmentio/kafka-go with the two message flows taskbot
// uses: publishing task lifecycle events and consuming inbound chat events.
// Trace context crosses the broker via message headers.
package kafka

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
)

const (
	// TopicLifecycle carries task lifecycle events for downstream consumers
	// (chat cards, digests, audit).
	TopicLifecycle = "tasks.lifecycle"
	// TopicChatEvents carries inbound chat platform events. Delivery is
	// at-least-once, so consumers must dedup on message ID.
	TopicChatEvents = "chat.events"
	// TopicReminders carries deadline reminders and the daily report for the
	// chat transport to deliver.
	TopicReminders = "tasks.reminders"
)

// Producer publishes messages to a Kafka topic.
type Producer interface {
	Publish(ctx context.Context, topic, key string, value []byte) error
	Close() error
}

type producer struct {
	writer *kafka.Writer
}

// NewProducer creates a Kafka producer connected to the given brokers.
// Messages are keyed by task ID so per-task ordering holds within a topic.
func NewProducer(brokers []string) Producer {
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Balancer:     &kafka.Hash{}, // key → deterministic partition
		RequiredAcks: kafka.RequireOne,
		MaxAttempts:  3,
		WriteTimeout: 10 * time.Second,
		ReadTimeout:  10 * time.Second,
		AllowAutoTopicCreation: true,
	}
	return &producer{writer: w}
}

func (p *producer) Publish(ctx context.Context, topic, key string, value []byte) error {
	// Inject the active trace context so consumers can continue the trace.
	headers := make(HeaderCarrier, 0)
	otel.GetTextMapPropagator().Inject(ctx, &headers)

	err := p.writer.WriteMessages(ctx, kafka.Message{
		Topic:   topic,
		Key:     []byte(key),
		Value:   value,
		Headers: []kafka.Header(headers),
		Time:    time.Now(),
	})
	if err != nil {
		return fmt.Errorf("kafka publish to %s: %w", topic, err)
	}
	return nil
}

func (p *producer) Close() error {
	return p.writer.Close()
}
