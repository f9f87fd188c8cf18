// Package events publishes ledger lifecycle events to an external broker.
// Deployments without a broker get the no-op publisher.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
)

// IngestCompleted is emitted after every ingestion run.
type IngestCompleted struct {
	InsertedCount int       `json:"inserted_count"`
	UpdatedCount  int       `json:"updated_count"`
	SkippedCount  int       `json:"skipped_count"`
	ErrorCount    int       `json:"error_count"`
	CompletedAt   time.Time `json:"completed_at"`
}

// Noop discards events.
type Noop struct{}

// Publish does nothing.
func (Noop) Publish(ctx context.Context, event any) error { return nil }

// ─── Kafka ──────────────────────────────────────────────────────────────────

// KafkaPublisher writes events to a Kafka topic as JSON.
type KafkaPublisher struct {
	writer *kafka.Writer
}

// NewKafkaPublisher creates a publisher for the given brokers and topic.
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(brokers...),
			Topic:    topic,
			Balancer: &kafka.LeastBytes{},
		},
	}
}

// Publish marshals the event and writes one message.
func (p *KafkaPublisher) Publish(ctx context.Context, event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{Value: data})
}

// Close flushes and closes the underlying writer.
func (p *KafkaPublisher) Close() error { return p.writer.Close() }
