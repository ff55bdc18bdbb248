package kafka

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bibbank/bib/pkg/events"
	pkgkafka "github.com/bibbank/bib/pkg/kafka"
	"github.com/bibbank/bib/services/product-service/internal/domain/port"
)

var _ port.EventPublisher = (*Publisher)(nil)

// MessageProducer writes messages to a topic. *pkgkafka.Producer satisfies it.
type MessageProducer interface {
	Publish(ctx context.Context, topic string, messages ...pkgkafka.Message) error
}

// Publisher implements port.EventPublisher using Kafka.
type Publisher struct {
	producer MessageProducer
	logger   *slog.Logger
}

// NewPublisher creates a new Kafka-based event publisher.
func NewPublisher(producer MessageProducer, logger *slog.Logger) *Publisher {
	return &Publisher{
		producer: producer,
		logger:   logger.With("component", "kafka-publisher"),
	}
}

// Publish sends domain events to the specified Kafka topic.
func (p *Publisher) Publish(ctx context.Context, topic string, evts ...events.DomainEvent) error {
	messages := make([]pkgkafka.Message, 0, len(evts))
	for _, evt := range evts {
		p.logger.DebugContext(ctx, "publishing event",
			"topic", topic,
			"event_type", evt.EventType(),
			"aggregate_id", evt.AggregateID(),
		)
		messages = append(messages, message(events.NewOutboxEntry(topic, evt)))
	}

	if len(messages) == 0 {
		return nil
	}

	if err := p.producer.Publish(ctx, topic, messages...); err != nil {
		return fmt.Errorf("failed to publish events to topic %s: %w", topic, err)
	}
	return nil
}

// message keys by aggregate so one account's events stay ordered on a partition.
func message(e events.OutboxEntry) pkgkafka.Message {
	return pkgkafka.Message{
		Key:   []byte(e.AggregateID.String()),
		Value: e.Payload,
		Headers: map[string]string{
			"event_type":     e.EventType,
			"aggregate_type": e.AggregateType,
			"event_id":       e.ID.String(),
			"occurred_at":    e.CreatedAt.UTC().Format(time.RFC3339Nano),
		},
	}
}
