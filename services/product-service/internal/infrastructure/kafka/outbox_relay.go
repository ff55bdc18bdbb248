package kafka

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/bibbank/bib/pkg/events"
	pkgkafka "github.com/bibbank/bib/pkg/kafka"
)

// OutboxRelay moves committed outbox rows to Kafka.
type OutboxRelay struct {
	outbox    events.OutboxRepository
	producer  MessageProducer
	logger    *slog.Logger
	interval  time.Duration
	batchSize int
}

func NewOutboxRelay(outbox events.OutboxRepository, producer MessageProducer, interval time.Duration, batchSize int, logger *slog.Logger) *OutboxRelay {
	return &OutboxRelay{
		outbox:    outbox,
		producer:  producer,
		interval:  interval,
		batchSize: batchSize,
		logger:    logger.With("component", "outbox-relay"),
	}
}

// Run relays on every tick until ctx is cancelled.
func (r *OutboxRelay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info("outbox relay starting", "interval", r.interval, "batch_size", r.batchSize)
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("outbox relay stopping")
			return nil
		case <-ticker.C:
			for {
				n, err := r.RelayOnce(ctx)
				if err != nil {
					r.logger.ErrorContext(ctx, "outbox relay failed", "error", err)
					break
				}
				if n < r.batchSize {
					break
				}
			}
		}
	}
}

// RelayOnce publishes one batch of unpublished rows and marks them published.
// Rows are published in order per topic; a failed topic stops the batch so
// later rows are retried after it.
func (r *OutboxRelay) RelayOnce(ctx context.Context) (int, error) {
	entries, err := r.outbox.FetchUnpublished(ctx, r.batchSize)
	if err != nil {
		return 0, fmt.Errorf("fetch outbox: %w", err)
	}
	if len(entries) == 0 {
		return 0, nil
	}

	var published []uuid.UUID
	for start := 0; start < len(entries); {
		end := start
		for end < len(entries) && entries[end].Topic == entries[start].Topic {
			end++
		}
		run := entries[start:end]
		messages := make([]pkgkafka.Message, 0, len(run))
		for _, e := range run {
			messages = append(messages, message(e))
		}
		if err := r.producer.Publish(ctx, run[0].Topic, messages...); err != nil {
			if markErr := r.mark(ctx, published); markErr != nil {
				return len(published), markErr
			}
			return len(published), fmt.Errorf("publish to %s: %w", run[0].Topic, err)
		}
		for _, e := range run {
			published = append(published, e.ID)
		}
		start = end
	}

	return len(published), r.mark(ctx, published)
}

func (r *OutboxRelay) mark(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	if err := r.outbox.MarkPublished(ctx, ids, time.Now().UTC()); err != nil {
		return fmt.Errorf("mark outbox published: %w", err)
	}
	return nil
}
