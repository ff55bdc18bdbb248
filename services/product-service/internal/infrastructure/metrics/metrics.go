package metrics

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/bibbank/bib/services/product-service/internal/domain/port"
)

var _ port.Metrics = (*Recorder)(nil)

// Recorder implements port.Metrics with OpenTelemetry counters.
type Recorder struct {
	rejected  metric.Int64Counter
	scheduled metric.Int64Counter
	batches   metric.Int64Counter
}

// New creates the product engine instruments on meter.
func New(meter metric.Meter) (*Recorder, error) {
	rejected, err := meter.Int64Counter("product_postings_rejected",
		metric.WithDescription("Posting batches refused by pre-posting checks"),
	)
	if err != nil {
		return nil, fmt.Errorf("create rejected counter: %w", err)
	}
	scheduled, err := meter.Int64Counter("product_scheduled_events",
		metric.WithDescription("Scheduled contract events run"),
	)
	if err != nil {
		return nil, fmt.Errorf("create scheduled counter: %w", err)
	}
	batches, err := meter.Int64Counter("product_posting_batches",
		metric.WithDescription("Posting batches committed, by the hook that produced or admitted them"),
	)
	if err != nil {
		return nil, fmt.Errorf("create batches counter: %w", err)
	}
	return &Recorder{rejected: rejected, scheduled: scheduled, batches: batches}, nil
}

func (r *Recorder) PostingsRejected(ctx context.Context, product, reason string) {
	r.rejected.Add(ctx, 1, metric.WithAttributes(
		attribute.String("product", product),
		attribute.String("reason", reason),
	))
}

func (r *Recorder) PostingBatches(ctx context.Context, product, hook string, n int) {
	r.batches.Add(ctx, int64(n), metric.WithAttributes(
		attribute.String("product", product),
		attribute.String("hook", hook),
	))
}

func (r *Recorder) ScheduledEventRan(ctx context.Context, product, eventType string) {
	r.scheduled.Add(ctx, 1, metric.WithAttributes(
		attribute.String("product", product),
		attribute.String("event", eventType),
	))
}
