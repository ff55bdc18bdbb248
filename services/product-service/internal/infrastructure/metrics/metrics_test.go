package metrics_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/bibbank/bib/services/product-service/internal/infrastructure/metrics"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Sum[int64] {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := map[string]metricdata.Sum[int64]{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if sum, ok := m.Data.(metricdata.Sum[int64]); ok {
				out[m.Name] = sum
			}
		}
	}
	return out
}

func value(sum metricdata.Sum[int64], kv ...attribute.KeyValue) int64 {
	want := attribute.NewSet(kv...)
	for _, dp := range sum.DataPoints {
		if dp.Attributes.Equals(&want) {
			return dp.Value
		}
	}
	return 0
}

func TestRecorder(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	rec, err := metrics.New(provider.Meter("test"))
	require.NoError(t, err)

	ctx := context.Background()
	rec.PostingsRejected(ctx, "casa", "INSUFFICIENT_FUNDS")
	rec.PostingsRejected(ctx, "casa", "INSUFFICIENT_FUNDS")
	rec.PostingsRejected(ctx, "murabahah", "AGAINST_TNC")
	rec.PostingBatches(ctx, "casa", "post_posting_code", 3)
	rec.ScheduledEventRan(ctx, "credit_card", "STATEMENT_CUT_OFF")

	sums := collect(t, reader)

	rejected := sums["product_postings_rejected"]
	assert.Equal(t, int64(2), value(rejected, attribute.String("product", "casa"), attribute.String("reason", "INSUFFICIENT_FUNDS")))
	assert.Equal(t, int64(1), value(rejected, attribute.String("product", "murabahah"), attribute.String("reason", "AGAINST_TNC")))
	assert.True(t, rejected.IsMonotonic)

	assert.Equal(t, int64(3), value(sums["product_posting_batches"], attribute.String("product", "casa"), attribute.String("hook", "post_posting_code")))
	assert.Equal(t, int64(1), value(sums["product_scheduled_events"], attribute.String("product", "credit_card"), attribute.String("event", "STATEMENT_CUT_OFF")))
}
