package telemetry

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/haggle-hub/haggle-hub/internal/domain/offer"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	sums := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if data, ok := m.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range data.DataPoints {
					sums[m.Name] += dp.Value
				}
			}
		}
	}
	return sums
}

func TestTelemetry_Transitions(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	tel, err := New(mp, noop.NewTracerProvider())
	require.NoError(t, err)

	ctx := context.Background()
	_, done := tel.StartTransition(ctx, offer.ActionAccept, uuid.New())
	done(nil)
	_, done = tel.StartTransition(ctx, offer.ActionAccept, uuid.New())
	done(offer.ErrConflictAlreadyResolved)

	tel.RecordSweep(ctx, uuid.New(), 3, 1)

	sums := collect(t, reader)
	assert.Equal(t, int64(2), sums["negotiation.transitions"])
	assert.Equal(t, int64(3), sums["negotiation.sweep.expired"])
	assert.Equal(t, int64(1), sums["negotiation.sweep.failed"])
}

func TestTelemetry_NilIsNoop(t *testing.T) {
	var tel *Telemetry
	ctx, done := tel.StartTransition(context.Background(), offer.ActionCounter, uuid.New())
	assert.NotNil(t, ctx)
	done(nil)
	tel.RecordSweep(ctx, uuid.New(), 1, 0)
}

func TestOutcome(t *testing.T) {
	assert.Equal(t, "ok", Outcome(nil))
	assert.Equal(t, "conflict", Outcome(fmt.Errorf("wrap: %w", offer.ErrConflictAlreadyResolved)))
	assert.Equal(t, "expired", Outcome(offer.ErrOfferExpired))
	assert.Equal(t, "invalid_transition", Outcome(offer.ErrItemUnavailable))
	assert.Equal(t, "dependency_failure", Outcome(assert.AnError))
}
