package telemetry

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/haggle-hub/haggle-hub/internal/domain/offer"
)

const instrumentationName = "github.com/haggle-hub/haggle-hub/negotiation"

// Telemetry records negotiation metrics and spans. A nil *Telemetry is a no-op.
type Telemetry struct {
	tracer      trace.Tracer
	transitions metric.Int64Counter
	duration    metric.Float64Histogram
	expired     metric.Int64Counter
	sweepErrors metric.Int64Counter
}

// New builds instruments from the given providers.
func New(mp metric.MeterProvider, tp trace.TracerProvider) (*Telemetry, error) {
	meter := mp.Meter(instrumentationName)

	transitions, err := meter.Int64Counter("negotiation.transitions",
		metric.WithDescription("Offer transitions attempted, by action and outcome"))
	if err != nil {
		return nil, err
	}
	duration, err := meter.Float64Histogram("negotiation.transition.duration",
		metric.WithDescription("Transition latency including the store transaction"),
		metric.WithUnit("ms"))
	if err != nil {
		return nil, err
	}
	expired, err := meter.Int64Counter("negotiation.sweep.expired",
		metric.WithDescription("Offers resolved by the expiry sweeper"))
	if err != nil {
		return nil, err
	}
	sweepErrors, err := meter.Int64Counter("negotiation.sweep.failed",
		metric.WithDescription("Offers the expiry sweeper could not resolve"))
	if err != nil {
		return nil, err
	}

	return &Telemetry{
		tracer:      tp.Tracer(instrumentationName),
		transitions: transitions,
		duration:    duration,
		expired:     expired,
		sweepErrors: sweepErrors,
	}, nil
}

// NewGlobal builds instruments from the globally registered providers.
func NewGlobal() (*Telemetry, error) {
	return New(otel.GetMeterProvider(), otel.GetTracerProvider())
}

// StartTransition opens a span for one action. The returned func records the outcome.
func (t *Telemetry) StartTransition(ctx context.Context, action offer.Action, offerID uuid.UUID) (context.Context, func(error)) {
	if t == nil {
		return ctx, func(error) {}
	}
	start := time.Now()
	ctx, span := t.tracer.Start(ctx, "negotiation."+string(action),
		trace.WithAttributes(
			attribute.String("offer.action", string(action)),
			attribute.String("offer.id", offerID.String()),
		))

	return ctx, func(err error) {
		attrs := metric.WithAttributes(
			attribute.String("action", string(action)),
			attribute.String("outcome", Outcome(err)),
		)
		t.transitions.Add(ctx, 1, attrs)
		t.duration.Record(ctx, float64(time.Since(start).Microseconds())/1000, attrs)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, Outcome(err))
		}
		span.End()
	}
}

// RecordSweep counts the result of one sweep over an item.
func (t *Telemetry) RecordSweep(ctx context.Context, itemID uuid.UUID, expired, failed int) {
	if t == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("item.id", itemID.String()))
	if expired > 0 {
		t.expired.Add(ctx, int64(expired), attrs)
	}
	if failed > 0 {
		t.sweepErrors.Add(ctx, int64(failed), attrs)
	}
}

// Outcome is the low-cardinality label for an action result.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, offer.ErrConflictAlreadyResolved):
		return "conflict"
	case errors.Is(err, offer.ErrDuplicateActiveOffer):
		return "duplicate"
	case errors.Is(err, offer.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, offer.ErrOfferExpired):
		return "expired"
	case errors.Is(err, offer.ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, offer.ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, offer.ErrNotFound):
		return "not_found"
	default:
		return "dependency_failure"
	}
}
