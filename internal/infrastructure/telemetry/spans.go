package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the tracer used for application service spans
const TracerName = "bizdash-backend"

// Span attributes set by the billing services
var (
	SpanSubscriberID = attribute.Key("billing.subscriber_id")
	SpanTier         = attribute.Key("billing.tier")
	SpanSeatCount    = attribute.Key("billing.seat_count")
	SpanPeriod       = attribute.Key("billing.period")
	SpanEventCount   = attribute.Key("billing.event_count")
	SpanPolicy       = attribute.Key("billing.recognition_policy")
	SpanCacheHit     = attribute.Key("billing.cache_hit")
)

// StartServiceSpan starts an internal span named "{service}.{method}".
// The caller must end the span.
func StartServiceSpan(ctx context.Context, service, method string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(TracerName).Start(ctx, service+"."+method,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attrs...))
}

// RecordError records err on span and marks it failed. A nil err is ignored.
func RecordError(span trace.Span, err error) {
	if span == nil || err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// TraceID returns the trace id of the span in ctx, or "" if there is none
func TraceID(ctx context.Context) string {
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		return sc.TraceID().String()
	}
	return ""
}
