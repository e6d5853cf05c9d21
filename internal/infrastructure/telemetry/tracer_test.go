package telemetry_test

import (
	"context"
	"testing"

	"github.com/bizdash/backend/internal/infrastructure/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap/zaptest"
)

func TestNewTracerProvider_Disabled(t *testing.T) {
	logger := zaptest.NewLogger(t)
	ctx := context.Background()

	tp, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           false,
		CollectorEndpoint: "localhost:4317",
		SamplingRatio:     1.0,
		ServiceName:       "bizdash-test",
	}, logger)
	require.NoError(t, err)
	require.NotNil(t, tp)

	assert.False(t, tp.IsEnabled())
	assert.NotNil(t, tp.Tracer("test"))
	assert.NoError(t, tp.EnableSpanProfiles())
	assert.NoError(t, tp.Shutdown(ctx))
}

func TestNewTracerProviderWithExporter_RecordsSpans(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := telemetry.NewTracerProviderWithExporter(exporter, telemetry.Config{
		SamplingRatio: 1.0,
		ServiceName:   "bizdash-test",
	}, nil)
	require.True(t, tp.IsEnabled())

	ctx := context.Background()
	_, span := tp.Tracer("billing").Start(ctx, "QuoteService.Compute")
	span.End()

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "QuoteService.Compute", spans[0].Name)
	assert.NoError(t, tp.Shutdown(ctx))
}

func TestNewTracerProviderWithExporter_NeverSample(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := telemetry.NewTracerProviderWithExporter(exporter, telemetry.Config{
		SamplingRatio: 0,
		ServiceName:   "bizdash-test",
	}, nil)

	_, span := tp.Tracer("billing").Start(context.Background(), "dropped")
	span.End()

	assert.Empty(t, exporter.GetSpans())
}
