package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewLoggerProvider_Disabled(t *testing.T) {
	ctx := context.Background()

	provider, err := NewLoggerProvider(ctx, LogsConfig{
		Enabled:           false,
		CollectorEndpoint: "localhost:4317",
		ServiceName:       "bizdash-test",
		Insecure:          true,
	}, zap.NewNop())
	require.NoError(t, err)
	assert.False(t, provider.IsEnabled())
	assert.NoError(t, provider.Shutdown(ctx))
}

func TestBridge_DisabledReturnsBase(t *testing.T) {
	base := zap.NewNop()

	t.Run("nil provider", func(t *testing.T) {
		assert.Same(t, base, Bridge(base, nil, "bizdash-test", zapcore.InfoLevel))
	})

	t.Run("disabled provider", func(t *testing.T) {
		provider, err := NewLoggerProvider(context.Background(), LogsConfig{}, nil)
		require.NoError(t, err)
		assert.Same(t, base, Bridge(base, provider, "bizdash-test", zapcore.InfoLevel))
	})
}

func TestAtLeast(t *testing.T) {
	inner, logs := observer.New(zapcore.DebugLevel)
	core := atLeast(inner, zapcore.WarnLevel)

	tests := []struct {
		level   zapcore.Level
		enabled bool
	}{
		{zapcore.DebugLevel, false},
		{zapcore.InfoLevel, false},
		{zapcore.WarnLevel, true},
		{zapcore.ErrorLevel, true},
	}
	for _, tt := range tests {
		t.Run(tt.level.String(), func(t *testing.T) {
			assert.Equal(t, tt.enabled, core.Enabled(tt.level))
		})
	}

	logger := zap.New(core).With(zap.String("component", "billing"))
	logger.Info("dropped")
	logger.Warn("kept")

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "kept", entry.Message)
	assert.Equal(t, "billing", entry.ContextMap()["component"])

	t.Run("core filtering above the level is kept", func(t *testing.T) {
		errorsOnly, _ := observer.New(zapcore.ErrorLevel)
		assert.Same(t, errorsOnly, atLeast(errorsOnly, zapcore.InfoLevel))
	})
}
