package telemetry

import (
	"testing"

	"github.com/grafana/pyroscope-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewProfiler_Disabled(t *testing.T) {
	p, err := NewProfiler(ProfilerConfig{Enabled: false}, zap.NewNop())
	require.NoError(t, err)
	assert.False(t, p.IsEnabled())
	assert.NoError(t, p.Stop())
	assert.NoError(t, p.Stop())
}

func TestNewProfiler_MissingSettings(t *testing.T) {
	tests := []struct {
		name string
		cfg  ProfilerConfig
	}{
		{"no server address", ProfilerConfig{Enabled: true, ApplicationName: "bizdash"}},
		{"no application name", ProfilerConfig{Enabled: true, ServerAddress: "http://localhost:4040"}},
		{"unknown profile type", ProfilerConfig{
			Enabled:         true,
			ServerAddress:   "http://localhost:4040",
			ApplicationName: "bizdash",
			ProfileTypes:    []string{"heap_dump"},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewProfiler(tt.cfg, nil)
			require.Error(t, err)
			assert.Nil(t, p)
		})
	}
}

func TestResolveProfileTypes(t *testing.T) {
	types, err := resolveProfileTypes(nil)
	require.NoError(t, err)
	assert.Equal(t, []pyroscope.ProfileType{pyroscope.ProfileCPU, pyroscope.ProfileInuseSpace}, types)

	types, err = resolveProfileTypes([]string{"goroutines", "alloc_space"})
	require.NoError(t, err)
	assert.Equal(t, []pyroscope.ProfileType{pyroscope.ProfileGoroutines, pyroscope.ProfileAllocSpace}, types)
}

func TestNewProfiler_ReportsAllMissingSettings(t *testing.T) {
	_, err := NewProfiler(ProfilerConfig{Enabled: true, ProfileTypes: []string{"threads"}}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server address")
	assert.Contains(t, err.Error(), "application name")
	assert.Contains(t, err.Error(), `"threads"`)
}

func TestProfiler_ZeroValue(t *testing.T) {
	var p *Profiler
	assert.False(t, p.IsEnabled())
	assert.False(t, (&Profiler{}).IsEnabled())
}
