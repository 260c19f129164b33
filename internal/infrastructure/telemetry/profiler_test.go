package telemetry

import (
	"context"
	"testing"

	"github.com/grafana/pyroscope-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewProfiler(t *testing.T) {
	t.Run("disabled profiler is a no-op", func(t *testing.T) {
		p, err := NewProfiler(ProfilerConfig{Enabled: false}, zap.NewNop())
		require.NoError(t, err)
		assert.False(t, p.IsEnabled())
		assert.NoError(t, p.Stop())
		assert.NoError(t, p.Stop())
	})

	t.Run("requires a server address", func(t *testing.T) {
		_, err := NewProfiler(ProfilerConfig{Enabled: true, ApplicationName: "order-reconciler"}, zap.NewNop())
		assert.ErrorContains(t, err, "server address")
	})

	t.Run("requires an application name", func(t *testing.T) {
		_, err := NewProfiler(ProfilerConfig{Enabled: true, ServerAddress: "http://localhost:4040"}, zap.NewNop())
		assert.ErrorContains(t, err, "application name")
	})
}

func TestProfiler_ProfileTypes(t *testing.T) {
	p := &Profiler{config: ProfilerConfig{}}
	assert.Equal(t, []pyroscope.ProfileType{
		pyroscope.ProfileCPU,
		pyroscope.ProfileAllocSpace,
		pyroscope.ProfileInuseSpace,
	}, p.profileTypes())

	p.config.Goroutines = true
	assert.Contains(t, p.profileTypes(), pyroscope.ProfileGoroutines)
}

func TestPyroscopeLogger(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := newPyroscopeLogger(zap.New(core))

	l.Errorf("upload failed: %s", "timeout")
	l.Infof("started")

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "upload failed: timeout", entries[0].Message)
	assert.Equal(t, "pyroscope", entries[0].LoggerName)
}

func TestTracerProvider_EnableSpanProfiles(t *testing.T) {
	previous := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(previous) })

	t.Run("disabled tracing leaves the global provider alone", func(t *testing.T) {
		tp, err := NewTracerProvider(context.Background(), Config{Enabled: false}, zap.NewNop())
		require.NoError(t, err)
		tp.EnableSpanProfiles()
		assert.Same(t, previous, otel.GetTracerProvider())
	})

	t.Run("wraps the sdk provider", func(t *testing.T) {
		sdk := sdktrace.NewTracerProvider()
		t.Cleanup(func() { _ = sdk.Shutdown(context.Background()) })
		tp := &TracerProvider{provider: sdk, logger: zap.NewNop(), config: Config{Enabled: true}}

		tp.EnableSpanProfiles()
		assert.NotSame(t, sdk, otel.GetTracerProvider())
		assert.True(t, tp.spanProfiles)
	})
}
