package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/marmos91/authkeep/internal/logger"
)

// recordSpans installs an in-memory tracer for the duration of the test.
func recordSpans(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))

	global.mu.Lock()
	global.tracer = provider.Tracer("test")
	global.mu.Unlock()

	t.Cleanup(func() {
		global.mu.Lock()
		global.tracer = nil
		global.mu.Unlock()
		_ = provider.Shutdown(context.Background())
	})
	return rec
}

func attrMap(span sdktrace.ReadOnlySpan) map[attribute.Key]attribute.Value {
	out := make(map[attribute.Key]attribute.Value)
	for _, kv := range span.Attributes() {
		out[kv.Key] = kv.Value
	}
	return out
}

func TestStartDisabled(t *testing.T) {
	shutdown, err := Start(context.Background(), Config{})
	require.NoError(t, err)

	assert.False(t, TracingEnabled())
	assert.False(t, ProfilingEnabled())
	assert.NoError(t, shutdown(context.Background()))
}

func TestStartRejectsUnknownProfileType(t *testing.T) {
	_, err := Start(context.Background(), Config{
		Profiling: ProfilingConfig{Enabled: true, ProfileTypes: []string{"cpu", "heap"}},
	})
	assert.ErrorContains(t, err, `"heap"`)
	assert.False(t, ProfilingEnabled())
}

func TestParseProfileTypes(t *testing.T) {
	types, mutex, block, err := parseProfileTypes([]string{"cpu", "mutex_count"})
	require.NoError(t, err)
	assert.Len(t, types, 2)
	assert.True(t, mutex)
	assert.False(t, block)

	_, _, block, err = parseProfileTypes([]string{"block_duration"})
	require.NoError(t, err)
	assert.True(t, block)
}

func TestSpansAreNoOpWhenDisabled(t *testing.T) {
	ctx, span := StartSpan(context.Background(), "noop")
	defer span.End()

	assert.False(t, span.SpanContext().IsValid())
	assert.Empty(t, TraceID(ctx))
	assert.Empty(t, SpanID(ctx))
	assert.NotPanics(t, func() {
		RecordError(ctx, errors.New("boom"))
		SetAttributes(ctx, Online(3))
	})
}

func TestRecordError(t *testing.T) {
	rec := recordSpans(t)

	ctx, span := StartSpan(context.Background(), SpanBackup)
	RecordError(ctx, nil)
	RecordError(ctx, errors.New("disk full"))
	span.End()

	ended := rec.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, codes.Error, ended[0].Status().Code)
	assert.Equal(t, "disk full", ended[0].Status().Description)
}

func TestStartLifecycleSpan(t *testing.T) {
	rec := recordSpans(t)

	ctx, span := StartLifecycleSpan(context.Background(), SpanEnableStep, "enable", Step(3))
	lc := logger.FromContext(ctx)
	require.NotNil(t, lc)
	assert.Equal(t, "enable", lc.Phase)
	assert.Equal(t, TraceID(ctx), lc.TraceID)
	assert.Equal(t, SpanID(ctx), lc.SpanID)
	assert.NotEmpty(t, lc.TraceID)
	span.End()

	ended := rec.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, SpanEnableStep, ended[0].Name())
	attrs := attrMap(ended[0])
	assert.Equal(t, "enable", attrs[AttrPhase].AsString())
	assert.Equal(t, int64(3), attrs[AttrStep].AsInt64())
}

func TestStartLifecycleSpanKeepsParentFields(t *testing.T) {
	recordSpans(t)

	parent := logger.NewLogContext("reload").WithIdentity("steve", "")
	ctx := logger.WithContext(context.Background(), parent)

	ctx, span := StartLifecycleSpan(ctx, SpanDisable, "disable")
	defer span.End()

	lc := logger.FromContext(ctx)
	assert.Equal(t, "disable", lc.Phase)
	assert.Equal(t, "steve", lc.Identity)
	assert.Equal(t, "reload", parent.Phase, "parent context is not mutated")
}

func TestStartAuthSpan(t *testing.T) {
	rec := recordSpans(t)

	ctx, span := StartAuthSpan(context.Background(), SpanLogin, "steve", "10.0.0.7")
	lc := logger.FromContext(ctx)
	require.NotNil(t, lc)
	assert.Equal(t, "steve", lc.Identity)
	assert.Equal(t, "10.0.0.7", lc.ClientIP)
	assert.NotEmpty(t, lc.SpanID)
	span.End()

	attrs := attrMap(rec.Ended()[0])
	assert.Equal(t, "steve", attrs[AttrIdentity].AsString())
	assert.Equal(t, "10.0.0.7", attrs[AttrClientIP].AsString())
}

func TestStartAuthSpanWithoutIP(t *testing.T) {
	rec := recordSpans(t)

	_, span := StartAuthSpan(context.Background(), SpanLogout, "alex", "")
	span.End()

	_, ok := attrMap(rec.Ended()[0])[AttrClientIP]
	assert.False(t, ok)
}

func TestSampler(t *testing.T) {
	assert.Contains(t, sampler(1).Description(), "AlwaysOnSampler")
	assert.Contains(t, sampler(0).Description(), "AlwaysOffSampler")
	assert.Contains(t, sampler(0.25).Description(), "TraceIDRatioBased{0.25}")
}

func TestAttributeHelpers(t *testing.T) {
	tests := []struct {
		attr attribute.KeyValue
		key  string
		want any
	}{
		{Phase("drain"), AttrPhase, "drain"},
		{PendingTasks(4), AttrPending, int64(4)},
		{DrainAttempts(60), AttrAttempts, int64(60)},
		{DrainTimedOut(true), AttrTimedOut, true},
		{Reconciled(2), AttrReconciled, int64(2)},
		{HostStopped(false), AttrHostStop, false},
		{Features([]string{"edit_book"}), AttrFeatures, []string{"edit_book"}},
		{Bucket("backups"), AttrBucket, "backups"},
		{StorageKey("nightly/a.db"), AttrKey, "nightly/a.db"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			assert.Equal(t, tt.key, string(tt.attr.Key))
			assert.Equal(t, tt.want, tt.attr.Value.AsInterface())
		})
	}
}
