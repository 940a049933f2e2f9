// Package telemetry wires OpenTelemetry tracing and Pyroscope profiling.
//
// Both are optional. Until Start enables them every helper here works
// against a no-op tracer, so callers never check whether tracing is on.
package telemetry

import (
	"context"
	"errors"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/grafana/pyroscope-go"
)

const defaultServiceName = "authkeep"

// Config selects the telemetry backends for one process.
type Config struct {
	ServiceName    string
	ServiceVersion string

	Tracing   TracingConfig
	Profiling ProfilingConfig
}

// TracingConfig configures the OTLP trace exporter.
type TracingConfig struct {
	Enabled bool

	// Endpoint is the OTLP gRPC collector, host:port
	Endpoint string
	Insecure bool

	// SampleRate in [0, 1]; values outside are clamped.
	SampleRate float64
}

// ProfilingConfig configures continuous profiling.
type ProfilingConfig struct {
	Enabled bool

	// Endpoint is the Pyroscope server URL
	Endpoint string

	// ProfileTypes names the profiles to collect, e.g. cpu, inuse_space,
	// goroutines, mutex_count. Empty means the Pyroscope defaults.
	ProfileTypes []string
}

// Shutdown flushes and stops whatever Start enabled.
type Shutdown func(context.Context) error

type state struct {
	mu        sync.RWMutex
	tracer    trace.Tracer
	provider  *sdktrace.TracerProvider
	profiler  *pyroscope.Profiler
	tracing   bool
	profiling bool
}

var global state

// Start enables the configured backends and returns a single shutdown for
// all of them. A disabled backend costs nothing.
func Start(ctx context.Context, cfg Config) (Shutdown, error) {
	if cfg.ServiceName == "" {
		cfg.ServiceName = defaultServiceName
	}

	var provider *sdktrace.TracerProvider
	if cfg.Tracing.Enabled {
		p, err := startTracing(ctx, cfg)
		if err != nil {
			return nil, err
		}
		provider = p
	}

	var profiler *pyroscope.Profiler
	if cfg.Profiling.Enabled {
		p, err := startProfiling(cfg)
		if err != nil {
			if provider != nil {
				_ = provider.Shutdown(ctx)
			}
			return nil, err
		}
		profiler = p
	}

	global.mu.Lock()
	global.provider = provider
	global.profiler = profiler
	global.tracing = provider != nil
	global.profiling = profiler != nil
	if provider != nil {
		global.tracer = provider.Tracer(cfg.ServiceName)
	} else {
		global.tracer = nil
	}
	global.mu.Unlock()

	return func(ctx context.Context) error {
		var errs []error
		if profiler != nil {
			errs = append(errs, profiler.Stop())
		}
		if provider != nil {
			errs = append(errs, shutdownTracing(ctx, provider))
		}
		global.mu.Lock()
		global.tracer, global.provider, global.profiler = nil, nil, nil
		global.tracing, global.profiling = false, false
		global.mu.Unlock()
		return errors.Join(errs...)
	}, nil
}

// TracingEnabled reports whether spans are exported.
func TracingEnabled() bool {
	global.mu.RLock()
	defer global.mu.RUnlock()
	return global.tracing
}

// ProfilingEnabled reports whether the profiler is running.
func ProfilingEnabled() bool {
	global.mu.RLock()
	defer global.mu.RUnlock()
	return global.profiling
}

// Tracer returns the process tracer, a no-op one when tracing is off.
func Tracer() trace.Tracer {
	global.mu.RLock()
	t := global.tracer
	global.mu.RUnlock()
	if t == nil {
		return noop.NewTracerProvider().Tracer(defaultServiceName)
	}
	return t
}

// StartSpan starts a span. The caller ends it.
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return Tracer().Start(ctx, name, opts...)
}

// RecordError marks the span in ctx as failed. A nil err is ignored.
func RecordError(ctx context.Context, err error) {
	if err == nil {
		return
	}
	span := trace.SpanFromContext(ctx)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// SetAttributes annotates the span in ctx.
func SetAttributes(ctx context.Context, attrs ...attribute.KeyValue) {
	trace.SpanFromContext(ctx).SetAttributes(attrs...)
}

// TraceID returns the hex trace id of the span in ctx, or "".
func TraceID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.HasTraceID() {
		return ""
	}
	return sc.TraceID().String()
}

// SpanID returns the hex span id of the span in ctx, or "".
func SpanID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.HasSpanID() {
		return ""
	}
	return sc.SpanID().String()
}
