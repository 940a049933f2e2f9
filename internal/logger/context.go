package logger

import (
	"context"
	"time"
)

type contextKey struct{}

var logContextKey = contextKey{}

// LogContext holds fields that are attached to every *Ctx log call.
type LogContext struct {
	TraceID   string
	SpanID    string
	Phase     string // lifecycle phase: enable, reload, disable, drain
	Identity  string // lower-cased player name
	ClientIP  string
	StartTime time.Time
}

// WithContext returns a new context carrying lc.
func WithContext(ctx context.Context, lc *LogContext) context.Context {
	return context.WithValue(ctx, logContextKey, lc)
}

// FromContext retrieves the LogContext from ctx, or nil if not present.
func FromContext(ctx context.Context) *LogContext {
	if ctx == nil {
		return nil
	}
	lc, _ := ctx.Value(logContextKey).(*LogContext)
	return lc
}

// NewLogContext creates a LogContext for the given lifecycle phase.
func NewLogContext(phase string) *LogContext {
	return &LogContext{Phase: phase, StartTime: time.Now()}
}

// Clone creates a copy of the LogContext
func (lc *LogContext) Clone() *LogContext {
	if lc == nil {
		return nil
	}
	c := *lc
	return &c
}

// WithIdentity returns a copy scoped to a single player.
func (lc *LogContext) WithIdentity(identity, ip string) *LogContext {
	c := lc.Clone()
	if c == nil {
		c = &LogContext{StartTime: time.Now()}
	}
	c.Identity = identity
	c.ClientIP = ip
	return c
}

// WithTrace returns a copy with trace info set
func (lc *LogContext) WithTrace(traceID, spanID string) *LogContext {
	c := lc.Clone()
	if c != nil {
		c.TraceID = traceID
		c.SpanID = spanID
	}
	return c
}

// DurationMs returns the duration since StartTime in milliseconds
func (lc *LogContext) DurationMs() float64 {
	if lc == nil || lc.StartTime.IsZero() {
		return 0
	}
	return float64(time.Since(lc.StartTime).Microseconds()) / 1000.0
}
