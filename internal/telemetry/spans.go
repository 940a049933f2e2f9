package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/marmos91/authkeep/internal/logger"
)

// Attribute keys. Plugin keys carry the "authkeep." prefix.
const (
	AttrClientIP = "client.ip"
	AttrIdentity = "player.identity"

	AttrPhase      = "authkeep.phase"
	AttrStep       = "authkeep.step"
	AttrOnline     = "authkeep.online"
	AttrPending    = "authkeep.pending_tasks"
	AttrAttempts   = "authkeep.drain_attempts"
	AttrTimedOut   = "authkeep.drain_timed_out"
	AttrReconciled = "authkeep.reconciled"
	AttrFeatures   = "authkeep.features"
	AttrHostStop   = "authkeep.shutdown_host"

	AttrBucket = "storage.bucket"
	AttrKey    = "storage.key"
)

// Span names, <component>.<operation>.
const (
	SpanEnable      = "lifecycle.enable"
	SpanEnableStep  = "lifecycle.enable_step"
	SpanDisable     = "lifecycle.disable"
	SpanReload      = "lifecycle.reload"
	SpanDrain       = "lifecycle.drain"
	SpanReconcile   = "lifecycle.reconcile"
	SpanStartupPass = "lifecycle.startup_pass"
	SpanStopUnload  = "lifecycle.stop_or_unload"

	SpanLogin    = "auth.login"
	SpanRegister = "auth.register"
	SpanLogout   = "auth.logout"

	SpanBackup = "backup.run"
	SpanTask   = "task.run"
)

func Phase(phase string) attribute.KeyValue { return attribute.String(AttrPhase, phase) }
func Step(n int) attribute.KeyValue         { return attribute.Int(AttrStep, n) }
func Online(n int) attribute.KeyValue       { return attribute.Int(AttrOnline, n) }
func PendingTasks(n int) attribute.KeyValue { return attribute.Int(AttrPending, n) }
func DrainAttempts(n int) attribute.KeyValue {
	return attribute.Int(AttrAttempts, n)
}
func DrainTimedOut(v bool) attribute.KeyValue { return attribute.Bool(AttrTimedOut, v) }
func Reconciled(n int) attribute.KeyValue     { return attribute.Int(AttrReconciled, n) }
func Features(names []string) attribute.KeyValue {
	return attribute.StringSlice(AttrFeatures, names)
}

// HostStopped reports whether stop-or-unload shut the host down.
func HostStopped(v bool) attribute.KeyValue { return attribute.Bool(AttrHostStop, v) }

func Bucket(name string) attribute.KeyValue    { return attribute.String(AttrBucket, name) }
func StorageKey(key string) attribute.KeyValue { return attribute.String(AttrKey, key) }

// StartLifecycleSpan starts a span for a lifecycle phase and scopes the
// returned context's log fields to that phase and span.
func StartLifecycleSpan(ctx context.Context, name, phase string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	all := make([]attribute.KeyValue, 0, len(attrs)+1)
	all = append(all, Phase(phase))
	all = append(all, attrs...)
	ctx, span := StartSpan(ctx, name, trace.WithAttributes(all...))

	lc := logger.FromContext(ctx).Clone()
	if lc == nil {
		lc = logger.NewLogContext(phase)
	}
	lc.Phase = phase
	return logger.WithContext(ctx, lc.WithTrace(TraceID(ctx), SpanID(ctx))), span
}

// StartAuthSpan starts a span for one player's authentication operation
// and scopes the returned context's log fields to that player.
func StartAuthSpan(ctx context.Context, name, identity, ip string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	all := make([]attribute.KeyValue, 0, len(attrs)+2)
	all = append(all, attribute.String(AttrIdentity, identity))
	if ip != "" {
		all = append(all, attribute.String(AttrClientIP, ip))
	}
	all = append(all, attrs...)
	ctx, span := StartSpan(ctx, name, trace.WithAttributes(all...))

	lc := logger.FromContext(ctx).WithIdentity(identity, ip)
	return logger.WithContext(ctx, lc.WithTrace(TraceID(ctx), SpanID(ctx))), span
}
