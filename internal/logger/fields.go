package logger

import (
	"log/slog"
	"time"
)

// Standard field keys. Use these consistently so log lines can be queried
// across the enable, reload and disable paths.
const (
	// Tracing
	KeyTraceID = "trace_id"
	KeySpanID  = "span_id"

	// Lifecycle
	KeyPhase    = "phase"    // enable, reload, disable, drain
	KeyStep     = "step"     // initialization step name
	KeyService  = "service"  // registry service name
	KeyFeature  = "feature"  // negotiated host capability
	KeyListener = "listener" // registered listener name
	KeyVersion  = "version"
	KeyBuild    = "build"

	// Players and sessions
	KeyIdentity  = "identity"  // lower-cased player name
	KeyRealName  = "real_name" // player name as typed
	KeyClientIP  = "client_ip"
	KeyWorld     = "world"
	KeyOnline    = "online"
	KeySessions  = "sessions"
	KeyOperation = "operation" // login, register, logout

	// Tasks and drain
	KeyTaskID      = "task_id"
	KeyTaskIDs     = "task_ids"
	KeyPending     = "pending"
	KeyAttempt     = "attempt"
	KeyMaxAttempts = "max_attempts"
	KeyInterval    = "interval"

	// Storage
	KeyBackend = "backend" // sqlite, postgres
	KeyPath    = "path"
	KeyCount   = "count"
	KeyBucket  = "bucket"
	KeyKey     = "key"

	// Generic
	KeyDurationMs = "duration_ms"
	KeyError      = "error"
	KeyCause      = "cause"
)

// Err returns an attribute carrying err, or an empty attribute for nil.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

// Identity returns an attribute for a lower-cased player name.
func Identity(name string) slog.Attr {
	return slog.String(KeyIdentity, name)
}

// TaskID returns an attribute for a scheduler task id.
func TaskID(id int) slog.Attr {
	return slog.Int(KeyTaskID, id)
}

// Phase returns an attribute for a lifecycle phase.
func Phase(p string) slog.Attr {
	return slog.String(KeyPhase, p)
}

// Step returns an attribute for an initialization step.
func Step(s string) slog.Attr {
	return slog.String(KeyStep, s)
}

// DurationMs returns an attribute for an elapsed duration in milliseconds.
func DurationMs(d time.Duration) slog.Attr {
	return slog.Float64(KeyDurationMs, float64(d.Microseconds())/1000.0)
}
