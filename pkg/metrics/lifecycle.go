package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Lifecycle records enable, disable and drain activity.
type Lifecycle struct {
	enables        *prometheus.CounterVec
	enableDuration prometheus.Histogram
	reconciled     *prometheus.CounterVec
	drainDuration  prometheus.Histogram
	drainPending   prometheus.Gauge
	drainTimeouts  prometheus.Counter
	sessions       prometheus.Gauge
	logins         *prometheus.CounterVec
	tasks          *prometheus.CounterVec
	backups        *prometheus.CounterVec
}

// NewLifecycle creates the lifecycle collectors.
//
// Returns nil if metrics are not enabled (InitRegistry not called).
func NewLifecycle() *Lifecycle {
	reg := GetRegistry()
	if reg == nil {
		return nil
	}
	f := promauto.With(reg)

	return &Lifecycle{
		enables: f.NewCounterVec(prometheus.CounterOpts{
			Name: "authkeep_enable_total",
			Help: "Enable attempts by result",
		}, []string{"result"}), // "success", "failure"
		enableDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "authkeep_enable_duration_seconds",
			Help:    "Duration of the enable sequence",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		}),
		reconciled: f.NewCounterVec(prometheus.CounterOpts{
			Name: "authkeep_reconciled_entities_total",
			Help: "Entities handled by disable reconciliation by action",
		}, []string{"action"}),
		drainDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "authkeep_drain_duration_seconds",
			Help:    "Time spent waiting for async tasks before closing the store",
			Buckets: []float64{0, 1, 2, 5, 10, 20, 30, 60, 90},
		}),
		drainPending: f.NewGauge(prometheus.GaugeOpts{
			Name: "authkeep_drain_pending_tasks",
			Help: "Async tasks the running drain is still waiting for",
		}),
		drainTimeouts: f.NewCounter(prometheus.CounterOpts{
			Name: "authkeep_drain_timeouts_total",
			Help: "Drains that closed the store with tasks still running",
		}),
		sessions: f.NewGauge(prometheus.GaugeOpts{
			Name: "authkeep_sessions",
			Help: "Authenticated identities in the session cache",
		}),
		logins: f.NewCounterVec(prometheus.CounterOpts{
			Name: "authkeep_auth_attempts_total",
			Help: "Login and register attempts by operation and result",
		}, []string{"operation", "result"}),
		tasks: f.NewCounterVec(prometheus.CounterOpts{
			Name: "authkeep_task_runs_total",
			Help: "Maintenance task runs by task and result",
		}, []string{"task", "result"}),
		backups: f.NewCounterVec(prometheus.CounterOpts{
			Name: "authkeep_backups_total",
			Help: "Backups by cause and result",
		}, []string{"cause", "result"}),
	}
}

func result(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}

// ObserveEnable records one enable attempt.
func (m *Lifecycle) ObserveEnable(d time.Duration, err error) {
	if m == nil {
		return
	}
	m.enables.WithLabelValues(result(err)).Inc()
	m.enableDuration.Observe(d.Seconds())
}

// RecordReconciled counts one reconciliation action.
func (m *Lifecycle) RecordReconciled(action string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.reconciled.WithLabelValues(action).Add(float64(n))
}

// SetDrainPending sets the number of tasks the drain waits for.
func (m *Lifecycle) SetDrainPending(n int) {
	if m == nil {
		return
	}
	m.drainPending.Set(float64(n))
}

// ObserveDrain records a finished drain.
func (m *Lifecycle) ObserveDrain(d time.Duration, timedOut bool) {
	if m == nil {
		return
	}
	m.drainDuration.Observe(d.Seconds())
	m.drainPending.Set(0)
	if timedOut {
		m.drainTimeouts.Inc()
	}
}

// SetSessions sets the session cache size.
func (m *Lifecycle) SetSessions(n int) {
	if m == nil {
		return
	}
	m.sessions.Set(float64(n))
}

// RecordAuth counts a login, register or logout attempt.
func (m *Lifecycle) RecordAuth(operation string, err error) {
	if m == nil {
		return
	}
	m.logins.WithLabelValues(operation, result(err)).Inc()
}

// RecordTask counts one maintenance task run.
func (m *Lifecycle) RecordTask(task string, err error) {
	if m == nil {
		return
	}
	m.tasks.WithLabelValues(task, result(err)).Inc()
}

// RecordBackup counts one backup.
func (m *Lifecycle) RecordBackup(cause string, err error) {
	if m == nil {
		return
	}
	m.backups.WithLabelValues(cause, result(err)).Inc()
}
