// Package tasks holds the recurring maintenance jobs run on the host
// scheduler while the plugin is enabled.
package tasks

import (
	"context"
	"time"

	"github.com/marmos91/authkeep/internal/logger"
	"github.com/marmos91/authkeep/internal/telemetry"
	"github.com/marmos91/authkeep/pkg/host"
	"github.com/marmos91/authkeep/pkg/metrics"
	"go.opentelemetry.io/otel/attribute"
)

// Task is a named maintenance job.
type Task interface {
	Name() string
	Run(ctx context.Context) error
}

// Schedule runs t every period on sched, starting after one period.
func Schedule(sched host.Scheduler, owner string, period time.Duration, t Task, m *metrics.Lifecycle) (int, error) {
	id, err := sched.RunTimerAsync(owner, period, period, func(ctx context.Context) {
		RunOnce(ctx, t, m)
	})
	if err != nil {
		return 0, err
	}
	logger.Debug("Task scheduled", logger.KeyTaskID, id, "task", t.Name(), logger.KeyInterval, period.String())
	return id, nil
}

// RunOnce runs t, recording its outcome.
func RunOnce(ctx context.Context, t Task, m *metrics.Lifecycle) {
	ctx, span := telemetry.StartSpan(ctx, telemetry.SpanTask)
	defer span.End()
	telemetry.SetAttributes(ctx, attribute.String("task.name", t.Name()))

	err := t.Run(ctx)
	m.RecordTask(t.Name(), err)
	if err != nil {
		telemetry.RecordError(ctx, err)
		logger.WarnCtx(ctx, "Task failed", "task", t.Name(), logger.Err(err))
	}
}
