package lifecycle

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/marmos91/authkeep/internal/logger"
	"github.com/marmos91/authkeep/internal/telemetry"
	"github.com/marmos91/authkeep/pkg/host"
	"github.com/marmos91/authkeep/pkg/metrics"
)

const (
	// DefaultDrainInterval is the wait between two checks of pending tasks.
	DefaultDrainInterval = time.Second

	// DefaultDrainAttempts bounds the drain to about a minute.
	DefaultDrainAttempts = 60
)

// DrainOptions configures a Drainer.
type DrainOptions struct {
	Owner       string
	Interval    time.Duration
	MaxAttempts int
	Clock       Clock
	Metrics     *metrics.Lifecycle
}

// DrainResult describes a finished drain.
type DrainResult struct {
	// Pending are the one-shot tasks that were running when the drain began.
	Pending []int

	// Stuck are the tasks still running when the drain gave up.
	Stuck []int

	// Polls is the number of checks made after waiting.
	Polls int

	TimedOut    bool
	Interrupted bool

	// CloseErr joins the errors returned by the closers.
	CloseErr error

	Duration time.Duration
}

// PendingTasks returns the one-shot tasks of owner executing on sched.
// Periodic tasks stay queued for their whole life and are never waited for.
func PendingTasks(sched host.Scheduler, owner string) []int {
	var ids []int
	for _, w := range sched.ActiveWorkers() {
		if w.Owner == owner && !sched.IsQueued(w.TaskID) {
			ids = append(ids, w.TaskID)
		}
	}
	return ids
}

// Drainer waits for the async tasks of the plugin to finish and then
// closes the stores they may still be using. The close happens exactly
// once, whatever the outcome of the wait.
type Drainer struct {
	sched   host.Scheduler
	opts    DrainOptions
	closers []io.Closer

	once   sync.Once
	done   chan struct{}
	result DrainResult

	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewDrainer creates a drainer. Closers are closed in order; nil closers
// are skipped.
func NewDrainer(sched host.Scheduler, opts DrainOptions, closers ...io.Closer) *Drainer {
	if opts.Interval <= 0 {
		opts.Interval = DefaultDrainInterval
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultDrainAttempts
	}
	if opts.Clock == nil {
		opts.Clock = SystemClock()
	}
	return &Drainer{
		sched:   sched,
		opts:    opts,
		closers: closers,
		done:    make(chan struct{}),
	}
}

// Start runs the drain on a new goroutine. The drain outlives ctx's
// deadline; cancelling it through Cancel stops the wait and closes at once.
func (d *Drainer) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	d.mu.Lock()
	d.cancel = cancel
	d.mu.Unlock()

	go func() {
		defer cancel()
		d.Run(ctx)
	}()
}

// Cancel stops waiting for pending tasks. The stores are still closed.
func (d *Drainer) Cancel() {
	d.mu.Lock()
	cancel := d.cancel
	d.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Done is closed once the stores have been closed.
func (d *Drainer) Done() <-chan struct{} {
	return d.done
}

// Result returns the outcome. It is only meaningful after Done is closed.
func (d *Drainer) Result() DrainResult {
	<-d.done
	return d.result
}

// Run drains synchronously. Only the first call does any work.
func (d *Drainer) Run(ctx context.Context) DrainResult {
	d.once.Do(func() {
		defer close(d.done)
		d.result = d.run(ctx)
	})
	<-d.done
	return d.result
}

func (d *Drainer) run(ctx context.Context) DrainResult {
	start := d.opts.Clock.Now()
	ctx, span := telemetry.StartLifecycleSpan(ctx, telemetry.SpanDrain, "drain")
	defer span.End()

	var res DrainResult
	if d.sched != nil {
		res.Pending = PendingTasks(d.sched, d.opts.Owner)
	}
	pending := append([]int(nil), res.Pending...)
	total, finished := len(pending), 0
	d.opts.Metrics.SetDrainPending(total)
	logger.InfoCtx(ctx, "Waiting for tasks to finish",
		logger.KeyPending, total, logger.KeyTaskIDs, pending)

	policy := backoff.WithMaxRetries(backoff.NewConstantBackOff(d.opts.Interval), uint64(d.opts.MaxAttempts))

wait:
	for len(pending) > 0 {
		next := policy.NextBackOff()
		if next == backoff.Stop {
			res.TimedOut = true
			break
		}

		select {
		case <-ctx.Done():
			res.Interrupted = true
			break wait
		case <-d.opts.Clock.After(next):
		}
		res.Polls++

		still := pending[:0]
		for _, id := range pending {
			if d.sched.IsCurrentlyRunning(id) {
				still = append(still, id)
				continue
			}
			finished++
			logger.InfoCtx(ctx, "Task finished",
				logger.KeyTaskID, id, "progress", finished, logger.KeyPending, total-finished)
		}
		pending = still
		d.opts.Metrics.SetDrainPending(len(pending))
	}

	if len(pending) > 0 {
		res.Stuck = append([]int(nil), pending...)
		if res.Interrupted {
			logger.WarnCtx(ctx, "Drain interrupted, closing with tasks still running",
				logger.KeyTaskIDs, res.Stuck, logger.KeyAttempt, res.Polls)
		} else {
			logger.WarnCtx(ctx, "Async tasks timed out after too many tries",
				logger.KeyTaskIDs, res.Stuck, logger.KeyMaxAttempts, d.opts.MaxAttempts)
		}
	}

	res.CloseErr = d.close(ctx)
	res.Duration = d.opts.Clock.Now().Sub(start)

	span.SetAttributes(
		telemetry.PendingTasks(total),
		telemetry.DrainAttempts(res.Polls),
		telemetry.DrainTimedOut(res.TimedOut),
	)
	d.opts.Metrics.SetDrainPending(0)
	d.opts.Metrics.ObserveDrain(res.Duration, len(res.Stuck) > 0)
	return res
}

func (d *Drainer) close(ctx context.Context) error {
	var errs []error
	for _, c := range d.closers {
		if c == nil {
			continue
		}
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	err := errors.Join(errs...)
	if err != nil {
		telemetry.RecordError(ctx, err)
		logger.ErrorCtx(ctx, "Failed to close stores", logger.Err(err))
	} else {
		logger.DebugCtx(ctx, "Stores closed")
	}
	return err
}
