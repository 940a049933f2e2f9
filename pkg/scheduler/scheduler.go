// Package scheduler runs plugin tasks on a bounded ants worker pool and keeps
// the bookkeeping the shutdown drain relies on: which tasks are executing,
// and which are periodic and will run again.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/marmos91/authkeep/internal/logger"
	"github.com/marmos91/authkeep/pkg/host"
	cmap "github.com/orcaman/concurrent-map/v2"
	"github.com/panjf2000/ants/v2"
)

// ErrClosed is returned when submitting to a released scheduler.
var ErrClosed = errors.New("scheduler is closed")

type task struct {
	id       int
	owner    string
	periodic bool

	running   atomic.Bool
	cancelled atomic.Bool

	ctx    context.Context
	cancel context.CancelFunc
}

// Scheduler implements host.Scheduler.
type Scheduler struct {
	pool   *ants.Pool
	nextID atomic.Int64
	tasks  cmap.ConcurrentMap[int, *task]

	closeOnce sync.Once
	closed    atomic.Bool
	wg        sync.WaitGroup // timer goroutines
}

// New creates a scheduler backed by a pool of size workers.
func New(size int) (*Scheduler, error) {
	if size <= 0 {
		size = 8
	}
	pool, err := ants.NewPool(size, ants.WithPanicHandler(func(p any) {
		logger.Error("Scheduled task panicked", "panic", fmt.Sprint(p))
	}))
	if err != nil {
		return nil, fmt.Errorf("failed to create worker pool: %w", err)
	}
	return &Scheduler{
		pool:  pool,
		tasks: cmap.NewWithCustomShardingFunction[int, *task](func(k int) uint32 { return uint32(k) }),
	}, nil
}

func (s *Scheduler) newTask(owner string, periodic bool) *task {
	ctx, cancel := context.WithCancel(context.Background())
	t := &task{
		id:       int(s.nextID.Add(1)),
		owner:    owner,
		periodic: periodic,
		ctx:      ctx,
		cancel:   cancel,
	}
	s.tasks.Set(t.id, t)
	return t
}

// exec runs fn for t on the current worker, marking it running.
func (s *Scheduler) exec(t *task, fn host.TaskFunc) {
	if t.cancelled.Load() {
		return
	}
	t.running.Store(true)
	defer t.running.Store(false)
	fn(t.ctx)
}

// RunAsync runs fn once on a pool worker.
func (s *Scheduler) RunAsync(owner string, fn host.TaskFunc) (int, error) {
	if s.closed.Load() {
		return 0, ErrClosed
	}
	t := s.newTask(owner, false)
	err := s.pool.Submit(func() {
		defer s.forget(t)
		s.exec(t, fn)
	})
	if err != nil {
		s.forget(t)
		return 0, fmt.Errorf("failed to submit task: %w", err)
	}
	return t.id, nil
}

// RunTimerAsync runs fn after delay and then every period. A tick is skipped
// while the previous run is still executing.
func (s *Scheduler) RunTimerAsync(owner string, delay, period time.Duration, fn host.TaskFunc) (int, error) {
	if s.closed.Load() {
		return 0, ErrClosed
	}
	if period <= 0 {
		return 0, fmt.Errorf("period must be positive, got %s", period)
	}
	t := s.newTask(owner, true)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.forgetWhenIdle(t)

		timer := time.NewTimer(delay)
		defer timer.Stop()

		for {
			select {
			case <-t.ctx.Done():
				return
			case <-timer.C:
			}

			if !t.running.Load() {
				if err := s.pool.Submit(func() { s.exec(t, fn) }); err != nil {
					logger.Warn("Periodic task dropped", logger.KeyTaskID, t.id, logger.KeyError, err)
				}
			}
			timer.Reset(period)
		}
	}()
	return t.id, nil
}

// forget removes t from the task table.
func (s *Scheduler) forget(t *task) {
	t.cancel()
	s.tasks.Remove(t.id)
}

// forgetWhenIdle removes a cancelled periodic task once its last run has
// finished, so a run in flight stays visible to ActiveWorkers.
func (s *Scheduler) forgetWhenIdle(t *task) {
	for t.running.Load() {
		time.Sleep(10 * time.Millisecond)
	}
	s.tasks.Remove(t.id)
}

// ActiveWorkers returns every task executing right now.
func (s *Scheduler) ActiveWorkers() []host.Worker {
	var workers []host.Worker
	for item := range s.tasks.IterBuffered() {
		if item.Val.running.Load() {
			workers = append(workers, host.Worker{TaskID: item.Val.id, Owner: item.Val.owner})
		}
	}
	return workers
}

// IsQueued reports whether id is a periodic task that has not been cancelled.
func (s *Scheduler) IsQueued(taskID int) bool {
	t, ok := s.tasks.Get(taskID)
	return ok && t.periodic && !t.cancelled.Load()
}

// IsCurrentlyRunning reports whether id is executing right now.
func (s *Scheduler) IsCurrentlyRunning(taskID int) bool {
	t, ok := s.tasks.Get(taskID)
	return ok && t.running.Load()
}

// Cancel stops a single task. A run in progress is not interrupted but its
// context is cancelled.
func (s *Scheduler) Cancel(taskID int) {
	if t, ok := s.tasks.Get(taskID); ok {
		t.cancelled.Store(true)
		t.cancel()
	}
}

// CancelTasks cancels every task owned by owner.
func (s *Scheduler) CancelTasks(owner string) {
	for item := range s.tasks.IterBuffered() {
		if item.Val.owner == owner {
			s.Cancel(item.Key)
		}
	}
}

// Pending returns the number of tracked tasks, running or not.
func (s *Scheduler) Pending() int {
	return s.tasks.Count()
}

// Close cancels every task and releases the pool, waiting up to timeout for
// running tasks to finish.
func (s *Scheduler) Close(timeout time.Duration) error {
	var err error
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		for item := range s.tasks.IterBuffered() {
			s.Cancel(item.Key)
		}
		s.wg.Wait()
		err = s.pool.ReleaseTimeout(timeout)
	})
	return err
}

var _ host.Scheduler = (*Scheduler)(nil)
