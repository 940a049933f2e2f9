package lifecycle

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/marmos91/authkeep/internal/logger"
	"github.com/marmos91/authkeep/pkg/host/hosttest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock fires every timer at once and advances its time accordingly.
type fakeClock struct {
	mu    sync.Mutex
	now   time.Time
	waits []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	c.waits = append(c.waits, d)
	ch := make(chan time.Time, 1)
	ch <- c.now
	return ch
}

func (c *fakeClock) Waits() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.waits)
}

// stoppedClock never fires.
type stoppedClock struct{}

func (stoppedClock) Now() time.Time { return time.Time{} }

func (stoppedClock) After(time.Duration) <-chan time.Time { return nil }

type countingCloser struct {
	closes atomic.Int32
	err    error
}

func (c *countingCloser) Close() error {
	c.closes.Add(1)
	return c.err
}

// syncBuffer is a bytes.Buffer safe for the concurrent writes of the logger.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func captureLogs(t *testing.T) *syncBuffer {
	t.Helper()
	buf := &syncBuffer{}
	logger.InitWithWriter(buf, "DEBUG", "json", false)
	t.Cleanup(func() { logger.InitWithWriter(&bytes.Buffer{}, "INFO", "text", false) })
	return buf
}

func TestPendingTasks(t *testing.T) {
	sched := hosttest.NewScheduler()
	sched.Running(1, "authkeep", 1)
	sched.Running(2, "other", 1)
	sched.Queued(3, "authkeep")

	assert.Equal(t, []int{1}, PendingTasks(sched, "authkeep"))
	assert.Empty(t, PendingTasks(sched, "nobody"))
}

func TestDrainNothingPending(t *testing.T) {
	sched := hosttest.NewScheduler()
	sched.Queued(3, "authkeep")
	clock := newFakeClock()
	closer := &countingCloser{}

	res := NewDrainer(sched, DrainOptions{Owner: "authkeep", Clock: clock}, closer).Run(context.Background())

	assert.Zero(t, res.Polls)
	assert.Zero(t, clock.Waits())
	assert.False(t, res.TimedOut)
	assert.Equal(t, int32(1), closer.closes.Load())
}

func TestDrainWaitsForPendingTasks(t *testing.T) {
	const k = 3
	sched := hosttest.NewScheduler()
	for i := 1; i <= k; i++ {
		sched.Running(i, "authkeep", i)
	}
	sched.Running(99, "other", -1)
	clock := newFakeClock()
	closer := &countingCloser{}

	res := NewDrainer(sched, DrainOptions{Owner: "authkeep", Clock: clock}, closer).Run(context.Background())

	assert.ElementsMatch(t, []int{1, 2, 3}, res.Pending)
	assert.LessOrEqual(t, res.Polls, k+1)
	assert.Empty(t, res.Stuck)
	assert.False(t, res.TimedOut)
	assert.Equal(t, int32(1), closer.closes.Load())
	assert.Equal(t, time.Duration(res.Polls)*time.Second, res.Duration)
}

func TestDrainStuckTaskUsesBudget(t *testing.T) {
	logs := captureLogs(t)
	sched := hosttest.NewScheduler()
	sched.Running(4242, "authkeep", -1)
	clock := newFakeClock()
	store, snapshots := &countingCloser{}, &countingCloser{}

	res := NewDrainer(sched, DrainOptions{Owner: "authkeep", Clock: clock}, store, snapshots).Run(context.Background())

	assert.Equal(t, DefaultDrainAttempts, res.Polls)
	assert.Equal(t, DefaultDrainAttempts, clock.Waits())
	assert.True(t, res.TimedOut)
	assert.Equal(t, []int{4242}, res.Stuck)
	assert.Equal(t, int32(1), store.closes.Load())
	assert.Equal(t, int32(1), snapshots.closes.Load())
	assert.Contains(t, logs.String(), "timed out")
	assert.Contains(t, logs.String(), "4242")
}

func TestDrainCustomBudget(t *testing.T) {
	sched := hosttest.NewScheduler()
	sched.Running(1, "authkeep", -1)
	clock := newFakeClock()

	res := NewDrainer(sched, DrainOptions{
		Owner:       "authkeep",
		Clock:       clock,
		Interval:    250 * time.Millisecond,
		MaxAttempts: 4,
	}).Run(context.Background())

	assert.Equal(t, 4, res.Polls)
	assert.Equal(t, time.Second, res.Duration)
}

func TestDrainCancelStillCloses(t *testing.T) {
	sched := hosttest.NewScheduler()
	sched.Running(1, "authkeep", -1)
	closer := &countingCloser{}

	d := NewDrainer(sched, DrainOptions{Owner: "authkeep", Clock: stoppedClock{}}, closer)
	d.Start(context.Background())
	d.Cancel()

	select {
	case <-d.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("drain did not finish after cancel")
	}
	res := d.Result()
	assert.True(t, res.Interrupted)
	assert.Equal(t, []int{1}, res.Stuck)
	assert.Equal(t, int32(1), closer.closes.Load())
}

func TestDrainClosesOnce(t *testing.T) {
	sched := hosttest.NewScheduler()
	boom := errors.New("close failed")
	failing, ok := &countingCloser{err: boom}, &countingCloser{}
	d := NewDrainer(sched, DrainOptions{Owner: "authkeep", Clock: newFakeClock()}, failing, nil, ok)

	first := d.Run(context.Background())
	second := d.Run(context.Background())

	require.ErrorIs(t, first.CloseErr, boom)
	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), failing.closes.Load())
	assert.Equal(t, int32(1), ok.closes.Load(), "a failing closer must not prevent the next one")
}
