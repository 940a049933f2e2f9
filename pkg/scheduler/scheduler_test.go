package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestScheduler(t *testing.T) *Scheduler {
	t.Helper()
	s, err := New(4)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close(time.Second) })
	return s
}

func TestRunAsync(t *testing.T) {
	s := newTestScheduler(t)

	release := make(chan struct{})
	started := make(chan struct{})
	id, err := s.RunAsync("AuthMe", func(ctx context.Context) {
		close(started)
		<-release
	})
	require.NoError(t, err)
	<-started

	t.Run("RunningTaskIsAnActiveWorker", func(t *testing.T) {
		workers := s.ActiveWorkers()
		require.Len(t, workers, 1)
		assert.Equal(t, id, workers[0].TaskID)
		assert.Equal(t, "AuthMe", workers[0].Owner)
		assert.True(t, s.IsCurrentlyRunning(id))
		assert.False(t, s.IsQueued(id))
	})

	t.Run("CancelDoesNotInterrupt", func(t *testing.T) {
		s.CancelTasks("AuthMe")
		assert.True(t, s.IsCurrentlyRunning(id))
	})

	close(release)
	require.Eventually(t, func() bool { return !s.IsCurrentlyRunning(id) }, time.Second, 5*time.Millisecond)
	assert.Empty(t, s.ActiveWorkers())
	assert.Eventually(t, func() bool { return s.Pending() == 0 }, time.Second, 5*time.Millisecond)
}

func TestRunTimerAsync(t *testing.T) {
	s := newTestScheduler(t)

	var runs atomic.Int32
	id, err := s.RunTimerAsync("AuthMe", 0, 10*time.Millisecond, func(ctx context.Context) {
		runs.Add(1)
	})
	require.NoError(t, err)

	assert.True(t, s.IsQueued(id))
	require.Eventually(t, func() bool { return runs.Load() >= 3 }, time.Second, 5*time.Millisecond)

	s.CancelTasks("AuthMe")
	assert.False(t, s.IsQueued(id))

	require.Eventually(t, func() bool { return s.Pending() == 0 }, time.Second, 5*time.Millisecond)
	after := runs.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, after, runs.Load())
}

func TestRunTimerAsyncRejectsZeroPeriod(t *testing.T) {
	s := newTestScheduler(t)
	_, err := s.RunTimerAsync("AuthMe", 0, 0, func(context.Context) {})
	assert.Error(t, err)
}

func TestCancelTasksOnlyTouchesOwner(t *testing.T) {
	s := newTestScheduler(t)

	mine, err := s.RunTimerAsync("AuthMe", time.Hour, time.Hour, func(context.Context) {})
	require.NoError(t, err)
	theirs, err := s.RunTimerAsync("Essentials", time.Hour, time.Hour, func(context.Context) {})
	require.NoError(t, err)

	s.CancelTasks("AuthMe")

	assert.False(t, s.IsQueued(mine))
	assert.True(t, s.IsQueued(theirs))
}

func TestClosedScheduler(t *testing.T) {
	s, err := New(1)
	require.NoError(t, err)
	require.NoError(t, s.Close(time.Second))
	require.NoError(t, s.Close(time.Second))

	_, err = s.RunAsync("AuthMe", func(context.Context) {})
	assert.ErrorIs(t, err, ErrClosed)
}
