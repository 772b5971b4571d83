package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestEveryRunsPeriodically(t *testing.T) {
	s := New()
	defer s.Stop()

	var runs atomic.Int32
	_, err := s.Every("tick", 0, 10*time.Millisecond, func(ctx context.Context) {
		runs.Add(1)
	})
	require.NoError(t, err)

	assert.Eventually(t, func() bool { return runs.Load() >= 3 }, time.Second, 5*time.Millisecond)
}

func TestEveryHonoursDelay(t *testing.T) {
	s := New()
	defer s.Stop()

	var runs atomic.Int32
	_, err := s.Every("late", time.Hour, 10*time.Millisecond, func(ctx context.Context) {
		runs.Add(1)
	})
	require.NoError(t, err)

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(0), runs.Load())
	assert.Equal(t, 1, s.Len())
}

func TestTaskStop(t *testing.T) {
	s := New()
	defer s.Stop()

	var runs atomic.Int32
	task, err := s.Every("stoppable", 0, 5*time.Millisecond, func(ctx context.Context) {
		runs.Add(1)
	})
	require.NoError(t, err)
	assert.Equal(t, "stoppable", task.Name())

	assert.Eventually(t, func() bool { return runs.Load() >= 1 }, time.Second, time.Millisecond)
	task.Stop()

	after := runs.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, after, runs.Load())
	assert.Equal(t, 0, s.Len())
}

func TestPanickingTaskKeepsRunning(t *testing.T) {
	s := New()
	defer s.Stop()

	var runs atomic.Int32
	_, err := s.Every("panicky", 0, 5*time.Millisecond, func(ctx context.Context) {
		runs.Add(1)
		panic("boom")
	})
	require.NoError(t, err)

	assert.Eventually(t, func() bool { return runs.Load() >= 2 }, time.Second, time.Millisecond)
}

func TestStop(t *testing.T) {
	s := New()

	started := make(chan struct{}, 1)
	_, err := s.Every("blocking", 0, time.Millisecond, func(ctx context.Context) {
		select {
		case started <- struct{}{}:
		default:
		}
		<-ctx.Done()
	})
	require.NoError(t, err)
	<-started

	s.Stop()
	s.Stop()

	_, err = s.Every("too-late", 0, time.Millisecond, func(ctx context.Context) {})
	assert.ErrorIs(t, err, ErrStopped)
}

func TestEveryRejectsNonPositivePeriod(t *testing.T) {
	s := New()
	defer s.Stop()

	_, err := s.Every("bad", 0, 0, func(ctx context.Context) {})
	assert.Error(t, err)
}
