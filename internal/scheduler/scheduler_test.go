package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taskboard-dev/taskboard/internal/logger"
)

func TestScheduler_RunsImmediatelyAndOnTicks(t *testing.T) {
	s := NewScheduler(logger.NewNop())
	defer s.Stop()

	var runs atomic.Int32
	s.AddJob("counter", 20*time.Millisecond, func(ctx context.Context) error {
		runs.Add(1)
		return nil
	})

	require.Eventually(t, func() bool { return runs.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)
}

func TestScheduler_RemoveJobStopsIt(t *testing.T) {
	s := NewScheduler(logger.NewNop())
	defer s.Stop()

	var runs atomic.Int32
	s.AddJob("counter", 10*time.Millisecond, func(ctx context.Context) error {
		runs.Add(1)
		return nil
	})
	require.Eventually(t, func() bool { return runs.Load() >= 1 }, time.Second, 5*time.Millisecond)

	s.RemoveJob("counter")
	time.Sleep(30 * time.Millisecond)
	after := runs.Load()
	time.Sleep(50 * time.Millisecond)

	assert.Equal(t, after, runs.Load())
	assert.Equal(t, 0, s.Status()["active_jobs"])
}

func TestScheduler_StopCancelsRunningJob(t *testing.T) {
	s := NewScheduler(logger.NewNop())

	started := make(chan struct{})
	cancelled := make(chan struct{})
	s.AddJob("blocking", time.Hour, func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		close(cancelled)
		return ctx.Err()
	})

	<-started
	s.Stop()

	select {
	case <-cancelled:
	case <-time.After(time.Second):
		t.Fatal("job was not cancelled")
	}
	assert.Equal(t, false, s.Status()["running"])
}

func TestScheduler_RecordsFailuresAndPanics(t *testing.T) {
	s := NewScheduler(logger.NewNop())
	defer s.Stop()

	s.AddJob("failing", time.Hour, func(ctx context.Context) error {
		return errors.New("boom")
	})
	s.AddJob("panicking", time.Hour, func(ctx context.Context) error {
		panic("oops")
	})

	require.Eventually(t, func() bool {
		jobs := s.Status()["jobs"].([]JobStatus)
		failed := 0
		for _, job := range jobs {
			if job.Runs == 1 && job.LastError != "" {
				failed++
			}
		}
		return failed == 2
	}, time.Second, 5*time.Millisecond)
}

func TestScheduler_IgnoresJobsAfterStop(t *testing.T) {
	s := NewScheduler(logger.NewNop())
	s.Stop()

	s.AddJob("late", time.Millisecond, func(ctx context.Context) error {
		t.Error("job should not run after stop")
		return nil
	})
	time.Sleep(10 * time.Millisecond)
}
