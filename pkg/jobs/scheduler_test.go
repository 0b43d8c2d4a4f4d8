package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchedulerRunsTaskOnInterval(t *testing.T) {
	var runs int64
	s := NewScheduler(nil)
	err := s.Register(Task{
		Name:     "counter",
		Interval: 10 * time.Millisecond,
		Run: func(ctx context.Context) error {
			atomic.AddInt64(&runs, 1)
			return nil
		},
	})
	require.NoError(t, err)

	s.Start(context.Background())
	time.Sleep(100 * time.Millisecond)
	s.Stop()

	assert.Greater(t, atomic.LoadInt64(&runs), int64(2))
}

func TestSchedulerSurvivesTaskFailure(t *testing.T) {
	var runs int64
	s := NewScheduler(nil)
	err := s.Register(Task{
		Name:     "flaky",
		Interval: 10 * time.Millisecond,
		Run: func(ctx context.Context) error {
			atomic.AddInt64(&runs, 1)
			return errors.New("boom")
		},
	})
	require.NoError(t, err)

	s.Start(context.Background())
	time.Sleep(60 * time.Millisecond)
	s.Stop()

	// A failing task keeps its schedule.
	assert.Greater(t, atomic.LoadInt64(&runs), int64(1))
}

func TestSchedulerRegisterValidation(t *testing.T) {
	s := NewScheduler(nil)

	assert.Error(t, s.Register(Task{Interval: time.Second, Run: func(ctx context.Context) error { return nil }}))
	assert.Error(t, s.Register(Task{Name: "no-run", Interval: time.Second}))
	assert.Error(t, s.Register(Task{Name: "no-interval", Run: func(ctx context.Context) error { return nil }}))

	require.NoError(t, s.Register(Task{Name: "ok", Interval: time.Second, Run: func(ctx context.Context) error { return nil }}))
	s.Start(context.Background())
	defer s.Stop()

	assert.Error(t, s.Register(Task{Name: "late", Interval: time.Second, Run: func(ctx context.Context) error { return nil }}))
}

func TestSchedulerStopIsIdempotent(t *testing.T) {
	s := NewScheduler(nil)
	s.Stop()

	require.NoError(t, s.Register(Task{Name: "noop", Interval: time.Hour, Run: func(ctx context.Context) error { return nil }}))
	s.Start(context.Background())
	s.Stop()
	s.Stop()
}
