package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduler_RegisterAndTasks(t *testing.T) {
	s := New(time.Second, zerolog.Nop())

	s.Register("reanalyze", time.Minute, func(context.Context) error { return nil })
	s.Register("cleanup", time.Hour, func(context.Context) error { return nil })

	tasks := s.Tasks()
	require.Len(t, tasks, 2)
	assert.Equal(t, "reanalyze", tasks[0].Name)
	assert.Equal(t, "1m0s", tasks[0].Interval)
}

func TestScheduler_RunDue(t *testing.T) {
	s := New(time.Second, zerolog.Nop())

	var count int
	s.Register("counter", time.Minute, func(context.Context) error {
		count++
		return nil
	})

	// 아직 실행 시점 전
	s.runDue(context.Background(), time.Now())
	assert.Equal(t, 0, count)

	s.tasks[0].NextRun = time.Now().Add(-time.Second)
	s.runDue(context.Background(), time.Now())
	assert.Equal(t, 1, count)
	assert.Equal(t, int64(1), s.Tasks()[0].RunCount)
}

func TestScheduler_RecordsError(t *testing.T) {
	s := New(time.Second, zerolog.Nop())

	s.Register("failing", time.Minute, func(context.Context) error {
		return errors.New("analyzer down")
	})
	s.tasks[0].NextRun = time.Now().Add(-time.Second)
	s.runDue(context.Background(), time.Now())

	info := s.Tasks()[0]
	require.NotNil(t, info.LastError)
	assert.Equal(t, "analyzer down", *info.LastError)
}

func TestScheduler_StartStop(t *testing.T) {
	s := New(5*time.Millisecond, zerolog.Nop())

	var count int32
	s.Register("fast", time.Millisecond, func(context.Context) error {
		atomic.AddInt32(&count, 1)
		return nil
	})

	s.Start(context.Background())
	assert.Eventually(t, func() bool {
		return atomic.LoadInt32(&count) > 0
	}, time.Second, 5*time.Millisecond)
	s.Stop()
}
