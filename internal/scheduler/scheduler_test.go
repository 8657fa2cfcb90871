package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestScheduler_RunJob_RunsImmediatelyThenOnTicker(t *testing.T) {
	var calls atomic.Int64
	job := Job{
		Name:     "test_job",
		Interval: 10 * time.Millisecond,
		Run: func(ctx context.Context) error {
			calls.Add(1)
			return nil
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := New([]Job{job})

	done := make(chan struct{})
	go func() {
		s.runJob(ctx, job)
		close(done)
	}()

	time.Sleep(35 * time.Millisecond)
	cancel()
	<-done

	assert.GreaterOrEqual(t, calls.Load(), int64(2))
}

func TestScheduler_RunJob_ErrorDoesNotStopFutureTicks(t *testing.T) {
	var calls atomic.Int64
	job := Job{
		Name:     "failing_job",
		Interval: 10 * time.Millisecond,
		Run: func(ctx context.Context) error {
			n := calls.Add(1)
			if n == 1 {
				return assert.AnError
			}
			return nil
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := New([]Job{job})

	done := make(chan struct{})
	go func() {
		s.runJob(ctx, job)
		close(done)
	}()

	time.Sleep(35 * time.Millisecond)
	cancel()
	<-done

	assert.GreaterOrEqual(t, calls.Load(), int64(2))
}
