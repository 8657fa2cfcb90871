package scheduler

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errFakeQueue = errors.New("queue unavailable")

type fakePayoutQueue struct {
	pending int64
	err     error
}

func (f *fakePayoutQueue) PendingCount(ctx context.Context, stream, group string) (int64, error) {
	return f.pending, f.err
}

func jobNames(jobs []Job) []string {
	names := make([]string, len(jobs))
	for i, j := range jobs {
		names[i] = j.Name
	}
	return names
}

func TestBuildJobs_OmitsBacklogCheckWithoutQueue(t *testing.T) {
	jobs := BuildJobs(Deps{})
	assert.NotContains(t, jobNames(jobs), "payout_queue_backlog_check")
}

func TestBuildJobs_IncludesBacklogCheckWithQueue(t *testing.T) {
	jobs := BuildJobs(Deps{Queue: &fakePayoutQueue{pending: 5}})
	assert.Contains(t, jobNames(jobs), "payout_queue_backlog_check")
}

func TestBacklogCheckJob_PropagatesQueueError(t *testing.T) {
	jobs := BuildJobs(Deps{Queue: &fakePayoutQueue{err: errFakeQueue}})

	var job Job
	for _, j := range jobs {
		if j.Name == "payout_queue_backlog_check" {
			job = j
		}
	}
	require.NotNil(t, job.Run)

	err := job.Run(context.Background())
	assert.ErrorIs(t, err, errFakeQueue)
}
