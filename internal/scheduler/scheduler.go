// Package scheduler runs the recurring background jobs described in the
// job cadence table: order expiry, the unqueued-payout sweep, referral
// validation, voucher expiry, and inventory sync. Each job gets its own
// ticker loop shaped after the price refresher's run-once-then-loop
// pattern; on startup the scheduler reconciles the Redis-backed set of
// previously-registered job names against the current table so a
// redeploy that drops a job doesn't leave it orphaned.
package scheduler

import (
	"context"
	"sync"
	"time"

	"cryptopay/pkg/cache"
	"cryptopay/pkg/logger"

	"go.uber.org/zap"
)

// registeredJobsKey is the Redis set tracking which job names are
// currently scheduled, so stale registrations can be detected on startup.
const registeredJobsKey = "scheduler:registered_jobs"

// Job is one recurring unit of work run on a fixed interval.
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// Scheduler runs a fixed table of jobs, each on its own ticker, until its
// context is cancelled.
type Scheduler struct {
	jobs []Job
}

// New creates a scheduler over the given job table.
func New(jobs []Job) *Scheduler {
	return &Scheduler{jobs: jobs}
}

// Run reconciles job registrations against the current table, then starts
// every job's ticker loop and blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	if err := s.reconcile(ctx); err != nil {
		return err
	}

	var wg sync.WaitGroup
	for _, job := range s.jobs {
		wg.Add(1)
		go func(j Job) {
			defer wg.Done()
			s.runJob(ctx, j)
		}(job)
	}
	wg.Wait()

	return nil
}

// reconcile removes registrations for jobs no longer in the table, then
// registers the current set, so orphaned schedules from a previous
// deploy don't linger.
func (s *Scheduler) reconcile(ctx context.Context) error {
	current := make([]string, len(s.jobs))
	currentSet := make(map[string]bool, len(s.jobs))
	for i, j := range s.jobs {
		current[i] = j.Name
		currentSet[j.Name] = true
	}

	registered, err := cache.SMembers(ctx, registeredJobsKey)
	if err != nil {
		return err
	}

	var stale []string
	for _, name := range registered {
		if !currentSet[name] {
			stale = append(stale, name)
		}
	}

	if len(stale) > 0 {
		if err := cache.SRem(ctx, registeredJobsKey, stale...); err != nil {
			return err
		}
		logger.Info("removed stale job registrations", zap.Strings("jobs", stale))
	}

	if len(current) > 0 {
		if err := cache.SAdd(ctx, registeredJobsKey, current...); err != nil {
			return err
		}
	}

	return nil
}

func (s *Scheduler) runJob(ctx context.Context, j Job) {
	ticker := time.NewTicker(j.Interval)
	defer ticker.Stop()

	s.execute(ctx, j)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.execute(ctx, j)
		}
	}
}

func (s *Scheduler) execute(ctx context.Context, j Job) {
	start := time.Now()
	if err := j.Run(ctx); err != nil {
		logger.Error("scheduled job failed", zap.String("job", j.Name), zap.Error(err))
		return
	}
	logger.Debug("scheduled job completed", zap.String("job", j.Name), zap.Duration("elapsed", time.Since(start)))
}
