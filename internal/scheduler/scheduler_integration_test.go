//go:build integration

package scheduler

import (
	"context"
	"os"
	"testing"

	"cryptopay/pkg/cache"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) {
	t.Helper()

	host := os.Getenv("TEST_REDIS_HOST")
	if host == "" {
		host = "localhost"
	}
	port := os.Getenv("TEST_REDIS_PORT")
	if port == "" {
		port = "6379"
	}

	require.NoError(t, cache.Init(cache.Config{Host: host, Port: port, DB: 1}))
}

func noopJob(name string) Job {
	return Job{Name: name, Run: func(ctx context.Context) error { return nil }}
}

func TestScheduler_Reconcile_RemovesStaleAndRegistersCurrent(t *testing.T) {
	setupTestRedis(t)
	ctx := context.Background()

	defer func() { _, _ = cache.Delete(ctx, registeredJobsKey) }()
	_, _ = cache.Delete(ctx, registeredJobsKey)

	require.NoError(t, cache.SAdd(ctx, registeredJobsKey, "gone_job", "order_expiry_sweep"))

	s := New([]Job{noopJob("order_expiry_sweep"), noopJob("referral_sweep")})
	require.NoError(t, s.reconcile(ctx))

	members, err := cache.SMembers(ctx, registeredJobsKey)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"order_expiry_sweep", "referral_sweep"}, members)
}
