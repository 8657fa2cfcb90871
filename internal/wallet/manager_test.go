//go:build integration

package wallet

import (
	"context"
	"os"
	"testing"
	"time"

	"cryptopay/pkg/cache"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type fakeAdapter struct {
	balance decimal.Decimal
	txHash  string
	err     error
}

func (f *fakeAdapter) NativeBalance(ctx context.Context) (decimal.Decimal, error) {
	return f.balance, f.err
}

func (f *fakeAdapter) SendNative(ctx context.Context, toAddress string, amount decimal.Decimal) (string, error) {
	return f.txHash, f.err
}

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

	require.NoError(t, cache.Init(cache.Config{Host: host, Port: port, DB: 2}))
	t.Cleanup(func() { cache.Delete(context.Background(), "lock:chain:bsc") })
}

func TestManager_NativeBalance_DelegatesToAdapter(t *testing.T) {
	setupTestRedis(t)
	m := NewManager(map[string]ChainAdapter{"bsc": &fakeAdapter{balance: decimal.NewFromInt(5)}})

	balance, err := m.NativeBalance(context.Background(), "bsc")
	require.NoError(t, err)
	require.True(t, balance.Equal(decimal.NewFromInt(5)))
}

func TestManager_NativeBalance_UnknownChain(t *testing.T) {
	setupTestRedis(t)
	m := NewManager(map[string]ChainAdapter{})

	_, err := m.NativeBalance(context.Background(), "nope")
	require.Error(t, err)
}

func TestManager_SendNative_AcquiresAndReleasesLock(t *testing.T) {
	setupTestRedis(t)
	m := NewManager(map[string]ChainAdapter{"bsc": &fakeAdapter{txHash: "0xabc"}})

	txHash, err := m.SendNative(context.Background(), "bsc", "0xdead", decimal.NewFromInt(1))
	require.NoError(t, err)
	require.Equal(t, "0xabc", txHash)

	held, err := cache.Exists(context.Background(), "lock:chain:bsc")
	require.NoError(t, err)
	require.False(t, held)
}

func TestManager_SendNative_LockHeldByAnother(t *testing.T) {
	setupTestRedis(t)
	_, ok, err := cache.AcquireLock(context.Background(), "lock:chain:bsc", payoutLockTTL)
	require.NoError(t, err)
	require.True(t, ok)

	m := NewManager(map[string]ChainAdapter{"bsc": &fakeAdapter{txHash: "0xabc"}})
	m.lockRetryWait = 10 * time.Millisecond
	m.lockRetryTries = 3
	m.lockAcquireCap = 50 * time.Millisecond

	_, err = m.SendNative(context.Background(), "bsc", "0xdead", decimal.NewFromInt(1))
	require.Error(t, err)

	var lockErr *LockAcquisitionError
	require.ErrorAs(t, err, &lockErr)
}
