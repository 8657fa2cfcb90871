// Package wallet implements the Hot Wallet Manager: signing-key storage,
// one adapter per chain family, and the serialized send_native primitive
// payouts are built on.
package wallet

import (
	"context"
	"fmt"
	"time"

	"cryptopay/pkg/cache"
	"cryptopay/pkg/logger"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	payoutLockTTL         = 180 * time.Second
	defaultLockRetryWait  = time.Second
	defaultLockRetryTries = 30
	defaultLockAcquireCap = 35 * time.Second
)

// Manager fans out balance reads and the send_native primitive to the
// chain-appropriate adapter, serializing sends per chain with a distributed
// lock so only one payout is ever in flight per chain at a time.
type Manager struct {
	adapters map[string]ChainAdapter

	lockRetryWait  time.Duration
	lockRetryTries int
	lockAcquireCap time.Duration
}

// NewManager creates a Hot Wallet Manager over a chain-slug -> adapter map.
func NewManager(adapters map[string]ChainAdapter) *Manager {
	return &Manager{
		adapters:       adapters,
		lockRetryWait:  defaultLockRetryWait,
		lockRetryTries: defaultLockRetryTries,
		lockAcquireCap: defaultLockAcquireCap,
	}
}

func (m *Manager) adapter(chainSlug string) (ChainAdapter, error) {
	a, ok := m.adapters[chainSlug]
	if !ok {
		return nil, fmt.Errorf("wallet: no adapter configured for chain %s", chainSlug)
	}
	return a, nil
}

// NativeBalance implements internal/inventory.ChainBalanceReader.
func (m *Manager) NativeBalance(ctx context.Context, chainSlug string) (decimal.Decimal, error) {
	a, err := m.adapter(chainSlug)
	if err != nil {
		return decimal.Zero, err
	}
	return a.NativeBalance(ctx)
}

// SendNative serializes a native-asset transfer on chainSlug behind the
// per-chain distributed lock (key lock:chain:<slug>, TTL 180s), retrying
// lock acquisition up to 30 times at 1s intervals within a 35s hard cap.
func (m *Manager) SendNative(ctx context.Context, chainSlug, toAddress string, amount decimal.Decimal) (string, error) {
	a, err := m.adapter(chainSlug)
	if err != nil {
		return "", err
	}

	lockKey := "lock:chain:" + chainSlug

	deadline := time.Now().Add(m.lockAcquireCap)
	var token string
	var acquired bool

	for attempt := 0; attempt < m.lockRetryTries; attempt++ {
		if time.Now().After(deadline) {
			break
		}

		token, acquired, err = cache.AcquireLock(ctx, lockKey, payoutLockTTL)
		if err != nil {
			return "", fmt.Errorf("wallet: lock acquisition error for chain %s: %w", chainSlug, err)
		}
		if acquired {
			break
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(m.lockRetryWait):
		}
	}

	if !acquired {
		return "", &LockAcquisitionError{Chain: chainSlug}
	}
	defer func() {
		if err := cache.ReleaseLock(context.Background(), lockKey, token); err != nil {
			logger.Error("failed to release payout lock", zap.String("chain", chainSlug), zap.Error(err))
		}
	}()

	txHash, err := a.SendNative(ctx, toAddress, amount)
	if err != nil {
		if tb, ok := AsTxBroadcasted(err); ok {
			logger.Error("payout broadcasted but unconfirmed",
				zap.String("chain", chainSlug), zap.String("tx_hash", tb.TxHash), zap.Error(tb.Cause))
		}
		return txHash, err
	}

	logger.Info("payout sent", zap.String("chain", chainSlug), zap.String("to", toAddress),
		zap.String("amount", amount.String()), zap.String("tx_hash", txHash))

	return txHash, nil
}
