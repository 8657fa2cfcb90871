// Package inventory implements the hot wallet's per-(chain, symbol) balance
// ledger: how much native asset is on hand, and how much of it is already
// promised to PENDING/PAID/PROCESSING orders.
package inventory

import (
	"context"
	"errors"
	"fmt"

	"cryptopay/internal/database"
	"cryptopay/pkg/logger"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ChainBalanceReader is the subset of the Hot Wallet Manager's chain
// adapters the sync job needs: the current native-asset balance held by the
// hot wallet address on that chain.
type ChainBalanceReader interface {
	NativeBalance(ctx context.Context, chainSlug string) (decimal.Decimal, error)
}

// Service wraps the inventory repository with the reserve/release/deduct
// API callers use, so nothing outside this package writes to an Inventory
// row directly.
type Service struct {
	repo   *database.InventoryRepository
	chains ChainBalanceReader
}

// NewService creates a new inventory service instance.
func NewService(repo *database.InventoryRepository, chains ChainBalanceReader) *Service {
	return &Service{repo: repo, chains: chains}
}

// Get returns the current ledger row for a (chain, symbol) pair.
func (s *Service) Get(ctx context.Context, chain, symbol string) (*database.Inventory, error) {
	return s.repo.Get(ctx, chain, symbol)
}

// Available returns balance - reserved, the amount actually sellable right now.
func (s *Service) Available(ctx context.Context, chain, symbol string) (decimal.Decimal, error) {
	inv, err := s.repo.Get(ctx, chain, symbol)
	if err != nil {
		return decimal.Zero, err
	}

	return inv.Balance.Sub(inv.Reserved), nil
}

// Reserve reserves amount of (chain, symbol) within the caller's
// transaction q, so order creation and inventory reservation commit or
// roll back together.
func (s *Service) Reserve(ctx context.Context, q database.Querier, chain, symbol string, amount decimal.Decimal) error {
	if amount.IsZero() || amount.IsNegative() {
		return fmt.Errorf("invalid reserve amount %s", amount)
	}

	return s.repo.Reserve(ctx, q, chain, symbol, amount)
}

// Release gives back a reservation, e.g. on order cancel/expire. It never
// fails on a partial or already-released amount — the repository floors at
// zero and self-heals a negative reading.
func (s *Service) Release(ctx context.Context, chain, symbol string, amount decimal.Decimal) error {
	if amount.IsZero() {
		return nil
	}

	return s.repo.Release(ctx, chain, symbol, amount)
}

// Deduct commits a reservation to an actual spend once a payout has been
// sent on-chain. This never rolls back on a post-condition anomaly: a
// negative balance or reserved afterwards is logged and audited by the
// repository, not returned as an error.
func (s *Service) Deduct(ctx context.Context, chain, symbol string, amount decimal.Decimal) error {
	return s.repo.Deduct(ctx, chain, symbol, amount)
}

// Sync re-reads the hot wallet's on-chain balance for a chain's native
// symbol and overwrites the ledger's balance field, leaving reserved
// untouched. Invoked by the Scheduler's inventory-sync job.
func (s *Service) Sync(ctx context.Context, chain, symbol string) error {
	if s.chains == nil {
		return errors.New("inventory: no chain balance reader configured")
	}

	balance, err := s.chains.NativeBalance(ctx, chain)
	if err != nil {
		return fmt.Errorf("failed to read on-chain balance for %s: %w", chain, err)
	}

	if err := s.repo.SyncBalance(ctx, chain, symbol, balance); err != nil {
		return fmt.Errorf("failed to sync inventory %s/%s: %w", chain, symbol, err)
	}

	logger.Info("synced inventory balance",
		zap.String("chain", chain), zap.String("symbol", symbol), zap.String("balance", balance.String()))

	return nil
}
