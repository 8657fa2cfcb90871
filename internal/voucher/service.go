// Package voucher implements the discount-code reservation counter coupled
// to order lifetime: a voucher's usage_count is incremented atomically at
// order creation and decremented atomically on cancel/expire.
package voucher

import (
	"context"

	"cryptopay/internal/database"
)

// Service wraps the voucher repository's validate/reserve/release API.
type Service struct {
	repo *database.VoucherRepository
}

// NewService creates a new voucher service instance.
func NewService(repo *database.VoucherRepository) *Service {
	return &Service{repo: repo}
}

// Peek runs every eligibility check for code without reserving it, for UIs
// that want to show validity before the user confirms a purchase.
func (s *Service) Peek(ctx context.Context, code, userID string, orderAmountIDR int64) (*database.Voucher, error) {
	return s.repo.Peek(ctx, code, userID, orderAmountIDR)
}

// ValidateAndReserve validates code against userID/orderAmountIDR and, if
// eligible, atomically increments its usage counter within q — composing
// with the caller's order-creation transaction.
func (s *Service) ValidateAndReserve(ctx context.Context, q database.Querier, code, userID string, orderAmountIDR int64) (*database.Voucher, error) {
	return s.repo.ValidateAndReserve(ctx, q, code, userID, orderAmountIDR)
}

// Release gives back one usage slot on cancel/expire of the order that held it.
func (s *Service) Release(ctx context.Context, voucherID string) error {
	return s.repo.Release(ctx, voucherID)
}

// ExpireSweep deactivates every voucher whose expires_at has passed,
// invoked by the Scheduler's voucher expiry sweep job. Returns the number
// deactivated.
func (s *Service) ExpireSweep(ctx context.Context) (int64, error) {
	return s.repo.DeactivateExpired(ctx)
}
