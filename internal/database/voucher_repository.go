package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrVoucherNotFound is returned when a voucher code does not exist.
	ErrVoucherNotFound = errors.New("voucher not found")
	// ErrVoucherInactive is returned for a disabled or expired voucher.
	ErrVoucherInactive = errors.New("voucher inactive or expired")
	// ErrVoucherNotOwned is returned when a user tries to use someone else's owner-scoped voucher.
	ErrVoucherNotOwned = errors.New("voucher not owned by this user")
	// ErrVoucherBelowMinAmount is returned when the order amount is below the voucher's minimum.
	ErrVoucherBelowMinAmount = errors.New("order amount below voucher minimum")
	// ErrVoucherAlreadyUsed is returned when the user already has a qualifying order against this voucher.
	ErrVoucherAlreadyUsed = errors.New("voucher already used or in use by this user")
	// ErrQuotaExceeded is returned when usage_count has already reached max_usage.
	ErrQuotaExceeded = errors.New("voucher quota exceeded")
)

// VoucherRepository handles all database operations for vouchers.
type VoucherRepository struct {
	db *pgxpool.Pool
}

// NewVoucherRepository creates a new voucher repository instance.
func NewVoucherRepository(db *DB) *VoucherRepository {
	return &VoucherRepository{db: db.pool}
}

// Create inserts a new voucher.
func (r *VoucherRepository) Create(ctx context.Context, v *Voucher) error {
	query := `INSERT INTO vouchers (
		id, code, owner_id, value_idr, min_amount, max_usage, usage_count, active, expires_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := r.db.Exec(ctx, query,
		v.ID, v.Code, v.OwnerID, v.ValueIDR, v.MinAmount, v.MaxUsage, v.UsageCount, v.Active, v.ExpiresAt, v.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create voucher %s: %w", v.Code, err)
	}

	return nil
}

// GetByCode retrieves a voucher by its code. Returns ErrVoucherNotFound if absent.
func (r *VoucherRepository) GetByCode(ctx context.Context, code string) (*Voucher, error) {
	query := `SELECT id, code, owner_id, value_idr, min_amount, max_usage, usage_count, active, expires_at, created_at
		FROM vouchers WHERE code = $1`

	var v Voucher
	err := r.db.QueryRow(ctx, query, code).Scan(
		&v.ID, &v.Code, &v.OwnerID, &v.ValueIDR, &v.MinAmount, &v.MaxUsage, &v.UsageCount, &v.Active, &v.ExpiresAt, &v.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrVoucherNotFound
		}
		return nil, fmt.Errorf("failed to get voucher %s: %w", code, err)
	}

	return &v, nil
}

// validate performs every check except the atomic increment, shared by
// Peek and ValidateAndReserve.
func (r *VoucherRepository) validate(ctx context.Context, q Querier, code, userID string, orderAmountIDR int64) (*Voucher, error) {
	v, err := r.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}

	if !v.Active || time.Now().After(v.ExpiresAt) {
		return nil, ErrVoucherInactive
	}
	if v.OwnerID != nil && *v.OwnerID != userID {
		return nil, ErrVoucherNotOwned
	}
	if orderAmountIDR < v.MinAmount {
		return nil, ErrVoucherBelowMinAmount
	}

	if v.OwnerID == nil {
		var count int
		err := q.QueryRow(ctx,
			`SELECT COUNT(*) FROM orders
			 WHERE voucher_id = $1 AND user_id = $2
			   AND (status = $3 OR status IN ($4, $5, $6))`,
			v.ID, userID, OrderSuccess, OrderPending, OrderPaid, OrderProcessing,
		).Scan(&count)
		if err != nil {
			return nil, fmt.Errorf("failed to check prior voucher usage: %w", err)
		}
		if count > 0 {
			return nil, ErrVoucherAlreadyUsed
		}
	}

	return v, nil
}

// Peek runs every ValidateAndReserve check without incrementing usage_count,
// for UIs that want to show eligibility before the user confirms.
func (r *VoucherRepository) Peek(ctx context.Context, code, userID string, orderAmountIDR int64) (*Voucher, error) {
	return r.validate(ctx, r.db, code, userID, orderAmountIDR)
}

// ValidateAndReserve validates the voucher and, if it passes, atomically
// increments usage_count guarded by usage_count < max_usage. q lets the
// caller couple this with order insertion in one transaction.
func (r *VoucherRepository) ValidateAndReserve(ctx context.Context, q Querier, code, userID string, orderAmountIDR int64) (*Voucher, error) {
	v, err := r.validate(ctx, q, code, userID, orderAmountIDR)
	if err != nil {
		return nil, err
	}

	commandTag, err := q.Exec(ctx,
		`UPDATE vouchers SET usage_count = usage_count + 1 WHERE id = $1 AND usage_count < max_usage`,
		v.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to reserve voucher %s: %w", code, err)
	}
	if commandTag.RowsAffected() == 0 {
		return nil, ErrQuotaExceeded
	}

	v.UsageCount++
	return v, nil
}

// Release atomically decrements usage_count with a floor of zero; a
// zero-row update (voucher not found, or already at zero) is ignored.
func (r *VoucherRepository) Release(ctx context.Context, voucherID string) error {
	_, err := r.db.Exec(ctx,
		`UPDATE vouchers SET usage_count = usage_count - 1 WHERE id = $1 AND usage_count > 0`,
		voucherID,
	)
	if err != nil {
		return fmt.Errorf("failed to release voucher %s: %w", voucherID, err)
	}

	return nil
}

// DeactivateExpired flips active=false for every voucher past its
// expires_at that is still marked active, for the periodic expiry sweep.
// Returns the number of vouchers deactivated.
func (r *VoucherRepository) DeactivateExpired(ctx context.Context) (int64, error) {
	commandTag, err := r.db.Exec(ctx,
		`UPDATE vouchers SET active = false WHERE active = true AND expires_at < now()`,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to deactivate expired vouchers: %w", err)
	}

	return commandTag.RowsAffected(), nil
}
