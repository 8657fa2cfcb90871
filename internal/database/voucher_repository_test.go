//go:build integration

package database

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedVoucher(t *testing.T, db *DB, code string, ownerID *string, maxUsage int) *Voucher {
	t.Helper()

	v := &Voucher{
		ID:        uuid.New().String(),
		Code:      code,
		OwnerID:   ownerID,
		ValueIDR:  10000,
		MinAmount: 5000,
		MaxUsage:  maxUsage,
		Active:    true,
		ExpiresAt: time.Now().Add(24 * time.Hour),
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, NewVoucherRepository(db).Create(context.Background(), v))

	return v
}

func TestVoucherRepository_ValidateAndReserve_Success(t *testing.T) {
	db := SetupTestDB(t)
	defer db.Close()
	defer CleanupTestDB(t, db)

	user := SeedUser(t, db)
	seedVoucher(t, db, "WELCOME10", nil, 5)

	repo := NewVoucherRepository(db)
	v, err := repo.ValidateAndReserve(context.Background(), db.pool, "WELCOME10", user.ID, 50000)
	require.NoError(t, err)
	assert.Equal(t, 1, v.UsageCount)
}

func TestVoucherRepository_ValidateAndReserve_QuotaExceeded(t *testing.T) {
	db := SetupTestDB(t)
	defer db.Close()
	defer CleanupTestDB(t, db)

	user := SeedUser(t, db)
	seedVoucher(t, db, "LIMITED1", nil, 1)

	repo := NewVoucherRepository(db)
	ctx := context.Background()

	_, err := repo.ValidateAndReserve(ctx, db.pool, "LIMITED1", user.ID, 50000)
	require.NoError(t, err)

	other := SeedUser(t, db)
	_, err = repo.ValidateAndReserve(ctx, db.pool, "LIMITED1", other.ID, 50000)
	assert.ErrorIs(t, err, ErrQuotaExceeded)
}

func TestVoucherRepository_ValidateAndReserve_BelowMinAmount(t *testing.T) {
	db := SetupTestDB(t)
	defer db.Close()
	defer CleanupTestDB(t, db)

	user := SeedUser(t, db)
	seedVoucher(t, db, "MIN5000", nil, 5)

	repo := NewVoucherRepository(db)
	_, err := repo.ValidateAndReserve(context.Background(), db.pool, "MIN5000", user.ID, 1000)
	assert.ErrorIs(t, err, ErrVoucherBelowMinAmount)
}

func TestVoucherRepository_ValidateAndReserve_NotOwned(t *testing.T) {
	db := SetupTestDB(t)
	defer db.Close()
	defer CleanupTestDB(t, db)

	owner := SeedUser(t, db)
	other := SeedUser(t, db)
	seedVoucher(t, db, "PRIVATE1", &owner.ID, 5)

	repo := NewVoucherRepository(db)
	_, err := repo.ValidateAndReserve(context.Background(), db.pool, "PRIVATE1", other.ID, 50000)
	assert.ErrorIs(t, err, ErrVoucherNotOwned)
}

func TestVoucherRepository_ValidateAndReserve_AlreadyUsed(t *testing.T) {
	db := SetupTestDB(t)
	defer db.Close()
	defer CleanupTestDB(t, db)

	user := SeedUser(t, db)
	v := seedVoucher(t, db, "ONEUSE", nil, 5)

	order := SeedOrder(t, db, user.ID, OrderSuccess)
	_, err := db.pool.Exec(context.Background(), `UPDATE orders SET voucher_id = $1 WHERE id = $2`, v.ID, order.ID)
	require.NoError(t, err)

	repo := NewVoucherRepository(db)
	_, err = repo.ValidateAndReserve(context.Background(), db.pool, "ONEUSE", user.ID, 50000)
	assert.ErrorIs(t, err, ErrVoucherAlreadyUsed)
}

func TestVoucherRepository_Release_NeverGoesNegative(t *testing.T) {
	db := SetupTestDB(t)
	defer db.Close()
	defer CleanupTestDB(t, db)

	v := seedVoucher(t, db, "ZERORELEASE", nil, 5)

	repo := NewVoucherRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Release(ctx, v.ID))

	got, err := repo.GetByCode(ctx, "ZERORELEASE")
	require.NoError(t, err)
	assert.Equal(t, 0, got.UsageCount)
}

func TestVoucherRepository_Peek_DoesNotIncrement(t *testing.T) {
	db := SetupTestDB(t)
	defer db.Close()
	defer CleanupTestDB(t, db)

	user := SeedUser(t, db)
	seedVoucher(t, db, "PEEKME", nil, 5)

	repo := NewVoucherRepository(db)
	ctx := context.Background()

	_, err := repo.Peek(ctx, "PEEKME", user.ID, 50000)
	require.NoError(t, err)

	got, err := repo.GetByCode(ctx, "PEEKME")
	require.NoError(t, err)
	assert.Equal(t, 0, got.UsageCount)
}
