//go:build integration

package voucher

import (
	"context"
	"testing"
	"time"

	"cryptopay/internal/database"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedVoucher(t *testing.T, db *database.DB, code string, active bool, expiresAt time.Time) *database.Voucher {
	t.Helper()

	v := &database.Voucher{
		ID:        uuid.New().String(),
		Code:      code,
		ValueIDR:  10000,
		MaxUsage:  1,
		Active:    active,
		ExpiresAt: expiresAt,
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, database.NewVoucherRepository(db).Create(context.Background(), v))
	return v
}

func TestService_ExpireSweep_DeactivatesOnlyExpiredActiveVouchers(t *testing.T) {
	db := database.SetupTestDB(t)
	defer db.Close()
	defer database.CleanupTestDB(t, db)

	expired := seedVoucher(t, db, "EXPIRED1", true, time.Now().Add(-time.Hour))
	stillActive := seedVoucher(t, db, "ACTIVE1", true, time.Now().Add(time.Hour))
	alreadyInactive := seedVoucher(t, db, "INACTIVE1", false, time.Now().Add(-time.Hour))

	svc := NewService(database.NewVoucherRepository(db))

	count, err := svc.ExpireSweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	repo := database.NewVoucherRepository(db)

	got, err := repo.GetByCode(context.Background(), expired.Code)
	require.NoError(t, err)
	assert.False(t, got.Active)

	got, err = repo.GetByCode(context.Background(), stillActive.Code)
	require.NoError(t, err)
	assert.True(t, got.Active)

	got, err = repo.GetByCode(context.Background(), alreadyInactive.Code)
	require.NoError(t, err)
	assert.False(t, got.Active)
}
