//go:build integration

package database

import (
	"context"
	"testing"
	"time"

	"cryptopay/pkg/logger"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	_ = logger.Init("development")
}

func seedInventory(t *testing.T, db *DB, chain, symbol string, balance, reserved decimal.Decimal) {
	t.Helper()
	repo := NewInventoryRepository(db, NewAuditRepository(db))
	err := repo.Create(context.Background(), &Inventory{
		Chain: chain, Symbol: symbol, Balance: balance, Reserved: reserved, UpdatedAt: time.Now().UTC(),
	})
	require.NoError(t, err)
}

func TestInventoryRepository_Reserve_Success(t *testing.T) {
	db := SetupTestDB(t)
	defer db.Close()
	defer CleanupTestDB(t, db)

	seedInventory(t, db, "bsc", "BNB", decimal.NewFromInt(10), decimal.Zero)

	repo := NewInventoryRepository(db, NewAuditRepository(db))
	ctx := context.Background()

	err := repo.Reserve(ctx, db.pool, "bsc", "BNB", decimal.NewFromInt(4))
	require.NoError(t, err)

	inv, err := repo.Get(ctx, "bsc", "BNB")
	require.NoError(t, err)
	assert.True(t, inv.Reserved.Equal(decimal.NewFromInt(4)))
}

func TestInventoryRepository_Reserve_InsufficientBalance(t *testing.T) {
	db := SetupTestDB(t)
	defer db.Close()
	defer CleanupTestDB(t, db)

	seedInventory(t, db, "bsc", "BNB", decimal.NewFromInt(5), decimal.NewFromInt(4))

	repo := NewInventoryRepository(db, NewAuditRepository(db))
	err := repo.Reserve(context.Background(), db.pool, "bsc", "BNB", decimal.NewFromInt(2))
	assert.ErrorIs(t, err, ErrInsufficientInventory)
}

func TestInventoryRepository_Release_NeverGoesNegative(t *testing.T) {
	db := SetupTestDB(t)
	defer db.Close()
	defer CleanupTestDB(t, db)

	seedInventory(t, db, "eth", "ETH", decimal.NewFromInt(10), decimal.NewFromInt(2))

	repo := NewInventoryRepository(db, NewAuditRepository(db))
	ctx := context.Background()

	err := repo.Release(ctx, "eth", "ETH", decimal.NewFromInt(100))
	require.NoError(t, err)

	inv, err := repo.Get(ctx, "eth", "ETH")
	require.NoError(t, err)
	assert.True(t, inv.Reserved.Equal(decimal.Zero))
}

func TestInventoryRepository_Deduct_DecrementsBothFields(t *testing.T) {
	db := SetupTestDB(t)
	defer db.Close()
	defer CleanupTestDB(t, db)

	seedInventory(t, db, "polygon", "POL", decimal.NewFromInt(10), decimal.NewFromInt(3))

	repo := NewInventoryRepository(db, NewAuditRepository(db))
	ctx := context.Background()

	err := repo.Deduct(ctx, "polygon", "POL", decimal.NewFromInt(3))
	require.NoError(t, err)

	inv, err := repo.Get(ctx, "polygon", "POL")
	require.NoError(t, err)
	assert.True(t, inv.Balance.Equal(decimal.NewFromInt(7)))
	assert.True(t, inv.Reserved.Equal(decimal.Zero))
}

func TestInventoryRepository_SyncBalance_LeavesReservedUntouched(t *testing.T) {
	db := SetupTestDB(t)
	defer db.Close()
	defer CleanupTestDB(t, db)

	seedInventory(t, db, "sol", "SOL", decimal.NewFromInt(20), decimal.NewFromInt(5))

	repo := NewInventoryRepository(db, NewAuditRepository(db))
	ctx := context.Background()

	err := repo.SyncBalance(ctx, "sol", "SOL", decimal.NewFromInt(50))
	require.NoError(t, err)

	inv, err := repo.Get(ctx, "sol", "SOL")
	require.NoError(t, err)
	assert.True(t, inv.Balance.Equal(decimal.NewFromInt(50)))
	assert.True(t, inv.Reserved.Equal(decimal.NewFromInt(5)))
}

func TestInventoryRepository_Get_NotFound(t *testing.T) {
	db := SetupTestDB(t)
	defer db.Close()
	defer CleanupTestDB(t, db)

	_, err := NewInventoryRepository(db, NewAuditRepository(db)).Get(context.Background(), "sui", "SUI")
	assert.ErrorIs(t, err, ErrInventoryNotFound)
}
