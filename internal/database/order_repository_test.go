//go:build integration

package database

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderRepository_TransitionPendingToPaid(t *testing.T) {
	db := SetupTestDB(t)
	defer db.Close()
	defer CleanupTestDB(t, db)

	user := SeedUser(t, db)
	order := SeedOrder(t, db, user.ID, OrderPending)

	repo := NewOrderRepository(db)
	ctx := context.Background()

	ok, err := repo.TransitionPendingToPaid(ctx, order.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	// second delivery of the same webhook is a no-op, not an error
	ok, err = repo.TransitionPendingToPaid(ctx, order.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := repo.GetByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, OrderPaid, got.Status)
	assert.NotNil(t, got.PaidAt)
}

func TestOrderRepository_AcquirePayoutLock_OnlyOneWinner(t *testing.T) {
	db := SetupTestDB(t)
	defer db.Close()
	defer CleanupTestDB(t, db)

	user := SeedUser(t, db)
	order := SeedOrder(t, db, user.ID, OrderPaid)

	repo := NewOrderRepository(db)
	ctx := context.Background()

	ok1, err := repo.AcquirePayoutLock(ctx, order.ID)
	require.NoError(t, err)
	assert.True(t, ok1)

	ok2, err := repo.AcquirePayoutLock(ctx, order.ID)
	require.NoError(t, err)
	assert.False(t, ok2, "a second concurrent acquire must not also win the lock")

	got, err := repo.GetByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, OrderProcessing, got.Status)
}

func TestOrderRepository_FinalizeSuccess(t *testing.T) {
	db := SetupTestDB(t)
	defer db.Close()
	defer CleanupTestDB(t, db)

	user := SeedUser(t, db)
	order := SeedOrder(t, db, user.ID, OrderPaid)

	repo := NewOrderRepository(db)
	ctx := context.Background()

	ok, err := repo.AcquirePayoutLock(ctx, order.ID)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = repo.FinalizeSuccess(ctx, order.ID, "0xdeadbeef")
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := repo.GetByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, OrderSuccess, got.Status)
	require.NotNil(t, got.TxHash)
	assert.Equal(t, "0xdeadbeef", *got.TxHash)
	assert.NotNil(t, got.CompletedAt)
}

func TestOrderRepository_StealStaleProcessingLock(t *testing.T) {
	db := SetupTestDB(t)
	defer db.Close()
	defer CleanupTestDB(t, db)

	user := SeedUser(t, db)
	order := SeedOrder(t, db, user.ID, OrderPaid)

	repo := NewOrderRepository(db)
	ctx := context.Background()

	ok, err := repo.AcquirePayoutLock(ctx, order.ID)
	require.NoError(t, err)
	require.True(t, ok)

	stuck, err := repo.GetByID(ctx, order.ID)
	require.NoError(t, err)

	// a racing stealer with a stale snapshot of updated_at must lose once
	// another caller has already bumped it
	_, err = db.pool.Exec(ctx, `UPDATE orders SET updated_at = now() WHERE id = $1`, order.ID)
	require.NoError(t, err)

	ok, err = repo.StealStaleProcessingLock(ctx, order.ID, stuck.UpdatedAt)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestOrderRepository_ListExpirableCandidates(t *testing.T) {
	db := SetupTestDB(t)
	defer db.Close()
	defer CleanupTestDB(t, db)

	user := SeedUser(t, db)
	order := SeedOrder(t, db, user.ID, OrderPending)

	_, err := db.pool.Exec(context.Background(),
		`UPDATE orders SET created_at = $2 WHERE id = $1`, order.ID, time.Now().Add(-30*time.Minute))
	require.NoError(t, err)

	repo := NewOrderRepository(db)
	candidates, err := repo.ListExpirableCandidates(context.Background(), 15*time.Minute)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, order.ID, candidates[0].ID)
}

func TestOrderRepository_GetPendingByUser_NotFound(t *testing.T) {
	db := SetupTestDB(t)
	defer db.Close()
	defer CleanupTestDB(t, db)

	user := SeedUser(t, db)
	_, err := NewOrderRepository(db).GetPendingByUser(context.Background(), user.ID)
	assert.ErrorIs(t, err, ErrOrderNotFound)
}
