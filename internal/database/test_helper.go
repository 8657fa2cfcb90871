//go:build integration

package database

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// SetupTestDB creates a connection to the test database and runs migrations
// The test database (cryptopay_test) is automatically created by docker-compose
func SetupTestDB(t *testing.T) *DB {
	t.Helper()

	cfg := Config{
		Host:            "localhost",
		Port:            "5432",
		User:            "postgres",
		Password:        "postgres",
		DB:              "cryptopay_test",
		SslMode:         "disable",
		MaxConns:        5,
		MinConns:        1,
		MaxConnLifetime: 5,
		MaxConnIdleTime: 1,
	}

	db, err := NewDB(cfg)
	require.NoError(t, err, "Failed to connect to test database")

	// Set migration path relative to project root
	// Get current file's directory (internal/database)
	_, filename, _, _ := runtime.Caller(0)
	dir := filepath.Dir(filename)
	projectRoot := filepath.Join(dir, "../..") // Go up to project root
	migrationsPath := filepath.Join(projectRoot, "migrations")
	db.migrationPath = "file://" + migrationsPath

	// Run migrations to ensure schema is up to date
	err = db.RunMigrations()
	require.NoError(t, err, "Failed to run migrations on test database")

	return db
}

// CleanupTestDB truncates all tables to ensure clean state between tests
func CleanupTestDB(t *testing.T, db *DB) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Truncate in reverse order due to foreign keys
	tables := []string{
		"audit_log", "referrals", "orders", "vouchers",
		"inventory", "tokens", "chains", "settings", "users",
	}
	for _, table := range tables {
		query := fmt.Sprintf("TRUNCATE TABLE %s CASCADE", table)
		_, err := db.pool.Exec(ctx, query)
		require.NoError(t, err, "Failed to truncate table %s", table)
	}
}

// SeedUser inserts a minimal user row for tests that need a foreign key target.
func SeedUser(t *testing.T, db *DB) *User {
	t.Helper()

	user := &User{
		ID:           uuid.New().String(),
		ReferralCode: uuid.New().String()[:8],
		Role:         RoleUser,
		CreatedAt:    time.Now().UTC(),
	}
	require.NoError(t, NewUserRepository(db).Create(context.Background(), user))

	return user
}

// SeedOrder inserts an order row with sane defaults that tests can override.
func SeedOrder(t *testing.T, db *DB, userID string, status OrderStatus) *Order {
	t.Helper()

	now := time.Now().UTC()
	order := &Order{
		ID:            uuid.New().String(),
		UserID:        userID,
		Chain:         "bsc",
		Symbol:        "BNB",
		AmountIDR:     100000,
		AmountToken:   decimal.NewFromFloat(0.01),
		MarkupPercent: decimal.NewFromInt(2),
		WalletAddress: "0x000000000000000000000000000000000000dE",
		Status:        status,
		FeeIDR:        0,
		TotalPay:      100000,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	require.NoError(t, NewOrderRepository(db).Create(context.Background(), db.pool, order))

	return order
}

// SeedInventory inserts an inventory row with the given balance and zero
// reserved.
func SeedInventory(t *testing.T, db *DB, chain, symbol string, balance decimal.Decimal) *Inventory {
	t.Helper()

	inv := &Inventory{
		Chain:     chain,
		Symbol:    symbol,
		Balance:   balance,
		Reserved:  decimal.Zero,
		UpdatedAt: time.Now().UTC(),
	}
	require.NoError(t, NewInventoryRepository(db, NewAuditRepository(db)).Create(context.Background(), inv))

	return inv
}

// SeedReferral inserts a referral row linking referrer to referee.
func SeedReferral(t *testing.T, db *DB, referrerID, refereeID string) *Referral {
	t.Helper()

	ref := &Referral{
		ID:         uuid.New().String(),
		ReferrerID: referrerID,
		RefereeID:  refereeID,
		CreatedAt:  time.Now().UTC(),
	}
	require.NoError(t, NewReferralRepository(db).Create(context.Background(), ref))

	return ref
}
