package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cryptopay/pkg/logger"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ErrInventoryNotFound is returned when an inventory row for a (chain, symbol) pair is missing.
var ErrInventoryNotFound = errors.New("inventory not found")

// ErrInsufficientInventory is returned by Reserve when available balance can't cover the request.
var ErrInsufficientInventory = errors.New("insufficient inventory")

// InventoryRepository handles all database operations for the per-chain,
// per-symbol inventory ledger.
type InventoryRepository struct {
	db    *pgxpool.Pool
	audit *AuditRepository
}

// NewInventoryRepository creates a new inventory repository instance. audit
// may be nil for call sites (chain seeding) that never drive a balance
// negative; the anomaly paths below are nil-safe.
func NewInventoryRepository(db *DB, audit *AuditRepository) *InventoryRepository {
	return &InventoryRepository{db: db.pool, audit: audit}
}

func (r *InventoryRepository) appendAnomaly(ctx context.Context, chain, symbol, action, detail string) {
	if r.audit == nil {
		return
	}
	entry := &AuditLogEntry{
		ID:        uuid.New().String(),
		Actor:     "system",
		Action:    action,
		Detail:    detail,
		CreatedAt: time.Now().UTC(),
	}
	if err := r.audit.Append(ctx, entry); err != nil {
		logger.Error("inventory: failed to append anomaly audit entry",
			zap.String("chain", chain), zap.String("symbol", symbol), zap.Error(err))
	}
}

// Create inserts a new inventory row, typically on first chain registration.
func (r *InventoryRepository) Create(ctx context.Context, inv *Inventory) error {
	query := `INSERT INTO inventory (chain, symbol, balance, reserved, updated_at)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := r.db.Exec(ctx, query, inv.Chain, inv.Symbol, inv.Balance, inv.Reserved, inv.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create inventory row %s/%s: %w", inv.Chain, inv.Symbol, err)
	}

	return nil
}

// EnsureRow inserts a zero-balance inventory row for (chain, symbol) if one
// doesn't already exist, leaving any existing row untouched — used to seed
// a newly-configured chain's native-token row at startup.
func (r *InventoryRepository) EnsureRow(ctx context.Context, chain, symbol string) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO inventory (chain, symbol, balance, reserved, updated_at)
		 VALUES ($1, $2, 0, 0, now())
		 ON CONFLICT (chain, symbol) DO NOTHING`,
		chain, symbol,
	)
	if err != nil {
		return fmt.Errorf("failed to ensure inventory row %s/%s: %w", chain, symbol, err)
	}

	return nil
}

// Get retrieves an inventory row. Returns ErrInventoryNotFound if absent.
func (r *InventoryRepository) Get(ctx context.Context, chain, symbol string) (*Inventory, error) {
	query := `SELECT chain, symbol, balance, reserved, updated_at
		FROM inventory WHERE chain = $1 AND symbol = $2`

	var inv Inventory
	err := r.db.QueryRow(ctx, query, chain, symbol).Scan(
		&inv.Chain, &inv.Symbol, &inv.Balance, &inv.Reserved, &inv.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInventoryNotFound
		}
		return nil, fmt.Errorf("failed to get inventory %s/%s: %w", chain, symbol, err)
	}

	return &inv, nil
}

// Reserve locks the inventory row, checks balance-reserved >= amount, and
// if so increments reserved by amount, all within q (the caller's
// transaction, so it composes with order insertion and voucher reservation).
// Returns ErrInsufficientInventory if the row can't cover the request.
func (r *InventoryRepository) Reserve(ctx context.Context, q Querier, chain, symbol string, amount decimal.Decimal) error {
	var balance, reserved decimal.Decimal
	err := q.QueryRow(ctx,
		`SELECT balance, reserved FROM inventory WHERE chain = $1 AND symbol = $2 FOR UPDATE`,
		chain, symbol,
	).Scan(&balance, &reserved)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrInventoryNotFound
		}
		return fmt.Errorf("failed to lock inventory %s/%s: %w", chain, symbol, err)
	}

	if balance.Sub(reserved).LessThan(amount) {
		return ErrInsufficientInventory
	}

	_, err = q.Exec(ctx,
		`UPDATE inventory SET reserved = reserved + $3, updated_at = now() WHERE chain = $1 AND symbol = $2`,
		chain, symbol, amount,
	)
	if err != nil {
		return fmt.Errorf("failed to reserve inventory %s/%s: %w", chain, symbol, err)
	}

	return nil
}

// Release decrements reserved by min(amount, reserved), atomically, never
// driving it negative. If a prior bug already left reserved negative, it
// resets to zero, logs at error level (not fatal) and appends an audit-log
// entry rather than compounding the drift.
func (r *InventoryRepository) Release(ctx context.Context, chain, symbol string, amount decimal.Decimal) error {
	commandTag, err := r.db.Exec(ctx,
		`UPDATE inventory
		 SET reserved = GREATEST(reserved - $3, 0), updated_at = now()
		 WHERE chain = $1 AND symbol = $2`,
		chain, symbol, amount,
	)
	if err != nil {
		return fmt.Errorf("failed to release inventory %s/%s: %w", chain, symbol, err)
	}
	if commandTag.RowsAffected() == 0 {
		return ErrInventoryNotFound
	}

	return r.detectNegativeAnomaly(ctx, chain, symbol)
}

// Deduct decrements both balance and reserved by amount once a payout has
// actually been sent. It never rolls back on a post-deduct negative value —
// the money is already gone — it logs at error level (not fatal) and
// appends an audit-log entry so an operator notices.
func (r *InventoryRepository) Deduct(ctx context.Context, chain, symbol string, amount decimal.Decimal) error {
	commandTag, err := r.db.Exec(ctx,
		`UPDATE inventory
		 SET balance = balance - $3, reserved = reserved - $3, updated_at = now()
		 WHERE chain = $1 AND symbol = $2`,
		chain, symbol, amount,
	)
	if err != nil {
		return fmt.Errorf("failed to deduct inventory %s/%s: %w", chain, symbol, err)
	}
	if commandTag.RowsAffected() == 0 {
		return ErrInventoryNotFound
	}

	inv, err := r.Get(ctx, chain, symbol)
	if err == nil && (inv.Balance.IsNegative() || inv.Reserved.IsNegative()) {
		logger.Error("inventory went negative after deduct",
			zap.String("chain", chain), zap.String("symbol", symbol),
			zap.String("balance", inv.Balance.String()), zap.String("reserved", inv.Reserved.String()))

		detail, _ := json.Marshal(map[string]any{
			"chain": chain, "symbol": symbol,
			"balance": inv.Balance.String(), "reserved": inv.Reserved.String(),
		})
		r.appendAnomaly(ctx, chain, symbol, "inventory_negative_after_deduct", string(detail))
	}

	return nil
}

// SyncBalance overwrites balance with a freshly observed on-chain value,
// leaving reserved untouched. Used by the periodic inventory syncer.
func (r *InventoryRepository) SyncBalance(ctx context.Context, chain, symbol string, balance decimal.Decimal) error {
	commandTag, err := r.db.Exec(ctx,
		`UPDATE inventory SET balance = $3, updated_at = now() WHERE chain = $1 AND symbol = $2`,
		chain, symbol, balance,
	)
	if err != nil {
		return fmt.Errorf("failed to sync inventory balance %s/%s: %w", chain, symbol, err)
	}
	if commandTag.RowsAffected() == 0 {
		return ErrInventoryNotFound
	}

	return nil
}

func (r *InventoryRepository) detectNegativeAnomaly(ctx context.Context, chain, symbol string) error {
	inv, err := r.Get(ctx, chain, symbol)
	if err != nil {
		return nil
	}
	if inv.Reserved.IsNegative() {
		logger.Error("reserved inventory went negative, resetting to zero",
			zap.String("chain", chain), zap.String("symbol", symbol), zap.String("reserved", inv.Reserved.String()))
		_, _ = r.db.Exec(ctx,
			`UPDATE inventory SET reserved = 0, updated_at = now() WHERE chain = $1 AND symbol = $2`,
			chain, symbol)

		detail, _ := json.Marshal(map[string]any{
			"chain": chain, "symbol": symbol, "reserved": inv.Reserved.String(),
		})
		r.appendAnomaly(ctx, chain, symbol, "inventory_reserved_negative", string(detail))
	}

	return nil
}
