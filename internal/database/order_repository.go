package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

var (
	// ErrOrderNotFound is returned when an order id or midtrans id does not resolve.
	ErrOrderNotFound = errors.New("order not found")
	// ErrOrderConflict is returned when a conditional transition matched zero rows
	// because the order's current status no longer matches the expected prior state.
	ErrOrderConflict = errors.New("order status conflict")
	// ErrPendingOrderExists reports that a user already has an order in PENDING.
	ErrPendingOrderExists = errors.New("user already has a pending order")
)

// OrderRepository handles all database operations for orders.
type OrderRepository struct {
	db *pgxpool.Pool
}

// NewOrderRepository creates a new order repository instance.
func NewOrderRepository(db *DB) *OrderRepository {
	return &OrderRepository{db: db.pool}
}

// Create inserts a new order, typically within the same transaction as
// inventory and voucher reservation.
func (r *OrderRepository) Create(ctx context.Context, q Querier, order *Order) error {
	query := `INSERT INTO orders (
		id, user_id, chain, symbol, amount_idr, amount_token, markup_percent, wallet_address,
		voucher_id, status, payment_method, fee_idr, total_pay, tx_hash, midtrans_id, payment_url,
		created_at, updated_at, paid_at, completed_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20)`

	_, err := q.Exec(ctx, query,
		order.ID, order.UserID, order.Chain, order.Symbol, order.AmountIDR, order.AmountToken,
		order.MarkupPercent, order.WalletAddress, order.VoucherID, order.Status, order.PaymentMethod,
		order.FeeIDR, order.TotalPay, order.TxHash, order.MidtransID, order.PaymentURL,
		order.CreatedAt, order.UpdatedAt, order.PaidAt, order.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}

	return nil
}

// GetByID retrieves an order by its UUID. Returns ErrOrderNotFound if absent.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*Order, error) {
	return r.scanOne(ctx, `WHERE id = $1`, id)
}

// GetByMidtransID retrieves an order by its gateway order id. Returns
// ErrOrderNotFound if no order currently carries this id (e.g. it was
// orphaned by a later repayment attempt).
func (r *OrderRepository) GetByMidtransID(ctx context.Context, midtransID string) (*Order, error) {
	return r.scanOne(ctx, `WHERE midtrans_id = $1`, midtransID)
}

// GetPendingByUser returns the user's current PENDING order, if any.
func (r *OrderRepository) GetPendingByUser(ctx context.Context, userID string) (*Order, error) {
	return r.scanOne(ctx, `WHERE user_id = $1 AND status = $2`, userID, OrderPending)
}

func (r *OrderRepository) scanOne(ctx context.Context, where string, args ...any) (*Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders ` + where

	var order Order
	err := r.db.QueryRow(ctx, query, args...).Scan(orderScanTargets(&order)...)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to get order: %w", err)
	}

	return &order, nil
}

const orderColumns = `id, user_id, chain, symbol, amount_idr, amount_token, markup_percent, wallet_address,
	voucher_id, status, payment_method, fee_idr, total_pay, tx_hash, midtrans_id, payment_url,
	created_at, updated_at, paid_at, completed_at`

func orderScanTargets(order *Order) []any {
	return []any{
		&order.ID, &order.UserID, &order.Chain, &order.Symbol, &order.AmountIDR, &order.AmountToken,
		&order.MarkupPercent, &order.WalletAddress, &order.VoucherID, &order.Status, &order.PaymentMethod,
		&order.FeeIDR, &order.TotalPay, &order.TxHash, &order.MidtransID, &order.PaymentURL,
		&order.CreatedAt, &order.UpdatedAt, &order.PaidAt, &order.CompletedAt,
	}
}

// AttachPayment records a payment-gateway attempt on a PENDING order.
// Regenerating payment overwrites any previous midtrans_id, intentionally
// orphaning stale webhooks for that id.
func (r *OrderRepository) AttachPayment(ctx context.Context, id string, method PaymentMethod, midtransID, paymentURL string, feeIDR, totalPay int64) error {
	commandTag, err := r.db.Exec(ctx,
		`UPDATE orders SET payment_method = $2, midtrans_id = $3, payment_url = $4,
		 fee_idr = $5, total_pay = $6, updated_at = now()
		 WHERE id = $1 AND status = $7`,
		id, method, midtransID, paymentURL, feeIDR, totalPay, OrderPending,
	)
	if err != nil {
		return fmt.Errorf("failed to attach payment to order %s: %w", id, err)
	}
	if commandTag.RowsAffected() == 0 {
		return ErrOrderConflict
	}

	return nil
}

// TransitionPendingToPaid conditionally moves PENDING -> PAID, stamping
// paid_at. Zero rows affected means the order already left PENDING
// (duplicate webhook delivery) and the caller should treat it as a no-op,
// not an error.
func (r *OrderRepository) TransitionPendingToPaid(ctx context.Context, id string) (bool, error) {
	commandTag, err := r.db.Exec(ctx,
		`UPDATE orders SET status = $2, paid_at = now(), updated_at = now() WHERE id = $1 AND status = $3`,
		id, OrderPaid, OrderPending,
	)
	if err != nil {
		return false, fmt.Errorf("failed to transition order %s to PAID: %w", id, err)
	}

	return commandTag.RowsAffected() > 0, nil
}

// TransitionPendingToCancelled conditionally moves PENDING -> CANCELLED.
func (r *OrderRepository) TransitionPendingToCancelled(ctx context.Context, id string) (bool, error) {
	commandTag, err := r.db.Exec(ctx,
		`UPDATE orders SET status = $2, updated_at = now() WHERE id = $1 AND status = $3`,
		id, OrderCancelled, OrderPending,
	)
	if err != nil {
		return false, fmt.Errorf("failed to cancel order %s: %w", id, err)
	}

	return commandTag.RowsAffected() > 0, nil
}

// TransitionPendingToExpired conditionally moves PENDING -> EXPIRED.
func (r *OrderRepository) TransitionPendingToExpired(ctx context.Context, id string) (bool, error) {
	commandTag, err := r.db.Exec(ctx,
		`UPDATE orders SET status = $2, updated_at = now() WHERE id = $1 AND status = $3`,
		id, OrderExpired, OrderPending,
	)
	if err != nil {
		return false, fmt.Errorf("failed to expire order %s: %w", id, err)
	}

	return commandTag.RowsAffected() > 0, nil
}

// ListExpirableCandidates returns PENDING orders older than olderThan, for
// the expiry sweep.
func (r *OrderRepository) ListExpirableCandidates(ctx context.Context, olderThan time.Duration) ([]*Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE status = $1 AND created_at < $2`

	rows, err := r.db.Query(ctx, query, OrderPending, time.Now().Add(-olderThan))
	if err != nil {
		return nil, fmt.Errorf("failed to list expirable orders: %w", err)
	}
	defer rows.Close()

	var orders []*Order
	for rows.Next() {
		var order Order
		if err := rows.Scan(orderScanTargets(&order)...); err != nil {
			return nil, fmt.Errorf("failed to scan order row: %w", err)
		}
		orders = append(orders, &order)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}

	return orders, nil
}

// AcquirePayoutLock is the step-1 primitive of the payout executor: it
// conditionally moves {status=PAID, tx_hash IS NULL} -> PROCESSING. A true
// result means this caller now owns the payout.
func (r *OrderRepository) AcquirePayoutLock(ctx context.Context, id string) (bool, error) {
	commandTag, err := r.db.Exec(ctx,
		`UPDATE orders SET status = $2, updated_at = now()
		 WHERE id = $1 AND status = $3 AND tx_hash IS NULL`,
		id, OrderProcessing, OrderPaid,
	)
	if err != nil {
		return false, fmt.Errorf("failed to acquire payout lock for order %s: %w", id, err)
	}

	return commandTag.RowsAffected() > 0, nil
}

// StealStaleProcessingLock re-acquires ownership of an order stuck in
// PROCESSING, guarded by an exact-match optimistic check on updated_at so
// only one of several racing zombie-reapers can win.
func (r *OrderRepository) StealStaleProcessingLock(ctx context.Context, id string, expectedUpdatedAt time.Time) (bool, error) {
	commandTag, err := r.db.Exec(ctx,
		`UPDATE orders SET updated_at = now()
		 WHERE id = $1 AND status = $2 AND updated_at = $3`,
		id, OrderProcessing, expectedUpdatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to steal stale payout lock for order %s: %w", id, err)
	}

	return commandTag.RowsAffected() > 0, nil
}

// FinalizeSuccess conditionally transitions PROCESSING -> SUCCESS, recording
// the tx hash and completion time. Used both by the normal finalize step
// and by the tx_hash-present recovery branch of lock acquisition.
func (r *OrderRepository) FinalizeSuccess(ctx context.Context, id, txHash string) (bool, error) {
	commandTag, err := r.db.Exec(ctx,
		`UPDATE orders SET status = $2, tx_hash = $3, completed_at = now(), updated_at = now()
		 WHERE id = $1 AND status = $4`,
		id, OrderSuccess, txHash, OrderProcessing,
	)
	if err != nil {
		return false, fmt.Errorf("failed to finalize order %s: %w", id, err)
	}

	return commandTag.RowsAffected() > 0, nil
}

// RecordBroadcastHash stamps tx_hash on an order still in PROCESSING,
// without changing status, for the TxBroadcasted ambiguous-confirmation
// recovery path.
func (r *OrderRepository) RecordBroadcastHash(ctx context.Context, id, txHash string) error {
	_, err := r.db.Exec(ctx,
		`UPDATE orders SET tx_hash = $2, updated_at = now() WHERE id = $1 AND status = $3`,
		id, txHash, OrderProcessing,
	)
	if err != nil {
		return fmt.Errorf("failed to record broadcast hash for order %s: %w", id, err)
	}

	return nil
}

// MarkFailed conditionally transitions PROCESSING -> FAILED after a
// classified-safe blockchain error.
func (r *OrderRepository) MarkFailed(ctx context.Context, id string) (bool, error) {
	commandTag, err := r.db.Exec(ctx,
		`UPDATE orders SET status = $2, updated_at = now() WHERE id = $1 AND status = $3`,
		id, OrderFailed, OrderProcessing,
	)
	if err != nil {
		return false, fmt.Errorf("failed to mark order %s failed: %w", id, err)
	}

	return commandTag.RowsAffected() > 0, nil
}

// ListStuckProcessing returns orders in PROCESSING whose updated_at is
// older than staleAfter, candidates for the zombie-steal path.
func (r *OrderRepository) ListStuckProcessing(ctx context.Context, staleAfter time.Duration) ([]*Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE status = $1 AND updated_at < $2`

	rows, err := r.db.Query(ctx, query, OrderProcessing, time.Now().Add(-staleAfter))
	if err != nil {
		return nil, fmt.Errorf("failed to list stuck processing orders: %w", err)
	}
	defer rows.Close()

	var orders []*Order
	for rows.Next() {
		var order Order
		if err := rows.Scan(orderScanTargets(&order)...); err != nil {
			return nil, fmt.Errorf("failed to scan order row: %w", err)
		}
		orders = append(orders, &order)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}

	return orders, nil
}

// ListUnqueuedPayouts returns PAID orders with no tx_hash older than
// olderThan, the candidate set for the supplemental unqueued-payout sweep.
func (r *OrderRepository) ListUnqueuedPayouts(ctx context.Context, olderThan time.Duration) ([]*Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders
		WHERE status = $1 AND tx_hash IS NULL AND paid_at < $2`

	rows, err := r.db.Query(ctx, query, OrderPaid, time.Now().Add(-olderThan))
	if err != nil {
		return nil, fmt.Errorf("failed to list unqueued payouts: %w", err)
	}
	defer rows.Close()

	var orders []*Order
	for rows.Next() {
		var order Order
		if err := rows.Scan(orderScanTargets(&order)...); err != nil {
			return nil, fmt.Errorf("failed to scan order row: %w", err)
		}
		orders = append(orders, &order)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}

	return orders, nil
}

// CountSuccessByUser returns how many orders a user has carried to SUCCESS,
// used by the Referral Engine's validation threshold check.
func (r *OrderRepository) CountSuccessByUser(ctx context.Context, userID string) (int, error) {
	var count int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM orders WHERE user_id = $1 AND status = $2`,
		userID, OrderSuccess,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count successful orders for user %s: %w", userID, err)
	}

	return count, nil
}

// SumAmountTokenByChain returns the hot wallet's total outstanding
// obligation on a chain/symbol across PAID and PROCESSING orders, useful for
// reconciliation tooling.
func (r *OrderRepository) SumAmountTokenByChain(ctx context.Context, chain, symbol string) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := r.db.QueryRow(ctx,
		`SELECT COALESCE(SUM(amount_token), 0) FROM orders
		 WHERE chain = $1 AND symbol = $2 AND status IN ($3, $4)`,
		chain, symbol, OrderPaid, OrderProcessing,
	).Scan(&total)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum outstanding amount for %s/%s: %w", chain, symbol, err)
	}

	return total, nil
}
