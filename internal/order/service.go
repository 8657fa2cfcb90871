// Package order implements the Order Engine: the state machine governing a
// purchase from creation through payment, payout, and every terminal
// outcome, plus the payout executor that invokes the Hot Wallet Manager.
package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cryptopay/internal/database"
	"cryptopay/internal/gateway"
	"cryptopay/internal/pricing"
	"cryptopay/internal/queue"
	"cryptopay/internal/wallet"
	"cryptopay/pkg/logger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// slippageTolerance bounds how far a fresh quote may drift from the amount
// pinned at confirmation time before order creation is refused (SPEC §4.8).
var slippageTolerance = decimal.NewFromFloat(0.05)

// expiryAge is how old a PENDING order must be before the expiry sweep
// considers it a candidate (SPEC §4.5).
const expiryAge = 15 * time.Minute

// expiryGracePeriod extends the sweep's patience for an order that has a
// pending gateway transaction, rather than expiring it outright.
const expiryGracePeriod = 70 * time.Minute

// payoutLockMaxAttempts bounds the lock-acquisition retry loop inside
// ProcessOrder (SPEC §4.5 step 1).
const payoutLockMaxAttempts = 3

// staleProcessingAge is how long an order may sit in PROCESSING before the
// payout executor attempts to steal the zombie lock.
const staleProcessingAge = 10 * time.Minute

// finalizeRetryDelay is the single retry backoff for a finalize-transaction
// failure after a successful on-chain send (SPEC §4.5 step 3).
const finalizeRetryDelay = time.Second

// Inventory is the subset of the Inventory Ledger the Order Engine needs.
type Inventory interface {
	Reserve(ctx context.Context, q database.Querier, chain, symbol string, amount decimal.Decimal) error
	Release(ctx context.Context, chain, symbol string, amount decimal.Decimal) error
	Deduct(ctx context.Context, chain, symbol string, amount decimal.Decimal) error
}

// Vouchers is the subset of the Voucher Ledger the Order Engine needs.
type Vouchers interface {
	ValidateAndReserve(ctx context.Context, q database.Querier, code, userID string, orderAmountIDR int64) (*database.Voucher, error)
	Release(ctx context.Context, voucherID string) error
}

// Quoter is the subset of the Quote Service the Order Engine needs.
type Quoter interface {
	Quote(ctx context.Context, chain string, amountIdr int64) (*pricing.Quote, error)
}

// PaymentGateway is the subset of the gateway client the Order Engine needs.
type PaymentGateway interface {
	CreatePayment(ctx context.Context, orderID string, amountIDR int64, method database.PaymentMethod) (*gateway.PaymentResult, error)
	QueryStatus(ctx context.Context, midtransID string) (*gateway.StatusResult, error)
}

// PayoutSender is the subset of the Hot Wallet Manager the Order Engine needs.
type PayoutSender interface {
	SendNative(ctx context.Context, chainSlug, toAddress string, amount decimal.Decimal) (string, error)
}

// ChainTypes resolves the chain family behind a slug, needed to validate
// and normalize a withdrawal address the way each chain family requires.
type ChainTypes interface {
	GetBySlug(ctx context.Context, slug string) (*database.Chain, error)
}

// Publisher is the subset of the Redis Streams queue the Order Engine needs.
type Publisher interface {
	Publish(ctx context.Context, stream string, data []byte) (string, error)
}

// AuditAppender is the subset of the audit log the Order Engine needs to
// surface a fund-affecting "critical unknown" for manual reconciliation.
type AuditAppender interface {
	Append(ctx context.Context, entry *database.AuditLogEntry) error
}

// OrderNotifier is the narrow interface onto the chat/email surface. Actual
// delivery is an external collaborator (out of scope here); this package
// only needs to trigger it once a payout finalizes.
type OrderNotifier interface {
	NotifyOrderSuccess(ctx context.Context, userID, orderID, txHash string) error
}

// Service orchestrates order creation, payment, cancellation, expiry, and
// payout execution over the repository's atomic transition primitives.
type Service struct {
	db        *database.DB
	orders    *database.OrderRepository
	inventory Inventory
	vouchers  Vouchers
	quotes    Quoter
	wallet    PayoutSender
	gateway   PaymentGateway
	queue     Publisher
	chains    ChainTypes
	audit     AuditAppender
	notifier  OrderNotifier
}

// NewService creates an Order Engine from its collaborators.
func NewService(
	db *database.DB,
	orders *database.OrderRepository,
	inventory Inventory,
	vouchers Vouchers,
	quotes Quoter,
	wallet PayoutSender,
	gateway PaymentGateway,
	queue Publisher,
	chains ChainTypes,
	audit AuditAppender,
	notifier OrderNotifier,
) *Service {
	return &Service{
		db:        db,
		orders:    orders,
		inventory: inventory,
		vouchers:  vouchers,
		quotes:    quotes,
		wallet:    wallet,
		gateway:   gateway,
		queue:     queue,
		chains:    chains,
		audit:     audit,
		notifier:  notifier,
	}
}

// CreateOrderRequest describes a purchase to create.
type CreateOrderRequest struct {
	UserID        string
	Chain         string
	AmountIDR     int64
	WalletAddress string
	VoucherCode   string // optional

	// PinnedTokenAmount, if set, is the token amount shown to the user at
	// confirmation time. CreateOrder rejects the request if a fresh quote
	// has drifted from it by more than slippageTolerance.
	PinnedTokenAmount decimal.Decimal
}

// CreateOrder reserves inventory and, if supplied, a voucher, within one
// transaction, then inserts the order PENDING (SPEC §4.5 create_order).
func (s *Service) CreateOrder(ctx context.Context, req CreateOrderRequest) (*database.Order, error) {
	if req.AmountIDR <= 0 {
		return nil, ErrInvalidAmount
	}

	chain, err := s.chains.GetBySlug(ctx, req.Chain)
	if err != nil {
		return nil, fmt.Errorf("order: resolve chain: %w", err)
	}
	walletAddress, err := wallet.NormalizeAddress(chain.Type, req.WalletAddress)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}

	existing, err := s.orders.GetPendingByUser(ctx, req.UserID)
	if err != nil && !errors.Is(err, database.ErrOrderNotFound) {
		return nil, fmt.Errorf("order: check pending order: %w", err)
	}
	if existing != nil {
		return nil, ErrPendingOrderExists
	}

	quote, err := s.quotes.Quote(ctx, req.Chain, req.AmountIDR)
	if err != nil {
		return nil, fmt.Errorf("order: quote: %w", err)
	}

	if !req.PinnedTokenAmount.IsZero() {
		if slippage(req.PinnedTokenAmount, quote.TokenAmount).GreaterThan(slippageTolerance) {
			return nil, ErrSlippageExceeded
		}
	}

	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("order: begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := s.inventory.Reserve(ctx, tx, req.Chain, quote.Symbol, quote.TokenAmount); err != nil {
		return nil, fmt.Errorf("order: reserve inventory: %w", err)
	}

	amountIDR := req.AmountIDR
	var voucherID *string
	if req.VoucherCode != "" {
		v, err := s.vouchers.ValidateAndReserve(ctx, tx, req.VoucherCode, req.UserID, req.AmountIDR)
		if err != nil {
			return nil, fmt.Errorf("order: reserve voucher: %w", err)
		}
		amountIDR = applyVoucherDiscount(req.AmountIDR, v.ValueIDR)
		voucherID = &v.ID
	}

	now := time.Now().UTC()
	ord := &database.Order{
		ID:            uuid.New().String(),
		UserID:        req.UserID,
		Chain:         req.Chain,
		Symbol:        quote.Symbol,
		AmountIDR:     amountIDR,
		AmountToken:   quote.TokenAmount,
		MarkupPercent: quote.MarkupPercent,
		WalletAddress: walletAddress,
		VoucherID:     voucherID,
		Status:        database.OrderPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.orders.Create(ctx, tx, ord); err != nil {
		return nil, fmt.Errorf("order: insert: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("order: commit: %w", err)
	}

	logger.Info("order created", logger.OrderField(ord.ID), zap.String("user_id", ord.UserID),
		zap.String("chain", ord.Chain), zap.Int64("amount_idr", ord.AmountIDR))

	return ord, nil
}

// applyVoucherDiscount subtracts a flat IDR voucher value from the base
// amount, flooring at 1 IDR so an order never becomes free or negative.
func applyVoucherDiscount(baseAmountIDR, voucherValueIDR int64) int64 {
	discounted := baseAmountIDR - voucherValueIDR
	if discounted < 1 {
		return 1
	}
	return discounted
}

// slippage returns the absolute fractional drift of current from pinned.
func slippage(pinned, current decimal.Decimal) decimal.Decimal {
	if pinned.IsZero() {
		return decimal.Zero
	}
	return pinned.Sub(current).Abs().Div(pinned)
}

// CreatePayment invokes the payment gateway for a PENDING order and records
// the resulting midtrans_id/payment_url/fee (SPEC §4.5 create_payment).
func (s *Service) CreatePayment(ctx context.Context, orderID string, method database.PaymentMethod) (*database.Order, error) {
	ord, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("order: get: %w", err)
	}
	if ord.Status != database.OrderPending {
		return nil, ErrNotPending
	}

	result, err := s.gateway.CreatePayment(ctx, orderID, ord.AmountIDR, method)
	if err != nil {
		return nil, fmt.Errorf("order: gateway create payment: %w", err)
	}

	if err := s.orders.AttachPayment(ctx, orderID, method, result.MidtransID, result.PaymentURL, result.FeeIDR, result.TotalPay); err != nil {
		return nil, fmt.Errorf("order: attach payment: %w", err)
	}

	return s.orders.GetByID(ctx, orderID)
}

// CancelOrder conditionally transitions PENDING -> CANCELLED and releases
// the order's reservations. Returns ErrAlreadyTerminal if the order has
// moved to PAID, PROCESSING or SUCCESS; an order already CANCELLED, EXPIRED
// or FAILED is left as it is and nil is returned.
func (s *Service) CancelOrder(ctx context.Context, orderID string) error {
	ord, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return fmt.Errorf("order: get: %w", err)
	}

	if ord.Status == database.OrderCancelled {
		return nil
	}

	changed, err := s.orders.TransitionPendingToCancelled(ctx, orderID)
	if err != nil {
		return fmt.Errorf("order: cancel transition: %w", err)
	}
	if !changed {
		current, err := s.orders.GetByID(ctx, orderID)
		if err != nil {
			return fmt.Errorf("order: get: %w", err)
		}
		switch current.Status {
		case database.OrderPaid, database.OrderProcessing, database.OrderSuccess:
			return ErrAlreadyTerminal
		}
		return nil
	}

	s.releaseReservations(ctx, ord)

	logger.Info("order cancelled", logger.OrderField(orderID))
	return nil
}

func (s *Service) releaseReservations(ctx context.Context, ord *database.Order) {
	if err := s.inventory.Release(ctx, ord.Chain, ord.Symbol, ord.AmountToken); err != nil {
		logger.Error("failed to release inventory reservation", logger.OrderField(ord.ID), zap.Error(err))
	}
	if ord.VoucherID != nil {
		if err := s.vouchers.Release(ctx, *ord.VoucherID); err != nil {
			logger.Error("failed to release voucher reservation", logger.OrderField(ord.ID), zap.Error(err))
		}
	}
}

// HandlePaymentSuccess conditionally transitions PENDING -> PAID and
// enqueues a payout job. A zero-row transition means this order was already
// processed by an earlier delivery of the same notification — a no-op, not
// an error.
func (s *Service) HandlePaymentSuccess(ctx context.Context, orderID string) error {
	changed, err := s.orders.TransitionPendingToPaid(ctx, orderID)
	if err != nil {
		return fmt.Errorf("order: paid transition: %w", err)
	}
	if !changed {
		return nil
	}

	if err := s.enqueuePayout(ctx, orderID); err != nil {
		logger.Error("failed to enqueue payout after payment success", logger.OrderField(orderID), zap.Error(err))
	}

	logger.Info("order paid", logger.OrderField(orderID))
	return nil
}

func (s *Service) enqueuePayout(ctx context.Context, orderID string) error {
	msg := &queue.PayoutMessage{OrderID: orderID}
	data, err := msg.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal payout message: %w", err)
	}
	if _, err := s.queue.Publish(ctx, queue.StreamPayout, data); err != nil {
		return fmt.Errorf("publish payout message: %w", err)
	}
	return nil
}

// ExpireSweep scans PENDING orders older than expiryAge and either expires
// them or diverts to the success path for a late payment (SPEC §4.5
// expire_sweep). Returns the number of orders expired.
func (s *Service) ExpireSweep(ctx context.Context) (int, error) {
	candidates, err := s.orders.ListExpirableCandidates(ctx, expiryAge)
	if err != nil {
		return 0, fmt.Errorf("order: list expirable: %w", err)
	}

	expired := 0
	for _, ord := range candidates {
		didExpire, err := s.sweepOne(ctx, ord)
		if err != nil {
			logger.Error("expiry sweep failed for order", logger.OrderField(ord.ID), zap.Error(err))
			continue
		}
		if didExpire {
			expired++
		}
	}

	return expired, nil
}

func (s *Service) sweepOne(ctx context.Context, ord *database.Order) (bool, error) {
	if ord.MidtransID != nil {
		status, err := s.gateway.QueryStatus(ctx, *ord.MidtransID)
		if err != nil {
			// Gateway unreachable: never expire a possibly-completed payment.
			return false, nil
		}

		switch gateway.Classify(status.TransactionStatus, status.FraudStatus) {
		case gateway.OutcomeSuccess:
			return false, s.HandlePaymentSuccess(ctx, ord.ID)
		case gateway.OutcomePending:
			if time.Since(ord.CreatedAt) < expiryGracePeriod {
				return false, nil
			}
		}
	}

	changed, err := s.orders.TransitionPendingToExpired(ctx, ord.ID)
	if err != nil {
		return false, fmt.Errorf("expire transition: %w", err)
	}
	if !changed {
		return false, nil
	}

	s.releaseReservations(ctx, ord)
	return true, nil
}

// unqueuedPayoutAge is how long a PAID order may sit without a tx_hash
// before the supplemental sweep assumes its payout job was lost and
// re-enqueues it (SPEC §4.9 unqueued-payout sweep, §9 open question (b)).
const unqueuedPayoutAge = 5 * time.Minute

// RequeueUnqueuedPayouts re-enqueues a payout job for every PAID order
// whose payout was never queued (or whose job was lost) — the scheduled
// sweep that backstops a queue outage between webhook and enqueue. Returns
// the number of orders re-enqueued.
func (s *Service) RequeueUnqueuedPayouts(ctx context.Context) (int, error) {
	orders, err := s.orders.ListUnqueuedPayouts(ctx, unqueuedPayoutAge)
	if err != nil {
		return 0, fmt.Errorf("order: list unqueued payouts: %w", err)
	}

	requeued := 0
	for _, ord := range orders {
		if err := s.enqueuePayout(ctx, ord.ID); err != nil {
			logger.Error("failed to requeue unqueued payout", logger.OrderField(ord.ID), zap.Error(err))
			continue
		}
		requeued++
	}

	return requeued, nil
}

// ProcessOrder is the payout executor: it acquires the per-order payout
// lock, invokes the Hot Wallet Manager, and finalizes or fails the order
// (SPEC §4.5 process_order). It is invoked from the webhook success path,
// the payout queue consumer, and admin retry; the caller must never retry
// it automatically after a non-lock error.
func (s *Service) ProcessOrder(ctx context.Context, orderID string) error {
	ord, owned, err := s.acquirePayoutLock(ctx, orderID)
	if err != nil {
		return err
	}
	if !owned {
		return nil
	}

	txHash, sendErr := s.wallet.SendNative(ctx, ord.Chain, ord.WalletAddress, ord.AmountToken)
	if sendErr != nil {
		if broadcasted, ok := wallet.AsTxBroadcasted(sendErr); ok {
			// The send itself reached the chain even though confirmation was
			// ambiguous; persist tx_hash now so a crash before finalize still
			// leaves the order recoverable by SPEC §4.5 step 1's zombie check.
			if err := s.orders.RecordBroadcastHash(ctx, ord.ID, broadcasted.TxHash); err != nil {
				logger.Error("failed to record broadcast hash before finalize",
					logger.OrderField(ord.ID), zap.Error(err))
			}
			return s.finalize(ctx, ord, broadcasted.TxHash)
		}

		if wallet.IsSafeError(sendErr) {
			return s.markFailed(ctx, ord)
		}

		logger.Error("ambiguous payout failure, possible double-spend risk",
			logger.OrderField(ord.ID), zap.String("chain", ord.Chain), zap.Error(sendErr))
		s.appendPayoutAnomaly(ctx, ord, sendErr)
		return fmt.Errorf("%w: %v", ErrPayoutAmbiguous, sendErr)
	}

	return s.finalize(ctx, ord, txHash)
}

// acquirePayoutLock implements SPEC §4.5 step 1's retry loop: conditional
// lock, idempotent short-circuits, and zombie-lock stealing.
func (s *Service) acquirePayoutLock(ctx context.Context, orderID string) (*database.Order, bool, error) {
	for attempt := 0; attempt < payoutLockMaxAttempts; attempt++ {
		acquired, err := s.orders.AcquirePayoutLock(ctx, orderID)
		if err != nil {
			return nil, false, fmt.Errorf("order: acquire payout lock: %w", err)
		}

		ord, err := s.orders.GetByID(ctx, orderID)
		if err != nil {
			return nil, false, fmt.Errorf("order: get: %w", err)
		}

		if acquired {
			return ord, true, nil
		}

		switch {
		case ord.Status == database.OrderSuccess:
			return nil, false, nil
		case ord.TxHash != nil && ord.Status != database.OrderSuccess:
			return nil, false, s.finalize(ctx, ord, *ord.TxHash)
		case ord.Status == database.OrderProcessing:
			if time.Since(ord.UpdatedAt) > staleProcessingAge {
				stolen, err := s.orders.StealStaleProcessingLock(ctx, orderID, ord.UpdatedAt)
				if err != nil {
					return nil, false, fmt.Errorf("order: steal stale lock: %w", err)
				}
				if stolen {
					return ord, true, nil
				}
			}
		default:
			return nil, false, nil
		}
	}

	return nil, false, nil
}

func (s *Service) markFailed(ctx context.Context, ord *database.Order) error {
	if _, err := s.orders.MarkFailed(ctx, ord.ID); err != nil {
		return fmt.Errorf("order: mark failed: %w", err)
	}
	if err := s.inventory.Release(ctx, ord.Chain, ord.Symbol, ord.AmountToken); err != nil {
		logger.Error("failed to release inventory after safe payout failure", logger.OrderField(ord.ID), zap.Error(err))
	}
	logger.Warn("payout failed with safe error, order marked FAILED", logger.OrderField(ord.ID))
	return nil
}

// finalize commits the SUCCESS transition and inventory deduction, retrying
// once after finalizeRetryDelay if the first attempt fails (SPEC §4.5
// step 3 — money is already sent, so a stuck finalize becomes a supported
// manual-reconciliation state rather than a rollback).
func (s *Service) finalize(ctx context.Context, ord *database.Order, txHash string) error {
	err := s.finalizeOnce(ctx, ord, txHash)
	if err == nil {
		return nil
	}

	logger.Error("finalize failed, retrying once", logger.OrderField(ord.ID), zap.Error(err))
	time.Sleep(finalizeRetryDelay)

	if err := s.finalizeOnce(ctx, ord, txHash); err != nil {
		return fmt.Errorf("order: finalize failed after retry, manual reconciliation required for order %s tx %s: %w", ord.ID, txHash, err)
	}
	return nil
}

func (s *Service) finalizeOnce(ctx context.Context, ord *database.Order, txHash string) error {
	changed, err := s.orders.FinalizeSuccess(ctx, ord.ID, txHash)
	if err != nil {
		return fmt.Errorf("finalize transition: %w", err)
	}
	if !changed {
		return nil
	}

	if err := s.inventory.Deduct(ctx, ord.Chain, ord.Symbol, ord.AmountToken); err != nil {
		return fmt.Errorf("deduct inventory: %w", err)
	}

	if err := s.enqueueReferralValidate(ctx, ord.UserID); err != nil {
		logger.Error("failed to enqueue referral validation", logger.OrderField(ord.ID), zap.Error(err))
	}

	if err := s.notifier.NotifyOrderSuccess(ctx, ord.UserID, ord.ID, txHash); err != nil {
		logger.Error("failed to notify order success", logger.OrderField(ord.ID), zap.Error(err))
	}

	logger.Info("order payout succeeded", logger.OrderField(ord.ID), zap.String("tx_hash", txHash))
	return nil
}

// appendPayoutAnomaly records an ambiguous payout RPC error — money may or
// may not have left the hot wallet — to the audit log for manual
// reconciliation (SPEC §4.5, §10's "critical unknown" class).
func (s *Service) appendPayoutAnomaly(ctx context.Context, ord *database.Order, sendErr error) {
	detail, _ := json.Marshal(map[string]any{
		"chain":  ord.Chain,
		"amount": ord.AmountToken.String(),
		"wallet": ord.WalletAddress,
		"reason": sendErr.Error(),
	})

	entry := &database.AuditLogEntry{
		ID:        uuid.New().String(),
		OrderID:   &ord.ID,
		Actor:     "system",
		Action:    "payout_ambiguous_error",
		Detail:    string(detail),
		CreatedAt: time.Now().UTC(),
	}
	if err := s.audit.Append(ctx, entry); err != nil {
		logger.Error("order: failed to append payout anomaly audit entry", logger.OrderField(ord.ID), zap.Error(err))
	}
}

func (s *Service) enqueueReferralValidate(ctx context.Context, userID string) error {
	msg := &queue.ReferralValidateMessage{RefereeUserID: userID}
	data, err := msg.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal referral message: %w", err)
	}
	if _, err := s.queue.Publish(ctx, queue.StreamReferralValidate, data); err != nil {
		return fmt.Errorf("publish referral message: %w", err)
	}
	return nil
}
