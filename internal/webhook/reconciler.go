// Package webhook implements the Webhook Reconciler: signature verification,
// amount-tolerance fraud detection, and idempotent classification of payment
// gateway notifications (SPEC §4.10).
package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cryptopay/internal/database"
	"cryptopay/internal/gateway"
	"cryptopay/pkg/logger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// amountTolerancePercent and amountToleranceFloorIDR bound the webhook's
// gross_amount against the order's own record of what it expects to be paid.
var amountTolerancePercent = decimal.NewFromFloat(0.005)

const amountToleranceFloorIDR = 1000

// Payload is a payment gateway notification, already decoded from the
// transport's wire format (JSON body, form fields, whatever the gateway
// sends — routing and decoding are out of scope here).
type Payload struct {
	OrderID           string
	StatusCode        string
	GrossAmount       int64
	SignatureKey      string
	TransactionStatus gateway.TransactionStatus
	FraudStatus       string
}

// Outcome reports what the reconciler did with a notification. The caller's
// HTTP handler responds 200 regardless of Outcome — only an error return
// changes the response body, per SPEC §4.10 step 6.
type Outcome string

const (
	// OutcomeProcessed means the notification drove a state transition.
	OutcomeProcessed Outcome = "processed"
	// OutcomeIgnored means the notification was accepted but caused no
	// change: bad signature, unknown order, fraud signal, already-settled
	// idempotency, or a still-pending gateway status.
	OutcomeIgnored Outcome = "ignored"
)

// SignatureVerifier is the subset of the gateway client the reconciler needs.
type SignatureVerifier interface {
	VerifySignature(orderID, statusCode string, grossAmount int64, signatureKey string) bool
}

// OrderTransitioner is the subset of the Order Engine the reconciler needs.
type OrderTransitioner interface {
	HandlePaymentSuccess(ctx context.Context, orderID string) error
	CancelOrder(ctx context.Context, orderID string) error
}

// Reconciler processes payment gateway webhook notifications.
type Reconciler struct {
	orders   *database.OrderRepository
	audit    *database.AuditRepository
	verifier SignatureVerifier
	engine   OrderTransitioner
}

// NewReconciler creates a Webhook Reconciler from its collaborators.
func NewReconciler(orders *database.OrderRepository, audit *database.AuditRepository, verifier SignatureVerifier, engine OrderTransitioner) *Reconciler {
	return &Reconciler{orders: orders, audit: audit, verifier: verifier, engine: engine}
}

// Process runs the full SPEC §4.10 pipeline for one notification. A non-nil
// error means an unexpected internal failure; per step 6, the caller must
// still answer the gateway with 200 so it doesn't retry into a loop.
func (r *Reconciler) Process(ctx context.Context, p Payload) (Outcome, error) {
	if !r.verifier.VerifySignature(p.OrderID, p.StatusCode, p.GrossAmount, p.SignatureKey) {
		logger.Warn("webhook signature mismatch", zap.String("gateway_order_id", p.OrderID))
		return OutcomeIgnored, nil
	}

	ord, err := r.orders.GetByMidtransID(ctx, p.OrderID)
	if err != nil {
		if err == database.ErrOrderNotFound {
			return OutcomeIgnored, nil
		}
		return OutcomeIgnored, fmt.Errorf("webhook: lookup order: %w", err)
	}

	if !r.withinTolerance(ord, p.GrossAmount) {
		r.logFraudSignal(ctx, ord, p)
		return OutcomeIgnored, nil
	}

	if ord.Status != database.OrderPending {
		return OutcomeIgnored, nil
	}

	switch gateway.Classify(p.TransactionStatus, p.FraudStatus) {
	case gateway.OutcomeSuccess:
		if err := r.engine.HandlePaymentSuccess(ctx, ord.ID); err != nil {
			return OutcomeIgnored, fmt.Errorf("webhook: handle payment success: %w", err)
		}
		return OutcomeProcessed, nil

	case gateway.OutcomeFailed:
		if err := r.engine.CancelOrder(ctx, ord.ID); err != nil {
			// The order may have left PENDING between our read and this
			// call (e.g. raced with a success notification); that's a
			// benign idempotency loss, not a reconciler failure.
			logger.Warn("webhook: cancel on failed classification did not apply",
				logger.OrderField(ord.ID), zap.Error(err))
			return OutcomeIgnored, nil
		}
		return OutcomeProcessed, nil

	default: // pending
		return OutcomeIgnored, nil
	}
}

func (r *Reconciler) withinTolerance(ord *database.Order, grossAmount int64) bool {
	expected := ord.AmountIDR
	if ord.TotalPay > 0 {
		expected = ord.TotalPay
	}

	diff := decimal.NewFromInt(expected - grossAmount).Abs()
	tolerance := decimal.NewFromInt(expected).Mul(amountTolerancePercent)
	if tolerance.LessThan(decimal.NewFromInt(amountToleranceFloorIDR)) {
		tolerance = decimal.NewFromInt(amountToleranceFloorIDR)
	}

	return diff.LessThanOrEqual(tolerance)
}

func (r *Reconciler) logFraudSignal(ctx context.Context, ord *database.Order, p Payload) {
	logger.Error("webhook amount mismatch, possible fraud signal",
		logger.OrderField(ord.ID), zap.Int64("expected_idr", ord.TotalPay), zap.Int64("received_idr", p.GrossAmount))

	detail, _ := json.Marshal(map[string]any{
		"expected_amount_idr": ord.AmountIDR,
		"expected_total_pay":  ord.TotalPay,
		"received_gross_amount": p.GrossAmount,
		"transaction_status":  p.TransactionStatus,
	})

	entry := &database.AuditLogEntry{
		ID:        uuid.New().String(),
		OrderID:   &ord.ID,
		Actor:     "system",
		Action:    "webhook_amount_mismatch",
		Detail:    string(detail),
		CreatedAt: time.Now().UTC(),
	}
	if err := r.audit.Append(ctx, entry); err != nil {
		logger.Error("webhook: failed to append fraud audit entry", logger.OrderField(ord.ID), zap.Error(err))
	}
}
