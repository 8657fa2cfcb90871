//go:build integration

package webhook

import (
	"context"
	"errors"
	"testing"

	"cryptopay/internal/database"
	"cryptopay/internal/gateway"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeVerifier struct {
	valid bool
}

func (f *fakeVerifier) VerifySignature(orderID, statusCode string, grossAmount int64, signatureKey string) bool {
	return f.valid
}

type fakeEngine struct {
	successCalls []string
	cancelCalls  []string
	cancelErr    error
}

func (f *fakeEngine) HandlePaymentSuccess(ctx context.Context, orderID string) error {
	f.successCalls = append(f.successCalls, orderID)
	return nil
}

func (f *fakeEngine) CancelOrder(ctx context.Context, orderID string) error {
	f.cancelCalls = append(f.cancelCalls, orderID)
	return f.cancelErr
}

func seedPendingOrderWithPayment(t *testing.T, db *database.DB, userID, midtransID string, amountIDR, totalPay int64) *database.Order {
	t.Helper()

	ord := database.SeedOrder(t, db, userID, database.OrderPending)
	require.NoError(t, database.NewOrderRepository(db).AttachPayment(
		context.Background(), ord.ID, database.PaymentQRIS, midtransID, "https://pay.example/"+midtransID, 0, totalPay,
	))
	ord.MidtransID = &midtransID
	ord.TotalPay = totalPay
	ord.AmountIDR = amountIDR
	return ord
}

func TestReconciler_Process_SuccessTransitionsToPaid(t *testing.T) {
	db := database.SetupTestDB(t)
	defer db.Close()
	defer database.CleanupTestDB(t, db)

	user := database.SeedUser(t, db)
	ord := seedPendingOrderWithPayment(t, db, user.ID, "mt-success-1", 100000, 100000)

	engine := &fakeEngine{}
	r := NewReconciler(database.NewOrderRepository(db), database.NewAuditRepository(db), &fakeVerifier{valid: true}, engine)

	outcome, err := r.Process(context.Background(), Payload{
		OrderID:           "mt-success-1",
		GrossAmount:       100000,
		TransactionStatus: gateway.StatusSettlement,
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeProcessed, outcome)
	assert.Equal(t, []string{ord.ID}, engine.successCalls)
}

func TestReconciler_Process_FailedClassificationCancels(t *testing.T) {
	db := database.SetupTestDB(t)
	defer db.Close()
	defer database.CleanupTestDB(t, db)

	user := database.SeedUser(t, db)
	ord := seedPendingOrderWithPayment(t, db, user.ID, "mt-deny-1", 100000, 100000)

	engine := &fakeEngine{}
	r := NewReconciler(database.NewOrderRepository(db), database.NewAuditRepository(db), &fakeVerifier{valid: true}, engine)

	outcome, err := r.Process(context.Background(), Payload{
		OrderID:           "mt-deny-1",
		GrossAmount:       100000,
		TransactionStatus: gateway.StatusDeny,
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeProcessed, outcome)
	assert.Equal(t, []string{ord.ID}, engine.cancelCalls)
}

func TestReconciler_Process_BadSignatureIgnored(t *testing.T) {
	db := database.SetupTestDB(t)
	defer db.Close()
	defer database.CleanupTestDB(t, db)

	user := database.SeedUser(t, db)
	seedPendingOrderWithPayment(t, db, user.ID, "mt-badsig-1", 100000, 100000)

	engine := &fakeEngine{}
	r := NewReconciler(database.NewOrderRepository(db), database.NewAuditRepository(db), &fakeVerifier{valid: false}, engine)

	outcome, err := r.Process(context.Background(), Payload{
		OrderID:           "mt-badsig-1",
		GrossAmount:       100000,
		TransactionStatus: gateway.StatusSettlement,
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeIgnored, outcome)
	assert.Empty(t, engine.successCalls)
}

func TestReconciler_Process_UnknownOrderIgnored(t *testing.T) {
	db := database.SetupTestDB(t)
	defer db.Close()
	defer database.CleanupTestDB(t, db)

	engine := &fakeEngine{}
	r := NewReconciler(database.NewOrderRepository(db), database.NewAuditRepository(db), &fakeVerifier{valid: true}, engine)

	outcome, err := r.Process(context.Background(), Payload{
		OrderID:           "does-not-exist",
		GrossAmount:       100000,
		TransactionStatus: gateway.StatusSettlement,
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeIgnored, outcome)
}

func TestReconciler_Process_AmountMismatchLogsFraudAndIgnores(t *testing.T) {
	db := database.SetupTestDB(t)
	defer db.Close()
	defer database.CleanupTestDB(t, db)

	user := database.SeedUser(t, db)
	ord := seedPendingOrderWithPayment(t, db, user.ID, "mt-fraud-1", 100000, 100000)

	engine := &fakeEngine{}
	r := NewReconciler(database.NewOrderRepository(db), database.NewAuditRepository(db), &fakeVerifier{valid: true}, engine)

	outcome, err := r.Process(context.Background(), Payload{
		OrderID:           "mt-fraud-1",
		GrossAmount:       1000, // wildly below the order's expected total_pay
		TransactionStatus: gateway.StatusSettlement,
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeIgnored, outcome)
	assert.Empty(t, engine.successCalls)

	entries, err := database.NewAuditRepository(db).ListByOrderID(context.Background(), ord.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "webhook_amount_mismatch", entries[0].Action)
}

func TestReconciler_Process_AlreadyPaidIsIdempotent(t *testing.T) {
	db := database.SetupTestDB(t)
	defer db.Close()
	defer database.CleanupTestDB(t, db)

	user := database.SeedUser(t, db)
	seedPendingOrderWithPayment(t, db, user.ID, "mt-dup-1", 100000, 100000)

	engine := &fakeEngine{}
	r := NewReconciler(database.NewOrderRepository(db), database.NewAuditRepository(db), &fakeVerifier{valid: true}, engine)

	_, err := r.Process(context.Background(), Payload{OrderID: "mt-dup-1", GrossAmount: 100000, TransactionStatus: gateway.StatusSettlement})
	require.NoError(t, err)

	outcome, err := r.Process(context.Background(), Payload{OrderID: "mt-dup-1", GrossAmount: 100000, TransactionStatus: gateway.StatusSettlement})
	require.NoError(t, err)
	assert.Equal(t, OutcomeIgnored, outcome)
	assert.Len(t, engine.successCalls, 1)
}

func TestReconciler_Process_CancelFailureIsBenign(t *testing.T) {
	db := database.SetupTestDB(t)
	defer db.Close()
	defer database.CleanupTestDB(t, db)

	user := database.SeedUser(t, db)
	seedPendingOrderWithPayment(t, db, user.ID, "mt-cancel-race-1", 100000, 100000)

	engine := &fakeEngine{cancelErr: errors.New("already terminal")}
	r := NewReconciler(database.NewOrderRepository(db), database.NewAuditRepository(db), &fakeVerifier{valid: true}, engine)

	outcome, err := r.Process(context.Background(), Payload{
		OrderID:           "mt-cancel-race-1",
		GrossAmount:       100000,
		TransactionStatus: gateway.StatusCancel,
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeIgnored, outcome)
}
