package gateway

import (
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"cryptopay/internal/database"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_CreatePayment_QRIS(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/charge", r.URL.Path)
		_ = json.NewEncoder(w).Encode(chargeResponse{RedirectURL: "https://pay.example/abc"})
	}))
	defer server.Close()

	c := NewClient(server.URL, "secret", "sandbox", nil)

	result, err := c.CreatePayment(t.Context(), "order-1", 100000, database.PaymentQRIS)
	require.NoError(t, err)
	assert.Equal(t, int64(0), result.FeeIDR)
	assert.Equal(t, int64(100000), result.TotalPay)
	assert.Equal(t, "https://pay.example/abc", result.PaymentURL)
	assert.Contains(t, result.MidtransID, "order-1-")
}

func TestClient_CreatePayment_VA(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(chargeResponse{RedirectURL: "https://pay.example/va"})
	}))
	defer server.Close()

	c := NewClient(server.URL, "secret", "sandbox", nil)

	result, err := c.CreatePayment(t.Context(), "order-2", 100000, database.PaymentVA)
	require.NoError(t, err)
	assert.Equal(t, int64(4000), result.FeeIDR)
	assert.Equal(t, int64(104000), result.TotalPay)
}

func TestClient_QueryStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/order-1-123/status", r.URL.Path)
		_ = json.NewEncoder(w).Encode(statusResponse{TransactionStatus: "settlement", FraudStatus: "accept"})
	}))
	defer server.Close()

	c := NewClient(server.URL, "secret", "sandbox", nil)

	result, err := c.QueryStatus(t.Context(), "order-1-123")
	require.NoError(t, err)
	assert.Equal(t, StatusSettlement, result.TransactionStatus)
}

func TestClient_QueryStatus_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	c := NewClient(server.URL, "secret", "sandbox", nil)

	_, err := c.QueryStatus(t.Context(), "order-1-123")
	assert.Error(t, err)
}

func TestClient_VerifySignature(t *testing.T) {
	c := NewClient("https://gw.example", "server-key-123", "sandbox", nil)

	input := "order-1" + "200" + "100000.00" + "server-key-123"
	digest := sha512.Sum512([]byte(input))
	sum := hex.EncodeToString(digest[:])

	assert.True(t, c.VerifySignature("order-1", "200", 100000, sum))
	assert.False(t, c.VerifySignature("order-1", "200", 100000, "wrong"))
	assert.False(t, c.VerifySignature("order-1", "201", 100000, sum))
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name    string
		status  TransactionStatus
		fraud   string
		outcome Outcome
	}{
		{"settlement", StatusSettlement, "", OutcomeSuccess},
		{"paid", StatusPaid, "", OutcomeSuccess},
		{"capture accept", StatusCapture, "accept", OutcomeSuccess},
		{"capture challenge", StatusCapture, "challenge", OutcomePending},
		{"deny", StatusDeny, "", OutcomeFailed},
		{"cancel", StatusCancel, "", OutcomeFailed},
		{"expire", StatusExpire, "", OutcomeFailed},
		{"failure", StatusFailure, "", OutcomeFailed},
		{"pending", StatusPending, "", OutcomePending},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.outcome, Classify(tt.status, tt.fraud))
		})
	}
}
