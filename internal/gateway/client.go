// Package gateway implements the payment-gateway client the Order Engine
// invokes to create QRIS/VA payments and poll their status, plus the
// signature helper the Webhook Reconciler uses to authenticate callbacks.
package gateway

import (
	"bytes"
	"context"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"cryptopay/internal/database"
	"cryptopay/pkg/logger"

	"go.uber.org/zap"
)

// TransactionStatus is the gateway's reported state for a payment attempt.
type TransactionStatus string

const (
	StatusPending    TransactionStatus = "pending"
	StatusSettlement TransactionStatus = "settlement"
	StatusPaid       TransactionStatus = "paid"
	StatusCapture    TransactionStatus = "capture"
	StatusDeny       TransactionStatus = "deny"
	StatusCancel     TransactionStatus = "cancel"
	StatusExpire     TransactionStatus = "expire"
	StatusFailure    TransactionStatus = "failure"
)

// Fee schedule in rupiah. QRIS is fee-free; VA carries a flat bank fee.
const (
	FeeQRIS int64 = 0
	FeeVA   int64 = 4000
)

// PaymentResult is the response to CreatePayment.
type PaymentResult struct {
	MidtransID string
	PaymentURL string
	FeeIDR     int64
	TotalPay   int64
}

// StatusResult is the response to QueryStatus.
type StatusResult struct {
	TransactionStatus TransactionStatus
	FraudStatus       string
}

// Client talks to the payment gateway's charge and status-query endpoints.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	serverKey   string
	environment string
}

// NewClient creates a gateway client. A nil httpClient gets a default
// 10s-timeout client, matching the rest of this codebase's outbound HTTP
// clients.
func NewClient(baseURL, serverKey, environment string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{httpClient: httpClient, baseURL: baseURL, serverKey: serverKey, environment: environment}
}

type chargeRequest struct {
	OrderID     string `json:"order_id"`
	GrossAmount int64  `json:"gross_amount"`
	PaymentType string `json:"payment_type"`
	ServerKey   string `json:"server_key"`
}

type chargeResponse struct {
	TransactionID string `json:"transaction_id"`
	RedirectURL   string `json:"redirect_url"`
	StatusCode    string `json:"status_code"`
	StatusMessage string `json:"status_message"`
}

type statusResponse struct {
	TransactionStatus string `json:"transaction_status"`
	FraudStatus       string `json:"fraud_status"`
	StatusCode        string `json:"status_code"`
}

// CreatePayment charges a fresh gateway order id for method (QRIS or VA),
// returning the gateway's own order id, the checkout URL the user pays at,
// and the fee/total for that method (SPEC §4.5's create_payment).
func (c *Client) CreatePayment(ctx context.Context, orderID string, amountIDR int64, method database.PaymentMethod) (*PaymentResult, error) {
	feeIDR := FeeQRIS
	if method == database.PaymentVA {
		feeIDR = FeeVA
	}
	totalPay := amountIDR + feeIDR

	midtransID := fmt.Sprintf("%s-%d", orderID, time.Now().UnixNano())

	body, err := json.Marshal(chargeRequest{
		OrderID:     midtransID,
		GrossAmount: totalPay,
		PaymentType: string(method),
		ServerKey:   c.serverKey,
	})
	if err != nil {
		return nil, fmt.Errorf("gateway: marshal charge request: %w", err)
	}

	var resp chargeResponse
	if err := c.doJSON(ctx, http.MethodPost, "/v2/charge", body, &resp); err != nil {
		return nil, fmt.Errorf("gateway: create payment: %w", err)
	}

	return &PaymentResult{
		MidtransID: midtransID,
		PaymentURL: resp.RedirectURL,
		FeeIDR:     feeIDR,
		TotalPay:   totalPay,
	}, nil
}

// QueryStatus polls the gateway for a previously created payment's current
// transaction/fraud status (used by the expiry sweep's late-payment check).
func (c *Client) QueryStatus(ctx context.Context, midtransID string) (*StatusResult, error) {
	var resp statusResponse
	path := fmt.Sprintf("/v2/%s/status", midtransID)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, fmt.Errorf("gateway: query status: %w", err)
	}

	return &StatusResult{
		TransactionStatus: TransactionStatus(resp.TransactionStatus),
		FraudStatus:       resp.FraudStatus,
	}, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, body []byte, target interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		logger.Error("gateway request failed", zap.String("path", path), zap.Error(err))
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		logger.Error("gateway returned server error", zap.String("path", path), zap.Int("status", resp.StatusCode))
		return fmt.Errorf("gateway server error: status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("failed to decode gateway response: %w", err)
	}

	return nil
}

// VerifySignature recomputes SHA-512(order_id || status_code || gross_amount
// || server_key) and compares it to the signature the gateway sent, per
// SPEC §4.10 step 1.
func (c *Client) VerifySignature(orderID, statusCode string, grossAmount int64, signatureKey string) bool {
	input := orderID + statusCode + formatGrossAmount(grossAmount) + c.serverKey
	sum := sha512.Sum512([]byte(input))
	expected := hex.EncodeToString(sum[:])
	return expected == signatureKey
}

func formatGrossAmount(amount int64) string {
	return strconv.FormatInt(amount, 10) + ".00"
}

// Classify maps a gateway notification's transaction/fraud status into the
// three outcomes the Order Engine acts on, per SPEC §4.10 step 5.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailed  Outcome = "failed"
	OutcomePending Outcome = "pending"
)

func Classify(status TransactionStatus, fraudStatus string) Outcome {
	switch status {
	case StatusSettlement, StatusPaid:
		return OutcomeSuccess
	case StatusCapture:
		if fraudStatus == "accept" {
			return OutcomeSuccess
		}
		return OutcomePending
	case StatusDeny, StatusCancel, StatusExpire, StatusFailure:
		return OutcomeFailed
	default:
		return OutcomePending
	}
}
