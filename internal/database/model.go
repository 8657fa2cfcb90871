package database

import (
	"time"

	"github.com/shopspring/decimal"
)

// UserRole represents an account's privilege level.
type UserRole string

// ChainType identifies the blockchain family a Chain belongs to, which in
// turn selects the Hot Wallet Manager adapter used to sign for it.
type ChainType string

// OrderStatus represents the lifecycle state of a purchase order.
type OrderStatus string

// PaymentMethod represents the payment instrument chosen for an order.
type PaymentMethod string

const (
	RoleUser  UserRole = "USER"
	RoleAdmin UserRole = "ADMIN"
)

const (
	ChainEVM    ChainType = "EVM"
	ChainSolana ChainType = "SOLANA"
	ChainSui    ChainType = "SUI"
)

const (
	OrderPending    OrderStatus = "PENDING"
	OrderPaid       OrderStatus = "PAID"
	OrderProcessing OrderStatus = "PROCESSING"
	OrderSuccess    OrderStatus = "SUCCESS"
	OrderFailed     OrderStatus = "FAILED"
	OrderCancelled  OrderStatus = "CANCELLED"
	OrderExpired    OrderStatus = "EXPIRED"
)

const (
	PaymentQRIS PaymentMethod = "QRIS"
	PaymentVA   PaymentMethod = "VA"
)

// User is an account holder: an end user buying crypto, or an admin.
type User struct {
	ID           string    `json:"id" db:"id"`
	Email        *string   `json:"email,omitempty" db:"email"`
	ChatPlatform *string   `json:"chat_platform_id,omitempty" db:"chat_platform_id"`
	ReferralCode string    `json:"referral_code" db:"referral_code"`
	ReferredBy   *string   `json:"referred_by,omitempty" db:"referred_by"`
	Role         UserRole  `json:"role" db:"role"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// Chain is a configured blockchain network the hot wallet can pay out on.
type Chain struct {
	Slug              string    `json:"slug" db:"slug"`
	Type              ChainType `json:"type" db:"type"`
	RPCURL            string    `json:"rpc_url" db:"rpc_url"`
	ExplorerURL       string    `json:"explorer_url" db:"explorer_url"`
	ChainID           *int64    `json:"chain_id,omitempty" db:"chain_id"` // EVM only
	EncryptedKeyBlob  string    `json:"-" db:"encrypted_key_blob"`
	Active            bool      `json:"active" db:"active"`
	Confirmations     int       `json:"confirmations" db:"confirmations"`
	GasBumpPercent    int       `json:"gas_bump_percent" db:"gas_bump_percent"`
	CreatedAt         time.Time `json:"created_at" db:"created_at"`
}

// Token is a (chain, symbol) pair tradeable through this service.
type Token struct {
	Chain         string          `json:"chain" db:"chain"`
	Symbol        string          `json:"symbol" db:"symbol"`
	IsNative      bool            `json:"is_native" db:"is_native"`
	Decimals      int32           `json:"decimals" db:"decimals"`
	MarkupPercent decimal.Decimal `json:"markup_percent" db:"markup_percent"`
	Active        bool            `json:"active" db:"active"`
}

// Inventory tracks the hot wallet's available and reserved balance for a
// (chain, symbol) pair. Invariant: 0 <= reserved <= balance.
type Inventory struct {
	Chain     string          `json:"chain" db:"chain"`
	Symbol    string          `json:"symbol" db:"symbol"`
	Balance   decimal.Decimal `json:"balance" db:"balance"`
	Reserved  decimal.Decimal `json:"reserved" db:"reserved"`
	UpdatedAt time.Time       `json:"updated_at" db:"updated_at"`
}

// Voucher is a discount code with a usage cap and optional owner scoping.
type Voucher struct {
	ID         string          `json:"id" db:"id"`
	Code       string          `json:"code" db:"code"`
	OwnerID    *string         `json:"owner_id,omitempty" db:"owner_id"`
	ValueIDR   int64           `json:"value_idr" db:"value_idr"`
	MinAmount  int64           `json:"min_amount" db:"min_amount"`
	MaxUsage   int             `json:"max_usage" db:"max_usage"`
	UsageCount int             `json:"usage_count" db:"usage_count"`
	Active     bool            `json:"active" db:"active"`
	ExpiresAt  time.Time       `json:"expires_at" db:"expires_at"`
	CreatedAt  time.Time       `json:"created_at" db:"created_at"`
}

// Order is a single purchase from quote through payout.
type Order struct {
	ID            string          `json:"id" db:"id"`
	UserID        string          `json:"user_id" db:"user_id"`
	Chain         string          `json:"chain" db:"chain"`
	Symbol        string          `json:"symbol" db:"symbol"`
	AmountIDR     int64           `json:"amount_idr" db:"amount_idr"`
	AmountToken   decimal.Decimal `json:"amount_token" db:"amount_token"`
	MarkupPercent decimal.Decimal `json:"markup_percent" db:"markup_percent"`
	WalletAddress string          `json:"wallet_address" db:"wallet_address"`
	VoucherID     *string         `json:"voucher_id,omitempty" db:"voucher_id"`
	Status        OrderStatus     `json:"status" db:"status"`
	PaymentMethod *PaymentMethod  `json:"payment_method,omitempty" db:"payment_method"`
	FeeIDR        int64           `json:"fee_idr" db:"fee_idr"`
	TotalPay      int64           `json:"total_pay" db:"total_pay"`
	TxHash        *string         `json:"tx_hash,omitempty" db:"tx_hash"`
	MidtransID    *string         `json:"midtrans_id,omitempty" db:"midtrans_id"`
	PaymentURL    *string         `json:"payment_url,omitempty" db:"payment_url"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at" db:"updated_at"`
	PaidAt        *time.Time      `json:"paid_at,omitempty" db:"paid_at"`
	CompletedAt   *time.Time      `json:"completed_at,omitempty" db:"completed_at"`
}

// Referral tracks a referrer/referee relationship and its reward state.
type Referral struct {
	ID           string     `json:"id" db:"id"`
	ReferrerID   string     `json:"referrer_id" db:"referrer_id"`
	RefereeID    string     `json:"referee_id" db:"referee_id"`
	IsValid      bool       `json:"is_valid" db:"is_valid"`
	RewardGiven  bool       `json:"reward_given" db:"reward_given"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	ValidatedAt  *time.Time `json:"validated_at,omitempty" db:"validated_at"`
}

// AuditLogEntry is an append-only record of a fund-affecting decision, for
// manual reconciliation when an order lands outside the happy path.
type AuditLogEntry struct {
	ID        string    `json:"id" db:"id"`
	OrderID   *string   `json:"order_id,omitempty" db:"order_id"`
	Actor     string    `json:"actor" db:"actor"` // "system" or an admin user id
	Action    string    `json:"action" db:"action"`
	Detail    string    `json:"detail" db:"detail"` // JSON-encoded free-form detail
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Setting is a key-value row backing small pieces of mutable configuration
// that live in the database rather than the static config file (the USD/IDR
// FX rate and the default markup percent, currently).
type Setting struct {
	Key       string    `json:"key" db:"key"`
	Value     string    `json:"value" db:"value"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
