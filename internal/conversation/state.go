// Package conversation implements the per-user checkout state machine: a
// Redis-backed entity tracking where a user is in the buy flow, guarded by
// per-user locks so concurrent messages from the same user never race each
// other into two orders.
package conversation

import (
	"time"

	"github.com/shopspring/decimal"
)

// Step is one of the fixed set of checkout stages.
type Step string

const (
	StepIdle                  Step = "idle"
	StepAwaitingChain         Step = "awaiting_chain"
	StepAwaitingAmount        Step = "awaiting_amount"
	StepAwaitingCustomAmount  Step = "awaiting_custom_amount"
	StepAwaitingWallet        Step = "awaiting_wallet"
	StepAwaitingVoucher       Step = "awaiting_voucher"
	StepAwaitingConfirmation  Step = "awaiting_confirmation"
	StepAwaitingPaymentMethod Step = "awaiting_payment_method"
	StepAwaitingAuth          Step = "awaiting_auth"
	StepAwaitingLinkCode      Step = "awaiting_link_code"
)

var validSteps = map[Step]bool{
	StepIdle:                  true,
	StepAwaitingChain:         true,
	StepAwaitingAmount:        true,
	StepAwaitingCustomAmount:  true,
	StepAwaitingWallet:        true,
	StepAwaitingVoucher:       true,
	StepAwaitingConfirmation:  true,
	StepAwaitingPaymentMethod: true,
	StepAwaitingAuth:          true,
	StepAwaitingLinkCode:      true,
}

// State is the full set of parameters carried across a buy flow. Every field
// but Step and CreatedAt is optional and cleared by Reset.
type State struct {
	Step          Step            `json:"step"`
	Chain         string          `json:"chain,omitempty"`
	AmountIDR     int64           `json:"amount_idr,omitempty"`
	TokenAmount   decimal.Decimal `json:"token_amount,omitempty"`
	WalletAddress string          `json:"wallet_address,omitempty"`
	VoucherCode   string          `json:"voucher_code,omitempty"`
	OrderID       string          `json:"order_id,omitempty"`
	SessionToken  string          `json:"session_token,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// idleState is what a missing, expired, or corrupt stored blob becomes.
func idleState() *State {
	return &State{Step: StepIdle, CreatedAt: time.Now().UTC()}
}

// Reset clears every flow parameter and returns to idle, keeping nothing
// but a fresh CreatedAt.
func (s *State) Reset() {
	*s = *idleState()
}

func (s *State) valid() bool {
	return validSteps[s.Step]
}
