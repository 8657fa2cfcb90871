package queue

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Stream and consumer-group names used across cmd/worker processes.
const (
	StreamPayout            = "payout"
	StreamReferralValidate  = "referral_validate"
	GroupPayoutWorkers      = "payout_workers"
	GroupReferralWorkers    = "referral_workers"
)

// PayoutMessage requests the payout executor run process_order for OrderID.
// The queue consumer for this stream must attempt exactly once: a blockchain
// send is never automatically retried (SPEC §4.5, §4.9).
type PayoutMessage struct {
	OrderID string `json:"order_id"`
}

func (m *PayoutMessage) ToJSON() ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payout message: %w", err)
	}
	return data, nil
}

func FromJSONPayout(data []byte) (*PayoutMessage, error) {
	msg := &PayoutMessage{}
	if err := json.Unmarshal(data, msg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal payout message: %w", err)
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return msg, nil
}

func (m *PayoutMessage) Validate() error {
	if m.OrderID == "" {
		return errors.New("order_id is required")
	}
	return nil
}

// ReferralValidateMessage requests the referral engine re-check a referee's
// pending referral after one of their orders reaches SUCCESS.
type ReferralValidateMessage struct {
	RefereeUserID string `json:"referee_user_id"`
}

func (m *ReferralValidateMessage) ToJSON() ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal referral validate message: %w", err)
	}
	return data, nil
}

func FromJSONReferralValidate(data []byte) (*ReferralValidateMessage, error) {
	msg := &ReferralValidateMessage{}
	if err := json.Unmarshal(data, msg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal referral validate message: %w", err)
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return msg, nil
}

func (m *ReferralValidateMessage) Validate() error {
	if m.RefereeUserID == "" {
		return errors.New("referee_user_id is required")
	}
	return nil
}
