package order

import "errors"

var (
	// ErrPendingOrderExists is returned by CreateOrder when the user already
	// has an order in PENDING.
	ErrPendingOrderExists = errors.New("user already has a pending order")
	// ErrInvalidAmount is returned for a non-positive order amount.
	ErrInvalidAmount = errors.New("order amount must be positive")
	// ErrNotPending is returned when an operation requires PENDING but the
	// order has moved on.
	ErrNotPending = errors.New("order is not pending")
	// ErrAlreadyTerminal is returned by CancelOrder when the order has
	// already moved to PAID, PROCESSING or SUCCESS.
	ErrAlreadyTerminal = errors.New("order already reached a terminal state")
	// ErrSlippageExceeded is returned by CreateOrder when the fresh quote at
	// insert time has drifted more than 5% from the pinned estimate.
	ErrSlippageExceeded = errors.New("price moved more than 5% since quote, please requote")
	// ErrInvalidAddress is returned by CreateOrder when the withdrawal
	// address fails the destination chain's validation rules.
	ErrInvalidAddress = errors.New("wallet address is invalid for the selected chain")
	// ErrPayoutAmbiguous marks a send_native failure that could not be
	// classified safe. The caller must alert and leave the order in
	// PROCESSING for the zombie-steal path to retry.
	ErrPayoutAmbiguous = errors.New("payout result ambiguous, possible double-spend risk")
)
