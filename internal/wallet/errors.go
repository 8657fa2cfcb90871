package wallet

import (
	"errors"
	"fmt"
	"strings"
)

// LockAcquisitionError is raised when send_native could not obtain the
// per-chain distributed lock within its retry budget.
type LockAcquisitionError struct {
	Chain string
}

func (e *LockAcquisitionError) Error() string {
	return fmt.Sprintf("wallet: could not acquire payout lock for chain %s", e.Chain)
}

// TxBroadcastedError means a send succeeded at the submission step but the
// confirmation wait failed — money may be in flight. Callers must never
// treat this as a safe failure.
type TxBroadcastedError struct {
	TxHash string
	Cause  error
}

func (e *TxBroadcastedError) Error() string {
	return fmt.Sprintf("wallet: tx %s broadcasted but confirmation failed: %v", e.TxHash, e.Cause)
}

func (e *TxBroadcastedError) Unwrap() error {
	return e.Cause
}

// AsTxBroadcasted extracts a *TxBroadcastedError from err, if any.
func AsTxBroadcasted(err error) (*TxBroadcastedError, bool) {
	var tb *TxBroadcastedError
	ok := errors.As(err, &tb)
	return tb, ok
}

// safeErrorPatterns are substrings of an on-chain submission error that are
// known to mean the send never left the node's mempool or was cleanly
// rejected by the network — safe to mark the order FAILED and release its
// reservations. Anything else is ambiguous and must not be treated as safe.
var safeErrorPatterns = []string{
	"insufficient funds",
	"gas limit",
	"reverted",
	"nonce too low",
	"replacement fee too low",
}

// IsSafeError reports whether err's text matches one of the known safe
// failure patterns for a blockchain submission.
func IsSafeError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, pattern := range safeErrorPatterns {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}
