package wallet

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsSafeError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		safe bool
	}{
		{"insufficient funds", errors.New("insufficient funds for gas * price + value"), true},
		{"gas limit", errors.New("intrinsic gas too low: gas limit exceeded"), true},
		{"reverted", errors.New("execution reverted"), true},
		{"nonce too low", errors.New("nonce too low"), true},
		{"replacement fee too low", errors.New("replacement transaction underpriced: replacement fee too low"), true},
		{"unknown rpc error", errors.New("connection reset by peer"), false},
		{"nil error", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.safe, IsSafeError(tt.err))
		})
	}
}

func TestAsTxBroadcasted(t *testing.T) {
	wrapped := &TxBroadcastedError{TxHash: "0xabc", Cause: errors.New("confirmation timed out")}

	tb, ok := AsTxBroadcasted(wrapped)
	assert.True(t, ok)
	assert.Equal(t, "0xabc", tb.TxHash)

	_, ok = AsTxBroadcasted(errors.New("plain error"))
	assert.False(t, ok)
}
