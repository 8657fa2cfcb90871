package wallet

import (
	"context"

	"github.com/shopspring/decimal"
)

// ChainAdapter is implemented once per Chain.type (EVM, Solana, Sui). It
// knows how to read a native-asset balance and submit a native transfer on
// its chain family; it never deals with locking, retries, or persistence —
// that is the Manager's job.
type ChainAdapter interface {
	// NativeBalance returns the hot wallet's current native-asset balance.
	NativeBalance(ctx context.Context) (decimal.Decimal, error)

	// SendNative submits a native-asset transfer of amount to address,
	// waits for the adapter's configured confirmation depth, and returns
	// the transaction hash. If submission succeeds but confirmation fails,
	// it returns a *TxBroadcastedError wrapping the hash.
	SendNative(ctx context.Context, toAddress string, amount decimal.Decimal) (txHash string, err error)
}
