package wallet

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/hex"
	"fmt"

	"cryptopay/internal/wallet/sui"

	"github.com/shopspring/decimal"
)

const (
	suiNativeDecimals = 9
	suiDefaultBudget  = "5000000" // MIST, ~0.005 SUI
)

// SuiAdapter sends native SUI payouts via the hand-written JSON-RPC client.
type SuiAdapter struct {
	client  *sui.Client
	seed    ed25519.PrivateKey
	address string
}

// NewSuiAdapter builds an adapter from an RPC endpoint, a hex-encoded
// ed25519 seed, and the wallet's own Sui address.
func NewSuiAdapter(rpcURL, address, hexSeed string) (*SuiAdapter, error) {
	seedBytes, err := hex.DecodeString(hexSeed)
	if err != nil {
		return nil, fmt.Errorf("sui: invalid signing key: %w", err)
	}
	if len(seedBytes) != ed25519.SeedSize {
		return nil, fmt.Errorf("sui: signing key must be %d bytes, got %d", ed25519.SeedSize, len(seedBytes))
	}

	return &SuiAdapter{
		client:  sui.NewClient(rpcURL),
		seed:    ed25519.NewKeyFromSeed(seedBytes),
		address: address,
	}, nil
}

// NativeBalance reads the hot wallet's SUI balance, converted from MIST.
func (a *SuiAdapter) NativeBalance(ctx context.Context) (decimal.Decimal, error) {
	mist, err := a.client.GetBalance(ctx, a.address)
	if err != nil {
		return decimal.Zero, fmt.Errorf("sui: balance query: %w", err)
	}

	balance, err := decimal.NewFromString(mist)
	if err != nil {
		return decimal.Zero, fmt.Errorf("sui: malformed balance: %w", err)
	}

	return balance.Shift(-suiNativeDecimals), nil
}

// SendNative builds an unsigned transfer via unsafe_transferSui, signs the
// returned transaction bytes with the wallet's ed25519 key, and executes it,
// waiting for checkpoint finality via sui_executeTransactionBlock's
// WaitForLocalExecution mode.
func (a *SuiAdapter) SendNative(ctx context.Context, toAddress string, amount decimal.Decimal) (string, error) {
	coins, err := a.client.GetCoins(ctx, a.address)
	if err != nil {
		return "", fmt.Errorf("sui: list coins: %w", err)
	}
	if len(coins) == 0 {
		return "", fmt.Errorf("sui: no coin objects available for transfer")
	}

	mistAmount := amount.Shift(suiNativeDecimals).BigInt().String()

	txBytesBase64, err := a.client.UnsafeTransferSui(ctx, a.address, coins[0].CoinObjectID, suiDefaultBudget, toAddress, mistAmount)
	if err != nil {
		return "", fmt.Errorf("sui: build transfer: %w", err)
	}

	txBytes, err := base64.StdEncoding.DecodeString(txBytesBase64)
	if err != nil {
		return "", fmt.Errorf("sui: decode transaction bytes: %w", err)
	}

	signature := ed25519.Sign(a.seed, txBytes)
	sigEnvelope := append([]byte{0x00}, signature...) // flag 0x00 = Ed25519
	sigEnvelope = append(sigEnvelope, a.seed.Public().(ed25519.PublicKey)...)

	digest, err := a.client.ExecuteTransactionBlock(ctx, txBytesBase64, []string{base64.StdEncoding.EncodeToString(sigEnvelope)})
	if err != nil {
		if digest == "" {
			return "", fmt.Errorf("sui: execute transaction: %w", err)
		}
		return digest, &TxBroadcastedError{TxHash: digest, Cause: err}
	}

	return digest, nil
}
