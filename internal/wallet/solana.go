package wallet

import (
	"context"
	"fmt"
	"time"

	solana "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/shopspring/decimal"
)

const (
	solanaNativeDecimals = 9
	solanaConfirmPoll    = 2 * time.Second
	solanaConfirmBudget  = 60 * time.Second
)

// SolanaAdapter sends native SOL payouts.
type SolanaAdapter struct {
	client     *rpc.Client
	privateKey solana.PrivateKey
}

// NewSolanaAdapter builds an adapter from an RPC endpoint and a base58-encoded private key.
func NewSolanaAdapter(rpcURL, base58Key string) (*SolanaAdapter, error) {
	privateKey, err := solana.PrivateKeyFromBase58(base58Key)
	if err != nil {
		return nil, fmt.Errorf("solana: invalid signing key: %w", err)
	}

	return &SolanaAdapter{client: rpc.New(rpcURL), privateKey: privateKey}, nil
}

// NativeBalance reads the hot wallet's SOL balance, converted from lamports.
func (a *SolanaAdapter) NativeBalance(ctx context.Context) (decimal.Decimal, error) {
	out, err := a.client.GetBalance(ctx, a.privateKey.PublicKey(), rpc.CommitmentConfirmed)
	if err != nil {
		return decimal.Zero, fmt.Errorf("solana: balance query: %w", err)
	}

	return decimal.NewFromInt(int64(out.Value)).Shift(-solanaNativeDecimals), nil
}

// SendNative builds, signs, and submits a SystemProgram.Transfer instruction
// for amount SOL to toAddress, waiting for confirmed commitment.
func (a *SolanaAdapter) SendNative(ctx context.Context, toAddress string, amount decimal.Decimal) (string, error) {
	to, err := solana.PublicKeyFromBase58(toAddress)
	if err != nil {
		return "", fmt.Errorf("solana: invalid destination address: %w", err)
	}

	lamports := uint64(amount.Shift(solanaNativeDecimals).IntPart())

	recent, err := a.client.GetLatestBlockhash(ctx, rpc.CommitmentFinalized)
	if err != nil {
		return "", fmt.Errorf("solana: recent blockhash: %w", err)
	}

	instruction := system.NewTransferInstruction(lamports, a.privateKey.PublicKey(), to).Build()

	tx, err := solana.NewTransaction(
		[]solana.Instruction{instruction},
		recent.Value.Blockhash,
		solana.TransactionPayer(a.privateKey.PublicKey()),
	)
	if err != nil {
		return "", fmt.Errorf("solana: build transaction: %w", err)
	}

	_, err = tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(a.privateKey.PublicKey()) {
			return &a.privateKey
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("solana: sign transaction: %w", err)
	}

	sig, err := a.client.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{SkipPreflight: false})
	if err != nil {
		return "", fmt.Errorf("solana: submit transaction: %w", err)
	}

	txHash := sig.String()

	if err := a.awaitConfirmation(ctx, sig); err != nil {
		return txHash, &TxBroadcastedError{TxHash: txHash, Cause: err}
	}

	return txHash, nil
}

func (a *SolanaAdapter) awaitConfirmation(ctx context.Context, sig solana.Signature) error {
	deadline := time.Now().Add(solanaConfirmBudget)
	ticker := time.NewTicker(solanaConfirmPoll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if time.Now().After(deadline) {
				return fmt.Errorf("solana: confirmation timed out")
			}

			statuses, err := a.client.GetSignatureStatuses(ctx, true, sig)
			if err != nil || len(statuses.Value) == 0 || statuses.Value[0] == nil {
				continue
			}

			status := statuses.Value[0]
			if status.Err != nil {
				return fmt.Errorf("solana: transaction failed: %v", status.Err)
			}
			if status.ConfirmationStatus == rpc.ConfirmationStatusConfirmed || status.ConfirmationStatus == rpc.ConfirmationStatusFinalized {
				return nil
			}
		}
	}
}
