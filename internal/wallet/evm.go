package wallet

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"time"

	"cryptopay/pkg/logger"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	gethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	evmNativeDecimals  = 18
	evmConfirmPollStep = 2 * time.Second
	evmSendGasLimit    = 21000
)

// EVMAdapter sends native-asset payouts (ETH/BNB/MATIC) on an EVM-compatible chain.
type EVMAdapter struct {
	client         *ethclient.Client
	chainID        *big.Int
	privateKey     *ecdsa.PrivateKey
	fromAddress    common.Address
	confirmations  int
	gasBumpPercent int
}

// NewEVMAdapter dials rpcURL and derives the hot wallet's address from hexKey.
func NewEVMAdapter(ctx context.Context, rpcURL string, chainID int64, hexKey string, confirmations, gasBumpPercent int) (*EVMAdapter, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("evm: dial %s: %w", rpcURL, err)
	}

	privateKey, err := gethcrypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, fmt.Errorf("evm: invalid signing key: %w", err)
	}

	publicKey, ok := privateKey.Public().(*ecdsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("evm: failed to derive public key")
	}

	return &EVMAdapter{
		client:         client,
		chainID:        big.NewInt(chainID),
		privateKey:     privateKey,
		fromAddress:    gethcrypto.PubkeyToAddress(*publicKey),
		confirmations:  confirmations,
		gasBumpPercent: gasBumpPercent,
	}, nil
}

// NativeBalance reads the hot wallet's native-asset balance and converts it
// from wei to a whole-token decimal.Decimal.
func (a *EVMAdapter) NativeBalance(ctx context.Context) (decimal.Decimal, error) {
	wei, err := a.client.BalanceAt(ctx, a.fromAddress, nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("evm: balance query: %w", err)
	}

	return decimal.NewFromBigInt(wei, -evmNativeDecimals), nil
}

// SendNative signs and submits a legacy native transfer, refetching nonce
// and gas price at `latest` inside the caller-held payout lock, bumping the
// suggested gas price by gasBumpPercent, then polls for confirmations.
func (a *EVMAdapter) SendNative(ctx context.Context, toAddress string, amount decimal.Decimal) (string, error) {
	to := common.HexToAddress(toAddress)

	nonce, err := a.client.NonceAt(ctx, a.fromAddress, nil)
	if err != nil {
		return "", fmt.Errorf("evm: nonce query: %w", err)
	}

	gasPrice, err := a.client.SuggestGasPrice(ctx)
	if err != nil {
		return "", fmt.Errorf("evm: gas price query: %w", err)
	}
	gasPrice = bumpByPercent(gasPrice, a.gasBumpPercent)

	weiAmount := amount.Shift(evmNativeDecimals).BigInt()

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Value:    weiAmount,
		Gas:      evmSendGasLimit,
		GasPrice: gasPrice,
	})

	signedTx, err := types.SignTx(tx, types.NewEIP155Signer(a.chainID), a.privateKey)
	if err != nil {
		return "", fmt.Errorf("evm: sign: %w", err)
	}

	if err := a.client.SendTransaction(ctx, signedTx); err != nil {
		return "", fmt.Errorf("evm: submit: %w", err)
	}

	txHash := signedTx.Hash().Hex()

	if err := a.awaitConfirmations(ctx, signedTx.Hash()); err != nil {
		return txHash, &TxBroadcastedError{TxHash: txHash, Cause: err}
	}

	return txHash, nil
}

func (a *EVMAdapter) awaitConfirmations(ctx context.Context, txHash common.Hash) error {
	ticker := time.NewTicker(evmConfirmPollStep)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			receipt, err := a.client.TransactionReceipt(ctx, txHash)
			if err != nil {
				continue
			}
			if receipt.Status != types.ReceiptStatusSuccessful {
				return fmt.Errorf("evm: transaction reverted")
			}

			head, err := a.client.BlockNumber(ctx)
			if err != nil {
				logger.Warn("evm: failed to read block height while confirming", zap.Error(err))
				continue
			}

			confirmed := int(head-receipt.BlockNumber.Uint64()) + 1
			if confirmed >= a.confirmations {
				return nil
			}
		}
	}
}

func bumpByPercent(value *big.Int, percent int) *big.Int {
	if percent <= 0 {
		return value
	}
	bumped := new(big.Int).Mul(value, big.NewInt(int64(100+percent)))
	return bumped.Div(bumped, big.NewInt(100))
}
