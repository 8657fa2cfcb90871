package wallet

import (
	"fmt"
	"regexp"

	"cryptopay/internal/database"

	"github.com/ethereum/go-ethereum/common"
	solana "github.com/gagliardetto/solana-go"
)

var suiAddressPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{64}$`)

// NormalizeAddress validates a user-supplied withdrawal address against the
// rules for chainType and returns its canonical form. A mismatched EVM
// checksum is rejected rather than silently corrected, forcing the caller
// to re-supply the exact address (SPEC §6).
func NormalizeAddress(chainType database.ChainType, address string) (string, error) {
	switch chainType {
	case database.ChainEVM:
		return normalizeEVMAddress(address)
	case database.ChainSolana:
		return normalizeSolanaAddress(address)
	case database.ChainSui:
		return normalizeSuiAddress(address)
	default:
		return "", fmt.Errorf("wallet: unknown chain type %q", chainType)
	}
}

func normalizeEVMAddress(address string) (string, error) {
	if !common.IsHexAddress(address) {
		return "", fmt.Errorf("wallet: %q is not a valid EVM address", address)
	}
	checksummed := common.HexToAddress(address).Hex()
	// common.HexToAddress lowercases/accepts any case on input; a caller
	// that sent mixed case must have sent the exact checksum, never a
	// silently-corrected one.
	if hasMixedCase(address) && address != checksummed {
		return "", fmt.Errorf("wallet: %q fails EIP-55 checksum validation", address)
	}
	return checksummed, nil
}

func hasMixedCase(s string) bool {
	hasUpper, hasLower := false, false
	for _, r := range s {
		switch {
		case r >= 'A' && r <= 'F':
			hasUpper = true
		case r >= 'a' && r <= 'f':
			hasLower = true
		}
	}
	return hasUpper && hasLower
}

func normalizeSolanaAddress(address string) (string, error) {
	pub, err := solana.PublicKeyFromBase58(address)
	if err != nil {
		return "", fmt.Errorf("wallet: %q is not a valid Solana address: %w", address, err)
	}
	return pub.String(), nil
}

func normalizeSuiAddress(address string) (string, error) {
	if !suiAddressPattern.MatchString(address) {
		return "", fmt.Errorf("wallet: %q is not a valid Sui address", address)
	}
	return address, nil
}
