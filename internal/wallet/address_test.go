package wallet

import (
	"testing"

	"cryptopay/internal/database"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeAddress_EVM(t *testing.T) {
	checksummed, err := NormalizeAddress(database.ChainEVM, "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed")
	require.NoError(t, err)
	assert.Equal(t, "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed", checksummed)
}

func TestNormalizeAddress_EVM_AllLowercaseAccepted(t *testing.T) {
	checksummed, err := NormalizeAddress(database.ChainEVM, "0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed")
	require.NoError(t, err)
	assert.Equal(t, "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed", checksummed)
}

func TestNormalizeAddress_EVM_BadChecksumRejected(t *testing.T) {
	_, err := NormalizeAddress(database.ChainEVM, "0x5AAEB6053F3E94C9b9A09f33669435E7Ef1BeAed")
	require.Error(t, err)
}

func TestNormalizeAddress_EVM_InvalidFormat(t *testing.T) {
	_, err := NormalizeAddress(database.ChainEVM, "not-an-address")
	require.Error(t, err)
}

func TestNormalizeAddress_Solana(t *testing.T) {
	addr, err := NormalizeAddress(database.ChainSolana, "11111111111111111111111111111111")
	require.NoError(t, err)
	assert.Equal(t, "11111111111111111111111111111111", addr)
}

func TestNormalizeAddress_Solana_Invalid(t *testing.T) {
	_, err := NormalizeAddress(database.ChainSolana, "not-base58!!!")
	require.Error(t, err)
}

func TestNormalizeAddress_Sui(t *testing.T) {
	addr := "0x" + (func() string {
		s := ""
		for i := 0; i < 64; i++ {
			s += "a"
		}
		return s
	})()
	got, err := NormalizeAddress(database.ChainSui, addr)
	require.NoError(t, err)
	assert.Equal(t, addr, got)
}

func TestNormalizeAddress_Sui_WrongLength(t *testing.T) {
	_, err := NormalizeAddress(database.ChainSui, "0xabc")
	require.Error(t, err)
}

func TestNormalizeAddress_UnknownChainType(t *testing.T) {
	_, err := NormalizeAddress(database.ChainType("BTC"), "whatever")
	require.Error(t, err)
}
