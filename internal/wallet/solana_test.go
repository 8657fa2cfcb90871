package wallet

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	solana "github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSolanaAdapter_InvalidKey(t *testing.T) {
	_, err := NewSolanaAdapter("http://localhost", "not-base58!!!")
	require.Error(t, err)
}

func TestSolanaAdapter_NativeBalance(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Method string `json:"method"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "getBalance", req.Method)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"jsonrpc": "2.0",
			"id": 1,
			"result": {"context": {"slot": 1}, "value": 2000000000}
		}`))
	}))
	defer srv.Close()

	key := solana.NewWallet().PrivateKey
	adapter, err := NewSolanaAdapter(srv.URL, key.String())
	require.NoError(t, err)

	balance, err := adapter.NativeBalance(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "2", balance.String())
}
