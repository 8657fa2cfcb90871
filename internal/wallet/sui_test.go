package wallet

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validSuiSeed(t *testing.T) string {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	return hex.EncodeToString(priv.Seed())
}

func TestNewSuiAdapter_InvalidHex(t *testing.T) {
	_, err := NewSuiAdapter("http://localhost", "0xabc", "not-hex")
	require.Error(t, err)
}

func TestNewSuiAdapter_WrongSeedLength(t *testing.T) {
	_, err := NewSuiAdapter("http://localhost", "0xabc", hex.EncodeToString([]byte("tooshort")))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "32 bytes")
}

func TestSuiAdapter_NativeBalance(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":{"totalBalance":"3000000000"}}`))
	}))
	defer srv.Close()

	adapter, err := NewSuiAdapter(srv.URL, "0xabc", validSuiSeed(t))
	require.NoError(t, err)

	balance, err := adapter.NativeBalance(context.Background())
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(3).Equal(balance), "expected 3 SUI, got %s", balance)
}

func TestSuiAdapter_SendNative_NoCoins(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct{ Method string }
		_ = json.NewDecoder(r.Body).Decode(&req)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":{"data":[]}}`))
	}))
	defer srv.Close()

	adapter, err := NewSuiAdapter(srv.URL, "0xabc", validSuiSeed(t))
	require.NoError(t, err)

	_, err = adapter.SendNative(context.Background(), "0xto", decimal.NewFromInt(1))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no coin objects")
}

func TestSuiAdapter_SendNative_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Method string `json:"method"`
		}
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &req)

		w.Header().Set("Content-Type", "application/json")
		switch req.Method {
		case "suix_getCoins":
			_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":{"data":[{"coinObjectId":"0xcoin","balance":"5000000000"}]}}`))
		case "unsafe_transferSui":
			_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":{"txBytes":"dHhieXRlcw=="}}`))
		case "sui_executeTransactionBlock":
			_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":{"digest":"digestABC","effects":{"status":{"status":"success"}}}}`))
		default:
			http.Error(w, "unexpected method "+req.Method, http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	adapter, err := NewSuiAdapter(srv.URL, "0xabc", validSuiSeed(t))
	require.NoError(t, err)

	txHash, err := adapter.SendNative(context.Background(), "0xto", decimal.NewFromInt(1))
	require.NoError(t, err)
	assert.Equal(t, "digestABC", txHash)
}
