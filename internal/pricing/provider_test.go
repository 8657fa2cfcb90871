package pricing

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"cryptopay/pkg/logger"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	_ = logger.Init("development")
}

func TestNewProvider(t *testing.T) {
	tests := []struct {
		name        string
		provider    string
		expectError bool
	}{
		{"coinbase lowercase", "coinbase", false},
		{"coingecko mixed case", "CoinGecko", false},
		{"bitstamp", "bitstamp", false},
		{"unknown provider", "unknown", true},
		{"empty string", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider, err := NewProvider(tt.provider, "", nil, nil)
			if tt.expectError {
				assert.Error(t, err)
				assert.Nil(t, provider)
			} else {
				assert.NoError(t, err)
				assert.NotNil(t, provider)
			}
		})
	}
}

func TestCoinbase_GetPrice_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/prices/BNB-USD/spot", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(coinbasePriceResponse{Data: struct {
			Amount string `json:"amount"`
		}{Amount: "650.00"}})
	}))
	defer server.Close()

	provider, err := NewProvider("coinbase", server.URL, server.Client(), nil)
	require.NoError(t, err)

	price, err := provider.GetPrice(context.Background(), "bnb")
	require.NoError(t, err)
	assert.True(t, decimal.NewFromFloat(650.00).Equal(price))
}

func TestCoinbase_GetPrice_InvalidValues(t *testing.T) {
	tests := []struct {
		name   string
		amount string
	}{
		{"zero", "0"},
		{"negative", "-10"},
		{"not a number", "abc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				json.NewEncoder(w).Encode(coinbasePriceResponse{Data: struct {
					Amount string `json:"amount"`
				}{Amount: tt.amount}})
			}))
			defer server.Close()

			provider, err := NewProvider("coinbase", server.URL, server.Client(), nil)
			require.NoError(t, err)

			_, err = provider.GetPrice(context.Background(), "bnb")
			assert.Error(t, err)
		})
	}
}

func TestCoingecko_GetPrice_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "binancecoin", r.URL.Query().Get("ids"))
		json.NewEncoder(w).Encode(coingeckoPriceResponse{"binancecoin": {"usd": 651.25}})
	}))
	defer server.Close()

	provider, err := NewProvider("coingecko", server.URL, server.Client(), map[string]string{"BNB": "binancecoin"})
	require.NoError(t, err)

	price, err := provider.GetPrice(context.Background(), "BNB")
	require.NoError(t, err)
	assert.True(t, decimal.NewFromFloat(651.25).Equal(price))
}

func TestCoingecko_GetPrice_UnmappedSymbol(t *testing.T) {
	provider, err := NewProvider("coingecko", "http://unused", nil, nil)
	require.NoError(t, err)

	_, err = provider.GetPrice(context.Background(), "SOL")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "no coin id configured")
}

func TestBitstamp_GetPrice_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v2/ticker/bnbusd", r.URL.Path)
		json.NewEncoder(w).Encode(bitstampPriceResponse{Last: "649.80"})
	}))
	defer server.Close()

	provider, err := NewProvider("bitstamp", server.URL, server.Client(), nil)
	require.NoError(t, err)

	price, err := provider.GetPrice(context.Background(), "bnb")
	require.NoError(t, err)
	assert.True(t, decimal.NewFromFloat(649.80).Equal(price))
}

func TestFetchJSON_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	var result map[string]string
	err := fetchJSON(context.Background(), server.Client(), server.URL, &result)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
}
