package pricing

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"cryptopay/pkg/logger"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// PriceProvider fetches the current USD spot price for a token symbol.
type PriceProvider interface {
	GetPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
}

type coinbase struct {
	httpClient *http.Client
	baseURL    string
}

type coingecko struct {
	httpClient *http.Client
	baseURL    string
	ids        map[string]string
}

type bitstamp struct {
	httpClient *http.Client
	baseURL    string
}

const (
	coinbaseBaseURL  = "https://api.coinbase.com"
	coingeckoBaseURL = "https://api.coingecko.com"
	bitstampBaseURL  = "https://www.bitstamp.net"
)

type coinbasePriceResponse struct {
	Data struct {
		Amount string `json:"amount"`
	} `json:"data"`
}

type coingeckoPriceResponse map[string]map[string]float64

type bitstampPriceResponse struct {
	Last string `json:"last"`
}

// NewProvider creates a price provider instance by name. Supported names:
// "coinbase", "coingecko", "bitstamp". An empty baseURL selects the
// production endpoint; a nil httpClient gets a default 10s-timeout client.
// coinGeckoIDs maps a tracked symbol (e.g. "BNB") to its CoinGecko coin id
// (e.g. "binancecoin") and is only consulted by the coingecko provider.
func NewProvider(name, baseURL string, httpClient *http.Client, coinGeckoIDs map[string]string) (PriceProvider, error) {
	name = strings.ToLower(name)

	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}

	if baseURL == "" {
		switch name {
		case "coinbase":
			baseURL = coinbaseBaseURL
		case "coingecko":
			baseURL = coingeckoBaseURL
		case "bitstamp":
			baseURL = bitstampBaseURL
		default:
			return nil, fmt.Errorf("unknown price provider: %s (supported: coinbase, coingecko, bitstamp)", name)
		}
	}

	switch name {
	case "coinbase":
		return &coinbase{httpClient: httpClient, baseURL: baseURL}, nil
	case "coingecko":
		return &coingecko{httpClient: httpClient, baseURL: baseURL, ids: coinGeckoIDs}, nil
	case "bitstamp":
		return &bitstamp{httpClient: httpClient, baseURL: baseURL}, nil
	default:
		return nil, fmt.Errorf("unknown price provider: %s (supported: coinbase, coingecko, bitstamp)", name)
	}
}

func fetchJSON(ctx context.Context, client *http.Client, url string, target interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		logger.Error("failed to fetch price data", zap.String("url", url), zap.Error(err))
		return fmt.Errorf("failed to fetch data: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		logger.Error("price API returned error", zap.String("url", url), zap.Int("status", resp.StatusCode))
		return fmt.Errorf("price API error: status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		logger.Error("failed to decode price response", zap.String("url", url), zap.Error(err))
		return fmt.Errorf("failed to parse response: %w", err)
	}

	return nil
}

// GetPrice fetches the USD spot price of symbol from Coinbase.
func (c *coinbase) GetPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	symbol = strings.ToUpper(symbol)
	apiURL := fmt.Sprintf("%s/v2/prices/%s-USD/spot", c.baseURL, symbol)

	var response coinbasePriceResponse
	if err := fetchJSON(ctx, c.httpClient, apiURL, &response); err != nil {
		return decimal.Zero, fmt.Errorf("coinbase: %w", err)
	}

	price, err := decimal.NewFromString(response.Data.Amount)
	if err != nil {
		return decimal.Zero, fmt.Errorf("coinbase: invalid price format: %w", err)
	}

	if !price.IsPositive() {
		return decimal.Zero, fmt.Errorf("coinbase: invalid price value: %s", price)
	}

	return price, nil
}

// GetPrice fetches the USD spot price of symbol from CoinGecko, using the
// configured coin-id mapping.
func (c *coingecko) GetPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	id, ok := c.ids[strings.ToUpper(symbol)]
	if !ok {
		return decimal.Zero, fmt.Errorf("coingecko: no coin id configured for symbol %s", symbol)
	}

	apiURL := fmt.Sprintf("%s/api/v3/simple/price?ids=%s&vs_currencies=usd", c.baseURL, id)

	var response coingeckoPriceResponse
	if err := fetchJSON(ctx, c.httpClient, apiURL, &response); err != nil {
		return decimal.Zero, fmt.Errorf("coingecko: %w", err)
	}

	data, ok := response[id]
	if !ok {
		return decimal.Zero, fmt.Errorf("coingecko: coin id %s not found in response", id)
	}

	usd, ok := data["usd"]
	if !ok || usd <= 0 {
		return decimal.Zero, fmt.Errorf("coingecko: invalid price for %s", id)
	}

	return decimal.NewFromFloat(usd), nil
}

// GetPrice fetches the USD spot price of symbol from Bitstamp.
func (c *bitstamp) GetPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	pair := strings.ToLower(symbol) + "usd"
	apiURL := fmt.Sprintf("%s/api/v2/ticker/%s", c.baseURL, pair)

	var response bitstampPriceResponse
	if err := fetchJSON(ctx, c.httpClient, apiURL, &response); err != nil {
		return decimal.Zero, fmt.Errorf("bitstamp: %w", err)
	}

	price, err := decimal.NewFromString(response.Last)
	if err != nil {
		return decimal.Zero, fmt.Errorf("bitstamp: invalid price format: %w", err)
	}

	if !price.IsPositive() {
		return decimal.Zero, fmt.Errorf("bitstamp: invalid price value: %s", price)
	}

	return price, nil
}
