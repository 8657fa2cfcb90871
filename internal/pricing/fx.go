package pricing

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"cryptopay/internal/database"
	"cryptopay/pkg/logger"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// fxFreshness is how long a stored USD/IDR rate is trusted before the
// Quote Service's FX read path tries to refresh it from the public
// endpoint (SPEC §4.1).
const fxFreshness = 24 * time.Hour

const fxBaseURL = "https://api.exchangerate-api.com"

type fxRateResponse struct {
	Rates map[string]float64 `json:"rates"`
}

// FXProvider fetches a spot USD->IDR rate from a public source.
type FXProvider interface {
	GetUSDIDR(ctx context.Context) (decimal.Decimal, error)
}

type httpFXProvider struct {
	httpClient *http.Client
	baseURL    string
}

// NewFXProvider builds the default USD/IDR rate provider. An empty baseURL
// selects the production endpoint; a nil httpClient gets a default
// 5s-timeout client (the price provider's default client uses 10s).
func NewFXProvider(baseURL string, httpClient *http.Client) FXProvider {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Second}
	}
	if baseURL == "" {
		baseURL = fxBaseURL
	}
	return &httpFXProvider{httpClient: httpClient, baseURL: baseURL}
}

func (p *httpFXProvider) GetUSDIDR(ctx context.Context) (decimal.Decimal, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/v4/latest/USD", nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("fx: build request: %w", err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return decimal.Zero, fmt.Errorf("fx: fetch rate: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, fmt.Errorf("fx: unexpected status %d", resp.StatusCode)
	}

	var out fxRateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return decimal.Zero, fmt.Errorf("fx: decode response: %w", err)
	}

	idr, ok := out.Rates["IDR"]
	if !ok {
		return decimal.Zero, fmt.Errorf("fx: response missing IDR rate")
	}

	return decimal.NewFromFloat(idr), nil
}

// SettingStore is the subset of the setting repository the FX refresher needs.
type SettingStore interface {
	GetEntry(ctx context.Context, key string) (*database.Setting, error)
	Upsert(ctx context.Context, key, value string) error
}

// FXRefresher keeps the stored USD/IDR rate (SPEC §3 Setting, §4.1) fresh
// on demand: a reader asks for the rate, and only pays the network fetch
// when the stored value has aged past fxFreshness.
type FXRefresher struct {
	provider FXProvider
	settings SettingStore
}

// NewFXRefresher creates a refresher from its collaborators.
func NewFXRefresher(provider FXProvider, settings SettingStore) *FXRefresher {
	return &FXRefresher{provider: provider, settings: settings}
}

// Rate returns the current USD/IDR rate, refreshing it from the public
// endpoint first if the stored value is missing or older than 24h. A
// refresh failure falls back to the stored value rather than failing the
// read outright; a total miss (never set, refresh also failing) propagates
// the error.
func (f *FXRefresher) Rate(ctx context.Context) (decimal.Decimal, error) {
	entry, err := f.settings.GetEntry(ctx, database.SettingFxRateUSDIDR)
	stale := err != nil || time.Since(entry.UpdatedAt) > fxFreshness

	if !stale {
		return decimal.NewFromString(entry.Value)
	}

	fresh, fetchErr := f.provider.GetUSDIDR(ctx)
	if fetchErr != nil {
		if entry != nil {
			logger.Warn("fx rate refresh failed, serving stale stored rate",
				zap.Error(fetchErr), zap.Time("stored_at", entry.UpdatedAt))
			return decimal.NewFromString(entry.Value)
		}
		return decimal.Zero, fmt.Errorf("fx: no stored rate and refresh failed: %w", fetchErr)
	}

	if upsertErr := f.settings.Upsert(ctx, database.SettingFxRateUSDIDR, fresh.String()); upsertErr != nil {
		logger.Warn("fx rate refreshed but failed to persist", zap.Error(upsertErr))
	}

	return fresh, nil
}
