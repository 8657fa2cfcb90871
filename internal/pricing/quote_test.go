package pricing

import (
	"context"
	"testing"
	"time"

	"cryptopay/internal/database"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePriceReader struct {
	entry Entry
	err   error
}

func (f *fakePriceReader) Get(ctx context.Context, symbol string) (Entry, error) {
	return f.entry, f.err
}

type fakeTokenReader struct {
	token *database.Token
	err   error
}

func (f *fakeTokenReader) GetNative(ctx context.Context, chain string) (*database.Token, error) {
	return f.token, f.err
}

type fakeSettingReader struct {
	values map[string]string
}

func (f *fakeSettingReader) Get(ctx context.Context, key string) (string, error) {
	v, ok := f.values[key]
	if !ok {
		return "", database.ErrSettingNotFound
	}
	return v, nil
}

type fakeFXReader struct {
	rate decimal.Decimal
	err  error
}

func (f *fakeFXReader) Rate(ctx context.Context) (decimal.Decimal, error) {
	return f.rate, f.err
}

type fakeInventory struct {
	available decimal.Decimal
	err       error
}

func (f *fakeInventory) Available(ctx context.Context, chain, symbol string) (decimal.Decimal, error) {
	return f.available, f.err
}

func newTestQuoteService(markup, fxRate, defaultMarkup, price, available string) *QuoteService {
	token := &database.Token{
		Chain: "bsc", Symbol: "BNB", IsNative: true,
		MarkupPercent: decimal.RequireFromString(markup),
	}

	return NewQuoteService(
		&fakePriceReader{entry: Entry{PriceUSD: decimal.RequireFromString(price), Timestamp: time.Now(), Source: "rest"}},
		&fakeTokenReader{token: token},
		&fakeSettingReader{values: map[string]string{
			database.SettingFxRateUSDIDR:         fxRate,
			database.SettingDefaultMarkupPercent: defaultMarkup,
		}},
		&fakeFXReader{rate: decimal.RequireFromString(fxRate)},
		&fakeInventory{available: decimal.RequireFromString(available)},
	)
}

func TestQuoteService_Quote_AvailableInventory(t *testing.T) {
	svc := newTestQuoteService("5", "15800", "2", "650.00", "10")

	q, err := svc.Quote(context.Background(), "bsc", 100000)
	require.NoError(t, err)

	assert.Equal(t, "BNB", q.Symbol)
	assert.Equal(t, StatusAvailable, q.InventoryStatus)
	assert.True(t, q.TokenAmount.IsPositive())
	assert.True(t, q.TokenAmount.LessThan(decimal.NewFromInt(1)))
}

func TestQuoteService_Quote_OutOfStock(t *testing.T) {
	svc := newTestQuoteService("5", "15800", "2", "650.00", "0.0001")

	q, err := svc.Quote(context.Background(), "bsc", 100000)
	require.NoError(t, err)

	assert.Equal(t, StatusOutOfStock, q.InventoryStatus)
}

func TestQuoteService_Quote_Limited(t *testing.T) {
	svc := newTestQuoteService("5", "15800", "2", "650.00", "0.01")

	q, err := svc.Quote(context.Background(), "bsc", 100000)
	require.NoError(t, err)

	assert.Equal(t, StatusLimited, q.InventoryStatus)
}

func TestQuoteService_Quote_FallsBackToDefaultMarkup(t *testing.T) {
	svc := newTestQuoteService("0", "15800", "3", "650.00", "10")

	q, err := svc.Quote(context.Background(), "bsc", 100000)
	require.NoError(t, err)

	assert.True(t, q.MarkupPercent.Equal(decimal.NewFromInt(3)))
}

func TestQuoteService_Quote_InvalidPrice(t *testing.T) {
	svc := newTestQuoteService("5", "15800", "2", "0", "10")

	_, err := svc.Quote(context.Background(), "bsc", 100000)
	assert.Error(t, err)
}
