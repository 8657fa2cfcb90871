package pricing

import (
	"context"
	"fmt"

	"cryptopay/internal/database"

	"github.com/shopspring/decimal"
)

// InventoryAvailability is the subset of the Inventory Ledger the Quote
// Service needs: sellable balance for a (chain, symbol) pair.
type InventoryAvailability interface {
	Available(ctx context.Context, chain, symbol string) (decimal.Decimal, error)
}

// PriceReader is the subset of the price cache the Quote Service needs.
type PriceReader interface {
	Get(ctx context.Context, symbol string) (Entry, error)
}

// TokenReader is the subset of the token repository the Quote Service needs.
type TokenReader interface {
	GetNative(ctx context.Context, chain string) (*database.Token, error)
}

// SettingReader is the subset of the setting repository the Quote Service needs.
type SettingReader interface {
	Get(ctx context.Context, key string) (string, error)
}

// InventoryStatus classifies how much headroom a chain's native token has
// against a requested buy.
type InventoryStatus string

const (
	StatusOutOfStock InventoryStatus = "OUT_OF_STOCK"
	StatusLimited    InventoryStatus = "LIMITED"
	StatusAvailable  InventoryStatus = "AVAILABLE"
)

// Quote is the result of quoting a fiat amount against a chain's native token.
type Quote struct {
	Symbol            string
	TokenAmount       decimal.Decimal
	TokenPriceUSD     decimal.Decimal
	UsdIdrRate        decimal.Decimal
	MarkupPercent     decimal.Decimal
	EffectivePriceIdr decimal.Decimal
	InventoryStatus   InventoryStatus
	MaxBuyIdr         int64
}

// FXReader is the subset of the FX refresher the Quote Service needs.
type FXReader interface {
	Rate(ctx context.Context) (decimal.Decimal, error)
}

// QuoteService joins the price cache, FX/markup settings, and inventory
// availability into a buyable-amount estimate.
type QuoteService struct {
	prices    PriceReader
	tokens    TokenReader
	settings  SettingReader
	fx        FXReader
	inventory InventoryAvailability
}

// NewQuoteService creates a quote service from its collaborators.
func NewQuoteService(prices PriceReader, tokens TokenReader, settings SettingReader, fx FXReader, inventory InventoryAvailability) *QuoteService {
	return &QuoteService{prices: prices, tokens: tokens, settings: settings, fx: fx, inventory: inventory}
}

type fanOutResult struct {
	price decimal.Decimal
	rate  decimal.Decimal
	err   error
}

// Quote prices a fiat purchase of amountIdr on chain's native token.
func (s *QuoteService) Quote(ctx context.Context, chain string, amountIdr int64) (*Quote, error) {
	token, err := s.tokens.GetNative(ctx, chain)
	if err != nil {
		return nil, fmt.Errorf("pricing: resolve native token: %w", err)
	}

	priceCh := make(chan fanOutResult, 1)
	rateCh := make(chan fanOutResult, 1)
	markupCh := make(chan fanOutResult, 1)

	go func() {
		entry, err := s.prices.Get(ctx, token.Symbol)
		priceCh <- fanOutResult{price: entry.PriceUSD, err: err}
	}()
	go func() {
		rate, err := s.fx.Rate(ctx)
		rateCh <- fanOutResult{rate: rate, err: err}
	}()
	go func() {
		raw, err := s.settings.Get(ctx, database.SettingDefaultMarkupPercent)
		if err != nil {
			markupCh <- fanOutResult{err: err}
			return
		}
		markup, err := decimal.NewFromString(raw)
		markupCh <- fanOutResult{rate: markup, err: err}
	}()

	priceRes, rateRes, markupRes := <-priceCh, <-rateCh, <-markupCh
	if priceRes.err != nil {
		return nil, fmt.Errorf("pricing: read price: %w", priceRes.err)
	}
	if rateRes.err != nil {
		return nil, fmt.Errorf("pricing: read fx rate: %w", rateRes.err)
	}
	if markupRes.err != nil {
		return nil, fmt.Errorf("pricing: read default markup: %w", markupRes.err)
	}

	priceUSD := priceRes.price
	fxRate := rateRes.rate

	markup := token.MarkupPercent
	if markup.IsZero() {
		markup = markupRes.rate
	}

	if !priceUSD.IsPositive() || !fxRate.IsPositive() {
		return nil, fmt.Errorf("pricing: invalid price/fx inputs for %s", chain)
	}

	amount := decimal.NewFromInt(amountIdr)
	discount := decimal.NewFromInt(1).Sub(markup.Div(decimal.NewFromInt(100)))
	tokenAmount := amount.Div(fxRate).Div(priceUSD).Mul(discount)

	effectivePriceIdr := priceUSD.Mul(fxRate)
	if discount.IsPositive() {
		effectivePriceIdr = effectivePriceIdr.Div(discount)
	}

	available, err := s.inventory.Available(ctx, chain, token.Symbol)
	if err != nil {
		return nil, fmt.Errorf("pricing: read inventory: %w", err)
	}

	status := StatusAvailable
	switch {
	case tokenAmount.GreaterThan(available):
		status = StatusOutOfStock
	case available.LessThan(tokenAmount.Mul(decimal.NewFromInt(2))):
		status = StatusLimited
	}

	maxBuyIdr := available.Mul(priceUSD).Mul(fxRate).Floor().IntPart()

	return &Quote{
		Symbol:            token.Symbol,
		TokenAmount:       tokenAmount,
		TokenPriceUSD:     priceUSD,
		UsdIdrRate:        fxRate,
		MarkupPercent:     markup,
		EffectivePriceIdr: effectivePriceIdr,
		InventoryStatus:   status,
		MaxBuyIdr:         maxBuyIdr,
	}, nil
}
