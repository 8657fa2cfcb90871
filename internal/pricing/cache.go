// Package pricing maintains the live token-to-USD price table (streaming
// feed plus REST fallback, read with stale-while-revalidate semantics) and
// the Quote Service built on top of it.
package pricing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cryptopay/pkg/cache"
	"cryptopay/pkg/logger"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	// SWRWindow is how long a cached price is served without triggering a refresh.
	SWRWindow = 60 * time.Second
	// HardTTL is the age past which a cached price is treated as absent.
	HardTTL = time.Hour
	// refreshLockTTL bounds how long a single-symbol refresh may hold its lock.
	refreshLockTTL = 10 * time.Second
	// missPollInterval/missPollBudget bound how long a total-miss reader polls
	// for a concurrent synchronous fetch to land.
	missPollInterval = 100 * time.Millisecond
	missPollBudget   = 2 * time.Second

	cacheKeyPrefix = "price:"
	lockKeyPrefix  = "price:lock:"
	entryRedisTTL  = 2 * time.Hour
)

// ErrPriceUnavailable is returned when no price could be resolved within budget.
var ErrPriceUnavailable = errors.New("pricing: price unavailable")

// Entry is a cached price observation for one symbol.
type Entry struct {
	PriceUSD  decimal.Decimal `json:"price_usd"`
	Timestamp time.Time       `json:"ts"`
	Source    string          `json:"source"`
}

func (e Entry) age() time.Duration {
	return time.Since(e.Timestamp)
}

// Cache is the SWR-backed price table. Providers are tried in order on
// every refresh (primary first, remaining entries as fallback).
type Cache struct {
	providers []PriceProvider
}

// NewCache creates a price cache backed by the given providers in priority order.
func NewCache(providers ...PriceProvider) *Cache {
	return &Cache{providers: providers}
}

// Upsert writes a fresh observation into the cache, used by both the
// streaming writer and the REST refresher.
func (c *Cache) Upsert(ctx context.Context, symbol string, price decimal.Decimal, source string) error {
	entry := Entry{PriceUSD: price, Timestamp: time.Now().UTC(), Source: source}

	blob, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("pricing: failed to marshal entry: %w", err)
	}

	return cache.Set(ctx, cacheKeyPrefix+symbol, string(blob), entryRedisTTL)
}

func (c *Cache) read(ctx context.Context, symbol string) (Entry, bool, error) {
	raw, err := cache.Get(ctx, cacheKeyPrefix+symbol)
	if err != nil {
		return Entry{}, false, err
	}
	if raw == "" {
		return Entry{}, false, nil
	}

	var entry Entry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		return Entry{}, false, nil
	}

	if entry.age() >= HardTTL {
		return Entry{}, false, nil
	}

	return entry, true, nil
}

// Get returns the current price for symbol, using stale-while-revalidate:
// a fresh entry (age < SWRWindow) returns immediately; a stale-but-present
// entry (age < HardTTL) returns immediately too, with a refresh kicked off
// in the background; a total miss fetches synchronously under a per-symbol
// lock, or polls briefly for a concurrent fetch to land.
func (c *Cache) Get(ctx context.Context, symbol string) (Entry, error) {
	entry, ok, err := c.read(ctx, symbol)
	if err != nil {
		return Entry{}, err
	}

	if ok {
		if entry.age() >= SWRWindow {
			go c.refreshSymbol(context.Background(), symbol)
		}
		return entry, nil
	}

	return c.fetchOnMiss(ctx, symbol)
}

func (c *Cache) fetchOnMiss(ctx context.Context, symbol string) (Entry, error) {
	token, acquired, err := cache.AcquireLock(ctx, lockKeyPrefix+symbol, refreshLockTTL)
	if err != nil {
		return Entry{}, fmt.Errorf("pricing: lock acquisition failed: %w", err)
	}

	if acquired {
		defer cache.ReleaseLock(ctx, lockKeyPrefix+symbol, token)

		price, source, err := c.fetchFromProviders(ctx, symbol)
		if err != nil {
			return Entry{}, fmt.Errorf("%w: %s", ErrPriceUnavailable, err)
		}

		if err := c.Upsert(ctx, symbol, price, source); err != nil {
			logger.Error("failed to persist refreshed price", zap.String("symbol", symbol), zap.Error(err))
		}

		return Entry{PriceUSD: price, Timestamp: time.Now().UTC(), Source: source}, nil
	}

	deadline := time.Now().Add(missPollBudget)
	for time.Now().Before(deadline) {
		time.Sleep(missPollInterval)

		if entry, ok, err := c.read(ctx, symbol); err == nil && ok {
			return entry, nil
		}
	}

	return Entry{}, ErrPriceUnavailable
}

// refreshSymbol attempts a single-symbol synchronous refresh guarded by the
// per-symbol lock; it is a no-op if the lock is already held by another refresh.
func (c *Cache) refreshSymbol(ctx context.Context, symbol string) {
	token, acquired, err := cache.AcquireLock(ctx, lockKeyPrefix+symbol, refreshLockTTL)
	if err != nil || !acquired {
		return
	}
	defer cache.ReleaseLock(ctx, lockKeyPrefix+symbol, token)

	price, source, err := c.fetchFromProviders(ctx, symbol)
	if err != nil {
		logger.Error("background price refresh failed", zap.String("symbol", symbol), zap.Error(err))
		return
	}

	if err := c.Upsert(ctx, symbol, price, source); err != nil {
		logger.Error("failed to persist refreshed price", zap.String("symbol", symbol), zap.Error(err))
	}
}

// fetchFromProviders tries each configured provider in order, returning the
// first success. "rest" is used as a uniform source label for all of them,
// matching this cache's model of "ws" vs "rest" writers.
func (c *Cache) fetchFromProviders(ctx context.Context, symbol string) (decimal.Decimal, string, error) {
	var lastErr error

	for _, p := range c.providers {
		price, err := p.GetPrice(ctx, symbol)
		if err == nil {
			return price, "rest", nil
		}
		lastErr = err
	}

	if lastErr == nil {
		lastErr = errors.New("no providers configured")
	}

	return decimal.Zero, "", lastErr
}
