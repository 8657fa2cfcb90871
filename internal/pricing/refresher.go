package pricing

import (
	"context"
	"time"

	"cryptopay/pkg/logger"

	"go.uber.org/zap"
)

// RestRefresher periodically sweeps every tracked symbol through the
// cache's provider chain and upserts the result with source "rest",
// independent of whether the streaming writer is healthy.
type RestRefresher struct {
	cache    *Cache
	symbols  []string
	interval time.Duration
}

// NewRestRefresher creates a REST refresher over the given tracked symbols.
func NewRestRefresher(cache *Cache, symbols []string, interval time.Duration) *RestRefresher {
	if interval <= 0 {
		interval = 60 * time.Second
	}
	return &RestRefresher{cache: cache, symbols: symbols, interval: interval}
}

// Run sweeps every symbol on a fixed interval until ctx is cancelled.
func (r *RestRefresher) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.sweep(ctx)
		}
	}
}

func (r *RestRefresher) sweep(ctx context.Context) {
	for _, symbol := range r.symbols {
		price, source, err := r.cache.fetchFromProviders(ctx, symbol)
		if err != nil {
			logger.Error("rest price refresh failed", zap.String("symbol", symbol), zap.Error(err))
			continue
		}

		if err := r.cache.Upsert(ctx, symbol, price, source); err != nil {
			logger.Error("failed to persist rest-refreshed price", zap.String("symbol", symbol), zap.Error(err))
		}
	}
}
