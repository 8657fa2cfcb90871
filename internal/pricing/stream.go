package pricing

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"cryptopay/pkg/logger"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	watchdogIdleTimeout = 60 * time.Second
	maxEventLag         = 5 * time.Second
	backoffBase         = 5 * time.Second
	backoffCap          = 5 * time.Minute
)

// miniTicker is one market-data event on the tracked-symbol stream.
type miniTicker struct {
	Symbol    string    `json:"s"`
	Price     string    `json:"c"`
	EventTime time.Time `json:"E"`
}

// StreamMetrics is a rolling 60-second window of streaming-writer activity.
type StreamMetrics struct {
	Updates int64
	Drops   int64
	Errors  int64
	MaxLag  time.Duration
}

// StreamWriter maintains a persistent websocket connection to a market data
// stream and upserts the cache for every tracked native symbol it observes.
type StreamWriter struct {
	url     string
	cache   *Cache
	symbols map[string]bool

	updates int64
	drops   int64
	errs    int64
	maxLag  int64 // time.Duration, accessed atomically
}

// NewStreamWriter creates a streaming writer against url, tracking only the
// given symbols (case-insensitive; matched against each message's "<SYMBOL>USDT" pair).
func NewStreamWriter(url string, cache *Cache, trackedSymbols []string) *StreamWriter {
	symbols := make(map[string]bool, len(trackedSymbols))
	for _, s := range trackedSymbols {
		symbols[strings.ToUpper(s)] = true
	}
	return &StreamWriter{url: url, cache: cache, symbols: symbols}
}

// Run connects and reconnects with exponential backoff until ctx is cancelled.
func (w *StreamWriter) Run(ctx context.Context) {
	backoff := backoffBase

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := w.runOnce(ctx); err != nil {
			logger.Error("price stream connection closed", zap.Error(err), zap.Duration("retry_in", backoff))
			atomic.AddInt64(&w.errs, 1)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > backoffCap {
			backoff = backoffCap
		}
	}
}

func (w *StreamWriter) runOnce(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, w.url, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	logger.Info("price stream connected", zap.String("url", w.url))

	done := make(chan struct{})
	defer close(done)

	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		if err := conn.SetReadDeadline(time.Now().Add(watchdogIdleTimeout)); err != nil {
			return fmt.Errorf("set read deadline: %w", err)
		}

		_, raw, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}

		w.handleMessage(ctx, raw)
	}
}

func (w *StreamWriter) handleMessage(ctx context.Context, raw []byte) {
	var tick miniTicker
	if err := json.Unmarshal(raw, &tick); err != nil {
		atomic.AddInt64(&w.errs, 1)
		return
	}

	symbol, ok := w.matchTrackedSymbol(tick.Symbol)
	if !ok {
		return
	}

	lag := time.Since(tick.EventTime)
	if lag > maxEventLag {
		atomic.AddInt64(&w.drops, 1)
		return
	}
	w.observeLag(lag)

	price, err := decimal.NewFromString(tick.Price)
	if err != nil || !price.IsPositive() {
		atomic.AddInt64(&w.errs, 1)
		return
	}

	if err := w.cache.Upsert(ctx, symbol, price, "ws"); err != nil {
		logger.Error("failed to upsert streamed price", zap.String("symbol", symbol), zap.Error(err))
		atomic.AddInt64(&w.errs, 1)
		return
	}

	atomic.AddInt64(&w.updates, 1)
}

// matchTrackedSymbol reports whether pair (e.g. "BNBUSDT") is a tracked
// native symbol's USDT pair, returning the bare symbol if so.
func (w *StreamWriter) matchTrackedSymbol(pair string) (string, bool) {
	pair = strings.ToUpper(pair)
	symbol, ok := strings.CutSuffix(pair, "USDT")
	if !ok {
		return "", false
	}
	if !w.symbols[symbol] {
		return "", false
	}
	return symbol, true
}

func (w *StreamWriter) observeLag(lag time.Duration) {
	for {
		cur := atomic.LoadInt64(&w.maxLag)
		if int64(lag) <= cur {
			return
		}
		if atomic.CompareAndSwapInt64(&w.maxLag, cur, int64(lag)) {
			return
		}
	}
}

// Metrics returns a snapshot of the rolling counters and resets them,
// matching the 60-second metrics window this writer is sampled on.
func (w *StreamWriter) Metrics() StreamMetrics {
	return StreamMetrics{
		Updates: atomic.SwapInt64(&w.updates, 0),
		Drops:   atomic.SwapInt64(&w.drops, 0),
		Errors:  atomic.SwapInt64(&w.errs, 0),
		MaxLag:  time.Duration(atomic.SwapInt64(&w.maxLag, 0)),
	}
}
