// Command payout consumes the "payout" stream and runs the payout executor
// for each order it names. Every message is attempted exactly once — a
// blockchain send is never automatically retried: a safe failure leaves the
// order FAILED and an ambiguous one leaves it in PROCESSING for manual
// review, rather than being redelivered by this worker.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cryptopay/internal/bootstrap"
	"cryptopay/internal/order"
	"cryptopay/internal/queue"
	"cryptopay/pkg/logger"

	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	if err := logger.Init(logger.GetEnv()); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := bootstrap.New(ctx)
	if err != nil {
		return fmt.Errorf("failed to bootstrap payout worker: %w", err)
	}
	defer app.Close()

	consumerName := fmt.Sprintf("payout-worker-%d", time.Now().Unix())
	if err := app.Queue.DeclareStream(ctx, queue.StreamPayout, queue.GroupPayoutWorkers); err != nil {
		return fmt.Errorf("failed to declare payout consumer group: %w", err)
	}

	handler := newPayoutHandler(app.Orders)

	go func() {
		err := app.Queue.Consume(ctx, queue.StreamPayout, queue.GroupPayoutWorkers, consumerName, handler.handle)
		if err != nil && err != context.Canceled {
			logger.Error("payout consumer stopped with error", zap.Error(err))
		}
	}()

	logger.Info("payout worker is running, waiting for messages...",
		zap.String("stream", queue.StreamPayout),
		zap.String("group", queue.GroupPayoutWorkers),
		zap.String("consumer", consumerName),
	)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	logger.Info("received shutdown signal", zap.String("signal", sig.String()))

	cancel()
	time.Sleep(3 * time.Second)
	logger.Info("payout worker shut down gracefully")

	return nil
}

type payoutHandler struct {
	orders *order.Service
}

func newPayoutHandler(orders *order.Service) *payoutHandler {
	return &payoutHandler{orders: orders}
}

// handle runs the payout executor for a single message. It always ACKs
// (returns nil) once ProcessOrder has run, ambiguous or not: a redelivery
// would risk a second on-chain send, so the stream's job is done the
// moment the attempt has been made, not the moment it has succeeded.
func (h *payoutHandler) handle(messageID string, data []byte) error {
	ctx := context.Background()

	msg, err := queue.FromJSONPayout(data)
	if err != nil {
		logger.Error("invalid payout message, dropping", zap.String("message_id", messageID), zap.Error(err))
		return nil
	}

	err = h.orders.ProcessOrder(ctx, msg.OrderID)
	switch {
	case errors.Is(err, order.ErrPayoutAmbiguous):
		logger.Error("payout outcome ambiguous, order held for manual review",
			logger.OrderField(msg.OrderID), zap.Error(err))
	case err != nil:
		logger.Error("payout attempt failed", logger.OrderField(msg.OrderID), zap.Error(err))
	default:
		logger.Info("payout attempt completed", logger.OrderField(msg.OrderID))
	}

	return nil
}
