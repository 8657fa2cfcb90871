// Command scheduler runs the recurring background jobs (order expiry,
// the unqueued-payout sweep, referral validation, voucher expiry, and
// inventory sync) for the lifetime of the process.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cryptopay/internal/bootstrap"
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
		return fmt.Errorf("failed to bootstrap scheduler worker: %w", err)
	}
	defer app.Close()

	go func() {
		if err := app.Scheduler.Run(ctx); err != nil {
			logger.Error("scheduler stopped with error", zap.Error(err))
		}
	}()

	logger.Info("scheduler worker is running",
		zap.Int("active_chains", app.ActiveChainCount),
		zap.Int("inventory_targets", len(app.InventoryTargets)),
	)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	logger.Info("received shutdown signal", zap.String("signal", sig.String()))

	cancel()
	time.Sleep(2 * time.Second)
	logger.Info("scheduler worker shut down gracefully")

	return nil
}
