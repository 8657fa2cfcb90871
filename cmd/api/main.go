// Command api wires every domain service and runs the price refresh loop
// feeding the quote cache these services read from. The recurring job
// scheduler runs as its own process (cmd/worker/scheduler) so a deploy
// that scales this process to N replicas doesn't run each job N times.
// HTTP routing, the chat-bot messaging surface, and email OTP delivery are
// external collaborators this process does not implement — they would
// consume the services wired in internal/bootstrap through the narrow
// interfaces each package already exposes.
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
		return fmt.Errorf("failed to bootstrap api process: %w", err)
	}
	defer app.Close()

	go app.RunPriceRefresher(ctx)
	go app.RunStreamWriter(ctx)

	logger.Info("api process started",
		zap.Int("active_chains", app.ActiveChainCount),
		zap.Int("inventory_targets", len(app.InventoryTargets)),
	)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	logger.Info("received shutdown signal", zap.String("signal", sig.String()))

	cancel()
	time.Sleep(2 * time.Second)
	logger.Info("api process shut down gracefully")

	return nil
}
