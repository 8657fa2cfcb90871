// Command referral consumes the "referral_validate" stream and re-checks a
// referee's pending referral every time one of their orders reaches
// SUCCESS. Unlike the payout worker, a failed validation is safe to redeliver
// — validation only reads order history and conditionally grants a voucher,
// so the handler NACKs (returns the error) on failure instead of swallowing it.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cryptopay/internal/bootstrap"
	"cryptopay/internal/queue"
	"cryptopay/internal/referral"
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
		return fmt.Errorf("failed to bootstrap referral worker: %w", err)
	}
	defer app.Close()

	consumerName := fmt.Sprintf("referral-worker-%d", time.Now().Unix())
	if err := app.Queue.DeclareStream(ctx, queue.StreamReferralValidate, queue.GroupReferralWorkers); err != nil {
		return fmt.Errorf("failed to declare referral consumer group: %w", err)
	}

	handler := newReferralHandler(app.Referrals)

	go func() {
		err := app.Queue.Consume(ctx, queue.StreamReferralValidate, queue.GroupReferralWorkers, consumerName, handler.handle)
		if err != nil && err != context.Canceled {
			logger.Error("referral consumer stopped with error", zap.Error(err))
		}
	}()

	logger.Info("referral worker is running, waiting for messages...",
		zap.String("stream", queue.StreamReferralValidate),
		zap.String("group", queue.GroupReferralWorkers),
		zap.String("consumer", consumerName),
	)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	logger.Info("received shutdown signal", zap.String("signal", sig.String()))

	cancel()
	time.Sleep(3 * time.Second)
	logger.Info("referral worker shut down gracefully")

	return nil
}

type referralHandler struct {
	referrals *referral.Service
}

func newReferralHandler(referrals *referral.Service) *referralHandler {
	return &referralHandler{referrals: referrals}
}

func (h *referralHandler) handle(messageID string, data []byte) error {
	ctx := context.Background()

	msg, err := queue.FromJSONReferralValidate(data)
	if err != nil {
		logger.Error("invalid referral message, dropping", zap.String("message_id", messageID), zap.Error(err))
		return nil
	}

	if err := h.referrals.Validate(ctx, msg.RefereeUserID); err != nil {
		logger.Error("referral validation failed, will retry on redelivery",
			zap.String("referee_user_id", msg.RefereeUserID), zap.Error(err))
		return err
	}

	logger.Info("referral validation completed", zap.String("referee_user_id", msg.RefereeUserID))
	return nil
}
