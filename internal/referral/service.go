// Package referral implements the Referral Engine: validating a referee's
// first qualifying purchase and granting the referrer's reward and
// milestone-bonus vouchers.
package referral

import (
	"context"
	"fmt"
	"time"

	"cryptopay/internal/database"
	"cryptopay/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Notifier is the narrow interface onto the chat/email surface. Actual
// delivery is an external collaborator (out of scope here); this package
// only needs to trigger it.
type Notifier interface {
	NotifyReferralReward(ctx context.Context, referrerUserID, voucherCode string) error
}

// Config holds the tunables read from the referral config section.
type Config struct {
	ValidationThreshold int
	RewardValueIDR      int64
	RewardExpiryDays    int
	MilestoneEvery      int
	MilestoneValueIDR   int64
	MilestoneExpiryDays int
}

// Service implements validate/grant over the referral and voucher ledgers.
type Service struct {
	referrals *database.ReferralRepository
	orders    *database.OrderRepository
	vouchers  *database.VoucherRepository
	notifier  Notifier
	cfg       Config
}

// NewService creates a Referral Engine from its collaborators.
func NewService(referrals *database.ReferralRepository, orders *database.OrderRepository, vouchers *database.VoucherRepository, notifier Notifier, cfg Config) *Service {
	if cfg.ValidationThreshold <= 0 {
		cfg.ValidationThreshold = 1
	}
	return &Service{referrals: referrals, orders: orders, vouchers: vouchers, notifier: notifier, cfg: cfg}
}

// Validate implements SPEC §4.7 validate(referee). It is invoked on referee
// order success, on the 10-minute sweep, and on login of a user with a
// pending referral.
func (s *Service) Validate(ctx context.Context, refereeUserID string) error {
	ref, err := s.referrals.GetByRefereeID(ctx, refereeUserID)
	if err != nil {
		if err == database.ErrReferralNotFound {
			return nil
		}
		return fmt.Errorf("referral: get by referee: %w", err)
	}

	if ref.IsValid && ref.RewardGiven {
		return nil
	}

	count, err := s.orders.CountSuccessByUser(ctx, refereeUserID)
	if err != nil {
		return fmt.Errorf("referral: count successful orders: %w", err)
	}
	if count < s.cfg.ValidationThreshold {
		return nil
	}

	// MarkValid's own result is ignored: whether this call or a concurrent
	// one won the transition, grant() is safe to call regardless since it
	// has its own atomic reward_given barrier.
	if _, err := s.referrals.MarkValid(ctx, ref.ID); err != nil {
		return fmt.Errorf("referral: mark valid: %w", err)
	}

	return s.grant(ctx, ref.ID)
}

// SweepPending runs Validate over every not-yet-valid referral, for the
// periodic referral sweep job. Returns the number validated this pass.
func (s *Service) SweepPending(ctx context.Context) (int, error) {
	pending, err := s.referrals.ListPending(ctx)
	if err != nil {
		return 0, fmt.Errorf("referral: list pending: %w", err)
	}

	validated := 0
	for _, ref := range pending {
		before, err := s.referrals.GetByID(ctx, ref.ID)
		if err != nil {
			logger.Error("referral sweep: failed to reload referral", zap.String("referral_id", ref.ID), zap.Error(err))
			continue
		}
		if err := s.Validate(ctx, ref.RefereeID); err != nil {
			logger.Error("referral sweep: validate failed", zap.String("referral_id", ref.ID), zap.Error(err))
			continue
		}
		after, err := s.referrals.GetByID(ctx, ref.ID)
		if err == nil && !before.IsValid && after.IsValid {
			validated++
		}
	}

	return validated, nil
}

// grant implements SPEC §4.7 grant(referral_id). The conditional update on
// reward_given is the single atomic barrier deciding which caller, if any,
// owns issuing the reward.
func (s *Service) grant(ctx context.Context, referralID string) error {
	changed, err := s.referrals.MarkRewardGiven(ctx, referralID)
	if err != nil {
		return fmt.Errorf("referral: mark reward given: %w", err)
	}
	if !changed {
		return nil
	}

	ref, err := s.referrals.GetByID(ctx, referralID)
	if err != nil {
		return fmt.Errorf("referral: reload after grant: %w", err)
	}

	voucher, err := s.issueVoucher(ctx, ref.ReferrerID, s.cfg.RewardValueIDR, s.cfg.RewardExpiryDays)
	if err != nil {
		return fmt.Errorf("referral: issue reward voucher: %w", err)
	}

	if err := s.maybeGrantMilestone(ctx, ref.ReferrerID); err != nil {
		logger.Error("referral: milestone bonus check failed", zap.String("referrer_id", ref.ReferrerID), zap.Error(err))
	}

	if err := s.notifier.NotifyReferralReward(ctx, ref.ReferrerID, voucher.Code); err != nil {
		logger.Error("referral: notify referrer failed", zap.String("referrer_id", ref.ReferrerID), zap.Error(err))
	}

	logger.Info("referral reward granted", zap.String("referral_id", referralID), zap.String("referrer_id", ref.ReferrerID))
	return nil
}

// maybeGrantMilestone issues a bonus voucher when the referrer's valid
// referral count is a positive multiple of cfg.MilestoneEvery.
func (s *Service) maybeGrantMilestone(ctx context.Context, referrerID string) error {
	if s.cfg.MilestoneEvery <= 0 {
		return nil
	}

	count, err := s.referrals.CountValidByReferrer(ctx, referrerID)
	if err != nil {
		return fmt.Errorf("count valid referrals: %w", err)
	}
	if count <= 0 || count%s.cfg.MilestoneEvery != 0 {
		return nil
	}

	voucher, err := s.issueVoucher(ctx, referrerID, s.cfg.MilestoneValueIDR, s.cfg.MilestoneExpiryDays)
	if err != nil {
		return fmt.Errorf("issue milestone voucher: %w", err)
	}

	logger.Info("referral milestone bonus granted", zap.String("referrer_id", referrerID),
		zap.Int("valid_count", count), zap.String("voucher_code", voucher.Code))
	return nil
}

func (s *Service) issueVoucher(ctx context.Context, ownerID string, valueIDR int64, expiryDays int) (*database.Voucher, error) {
	now := time.Now().UTC()
	voucher := &database.Voucher{
		ID:         uuid.New().String(),
		Code:       uuid.New().String()[:10],
		OwnerID:    &ownerID,
		ValueIDR:   valueIDR,
		MinAmount:  0,
		MaxUsage:   1,
		UsageCount: 0,
		Active:     true,
		ExpiresAt:  now.AddDate(0, 0, expiryDays),
		CreatedAt:  now,
	}

	if err := s.vouchers.Create(ctx, voucher); err != nil {
		return nil, err
	}

	return voucher, nil
}
