package scheduler

import (
	"context"
	"fmt"
	"time"

	"cryptopay/internal/inventory"
	"cryptopay/internal/order"
	"cryptopay/internal/queue"
	"cryptopay/internal/referral"
	"cryptopay/internal/voucher"
	"cryptopay/pkg/logger"

	"go.uber.org/zap"
)

const (
	orderExpiryInterval    = 5 * time.Minute
	referralSweepInterval  = 10 * time.Minute
	voucherExpiryInterval  = time.Hour
	unqueuedPayoutInterval = 5 * time.Minute
	inventorySyncInterval  = 60 * time.Second
	queueBacklogInterval   = 2 * time.Minute
	payoutBacklogWarnLimit = 50
)

// PayoutQueue is the subset of the Redis Streams queue the backlog-check job
// needs.
type PayoutQueue interface {
	PendingCount(ctx context.Context, stream, group string) (int64, error)
}

// InventoryTarget pairs a configured chain with the native-asset symbol
// the inventory ledger tracks for it.
type InventoryTarget struct {
	Chain  string
	Symbol string
}

// Deps wires the services the default job table needs. Price refresh is
// deliberately excluded here: it already runs its own self-contained
// ticker loop (internal/pricing.RestRefresher) and is started alongside
// the scheduler, not through it.
type Deps struct {
	Orders    *order.Service
	Referrals *referral.Service
	Vouchers  *voucher.Service
	Inventory *inventory.Service
	Queue     PayoutQueue
	Targets   []InventoryTarget
}

// BuildJobs assembles the recurring job table described in the cadence
// table: order expiry, the unqueued-payout sweep, referral validation,
// voucher expiry, and one inventory sync job per configured chain/symbol.
func BuildJobs(d Deps) []Job {
	jobs := []Job{
		{
			Name:     "order_expiry_sweep",
			Interval: orderExpiryInterval,
			Run: func(ctx context.Context) error {
				expired, err := d.Orders.ExpireSweep(ctx)
				if err != nil {
					return err
				}
				if expired > 0 {
					logger.Info("expired stale orders", zap.Int("count", expired))
				}
				return nil
			},
		},
		{
			Name:     "unqueued_payout_sweep",
			Interval: unqueuedPayoutInterval,
			Run: func(ctx context.Context) error {
				requeued, err := d.Orders.RequeueUnqueuedPayouts(ctx)
				if err != nil {
					return err
				}
				if requeued > 0 {
					logger.Info("requeued unqueued payouts", zap.Int("count", requeued))
				}
				return nil
			},
		},
		{
			Name:     "referral_sweep",
			Interval: referralSweepInterval,
			Run: func(ctx context.Context) error {
				validated, err := d.Referrals.SweepPending(ctx)
				if err != nil {
					return err
				}
				if validated > 0 {
					logger.Info("validated pending referrals", zap.Int("count", validated))
				}
				return nil
			},
		},
		{
			Name:     "voucher_expiry_sweep",
			Interval: voucherExpiryInterval,
			Run: func(ctx context.Context) error {
				deactivated, err := d.Vouchers.ExpireSweep(ctx)
				if err != nil {
					return err
				}
				if deactivated > 0 {
					logger.Info("deactivated expired vouchers", zap.Int64("count", deactivated))
				}
				return nil
			},
		},
	}

	if d.Queue != nil {
		jobs = append(jobs, Job{
			Name:     "payout_queue_backlog_check",
			Interval: queueBacklogInterval,
			Run: func(ctx context.Context) error {
				pending, err := d.Queue.PendingCount(ctx, queue.StreamPayout, queue.GroupPayoutWorkers)
				if err != nil {
					return err
				}
				if pending > payoutBacklogWarnLimit {
					logger.Warn("payout queue backlog above threshold",
						zap.Int64("pending", pending), zap.Int("limit", payoutBacklogWarnLimit))
				}
				return nil
			},
		})
	}

	if d.Inventory != nil {
		for _, t := range d.Targets {
			target := t
			jobs = append(jobs, Job{
				Name:     fmt.Sprintf("inventory_sync:%s:%s", target.Chain, target.Symbol),
				Interval: inventorySyncInterval,
				Run: func(ctx context.Context) error {
					return d.Inventory.Sync(ctx, target.Chain, target.Symbol)
				},
			})
		}
	}

	return jobs
}
