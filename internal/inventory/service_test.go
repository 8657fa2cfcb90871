package inventory

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

type fakeChainBalanceReader struct {
	balance decimal.Decimal
	err     error
}

func (f *fakeChainBalanceReader) NativeBalance(ctx context.Context, chainSlug string) (decimal.Decimal, error) {
	return f.balance, f.err
}

func TestService_Reserve_RejectsNonPositiveAmount(t *testing.T) {
	svc := NewService(nil, nil)

	err := svc.Reserve(context.Background(), nil, "bsc", "BNB", decimal.Zero)
	assert.Error(t, err)

	err = svc.Reserve(context.Background(), nil, "bsc", "BNB", decimal.NewFromInt(-1))
	assert.Error(t, err)
}

func TestService_Release_ZeroAmountIsNoOp(t *testing.T) {
	svc := NewService(nil, nil)

	err := svc.Release(context.Background(), "bsc", "BNB", decimal.Zero)
	assert.NoError(t, err)
}

func TestService_Sync_NoChainReaderConfigured(t *testing.T) {
	svc := NewService(nil, nil)

	err := svc.Sync(context.Background(), "bsc", "BNB")
	assert.Error(t, err)
}
