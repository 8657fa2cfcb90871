package webhook

import (
	"testing"

	"cryptopay/internal/database"

	"github.com/stretchr/testify/assert"
)

func TestReconciler_WithinTolerance(t *testing.T) {
	r := &Reconciler{}

	tests := []struct {
		name        string
		order       *database.Order
		grossAmount int64
		want        bool
	}{
		{"exact match", &database.Order{AmountIDR: 100000, TotalPay: 100000}, 100000, true},
		{"within percent tolerance", &database.Order{AmountIDR: 100000, TotalPay: 200000}, 199000, true},
		{"beyond percent tolerance", &database.Order{AmountIDR: 100000, TotalPay: 200000}, 190000, false},
		{"uses floor when percent tolerance is tiny", &database.Order{AmountIDR: 100000, TotalPay: 10000}, 9100, true},
		{"beyond floor tolerance", &database.Order{AmountIDR: 100000, TotalPay: 10000}, 8900, false},
		{"falls back to amount_idr when total_pay unset", &database.Order{AmountIDR: 100000, TotalPay: 0}, 100000, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, r.withinTolerance(tt.order, tt.grossAmount))
		})
	}
}
