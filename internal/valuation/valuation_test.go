package valuation

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SwapSentinel/internal/model"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestNetValue(t *testing.T) {
	q := &model.Quote{InputAmount: d("0.1"), ExpectedOutputAmount: d("10.05")}

	// 0.1 SOL at $100 costs $10.00, 10.05 USDC at $1 is worth $10.05.
	net, err := NetValue(q, d("100"), d("1"))
	require.NoError(t, err)
	assert.True(t, net.Equal(d("0.05")), "got %s", net)

	_, err = NetValue(q, decimal.Zero, d("1"))
	assert.Error(t, err)

	_, err = NetValue(nil, d("1"), d("1"))
	assert.Error(t, err)
}

func TestImpactExceeded(t *testing.T) {
	q := &model.Quote{PriceImpact: d("0.02")}
	assert.True(t, ImpactExceeded(q, d("0.01")))
	assert.False(t, ImpactExceeded(q, d("0.02")))
	assert.False(t, ImpactExceeded(q, decimal.Zero))
}

func TestQuantityFor(t *testing.T) {
	tests := []struct {
		name   string
		target string
		rate   string
		held   string
		want   string
	}{
		{"covers", "20", "2", "50", "10"},
		{"capped at held", "20", "2", "4", "4"},
		{"zero rate", "20", "0", "4", "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := QuantityFor(d(tt.target), d(tt.rate), d(tt.held))
			assert.True(t, got.Equal(d(tt.want)), "got %s", got)
		})
	}
}
