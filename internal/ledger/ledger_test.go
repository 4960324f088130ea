package ledger

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SwapSentinel/internal/model"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestNew_RejectsInvalidShare(t *testing.T) {
	_, err := New(decimal.Zero, d("50"))
	assert.ErrorIs(t, err, model.ErrConfigurationInvalid)

	_, err = New(d("1.5"), d("50"))
	assert.ErrorIs(t, err, model.ErrConfigurationInvalid)

	_, err = New(d("0.6"), d("-1"))
	assert.ErrorIs(t, err, model.ErrConfigurationInvalid)
}

func TestCredit_AddsToTotalAndShareToPending(t *testing.T) {
	l, err := New(d("0.6"), d("50"))
	require.NoError(t, err)

	for _, amt := range []string{"0.5", "1.25", "0.01", "3"} {
		before := l.Total()
		require.NoError(t, l.Credit(d(amt)))
		assert.True(t, l.Total().Equal(before.Add(d(amt))), "total after %s", amt)
	}
	// 4.76 * 0.6
	assert.True(t, l.Pending().Equal(d("2.856")), "pending %s", l.Pending())
	assert.Equal(t, 4, l.Snapshot().Credits)
}

func TestCredit_RejectsNonPositive(t *testing.T) {
	l, err := New(d("0.6"), d("50"))
	require.NoError(t, err)

	assert.ErrorIs(t, l.Credit(decimal.Zero), model.ErrInvalidAmount)
	assert.ErrorIs(t, l.Credit(d("-0.5")), model.ErrInvalidAmount)
	assert.True(t, l.Total().IsZero())
	assert.True(t, l.Pending().IsZero())
}

func TestShouldDispatch_Threshold(t *testing.T) {
	l, err := New(d("0.6"), d("50"))
	require.NoError(t, err)

	// Ten trades of $0.50 leave $3.00 pending.
	for i := 0; i < 10; i++ {
		require.NoError(t, l.Credit(d("0.5")))
	}
	assert.True(t, l.Pending().Equal(d("3")))
	assert.False(t, l.ShouldDispatch())

	// Pending reaches exactly $50 after 167 trades ($50.10).
	for i := 0; i < 157; i++ {
		require.NoError(t, l.Credit(d("0.5")))
	}
	assert.True(t, l.ShouldDispatch())
}

func TestClear_ResetsPendingOnly(t *testing.T) {
	l, err := New(d("0.5"), d("1"))
	require.NoError(t, err)
	require.NoError(t, l.Credit(d("4")))

	l.Clear()

	snap := l.Snapshot()
	assert.True(t, snap.PendingDistributionAmount.IsZero())
	assert.True(t, snap.TotalRealizedProfit.Equal(d("4")))
	assert.Equal(t, 1, snap.Dispatches)
	assert.False(t, snap.LastClearedAt.IsZero())
}
