package ledger

import (
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"SwapSentinel/internal/model"
)

// Ledger accumulates realized profit and tracks the share earmarked for payout.
// It lives for the lifetime of the process and starts at zero.
type Ledger struct {
	mu        sync.Mutex
	state     model.LedgerSnapshot
	share     decimal.Decimal
	threshold decimal.Decimal
	now       func() time.Time
}

// New creates a Ledger. share is the fraction of each credit that becomes pending
// distribution, threshold is the pending amount that triggers a dispatch.
func New(share, threshold decimal.Decimal) (*Ledger, error) {
	if !share.IsPositive() || share.GreaterThan(decimal.NewFromInt(1)) {
		return nil, fmt.Errorf("payout share %s outside (0,1]: %w", share, model.ErrConfigurationInvalid)
	}
	if threshold.IsNegative() {
		return nil, fmt.Errorf("payout threshold %s negative: %w", threshold, model.ErrConfigurationInvalid)
	}
	return &Ledger{
		state: model.LedgerSnapshot{
			TotalRealizedProfit:       decimal.Zero,
			PendingDistributionAmount: decimal.Zero,
		},
		share:     share,
		threshold: threshold,
		now:       time.Now,
	}, nil
}

// Credit records realized profit. Non-positive amounts are rejected.
func (l *Ledger) Credit(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("credit %s: %w", amount, model.ErrInvalidAmount)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	earmarked := amount.Mul(l.share)
	l.state.TotalRealizedProfit = l.state.TotalRealizedProfit.Add(amount)
	l.state.PendingDistributionAmount = l.state.PendingDistributionAmount.Add(earmarked)
	l.state.Credits++
	l.state.LastCreditAt = l.now()

	zap.L().Info("ledger credited",
		zap.String("component", "ledger"),
		zap.String("amount", amount.StringFixed(4)),
		zap.String("earmarked", earmarked.StringFixed(4)),
		zap.String("total", l.state.TotalRealizedProfit.StringFixed(4)),
		zap.String("pending", l.state.PendingDistributionAmount.StringFixed(4)))
	return nil
}

// ShouldDispatch reports whether pending distribution reached the payout threshold.
func (l *Ledger) ShouldDispatch() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state.PendingDistributionAmount.GreaterThanOrEqual(l.threshold)
}

// Pending returns the amount currently earmarked for payout.
func (l *Ledger) Pending() decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state.PendingDistributionAmount
}

// Total returns the running total of realized profit.
func (l *Ledger) Total() decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state.TotalRealizedProfit
}

// Clear resets pending distribution to zero. Only the payout dispatcher calls it,
// after every attempt of a dispatch is terminal.
func (l *Ledger) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.state.PendingDistributionAmount = decimal.Zero
	l.state.Dispatches++
	l.state.LastClearedAt = l.now()
}

// Snapshot returns a copy of the current ledger state.
func (l *Ledger) Snapshot() model.LedgerSnapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Threshold returns the configured payout threshold.
func (l *Ledger) Threshold() decimal.Decimal { return l.threshold }
