package payout

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"SwapSentinel/internal/model"
)

// Rail moves a reference-currency amount to one destination and returns an external reference.
type Rail interface {
	Pay(ctx context.Context, dest model.Destination, amountUSD decimal.Decimal) (string, error)
	Name() string
}

// Ledger is the part of the profit ledger a dispatch settles against.
type Ledger interface {
	Pending() decimal.Decimal
	ShouldDispatch() bool
	Clear()
}

// Options tune a Dispatcher.
type Options struct {
	FeeBuffer        decimal.Decimal // withheld from every dispatch before splitting
	CarryForwardDust bool            // keep sub-buffer amounts pending instead of dropping them
	CallTimeout      time.Duration   // bound on each rail call
}

// Dispatcher splits a payout across fixed destinations.
type Dispatcher struct {
	rail  Rail
	dests []model.Destination
	opts  Options
}

// NewDispatcher validates the destinations and returns a dispatcher.
func NewDispatcher(rail Rail, dests []model.Destination, opts Options) (*Dispatcher, error) {
	if len(dests) == 0 {
		return nil, fmt.Errorf("no payout destinations: %w", model.ErrConfigurationInvalid)
	}
	sum := decimal.Zero
	for _, d := range dests {
		if d.Share.IsNegative() {
			return nil, fmt.Errorf("destination %s has negative share: %w", d.ID, model.ErrConfigurationInvalid)
		}
		sum = sum.Add(d.Share)
	}
	if !sum.Equal(decimal.NewFromInt(1)) {
		return nil, fmt.Errorf("destination shares sum to %s: %w", sum, model.ErrConfigurationInvalid)
	}
	if opts.FeeBuffer.IsNegative() {
		return nil, fmt.Errorf("negative fee buffer: %w", model.ErrConfigurationInvalid)
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = 15 * time.Second
	}
	return &Dispatcher{rail: rail, dests: dests, opts: opts}, nil
}

// Destinations returns the configured destinations.
func (d *Dispatcher) Destinations() []model.Destination {
	return append([]model.Destination(nil), d.dests...)
}

// Split allocates net across the destinations. Every leg but the last is rounded down
// to cents; the last takes the residual so the legs sum to net exactly.
func (d *Dispatcher) Split(net decimal.Decimal) []decimal.Decimal {
	out := make([]decimal.Decimal, len(d.dests))
	if !net.IsPositive() {
		for i := range out {
			out[i] = decimal.Zero
		}
		return out
	}
	allocated := decimal.Zero
	last := len(d.dests) - 1
	for i, dest := range d.dests[:last] {
		out[i] = net.Mul(dest.Share).Truncate(2)
		allocated = allocated.Add(out[i])
	}
	out[last] = net.Sub(allocated)
	return out
}

// Dispatch pays amount minus the fee buffer out to every destination and classifies the result.
// It never touches a ledger; see Settle.
func (d *Dispatcher) Dispatch(ctx context.Context, amount decimal.Decimal) model.DispatchResult {
	res := model.DispatchResult{
		ID:        uuid.NewString(),
		Gross:     amount,
		FeeBuffer: d.opts.FeeBuffer,
		Net:       amount.Sub(d.opts.FeeBuffer),
	}
	log := zap.L().With(
		zap.String("component", "payout"),
		zap.String("dispatch_id", res.ID),
		zap.String("gross", amount.StringFixed(2)),
		zap.String("net", res.Net.StringFixed(2)))

	if !res.Net.IsPositive() {
		for _, dest := range d.dests {
			res.Attempts = append(res.Attempts, model.PayoutAttempt{
				DestinationID:   dest.ID,
				Address:         dest.Address,
				AmountRequested: decimal.Zero,
				Status:          model.PayoutSkipped,
				Reason:          "amount does not exceed fee buffer",
			})
		}
		res.Net = decimal.Zero
		res.Outcome = model.DispatchSkipped
		log.Info("payout skipped, below fee buffer", zap.String("fee_buffer", d.opts.FeeBuffer.StringFixed(2)))
		return res
	}

	var ok, failed int
	for i, alloc := range d.Split(res.Net) {
		dest := d.dests[i]
		attempt := model.PayoutAttempt{DestinationID: dest.ID, Address: dest.Address, AmountRequested: alloc}
		if !alloc.IsPositive() {
			attempt.Status = model.PayoutSkipped
			attempt.Reason = "zero allocation"
			res.Attempts = append(res.Attempts, attempt)
			continue
		}

		callCtx, cancel := context.WithTimeout(ctx, d.opts.CallTimeout)
		ref, err := d.rail.Pay(callCtx, dest, alloc)
		cancel()
		if err != nil {
			attempt.Status = model.PayoutFailed
			attempt.Reason = err.Error()
			failed++
			log.Warn("payout leg failed",
				zap.String("destination", dest.ID),
				zap.String("amount", alloc.StringFixed(2)),
				zap.Error(err))
		} else {
			attempt.Status = model.PayoutSuccess
			attempt.ExternalReference = ref
			ok++
			log.Info("payout leg sent",
				zap.String("destination", dest.ID),
				zap.String("amount", alloc.StringFixed(2)),
				zap.String("reference", ref))
		}
		res.Attempts = append(res.Attempts, attempt)
	}

	switch {
	case ok == 0 && failed == 0:
		res.Outcome = model.DispatchSkipped
	case failed == 0:
		res.Outcome = model.DispatchCompleted
	case ok == 0:
		res.Outcome = model.DispatchFailed
	default:
		res.Outcome = model.DispatchPartial
	}
	return res
}

// Settle dispatches the ledger's pending amount when it has reached the threshold, or
// unconditionally when force is set. It returns nil when there was nothing to do.
//
// The ledger is cleared once every leg is terminal and something left the agent or the
// amount was dust. A dispatch in which every leg failed keeps the amount pending.
func (d *Dispatcher) Settle(ctx context.Context, l Ledger, force bool) *model.DispatchResult {
	if !force && !l.ShouldDispatch() {
		return nil
	}
	pending := l.Pending()
	if !pending.IsPositive() {
		return nil
	}

	res := d.Dispatch(ctx, pending)
	switch res.Outcome {
	case model.DispatchCompleted, model.DispatchPartial:
		res.Cleared = true
	case model.DispatchSkipped:
		res.Cleared = !d.opts.CarryForwardDust
	}
	if res.Cleared {
		l.Clear()
	}
	return &res
}
