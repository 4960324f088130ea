package protocol

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"SwapSentinel/internal/model"
)

// Transferer sends reserve units to an address.
type Transferer interface {
	Transfer(ctx context.Context, to string, amount decimal.Decimal) model.TradeResult
}

// Payer splits a reference-currency amount across the protocol destinations.
type Payer interface {
	Dispatch(ctx context.Context, amount decimal.Decimal) model.DispatchResult
}

// Runner executes the monthly distribution plan.
type Runner struct {
	planPath string
	logPath  string
	sniper   string
	transfer Transferer
	payer    Payer
	now      func() time.Time
}

// NewRunner creates a protocol runner.
func NewRunner(planPath, logPath, sniperWallet string, t Transferer, p Payer) *Runner {
	return &Runner{
		planPath: planPath,
		logPath:  logPath,
		sniper:   sniperWallet,
		transfer: t,
		payer:    p,
		now:      time.Now,
	}
}

// Run executes this month's entry: reinvest transfer first, then the take-home split.
// Both legs are attempted; their failures are joined into the returned error and the
// execution log is written either way.
func (r *Runner) Run(ctx context.Context) (*Execution, error) {
	log := zap.L().With(zap.String("component", "protocol"))

	plan, err := LoadPlan(r.planPath)
	if err != nil {
		return nil, err
	}
	entry := Current(plan, r.now())
	exec := &Execution{
		Month:    entry.Month,
		Profit:   entry.Profit,
		Reinvest: entry.Reinvest,
		TakeHome: entry.TakeHome,
		Date:     r.now().UTC(),
		Txs:      map[string]string{},
	}
	log.Info("executing month",
		zap.Int("month", entry.Month),
		zap.String("reinvest", entry.Reinvest.String()),
		zap.String("take_home", entry.TakeHome.String()))

	var errs []error
	if entry.Reinvest.IsPositive() {
		res := r.transfer.Transfer(ctx, r.sniper, entry.Reinvest)
		if res.OK() {
			exec.Txs["reinvest"] = res.TxID
		} else {
			exec.ReinvestErr = res.Err.Error()
			errs = append(errs, fmt.Errorf("reinvest: %w", res.Err))
		}
	}

	if entry.TakeHome.IsPositive() {
		res := r.payer.Dispatch(ctx, entry.TakeHome)
		exec.Payout = &res
		for _, a := range res.Attempts {
			if a.Status == model.PayoutSuccess {
				exec.Txs[a.DestinationID] = a.ExternalReference
			}
		}
		if err := res.Err(); err != nil {
			errs = append(errs, fmt.Errorf("take home: %w", err))
		}
	}

	if err := SaveExecution(r.logPath, *exec); err != nil {
		log.Error("write execution log", zap.String("path", r.logPath), zap.Error(err))
		errs = append(errs, fmt.Errorf("write execution log: %w", err))
	}
	return exec, errors.Join(errs...)
}
