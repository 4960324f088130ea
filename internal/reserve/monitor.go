package reserve

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"SwapSentinel/internal/model"
)

// Wallet reads the agent's balances.
type Wallet interface {
	ReserveBalance(ctx context.Context) (decimal.Decimal, error)
	Holdings(ctx context.Context) ([]model.Holding, error)
}

// Oracle prices units in the reference currency.
type Oracle interface {
	GetRate(ctx context.Context, unit model.Unit) (decimal.Decimal, error)
	GetRates(ctx context.Context, units []model.Unit) (map[string]decimal.Decimal, error)
}

// Quoter finds a route from a holding back into the reserve unit.
type Quoter interface {
	GetQuote(ctx context.Context, in, out model.Unit, amount decimal.Decimal) (*model.Quote, error)
}

// Executor executes a quote.
type Executor interface {
	Execute(ctx context.Context, q *model.Quote) model.TradeResult
}

// Policy holds the reserve thresholds, in reserve units except MinSwapValue.
type Policy struct {
	Threshold    decimal.Decimal
	TopUpAmount  decimal.Decimal
	MinSwapValue decimal.Decimal // reference currency
}

// Monitor keeps the operating reserve above its threshold by liquidating other holdings.
type Monitor struct {
	wallet   Wallet
	oracle   Oracle
	quoter   Quoter
	executor Executor
	reserve  model.Unit
	policy   Policy

	mu   sync.RWMutex
	last model.ReserveState
	rate decimal.Decimal
}

// NewMonitor creates a reserve monitor.
func NewMonitor(w Wallet, o Oracle, q Quoter, e Executor, reserve model.Unit, p Policy) *Monitor {
	return &Monitor{
		wallet:   w,
		oracle:   o,
		quoter:   q,
		executor: e,
		reserve:  reserve,
		policy:   p,
		last:     model.ReserveState{Threshold: p.Threshold, TopUpAmount: p.TopUpAmount},
	}
}

// Snapshot returns the reserve state and rate seen by the most recent check.
func (m *Monitor) Snapshot() (model.ReserveState, decimal.Decimal) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.last, m.rate
}

// Check runs one replenishment cycle. It never returns an error; failures are reported
// in the outcome and the cycle is simply skipped.
func (m *Monitor) Check(ctx context.Context) model.ReplenishReport {
	log := zap.L().With(zap.String("component", "reserve"))

	balance, err := m.wallet.ReserveBalance(ctx)
	if err != nil {
		log.Warn("reserve balance unavailable", zap.Error(err))
		return model.ReplenishReport{Outcome: model.ReplenishWalletUnavailable, Err: err}
	}
	state := model.ReserveState{
		CurrentBalance: balance,
		Threshold:      m.policy.Threshold,
		TopUpAmount:    m.policy.TopUpAmount,
	}
	m.mu.Lock()
	m.last = state
	m.mu.Unlock()

	report := model.ReplenishReport{Reserve: state}
	if !state.Low() {
		report.Outcome = model.ReplenishHealthy
		return report
	}

	rate, err := m.oracle.GetRate(ctx, m.reserve)
	if err != nil {
		log.Warn("reserve rate unavailable", zap.Error(err))
		report.Outcome, report.Err = model.ReplenishOracleUnavailable, err
		return report
	}
	m.mu.Lock()
	m.rate = rate
	m.mu.Unlock()

	holdings, err := m.wallet.Holdings(ctx)
	if err != nil {
		log.Warn("holdings unavailable", zap.Error(err))
		report.Outcome, report.Err = model.ReplenishWalletUnavailable, err
		return report
	}

	units := make([]model.Unit, 0, len(holdings))
	for _, h := range holdings {
		units = append(units, h.Unit)
	}
	rates, err := m.oracle.GetRates(ctx, units)
	if err != nil {
		report.Outcome, report.Err = model.ReplenishOracleUnavailable, err
		return report
	}

	target := m.policy.TopUpAmount.Mul(rate)
	ranked := Rank(Value(holdings, rates), m.reserve, m.policy.MinSwapValue)
	sel, err := Select(ranked, target)
	if err != nil {
		log.Warn("reserve low, nothing to liquidate",
			zap.String("balance", balance.String()),
			zap.String("threshold", m.policy.Threshold.String()))
		report.Outcome, report.Err = model.ReplenishExhausted, err
		return report
	}
	report.Selection = sel

	log.Info("replenishing reserve",
		zap.String("balance", balance.String()),
		zap.String("source", sel.Holding.Unit.Symbol),
		zap.String("quantity", sel.Quantity.String()),
		zap.String("target_usd", target.StringFixed(2)),
		zap.Bool("full", sel.Full))

	q, err := m.quoter.GetQuote(ctx, sel.Holding.Unit, m.reserve, sel.Quantity)
	if err != nil {
		if !errors.Is(err, model.ErrNoRouteFound) {
			err = fmt.Errorf("%w: %w", model.ErrNoRouteFound, err)
		}
		report.Outcome, report.Err = model.ReplenishNoRoute, err
		return report
	}

	report.Quote = q

	res := m.executor.Execute(ctx, q)
	report.Trade = &res
	if !res.OK() {
		report.Outcome, report.Err = model.ReplenishExecutionFailed, res.Err
		return report
	}
	if sel.Full {
		report.Outcome = model.ReplenishToppedUp
	} else {
		report.Outcome = model.ReplenishPartialTopUp
	}
	return report
}
