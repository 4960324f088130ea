package evaluator

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"SwapSentinel/internal/model"
	"SwapSentinel/internal/payout"
	"SwapSentinel/internal/valuation"
)

// Oracle prices a single unit.
type Oracle interface {
	GetRate(ctx context.Context, unit model.Unit) (decimal.Decimal, error)
}

// Quoter finds a route from the reserve into a candidate.
type Quoter interface {
	GetQuote(ctx context.Context, in, out model.Unit, amount decimal.Decimal) (*model.Quote, error)
}

// Executor executes a quote.
type Executor interface {
	Execute(ctx context.Context, q *model.Quote) model.TradeResult
}

// Ledger is credited with realized profit.
type Ledger interface {
	payout.Ledger
	Credit(amount decimal.Decimal) error
}

// Settler drains the ledger once it crosses the payout threshold.
type Settler interface {
	Settle(ctx context.Context, l payout.Ledger, force bool) *model.DispatchResult
}

// Params are the evaluation parameters.
type Params struct {
	InputAmount    decimal.Decimal // reserve units quoted on every tick
	MinProfit      decimal.Decimal // reference currency; net value must be strictly above it
	MaxPriceImpact decimal.Decimal // fraction; zero disables the ceiling
}

// Evaluator walks a fixed catalog one candidate per tick and trades when the
// quoted exchange clears the profit floor.
type Evaluator struct {
	oracle   Oracle
	quoter   Quoter
	executor Executor
	ledger   Ledger
	settler  Settler

	reserve model.Unit
	catalog []model.Unit
	params  Params

	mu    sync.Mutex
	index int
}

// New creates an Evaluator. The catalog must be non-empty and exclude the reserve unit.
func New(o Oracle, q Quoter, e Executor, l Ledger, s Settler, reserve model.Unit, catalog []model.Unit, p Params) (*Evaluator, error) {
	if len(catalog) == 0 {
		return nil, fmt.Errorf("empty candidate catalog: %w", model.ErrConfigurationInvalid)
	}
	for _, u := range catalog {
		if u.Mint == reserve.Mint {
			return nil, fmt.Errorf("catalog contains reserve unit %s: %w", u, model.ErrConfigurationInvalid)
		}
	}
	if !p.InputAmount.IsPositive() {
		return nil, fmt.Errorf("input amount %s: %w", p.InputAmount, model.ErrConfigurationInvalid)
	}
	return &Evaluator{
		oracle:   o,
		quoter:   q,
		executor: e,
		ledger:   l,
		settler:  s,
		reserve:  reserve,
		catalog:  append([]model.Unit(nil), catalog...),
		params:   p,
	}, nil
}

// Index returns the position of the next candidate.
func (e *Evaluator) Index() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.index
}

// Peek returns the candidate the next tick will evaluate without advancing.
func (e *Evaluator) Peek() (model.Unit, int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.catalog[e.index], e.index
}

// next returns the current candidate and advances the rotation.
func (e *Evaluator) next() (model.Unit, int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	i := e.index
	e.index = (e.index + 1) % len(e.catalog)
	return e.catalog[i], i
}

// Tick runs one evaluation. Every failure is folded into the report outcome.
func (e *Evaluator) Tick(ctx context.Context) model.TickReport {
	log := zap.L().With(zap.String("component", "evaluator"))

	reserveRate, err := e.oracle.GetRate(ctx, e.reserve)
	if err != nil {
		log.Warn("reserve rate unavailable", zap.Error(err))
		return model.TickReport{Outcome: model.TickOracleUnavailable, Index: e.Index(), Err: err}
	}

	candidate, idx := e.next()
	report := model.TickReport{Candidate: candidate, Index: idx}
	log = log.With(zap.String("candidate", candidate.Symbol), zap.Int("index", idx))

	q, err := e.quoter.GetQuote(ctx, e.reserve, candidate, e.params.InputAmount)
	if err != nil {
		if !errors.Is(err, model.ErrNoRouteFound) {
			err = fmt.Errorf("%w: %w", model.ErrNoRouteFound, err)
		}
		log.Debug("no route", zap.Error(err))
		report.Outcome, report.Err = model.TickNoRoute, err
		return report
	}
	report.Quote = q

	candidateRate, err := e.oracle.GetRate(ctx, candidate)
	if err != nil {
		log.Warn("candidate rate unavailable", zap.Error(err))
		report.Outcome, report.Err = model.TickOracleUnavailable, err
		return report
	}

	net, err := valuation.NetValue(q, reserveRate, candidateRate)
	if err != nil {
		report.Outcome, report.Err = model.TickOracleUnavailable, fmt.Errorf("%w: %w", model.ErrOracleUnavailable, err)
		return report
	}
	report.NetValue = net

	if net.LessThanOrEqual(e.params.MinProfit) {
		log.Debug("below min profit",
			zap.String("net_usd", net.StringFixed(4)),
			zap.String("min_usd", e.params.MinProfit.String()))
		report.Outcome = model.TickBelowMinProfit
		return report
	}

	if valuation.ImpactExceeded(q, e.params.MaxPriceImpact) {
		log.Info("price impact above ceiling",
			zap.String("impact", q.PriceImpact.String()),
			zap.String("ceiling", e.params.MaxPriceImpact.String()))
		report.Outcome, report.Err = model.TickPriceImpactExceeded, model.ErrPriceImpactExceeded
		return report
	}

	log.Info("opportunity found",
		zap.String("in", q.InputAmount.String()),
		zap.String("expected_out", q.ExpectedOutputAmount.String()),
		zap.String("net_usd", net.StringFixed(4)))

	res := e.executor.Execute(ctx, q)
	report.Trade = &res
	if !res.OK() {
		log.Warn("trade failed", zap.String("txid", res.TxID), zap.Error(res.Err))
		report.Outcome, report.Err = model.TickExecutionFailed, res.Err
		return report
	}
	report.Outcome = model.TickTraded

	if err := e.ledger.Credit(net); err != nil {
		log.Error("ledger credit rejected", zap.Error(err))
		report.Err = err
		return report
	}
	if e.settler != nil && e.ledger.ShouldDispatch() {
		report.Dispatch = e.settler.Settle(ctx, e.ledger, false)
	}
	return report
}
