package agent

import (
	"context"

	"go.uber.org/zap"

	"SwapSentinel/internal/model"
	"SwapSentinel/internal/notifier"
	"SwapSentinel/internal/recorder"
)

func (a *Agent) evaluate(ctx context.Context) model.TickReport {
	if !a.Running() {
		return model.TickReport{Outcome: model.TickIdle}
	}
	rep := a.deps.Evaluator.Tick(ctx)
	a.deps.Metrics.ObserveTick(rep)
	a.deps.Metrics.ObserveLedger(a.deps.Ledger.Snapshot())

	if rep.Trade != nil {
		evt := &recorder.TradeEvent{Kind: "EVALUATE", Quote: rep.Quote, Result: *rep.Trade}
		if rep.Outcome == model.TickTraded {
			evt.NetUSD = rep.NetValue.String()
		}
		a.record("trade", a.deps.Recorder.RecordTrade(ctx, evt))
	}
	if rep.Dispatch != nil {
		a.record("payout", a.deps.Recorder.RecordPayout(ctx, &recorder.PayoutEvent{Source: "THRESHOLD", Dispatch: *rep.Dispatch}))
	}
	if rep.Outcome == model.TickTraded {
		a.deps.Notifier.Notify(ctx, notifier.Event{Kind: "trade", Text: notifier.FormatTrade(rep), Payload: rep})
	}
	return rep
}

func (a *Agent) replenish(ctx context.Context) model.ReplenishReport {
	if !a.Running() {
		return model.ReplenishReport{Outcome: model.ReplenishIdle}
	}
	rep := a.deps.Monitor.Check(ctx)
	a.deps.Metrics.ObserveReplenish(rep)
	if _, rate := a.deps.Monitor.Snapshot(); rate.IsPositive() {
		a.deps.Metrics.ReserveRate.Set(rate.InexactFloat64())
	}

	if rep.Outcome == model.ReplenishHealthy {
		return rep
	}
	a.record("replenish", a.deps.Recorder.RecordReplenish(ctx, &recorder.ReplenishEvent{Report: rep}))
	if rep.Trade != nil {
		a.record("trade", a.deps.Recorder.RecordTrade(ctx, &recorder.TradeEvent{Kind: "REPLENISH", Quote: rep.Quote, Result: *rep.Trade}))
	}
	switch rep.Outcome {
	case model.ReplenishToppedUp, model.ReplenishPartialTopUp, model.ReplenishExecutionFailed, model.ReplenishExhausted:
		a.deps.Notifier.Notify(ctx, notifier.Event{Kind: "replenish", Text: notifier.FormatReplenish(rep), Payload: rep})
	}
	return rep
}

func (a *Agent) withdraw(ctx context.Context) Result {
	res := a.deps.Settler.Settle(ctx, a.deps.Ledger, true)
	if res == nil {
		return Result{Kind: JobWithdraw, Err: ErrNothingToWithdraw}
	}
	a.deps.Metrics.ObserveDispatch(*res)
	a.deps.Metrics.ObserveLedger(a.deps.Ledger.Snapshot())
	a.record("payout", a.deps.Recorder.RecordPayout(ctx, &recorder.PayoutEvent{Source: "MANUAL", Dispatch: *res}))
	a.deps.Notifier.Notify(ctx, notifier.Event{Kind: "payout", Text: notifier.FormatDispatch(*res), Payload: res})
	return Result{Kind: JobWithdraw, Dispatch: res, Err: res.Err()}
}

func (a *Agent) runProtocol(ctx context.Context) Result {
	if a.deps.Protocol == nil {
		return Result{Kind: JobProtocol, Err: ErrProtocolDisabled}
	}
	exec, err := a.deps.Protocol.Run(ctx)
	a.deps.Metrics.ObserveProtocol(err)
	if exec == nil {
		zap.L().Error("monthly protocol failed", zap.String("component", "agent"), zap.Error(err))
		return Result{Kind: JobProtocol, Err: err}
	}

	a.record("protocol", a.deps.Recorder.RecordProtocol(ctx, &recorder.ProtocolEvent{
		Month:    exec.Month,
		Reinvest: exec.Reinvest.String(),
		TakeHome: exec.TakeHome.String(),
		Txs:      exec.Txs,
		Err:      err,
	}))
	if exec.Payout != nil {
		a.deps.Metrics.ObserveDispatch(*exec.Payout)
		a.record("payout", a.deps.Recorder.RecordPayout(ctx, &recorder.PayoutEvent{Source: "PROTOCOL", Dispatch: *exec.Payout}))
	}
	a.deps.Notifier.Notify(ctx, notifier.Event{
		Kind:    "protocol",
		Text:    notifier.FormatProtocol(exec.Month, exec.Reinvest.String(), exec.TakeHome.String(), exec.Txs, err),
		Payload: exec,
	})
	return Result{Kind: JobProtocol, Protocol: exec, Err: err}
}

func (a *Agent) record(what string, err error) {
	if err != nil {
		zap.L().Error("record failed", zap.String("component", "agent"), zap.String("event", what), zap.Error(err))
	}
}
