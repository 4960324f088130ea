package recorder

import (
	"context"
	"encoding/json"
	"time"

	"SwapSentinel/internal/model"
)

// TradeEvent records one execution attempt, either an opportunity trade or a liquidation.
type TradeEvent struct {
	Kind   string // "EVALUATE" or "REPLENISH"
	Quote  *model.Quote
	Result model.TradeResult
	NetUSD string // empty for liquidations
}

// PayoutEvent records one dispatch and its per-destination attempts.
type PayoutEvent struct {
	Source   string // "THRESHOLD", "MANUAL" or "PROTOCOL"
	Dispatch model.DispatchResult
}

// ReplenishEvent records a reserve-monitor cycle that did something or failed.
type ReplenishEvent struct {
	Report model.ReplenishReport
}

// ProtocolEvent records one monthly protocol run.
type ProtocolEvent struct {
	Month    int
	Reinvest string
	TakeHome string
	Txs      map[string]string
	Err      error
}

// Recorder persists agent history for later analysis.
type Recorder interface {
	RecordTrade(ctx context.Context, evt *TradeEvent) error
	RecordPayout(ctx context.Context, evt *PayoutEvent) error
	RecordReplenish(ctx context.Context, evt *ReplenishEvent) error
	RecordProtocol(ctx context.Context, evt *ProtocolEvent) error
	Close() error
}

// tradeRow flattens a TradeEvent into column values shared by every backend.
type tradeRow struct {
	ts                                   int64
	kind, in, out                        string
	inAmount, expected, realized, fee    string
	net, impact, status, txid, errString string
}

func flattenTrade(evt *TradeEvent) tradeRow {
	row := tradeRow{
		ts:       time.Now().Unix(),
		kind:     evt.Kind,
		realized: evt.Result.RealizedOutputAmount.String(),
		fee:      evt.Result.FeePaid.String(),
		net:      evt.NetUSD,
		status:   string(evt.Result.Status),
		txid:     evt.Result.TxID,
	}
	if q := evt.Quote; q != nil {
		row.in, row.out = q.InputUnit.Symbol, q.OutputUnit.Symbol
		row.inAmount = q.InputAmount.String()
		row.expected = q.ExpectedOutputAmount.String()
		row.impact = q.PriceImpact.String()
	}
	if evt.Result.Err != nil {
		row.errString = evt.Result.Err.Error()
	}
	return row
}

type replenishRow struct {
	ts                                 int64
	outcome, balance, threshold, topUp string
	source, quantity, txid, errString  string
}

func flattenReplenish(evt *ReplenishEvent) replenishRow {
	r := evt.Report
	row := replenishRow{
		ts:        time.Now().Unix(),
		outcome:   string(r.Outcome),
		balance:   r.Reserve.CurrentBalance.String(),
		threshold: r.Reserve.Threshold.String(),
		topUp:     r.Reserve.TopUpAmount.String(),
	}
	if r.Selection != nil {
		row.source = r.Selection.Holding.Unit.Symbol
		row.quantity = r.Selection.Quantity.String()
	}
	if r.Trade != nil {
		row.txid = r.Trade.TxID
	}
	if r.Err != nil {
		row.errString = r.Err.Error()
	}
	return row
}

func protocolTxs(evt *ProtocolEvent) (string, string, error) {
	txs, err := json.Marshal(evt.Txs)
	if err != nil {
		return "", "", err
	}
	var errString string
	if evt.Err != nil {
		errString = evt.Err.Error()
	}
	return string(txs), errString, nil
}
