package model

import "github.com/shopspring/decimal"

// TradeStatus is the terminal state of one execution attempt.
type TradeStatus string

const (
	TradeSuccess TradeStatus = "SUCCESS"
	TradeFailed  TradeStatus = "FAILED"
)

// TradeResult is produced exactly once per execution attempt.
type TradeResult struct {
	Status               TradeStatus
	TxID                 string
	RealizedOutputAmount decimal.Decimal
	FeePaid              decimal.Decimal // reserve units
	Err                  error
}

// OK reports whether the trade materialized.
func (r TradeResult) OK() bool { return r.Status == TradeSuccess }
