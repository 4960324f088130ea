package model

import "github.com/shopspring/decimal"

// ReserveState is the operating reserve view refreshed on each replenishment tick.
type ReserveState struct {
	CurrentBalance decimal.Decimal `json:"current_balance"`
	Threshold      decimal.Decimal `json:"threshold"`
	TopUpAmount    decimal.Decimal `json:"top_up_amount"`
}

// Low reports whether the reserve sits below its threshold.
func (r ReserveState) Low() bool {
	return r.CurrentBalance.LessThan(r.Threshold)
}
