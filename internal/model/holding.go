package model

import "github.com/shopspring/decimal"

// Holding is a balance of one unit owned by the agent wallet.
// Holdings are read fresh every cycle and never cached.
type Holding struct {
	Unit     Unit
	Quantity decimal.Decimal // UI units
}

// ValuedHolding is a Holding together with its reference-currency value.
type ValuedHolding struct {
	Holding
	Rate     decimal.Decimal
	ValueUSD decimal.Decimal
}
