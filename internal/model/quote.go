package model

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// Quote is an externally computed exchange route. It is immutable and short-lived.
type Quote struct {
	InputUnit            Unit
	OutputUnit           Unit
	InputAmount          decimal.Decimal // UI units of InputUnit
	ExpectedOutputAmount decimal.Decimal // UI units of OutputUnit
	PriceImpact          decimal.Decimal // fraction, 0.01 = 1%
	RouteHandle          json.RawMessage // opaque payload handed back to the routing service
}
