package model

import "github.com/shopspring/decimal"

// Unit describes one fungible asset the agent knows how to price and route.
type Unit struct {
	Symbol   string `yaml:"symbol" json:"symbol"`
	Mint     string `yaml:"mint" json:"mint"`
	Decimals int32  `yaml:"decimals" json:"decimals"`
	PriceID  string `yaml:"price_id" json:"price_id,omitempty"` // oracle id; empty means lookup by mint
	Stable   bool   `yaml:"stable" json:"stable,omitempty"`     // low-volatility, preferred for liquidation
}

// ToBaseUnits converts a UI amount into integer base units, truncating dust below one base unit.
func (u Unit) ToBaseUnits(amount decimal.Decimal) decimal.Decimal {
	return amount.Shift(u.Decimals).Truncate(0)
}

// FromBaseUnits converts integer base units into a UI amount.
func (u Unit) FromBaseUnits(raw decimal.Decimal) decimal.Decimal {
	return raw.Shift(-u.Decimals)
}

func (u Unit) String() string {
	if u.Symbol != "" {
		return u.Symbol
	}
	return u.Mint
}
