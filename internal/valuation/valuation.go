package valuation

import (
	"errors"

	"github.com/shopspring/decimal"

	"SwapSentinel/internal/model"
)

// ReferenceValue converts an amount of some unit into the reference currency.
func ReferenceValue(amount, rate decimal.Decimal) (decimal.Decimal, error) {
	if !rate.IsPositive() {
		return decimal.Zero, errors.New("rate must be positive")
	}
	if amount.IsNegative() {
		return decimal.Zero, errors.New("amount must not be negative")
	}
	return amount.Mul(rate), nil
}

// NetValue returns outputValue - inputValue for a quote, both in the reference currency.
func NetValue(q *model.Quote, inputRate, outputRate decimal.Decimal) (decimal.Decimal, error) {
	if q == nil {
		return decimal.Zero, errors.New("nil quote")
	}
	in, err := ReferenceValue(q.InputAmount, inputRate)
	if err != nil {
		return decimal.Zero, err
	}
	out, err := ReferenceValue(q.ExpectedOutputAmount, outputRate)
	if err != nil {
		return decimal.Zero, err
	}
	return out.Sub(in), nil
}

// ImpactExceeded reports whether the quote's price impact is above the ceiling.
// A zero ceiling disables the check.
func ImpactExceeded(q *model.Quote, ceiling decimal.Decimal) bool {
	if q == nil || !ceiling.IsPositive() {
		return false
	}
	return q.PriceImpact.Abs().GreaterThan(ceiling)
}

// QuantityFor returns how many units are needed to reach targetValue at rate,
// capped at held so a liquidation never exceeds the balance.
func QuantityFor(targetValue, rate, held decimal.Decimal) decimal.Decimal {
	if !rate.IsPositive() || !targetValue.IsPositive() {
		return decimal.Zero
	}
	q := targetValue.DivRound(rate, 12)
	if q.GreaterThan(held) {
		return held
	}
	return q
}
