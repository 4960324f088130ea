package reserve

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"SwapSentinel/internal/model"
	"SwapSentinel/internal/valuation"
)

// Rank filters holdings down to liquidation candidates and orders them:
// stable units first, then by descending value, then by symbol. The reserve unit,
// empty balances and holdings worth less than minValue are dropped.
func Rank(holdings []model.ValuedHolding, reserve model.Unit, minValue decimal.Decimal) []model.ValuedHolding {
	out := make([]model.ValuedHolding, 0, len(holdings))
	for _, h := range holdings {
		if h.Unit.Mint == reserve.Mint || h.Unit.Symbol == reserve.Symbol {
			continue
		}
		if !h.Quantity.IsPositive() || !h.ValueUSD.IsPositive() {
			continue
		}
		if h.ValueUSD.LessThan(minValue) {
			continue
		}
		out = append(out, h)
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Unit.Stable != b.Unit.Stable {
			return a.Unit.Stable
		}
		if c := a.ValueUSD.Cmp(b.ValueUSD); c != 0 {
			return c > 0
		}
		return a.Unit.Symbol < b.Unit.Symbol
	})
	return out
}

// Select picks exactly one holding to liquidate toward target (reference currency).
// The first ranked holding that covers target is liquidated for just the covering
// quantity. When none covers it, the most valuable holding is liquidated in full.
func Select(ranked []model.ValuedHolding, target decimal.Decimal) (*model.Selection, error) {
	if len(ranked) == 0 {
		return nil, fmt.Errorf("no eligible holdings: %w", model.ErrReplenishmentSourceExhausted)
	}
	for _, h := range ranked {
		if h.ValueUSD.GreaterThanOrEqual(target) {
			return &model.Selection{
				Holding:  h,
				Quantity: valuation.QuantityFor(target, h.Rate, h.Quantity),
				Full:     true,
			}, nil
		}
	}

	best := ranked[0]
	for _, h := range ranked[1:] {
		if h.ValueUSD.GreaterThan(best.ValueUSD) {
			best = h
		}
	}
	return &model.Selection{Holding: best, Quantity: best.Quantity, Full: false}, nil
}

// Value attaches reference values to holdings. Holdings without a rate are skipped.
func Value(holdings []model.Holding, rates map[string]decimal.Decimal) []model.ValuedHolding {
	out := make([]model.ValuedHolding, 0, len(holdings))
	for _, h := range holdings {
		rate, ok := rates[h.Unit.Symbol]
		if !ok {
			continue
		}
		v, err := valuation.ReferenceValue(h.Quantity, rate)
		if err != nil {
			continue
		}
		out = append(out, model.ValuedHolding{Holding: h, Rate: rate, ValueUSD: v})
	}
	return out
}
