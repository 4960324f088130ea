package oracle

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"SwapSentinel/internal/model"
)

// Oracle quotes reference (USD) rates for units.
type Oracle interface {
	GetRate(ctx context.Context, unit model.Unit) (decimal.Decimal, error)
	GetRates(ctx context.Context, units []model.Unit) (map[string]decimal.Decimal, error)
	Name() string
}

// Static returns fixed rates keyed by unit symbol. Used for paper runs and tests.
type Static struct {
	mu    sync.RWMutex
	rates map[string]decimal.Decimal
}

// NewStatic creates a static oracle from symbol → rate pairs.
func NewStatic(rates map[string]float64) *Static {
	s := &Static{rates: make(map[string]decimal.Decimal, len(rates))}
	for sym, r := range rates {
		s.rates[sym] = decimal.NewFromFloat(r)
	}
	return s
}

func (s *Static) Name() string { return "static" }

// Set changes one rate.
func (s *Static) Set(symbol string, rate decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rates[symbol] = rate
}

func (s *Static) GetRate(_ context.Context, unit model.Unit) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if r, ok := s.rates[unit.Symbol]; ok && r.IsPositive() {
		return r, nil
	}
	if unit.Stable && unit.PriceID == "" {
		return decimal.NewFromInt(1), nil
	}
	return decimal.Zero, fmt.Errorf("no rate for %s: %w", unit, model.ErrOracleUnavailable)
}

func (s *Static) GetRates(ctx context.Context, units []model.Unit) (map[string]decimal.Decimal, error) {
	out := make(map[string]decimal.Decimal, len(units))
	for _, u := range units {
		if r, err := s.GetRate(ctx, u); err == nil {
			out[u.Symbol] = r
		}
	}
	return out, nil
}
