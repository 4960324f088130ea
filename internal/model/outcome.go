package model

import "github.com/shopspring/decimal"

// TickOutcome classifies one opportunity-evaluation tick.
type TickOutcome string

const (
	TickIdle                TickOutcome = "IDLE" // agent not running
	TickOracleUnavailable   TickOutcome = "ORACLE_UNAVAILABLE"
	TickNoRoute             TickOutcome = "NO_ROUTE"
	TickBelowMinProfit      TickOutcome = "BELOW_MIN_PROFIT"
	TickPriceImpactExceeded TickOutcome = "PRICE_IMPACT_EXCEEDED"
	TickExecutionFailed     TickOutcome = "EXECUTION_FAILED"
	TickTraded              TickOutcome = "TRADED"
)

// TickReport is what the evaluator returns for every tick.
type TickReport struct {
	Outcome   TickOutcome
	Candidate Unit
	Index     int // rotation index used by this tick
	NetValue  decimal.Decimal
	Quote     *Quote
	Trade     *TradeResult
	Dispatch  *DispatchResult
	Err       error
}

// ReplenishOutcome classifies one reserve-monitor tick.
type ReplenishOutcome string

const (
	ReplenishIdle              ReplenishOutcome = "IDLE"
	ReplenishHealthy           ReplenishOutcome = "HEALTHY"
	ReplenishOracleUnavailable ReplenishOutcome = "ORACLE_UNAVAILABLE"
	ReplenishExhausted         ReplenishOutcome = "SOURCE_EXHAUSTED"
	ReplenishNoRoute           ReplenishOutcome = "NO_ROUTE"
	ReplenishExecutionFailed   ReplenishOutcome = "EXECUTION_FAILED"
	ReplenishToppedUp          ReplenishOutcome = "TOPPED_UP"
	ReplenishPartialTopUp      ReplenishOutcome = "PARTIAL_TOP_UP"
	ReplenishWalletUnavailable ReplenishOutcome = "WALLET_UNAVAILABLE"
)

// ReplenishReport is what the reserve monitor returns for every tick.
type ReplenishReport struct {
	Outcome   ReplenishOutcome
	Reserve   ReserveState
	Selection *Selection
	Quote     *Quote
	Trade     *TradeResult
	Err       error
}

// Selection is the liquidation choice made by the replenisher.
type Selection struct {
	Holding  ValuedHolding
	Quantity decimal.Decimal // UI units to liquidate, never above Holding.Quantity
	Full     bool            // true when the selection covers the whole top-up target
}
