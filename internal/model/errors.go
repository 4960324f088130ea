package model

import "errors"

// Recoverable conditions skip the current tick; only ErrConfigurationInvalid is fatal.
var (
	ErrOracleUnavailable            = errors.New("oracle unavailable")
	ErrNoRouteFound                 = errors.New("no route found")
	ErrPriceImpactExceeded          = errors.New("price impact exceeded")
	ErrExecutionFailed              = errors.New("execution failed")
	ErrReplenishmentSourceExhausted = errors.New("replenishment source exhausted")
	ErrPayoutPartialFailure         = errors.New("payout partial failure")
	ErrPayoutFailed                 = errors.New("payout failed")
	ErrConfigurationInvalid         = errors.New("configuration invalid")
	ErrInvalidAmount                = errors.New("amount must be positive")
)
