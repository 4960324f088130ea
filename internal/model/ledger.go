package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// LedgerSnapshot is a point-in-time copy of the profit ledger.
type LedgerSnapshot struct {
	TotalRealizedProfit       decimal.Decimal `json:"total_realized_profit"`
	PendingDistributionAmount decimal.Decimal `json:"pending_distribution_amount"`
	Credits                   int             `json:"credits"`
	Dispatches                int             `json:"dispatches"`
	LastCreditAt              time.Time       `json:"last_credit_at,omitempty"`
	LastClearedAt             time.Time       `json:"last_cleared_at,omitempty"`
}
