package model

import "github.com/shopspring/decimal"

// PayoutStatus is the terminal state of one destination attempt.
type PayoutStatus string

const (
	PayoutSuccess PayoutStatus = "SUCCESS"
	PayoutFailed  PayoutStatus = "FAILED"
	PayoutSkipped PayoutStatus = "SKIPPED"
)

// Destination is a fixed payout target with its share of every dispatch.
type Destination struct {
	ID      string          `yaml:"id" json:"id"`
	Address string          `yaml:"address" json:"address"`
	Share   decimal.Decimal `yaml:"share" json:"share"`
}

// PayoutAttempt records one destination leg of a dispatch.
type PayoutAttempt struct {
	DestinationID     string          `json:"destination_id"`
	Address           string          `json:"address"`
	AmountRequested   decimal.Decimal `json:"amount_requested"`
	Status            PayoutStatus    `json:"status"`
	ExternalReference string          `json:"external_reference,omitempty"`
	Reason            string          `json:"reason,omitempty"`
}

// DispatchOutcome classifies a whole dispatch.
type DispatchOutcome string

const (
	DispatchCompleted DispatchOutcome = "COMPLETED"
	DispatchPartial   DispatchOutcome = "PARTIAL"
	DispatchFailed    DispatchOutcome = "FAILED"
	DispatchSkipped   DispatchOutcome = "SKIPPED"
)

// DispatchResult is the aggregate of one payout dispatch.
type DispatchResult struct {
	ID        string          `json:"id"`
	Gross     decimal.Decimal `json:"gross"`
	FeeBuffer decimal.Decimal `json:"fee_buffer"`
	Net       decimal.Decimal `json:"net"`
	Attempts  []PayoutAttempt `json:"attempts"`
	Outcome   DispatchOutcome `json:"outcome"`
	Cleared   bool            `json:"cleared"`
}

// Err maps the outcome onto the error taxonomy. Completed and skipped dispatches return nil.
func (d DispatchResult) Err() error {
	switch d.Outcome {
	case DispatchPartial:
		return ErrPayoutPartialFailure
	case DispatchFailed:
		return ErrPayoutFailed
	default:
		return nil
	}
}

// Allocated returns the sum of all requested amounts.
func (d DispatchResult) Allocated() decimal.Decimal {
	sum := decimal.Zero
	for _, a := range d.Attempts {
		sum = sum.Add(a.AmountRequested)
	}
	return sum
}
