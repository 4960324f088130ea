package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status is the agent view returned by start, stop and status requests.
type Status struct {
	Running       bool            `json:"running"`
	StartedAt     time.Time       `json:"started_at,omitempty"`
	Uptime        string          `json:"uptime"`
	DryRun        bool            `json:"dry_run"`
	Wallet        string          `json:"wallet"`
	Ledger        LedgerSnapshot  `json:"ledger"`
	Reserve       ReserveState    `json:"reserve"`
	ReserveRate   decimal.Decimal `json:"reserve_rate"`
	RotationIndex int             `json:"rotation_index"`
	Candidate     string          `json:"next_candidate"`
	QueueDepth    int             `json:"queue_depth"`
}
