package wallet

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"SwapSentinel/internal/model"
	"SwapSentinel/internal/solana"
)

// Chain is the subset of the RPC client the wallet reads from.
type Chain interface {
	GetBalance(ctx context.Context, address string) (uint64, error)
	GetTokenAccountsByOwner(ctx context.Context, owner, programID string) ([]solana.TokenAccount, error)
}

// Wallet reads the agent's holdings. Nothing is cached between calls.
type Wallet struct {
	chain   Chain
	owner   string
	reserve model.Unit
	units   []model.Unit
}

// New creates a wallet reader for owner. Only units in the registry are reported.
func New(chain Chain, owner string, reserve model.Unit, units []model.Unit) *Wallet {
	return &Wallet{chain: chain, owner: owner, reserve: reserve, units: units}
}

// Address returns the owner address.
func (w *Wallet) Address() string { return w.owner }

// ReserveBalance returns the native reserve balance in UI units.
func (w *Wallet) ReserveBalance(ctx context.Context) (decimal.Decimal, error) {
	lamports, err := w.chain.GetBalance(ctx, w.owner)
	if err != nil {
		return decimal.Zero, fmt.Errorf("read reserve balance: %w", err)
	}
	return w.reserve.FromBaseUnits(decimal.NewFromInt(int64(lamports))), nil
}

// Holdings returns every registry unit the wallet holds a positive balance of,
// excluding the reserve unit. Token accounts of the same mint are summed.
func (w *Wallet) Holdings(ctx context.Context) ([]model.Holding, error) {
	byMint := make(map[string]model.Unit, len(w.units))
	for _, u := range w.units {
		if u.Mint != w.reserve.Mint {
			byMint[u.Mint] = u
		}
	}

	totals := make(map[string]decimal.Decimal)
	for _, program := range []string{solana.TokenProgramID, solana.Token2022ProgramID} {
		accounts, err := w.chain.GetTokenAccountsByOwner(ctx, w.owner, program)
		if err != nil {
			if program == solana.Token2022ProgramID {
				zap.L().Warn("token-2022 accounts unavailable",
					zap.String("component", "wallet"),
					zap.Error(err))
				continue
			}
			return nil, fmt.Errorf("read token accounts: %w", err)
		}
		for _, acct := range accounts {
			if _, known := byMint[acct.Mint]; !known {
				continue
			}
			totals[acct.Mint] = totals[acct.Mint].Add(acct.Amount.UI())
		}
	}

	holdings := make([]model.Holding, 0, len(totals))
	for _, u := range w.units {
		qty, ok := totals[u.Mint]
		if !ok || !qty.IsPositive() {
			continue
		}
		holdings = append(holdings, model.Holding{Unit: u, Quantity: qty})
	}
	return holdings, nil
}
