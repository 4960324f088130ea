package solana

import (
	"encoding/base64"
	"encoding/json"

	"github.com/shopspring/decimal"
)

// LamportsPerSOL is the number of lamports in one SOL.
const LamportsPerSOL = 1_000_000_000

// TokenAmount is the parsed amount of an SPL token account.
type TokenAmount struct {
	Amount         string `json:"amount"` // raw base units
	Decimals       int32  `json:"decimals"`
	UIAmountString string `json:"uiAmountString"`
}

// UI returns the amount scaled by decimals.
func (t TokenAmount) UI() decimal.Decimal {
	raw, err := decimal.NewFromString(t.Amount)
	if err != nil {
		return decimal.Zero
	}
	return raw.Shift(-t.Decimals)
}

// TokenAccount is one SPL token account owned by a wallet.
type TokenAccount struct {
	Address string
	Mint    string
	Owner   string
	Amount  TokenAmount
}

// Blockhash is a recent blockhash with its expiry height.
type Blockhash struct {
	Hash                 string `json:"blockhash"`
	LastValidBlockHeight uint64 `json:"lastValidBlockHeight"`
}

// SignatureStatus mirrors one entry of getSignatureStatuses.
type SignatureStatus struct {
	Slot               uint64          `json:"slot"`
	Confirmations      *uint64         `json:"confirmations"`
	Err                json.RawMessage `json:"err"`
	ConfirmationStatus string          `json:"confirmationStatus"`
}

// Failed reports whether the transaction landed with an error.
func (s *SignatureStatus) Failed() bool {
	return hasErr(s.Err)
}

// Confirmed reports whether the transaction reached at least confirmed commitment.
func (s *SignatureStatus) Confirmed() bool {
	return s.ConfirmationStatus == "confirmed" || s.ConfirmationStatus == "finalized"
}

// TxTokenBalance is a pre/post token balance entry from transaction metadata.
type TxTokenBalance struct {
	AccountIndex  int         `json:"accountIndex"`
	Mint          string      `json:"mint"`
	Owner         string      `json:"owner"`
	UITokenAmount TokenAmount `json:"uiTokenAmount"`
}

// TxMeta is the subset of transaction metadata the agent reads.
type TxMeta struct {
	Fee               uint64           `json:"fee"`
	Err               json.RawMessage  `json:"err"`
	PreBalances       []uint64         `json:"preBalances"`
	PostBalances      []uint64         `json:"postBalances"`
	PreTokenBalances  []TxTokenBalance `json:"preTokenBalances"`
	PostTokenBalances []TxTokenBalance `json:"postTokenBalances"`
}

// Transaction is a confirmed transaction as returned by getTransaction.
type Transaction struct {
	Slot      uint64  `json:"slot"`
	BlockTime *int64  `json:"blockTime"`
	Meta      *TxMeta `json:"meta"`
}

// TokenDelta returns the change in owner's balance of mint across the transaction, in UI units.
func (t *Transaction) TokenDelta(owner, mint string) decimal.Decimal {
	if t == nil || t.Meta == nil {
		return decimal.Zero
	}
	sum := func(list []TxTokenBalance) decimal.Decimal {
		total := decimal.Zero
		for _, b := range list {
			if b.Owner == owner && b.Mint == mint {
				total = total.Add(b.UITokenAmount.UI())
			}
		}
		return total
	}
	return sum(t.Meta.PostTokenBalances).Sub(sum(t.Meta.PreTokenBalances))
}

// FeeSOL returns the network fee in SOL.
func (t *Transaction) FeeSOL() decimal.Decimal {
	if t == nil || t.Meta == nil {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(t.Meta.Fee)).Shift(-9)
}

func hasErr(raw json.RawMessage) bool {
	return len(raw) > 0 && string(raw) != "null"
}

func encodeBase64(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}

// SignerNativeDelta returns the fee payer's SOL balance change, excluding the network fee.
func (t *Transaction) SignerNativeDelta() decimal.Decimal {
	if t == nil || t.Meta == nil || len(t.Meta.PreBalances) == 0 || len(t.Meta.PostBalances) == 0 {
		return decimal.Zero
	}
	pre := decimal.NewFromInt(int64(t.Meta.PreBalances[0]))
	post := decimal.NewFromInt(int64(t.Meta.PostBalances[0]))
	fee := decimal.NewFromInt(int64(t.Meta.Fee))
	return post.Sub(pre).Add(fee).Shift(-9)
}
