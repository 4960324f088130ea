package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"SwapSentinel/internal/model"
	"SwapSentinel/internal/solana"
)

// Builder turns a quote into an unsigned transaction for signer.
type Builder interface {
	BuildTransaction(ctx context.Context, q *model.Quote, signer string) ([]byte, error)
}

// Chain submits transactions and reports their fate.
type Chain interface {
	SendTransaction(ctx context.Context, raw []byte) (string, error)
	GetSignatureStatus(ctx context.Context, signature string) (*solana.SignatureStatus, error)
	GetTransaction(ctx context.Context, signature string) (*solana.Transaction, error)
	GetLatestBlockhash(ctx context.Context) (solana.Blockhash, error)
}

// Confirmer waits for a signature to be confirmed, typically over a websocket subscription.
type Confirmer interface {
	Confirm(ctx context.Context, signature string) error
}

// Options tune the executor.
type Options struct {
	ConfirmTimeout time.Duration
	PollInterval   time.Duration
	DryRun         bool
}

// Executor carries one quote through build, sign, submit and confirm.
// It never retries; the caller decides whether to try again on a later tick.
type Executor struct {
	builder   Builder
	chain     Chain
	confirmer Confirmer
	keypair   *solana.Keypair
	reserve   model.Unit
	opts      Options
}

// New creates an executor. keypair may be nil only in dry-run mode; confirmer may be nil,
// in which case confirmation polls signature statuses.
func New(builder Builder, chain Chain, confirmer Confirmer, keypair *solana.Keypair, reserve model.Unit, opts Options) (*Executor, error) {
	if keypair == nil && !opts.DryRun {
		return nil, fmt.Errorf("executor needs a keypair outside dry-run: %w", model.ErrConfigurationInvalid)
	}
	if opts.ConfirmTimeout <= 0 {
		opts.ConfirmTimeout = 60 * time.Second
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 2 * time.Second
	}
	return &Executor{
		builder:   builder,
		chain:     chain,
		confirmer: confirmer,
		keypair:   keypair,
		reserve:   reserve,
		opts:      opts,
	}, nil
}

// DryRun reports whether transactions are only simulated.
func (e *Executor) DryRun() bool { return e.opts.DryRun }

// Execute performs the swap described by q and returns exactly one result.
func (e *Executor) Execute(ctx context.Context, q *model.Quote) model.TradeResult {
	log := zap.L().With(
		zap.String("component", "executor"),
		zap.String("input", q.InputUnit.Symbol),
		zap.String("output", q.OutputUnit.Symbol),
		zap.String("amount", q.InputAmount.String()))

	if e.opts.DryRun {
		txid := "dryrun-" + uuid.NewString()
		log.Info("dry-run swap", zap.String("txid", txid), zap.String("expected", q.ExpectedOutputAmount.String()))
		return model.TradeResult{
			Status:               model.TradeSuccess,
			TxID:                 txid,
			RealizedOutputAmount: q.ExpectedOutputAmount,
			FeePaid:              decimal.Zero,
		}
	}

	signer := e.keypair.PublicKey().String()
	raw, err := e.builder.BuildTransaction(ctx, q, signer)
	if err != nil {
		return failed("", fmt.Errorf("build: %w", err))
	}
	signed, err := solana.SignTransaction(raw, e.keypair)
	if err != nil {
		return failed("", fmt.Errorf("sign: %w", err))
	}

	txid, err := e.SubmitSigned(ctx, signed)
	if err != nil {
		log.Warn("swap failed", zap.String("txid", txid), zap.Error(err))
		return failed(txid, err)
	}

	realized, fee := e.settlement(ctx, txid, signer, q)
	log.Info("swap confirmed",
		zap.String("txid", txid),
		zap.String("realized", realized.String()),
		zap.String("fee", fee.String()))
	return model.TradeResult{
		Status:               model.TradeSuccess,
		TxID:                 txid,
		RealizedOutputAmount: realized,
		FeePaid:              fee,
	}
}

// Transfer moves amount of the reserve unit from the agent wallet to the given address.
func (e *Executor) Transfer(ctx context.Context, to string, amount decimal.Decimal) model.TradeResult {
	if !amount.IsPositive() {
		return failed("", fmt.Errorf("transfer %s: %w", amount, model.ErrInvalidAmount))
	}
	dest, err := solana.ParsePublicKey(to)
	if err != nil {
		return failed("", err)
	}
	if e.opts.DryRun {
		txid := "dryrun-" + uuid.NewString()
		zap.L().Info("dry-run transfer",
			zap.String("component", "executor"),
			zap.String("to", to),
			zap.String("amount", amount.String()),
			zap.String("txid", txid))
		return model.TradeResult{Status: model.TradeSuccess, TxID: txid, RealizedOutputAmount: amount, FeePaid: decimal.Zero}
	}

	lamports := e.reserve.ToBaseUnits(amount)
	if !lamports.IsPositive() {
		return failed("", fmt.Errorf("transfer %s rounds to zero: %w", amount, model.ErrInvalidAmount))
	}
	bh, err := e.chain.GetLatestBlockhash(ctx)
	if err != nil {
		return failed("", fmt.Errorf("blockhash: %w", err))
	}
	raw, err := solana.BuildTransfer(e.keypair, dest, uint64(lamports.IntPart()), bh.Hash)
	if err != nil {
		return failed("", err)
	}
	txid, err := e.SubmitSigned(ctx, raw)
	if err != nil {
		return failed(txid, err)
	}

	fee := decimal.Zero
	if tx, err := e.chain.GetTransaction(ctx, txid); err == nil && tx != nil {
		fee = tx.FeeSOL()
	}
	return model.TradeResult{Status: model.TradeSuccess, TxID: txid, RealizedOutputAmount: amount, FeePaid: fee}
}

// SubmitSigned sends a fully signed transaction and waits, bounded by the confirm timeout,
// until it is confirmed. The signature is returned even when confirmation fails.
func (e *Executor) SubmitSigned(ctx context.Context, raw []byte) (string, error) {
	txid, _ := solana.TransactionSignature(raw)
	sent, err := e.chain.SendTransaction(ctx, raw)
	if err != nil {
		return txid, fmt.Errorf("submit: %w: %w", model.ErrExecutionFailed, err)
	}
	if sent != "" {
		txid = sent
	}

	cctx, cancel := context.WithTimeout(ctx, e.opts.ConfirmTimeout)
	defer cancel()

	if err := e.confirm(cctx, txid); err != nil {
		return txid, fmt.Errorf("confirm %s: %w: %w", txid, model.ErrExecutionFailed, err)
	}
	return txid, nil
}

func (e *Executor) confirm(ctx context.Context, txid string) error {
	if e.confirmer != nil {
		err := e.confirmer.Confirm(ctx, txid)
		if err == nil || errors.Is(err, solana.ErrTransactionFailed) || ctx.Err() != nil {
			return err
		}
		zap.L().Debug("websocket confirmation unavailable, polling",
			zap.String("component", "executor"),
			zap.String("txid", txid),
			zap.Error(err))
	}

	ticker := time.NewTicker(e.opts.PollInterval)
	defer ticker.Stop()
	for {
		st, err := e.chain.GetSignatureStatus(ctx, txid)
		if err == nil && st != nil {
			if st.Failed() {
				return fmt.Errorf("%w: %s", solana.ErrTransactionFailed, string(st.Err))
			}
			if st.Confirmed() {
				return nil
			}
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("not confirmed in time: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}

// settlement reads realized output and fee from the confirmed transaction, falling back
// to the quote's expected output when metadata is unavailable.
func (e *Executor) settlement(ctx context.Context, txid, owner string, q *model.Quote) (decimal.Decimal, decimal.Decimal) {
	tx, err := e.chain.GetTransaction(ctx, txid)
	if err != nil || tx == nil || tx.Meta == nil {
		return q.ExpectedOutputAmount, decimal.Zero
	}
	var realized decimal.Decimal
	if q.OutputUnit.Mint == e.reserve.Mint {
		realized = tx.SignerNativeDelta()
	} else {
		realized = tx.TokenDelta(owner, q.OutputUnit.Mint)
	}
	if !realized.IsPositive() {
		realized = q.ExpectedOutputAmount
	}
	return realized, tx.FeeSOL()
}

func failed(txid string, err error) model.TradeResult {
	if !errors.Is(err, model.ErrExecutionFailed) {
		err = fmt.Errorf("%w: %w", model.ErrExecutionFailed, err)
	}
	return model.TradeResult{Status: model.TradeFailed, TxID: txid, Err: err}
}
