package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/mr-tron/base58"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"SwapSentinel/internal/model"
	"SwapSentinel/internal/solana"
)

type mockBuilder struct{ mock.Mock }

func (m *mockBuilder) BuildTransaction(ctx context.Context, q *model.Quote, signer string) ([]byte, error) {
	args := m.Called(ctx, q, signer)
	raw, _ := args.Get(0).([]byte)
	return raw, args.Error(1)
}

type mockChain struct{ mock.Mock }

func (m *mockChain) SendTransaction(ctx context.Context, raw []byte) (string, error) {
	args := m.Called(ctx, raw)
	return args.String(0), args.Error(1)
}

func (m *mockChain) GetSignatureStatus(ctx context.Context, sig string) (*solana.SignatureStatus, error) {
	args := m.Called(ctx, sig)
	st, _ := args.Get(0).(*solana.SignatureStatus)
	return st, args.Error(1)
}

func (m *mockChain) GetTransaction(ctx context.Context, sig string) (*solana.Transaction, error) {
	args := m.Called(ctx, sig)
	tx, _ := args.Get(0).(*solana.Transaction)
	return tx, args.Error(1)
}

func (m *mockChain) GetLatestBlockhash(ctx context.Context) (solana.Blockhash, error) {
	args := m.Called(ctx)
	return args.Get(0).(solana.Blockhash), args.Error(1)
}

type mockConfirmer struct{ mock.Mock }

func (m *mockConfirmer) Confirm(ctx context.Context, sig string) error {
	return m.Called(ctx, sig).Error(0)
}

var (
	sol  = model.Unit{Symbol: "SOL", Mint: "So11111111111111111111111111111111111111112", Decimals: 9}
	usdc = model.Unit{Symbol: "USDC", Mint: "mintUSDC", Decimals: 6}
)

func keypair(t *testing.T, fill byte) *solana.Keypair {
	t.Helper()
	kp, err := solana.KeypairFromSeed(bytes.Repeat([]byte{fill}, 32))
	require.NoError(t, err)
	return kp
}

func blockhash() string { return base58.Encode(bytes.Repeat([]byte{9}, 32)) }

func testQuote() *model.Quote {
	return &model.Quote{
		InputUnit:            sol,
		OutputUnit:           usdc,
		InputAmount:          decimal.RequireFromString("0.1"),
		ExpectedOutputAmount: decimal.RequireFromString("10.05"),
		RouteHandle:          json.RawMessage(`{}`),
	}
}

// routerTx stands in for the router's payload: any transaction naming kp as fee payer.
func routerTx(t *testing.T, kp *solana.Keypair) []byte {
	raw, err := solana.BuildTransfer(kp, keypair(t, 99).PublicKey(), 1, blockhash())
	require.NoError(t, err)
	return raw
}

func TestExecute_DryRun(t *testing.T) {
	e, err := New(nil, nil, nil, nil, sol, Options{DryRun: true})
	require.NoError(t, err)

	res := e.Execute(context.Background(), testQuote())
	assert.True(t, res.OK())
	assert.True(t, strings.HasPrefix(res.TxID, "dryrun-"))
	assert.Equal(t, "10.05", res.RealizedOutputAmount.String())
}

func TestNew_RequiresKeypairWhenLive(t *testing.T) {
	_, err := New(nil, nil, nil, nil, sol, Options{})
	assert.ErrorIs(t, err, model.ErrConfigurationInvalid)
}

func TestExecute_Success(t *testing.T) {
	kp := keypair(t, 1)
	owner := kp.PublicKey().String()
	builder := &mockBuilder{}
	chain := &mockChain{}
	confirmer := &mockConfirmer{}

	builder.On("BuildTransaction", mock.Anything, mock.Anything, owner).Return(routerTx(t, kp), nil)
	chain.On("SendTransaction", mock.Anything, mock.Anything).Return("sig1", nil)
	confirmer.On("Confirm", mock.Anything, "sig1").Return(nil)
	chain.On("GetTransaction", mock.Anything, "sig1").Return(&solana.Transaction{Meta: &solana.TxMeta{
		Fee: 5000,
		PostTokenBalances: []solana.TxTokenBalance{
			{Mint: "mintUSDC", Owner: owner, UITokenAmount: solana.TokenAmount{Amount: "10040000", Decimals: 6}},
		},
	}}, nil)

	e, err := New(builder, chain, confirmer, kp, sol, Options{ConfirmTimeout: time.Second})
	require.NoError(t, err)
	res := e.Execute(context.Background(), testQuote())

	require.True(t, res.OK(), "err: %v", res.Err)
	assert.Equal(t, "sig1", res.TxID)
	assert.Equal(t, "10.04", res.RealizedOutputAmount.String())
	assert.Equal(t, "0.000005", res.FeePaid.String())
	chain.AssertNumberOfCalls(t, "SendTransaction", 1)
}

func TestExecute_SubmitFailureIsNotRetried(t *testing.T) {
	kp := keypair(t, 1)
	builder := &mockBuilder{}
	chain := &mockChain{}
	builder.On("BuildTransaction", mock.Anything, mock.Anything, mock.Anything).Return(routerTx(t, kp), nil)
	chain.On("SendTransaction", mock.Anything, mock.Anything).Return("", errors.New("blockhash not found"))

	e, err := New(builder, chain, nil, kp, sol, Options{})
	require.NoError(t, err)
	res := e.Execute(context.Background(), testQuote())

	assert.False(t, res.OK())
	assert.ErrorIs(t, res.Err, model.ErrExecutionFailed)
	assert.NotEmpty(t, res.TxID, "signature is known before submission")
	chain.AssertNumberOfCalls(t, "SendTransaction", 1)
}

func TestExecute_BuildFailure(t *testing.T) {
	builder := &mockBuilder{}
	builder.On("BuildTransaction", mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("stale quote"))

	e, err := New(builder, &mockChain{}, nil, keypair(t, 1), sol, Options{})
	require.NoError(t, err)
	res := e.Execute(context.Background(), testQuote())
	assert.ErrorIs(t, res.Err, model.ErrExecutionFailed)
	assert.Empty(t, res.TxID)
}

func TestExecute_ConfirmTimeoutFallsBackToPolling(t *testing.T) {
	kp := keypair(t, 1)
	builder := &mockBuilder{}
	chain := &mockChain{}
	confirmer := &mockConfirmer{}
	builder.On("BuildTransaction", mock.Anything, mock.Anything, mock.Anything).Return(routerTx(t, kp), nil)
	chain.On("SendTransaction", mock.Anything, mock.Anything).Return("sig2", nil)
	confirmer.On("Confirm", mock.Anything, "sig2").Return(errors.New("dial refused"))
	chain.On("GetSignatureStatus", mock.Anything, "sig2").Return(nil, nil)

	e, err := New(builder, chain, confirmer, kp, sol, Options{ConfirmTimeout: 50 * time.Millisecond, PollInterval: 10 * time.Millisecond})
	require.NoError(t, err)
	res := e.Execute(context.Background(), testQuote())

	assert.False(t, res.OK())
	assert.ErrorIs(t, res.Err, model.ErrExecutionFailed)
	assert.ErrorIs(t, res.Err, context.DeadlineExceeded)
	assert.Equal(t, "sig2", res.TxID)
}

func TestExecute_OnChainError(t *testing.T) {
	kp := keypair(t, 1)
	builder := &mockBuilder{}
	chain := &mockChain{}
	builder.On("BuildTransaction", mock.Anything, mock.Anything, mock.Anything).Return(routerTx(t, kp), nil)
	chain.On("SendTransaction", mock.Anything, mock.Anything).Return("sig3", nil)
	chain.On("GetSignatureStatus", mock.Anything, "sig3").Return(&solana.SignatureStatus{
		Err: json.RawMessage(`{"InstructionError":[2,{"Custom":6001}]}`), ConfirmationStatus: "confirmed",
	}, nil)

	e, err := New(builder, chain, nil, kp, sol, Options{PollInterval: time.Millisecond})
	require.NoError(t, err)
	res := e.Execute(context.Background(), testQuote())
	assert.ErrorIs(t, res.Err, solana.ErrTransactionFailed)
}

func TestTransfer(t *testing.T) {
	kp := keypair(t, 1)
	dest := keypair(t, 2).PublicKey().String()
	chain := &mockChain{}
	chain.On("GetLatestBlockhash", mock.Anything).Return(solana.Blockhash{Hash: blockhash()}, nil)
	chain.On("SendTransaction", mock.Anything, mock.Anything).Return("sig4", nil)
	chain.On("GetSignatureStatus", mock.Anything, "sig4").Return(&solana.SignatureStatus{ConfirmationStatus: "finalized"}, nil)
	chain.On("GetTransaction", mock.Anything, "sig4").Return(&solana.Transaction{Meta: &solana.TxMeta{Fee: 5000}}, nil)

	e, err := New(nil, chain, nil, kp, sol, Options{PollInterval: time.Millisecond})
	require.NoError(t, err)
	res := e.Transfer(context.Background(), dest, decimal.RequireFromString("0.25"))
	require.True(t, res.OK(), "err: %v", res.Err)
	assert.Equal(t, "sig4", res.TxID)
	assert.Equal(t, "0.000005", res.FeePaid.String())

	res = e.Transfer(context.Background(), dest, decimal.Zero)
	assert.ErrorIs(t, res.Err, model.ErrInvalidAmount)
	res = e.Transfer(context.Background(), "bad!", decimal.NewFromInt(1))
	assert.ErrorIs(t, res.Err, solana.ErrInvalidKey)
}
