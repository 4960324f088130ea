package recorder

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"SwapSentinel/internal/model"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

var (
	sol  = model.Unit{Symbol: "SOL", Decimals: 9}
	usdc = model.Unit{Symbol: "USDC", Decimals: 6, Stable: true}
)

func sampleTrade() *TradeEvent {
	return &TradeEvent{
		Kind: "EVALUATE",
		Quote: &model.Quote{
			InputUnit: sol, OutputUnit: usdc,
			InputAmount: d("0.1"), ExpectedOutputAmount: d("10.5"), PriceImpact: d("0.001"),
		},
		Result: model.TradeResult{Status: model.TradeSuccess, TxID: "sig1", RealizedOutputAmount: d("10.49"), FeePaid: d("0.000005")},
		NetUSD: "0.49",
	}
}

func sampleDispatch() *PayoutEvent {
	return &PayoutEvent{
		Source: "THRESHOLD",
		Dispatch: model.DispatchResult{
			ID: "5f1d7f3e-3f6b-4d0f-9d57-1d2a3b4c5d6e", Gross: d("50.1"), FeeBuffer: d("20"), Net: d("30.1"),
			Outcome: model.DispatchPartial, Cleared: true,
			Attempts: []model.PayoutAttempt{
				{DestinationID: "user", AmountRequested: d("18.06"), Status: model.PayoutSuccess, ExternalReference: "ord-1"},
				{DestinationID: "reserve", AmountRequested: d("12.04"), Status: model.PayoutFailed, Reason: "timeout"},
			},
		},
	}
}

func sampleReplenish() *ReplenishEvent {
	return &ReplenishEvent{Report: model.ReplenishReport{
		Outcome: model.ReplenishPartialTopUp,
		Reserve: model.ReserveState{CurrentBalance: d("0.3"), Threshold: d("0.5"), TopUpAmount: d("0.2")},
		Selection: &model.Selection{
			Holding:  model.ValuedHolding{Holding: model.Holding{Unit: usdc, Quantity: d("15")}},
			Quantity: d("15"),
		},
		Trade: &model.TradeResult{Status: model.TradeSuccess, TxID: "sig2"},
	}}
}

func TestSQLiteRecorder(t *testing.T) {
	r, err := NewSQLiteRecorder(filepath.Join(t.TempDir(), "data", "agent.db"))
	require.NoError(t, err)
	defer r.Close()
	ctx := context.Background()

	require.NoError(t, r.RecordTrade(ctx, sampleTrade()))
	require.NoError(t, r.RecordTrade(ctx, &TradeEvent{Kind: "REPLENISH",
		Result: model.TradeResult{Status: model.TradeFailed, Err: model.ErrExecutionFailed}}))
	require.NoError(t, r.RecordPayout(ctx, sampleDispatch()))
	require.NoError(t, r.RecordReplenish(ctx, sampleReplenish()))
	require.NoError(t, r.RecordProtocol(ctx, &ProtocolEvent{Month: 2, Reinvest: "2", TakeHome: "1000",
		Txs: map[string]string{"reinvest": "sig3"}, Err: errors.New("take home: payout failed")}))

	var trades int
	require.NoError(t, r.db.QueryRow(`SELECT COUNT(*) FROM trades`).Scan(&trades))
	assert.Equal(t, 2, trades)

	var net, expected string
	require.NoError(t, r.db.QueryRow(`SELECT net_usd, expected_output FROM trades WHERE kind = 'EVALUATE'`).Scan(&net, &expected))
	assert.Equal(t, "0.49", net)
	assert.Equal(t, "10.5", expected)

	var failedErr string
	require.NoError(t, r.db.QueryRow(`SELECT error FROM trades WHERE kind = 'REPLENISH'`).Scan(&failedErr))
	assert.Equal(t, model.ErrExecutionFailed.Error(), failedErr)

	var attempts int
	require.NoError(t, r.db.QueryRow(`SELECT COUNT(*) FROM payout_attempts WHERE dispatch_id = ?`,
		sampleDispatch().Dispatch.ID).Scan(&attempts))
	assert.Equal(t, 2, attempts)

	var source, quantity string
	require.NoError(t, r.db.QueryRow(`SELECT source, quantity FROM replenishments`).Scan(&source, &quantity))
	assert.Equal(t, "USDC", source)
	assert.Equal(t, "15", quantity)

	var txs string
	require.NoError(t, r.db.QueryRow(`SELECT txs FROM protocol_runs WHERE month = 2`).Scan(&txs))
	assert.JSONEq(t, `{"reinvest":"sig3"}`, txs)
}

func TestSQLiteRecorderReopenKeepsHistory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agent.db")
	r, err := NewSQLiteRecorder(path)
	require.NoError(t, err)
	require.NoError(t, r.RecordTrade(context.Background(), sampleTrade()))
	require.NoError(t, r.Close())

	r, err = NewSQLiteRecorder(path)
	require.NoError(t, err)
	defer r.Close()
	var n int
	require.NoError(t, r.db.QueryRow(`SELECT COUNT(*) FROM trades`).Scan(&n))
	assert.Equal(t, 1, n)
}

func TestPostgresRecorder(t *testing.T) {
	if testing.Short() {
		t.Skip("postgres container test skipped in short mode")
	}
	ctx := context.Background()

	container, err := postgres.Run(ctx, "postgres:15-alpine",
		postgres.WithDatabase("agent"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		t.Skipf("docker unavailable: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	r, err := NewPostgresRecorder(ctx, dsn)
	require.NoError(t, err)
	defer r.Close()

	require.NoError(t, r.RecordTrade(ctx, sampleTrade()))
	require.NoError(t, r.RecordPayout(ctx, sampleDispatch()))
	require.NoError(t, r.RecordReplenish(ctx, sampleReplenish()))
	require.NoError(t, r.RecordProtocol(ctx, &ProtocolEvent{Month: 3, Reinvest: "0", TakeHome: "0", Txs: map[string]string{}}))

	var attempts int
	require.NoError(t, r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM payout_attempts`).Scan(&attempts))
	assert.Equal(t, 2, attempts)

	var net string
	require.NoError(t, r.pool.QueryRow(ctx, `SELECT net_usd::text FROM trades`).Scan(&net))
	assert.Equal(t, "0.49", net)

	// migrations are idempotent
	again, err := NewPostgresRecorder(ctx, dsn)
	require.NoError(t, err)
	require.NoError(t, again.Close())
}
