package oracle

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SwapSentinel/internal/model"
)

var (
	sol  = model.Unit{Symbol: "SOL", Mint: "So11111111111111111111111111111111111111112", Decimals: 9, PriceID: "solana"}
	usdc = model.Unit{Symbol: "USDC", Mint: "EPjF", Decimals: 6, Stable: true}
	meme = model.Unit{Symbol: "MEME", Mint: "MemeMint111", Decimals: 6}
)

func geckoServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "usd", r.URL.Query().Get("vs_currencies"))
		switch r.URL.Path {
		case "/simple/price":
			assert.Equal(t, "solana", r.URL.Query().Get("ids"))
			_, _ = w.Write([]byte(`{"solana":{"usd":145.37}}`))
		case "/simple/token_price/solana":
			_, _ = w.Write([]byte(`{"mememint111":{"usd":0.0042}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestCoinGecko_GetRates(t *testing.T) {
	srv := geckoServer(t)
	o := NewCoinGecko(srv.URL, "", "", 5*time.Second)

	rates, err := o.GetRates(context.Background(), []model.Unit{sol, usdc, meme})
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("145.37").Equal(rates["SOL"]))
	assert.True(t, decimal.NewFromInt(1).Equal(rates["USDC"]), "stable without price id is pegged")
	assert.True(t, decimal.RequireFromString("0.0042").Equal(rates["MEME"]))
}

func TestCoinGecko_GetRateUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := NewCoinGecko(srv.URL, "key", "", time.Second).GetRate(context.Background(), sol)
	assert.ErrorIs(t, err, model.ErrOracleUnavailable)
}

func TestCoinGecko_MissingEntry(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	_, err := NewCoinGecko(srv.URL, "", "", time.Second).GetRate(context.Background(), sol)
	assert.ErrorIs(t, err, model.ErrOracleUnavailable)
}

func TestStatic(t *testing.T) {
	o := NewStatic(map[string]float64{"SOL": 100})
	r, err := o.GetRate(context.Background(), sol)
	require.NoError(t, err)
	assert.Equal(t, "100", r.String())

	_, err = o.GetRate(context.Background(), meme)
	assert.ErrorIs(t, err, model.ErrOracleUnavailable)

	o.Set("MEME", decimal.RequireFromString("0.5"))
	rates, err := o.GetRates(context.Background(), []model.Unit{sol, usdc, meme})
	require.NoError(t, err)
	assert.Len(t, rates, 3)
}
