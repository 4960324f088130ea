package payout

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"SwapSentinel/internal/ledger"
	"SwapSentinel/internal/model"
)

type mockRail struct{ mock.Mock }

func (m *mockRail) Pay(ctx context.Context, dest model.Destination, amount decimal.Decimal) (string, error) {
	args := m.Called(ctx, dest, amount)
	return args.String(0), args.Error(1)
}

func (m *mockRail) Name() string { return "mock" }

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

var userReserve = []model.Destination{
	{ID: "user", Address: "bc1quser", Share: d("0.6")},
	{ID: "reserve", Address: "bc1qreserve", Share: d("0.4")},
}

func amountIs(s string) any {
	return mock.MatchedBy(func(a decimal.Decimal) bool { return a.Equal(d(s)) })
}

func newDispatcher(t *testing.T, rail Rail, fee string) *Dispatcher {
	t.Helper()
	disp, err := NewDispatcher(rail, userReserve, Options{FeeBuffer: d(fee)})
	require.NoError(t, err)
	return disp
}

func TestNewDispatcherRejectsBadShares(t *testing.T) {
	_, err := NewDispatcher(&mockRail{}, []model.Destination{{ID: "a", Share: d("0.7")}}, Options{})
	assert.ErrorIs(t, err, model.ErrConfigurationInvalid)
	_, err = NewDispatcher(&mockRail{}, nil, Options{})
	assert.ErrorIs(t, err, model.ErrConfigurationInvalid)
}

func TestSplitSumsToNet(t *testing.T) {
	three, err := NewDispatcher(&mockRail{}, []model.Destination{
		{ID: "a", Share: d("0.3333")},
		{ID: "b", Share: d("0.3333")},
		{ID: "c", Share: d("0.3334")},
	}, Options{})
	require.NoError(t, err)

	for _, net := range []string{"30.10", "0.01", "100", "33.337", "999999.99"} {
		parts := three.Split(d(net))
		sum := decimal.Zero
		for _, p := range parts {
			assert.False(t, p.IsNegative())
			sum = sum.Add(p)
		}
		assert.True(t, sum.Equal(d(net)), "net %s split into %v", net, parts)
	}
}

func TestDispatchBelowFeeBufferSkipsEverything(t *testing.T) {
	rail := &mockRail{}
	res := newDispatcher(t, rail, "20").Dispatch(context.Background(), d("20"))

	assert.Equal(t, model.DispatchSkipped, res.Outcome)
	require.Len(t, res.Attempts, 2)
	for _, a := range res.Attempts {
		assert.Equal(t, model.PayoutSkipped, a.Status)
	}
	rail.AssertNotCalled(t, "Pay", mock.Anything, mock.Anything, mock.Anything)
	assert.NoError(t, res.Err())
}

func TestDispatchCompleted(t *testing.T) {
	rail := &mockRail{}
	rail.On("Pay", mock.Anything, userReserve[0], amountIs("18.06")).Return("ord-1", nil)
	rail.On("Pay", mock.Anything, userReserve[1], amountIs("12.04")).Return("ord-2", nil)

	res := newDispatcher(t, rail, "20").Dispatch(context.Background(), d("50.10"))
	assert.Equal(t, model.DispatchCompleted, res.Outcome)
	assert.True(t, res.Allocated().Equal(d("30.10")))
	assert.Equal(t, "ord-1", res.Attempts[0].ExternalReference)
	assert.NotEmpty(t, res.ID)
}

func TestDispatchPartial(t *testing.T) {
	rail := &mockRail{}
	rail.On("Pay", mock.Anything, userReserve[0], mock.Anything).Return("ord-1", nil)
	rail.On("Pay", mock.Anything, userReserve[1], mock.Anything).Return("", errors.New("rail down"))

	res := newDispatcher(t, rail, "0").Dispatch(context.Background(), d("10"))
	assert.Equal(t, model.DispatchPartial, res.Outcome)
	assert.ErrorIs(t, res.Err(), model.ErrPayoutPartialFailure)
	assert.Equal(t, model.PayoutFailed, res.Attempts[1].Status)
	assert.Equal(t, "rail down", res.Attempts[1].Reason)
}

// 60% payout share, $50 threshold, $20 fee buffer: the 167th $0.30 credit triggers a
// dispatch of $50.10 gross, $30.10 net split 60/40.
func TestSettleThresholdScenario(t *testing.T) {
	l, err := ledger.New(d("0.6"), d("50"))
	require.NoError(t, err)
	rail := &mockRail{}
	rail.On("Pay", mock.Anything, userReserve[0], amountIs("18.06")).Return("ord-1", nil)
	rail.On("Pay", mock.Anything, userReserve[1], amountIs("12.04")).Return("ord-2", nil)
	disp := newDispatcher(t, rail, "20")

	for i := 0; i < 166; i++ {
		require.NoError(t, l.Credit(d("0.5")))
		assert.Nil(t, disp.Settle(context.Background(), l, false))
	}
	require.NoError(t, l.Credit(d("0.5")))
	res := disp.Settle(context.Background(), l, false)
	require.NotNil(t, res)

	assert.Equal(t, model.DispatchCompleted, res.Outcome)
	assert.True(t, res.Gross.Equal(d("50.1")))
	assert.True(t, res.Net.Equal(d("30.1")))
	assert.True(t, res.Cleared)
	assert.True(t, l.Pending().IsZero())
	rail.AssertNumberOfCalls(t, "Pay", 2)
}

func TestSettleAllFailedKeepsPending(t *testing.T) {
	l, _ := ledger.New(d("1"), d("10"))
	require.NoError(t, l.Credit(d("40")))
	rail := &mockRail{}
	rail.On("Pay", mock.Anything, mock.Anything, mock.Anything).Return("", errors.New("down"))

	res := newDispatcher(t, rail, "5").Settle(context.Background(), l, false)
	require.NotNil(t, res)
	assert.Equal(t, model.DispatchFailed, res.Outcome)
	assert.False(t, res.Cleared)
	assert.True(t, l.Pending().Equal(d("40")))
}

func TestSettleDust(t *testing.T) {
	l, _ := ledger.New(d("1"), d("100"))
	require.NoError(t, l.Credit(d("12")))
	rail := &mockRail{}

	res := newDispatcher(t, rail, "20").Settle(context.Background(), l, true)
	require.NotNil(t, res)
	assert.Equal(t, model.DispatchSkipped, res.Outcome)
	assert.True(t, res.Cleared)
	assert.True(t, l.Pending().IsZero())

	require.NoError(t, l.Credit(d("12")))
	carry, err := NewDispatcher(rail, userReserve, Options{FeeBuffer: d("20"), CarryForwardDust: true})
	require.NoError(t, err)
	res = carry.Settle(context.Background(), l, true)
	assert.False(t, res.Cleared)
	assert.True(t, l.Pending().Equal(d("12")))
	rail.AssertNotCalled(t, "Pay", mock.Anything, mock.Anything, mock.Anything)
}

func TestSettleNothingPending(t *testing.T) {
	l, _ := ledger.New(d("1"), d("10"))
	assert.Nil(t, newDispatcher(t, &mockRail{}, "0").Settle(context.Background(), l, true))
}

func TestBlockonomicsPay(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/merchant_order", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		var body struct {
			Addr  string `json:"addr"`
			Value int64  `json:"value"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "bc1quser", body.Addr)
		assert.Equal(t, int64(1806), body.Value)
		_, _ = w.Write([]byte(`{"order_id":"abc123"}`))
	}))
	defer srv.Close()

	ref, err := NewBlockonomics(srv.URL, "secret", "", time.Second).Pay(context.Background(), userReserve[0], d("18.06"))
	require.NoError(t, err)
	assert.Equal(t, "abc123", ref)
}

func TestBlockonomicsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := NewBlockonomics(srv.URL, "bad", "", time.Second).Pay(context.Background(), userReserve[0], d("5"))
	assert.Error(t, err)
}
