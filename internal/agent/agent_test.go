package agent

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"SwapSentinel/internal/ledger"
	"SwapSentinel/internal/model"
	"SwapSentinel/internal/observability"
	"SwapSentinel/internal/payout"
	"SwapSentinel/internal/protocol"
	"SwapSentinel/internal/recorder"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type fakeEvaluator struct {
	ticks   atomic.Int32
	report  model.TickReport
	release chan struct{} // when set, Tick blocks until closed
	entered chan struct{}
}

func (f *fakeEvaluator) Tick(context.Context) model.TickReport {
	f.ticks.Add(1)
	if f.entered != nil {
		close(f.entered)
	}
	if f.release != nil {
		<-f.release
	}
	return f.report
}

func (f *fakeEvaluator) Peek() (model.Unit, int) { return model.Unit{Symbol: "BONK"}, 1 }

type fakeMonitor struct {
	checks atomic.Int32
	report model.ReplenishReport
}

func (f *fakeMonitor) Check(context.Context) model.ReplenishReport {
	f.checks.Add(1)
	return f.report
}

func (f *fakeMonitor) Snapshot() (model.ReserveState, decimal.Decimal) {
	return model.ReserveState{CurrentBalance: d("0.7"), Threshold: d("0.5")}, d("150")
}

type fakeSettler struct {
	result *model.DispatchResult
	calls  atomic.Int32
}

func (f *fakeSettler) Settle(_ context.Context, l payout.Ledger, force bool) *model.DispatchResult {
	f.calls.Add(1)
	if f.result != nil && f.result.Cleared {
		l.Clear()
	}
	return f.result
}

type fakeSchedule struct{ starts, stops int }

func (f *fakeSchedule) Start() { f.starts++ }
func (f *fakeSchedule) Stop()  { f.stops++ }

type mockRecorder struct{ mock.Mock }

func (m *mockRecorder) RecordTrade(ctx context.Context, evt *recorder.TradeEvent) error {
	return m.Called(ctx, evt).Error(0)
}
func (m *mockRecorder) RecordPayout(ctx context.Context, evt *recorder.PayoutEvent) error {
	return m.Called(ctx, evt).Error(0)
}
func (m *mockRecorder) RecordReplenish(ctx context.Context, evt *recorder.ReplenishEvent) error {
	return m.Called(ctx, evt).Error(0)
}
func (m *mockRecorder) RecordProtocol(ctx context.Context, evt *recorder.ProtocolEvent) error {
	return m.Called(ctx, evt).Error(0)
}
func (m *mockRecorder) Close() error { return nil }

type fakeProtocol struct {
	exec *protocol.Execution
	err  error
}

func (f *fakeProtocol) Run(context.Context) (*protocol.Execution, error) { return f.exec, f.err }

type fixture struct {
	agent    *Agent
	eval     *fakeEvaluator
	monitor  *fakeMonitor
	settler  *fakeSettler
	ledger   *ledger.Ledger
	recorder *mockRecorder
	metrics  *observability.Metrics
}

func newFixture(t *testing.T, queue int) *fixture {
	t.Helper()
	l, err := ledger.New(d("0.6"), d("50"))
	require.NoError(t, err)
	f := &fixture{
		eval:     &fakeEvaluator{report: model.TickReport{Outcome: model.TickBelowMinProfit}},
		monitor:  &fakeMonitor{report: model.ReplenishReport{Outcome: model.ReplenishHealthy}},
		settler:  &fakeSettler{},
		ledger:   l,
		recorder: &mockRecorder{},
		metrics:  observability.NewMetrics(),
	}
	f.agent, err = New(Deps{
		Evaluator: f.eval,
		Monitor:   f.monitor,
		Ledger:    f.ledger,
		Settler:   f.settler,
		Recorder:  f.recorder,
		Metrics:   f.metrics,
	}, Options{QueueSize: queue, Wallet: "Agent111"})
	require.NoError(t, err)
	return f
}

func (f *fixture) runWorker(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = f.agent.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func submit(t *testing.T, a *Agent, kind JobKind) Result {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	res, err := a.Submit(ctx, kind)
	require.NoError(t, err)
	return res
}

func TestNewRequiresCollaborators(t *testing.T) {
	_, err := New(Deps{}, Options{})
	assert.ErrorIs(t, err, model.ErrConfigurationInvalid)
}

func TestStartStopIdempotent(t *testing.T) {
	f := newFixture(t, 4)
	sched := &fakeSchedule{}
	f.agent.Attach(sched)

	first := f.agent.Start()
	second := f.agent.Start()
	assert.True(t, first.Running)
	assert.Equal(t, first.StartedAt, second.StartedAt)
	assert.Equal(t, 1, sched.starts)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Running))

	stopped := f.agent.Stop()
	again := f.agent.Stop()
	assert.False(t, stopped.Running)
	assert.Equal(t, stopped, again)
	assert.Equal(t, 1, sched.stops)
	assert.Equal(t, 0.0, testutil.ToFloat64(f.metrics.Running))
}

func TestStatusReportsCollaborators(t *testing.T) {
	f := newFixture(t, 4)
	require.NoError(t, f.ledger.Credit(d("10")))

	s := f.agent.Status()
	assert.False(t, s.Running)
	assert.Empty(t, s.Uptime)
	assert.Equal(t, "BONK", s.Candidate)
	assert.Equal(t, 1, s.RotationIndex)
	assert.Equal(t, "Agent111", s.Wallet)
	assert.True(t, s.ReserveRate.Equal(d("150")))
	assert.True(t, s.Ledger.PendingDistributionAmount.Equal(d("6")))
}

func TestEvaluateIsIdleWhenStopped(t *testing.T) {
	f := newFixture(t, 4)
	f.runWorker(t)

	res := submit(t, f.agent, JobEvaluate)
	require.NotNil(t, res.Tick)
	assert.Equal(t, model.TickIdle, res.Tick.Outcome)
	assert.Equal(t, int32(0), f.eval.ticks.Load())

	res = submit(t, f.agent, JobReplenish)
	assert.Equal(t, model.ReplenishIdle, res.Replenish.Outcome)
	assert.Equal(t, int32(0), f.monitor.checks.Load())
}

func TestEvaluateRecordsTrade(t *testing.T) {
	f := newFixture(t, 4)
	f.eval.report = model.TickReport{
		Outcome:  model.TickTraded,
		NetValue: d("0.9"),
		Quote:    &model.Quote{InputAmount: d("0.1"), ExpectedOutputAmount: d("11")},
		Trade:    &model.TradeResult{Status: model.TradeSuccess, TxID: "sig"},
	}
	f.recorder.On("RecordTrade", mock.Anything, mock.MatchedBy(func(e *recorder.TradeEvent) bool {
		return e.Kind == "EVALUATE" && e.NetUSD == "0.9" && e.Result.TxID == "sig"
	})).Return(nil).Once()
	f.runWorker(t)
	f.agent.Start()

	res := submit(t, f.agent, JobEvaluate)
	assert.Equal(t, model.TickTraded, res.Tick.Outcome)
	f.recorder.AssertExpectations(t)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Ticks.WithLabelValues("TRADED")))
}

func TestReplenishHealthyIsNotRecorded(t *testing.T) {
	f := newFixture(t, 4)
	f.runWorker(t)
	f.agent.Start()

	res := submit(t, f.agent, JobReplenish)
	assert.Equal(t, model.ReplenishHealthy, res.Replenish.Outcome)
	f.recorder.AssertNotCalled(t, "RecordReplenish", mock.Anything, mock.Anything)
	assert.Equal(t, 150.0, testutil.ToFloat64(f.metrics.ReserveRate))
}

func TestFullQueueDropsJobs(t *testing.T) {
	f := newFixture(t, 1)

	assert.True(t, f.agent.Enqueue(JobEvaluate))
	assert.False(t, f.agent.Enqueue(JobEvaluate))
	_, err := f.agent.Submit(context.Background(), JobWithdraw)
	assert.ErrorIs(t, err, ErrQueueFull)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.JobsDropped.WithLabelValues("evaluate")))
	assert.Equal(t, 1, f.agent.Status().QueueDepth)
}

func TestWithdraw(t *testing.T) {
	f := newFixture(t, 4)
	f.runWorker(t)

	res := submit(t, f.agent, JobWithdraw)
	assert.ErrorIs(t, res.Err, ErrNothingToWithdraw)
	assert.Equal(t, "Nothing pending to withdraw.", f.agent.HandleCommand(context.Background(), "/withdraw"))

	require.NoError(t, f.ledger.Credit(d("100")))
	f.settler.result = &model.DispatchResult{ID: "x", Outcome: model.DispatchCompleted, Cleared: true}
	f.recorder.On("RecordPayout", mock.Anything, mock.MatchedBy(func(e *recorder.PayoutEvent) bool {
		return e.Source == "MANUAL"
	})).Return(errors.New("disk full")).Once()

	res = submit(t, f.agent, JobWithdraw)
	require.NoError(t, res.Err)
	assert.Equal(t, model.DispatchCompleted, res.Dispatch.Outcome)
	assert.True(t, f.ledger.Pending().IsZero())
	f.recorder.AssertExpectations(t)
}

func TestProtocolJob(t *testing.T) {
	f := newFixture(t, 4)
	f.runWorker(t)
	res := submit(t, f.agent, JobProtocol)
	assert.ErrorIs(t, res.Err, ErrProtocolDisabled)

	g := newFixture(t, 4)
	g.agent.deps.Protocol = &fakeProtocol{
		exec: &protocol.Execution{Month: 5, Reinvest: d("1"), TakeHome: d("0"), Txs: map[string]string{"reinvest": "sig"}},
		err:  model.ErrExecutionFailed,
	}
	g.recorder.On("RecordProtocol", mock.Anything, mock.MatchedBy(func(e *recorder.ProtocolEvent) bool {
		return e.Month == 5 && e.Txs["reinvest"] == "sig" && errors.Is(e.Err, model.ErrExecutionFailed)
	})).Return(nil).Once()
	g.runWorker(t)

	res = submit(t, g.agent, JobProtocol)
	assert.ErrorIs(t, res.Err, model.ErrExecutionFailed)
	require.NotNil(t, res.Protocol)
	g.recorder.AssertExpectations(t)
}

func TestRunFinishesInFlightJobBeforeReturning(t *testing.T) {
	f := newFixture(t, 4)
	f.eval.release = make(chan struct{})
	f.eval.entered = make(chan struct{})
	f.agent.Start()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = f.agent.Run(ctx)
		close(done)
	}()

	require.True(t, f.agent.Enqueue(JobEvaluate))
	<-f.eval.entered
	cancel()
	f.agent.Stop()

	select {
	case <-done:
		t.Fatal("worker returned with a job in flight")
	case <-time.After(50 * time.Millisecond):
	}
	close(f.eval.release)
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not return")
	}
	assert.Equal(t, int32(1), f.eval.ticks.Load())
}

func TestHandleCommand(t *testing.T) {
	f := newFixture(t, 4)
	assert.Contains(t, f.agent.HandleCommand(context.Background(), "/start@SwapSentinelBot"), "running")
	assert.True(t, f.agent.Running())
	assert.Contains(t, f.agent.HandleCommand(context.Background(), "/STOP"), "stopped")
	assert.False(t, f.agent.Running())
	assert.Contains(t, f.agent.HandleCommand(context.Background(), "hello"), "/withdraw")
}
