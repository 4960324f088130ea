// Package observability provides Prometheus metrics for the agent.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"SwapSentinel/internal/model"
)

const namespace = "swap_sentinel"

// Metrics holds every agent metric on its own registry.
type Metrics struct {
	registry *prometheus.Registry

	// Evaluation
	Ticks  *prometheus.CounterVec
	Trades *prometheus.CounterVec

	// Payouts
	Dispatches    *prometheus.CounterVec
	PayoutLegs    *prometheus.CounterVec
	PaidOutUSD    prometheus.Counter
	LedgerTotal   prometheus.Gauge
	LedgerPending prometheus.Gauge

	// Reserve
	Replenishments *prometheus.CounterVec
	ReserveBalance prometheus.Gauge
	ReserveRate    prometheus.Gauge

	// Agent
	Running      prometheus.Gauge
	JobDuration  *prometheus.HistogramVec
	JobsDropped  *prometheus.CounterVec
	ProtocolRuns *prometheus.CounterVec
}

// NewMetrics creates a Metrics instance with a fresh registry carrying the Go and
// process collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,

		Ticks: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "evaluator",
			Name:      "ticks_total",
			Help:      "Evaluation ticks by outcome",
		}, []string{"outcome"}),
		Trades: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "executor",
			Name:      "trades_total",
			Help:      "Executed trades by kind and status",
		}, []string{"kind", "status"}),

		Dispatches: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "payout",
			Name:      "dispatches_total",
			Help:      "Payout dispatches by outcome",
		}, []string{"outcome"}),
		PayoutLegs: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "payout",
			Name:      "legs_total",
			Help:      "Per-destination payout attempts by status",
		}, []string{"destination", "status"}),
		PaidOutUSD: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "payout",
			Name:      "paid_usd_total",
			Help:      "Reference currency successfully paid out",
		}),
		LedgerTotal: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "realized_profit_usd",
			Help:      "Total realized profit since start",
		}),
		LedgerPending: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "pending_distribution_usd",
			Help:      "Profit earmarked for the next payout",
		}),

		Replenishments: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reserve",
			Name:      "checks_total",
			Help:      "Reserve checks by outcome",
		}, []string{"outcome"}),
		ReserveBalance: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "reserve",
			Name:      "balance",
			Help:      "Reserve unit balance seen by the last check",
		}),
		ReserveRate: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "reserve",
			Name:      "rate_usd",
			Help:      "Reserve unit reference rate seen by the last check",
		}),

		Running: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "agent",
			Name:      "running",
			Help:      "1 while the agent is running",
		}),
		JobDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "agent",
			Name:      "job_duration_seconds",
			Help:      "Job execution time",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		}, []string{"job"}),
		JobsDropped: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "agent",
			Name:      "jobs_dropped_total",
			Help:      "Jobs dropped because the queue was full",
		}, []string{"job"}),
		ProtocolRuns: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "protocol",
			Name:      "runs_total",
			Help:      "Monthly protocol runs by status",
		}, []string{"status"}),
	}
}

// Registry exposes the underlying registry for tests and extra collectors.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler returns an HTTP handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveTick(rep model.TickReport) {
	m.Ticks.WithLabelValues(string(rep.Outcome)).Inc()
	if rep.Trade != nil {
		m.Trades.WithLabelValues("evaluate", string(rep.Trade.Status)).Inc()
	}
	if rep.Dispatch != nil {
		m.ObserveDispatch(*rep.Dispatch)
	}
}

func (m *Metrics) ObserveReplenish(rep model.ReplenishReport) {
	m.Replenishments.WithLabelValues(string(rep.Outcome)).Inc()
	if rep.Outcome != model.ReplenishWalletUnavailable {
		m.ReserveBalance.Set(rep.Reserve.CurrentBalance.InexactFloat64())
	}
	if rep.Trade != nil {
		m.Trades.WithLabelValues("replenish", string(rep.Trade.Status)).Inc()
	}
}

func (m *Metrics) ObserveDispatch(d model.DispatchResult) {
	m.Dispatches.WithLabelValues(string(d.Outcome)).Inc()
	for _, a := range d.Attempts {
		m.PayoutLegs.WithLabelValues(a.DestinationID, string(a.Status)).Inc()
		if a.Status == model.PayoutSuccess {
			m.PaidOutUSD.Add(a.AmountRequested.InexactFloat64())
		}
	}
}

func (m *Metrics) ObserveLedger(s model.LedgerSnapshot) {
	m.LedgerTotal.Set(s.TotalRealizedProfit.InexactFloat64())
	m.LedgerPending.Set(s.PendingDistributionAmount.InexactFloat64())
}

func (m *Metrics) ObserveJob(job string, d time.Duration) {
	m.JobDuration.WithLabelValues(job).Observe(d.Seconds())
}

func (m *Metrics) ObserveProtocol(err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.ProtocolRuns.WithLabelValues(status).Inc()
}

func (m *Metrics) SetRunning(running bool) {
	if running {
		m.Running.Set(1)
	} else {
		m.Running.Set(0)
	}
}
