package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"SwapSentinel/internal/model"
	"SwapSentinel/internal/notifier"
	"SwapSentinel/internal/observability"
	"SwapSentinel/internal/payout"
	"SwapSentinel/internal/protocol"
	"SwapSentinel/internal/recorder"
)

// JobKind names a unit of work processed by the agent worker.
type JobKind string

const (
	JobEvaluate  JobKind = "evaluate"
	JobReplenish JobKind = "replenish"
	JobProtocol  JobKind = "protocol"
	JobWithdraw  JobKind = "withdraw"
)

var (
	ErrQueueFull         = errors.New("job queue full")
	ErrNothingToWithdraw = errors.New("nothing pending")
	ErrProtocolDisabled  = errors.New("monthly protocol not configured")
	ErrUnknownJob        = errors.New("unknown job")
	errStateUnchanged    = errors.New("state unchanged")
)

// Evaluator runs one opportunity tick.
type Evaluator interface {
	Tick(ctx context.Context) model.TickReport
	Peek() (model.Unit, int)
}

// Monitor runs one reserve check.
type Monitor interface {
	Check(ctx context.Context) model.ReplenishReport
	Snapshot() (model.ReserveState, decimal.Decimal)
}

// Ledger is the profit ledger as seen by the agent.
type Ledger interface {
	payout.Ledger
	Snapshot() model.LedgerSnapshot
}

// Settler dispatches the pending ledger amount.
type Settler interface {
	Settle(ctx context.Context, l payout.Ledger, force bool) *model.DispatchResult
}

// Protocol runs the monthly distribution plan.
type Protocol interface {
	Run(ctx context.Context) (*protocol.Execution, error)
}

// Schedule is started and stopped together with the agent.
type Schedule interface {
	Start()
	Stop()
}

// Deps are the collaborators of an Agent. Protocol, Recorder, Notifier and Metrics are optional.
type Deps struct {
	Evaluator Evaluator
	Monitor   Monitor
	Ledger    Ledger
	Settler   Settler
	Protocol  Protocol
	Recorder  recorder.Recorder
	Notifier  notifier.Notifier
	Metrics   *observability.Metrics
}

// Options tune an Agent.
type Options struct {
	QueueSize int
	DryRun    bool
	Wallet    string
}

// Result is the terminal outcome of one job.
type Result struct {
	Kind      JobKind
	Tick      *model.TickReport
	Replenish *model.ReplenishReport
	Dispatch  *model.DispatchResult
	Protocol  *protocol.Execution
	Err       error
}

type job struct {
	kind JobKind
	done chan Result
}

// Agent is the single engine instance. All jobs run on one worker so at most one
// trade is in flight and ledger mutation is serialized.
type Agent struct {
	deps Deps
	opts Options
	jobs chan job

	mu        sync.RWMutex
	running   bool
	startedAt time.Time
	schedules []Schedule

	now func() time.Time
}

// New validates deps and creates an Agent in the stopped state.
func New(deps Deps, opts Options) (*Agent, error) {
	if deps.Evaluator == nil || deps.Monitor == nil || deps.Ledger == nil || deps.Settler == nil {
		return nil, fmt.Errorf("agent needs evaluator, monitor, ledger and settler: %w", model.ErrConfigurationInvalid)
	}
	if deps.Recorder == nil {
		deps.Recorder = recorder.NewNoopRecorder()
	}
	if deps.Notifier == nil {
		deps.Notifier = notifier.Noop{}
	}
	if deps.Metrics == nil {
		deps.Metrics = observability.NewMetrics()
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 8
	}
	return &Agent{
		deps: deps,
		opts: opts,
		jobs: make(chan job, opts.QueueSize),
		now:  time.Now,
	}, nil
}

// Attach registers a schedule that follows the agent's running state.
func (a *Agent) Attach(s Schedule) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.schedules = append(a.schedules, s)
	if a.running {
		s.Start()
	}
}

// Start enters the running state. Starting a running agent changes nothing.
func (a *Agent) Start() model.Status {
	if err := a.setRunning(true); err == nil {
		zap.L().Info("agent started", zap.String("component", "agent"), zap.Bool("dry_run", a.opts.DryRun))
	}
	return a.Status()
}

// Stop leaves the running state and halts the schedules. A job already in flight
// runs to completion. Stopping a stopped agent changes nothing.
func (a *Agent) Stop() model.Status {
	if err := a.setRunning(false); err == nil {
		zap.L().Info("agent stopped", zap.String("component", "agent"))
	}
	return a.Status()
}

func (a *Agent) setRunning(running bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.running == running {
		return errStateUnchanged
	}
	a.running = running
	if running {
		a.startedAt = a.now()
	} else {
		a.startedAt = time.Time{}
	}
	for _, s := range a.schedules {
		if running {
			s.Start()
		} else {
			s.Stop()
		}
	}
	a.deps.Metrics.SetRunning(running)
	return nil
}

// Running reports whether the agent is running.
func (a *Agent) Running() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.running
}

// Status returns a point-in-time view of the agent.
func (a *Agent) Status() model.Status {
	a.mu.RLock()
	running, startedAt := a.running, a.startedAt
	a.mu.RUnlock()

	reserve, rate := a.deps.Monitor.Snapshot()
	candidate, idx := a.deps.Evaluator.Peek()
	s := model.Status{
		Running:       running,
		StartedAt:     startedAt,
		DryRun:        a.opts.DryRun,
		Wallet:        a.opts.Wallet,
		Ledger:        a.deps.Ledger.Snapshot(),
		Reserve:       reserve,
		ReserveRate:   rate,
		RotationIndex: idx,
		Candidate:     candidate.Symbol,
		QueueDepth:    len(a.jobs),
	}
	if running {
		s.Uptime = a.now().Sub(startedAt).Truncate(time.Second).String()
	}
	return s
}

// Enqueue adds a job without blocking. A full queue drops the job with a warning so
// ticks coalesce instead of piling up.
func (a *Agent) Enqueue(kind JobKind) bool {
	return a.enqueue(job{kind: kind}) == nil
}

func (a *Agent) enqueue(j job) error {
	select {
	case a.jobs <- j:
		return nil
	default:
		a.deps.Metrics.JobsDropped.WithLabelValues(string(j.kind)).Inc()
		zap.L().Warn("job queue full, dropping",
			zap.String("component", "agent"),
			zap.String("job", string(j.kind)),
			zap.Int("queue_size", cap(a.jobs)))
		return ErrQueueFull
	}
}

// Submit enqueues a job and waits for its result or for ctx to end. When ctx ends
// first the job still runs; only the wait is abandoned.
func (a *Agent) Submit(ctx context.Context, kind JobKind) (Result, error) {
	j := job{kind: kind, done: make(chan Result, 1)}
	if err := a.enqueue(j); err != nil {
		return Result{Kind: kind}, err
	}
	select {
	case res := <-j.done:
		return res, nil
	case <-ctx.Done():
		return Result{Kind: kind}, ctx.Err()
	}
}

// Run is the worker loop. It returns once ctx is cancelled and the job in flight, if
// any, has finished. Jobs run on a context detached from ctx so shutdown never
// interrupts a submitted transaction.
func (a *Agent) Run(ctx context.Context) error {
	log := zap.L().With(zap.String("component", "agent"))
	log.Info("worker started", zap.Int("queue_size", cap(a.jobs)))
	jobCtx := context.WithoutCancel(ctx)
	for {
		select {
		case <-ctx.Done():
			log.Info("worker stopped")
			return nil
		case j := <-a.jobs:
			res := a.process(jobCtx, j.kind)
			if j.done != nil {
				j.done <- res
			}
		}
	}
}

func (a *Agent) process(ctx context.Context, kind JobKind) Result {
	start := a.now()
	defer func() { a.deps.Metrics.ObserveJob(string(kind), a.now().Sub(start)) }()

	switch kind {
	case JobEvaluate:
		rep := a.evaluate(ctx)
		return Result{Kind: kind, Tick: &rep, Err: rep.Err}
	case JobReplenish:
		rep := a.replenish(ctx)
		return Result{Kind: kind, Replenish: &rep, Err: rep.Err}
	case JobWithdraw:
		return a.withdraw(ctx)
	case JobProtocol:
		return a.runProtocol(ctx)
	default:
		return Result{Kind: kind, Err: fmt.Errorf("%w: %s", ErrUnknownJob, kind)}
	}
}
