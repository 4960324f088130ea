package scheduler

import (
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"SwapSentinel/internal/agent"
)

// Enqueuer accepts jobs without blocking.
type Enqueuer interface {
	Enqueue(kind agent.JobKind) bool
}

// Specs are the cron expressions (with seconds) for each recurring job.
// An empty spec disables that job.
type Specs struct {
	Evaluate  string
	Replenish string
	Protocol  string
}

// Scheduler owns the cron schedules. Cron callbacks only enqueue; the agent worker
// does the work.
type Scheduler struct {
	cron  *cron.Cron
	queue Enqueuer

	mu      sync.Mutex
	started bool
}

// NewScheduler creates a scheduler feeding queue.
func NewScheduler(queue Enqueuer) *Scheduler {
	return &Scheduler{
		cron:  cron.New(cron.WithSeconds()),
		queue: queue,
	}
}

// RegisterAll registers the evaluate, replenish and protocol schedules.
func (s *Scheduler) RegisterAll(specs Specs) error {
	jobs := []struct {
		spec string
		kind agent.JobKind
	}{
		{specs.Evaluate, agent.JobEvaluate},
		{specs.Replenish, agent.JobReplenish},
		{specs.Protocol, agent.JobProtocol},
	}
	for _, j := range jobs {
		if j.spec == "" {
			continue
		}
		kind := j.kind
		if _, err := s.cron.AddFunc(j.spec, func() { s.fire(kind) }); err != nil {
			return fmt.Errorf("register %s task: %w", kind, err)
		}
		zap.L().Info("schedule registered",
			zap.String("component", "scheduler"),
			zap.String("job", string(kind)),
			zap.String("spec", j.spec))
	}
	return nil
}

func (s *Scheduler) fire(kind agent.JobKind) {
	if !s.queue.Enqueue(kind) {
		zap.L().Debug("tick coalesced", zap.String("component", "scheduler"), zap.String("job", string(kind)))
	}
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true
	s.cron.Start()
	zap.L().Info("scheduler started", zap.String("component", "scheduler"))
}

// Stop halts the schedules before their next tick. It does not wait for jobs
// already handed to the agent.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return
	}
	s.started = false
	s.cron.Stop()
	zap.L().Info("scheduler stopped", zap.String("component", "scheduler"))
}

// Entries returns the number of registered schedules.
func (s *Scheduler) Entries() int { return len(s.cron.Entries()) }
