package scheduler

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SwapSentinel/internal/agent"
)

type recordingQueue struct {
	mu   sync.Mutex
	jobs []agent.JobKind
}

func (q *recordingQueue) Enqueue(kind agent.JobKind) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, kind)
	return true
}

func (q *recordingQueue) count(kind agent.JobKind) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := 0
	for _, j := range q.jobs {
		if j == kind {
			n++
		}
	}
	return n
}

func TestRegisterAllSkipsEmptySpecs(t *testing.T) {
	s := NewScheduler(&recordingQueue{})
	require.NoError(t, s.RegisterAll(Specs{Evaluate: "@every 30s", Protocol: "0 0 9 1 * *"}))
	assert.Equal(t, 2, s.Entries())
}

func TestRegisterAllRejectsBadSpec(t *testing.T) {
	s := NewScheduler(&recordingQueue{})
	err := s.RegisterAll(Specs{Evaluate: "every now and then"})
	assert.ErrorContains(t, err, "register evaluate task")
}

func TestSchedulesEnqueueUntilStopped(t *testing.T) {
	q := &recordingQueue{}
	s := NewScheduler(q)
	require.NoError(t, s.RegisterAll(Specs{Evaluate: "* * * * * *"}))

	s.Start()
	s.Start()
	assert.Eventually(t, func() bool { return q.count(agent.JobEvaluate) >= 1 }, 3*time.Second, 50*time.Millisecond)

	s.Stop()
	s.Stop()
	time.Sleep(100 * time.Millisecond) // let a callback already launched finish
	n := q.count(agent.JobEvaluate)
	time.Sleep(1200 * time.Millisecond)
	assert.Equal(t, n, q.count(agent.JobEvaluate))
}
