package infra

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signalhub/pkg/logger"
)

type jobRuns struct {
	mu   sync.Mutex
	runs map[string][]error
}

func (r *jobRuns) RecordJobRun(job string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.runs == nil {
		r.runs = map[string][]error{}
	}
	r.runs[job] = append(r.runs[job], err)
}

func TestSchedulerRunNow(t *testing.T) {
	rec := &jobRuns{}
	s := NewScheduler(rec, logger.Nop())

	calls := 0
	require.NoError(t, s.Register(JobPriceMonitor, "@every 1h", time.Second, func(ctx context.Context) error {
		calls++
		_, ok := ctx.Deadline()
		assert.True(t, ok)
		return nil
	}))
	boom := errors.New("boom")
	require.NoError(t, s.Register(JobLeaderboardRefresh, "@every 1h", 0, func(context.Context) error {
		return boom
	}))

	require.NoError(t, s.RunNow(context.Background(), JobPriceMonitor))
	assert.ErrorIs(t, s.RunNow(context.Background(), JobLeaderboardRefresh), boom)
	assert.Error(t, s.RunNow(context.Background(), "missing"))

	assert.Equal(t, 1, calls)
	assert.Equal(t, []error{nil}, rec.runs[JobPriceMonitor])
	assert.Equal(t, []error{boom}, rec.runs[JobLeaderboardRefresh])
	assert.Equal(t, []string{JobLeaderboardRefresh, JobPriceMonitor}, s.Jobs())
}

func TestSchedulerRejectsBadSpecAndDuplicates(t *testing.T) {
	s := NewScheduler(nil, logger.Nop())
	noop := func(context.Context) error { return nil }

	assert.Error(t, s.Register("bad", "not a spec", 0, noop))
	require.NoError(t, s.Register("ok", "@every 1m", 0, noop))
	assert.Error(t, s.Register("ok", "@every 1m", 0, noop))
}

func TestSchedulerDoesNotOverlap(t *testing.T) {
	s := NewScheduler(nil, logger.Nop())
	started := make(chan struct{})
	release := make(chan struct{})
	require.NoError(t, s.Register("slow", "@every 1h", 0, func(context.Context) error {
		close(started)
		<-release
		return nil
	}))

	done := make(chan error, 1)
	go func() { done <- s.RunNow(context.Background(), "slow") }()
	<-started

	assert.ErrorIs(t, s.RunNow(context.Background(), "slow"), ErrJobRunning)
	close(release)
	require.NoError(t, <-done)
}

func TestSchedulerRecoversPanics(t *testing.T) {
	rec := &jobRuns{}
	s := NewScheduler(rec, logger.Nop())
	require.NoError(t, s.Register("panics", "@every 1h", 0, func(context.Context) error {
		panic("nil map")
	}))

	err := s.RunNow(context.Background(), "panics")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nil map")
	require.Len(t, rec.runs["panics"], 1)
	assert.Error(t, rec.runs["panics"][0])
}
