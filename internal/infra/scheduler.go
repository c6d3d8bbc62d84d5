package infra

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"signalhub/pkg/logger"
)

// Job names
const (
	JobLeaderboardRefresh = "leaderboard_refresh"
	JobPriceMonitor       = "price_monitor"
)

// ErrJobRunning is returned by RunNow while the same job is still running.
var ErrJobRunning = errors.New("job is already running")

// JobFunc is a scheduled unit of work.
type JobFunc func(ctx context.Context) error

// JobRecorder counts job outcomes.
type JobRecorder interface {
	RecordJobRun(job string, err error)
}

type job struct {
	name    string
	spec    string
	timeout time.Duration
	fn      JobFunc
	mu      sync.Mutex
}

// Scheduler manages scheduled tasks. A job never overlaps with itself,
// whether fired by cron or by RunNow.
type Scheduler struct {
	cron    *cron.Cron
	jobs    map[string]*job
	metrics JobRecorder
	logger  *logger.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

// NewScheduler creates a new scheduler
func NewScheduler(metrics JobRecorder, log *logger.Logger) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:    cron.New(cron.WithLogger(cron.PrintfLogger(log.Zerolog()))),
		jobs:    make(map[string]*job),
		metrics: metrics,
		logger:  log,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Register adds a job on a cron spec. timeout bounds a single run; zero
// means no bound.
func (s *Scheduler) Register(name, spec string, timeout time.Duration, fn JobFunc) error {
	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("job %q already registered", name)
	}
	j := &job{name: name, spec: spec, timeout: timeout, fn: fn}
	if _, err := s.cron.AddFunc(spec, func() { s.run(j) }); err != nil {
		return fmt.Errorf("failed to schedule %s (%q): %w", name, spec, err)
	}
	s.jobs[name] = j
	return nil
}

// Start starts the scheduler
func (s *Scheduler) Start() {
	s.cron.Start()

	names := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		s.logger.Info("Job scheduled", logger.String("job", name), logger.String("spec", s.jobs[name].spec))
	}
}

// Stop cancels running jobs and waits for them to return.
func (s *Scheduler) Stop() {
	s.logger.Info("Stopping scheduler")
	s.cancel()
	<-s.cron.Stop().Done()
	s.logger.Info("Scheduler stopped")
}

// RunNow runs a registered job synchronously.
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	j, ok := s.jobs[name]
	if !ok {
		return fmt.Errorf("unknown job %q", name)
	}
	if !j.mu.TryLock() {
		return ErrJobRunning
	}
	defer j.mu.Unlock()
	return s.execute(ctx, j)
}

// Jobs lists registered job names
func (s *Scheduler) Jobs() []string {
	names := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s *Scheduler) run(j *job) {
	if !j.mu.TryLock() {
		s.logger.Warn("Skipping job, previous run still active", logger.String("job", j.name))
		return
	}
	defer j.mu.Unlock()
	_ = s.execute(s.ctx, j)
}

func (s *Scheduler) execute(ctx context.Context, j *job) (err error) {
	if j.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.timeout)
		defer cancel()
	}

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job %s panicked: %v", j.name, r)
		}
		if s.metrics != nil {
			s.metrics.RecordJobRun(j.name, err)
		}
		if err != nil {
			s.logger.Error("Job failed", logger.String("job", j.name), logger.Duration("took", time.Since(start)), logger.Error(err))
			return
		}
		s.logger.Debug("Job finished", logger.String("job", j.name), logger.Duration("took", time.Since(start)))
	}()

	return j.fn(ctx)
}
