// Package jobs runs the periodic maintenance tasks of the community service:
// the webhook retry sweep, log retention pruning and expired refresh-token
// purging. Schedules use robfig/cron syntax, including descriptors such as
// "@every 30s" and "@daily". An empty schedule disables the task.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-community/core"
	glog "github.com/goliatone/go-logger/glog"
	"github.com/robfig/cron/v3"
)

const (
	TaskWebhookSweep = "webhooks.retry_due"
	TaskLogPrune     = "logs.prune"
	TaskTokenPurge   = "auth.purge_expired_tokens"

	defaultTaskTimeout = 2 * time.Minute
)

// Sweeper re-attempts webhook deliveries whose retry time has passed.
type Sweeper interface {
	RetryDue(ctx context.Context, limit int) (int, error)
}

// Maintenance is the subset of core.Service the scheduler drives.
type Maintenance interface {
	PruneLogs(ctx context.Context, before time.Time) (int, error)
	PurgeExpiredTokens(ctx context.Context, before time.Time) (int, error)
}

type Scheduler struct {
	config      core.Config
	maintenance Maintenance
	sweeper     Sweeper
	logger      core.Logger
	metrics     core.MetricsRecorder
	now         func() time.Time
	timeout     time.Duration

	mu      sync.Mutex
	cron    *cron.Cron
	cancel  context.CancelFunc
	entries map[string]cron.EntryID
}

type Option func(*Scheduler)

func WithSweeper(sweeper Sweeper) Option {
	return func(s *Scheduler) {
		s.sweeper = sweeper
	}
}

func WithLogger(logger core.Logger) Option {
	return func(s *Scheduler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithMetricsRecorder(recorder core.MetricsRecorder) Option {
	return func(s *Scheduler) {
		s.metrics = recorder
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

// WithTaskTimeout bounds a single task run.
func WithTaskTimeout(timeout time.Duration) Option {
	return func(s *Scheduler) {
		if timeout > 0 {
			s.timeout = timeout
		}
	}
}

func NewScheduler(cfg core.Config, maintenance Maintenance, opts ...Option) (*Scheduler, error) {
	if maintenance == nil {
		return nil, fmt.Errorf("jobs: maintenance service is required")
	}
	s := &Scheduler{
		config:      cfg,
		maintenance: maintenance,
		logger:      glog.Nop(),
		now:         func() time.Time { return time.Now().UTC() },
		timeout:     defaultTaskTimeout,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

// Start registers every enabled task and starts the cron loop. Tasks run
// with a system principal derived from ctx; cancelling ctx or calling Stop
// ends them.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron != nil {
		return fmt.Errorf("jobs: scheduler already started")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	logger := cronLogger{logger: s.logger}
	runner := cron.New(cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)))
	runCtx, cancel := context.WithCancel(core.WithPrincipal(ctx, core.SystemPrincipal()))

	entries := map[string]cron.EntryID{}
	for _, task := range s.tasks() {
		spec := strings.TrimSpace(task.schedule)
		if spec == "" {
			s.logger.Info("scheduled task disabled", "task", task.name)
			continue
		}
		run := task.run
		name := task.name
		id, err := runner.AddFunc(spec, func() { s.execute(runCtx, name, run) })
		if err != nil {
			cancel()
			return fmt.Errorf("jobs: schedule %s %q: %w", name, spec, err)
		}
		entries[name] = id
	}

	runner.Start()
	s.cron = runner
	s.cancel = cancel
	s.entries = entries
	s.logger.Info("scheduler started", "tasks", len(entries))
	return nil
}

// Stop halts the cron loop and waits for running tasks until ctx expires.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	runner, cancel := s.cron, s.cancel
	s.cron, s.cancel, s.entries = nil, nil, nil
	s.mu.Unlock()
	if runner == nil {
		return nil
	}

	done := runner.Stop()
	defer cancel()
	if ctx == nil {
		<-done.Done()
		return nil
	}
	select {
	case <-done.Done():
		s.logger.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Scheduled lists the registered tasks and their next run time.
func (s *Scheduler) Scheduled() map[string]time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]time.Time, len(s.entries))
	if s.cron == nil {
		return out
	}
	for name, id := range s.entries {
		out[name] = s.cron.Entry(id).Next
	}
	return out
}

// RunWebhookSweep retries due deliveries once.
func (s *Scheduler) RunWebhookSweep(ctx context.Context) (int, error) {
	if s.sweeper == nil {
		return 0, nil
	}
	return s.sweeper.RetryDue(ctx, s.config.Webhooks.SweepBatchSize)
}

// RunLogPrune deletes log entries older than the retention window.
func (s *Scheduler) RunLogPrune(ctx context.Context) (int, error) {
	days := s.config.Logs.RetentionDays
	if days <= 0 {
		return 0, nil
	}
	return s.maintenance.PruneLogs(ctx, s.now().AddDate(0, 0, -days))
}

// RunTokenPurge deletes refresh tokens that expired before now.
func (s *Scheduler) RunTokenPurge(ctx context.Context) (int, error) {
	return s.maintenance.PurgeExpiredTokens(ctx, s.now())
}

type task struct {
	name     string
	schedule string
	run      func(context.Context) (int, error)
}

func (s *Scheduler) tasks() []task {
	tasks := []task{
		{name: TaskLogPrune, schedule: s.config.Logs.PruneSchedule, run: s.RunLogPrune},
		{name: TaskTokenPurge, schedule: s.config.Auth.PurgeSchedule, run: s.RunTokenPurge},
	}
	if s.sweeper != nil {
		tasks = append([]task{{name: TaskWebhookSweep, schedule: s.config.Webhooks.SweepSchedule, run: s.RunWebhookSweep}}, tasks...)
	}
	return tasks
}

func (s *Scheduler) execute(ctx context.Context, name string, run func(context.Context) (int, error)) {
	if ctx.Err() != nil {
		return
	}
	startedAt := time.Now()
	taskCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	count, err := run(taskCtx)
	duration := time.Since(startedAt)
	status := "success"
	if err != nil {
		status = "failure"
		if errors.Is(err, context.Canceled) {
			status = "canceled"
		}
	}
	if s.metrics != nil {
		tags := map[string]string{"task": name, "status": status}
		s.metrics.IncCounter(ctx, "community_job_runs_total", 1, tags)
		s.metrics.ObserveHistogram(ctx, "community_job_duration_ms", float64(duration.Milliseconds()), tags)
	}
	if err != nil {
		s.logger.Error("scheduled task failed", "task", name, "duration_ms", duration.Milliseconds(), "error", err.Error())
		return
	}
	s.logger.Debug("scheduled task completed", "task", name, "affected", count, "duration_ms", duration.Milliseconds())
}

// cronLogger routes cron's internal messages through glog.
type cronLogger struct {
	logger core.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	args := append([]any{"error", fmt.Sprint(err)}, keysAndValues...)
	l.logger.Error("cron: "+msg, args...)
}
