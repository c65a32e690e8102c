// Package cron runs the daily auto-subscribe jobs of the subscription widgets.
package cron

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	robfig "github.com/robfig/cron/v3"
)

const (
	retrySuffix = "_retry"
	// minutes past the hour the daily run may start at
	maxJitterMinute = 55
)

// Job is one auto-subscribe target. Key doubles as the job id.
type Job interface {
	Key() string
	AutoSubscribe(ctx context.Context) error
}

// Config tunes the scheduler.
type Config struct {
	Location   *time.Location
	Hour       int
	RetryDelay time.Duration
}

// Scheduler owns a robfig cron instance and the job ids registered on it.
type Scheduler struct {
	cron    *robfig.Cron
	logger  *slog.Logger
	ctx     context.Context // of the running Serve; read by job closures
	entries map[string]robfig.EntryID
	jitter  func() int
	now     func() time.Time
	jobs    []Job
	cfg     Config
	mu      sync.Mutex
}

// New creates a scheduler. Jobs are registered with Add and armed by Serve.
func New(cfg Config, logger *slog.Logger) *Scheduler {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 30 * time.Minute
	}
	return &Scheduler{
		cron: robfig.New(
			robfig.WithLocation(cfg.Location),
			robfig.WithLogger(cronLogger{logger}),
		),
		logger:  logger,
		entries: make(map[string]robfig.EntryID),
		jitter:  func() int { return rand.IntN(maxJitterMinute + 1) },
		now:     time.Now,
		cfg:     cfg,
	}
}

// Add queues a job for registration when Serve starts.
func (s *Scheduler) Add(j Job) {
	s.jobs = append(s.jobs, j)
}

// Serve registers every job, runs each once, and keeps the cron running until ctx is done.
func (s *Scheduler) Serve(ctx context.Context) error {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()

	for _, j := range s.jobs {
		if err := s.Register(j); err != nil {
			return err
		}
	}
	s.cron.Start()
	s.logger.Info("Cron scheduler started", "jobs", len(s.jobs), "hour", s.cfg.Hour)
	for _, j := range s.jobs {
		s.Run(ctx, j)
	}

	<-ctx.Done()
	stopped := s.cron.Stop()
	<-stopped.Done()
	s.logger.Info("Cron scheduler stopped")
	return ctx.Err()
}

func (s *Scheduler) String() string {
	return "cron"
}

// Register arms the daily job for j at the configured hour and a random minute.
// Registering the same key again replaces the earlier entry.
func (s *Scheduler) Register(j Job) error {
	expr := fmt.Sprintf("%d %d * * *", s.jitter(), s.cfg.Hour)
	sched, err := robfig.ParseStandard(expr)
	if err != nil {
		return fmt.Errorf("parse schedule %q: %w", expr, err)
	}
	s.replace(j.Key(), sched, s.runner(j))
	s.logger.Info("Daily job registered", "storage_key", j.Key(), "schedule", expr)
	return nil
}

// Run executes j. A failure arms a one-shot retry after RetryDelay, which re-arms itself
// until the job succeeds.
func (s *Scheduler) Run(ctx context.Context, j Job) {
	key := j.Key()
	if err := j.AutoSubscribe(ctx); err != nil {
		at := s.now().Add(s.cfg.RetryDelay)
		s.logger.Warn("Auto-subscribe failed, retry scheduled",
			"storage_key", key,
			"retry_at", at.Format(time.RFC3339),
			"error", err)
		s.replace(key+retrySuffix, once{at: at}, s.runner(j))
		return
	}
	s.remove(key + retrySuffix)
}

// runner runs j with the context of the current Serve, so entries armed before a
// restart never run with a cancelled context.
func (s *Scheduler) runner(j Job) func() {
	return func() {
		s.mu.Lock()
		ctx := s.ctx
		s.mu.Unlock()
		if ctx == nil {
			ctx = context.Background()
		}
		s.Run(ctx, j)
	}
}

// IDs returns the registered job ids.
func (s *Scheduler) IDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.entries))
	for id := range s.entries {
		ids = append(ids, id)
	}
	return ids
}

func (s *Scheduler) replace(id string, sched robfig.Schedule, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.entries[id]; ok {
		s.cron.Remove(old)
	}
	s.entries[id] = s.cron.Schedule(sched, robfig.FuncJob(fn))
}

func (s *Scheduler) remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.entries[id]; ok {
		s.cron.Remove(old)
		delete(s.entries, id)
	}
}

// once fires a single time at a fixed instant.
type once struct {
	at time.Time
}

// Next returns the zero time after the instant has passed, which robfig never runs.
func (o once) Next(t time.Time) time.Time {
	if t.Before(o.at) {
		return o.at
	}
	return time.Time{}
}

// cronLogger adapts slog to the robfig logger interface.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("Cron "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("Cron "+msg, append(keysAndValues, "error", err)...)
}
