// Package poll refreshes live scores for tracked games.
package poll

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"display-hub/pkg/livescore"
)

const (
	defaultInPlay = time.Minute
	defaultIdle   = 10 * time.Minute
)

// Refresher is a subscription widget whose scores can be refreshed.
// FetchScores runs on the poller; ApplyScores is handed to the display loop.
type Refresher interface {
	Key() string
	InPlay() bool
	FetchScores(ctx context.Context) ([]livescore.LivescoreEvent, bool)
	ApplyScores(ctx context.Context, events []livescore.LivescoreEvent)
}

// Loop runs fn on the goroutine that owns widget state.
type Loop interface {
	Post(ctx context.Context, fn func(ctx context.Context)) error
}

// Monitor handles score polling.
type Monitor struct {
	logger  *slog.Logger
	loop    Loop
	widgets []Refresher
	inPlay  time.Duration
	idle    time.Duration
}

// New creates a new poll monitor.
func New(widgets []Refresher, loop Loop, inPlay, idle time.Duration, logger *slog.Logger) *Monitor {
	if inPlay <= 0 {
		inPlay = defaultInPlay
	}
	if idle <= 0 {
		idle = defaultIdle
	}
	return &Monitor{
		logger:  logger,
		loop:    loop,
		widgets: widgets,
		inPlay:  inPlay,
		idle:    idle,
	}
}

// CheckAll fetches the scores of every widget and queues the merge on the display loop.
func (m *Monitor) CheckAll(ctx context.Context) error {
	start := time.Now()
	m.logger.Debug("Refreshing scores", "widgets", len(m.widgets))

	for _, w := range m.widgets {
		// Check for context cancellation
		select {
		case <-ctx.Done():
			m.logger.Info("Context cancelled, stopping score refresh", "error", ctx.Err())
			return ctx.Err()
		default:
		}
		m.logger.Debug("Refreshing widget scores", "storage_key", w.Key(), "in_play", w.InPlay())
		events, ok := w.FetchScores(ctx)
		if !ok {
			continue
		}
		if err := m.loop.Post(ctx, func(ctx context.Context) { w.ApplyScores(ctx, events) }); err != nil {
			return fmt.Errorf("queue score merge for %s: %w", w.Key(), err)
		}
	}

	m.logger.Debug("Score refresh completed", "widgets", len(m.widgets), "duration", time.Since(start).String())
	return nil
}

// CalculateInterval determines how long to wait before the next refresh.
func CalculateInterval(anyInPlay bool, inPlay, idle time.Duration) (time.Duration, string) {
	if anyInPlay {
		return inPlay, "game in progress"
	}
	return idle, "no game in progress"
}

func (m *Monitor) anyInPlay() bool {
	for _, w := range m.widgets {
		if w.InPlay() {
			return true
		}
	}
	return false
}

// Serve polls until ctx is done.
func (m *Monitor) Serve(ctx context.Context) error {
	for {
		if err := m.CheckAll(ctx); err != nil {
			return err
		}
		interval, reason := CalculateInterval(m.anyInPlay(), m.inPlay, m.idle)
		m.logger.Debug("Next score refresh scheduled", "interval", interval.String(), "reason", reason)

		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func (m *Monitor) String() string {
	return "score-poller"
}
