package rotation

import (
	"context"
	"log/slog"
	"time"
)

// ScreensaverState tells the scheduler which list to rotate.
type ScreensaverState interface {
	ScreensaverActive(now time.Time) bool
}

// Scheduler is the rotation state machine. It is driven by Tick and is not
// safe for concurrent use.
type Scheduler struct {
	normal      *Ring
	screensaver *Ring
	state       ScreensaverState
	logger      *slog.Logger
	now         func() time.Time
	current     *Item
	saving      bool
}

// NewScheduler creates a scheduler over the normal and screensaver lists.
func NewScheduler(normal, screensaver *Ring, state ScreensaverState, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		normal:      normal,
		screensaver: screensaver,
		state:       state,
		logger:      logger,
		now:         time.Now,
	}
}

// Current returns the item being shown, if any.
func (s *Scheduler) Current() *Item {
	return s.current
}

func (s *Scheduler) ring() *Ring {
	if s.saving {
		return s.screensaver
	}
	return s.normal
}

// Tick advances the rotation by at most one step.
func (s *Scheduler) Tick(ctx context.Context) {
	now := s.now()

	if saving := s.state.ScreensaverActive(now); saving != s.saving {
		s.switchMode(ctx, saving, now)
		return
	}

	if s.current == nil || !s.current.Allowed() {
		if s.current != nil && s.current.Active() {
			s.current.Deactivate(ctx)
		}
		s.current = s.ring().Next()
		if s.current == nil {
			s.logger.Debug("Rotation list is empty", "screensaver", s.saving)
			return
		}
	}
	if !s.current.Allowed() {
		return
	}

	if !s.current.Active() {
		s.activate(ctx, s.current, now)
		return
	}
	if s.current.Expired(now) {
		s.current.Deactivate(ctx)
		s.current = nil
	}
}

func (s *Scheduler) switchMode(ctx context.Context, saving bool, now time.Time) {
	if s.current != nil && s.current.Active() {
		s.current.Deactivate(ctx)
	}
	s.saving = saving
	s.current = s.ring().First()
	s.logger.Info("Rotation mode changed", "screensaver", saving)
	if s.current == nil {
		return
	}
	s.activate(ctx, s.current, now)
}

func (s *Scheduler) activate(ctx context.Context, it *Item, now time.Time) {
	if err := it.Activate(ctx, now); err != nil {
		s.logger.Warn("Failed to activate widget", "widget", it.Widget().Name(), "error", err)
		return
	}
	s.logger.Debug("Widget activated", "widget", it.Widget().Name())
}
