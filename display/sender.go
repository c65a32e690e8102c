package display

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"display-hub/metrics"
	"display-hub/pkg/lametric"
)

// ErrQueueFull is returned when the send queue cannot take another call.
var ErrQueueFull = errors.New("display send queue full")

// Outbound is the subset of device calls widgets make.
type Outbound interface {
	Activate(ctx context.Context, pkg, widgetID string) error
	SendModel(ctx context.Context, app lametric.AppName, content lametric.Content) error
	SendNotification(ctx context.Context, n lametric.Notification) error
}

type call struct {
	run  func(ctx context.Context) error
	name string
}

// Sender queues device calls and performs them in order on one worker,
// so a slow device never stalls the rotation tick.
type Sender struct {
	next    Outbound
	logger  *slog.Logger
	queue   chan call
	timeout time.Duration
}

// NewSender creates a sender with room for size pending calls.
func NewSender(next Outbound, size int, timeout time.Duration, logger *slog.Logger) *Sender {
	if size <= 0 {
		size = 64
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Sender{
		next:    next,
		logger:  logger,
		queue:   make(chan call, size),
		timeout: timeout,
	}
}

func (s *Sender) enqueue(name string, run func(ctx context.Context) error) error {
	select {
	case s.queue <- call{name: name, run: run}:
		return nil
	default:
		metrics.OutboundDropped.Inc()
		s.logger.Warn("Dropping device call, queue full", "call", name, "queue_size", cap(s.queue))
		return ErrQueueFull
	}
}

// Activate queues a widget activation.
func (s *Sender) Activate(_ context.Context, pkg, widgetID string) error {
	return s.enqueue("activate "+pkg, func(ctx context.Context) error {
		return s.next.Activate(ctx, pkg, widgetID)
	})
}

// SendModel queues a model push.
func (s *Sender) SendModel(_ context.Context, app lametric.AppName, content lametric.Content) error {
	return s.enqueue("model "+string(app), func(ctx context.Context) error {
		return s.next.SendModel(ctx, app, content)
	})
}

// SendNotification queues a notification.
func (s *Sender) SendNotification(_ context.Context, n lametric.Notification) error {
	return s.enqueue("notification", func(ctx context.Context) error {
		return s.next.SendNotification(ctx, n)
	})
}

// Pending returns the number of queued calls.
func (s *Sender) Pending() int {
	return len(s.queue)
}

// Serve drains the queue until ctx is done.
func (s *Sender) Serve(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			if n := len(s.queue); n > 0 {
				s.logger.Info("Display sender stopping with calls pending", "pending", n)
			}
			return ctx.Err()
		case c := <-s.queue:
			s.perform(ctx, c)
		}
	}
}

func (s *Sender) perform(ctx context.Context, c call) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	start := time.Now()
	if err := c.run(ctx); err != nil {
		s.logger.Warn("Device call failed", "call", c.name, "error", err)
		return
	}
	s.logger.Debug("Device call completed", "call", c.name, "duration_ms", time.Since(start).Milliseconds())
}

func (s *Sender) String() string {
	return fmt.Sprintf("display-sender(%d)", cap(s.queue))
}
