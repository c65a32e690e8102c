package rotation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"display-hub/bus"
)

// Source yields events, waiting at most timeout for one.
type Source interface {
	Pop(ctx context.Context, timeout time.Duration) (bus.Event, bool, error)
}

// Dispatcher hands an event to the widgets.
type Dispatcher interface {
	Dispatch(ctx context.Context, ev bus.Event)
}

// Engine is the single loop that drains events and ticks the rotation, so widget
// state is only ever mutated from one goroutine. Other services hand work to it with Post.
type Engine struct {
	source    Source
	router    Dispatcher
	scheduler *Scheduler
	logger    *slog.Logger
	posted    chan func(context.Context)
	tick      time.Duration
}

const postedBuffer = 16

// NewEngine creates the display loop.
func NewEngine(source Source, router Dispatcher, scheduler *Scheduler, tick time.Duration, logger *slog.Logger) *Engine {
	if tick <= 0 {
		tick = 150 * time.Millisecond
	}
	return &Engine{
		source:    source,
		router:    router,
		scheduler: scheduler,
		logger:    logger,
		posted:    make(chan func(context.Context), postedBuffer),
		tick:      tick,
	}
}

// Serve runs until ctx is done or the event source closes.
func (e *Engine) Serve(ctx context.Context) error {
	e.logger.Info("Display engine started", "tick", e.tick.String())
	for {
		ev, ok, err := e.source.Pop(ctx, e.tick)
		if err != nil {
			if ctx.Err() != nil {
				e.logger.Info("Display engine stopping")
				return ctx.Err()
			}
			return fmt.Errorf("pop event: %w", err)
		}
		if ok {
			e.router.Dispatch(ctx, ev)
		}
		e.runPosted(ctx)
		e.scheduler.Tick(ctx)
	}
}

// Post queues fn to run on the engine goroutine, waiting while the queue is full.
func (e *Engine) Post(ctx context.Context, fn func(ctx context.Context)) error {
	select {
	case e.posted <- fn:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Engine) runPosted(ctx context.Context) {
	for {
		select {
		case fn := <-e.posted:
			fn(ctx)
		default:
			return
		}
	}
}

func (e *Engine) String() string {
	return "display-engine"
}
