// Package router hands events popped from the bus to the widgets that own them.
package router

import (
	"context"
	"fmt"
	"log/slog"

	"display-hub/bus"
	"display-hub/metrics"
	"display-hub/pkg/lametric"
	"display-hub/pkg/livescore"

	"github.com/goccy/go-json"
)

// Music handles player events.
type Music interface {
	NowPlaying(ctx context.Context, p lametric.NowPlayingPayload)
	SetStatus(p lametric.StatusPayload)
}

// Subscriber handles livescore payloads and returns what it did not claim.
type Subscriber interface {
	Name() lametric.AppName
	OnEvent(ctx context.Context, p livescore.Payload) livescore.Payload
}

// Termo handles sensor readings.
type Termo interface {
	Update(ctx context.Context, r lametric.Reading) bool
}

// Offer handles price readings.
type Offer interface {
	Update(ctx context.Context, o lametric.Offer)
}

// Buttons runs device button commands.
type Buttons interface {
	Press(ctx context.Context, name string) bool
}

// Config lists the widgets events are routed to. Chain is offered livescore
// payloads in order; the catch-all widget goes last.
type Config struct {
	Music   Music
	Termo   Termo
	Offer   Offer
	Buttons Buttons
	Chain   []Subscriber
}

// Router dispatches events by content type.
type Router struct {
	cfg    Config
	logger *slog.Logger
}

// New creates a router.
func New(cfg Config, logger *slog.Logger) *Router {
	return &Router{cfg: cfg, logger: logger}
}

type validator interface {
	Validate() error
}

func decode[T validator](data []byte) (T, error) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return v, fmt.Errorf("decode payload: %w", err)
	}
	if err := v.Validate(); err != nil {
		return v, err
	}
	return v, nil
}

// Dispatch routes ev. Failures are logged and never reach the caller.
func (r *Router) Dispatch(ctx context.Context, ev bus.Event) {
	logger := r.logger.With("event_id", ev.ID, "content_type", ev.Type)

	switch ev.Type {
	case lametric.NowPlaying:
		p, err := decode[lametric.NowPlayingPayload](ev.Payload)
		if err != nil {
			logger.Warn("Dropping event", "error", err)
			return
		}
		if r.cfg.Music != nil {
			r.guard(logger, lametric.Yanko, func() { r.cfg.Music.NowPlaying(ctx, p) })
		}
	case lametric.YankoStatus:
		p, err := decode[lametric.StatusPayload](ev.Payload)
		if err != nil {
			logger.Warn("Dropping event", "error", err)
			return
		}
		if r.cfg.Music != nil {
			r.guard(logger, lametric.Yanko, func() { r.cfg.Music.SetStatus(p) })
		}
	case lametric.LivescoreEvent:
		p, err := livescore.DecodePayload(ev.Payload)
		if err != nil {
			logger.Warn("Dropping event", "error", err)
			return
		}
		r.chain(ctx, logger, p)
	case lametric.Termo:
		p, err := decode[lametric.Reading](ev.Payload)
		if err != nil {
			logger.Warn("Dropping event", "error", err)
			return
		}
		if r.cfg.Termo != nil {
			r.guard(logger, lametric.TermoApp, func() { r.cfg.Termo.Update(ctx, p) })
		}
	case lametric.BestOffer:
		p, err := decode[lametric.Offer](ev.Payload)
		if err != nil {
			logger.Warn("Dropping event", "error", err)
			return
		}
		if r.cfg.Offer != nil {
			r.guard(logger, lametric.Sure, func() { r.cfg.Offer.Update(ctx, p) })
		}
	case lametric.Button:
		p, err := decode[lametric.ButtonPress](ev.Payload)
		if err != nil {
			logger.Warn("Dropping event", "error", err)
			return
		}
		if r.cfg.Buttons != nil {
			r.guard(logger, "buttons", func() { r.cfg.Buttons.Press(ctx, p.Name) })
		}
	default:
		logger.Warn("Unknown content type")
	}
}

// chain offers p to each subscription widget in turn, passing on what it left.
func (r *Router) chain(ctx context.Context, logger *slog.Logger, p livescore.Payload) {
	rest := p
	for _, w := range r.cfg.Chain {
		rest = r.offer(ctx, logger, w, rest)
	}
	if !rest.Empty() {
		logger.Debug("Livescore payload left unclaimed", "events", len(rest.Events), "object", rest.Object != nil)
	}
}

func (r *Router) offer(ctx context.Context, logger *slog.Logger, w Subscriber, p livescore.Payload) (rest livescore.Payload) {
	defer func() {
		if rec := recover(); rec != nil {
			logger.Error("Widget panicked handling event", "widget", w.Name(), "panic", rec)
			metrics.DispatchFailures.WithLabelValues(string(w.Name())).Inc()
			rest = p
		}
	}()
	return w.OnEvent(ctx, p)
}

func (r *Router) guard(logger *slog.Logger, name lametric.AppName, fn func()) {
	defer func() {
		if rec := recover(); rec != nil {
			logger.Error("Widget panicked handling event", "widget", name, "panic", rec)
			metrics.DispatchFailures.WithLabelValues(string(name)).Inc()
		}
	}()
	fn()
}
