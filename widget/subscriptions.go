package widget

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"display-hub/metrics"
	"display-hub/pkg/lametric"
	"display-hub/pkg/livescore"
	"display-hub/subscriptions"
)

// ScopeKind is what a subscription widget follows.
type ScopeKind int

const (
	// All claims whatever nobody else did.
	All ScopeKind = iota
	// League follows one competition.
	League
	// Team follows one club in every competition.
	Team
)

// Scope is the domain of a subscription widget.
type Scope struct {
	Kind ScopeKind
	ID   int
}

func (s Scope) String() string {
	switch s.Kind {
	case League:
		return fmt.Sprintf("league:%d", s.ID)
	case Team:
		return fmt.Sprintf("team:%d", s.ID)
	default:
		return "all"
	}
}

func (s Scope) claims(leagueID, homeID, awayID int) bool {
	switch s.Kind {
	case League:
		return leagueID == s.ID
	case Team:
		return homeID == s.ID || awayID == s.ID
	default:
		return true
	}
}

// Canceller cancels upstream subscription jobs without blocking.
type Canceller interface {
	Cancel(sub livescore.SubscriptionEvent)
}

// Schedules returns upcoming games.
type Schedules interface {
	LeagueGames(ctx context.Context, leagueID int) ([]livescore.Game, error)
	TeamGames(ctx context.Context, teamID int) ([]livescore.Game, error)
}

// Subscriber asks upstream to push events for a game.
type Subscriber interface {
	Subscribe(ctx context.Context, game livescore.Game) error
}

// SubscriptionConfig wires a subscription widget.
type SubscriptionConfig struct {
	Store      *subscriptions.Store
	Canceller  Canceller
	Schedules  Schedules
	Subscriber Subscriber
	Live       *LiveGames
	Location   *time.Location
	Scope      Scope
	Expiry     time.Duration
}

// Subscriptions is a widget showing one frame per tracked game.
type Subscriptions struct {
	Base
	store      *subscriptions.Store
	canceller  Canceller
	schedules  Schedules
	subscriber Subscriber
	live       *LiveGames
	loc        *time.Location
	now        func() time.Time
	scope      Scope
	expiry     time.Duration
}

// NewSubscriptions creates a subscription widget.
func NewSubscriptions(app lametric.AppName, ref Ref, out Outbound, cfg SubscriptionConfig, logger *slog.Logger) *Subscriptions {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.Expiry <= 0 {
		cfg.Expiry = 4 * time.Hour
	}
	if cfg.Live == nil {
		cfg.Live = &LiveGames{}
	}
	w := &Subscriptions{
		Base:       NewBase(app, ref, out, logger),
		store:      cfg.Store,
		canceller:  cfg.Canceller,
		schedules:  cfg.Schedules,
		subscriber: cfg.Subscriber,
		live:       cfg.Live,
		loc:        cfg.Location,
		now:        time.Now,
		scope:      cfg.Scope,
		expiry:     cfg.Expiry,
	}
	w.logger = w.logger.With("scope", cfg.Scope.String())
	return w
}

// Store returns the widget's subscription store.
func (w *Subscriptions) Store() *subscriptions.Store {
	return w.store
}

// Key is the storage key of the widget's store.
func (w *Subscriptions) Key() string {
	return w.store.Key()
}

// Duration scales base by the number of tracked games.
func (w *Subscriptions) Duration(base int) int {
	return w.store.Len() * base
}

// Hidden reports an empty store. The team widget stays up while games are live.
func (w *Subscriptions) Hidden() bool {
	if w.scope.Kind == Team {
		return w.store.Len() == 0 && !w.live.Live()
	}
	return w.store.Len() == 0
}

// InPlay reports whether any tracked game is running.
func (w *Subscriptions) InPlay() bool {
	for _, sub := range w.store.All() {
		if sub.InProgress() {
			return true
		}
	}
	return false
}

// OnShow sweeps expired games out of the store.
func (w *Subscriptions) OnShow(ctx context.Context) {
	now := w.now()
	var expired []string
	for _, sub := range w.store.All() {
		w.live.Toggle(sub.InProgress())
		if sub.IsExpired(now, w.expiry) {
			expired = append(expired, sub.ID)
		}
	}
	if len(expired) == 0 {
		return
	}
	for _, id := range expired {
		if err := w.store.Delete(ctx, id); err != nil {
			w.logger.Error("Failed to delete expired subscription", "id", id, "error", err)
		}
	}
	w.logger.Info("Expired subscriptions removed", "count", len(expired))
	w.UpdateFrames(ctx)
}

// UpdateFrames pushes one frame per tracked game to the device.
func (w *Subscriptions) UpdateFrames(ctx context.Context) {
	subs := w.store.All()
	frames := make([]lametric.Frame, 0, len(subs))
	for _, sub := range subs {
		frames = append(frames, sub.Frame(w.loc))
	}
	w.sendModel(ctx, frames)
}

// OnEvent handles the part of p that belongs to this widget and returns the rest.
func (w *Subscriptions) OnEvent(ctx context.Context, p livescore.Payload) livescore.Payload {
	if p.Object != nil {
		if !w.claimsEnvelope(p.Object) {
			return p
		}
		w.onEnvelope(ctx, p.Object)
		return livescore.Payload{}
	}

	// match events follow the store that holds the game; only the catch-all takes strays
	var mine, rest []livescore.MatchEvent
	for _, ev := range p.Events {
		if w.store.Has(ev.ID) || w.scope.Kind == All {
			mine = append(mine, ev)
		} else {
			rest = append(rest, ev)
		}
	}
	if len(mine) > 0 {
		w.onMatchEvents(ctx, mine)
	}
	return livescore.Payload{Events: rest}
}

func (w *Subscriptions) claimsEnvelope(env *livescore.Envelope) bool {
	if w.scope.claims(env.LeagueID, env.HomeTeamID, env.AwayTeamID) {
		return true
	}
	if env.ID != "" && w.store.Has(env.ID) {
		return true
	}
	return env.JobID != "" && w.store.HasJob(livescore.CancelJobEvent{JobID: env.JobID})
}

func (w *Subscriptions) onEnvelope(ctx context.Context, env *livescore.Envelope) {
	action, err := livescore.ParseAction(env.Action)
	if err != nil {
		w.logger.Debug("Ignoring envelope", "action", env.Action, "error", err)
		return
	}
	switch action {
	case livescore.Subscribed:
		sub, err := env.Subscription()
		if err != nil {
			w.logger.Warn("Invalid subscription event", "error", err)
			return
		}
		w.onSubscribed(ctx, sub)
	case livescore.Unsubscribed:
		sub, err := env.Subscription()
		if err != nil {
			w.logger.Warn("Invalid unsubscribe event", "error", err)
			return
		}
		w.onUnsubscribed(ctx, sub)
	case livescore.CancelJob:
		c, err := env.CancelJob()
		if err != nil {
			w.logger.Warn("Invalid cancel job event", "error", err)
			return
		}
		w.onCancelJob(ctx, c)
	default:
		w.logger.Debug("Ignoring envelope action", "action", action)
	}
}

func (w *Subscriptions) onSubscribed(ctx context.Context, sub livescore.SubscriptionEvent) {
	if err := w.store.Set(ctx, sub); err != nil {
		w.logger.Error("Failed to store subscription", "id", sub.ID, "error", err)
	}
	w.logger.Info("Subscription added", "id", sub.ID, "event", sub.EventName, "start_time", sub.StartTime.Format(time.RFC3339))
	w.UpdateFrames(ctx)
}

func (w *Subscriptions) onUnsubscribed(ctx context.Context, sub livescore.SubscriptionEvent) {
	if err := w.store.Delete(ctx, sub.ID); err != nil {
		w.logger.Error("Failed to delete subscription", "id", sub.ID, "error", err)
	}
	w.logger.Info("Subscription removed", "id", sub.ID)
	w.UpdateFrames(ctx)
}

func (w *Subscriptions) onCancelJob(ctx context.Context, c livescore.CancelJobEvent) {
	matched := w.store.ByJob(c)
	if len(matched) == 0 {
		w.logger.Debug("No subscription for cancelled job", "job_id", c.JobID)
		return
	}
	for _, sub := range matched {
		if err := w.store.Delete(ctx, sub.ID); err != nil {
			w.logger.Error("Failed to delete cancelled subscription", "id", sub.ID, "error", err)
		}
	}
	w.logger.Info("Cancelled job removed", "job_id", c.JobID, "subscriptions", len(matched))
	w.UpdateFrames(ctx)
}

func (w *Subscriptions) onMatchEvents(ctx context.Context, events []livescore.MatchEvent) {
	for _, ev := range events {
		w.onMatchEvent(ctx, ev)
	}
	w.UpdateFrames(ctx)
}

func (w *Subscriptions) onMatchEvent(ctx context.Context, ev livescore.MatchEvent) {
	var fx Effects
	var applyErr error
	changed, err := w.store.Update(ctx, ev.ID, func(sub livescore.SubscriptionEvent) (livescore.SubscriptionEvent, bool) {
		var applied bool
		fx, applied, applyErr = Apply(sub, ev)
		return fx.Sub, applied
	})
	switch {
	case errors.Is(err, subscriptions.ErrNotTracked):
		// events keep arriving for games that already expired or were cancelled
		w.logger.Debug("Match event for unknown subscription", "id", ev.ID, "action", ev.Action)
		return
	case errors.Is(applyErr, livescore.ErrUnknownAction):
		w.logger.Debug("Ignoring match event", "id", ev.ID, "error", applyErr)
		return
	case err != nil:
		w.logger.Error("Failed to save subscription", "id", ev.ID, "error", err)
	}
	if !changed {
		return
	}

	if fx.Notify {
		w.notify(ctx, fx.Sub, ev)
	}
	if fx.Cancel && w.canceller != nil {
		w.canceller.Cancel(fx.Sub)
	}
}

func (w *Subscriptions) notify(ctx context.Context, sub livescore.SubscriptionEvent, ev livescore.MatchEvent) {
	sound := ev.Sound()
	if w.scope.Kind == Team {
		sound = ev.TeamSound(w.scope.ID, sub.HomeTeamID, sub.AwayTeamID)
	}
	frame := ev.Frame(sub.DisplayIcon())
	n := lametric.NewNotification(lametric.NewContent([]lametric.Frame{frame}, sound), lametric.Critical)
	if err := w.out.SendNotification(ctx, n); err != nil {
		w.logger.Warn("Failed to send notification", "id", ev.ID, "action", ev.Action, "error", err)
		return
	}
	metrics.Notifications.WithLabelValues(string(w.app)).Inc()
}

// ClearAll cancels and forgets every tracked game.
func (w *Subscriptions) ClearAll(ctx context.Context) {
	subs := w.store.All()
	for _, sub := range subs {
		w.cancel(sub)
		if err := w.store.Delete(ctx, sub.ID); err != nil {
			w.logger.Error("Failed to delete subscription", "id", sub.ID, "error", err)
		}
	}
	w.logger.Info("Cleared all subscriptions", "count", len(subs))
	w.UpdateFrames(ctx)
}

// ClearFinished asks upstream to cancel every tracked game. Local records stay until
// the upstream confirms or the sweep expires them.
func (w *Subscriptions) ClearFinished(context.Context) {
	for _, sub := range w.store.All() {
		w.cancel(sub)
	}
}

func (w *Subscriptions) cancel(sub livescore.SubscriptionEvent) {
	if w.canceller != nil {
		w.canceller.Cancel(sub)
	}
}

// OnButton handles "unsubscribe" and "clean".
func (w *Subscriptions) OnButton(ctx context.Context, cmd string) bool {
	switch cmd {
	case "unsubscribe":
		w.ClearAll(ctx)
	case "clean":
		w.ClearFinished(ctx)
	default:
		return false
	}
	return true
}

// FetchScores reads the live score feed for the widget's store. It makes the network call
// and leaves the store untouched, so it may run off the display loop.
func (w *Subscriptions) FetchScores(ctx context.Context) ([]livescore.LivescoreEvent, bool) {
	return w.store.FetchScores(ctx)
}

// ApplyScores merges feed rows into the store and re-renders when a score moved.
// It mutates widget state and belongs on the display loop.
func (w *Subscriptions) ApplyScores(ctx context.Context, events []livescore.LivescoreEvent) {
	w.store.MergeScores(ctx, events)
	if w.store.Scores().HasChanges() {
		w.UpdateFrames(ctx)
	}
}

// AutoSubscribe subscribes to today's games in the widget's scope that are not tracked yet.
func (w *Subscriptions) AutoSubscribe(ctx context.Context) error {
	if w.schedules == nil || w.subscriber == nil {
		return nil
	}
	var games []livescore.Game
	var err error
	switch w.scope.Kind {
	case League:
		games, err = w.schedules.LeagueGames(ctx, w.scope.ID)
	case Team:
		games, err = w.schedules.TeamGames(ctx, w.scope.ID)
	default:
		return nil
	}
	if err != nil {
		return fmt.Errorf("load schedule for %s: %w", w.scope, err)
	}

	now := w.now()
	var errs []error
	subscribed := 0
	for _, g := range games {
		if !g.StartsOn(now, w.loc) || g.Postponed() || w.store.Has(g.SubscriptionID()) {
			continue
		}
		if err := w.subscriber.Subscribe(ctx, g); err != nil {
			errs = append(errs, err)
			continue
		}
		subscribed++
	}
	w.logger.Info("Auto-subscribe finished", "games", len(games), "subscribed", subscribed, "failed", len(errs))
	return errors.Join(errs...)
}
