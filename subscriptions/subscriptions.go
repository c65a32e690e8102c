// Package subscriptions keeps the persisted set of tracked live games, one store per storage key.
package subscriptions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"display-hub/metrics"
	"display-hub/pkg/livescore"

	"github.com/goccy/go-json"
)

// Backing is the hash persistence a store writes through to.
type Backing interface {
	HashSet(ctx context.Context, hash, field string, value []byte) error
	HashDelete(ctx context.Context, hash, field string) error
	HashAll(ctx context.Context, hash string) (map[string][]byte, error)
}

// ErrNotTracked is returned by Update for an id the store does not hold.
var ErrNotTracked = errors.New("subscription not tracked")

// Fetcher returns the current live score feed.
type Fetcher interface {
	Livescores(ctx context.Context) ([]livescore.LivescoreEvent, error)
}

// Store is the subscription set for one storage key. All methods are safe for concurrent use
// and mutations are applied in a single total order.
type Store struct {
	backing      Backing
	fetcher      Fetcher
	logger       *slog.Logger
	items        map[string]livescore.SubscriptionEvent
	scores       *Scores
	key          string
	retry        time.Duration
	// bounds each backend write so a slow backend cannot stall the display loop
	writeTimeout time.Duration
	mu           sync.Mutex
}

func newStore(key string, backing Backing, fetcher Fetcher, logger *slog.Logger) *Store {
	return &Store{
		key:          key,
		backing:      backing,
		fetcher:      fetcher,
		logger:       logger.With("storage_key", key),
		items:        make(map[string]livescore.SubscriptionEvent),
		scores:       NewScores(),
		retry:        250 * time.Millisecond,
		// total worst case is two timeouts plus the retry pause
		writeTimeout: time.Second,
	}
}

// load reads every persisted subscription. Undecodable entries are logged and skipped.
func (s *Store) load(ctx context.Context) error {
	raw, err := s.backing.HashAll(ctx, s.key)
	if err != nil {
		return fmt.Errorf("load subscriptions: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for id, data := range raw {
		var sub livescore.SubscriptionEvent
		if err := json.Unmarshal(data, &sub); err != nil {
			s.logger.Warn("Skipping undecodable subscription", "id", id, "error", err)
			continue
		}
		s.items[id] = sub
		if sub.Score != "" {
			s.scores.Set(id, sub.Score)
		}
	}
	s.scores.HasChanges()
	metrics.Subscriptions.WithLabelValues(s.key).Set(float64(len(s.items)))
	s.logger.Info("Subscriptions loaded", "count", len(s.items))
	return nil
}

// Key returns the storage key.
func (s *Store) Key() string {
	return s.key
}

// Scores returns the score change tracker.
func (s *Store) Scores() *Scores {
	return s.scores
}

// Get returns a subscription by id.
func (s *Store) Get(id string) (livescore.SubscriptionEvent, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.items[id]
	return sub, ok
}

// Has reports whether id is tracked.
func (s *Store) Has(id string) bool {
	_, ok := s.Get(id)
	return ok
}

// Len returns the number of tracked subscriptions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// HasJob reports whether any subscription holds the job cancelled by c.
func (s *Store) HasJob(c livescore.CancelJobEvent) bool {
	return len(s.ByJob(c)) > 0
}

// ByJob returns the subscriptions holding the job cancelled by c.
func (s *Store) ByJob(c livescore.CancelJobEvent) []livescore.SubscriptionEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []livescore.SubscriptionEvent
	for _, sub := range s.items {
		if c.Matches(sub) {
			out = append(out, sub)
		}
	}
	return out
}

// All returns subscriptions ordered by start time, then id.
func (s *Store) All() []livescore.SubscriptionEvent {
	s.mu.Lock()
	out := make([]livescore.SubscriptionEvent, 0, len(s.items))
	for _, sub := range s.items {
		out = append(out, sub)
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartTime.Equal(out[j].StartTime) {
			return out[i].StartTime.Before(out[j].StartTime)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Set upserts a subscription and writes it through. The in-memory value is kept even
// when persisting fails.
func (s *Store) Set(ctx context.Context, sub livescore.SubscriptionEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.put(ctx, sub)
}

// Update applies fn to the stored subscription id and writes the result through when fn
// reports a change. Read, change and write happen under one lock, so concurrent updates
// of the same id are never lost.
func (s *Store) Update(ctx context.Context, id string, fn func(livescore.SubscriptionEvent) (livescore.SubscriptionEvent, bool)) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.items[id]
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrNotTracked, id)
	}
	next, changed := fn(cur)
	if !changed {
		return false, nil
	}
	next.ID = id
	return true, s.put(ctx, next)
}

// put stores sub. Callers hold s.mu.
func (s *Store) put(ctx context.Context, sub livescore.SubscriptionEvent) error {
	data, err := json.Marshal(sub)
	if err != nil {
		return fmt.Errorf("marshal subscription: %w", err)
	}
	s.items[sub.ID] = sub
	if sub.Score != "" {
		s.scores.Set(sub.ID, sub.Score)
	}
	metrics.Subscriptions.WithLabelValues(s.key).Set(float64(len(s.items)))

	return s.persist(ctx, "save", sub.ID, func(ctx context.Context) error {
		return s.backing.HashSet(ctx, s.key, sub.ID, data)
	})
}

// Delete removes a subscription and writes the removal through.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, id)
	s.scores.Delete(id)
	metrics.Subscriptions.WithLabelValues(s.key).Set(float64(len(s.items)))

	return s.persist(ctx, "delete", id, func(ctx context.Context) error {
		return s.backing.HashDelete(ctx, s.key, id)
	})
}

// persist runs op with a per-attempt timeout, retrying once. Callers hold s.mu.
func (s *Store) persist(ctx context.Context, op, id string, fn func(ctx context.Context) error) error {
	attempt := func() error {
		wctx, cancel := context.WithTimeout(ctx, s.writeTimeout)
		defer cancel()
		return fn(wctx)
	}

	err := attempt()
	if err == nil {
		return nil
	}
	s.logger.Warn("Persisting subscription failed, retrying once", "op", op, "id", id, "error", err)

	select {
	case <-ctx.Done():
		return fmt.Errorf("%s subscription %s: %w", op, id, ctx.Err())
	case <-time.After(s.retry):
	}
	if err := attempt(); err != nil {
		s.logger.Error("Persisting subscription failed", "op", op, "id", id, "error", err)
		return fmt.Errorf("%s subscription %s: %w", op, id, err)
	}
	return nil
}

// RefreshScores pulls the live score feed and merges it into tracked subscriptions.
func (s *Store) RefreshScores(ctx context.Context) {
	if events, ok := s.FetchScores(ctx); ok {
		s.MergeScores(ctx, events)
	}
}

// FetchScores reads the live score feed. It reports false when nothing is tracked or the
// feed is unreachable; failures are logged and the stored data stays as is.
func (s *Store) FetchScores(ctx context.Context) ([]livescore.LivescoreEvent, bool) {
	if s.Len() == 0 {
		return nil, false
	}
	events, err := s.fetcher.Livescores(ctx)
	if err != nil {
		s.logger.Warn("Live score refresh failed, keeping stale data", "error", err)
		return nil, false
	}
	return events, true
}

// MergeScores copies status and score from feed rows onto tracked subscriptions and returns
// how many changed. A finished game keeps its "FT" status; a lagging feed must not reopen it.
func (s *Store) MergeScores(ctx context.Context, events []livescore.LivescoreEvent) int {
	updated := 0
	for _, ev := range events {
		changed, err := s.Update(ctx, ev.ID, func(sub livescore.SubscriptionEvent) (livescore.SubscriptionEvent, bool) {
			next := sub
			if status := ev.DisplayStatus(); status != "" && sub.Status != livescore.StatusFullTime {
				next.Status = status
			}
			if score := ev.DisplayScore(); score != "" {
				next.Score = score
			}
			return next, next != sub
		})
		if errors.Is(err, ErrNotTracked) {
			continue
		}
		if err != nil {
			s.logger.Error("Failed to save refreshed score", "id", ev.ID, "error", err)
		}
		if changed {
			updated++
		}
	}
	s.logger.Debug("Live scores merged", "feed_size", len(events), "updated", updated)
	return updated
}
