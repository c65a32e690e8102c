package subscriptions

import (
	"context"
	"log/slog"
	"sync"
)

// Registry hands out exactly one Store per storage key, so widgets sharing a key share
// the same lock and the same in-memory view.
type Registry struct {
	backing Backing
	fetcher Fetcher
	logger  *slog.Logger
	stores  map[string]*Store
	mu      sync.Mutex
}

// NewRegistry creates an empty registry.
func NewRegistry(backing Backing, fetcher Fetcher, logger *slog.Logger) *Registry {
	return &Registry{
		backing: backing,
		fetcher: fetcher,
		logger:  logger,
		stores:  make(map[string]*Store),
	}
}

// Store returns the store for key, loading it from persistence on first use.
func (r *Registry) Store(ctx context.Context, key string) (*Store, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.stores[key]; ok {
		return s, nil
	}
	s := newStore(key, r.backing, r.fetcher, r.logger)
	if err := s.load(ctx); err != nil {
		return nil, err
	}
	r.stores[key] = s
	return s, nil
}
