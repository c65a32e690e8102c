package sports

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"display-hub/pkg/livescore"
)

// BlobStore caches schedules with a time-to-live.
type BlobStore interface {
	Blob(ctx context.Context, name string, v any) (bool, error)
	SetBlob(ctx context.Context, name string, v any, ttl time.Duration) error
}

// Fetcher loads schedules from the backend.
type Fetcher interface {
	TeamSchedule(ctx context.Context, teamID int) ([]livescore.Game, error)
	LeagueSchedule(ctx context.Context, leagueID int) ([]livescore.Game, error)
}

// ScheduleCache serves schedules from storage while they are fresh.
type ScheduleCache struct {
	fetcher   Fetcher
	store     BlobStore
	logger    *slog.Logger
	leagueTTL time.Duration
	teamTTL   time.Duration
}

// NewScheduleCache creates a cache over fetcher.
func NewScheduleCache(fetcher Fetcher, store BlobStore, leagueTTL, teamTTL time.Duration, logger *slog.Logger) *ScheduleCache {
	return &ScheduleCache{
		fetcher:   fetcher,
		store:     store,
		logger:    logger,
		leagueTTL: leagueTTL,
		teamTTL:   teamTTL,
	}
}

// LeagueGames returns the competition schedule.
func (c *ScheduleCache) LeagueGames(ctx context.Context, leagueID int) ([]livescore.Game, error) {
	return c.cached(ctx, fmt.Sprintf("league-%d", leagueID), c.leagueTTL, func() ([]livescore.Game, error) {
		return c.fetcher.LeagueSchedule(ctx, leagueID)
	})
}

// TeamGames returns the team schedule.
func (c *ScheduleCache) TeamGames(ctx context.Context, teamID int) ([]livescore.Game, error) {
	return c.cached(ctx, fmt.Sprintf("team-%d", teamID), c.teamTTL, func() ([]livescore.Game, error) {
		return c.fetcher.TeamSchedule(ctx, teamID)
	})
}

func (c *ScheduleCache) cached(ctx context.Context, name string, ttl time.Duration, fetch func() ([]livescore.Game, error)) ([]livescore.Game, error) {
	var games []livescore.Game
	ok, err := c.store.Blob(ctx, name, &games)
	if err != nil {
		c.logger.Warn("Failed to read cached schedule", "name", name, "error", err)
	}
	if ok {
		c.logger.Debug("Schedule served from cache", "name", name, "games", len(games))
		return games, nil
	}

	games, err = fetch()
	if err != nil {
		return nil, err
	}
	if err := c.store.SetBlob(ctx, name, games, ttl); err != nil {
		c.logger.Warn("Failed to cache schedule", "name", name, "error", err)
	}
	c.logger.Info("Schedule fetched", "name", name, "games", len(games))
	return games, nil
}
