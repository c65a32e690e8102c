package rotation

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"display-hub/pkg/lametric"
)

// DisplayFetcher reads the device display configuration.
type DisplayFetcher interface {
	Display(ctx context.Context) (lametric.DeviceDisplay, error)
}

// StateCache holds the last fetched device display state. It is refreshed in the
// background so the rotation tick never waits on the device.
type StateCache struct {
	fetcher DisplayFetcher
	logger  *slog.Logger
	loc     *time.Location
	now     func() time.Time
	state   lametric.DeviceDisplay
	check   time.Duration
	mu      sync.RWMutex
}

// NewStateCache creates a cache evaluating screensaver windows in loc.
func NewStateCache(fetcher DisplayFetcher, loc *time.Location, logger *slog.Logger) *StateCache {
	if loc == nil {
		loc = time.Local
	}
	return &StateCache{
		fetcher: fetcher,
		logger:  logger,
		loc:     loc,
		now:     time.Now,
		check:   30 * time.Second,
	}
}

// Refresh fetches the display state if the cached copy is stale. Failures keep the stale copy.
func (c *StateCache) Refresh(ctx context.Context) {
	now := c.now()
	c.mu.RLock()
	stale := c.state.NeedsUpdate(now)
	c.mu.RUnlock()
	if !stale {
		return
	}

	d, err := c.fetcher.Display(ctx)
	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.logger.Warn("Failed to refresh device display, keeping cached state", "error", err)
		// don't ask again before the next refresh interval
		c.state.UpdatedAt = now
		return
	}
	if d.UpdatedAt.IsZero() {
		d.UpdatedAt = now
	}
	if d.Screensaver != c.state.Screensaver {
		c.logger.Info("Device screensaver configuration changed",
			"enabled", d.Screensaver.Enabled,
			"start", d.Screensaver.Modes.TimeBased.LocalStartTime,
			"end", d.Screensaver.Modes.TimeBased.LocalEndTime)
	}
	c.state = d
}

// ScreensaverActive reports whether the screensaver list should be used at now.
func (c *StateCache) ScreensaverActive(now time.Time) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.ScreensaverActive(now.In(c.loc))
}

// Serve keeps the cache fresh until ctx is done.
func (c *StateCache) Serve(ctx context.Context) error {
	c.Refresh(ctx)
	ticker := time.NewTicker(c.check)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			c.Refresh(ctx)
		}
	}
}

func (c *StateCache) String() string {
	return "display-state"
}
