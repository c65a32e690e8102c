// Package sports talks to the sports-score backend: live scores, schedules and
// push subscriptions for individual games.
package sports

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"display-hub/pkg/livescore"
	"display-hub/upstream"
)

// Config holds backend connection settings.
type Config struct {
	Host    string
	Group   string // shared secret identifying this hub to the backend
	Webhook string // where the backend pushes livescore events
	Timeout time.Duration
}

// Client is the sports backend client.
type Client struct {
	api     *upstream.Client
	logger  *slog.Logger
	host    string
	group   string
	webhook string
}

// New creates a sports backend client.
func New(cfg Config, logger *slog.Logger) *Client {
	return &Client{
		api:     upstream.New("sports", upstream.Options{Timeout: cfg.Timeout}, logger),
		logger:  logger,
		host:    strings.TrimRight(cfg.Host, "/"),
		group:   cfg.Group,
		webhook: cfg.Webhook,
	}
}

type subscriptionRequest struct {
	Webhook string `json:"webhook"`
	Group   string `json:"group"`
	ID      string `json:"id"`
}

func (c *Client) endpoint(parts ...string) string {
	escaped := make([]string, len(parts))
	for i, p := range parts {
		escaped[i] = url.PathEscape(p)
	}
	return c.host + "/" + strings.Join(escaped, "/")
}

// Livescores returns the current live score feed.
func (c *Client) Livescores(ctx context.Context) ([]livescore.LivescoreEvent, error) {
	var events []livescore.LivescoreEvent
	if err := c.api.Do(ctx, upstream.Request{Method: http.MethodGet, URL: c.endpoint("livescore")}, &events); err != nil {
		return nil, fmt.Errorf("fetch livescores: %w", err)
	}
	return events, nil
}

// Subscribe asks the backend to push events for game to our webhook.
func (c *Client) Subscribe(ctx context.Context, game livescore.Game) error {
	req := subscriptionRequest{Webhook: c.webhook, Group: c.group, ID: strconv.Itoa(game.ID)}
	if err := c.api.Do(ctx, upstream.Request{Method: http.MethodPost, URL: c.endpoint("subscribe"), Body: req}, nil); err != nil {
		return fmt.Errorf("subscribe game %d: %w", game.ID, err)
	}
	c.logger.Info("Subscribed to game",
		"game_id", game.ID,
		"home", game.HomeCompetitor.Name,
		"away", game.AwayCompetitor.Name,
		"start_time", game.StartTime.Format(time.RFC3339))
	return nil
}

// Unsubscribe cancels the backend job behind sub.
func (c *Client) Unsubscribe(ctx context.Context, sub livescore.SubscriptionEvent) error {
	req := subscriptionRequest{Webhook: c.webhook, Group: c.group, ID: sub.JobID}
	if err := c.api.Do(ctx, upstream.Request{Method: http.MethodPost, URL: c.endpoint("unsubscribe"), Body: req}, nil); err != nil {
		return fmt.Errorf("unsubscribe %s: %w", sub.ID, err)
	}
	c.logger.Info("Unsubscribed from game", "id", sub.ID, "job_id", sub.JobID)
	return nil
}

// TeamSchedule returns upcoming games for a team.
func (c *Client) TeamSchedule(ctx context.Context, teamID int) ([]livescore.Game, error) {
	var games []livescore.Game
	if err := c.api.Do(ctx, upstream.Request{Method: http.MethodGet, URL: c.endpoint("team_schedule", strconv.Itoa(teamID))}, &games); err != nil {
		return nil, fmt.Errorf("fetch team schedule %d: %w", teamID, err)
	}
	return games, nil
}

// LeagueSchedule returns upcoming games for a competition.
func (c *Client) LeagueSchedule(ctx context.Context, leagueID int) ([]livescore.Game, error) {
	var games []livescore.Game
	if err := c.api.Do(ctx, upstream.Request{Method: http.MethodGet, URL: c.endpoint("league_schedule", strconv.Itoa(leagueID))}, &games); err != nil {
		return nil, fmt.Errorf("fetch league schedule %d: %w", leagueID, err)
	}
	return games, nil
}
