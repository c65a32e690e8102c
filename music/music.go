// Package music is the client for the music-player remote.
package music

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"display-hub/pkg/lametric"
	"display-hub/upstream"
)

// Config holds music-player connection settings.
type Config struct {
	Host    string
	Token   string
	Timeout time.Duration
}

// Client controls the music player.
type Client struct {
	api    *upstream.Client
	logger *slog.Logger
	host   string
	token  string
}

// New creates a music-player client.
func New(cfg Config, logger *slog.Logger) *Client {
	return &Client{
		// a remote button press is worthless after a few seconds, so don't retry long
		api:    upstream.New("music", upstream.Options{Timeout: cfg.Timeout, Attempts: 2, Delay: 200 * time.Millisecond}, logger),
		logger: logger,
		host:   strings.TrimRight(cfg.Host, "/"),
		token:  cfg.Token,
	}
}

type stateResponse struct {
	Status string `json:"status"`
}

func (c *Client) request(method, endpoint string) upstream.Request {
	req := upstream.Request{Method: method, URL: c.host + "/" + endpoint}
	if c.token != "" {
		req.Header = http.Header{"Authorization": []string{"Bearer " + c.token}}
	}
	return req
}

// State returns the player's current status.
func (c *Client) State(ctx context.Context) (lametric.MusicStatus, error) {
	var resp stateResponse
	if err := c.api.Do(ctx, c.request(http.MethodGet, "state"), &resp); err != nil {
		return lametric.Stopped, fmt.Errorf("fetch player state: %w", err)
	}
	status, ok := lametric.ParseMusicStatus(resp.Status)
	if !ok {
		c.logger.Debug("Unknown player status", "status", resp.Status)
	}
	return status, nil
}

// Toggle switches between play and pause.
func (c *Client) Toggle(ctx context.Context) error {
	if err := c.api.Do(ctx, c.request(http.MethodGet, "command/toggle"), nil); err != nil {
		return fmt.Errorf("toggle playback: %w", err)
	}
	return nil
}

// Next skips to the next track.
func (c *Client) Next(ctx context.Context) error {
	if err := c.api.Do(ctx, c.request(http.MethodGet, "command/next"), nil); err != nil {
		return fmt.Errorf("skip track: %w", err)
	}
	return nil
}
