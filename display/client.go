// Package display talks to the smart display device.
package display

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"display-hub/pkg/lametric"
	"display-hub/upstream"

	"golang.org/x/time/rate"
)

// ErrUnknownApp is returned when pushing to an app slot with no push endpoint configured.
var ErrUnknownApp = errors.New("no push endpoint for app")

// Push is the per-app endpoint that accepts a frame model.
type Push struct {
	URL   string
	Token string
}

// Config holds device connection settings.
type Config struct {
	Pushes        map[lametric.AppName]Push
	Host          string
	User          string
	APIKey        string
	Timeout       time.Duration
	RatePerSecond float64
}

// Client is the HTTP client for the device's local API.
type Client struct {
	api    *upstream.Client
	logger *slog.Logger
	pushes map[lametric.AppName]Push
	host   string
	auth   string
	now    func() time.Time
}

// New creates a device client.
func New(cfg Config, logger *slog.Logger) *Client {
	var limiter *rate.Limiter
	if cfg.RatePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), 1)
	}
	user := cfg.User
	if user == "" {
		user = "dev"
	}

	return &Client{
		api:    upstream.New("lametric", upstream.Options{Timeout: cfg.Timeout, Limiter: limiter, Attempts: 2}, logger),
		logger: logger,
		pushes: cfg.Pushes,
		host:   strings.TrimRight(cfg.Host, "/"),
		auth:   "Basic " + base64.StdEncoding.EncodeToString([]byte(user+":"+cfg.APIKey)),
		now:    time.Now,
	}
}

func (c *Client) device(method, path string, body any) upstream.Request {
	return upstream.Request{
		Method: method,
		URL:    c.host + "/api/v2/" + path,
		Header: http.Header{"Authorization": []string{c.auth}},
		Body:   body,
	}
}

// Activate makes the widget the one currently shown.
func (c *Client) Activate(ctx context.Context, pkg, widgetID string) error {
	path := fmt.Sprintf("device/apps/%s/widgets/%s/activate", url.PathEscape(pkg), url.PathEscape(widgetID))
	if err := c.api.Do(ctx, c.device(http.MethodPut, path, nil), nil); err != nil {
		return fmt.Errorf("activate %s/%s: %w", pkg, widgetID, err)
	}
	return nil
}

// SendModel replaces the frames of an app slot.
func (c *Client) SendModel(ctx context.Context, app lametric.AppName, content lametric.Content) error {
	push, ok := c.pushes[app]
	if !ok || push.URL == "" {
		return fmt.Errorf("%w: %s", ErrUnknownApp, app)
	}
	req := upstream.Request{
		Method: http.MethodPost,
		URL:    push.URL,
		Header: http.Header{"X-Access-Token": []string{push.Token}},
		Body:   content,
	}
	if err := c.api.Do(ctx, req, nil); err != nil {
		return fmt.Errorf("send model %s: %w", app, err)
	}
	c.logger.Debug("Model sent", "app", app, "frames", len(content.Frames))
	return nil
}

// SendNotification pushes a transient notification.
func (c *Client) SendNotification(ctx context.Context, n lametric.Notification) error {
	if err := c.api.Do(ctx, c.device(http.MethodPost, "device/notifications", n), nil); err != nil {
		return fmt.Errorf("send notification: %w", err)
	}
	return nil
}

// Display returns the device's brightness and screensaver configuration.
func (c *Client) Display(ctx context.Context) (lametric.DeviceDisplay, error) {
	var d lametric.DeviceDisplay
	if err := c.api.Do(ctx, c.device(http.MethodGet, "device/display", nil), &d); err != nil {
		return lametric.DeviceDisplay{}, fmt.Errorf("get display: %w", err)
	}
	d.UpdatedAt = c.now()
	return d, nil
}

// Apps returns installed apps keyed by package.
func (c *Client) Apps(ctx context.Context) (map[string]lametric.App, error) {
	var apps map[string]lametric.App
	if err := c.api.Do(ctx, c.device(http.MethodGet, "device/apps", nil), &apps); err != nil {
		return nil, fmt.Errorf("get apps: %w", err)
	}
	return apps, nil
}
