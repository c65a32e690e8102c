// Package upstream is the JSON-over-HTTP caller shared by the device, sports and music clients.
package upstream

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"display-hub/metrics"

	"github.com/codeGROOVE-dev/retry"
	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"
)

const maxResponseBytes = 4 << 20

// StatusError is a non-2xx response.
type StatusError struct {
	Body string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.Code, e.Body)
}

// IsClientError reports whether err is a 4xx response.
func IsClientError(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code >= 400 && se.Code < 500
}

// IsUnavailable reports whether err came from an open circuit breaker.
func IsUnavailable(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

// Options tunes a Client.
type Options struct {
	Limiter  *rate.Limiter
	Timeout  time.Duration
	Delay    time.Duration
	Attempts uint
}

// Client performs JSON requests against one upstream.
type Client struct {
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[[]byte]
	limiter *rate.Limiter
	logger  *slog.Logger
	name    string
	delay   time.Duration
	tries   uint
}

// New creates a client for the named upstream.
func New(name string, opts Options, logger *slog.Logger) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.Attempts == 0 {
		opts.Attempts = 3
	}
	if opts.Delay <= 0 {
		opts.Delay = time.Second
	}
	logger = logger.With("upstream", name)
	metrics.BreakerState.WithLabelValues(name).Set(0)

	cb := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			// a rejected request still proves the upstream is alive
			return err == nil || IsClientError(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed", "from", from.String(), "to", to.String())
			metrics.BreakerState.WithLabelValues(name).Set(float64(to))
		},
	})

	return &Client{
		http:    &http.Client{Timeout: opts.Timeout},
		breaker: cb,
		limiter: opts.Limiter,
		logger:  logger,
		name:    name,
		delay:   opts.Delay,
		tries:   opts.Attempts,
	}
}

// Request describes one call.
type Request struct {
	Header http.Header
	Body   any
	Method string
	URL    string
}

// Do sends req and decodes a JSON response into out when out is non-nil.
// 4xx responses and an open breaker are not retried.
func (c *Client) Do(ctx context.Context, req Request, out any) error {
	var payload []byte
	if req.Body != nil {
		var err error
		payload, err = json.Marshal(req.Body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
	}

	var body []byte
	err := retry.Do(
		func() error {
			if c.limiter != nil {
				if err := c.limiter.Wait(ctx); err != nil {
					return retry.Unrecoverable(fmt.Errorf("rate limit wait: %w", err))
				}
			}
			data, err := c.breaker.Execute(func() ([]byte, error) {
				return c.send(ctx, req, payload)
			})
			switch {
			case err == nil:
				body = data
				metrics.UpstreamRequests.WithLabelValues(c.name, "success").Inc()
				return nil
			case IsUnavailable(err):
				metrics.UpstreamRequests.WithLabelValues(c.name, "rejected").Inc()
				return retry.Unrecoverable(err)
			case IsClientError(err):
				metrics.UpstreamRequests.WithLabelValues(c.name, "client_error").Inc()
				return retry.Unrecoverable(err)
			default:
				metrics.UpstreamRequests.WithLabelValues(c.name, "failure").Inc()
				return err
			}
		},
		retry.Attempts(c.tries),
		retry.Delay(c.delay),
		retry.MaxDelay(30*time.Second),
		retry.MaxJitter(c.delay),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			c.logger.Info("Retrying upstream request after error", "attempt", n, "method", req.Method, "url", req.URL, "error", err)
		}),
	)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL, err)
	}

	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) send(ctx context.Context, req Request, payload []byte) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, reader)
	if err != nil {
		return nil, retry.Unrecoverable(fmt.Errorf("create request: %w", err))
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	if payload != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	httpReq.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			c.logger.Warn("Failed to close response body", "error", closeErr)
		}
	}()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	c.logger.Debug("Upstream request completed",
		"method", req.Method,
		"url", req.URL,
		"status_code", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds())

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet := string(data)
		if len(snippet) > 200 {
			snippet = snippet[:200]
		}
		return nil, &StatusError{Code: resp.StatusCode, Body: snippet}
	}
	return data, nil
}
