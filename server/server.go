// Package server handles the HTTP ingestion endpoints.
package server

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"display-hub/pkg/lametric"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	maxBodyBytes = 64 << 10
	buttonPrefix = "action."
)

// Publisher enqueues events for the display engine.
type Publisher interface {
	Publish(t lametric.ContentType, payload []byte) error
}

// Server handles HTTP requests.
type Server struct {
	publisher Publisher
	logger    *slog.Logger
	secret    string
	devices   []string
	addr      string
}

// Config holds server configuration.
type Config struct {
	Publisher Publisher
	Logger    *slog.Logger
	// Secret is accepted as "Authorization: Bearer <secret>".
	Secret string
	// Devices are accepted as the X-Device header.
	Devices []string
	Host    string
	Port    string
}

// New creates a new HTTP server handler.
func New(cfg *Config) *Server {
	return &Server{
		publisher: cfg.Publisher,
		logger:    cfg.Logger,
		secret:    cfg.Secret,
		devices:   cfg.Devices,
		addr:      cfg.Host + ":" + cfg.Port,
	}
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(s.authenticate)
		r.Post("/nowplaying", s.handleTyped(lametric.NowPlaying, check[lametric.NowPlayingPayload]))
		r.Post("/status", s.handleTyped(lametric.YankoStatus, check[lametric.StatusPayload]))
		r.Post("/subscription", s.handleTyped(lametric.LivescoreEvent, checkJSON))
		r.Post("/sensor", s.handleTyped(lametric.Termo, check[lametric.Reading]))
		r.Post("/offer", s.handleTyped(lametric.BestOffer, check[lametric.Offer]))
		r.Get("/button", s.handleButton)
	})
	return r
}

// Serve listens until ctx is done.
func (s *Server) Serve(ctx context.Context) error {
	// Configure server with timeouts to prevent resource exhaustion
	server := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadTimeout:       10 * time.Second,  // Time to read request headers and body
		WriteTimeout:      30 * time.Second,  // Time to write response
		IdleTimeout:       120 * time.Second, // Time to keep connection alive between requests
		ReadHeaderTimeout: 5 * time.Second,   // Time to read request headers only
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting HTTP server", "addr", s.addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("HTTP server shutdown failed", "error", err)
	}
	s.logger.Info("HTTP server stopped")
	return ctx.Err()
}

func (s *Server) String() string {
	return "http-server"
}

func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if device := r.Header.Get("X-Device"); device != "" && slices.Contains(s.devices, device) {
			next.ServeHTTP(w, r)
			return
		}
		if token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok && s.secret != "" &&
			subtle.ConstantTimeCompare([]byte(token), []byte(s.secret)) == 1 {
			next.ServeHTTP(w, r)
			return
		}
		s.logger.Warn("Rejected unauthenticated request", "path", r.URL.Path, "remote_addr", r.RemoteAddr)
		http.Error(w, "Forbidden", http.StatusForbidden)
	})
}

type validator interface {
	Validate() error
}

// check decodes body as T and validates it.
func check[T validator](body []byte) error {
	var v T
	if err := json.Unmarshal(body, &v); err != nil {
		return fmt.Errorf("decode body: %w", err)
	}
	return v.Validate()
}

func checkJSON(body []byte) error {
	if !json.Valid(body) {
		return errors.New("body is not valid JSON")
	}
	return nil
}

func (s *Server) handleTyped(t lametric.ContentType, validate func([]byte) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				http.Error(w, "Request body too large", http.StatusRequestEntityTooLarge)
				return
			}
			http.Error(w, "Failed to read body", http.StatusBadRequest)
			return
		}
		if err := validate(body); err != nil {
			s.logger.Warn("Rejected payload", "content_type", t, "error", err)
			http.Error(w, "Invalid payload", http.StatusBadRequest)
			return
		}
		s.publish(w, r, t, body)
	}
}

// handleButton turns "?action.yanko=next" into a BUTTON event named "action.yanko=next".
func (s *Server) handleButton(w http.ResponseWriter, r *http.Request) {
	var name string
	for key, values := range r.URL.Query() {
		if strings.HasPrefix(key, buttonPrefix) && len(values) > 0 && values[0] != "" {
			name = key + "=" + values[0]
			break
		}
	}
	if name == "" {
		http.Error(w, "Missing action parameter", http.StatusBadRequest)
		return
	}
	body, err := json.Marshal(lametric.ButtonPress{Name: name})
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	s.publish(w, r, lametric.Button, body)
}

func (s *Server) publish(w http.ResponseWriter, r *http.Request, t lametric.ContentType, body []byte) {
	if err := s.publisher.Publish(t, body); err != nil {
		s.logger.Error("Failed to publish event", "content_type", t, "error", err)
		http.Error(w, "Service unavailable", http.StatusServiceUnavailable)
		return
	}
	s.logger.Debug("Event accepted", "content_type", t, "request_id", chimiddleware.GetReqID(r.Context()))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	if _, err := fmt.Fprint(w, `{"status":"queued"}`); err != nil {
		s.logger.Warn("Failed to write response", "error", err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := fmt.Fprint(w, `{"status":"healthy"}`); err != nil {
		s.logger.Warn("Failed to write health response", "error", err)
		return
	}
}
