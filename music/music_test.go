package music

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"display-hub/pkg/lametric"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestState(t *testing.T) {
	tests := []struct {
		name string
		body string
		want lametric.MusicStatus
	}{
		{"playing", `{"status":"playing"}`, lametric.Playing},
		{"exit", `{"status":"exit"}`, lametric.Exit},
		{"unknown falls back to stopped", `{"status":"buffering"}`, lametric.Stopped},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if got := r.Header.Get("Authorization"); got != "Bearer tok" {
					t.Errorf("Authorization = %q, want Bearer tok", got)
				}
				_, _ = io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			c := New(Config{Host: srv.URL, Token: "tok"}, testLogger())
			got, err := c.State(context.Background())
			if err != nil {
				t.Fatalf("State() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("State() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestStateUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := New(Config{Host: srv.URL}, testLogger())
	got, err := c.State(context.Background())
	if err == nil {
		t.Fatal("State() error = nil, want error")
	}
	if got != lametric.Stopped {
		t.Errorf("State() = %q, want stopped", got)
	}
}

func TestCommands(t *testing.T) {
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
	}))
	defer srv.Close()

	c := New(Config{Host: srv.URL + "/"}, testLogger())
	if err := c.Toggle(context.Background()); err != nil {
		t.Fatalf("Toggle() error = %v", err)
	}
	if err := c.Next(context.Background()); err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	want := []string{"/command/toggle", "/command/next"}
	if len(paths) != len(want) || paths[0] != want[0] || paths[1] != want[1] {
		t.Errorf("paths = %v, want %v", paths, want)
	}
}
