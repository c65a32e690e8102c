package display

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"display-hub/pkg/lametric"

	"github.com/goccy/go-json"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestActivate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			t.Errorf("method = %s, want PUT", r.Method)
		}
		if want := "/api/v2/device/apps/com.lametric.clock/widgets/w1/activate"; r.URL.Path != want {
			t.Errorf("path = %q, want %q", r.URL.Path, want)
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != "dev" || pass != "key" {
			t.Errorf("BasicAuth() = %q, %q, %v", user, pass, ok)
		}
	}))
	defer srv.Close()

	c := New(Config{Host: srv.URL, APIKey: "key"}, testLogger())
	if err := c.Activate(context.Background(), "com.lametric.clock", "w1"); err != nil {
		t.Fatalf("Activate() error = %v", err)
	}
}

func TestSendModelStripsEmptyFields(t *testing.T) {
	var body string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("X-Access-Token"); got != "push-token" {
			t.Errorf("X-Access-Token = %q", got)
		}
		data, _ := io.ReadAll(r.Body)
		body = string(data)
	}))
	defer srv.Close()

	c := New(Config{
		Host:   srv.URL,
		Pushes: map[lametric.AppName]Push{lametric.Livescores: {URL: srv.URL + "/push", Token: "push-token"}},
	}, testLogger())
	content := lametric.NewContent([]lametric.Frame{{Text: "FT A - B 1:0"}}, lametric.NoSound)
	if err := c.SendModel(context.Background(), lametric.Livescores, content); err != nil {
		t.Fatalf("SendModel() error = %v", err)
	}
	for _, banned := range []string{"null", "icon", "goalData", "sound"} {
		if strings.Contains(body, banned) {
			t.Errorf("body %s contains %q", body, banned)
		}
	}
}

func TestSendModelUnknownApp(t *testing.T) {
	c := New(Config{Host: "http://127.0.0.1:1"}, testLogger())
	err := c.SendModel(context.Background(), lametric.Sure, lametric.Content{})
	if !errors.Is(err, ErrUnknownApp) {
		t.Errorf("SendModel() error = %v, want ErrUnknownApp", err)
	}
}

func TestDisplayAndApps(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v2/device/display":
			_, _ = io.WriteString(w, `{"brightness":40,"screensaver":{"enabled":true,"modes":{"time_based":{"enabled":true,"local_start_time":"22:00:00","local_end_time":"07:00:00"}}}}`)
		case "/api/v2/device/apps":
			_ = json.NewEncoder(w).Encode(map[string]lametric.App{
				"com.lametric.clock": {Package: "com.lametric.clock", Widgets: map[string]lametric.Widget{"b2": {}, "a1": {}}},
			})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := New(Config{Host: srv.URL}, testLogger())
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return fixed }

	d, err := c.Display(context.Background())
	if err != nil {
		t.Fatalf("Display() error = %v", err)
	}
	if d.Brightness != 40 || !d.UpdatedAt.Equal(fixed) {
		t.Errorf("Display() = %+v", d)
	}
	if !d.ScreensaverActive(time.Date(2026, 3, 1, 23, 0, 0, 0, time.UTC)) {
		t.Error("ScreensaverActive(23:00) = false, want true")
	}

	apps, err := c.Apps(context.Background())
	if err != nil {
		t.Fatalf("Apps() error = %v", err)
	}
	id, ok := apps["com.lametric.clock"].FirstWidgetID()
	if !ok || id != "a1" {
		t.Errorf("FirstWidgetID() = %q, %v, want a1", id, ok)
	}
}

type recordingOutbound struct {
	mu    sync.Mutex
	calls []string
}

func (r *recordingOutbound) record(s string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, s)
}

func (r *recordingOutbound) Activate(_ context.Context, pkg, _ string) error {
	r.record("activate:" + pkg)
	return nil
}

func (r *recordingOutbound) SendModel(_ context.Context, app lametric.AppName, _ lametric.Content) error {
	r.record("model:" + string(app))
	return nil
}

func (r *recordingOutbound) SendNotification(context.Context, lametric.Notification) error {
	r.record("notification")
	return errors.New("device offline")
}

func (r *recordingOutbound) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func TestSenderPreservesOrder(t *testing.T) {
	rec := &recordingOutbound{}
	s := NewSender(rec, 8, time.Second, testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx) }()

	_ = s.Activate(ctx, "clock", "w")
	_ = s.SendNotification(ctx, lametric.Notification{})
	_ = s.SendModel(ctx, lametric.Livescores, lametric.Content{})

	want := []string{"activate:clock", "notification", "model:livescores"}
	deadline := time.Now().Add(2 * time.Second)
	for len(rec.snapshot()) < len(want) && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("Serve() = %v, want context.Canceled", err)
	}

	got := rec.snapshot()
	if len(got) != len(want) {
		t.Fatalf("calls = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("calls[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestSenderDropsWhenFull(t *testing.T) {
	s := NewSender(&recordingOutbound{}, 2, time.Second, testLogger())
	ctx := context.Background()
	// no worker running: the queue fills up
	if err := s.Activate(ctx, "a", "1"); err != nil {
		t.Fatalf("Activate() error = %v", err)
	}
	if err := s.Activate(ctx, "b", "1"); err != nil {
		t.Fatalf("Activate() error = %v", err)
	}
	if err := s.Activate(ctx, "c", "1"); !errors.Is(err, ErrQueueFull) {
		t.Errorf("Activate() error = %v, want ErrQueueFull", err)
	}
	if s.Pending() != 2 {
		t.Errorf("Pending() = %d, want 2", s.Pending())
	}
}
