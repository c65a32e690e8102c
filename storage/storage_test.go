package storage

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func backends(t *testing.T) map[string]Backend {
	t.Helper()
	local, err := NewFileBackend(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileBackend() error = %v", err)
	}
	mem, err := OpenBadger("")
	if err != nil {
		t.Fatalf("OpenBadger() error = %v", err)
	}
	t.Cleanup(func() {
		if err := mem.Close(); err != nil {
			t.Errorf("Close() error = %v", err)
		}
	})
	return map[string]Backend{"local": local, "badger": mem}
}

func TestHashRoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, backend := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := New(backend, testLogger())

			if err := s.HashSet(ctx, "livescores", "g1", []byte(`{"id":"g1"}`)); err != nil {
				t.Fatalf("HashSet() error = %v", err)
			}
			if err := s.HashSet(ctx, "livescores", "g2", []byte(`{"id":"g2"}`)); err != nil {
				t.Fatalf("HashSet() error = %v", err)
			}
			if err := s.HashSet(ctx, "rm", "g3", []byte(`{"id":"g3"}`)); err != nil {
				t.Fatalf("HashSet() error = %v", err)
			}

			got, err := s.HashGet(ctx, "livescores", "g1")
			if err != nil || string(got) != `{"id":"g1"}` {
				t.Errorf("HashGet() = %s, %v", got, err)
			}

			all, err := s.HashAll(ctx, "livescores")
			if err != nil {
				t.Fatalf("HashAll() error = %v", err)
			}
			var fields []string
			for f := range all {
				fields = append(fields, f)
			}
			sort.Strings(fields)
			if len(fields) != 2 || fields[0] != "g1" || fields[1] != "g2" {
				t.Errorf("HashAll() fields = %v, want [g1 g2]", fields)
			}

			if err := s.HashDelete(ctx, "livescores", "g1"); err != nil {
				t.Fatalf("HashDelete() error = %v", err)
			}
			if err := s.HashDelete(ctx, "livescores", "g1"); err != nil {
				t.Errorf("second HashDelete() error = %v, want nil", err)
			}
			if _, err := s.HashGet(ctx, "livescores", "g1"); !IsNotFound(err) {
				t.Errorf("HashGet() after delete error = %v, want not found", err)
			}
		})
	}
}

func TestHashKeyRejectsTraversal(t *testing.T) {
	tests := []struct {
		hash, field string
	}{
		{"..", "x"},
		{"ok", "../../etc/passwd"},
		{"ok", "a/b"},
		{"", "x"},
	}
	for _, tt := range tests {
		if _, err := HashKey(tt.hash, tt.field); !errors.Is(err, ErrInvalidKey) {
			t.Errorf("HashKey(%q, %q) error = %v, want ErrInvalidKey", tt.hash, tt.field, err)
		}
	}
	key, err := HashKey("worldcup", "a1b2")
	if err != nil || key != "subscriptions/worldcup/a1b2.json" {
		t.Errorf("HashKey() = %q, %v", key, err)
	}
}

func TestBlobTTL(t *testing.T) {
	ctx := context.Background()
	for name, backend := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := New(backend, testLogger())
			now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
			s.now = func() time.Time { return now }

			type sched struct {
				Games []int `json:"games"`
			}
			if err := s.SetBlob(ctx, "league-7", sched{Games: []int{1, 2}}, time.Hour); err != nil {
				t.Fatalf("SetBlob() error = %v", err)
			}

			var got sched
			ok, err := s.Blob(ctx, "league-7", &got)
			if err != nil || !ok || len(got.Games) != 2 {
				t.Errorf("Blob() = %v, %v, %+v", ok, err, got)
			}

			now = now.Add(61 * time.Minute)
			ok, err = s.Blob(ctx, "league-7", &got)
			if err != nil || ok {
				t.Errorf("Blob() after expiry = %v, %v; want false, nil", ok, err)
			}

			ok, err = s.Blob(ctx, "team-1", &got)
			if err != nil || ok {
				t.Errorf("Blob() missing = %v, %v; want false, nil", ok, err)
			}
		})
	}
}

func TestBackendNotFound(t *testing.T) {
	ctx := context.Background()
	for name, backend := range backends(t) {
		t.Run(name, func(t *testing.T) {
			if _, err := backend.Get(ctx, "subscriptions/none/x.json"); !IsNotFound(err) {
				t.Errorf("Get() error = %v, want not found", err)
			}
			if err := backend.Delete(ctx, "subscriptions/none/x.json"); !IsNotFound(err) {
				t.Errorf("Delete() error = %v, want not found", err)
			}
			keys, err := backend.List(ctx, "subscriptions/none/")
			if err != nil || len(keys) != 0 {
				t.Errorf("List() = %v, %v; want empty", keys, err)
			}
		})
	}
}
