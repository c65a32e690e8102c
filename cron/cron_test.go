package cron

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"slices"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeJob struct {
	key     string
	errs    []error
	ctxErrs []error
	calls   int
}

func (f *fakeJob) Key() string { return f.key }

func (f *fakeJob) AutoSubscribe(ctx context.Context) error {
	f.calls++
	f.ctxErrs = append(f.ctxErrs, ctx.Err())
	if len(f.errs) == 0 {
		return nil
	}
	err := f.errs[0]
	f.errs = f.errs[1:]
	return err
}

func newTestScheduler() *Scheduler {
	s := New(Config{Location: time.UTC, Hour: 6}, testLogger())
	s.jitter = func() int { return 17 }
	return s
}

func TestRegisterIsIdempotent(t *testing.T) {
	s := newTestScheduler()
	j := &fakeJob{key: "worldcup"}

	for range 3 {
		if err := s.Register(j); err != nil {
			t.Fatalf("Register() error = %v", err)
		}
	}
	if got := len(s.cron.Entries()); got != 1 {
		t.Errorf("cron entries = %d, want 1", got)
	}
	next := s.cron.Entries()[0].Schedule.Next(time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC))
	want := time.Date(2026, 6, 1, 6, 17, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Errorf("next run = %v, want %v", next, want)
	}
}

func TestFailedRunSchedulesRetry(t *testing.T) {
	s := newTestScheduler()
	now := time.Date(2026, 6, 1, 6, 17, 0, 0, time.UTC)
	s.now = func() time.Time { return now }
	j := &fakeJob{key: "rm", errs: []error{errors.New("schedule unavailable"), errors.New("still down")}}
	ctx := context.Background()

	s.Run(ctx, j)
	if !slices.Contains(s.IDs(), "rm_retry") {
		t.Fatalf("IDs() = %v, want rm_retry", s.IDs())
	}
	entry := s.cron.Entries()[0]
	if got := entry.Schedule.Next(now); !got.Equal(now.Add(30 * time.Minute)) {
		t.Errorf("retry at = %v, want %v", got, now.Add(30*time.Minute))
	}

	// the retry re-arms itself while the job keeps failing
	s.Run(ctx, j)
	if got := len(s.cron.Entries()); got != 1 {
		t.Errorf("cron entries = %d, want 1 retry entry", got)
	}

	s.Run(ctx, j)
	if slices.Contains(s.IDs(), "rm_retry") {
		t.Errorf("IDs() = %v, want retry removed after success", s.IDs())
	}
	if j.calls != 3 {
		t.Errorf("calls = %d, want 3", j.calls)
	}
}

func TestOnceFiresOnce(t *testing.T) {
	at := time.Date(2026, 6, 1, 7, 0, 0, 0, time.UTC)
	o := once{at: at}
	if got := o.Next(at.Add(-time.Minute)); !got.Equal(at) {
		t.Errorf("Next(before) = %v, want %v", got, at)
	}
	if got := o.Next(at); !got.IsZero() {
		t.Errorf("Next(at) = %v, want zero", got)
	}
}

func TestServeRunsJobsAtStartup(t *testing.T) {
	s := newTestScheduler()
	a := &fakeJob{key: "premier_league"}
	b := &fakeJob{key: "rm"}
	s.Add(a)
	s.Add(b)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx) }()

	deadline := time.After(2 * time.Second)
	for len(s.IDs()) < 2 {
		select {
		case <-deadline:
			t.Fatalf("IDs() = %v, want both jobs registered", s.IDs())
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("Serve() error = %v, want context.Canceled", err)
	}
	if a.calls != 1 || b.calls != 1 {
		t.Errorf("startup runs = %d, %d, want 1 each", a.calls, b.calls)
	}
}

func TestRetryAfterRestartUsesLiveContext(t *testing.T) {
	s := newTestScheduler()
	j := &fakeJob{key: "rm", errs: []error{errors.New("schedule unavailable")}}

	// armed by a run whose context has since been cancelled
	stale, cancelStale := context.WithCancel(context.Background())
	s.Run(stale, j)
	cancelStale()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx) }()
	defer func() {
		cancel()
		<-done
	}()

	s.mu.Lock()
	id, ok := s.entries["rm"+retrySuffix]
	s.mu.Unlock()
	if !ok {
		t.Fatalf("IDs() = %v, want rm_retry", s.IDs())
	}
	s.cron.Entry(id).Job.Run()

	if len(j.ctxErrs) != 2 || j.ctxErrs[1] != nil {
		t.Errorf("retry ran with context error %v, want a live context", j.ctxErrs)
	}
	if slices.Contains(s.IDs(), "rm"+retrySuffix) {
		t.Error("retry entry must be removed after the job succeeds")
	}
}
