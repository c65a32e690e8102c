package sports

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"display-hub/pkg/livescore"
)

type recordingUnsubscriber struct {
	mu   sync.Mutex
	jobs []string
	done chan struct{}
}

func (r *recordingUnsubscriber) Unsubscribe(_ context.Context, sub livescore.SubscriptionEvent) error {
	r.mu.Lock()
	r.jobs = append(r.jobs, sub.JobID)
	r.mu.Unlock()
	r.done <- struct{}{}
	return nil
}

func TestCancelQueue(t *testing.T) {
	rec := &recordingUnsubscriber{done: make(chan struct{}, 4)}
	q := NewCancelQueue(rec, 2, testLogger())

	q.Cancel(livescore.SubscriptionEvent{ID: "g0"}) // no job, skipped
	q.Cancel(livescore.SubscriptionEvent{ID: "g1", JobID: "j1:x"})
	q.Cancel(livescore.SubscriptionEvent{ID: "g2", JobID: "j2"})
	q.Cancel(livescore.SubscriptionEvent{ID: "g3", JobID: "j3"}) // queue full, dropped

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- q.Serve(ctx) }()

	for range 2 {
		select {
		case <-rec.done:
		case <-time.After(time.Second):
			t.Fatal("cancellation not performed")
		}
	}
	cancel()
	if err := <-errCh; !errors.Is(err, context.Canceled) {
		t.Errorf("Serve() error = %v, want context.Canceled", err)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.jobs) != 2 || rec.jobs[0] != "j1:x" || rec.jobs[1] != "j2" {
		t.Errorf("unsubscribed jobs = %v, want [j1:x j2]", rec.jobs)
	}
}
