package sports

import (
	"context"
	"log/slog"

	"display-hub/pkg/livescore"
)

// Unsubscriber cancels upstream subscriptions.
type Unsubscriber interface {
	Unsubscribe(ctx context.Context, sub livescore.SubscriptionEvent) error
}

// CancelQueue performs upstream cancellations off the event loop.
type CancelQueue struct {
	client Unsubscriber
	logger *slog.Logger
	queue  chan livescore.SubscriptionEvent
}

// NewCancelQueue creates a queue holding up to size pending cancellations.
func NewCancelQueue(client Unsubscriber, size int, logger *slog.Logger) *CancelQueue {
	if size <= 0 {
		size = 32
	}
	return &CancelQueue{
		client: client,
		logger: logger,
		queue:  make(chan livescore.SubscriptionEvent, size),
	}
}

// Cancel schedules cancellation of sub's upstream job. It never blocks.
func (q *CancelQueue) Cancel(sub livescore.SubscriptionEvent) {
	if sub.JobID == "" {
		q.logger.Debug("Subscription has no job to cancel", "id", sub.ID)
		return
	}
	select {
	case q.queue <- sub:
	default:
		q.logger.Warn("Cancel queue full, dropping cancellation", "id", sub.ID, "job_id", sub.JobID)
	}
}

// Serve performs queued cancellations until ctx is done.
func (q *CancelQueue) Serve(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case sub := <-q.queue:
			if err := q.client.Unsubscribe(ctx, sub); err != nil {
				q.logger.Warn("Failed to cancel upstream subscription", "id", sub.ID, "job_id", sub.JobID, "error", err)
			}
		}
	}
}

func (q *CancelQueue) String() string {
	return "sports-cancel-queue"
}
