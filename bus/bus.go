// Package bus carries typed events from ingestion to the display engine.
package bus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"display-hub/metrics"
	"display-hub/pkg/lametric"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
)

// Topic is the single topic events travel on.
const Topic = "display.events"

const contentTypeKey = "content_type"

// ErrClosed is returned once the bus has been closed.
var ErrClosed = errors.New("event bus closed")

// Event is one typed payload. Payload is the raw JSON body as received.
type Event struct {
	ID      string
	Type    lametric.ContentType
	Payload []byte
}

// Bus is an in-process event queue. Independent publishers are not ordered
// relative to each other.
type Bus struct {
	pubsub   *gochannel.GoChannel
	messages <-chan *message.Message
	logger   *slog.Logger
	cancel   context.CancelFunc
	depth    atomic.Int64
}

// New creates a bus with one consumer subscription.
func New(buffer int64, logger *slog.Logger) (*Bus, error) {
	pubsub := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: buffer,
	}, watermill.NewSlogLogger(logger.With("component", "watermill")))

	ctx, cancel := context.WithCancel(context.Background())
	messages, err := pubsub.Subscribe(ctx, Topic)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("subscribe to %s: %w", Topic, err)
	}
	return &Bus{
		pubsub:   pubsub,
		messages: messages,
		logger:   logger,
		cancel:   cancel,
	}, nil
}

// Publish enqueues payload as an event of type t.
func (b *Bus) Publish(t lametric.ContentType, payload []byte) error {
	msg := message.NewMessage(uuid.NewString(), payload)
	msg.Metadata.Set(contentTypeKey, string(t))
	if err := b.pubsub.Publish(Topic, msg); err != nil {
		return fmt.Errorf("publish %s: %w", t, err)
	}
	metrics.BusDepth.Set(float64(b.depth.Add(1)))
	b.logger.Debug("Event published", "id", msg.UUID, "content_type", t, "bytes", len(payload))
	return nil
}

// Pop waits up to timeout for the next event. It reports false when nothing arrived in time.
func (b *Bus) Pop(ctx context.Context, timeout time.Duration) (Event, bool, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return Event{}, false, ctx.Err()
	case <-timer.C:
		return Event{}, false, nil
	case msg, ok := <-b.messages:
		if !ok {
			return Event{}, false, ErrClosed
		}
		msg.Ack()
		metrics.BusDepth.Set(float64(b.depth.Add(-1)))
		metrics.EventsTotal.WithLabelValues(msg.Metadata.Get(contentTypeKey)).Inc()
		return Event{
			ID:      msg.UUID,
			Type:    lametric.ContentType(msg.Metadata.Get(contentTypeKey)),
			Payload: msg.Payload,
		}, true, nil
	}
}

// Close stops the bus. Pending events are dropped.
func (b *Bus) Close() error {
	b.cancel()
	if err := b.pubsub.Close(); err != nil {
		return fmt.Errorf("close pubsub: %w", err)
	}
	return nil
}
