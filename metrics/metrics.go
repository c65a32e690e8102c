// Package metrics holds the Prometheus instruments shared across the hub.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EventsTotal counts events taken off the bus by content type.
	EventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hub_events_total",
			Help: "Events popped from the event bus",
		},
		[]string{"content_type"},
	)

	// DispatchFailures counts widget handlers that failed or panicked.
	DispatchFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hub_event_dispatch_failures_total",
			Help: "Widget event handlers that failed",
		},
		[]string{"widget"},
	)

	// Activations counts rotation activations per widget.
	Activations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hub_rotation_activations_total",
			Help: "Widgets activated by the rotation",
		},
		[]string{"widget"},
	)

	// Notifications counts push notifications sent per app.
	Notifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hub_notifications_total",
			Help: "Push notifications sent to the device",
		},
		[]string{"app"},
	)

	// Subscriptions tracks the stored subscription count per storage key.
	Subscriptions = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "hub_subscriptions",
			Help: "Tracked subscriptions per storage key",
		},
		[]string{"storage_key"},
	)

	// UpstreamRequests counts outbound calls by upstream and result.
	UpstreamRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hub_upstream_requests_total",
			Help: "Outbound requests to upstream services",
		},
		[]string{"upstream", "result"},
	)

	// BreakerState is 0 closed, 1 half-open, 2 open.
	BreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "hub_circuit_breaker_state",
			Help: "Circuit breaker state per upstream (0 closed, 1 half-open, 2 open)",
		},
		[]string{"upstream"},
	)

	// OutboundDropped counts device calls dropped because the send queue was full.
	OutboundDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hub_outbound_dropped_total",
		Help: "Device calls dropped because the send queue was full",
	})

	// BusDepth is the number of events waiting on the bus.
	BusDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "hub_bus_depth",
		Help: "Events published but not yet popped",
	})
)
