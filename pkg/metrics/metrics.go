// Package metrics provides Prometheus metrics instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestDuration tracks HTTP request duration on the gateway.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "widget_request_duration_seconds",
			Help:    "Gateway HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	// RequestsTotal tracks total gateway HTTP requests.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "widget_requests_total",
			Help: "Total gateway HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// APICallDuration tracks upstream conversation API call duration.
	APICallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chat_api_call_duration_seconds",
			Help:    "Conversation API call duration in seconds",
			Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"endpoint", "status"},
	)

	// APICallsTotal tracks total upstream conversation API calls.
	APICallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_api_calls_total",
			Help: "Total conversation API calls",
		},
		[]string{"endpoint", "status"},
	)

	// SessionsActive tracks currently open widget sessions.
	SessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_sessions_active",
			Help: "Number of open widget sessions",
		},
	)

	// MessagesMerged tracks messages merged into session state by source.
	MessagesMerged = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_messages_merged_total",
			Help: "Messages merged into session state",
		},
		[]string{"source"},
	)

	// PollTicks tracks snapshot poll attempts by outcome.
	PollTicks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_poll_ticks_total",
			Help: "Snapshot poll attempts",
		},
		[]string{"outcome"},
	)

	// PushEvents tracks realtime channel events by type.
	PushEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_push_events_total",
			Help: "Realtime channel events received",
		},
		[]string{"type"},
	)

	// TransportSwitches tracks transitions between push and poll delivery.
	TransportSwitches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_transport_switches_total",
			Help: "Transitions between push and poll delivery",
		},
		[]string{"to"},
	)

	// TokenRecoveries tracks automatic re-initializations after a token error.
	TokenRecoveries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_token_recoveries_total",
			Help: "Automatic session re-initializations after a token error",
		},
	)

	// SSEConnectionsActive tracks active snapshot-stream connections.
	SSEConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "widget_sse_connections_active",
			Help: "Number of active SSE connections",
		},
	)
)

// RecordRequest records metrics for a gateway HTTP request.
func RecordRequest(method, path, status string, duration float64) {
	RequestDuration.WithLabelValues(method, path, status).Observe(duration)
	RequestsTotal.WithLabelValues(method, path, status).Inc()
}

// RecordAPICall records metrics for an upstream conversation API call.
func RecordAPICall(endpoint, status string, duration float64) {
	APICallDuration.WithLabelValues(endpoint, status).Observe(duration)
	APICallsTotal.WithLabelValues(endpoint, status).Inc()
}

// IncrementSSEConnections increments the active SSE connection count.
func IncrementSSEConnections() {
	SSEConnectionsActive.Inc()
}

// DecrementSSEConnections decrements the active SSE connection count.
func DecrementSSEConnections() {
	SSEConnectionsActive.Dec()
}
