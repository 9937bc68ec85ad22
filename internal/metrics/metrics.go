// Package metrics defines the Prometheus instrumentation for the relay.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Chat core metrics
var (
	// ConnectedClients tracks the number of currently registered connections
	ConnectedClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_connected_clients",
			Help: "Number of currently registered chat connections",
		},
	)

	// MessagesPosted tracks messages appended to the store by kind
	MessagesPosted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_messages_posted_total",
			Help: "Total messages appended to the store by kind (message/image)",
		},
		[]string{"kind"},
	)

	// ReactionsApplied tracks reaction mutations that changed a message
	ReactionsApplied = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_reactions_applied_total",
			Help: "Total reactions appended to messages",
		},
	)

	// ReactionsDropped tracks reaction events on unknown message identifiers
	ReactionsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_reactions_dropped_total",
			Help: "Total reaction events dropped because the message was not found",
		},
	)

	// BroadcastEvents tracks fan-out invocations by event type
	BroadcastEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_broadcast_events_total",
			Help: "Total broadcast fan-outs by event type",
		},
		[]string{"type"},
	)

	// SlowClientsEvicted tracks connections dropped for unwritable transports
	SlowClientsEvicted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_slow_clients_evicted_total",
			Help: "Total connections evicted because their send buffer was full or the write failed",
		},
	)

	// WebSocketMessageSendDuration tracks per-recipient write latency
	WebSocketMessageSendDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "websocket_message_send_duration_seconds",
			Help:    "WebSocket message send duration in seconds",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1},
		},
	)

	// WebSocketPingFailures tracks failed keepalive pings
	WebSocketPingFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_ping_failures_total",
			Help: "Total WebSocket ping failures",
		},
	)
)

// Admission gate metrics
var (
	// PasscodesIssued tracks one-time passcodes generated and emailed
	PasscodesIssued = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "otp_passcodes_issued_total",
			Help: "Total one-time passcodes issued",
		},
	)

	// PasscodeVerifications tracks verification attempts by outcome
	PasscodeVerifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "otp_passcode_verifications_total",
			Help: "Total passcode verification attempts by outcome (success/mismatch/not_found)",
		},
		[]string{"outcome"},
	)
)

// Connection limit metrics
var (
	// ConnectionsRejected tracks websocket upgrades refused by the limiter
	ConnectionsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_connections_rejected_total",
			Help: "Total connections rejected by limit reason",
		},
		[]string{"reason"},
	)
)
