package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Realtime core metrics for connection registry, event routing and call lifecycle
var (
	WebSocketConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "realtime_websocket_connections_active",
		Help: "Current number of registered WebSocket connections",
	})

	EventsDeliveredTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "realtime_events_delivered_total",
		Help: "Total number of events enqueued to live connections",
	}, []string{"kind"})

	EventsDroppedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "realtime_events_dropped_total",
		Help: "Total number of events dropped",
	}, []string{"reason"}) // "offline", "send_failed", "marshal_error"

	DeliveryFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "realtime_delivery_failures_total",
		Help: "Total number of per-connection delivery failures causing unregistration",
	})

	MalformedFramesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "realtime_malformed_frames_total",
		Help: "Total number of inbound frames that failed to parse or dispatch",
	})

	CallTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "call_transitions_total",
		Help: "Total number of accepted call state transitions",
	}, []string{"from", "to"})

	CallTransitionsRejectedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "call_transitions_rejected_total",
		Help: "Total number of rejected call state transitions",
	})

	CallRingTimeoutsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "call_ring_timeouts_total",
		Help: "Total number of calls marked missed by the ring timeout",
	})

	MessagesPersistedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_messages_persisted_total",
		Help: "Total number of messages persisted",
	}, []string{"status"}) // "ok", "error"

	OfflineEmailsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "offline_notification_emails_total",
		Help: "Total number of offline notification emails attempted",
	}, []string{"type", "status"})
)
