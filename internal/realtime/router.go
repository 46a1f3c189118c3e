package realtime

import (
	"encoding/json"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"eduadvise-backend/pkg/logger"
	"eduadvise-backend/pkg/metrics"
)

// Router fans events out to every live connection of a target user.
// Delivery is best-effort: an offline user simply receives nothing, and
// a connection whose send buffer overflows is evicted rather than
// allowed to stall everyone else's frames.
type Router struct {
	registry *Registry
}

// NewRouter builds a router on top of the given registry.
func NewRouter(registry *Registry) *Router {
	return &Router{registry: registry}
}

// Deliver marshals event once and enqueues it on each of the user's
// connections. It returns true if at least one connection accepted the
// frame; callers use that to decide on offline fallbacks such as email
// notification. Connections that cannot accept the frame are closed.
func (rt *Router) Deliver(userID uuid.UUID, event Event) bool {
	conns := rt.registry.ConnectionsFor(userID)
	if len(conns) == 0 {
		metrics.EventsDroppedTotal.WithLabelValues("offline").Inc()
		return false
	}

	frame, err := json.Marshal(event)
	if err != nil {
		logger.Error("event marshal failed",
			zap.String("kind", event.EventKind()),
			zap.Error(err))
		metrics.EventsDroppedTotal.WithLabelValues("marshal_error").Inc()
		return false
	}

	delivered := false
	for _, conn := range conns {
		if err := conn.Enqueue(frame); err != nil {
			logger.Warn("evicting undeliverable connection",
				zap.String("user_id", userID.String()),
				zap.String("connection_id", conn.ID.String()),
				zap.String("kind", event.EventKind()),
				zap.Error(err))
			metrics.EventsDroppedTotal.WithLabelValues("send_failed").Inc()
			metrics.DeliveryFailuresTotal.Inc()
			conn.Close()
			continue
		}
		delivered = true
	}

	if delivered {
		metrics.EventsDeliveredTotal.WithLabelValues(event.EventKind()).Inc()
	}
	return delivered
}

// DeliverToBoth sends the same event to two users, typically both call
// parties. Returns delivery outcome per user in argument order.
func (rt *Router) DeliverToBoth(a, b uuid.UUID, event Event) (bool, bool) {
	return rt.Deliver(a, event), rt.Deliver(b, event)
}

// IsOnline reports whether the user has at least one live connection.
func (rt *Router) IsOnline(userID uuid.UUID) bool {
	return rt.registry.IsOnline(userID)
}
