package realtime

import (
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"eduadvise-backend/pkg/logger"
	"eduadvise-backend/pkg/metrics"
)

// Registry tracks which users currently hold live WebSocket connections.
// A user may be connected from several devices at once, so each user maps
// to a set of connections. All methods are safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	conns map[uuid.UUID]map[*Connection]struct{}
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		conns: make(map[uuid.UUID]map[*Connection]struct{}),
	}
}

// Register wraps sock into a Connection owned by userID, adds it to the
// registry and starts its write pump. The connection removes itself from
// the registry when it closes, no matter which side initiated the close.
func (r *Registry) Register(userID uuid.UUID, sock Socket) *Connection {
	conn := NewConnection(userID, sock, r.remove)

	r.mu.Lock()
	set, ok := r.conns[userID]
	if !ok {
		set = make(map[*Connection]struct{})
		r.conns[userID] = set
	}
	set[conn] = struct{}{}
	total := len(set)
	r.mu.Unlock()

	metrics.WebSocketConnectionsActive.Inc()
	logger.Info("websocket connected",
		zap.String("user_id", userID.String()),
		zap.String("connection_id", conn.ID.String()),
		zap.Int("device_connections", total))

	go conn.Run()
	return conn
}

// remove deletes conn from the registry. Invoked exactly once per
// connection via the close callback.
func (r *Registry) remove(conn *Connection) {
	r.mu.Lock()
	set, ok := r.conns[conn.UserID]
	if ok {
		if _, present := set[conn]; present {
			delete(set, conn)
			if len(set) == 0 {
				delete(r.conns, conn.UserID)
			}
			metrics.WebSocketConnectionsActive.Dec()
		} else {
			ok = false
		}
	}
	r.mu.Unlock()

	if ok {
		logger.Info("websocket disconnected",
			zap.String("user_id", conn.UserID.String()),
			zap.String("connection_id", conn.ID.String()))
	}
}

// ConnectionsFor returns a snapshot of the user's live connections.
// The returned slice is owned by the caller; registering or closing
// connections afterwards does not mutate it.
func (r *Registry) ConnectionsFor(userID uuid.UUID) []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set := r.conns[userID]
	if len(set) == 0 {
		return nil
	}
	out := make([]*Connection, 0, len(set))
	for conn := range set {
		out = append(out, conn)
	}
	return out
}

// IsOnline reports whether the user has at least one live connection.
func (r *Registry) IsOnline(userID uuid.UUID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns[userID]) > 0
}

// OnlineCount returns the number of distinct online users.
func (r *Registry) OnlineCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// CloseAll force-closes every registered connection. Used on shutdown.
func (r *Registry) CloseAll() {
	r.mu.RLock()
	all := make([]*Connection, 0, len(r.conns))
	for _, set := range r.conns {
		for conn := range set {
			all = append(all, conn)
		}
	}
	r.mu.RUnlock()

	for _, conn := range all {
		conn.Close()
	}
}
