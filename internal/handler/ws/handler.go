package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"eduadvise-backend/internal/realtime"
	"eduadvise-backend/pkg/logger"
	"eduadvise-backend/pkg/metrics"
	"eduadvise-backend/pkg/response"
)

const readDeadline = 90 * time.Second

// Inbound frame kinds accepted from clients. Everything outbound goes
// through the event router; the read loop only handles these.
const (
	frameTypePing              = "ping"
	frameTypeJoinConversation  = "join_conversation"
	frameTypeLeaveConversation = "leave_conversation"
	frameTypeTyping            = "typing"
	frameTypeStopTyping        = "stop_typing"
)

// inboundFrame is the envelope of every client-to-server frame.
type inboundFrame struct {
	Type           string    `json:"type"`
	ConversationID uuid.UUID `json:"conversation_id,omitempty"`
}

// TypingRelay forwards typing indicators after participation checks.
type TypingRelay interface {
	RelayTyping(ctx context.Context, userID, conversationID uuid.UUID, typing bool) error
}

// Presence mirrors connection state into shared storage.
type Presence interface {
	SetOnline(ctx context.Context, userID uuid.UUID) error
	SetOffline(ctx context.Context, userID uuid.UUID) error
	Refresh(ctx context.Context, userID uuid.UUID) error
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// auth happens via the bearer token, not the Origin header
		return true
	},
}

// Handler owns the WebSocket endpoint: it authenticates the path
// against the token identity, registers the connection and runs the
// per-connection read loop.
type Handler struct {
	registry *realtime.Registry
	typing   TypingRelay
	presence Presence
}

// NewHandler creates a new WebSocket handler
func NewHandler(registry *realtime.Registry, typing TypingRelay, presence Presence) *Handler {
	return &Handler{registry: registry, typing: typing, presence: presence}
}

// Serve upgrades GET /ws/:user_id. The path segment must match the
// authenticated user; connecting as someone else is rejected before the
// upgrade.
func (h *Handler) Serve(c *gin.Context) {
	pathID, err := uuid.Parse(c.Param("user_id"))
	if err != nil {
		response.Error(c, http.StatusBadRequest, "INVALID_INPUT", "invalid user id")
		return
	}

	authedID, ok := authenticatedUserID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required")
		return
	}
	if pathID != authedID {
		response.Error(c, http.StatusForbidden, "FORBIDDEN", "cannot connect as another user")
		return
	}

	sock, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warn("websocket upgrade failed",
			zap.String("user_id", pathID.String()),
			zap.Error(err))
		return
	}

	conn := h.registry.Register(pathID, sock)
	if h.presence != nil {
		if err := h.presence.SetOnline(c.Request.Context(), pathID); err != nil {
			logger.Warn("presence set online failed",
				zap.String("user_id", pathID.String()),
				zap.Error(err))
		}
	}

	h.readLoop(conn, sock)
}

// readLoop consumes inbound frames until the socket dies. It owns the
// per-connection set of joined conversations: typing indicators are
// only relayed for conversations the client explicitly joined.
func (h *Handler) readLoop(conn *realtime.Connection, sock *websocket.Conn) {
	defer func() {
		conn.Close()
		if h.presence != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if h.registry.IsOnline(conn.UserID) {
				// another device is still connected; keep presence
				return
			}
			if err := h.presence.SetOffline(ctx, conn.UserID); err != nil {
				logger.Warn("presence set offline failed",
					zap.String("user_id", conn.UserID.String()),
					zap.Error(err))
			}
		}
	}()

	_ = sock.SetReadDeadline(time.Now().Add(readDeadline))
	sock.SetPongHandler(func(string) error {
		return sock.SetReadDeadline(time.Now().Add(readDeadline))
	})

	joined := make(map[uuid.UUID]struct{})

	for {
		_, raw, err := sock.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Debug("websocket read ended",
					zap.String("user_id", conn.UserID.String()),
					zap.Error(err))
			}
			return
		}
		_ = sock.SetReadDeadline(time.Now().Add(readDeadline))

		var frame inboundFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			metrics.MalformedFramesTotal.Inc()
			continue
		}
		h.dispatch(conn, joined, &frame)
	}
}

func (h *Handler) dispatch(conn *realtime.Connection, joined map[uuid.UUID]struct{}, frame *inboundFrame) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	switch frame.Type {
	case frameTypePing:
		if h.presence != nil {
			if err := h.presence.Refresh(ctx, conn.UserID); err != nil {
				logger.Debug("presence refresh failed", zap.Error(err))
			}
		}
		_ = conn.Enqueue([]byte(`{"type":"pong"}`))

	case frameTypeJoinConversation:
		if frame.ConversationID == uuid.Nil {
			metrics.MalformedFramesTotal.Inc()
			return
		}
		joined[frame.ConversationID] = struct{}{}

	case frameTypeLeaveConversation:
		delete(joined, frame.ConversationID)

	case frameTypeTyping, frameTypeStopTyping:
		if _, ok := joined[frame.ConversationID]; !ok {
			// typing from a conversation the client never joined
			metrics.MalformedFramesTotal.Inc()
			return
		}
		typing := frame.Type == frameTypeTyping
		if err := h.typing.RelayTyping(ctx, conn.UserID, frame.ConversationID, typing); err != nil {
			logger.Debug("typing relay rejected",
				zap.String("user_id", conn.UserID.String()),
				zap.String("conversation_id", frame.ConversationID.String()),
				zap.Error(err))
		}

	default:
		metrics.MalformedFramesTotal.Inc()
	}
}

// authenticatedUserID pulls the identity set by the auth middleware.
func authenticatedUserID(c *gin.Context) (uuid.UUID, bool) {
	v, exists := c.Get("user_id")
	if !exists {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok
}
