package realtime

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"eduadvise-backend/pkg/constants"
	"eduadvise-backend/pkg/errors"
	"eduadvise-backend/pkg/logger"
)

// Socket is the subset of *websocket.Conn the connection layer needs.
// Tests swap in a fake; production always passes a gorilla conn.
type Socket interface {
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// Connection wraps one WebSocket connection belonging to one user. All
// writes go through the send channel and are drained by a single
// writePump goroutine, so frames for a connection are written in the
// order they were enqueued and no two goroutines ever write the socket
// concurrently.
type Connection struct {
	ID     uuid.UUID
	UserID uuid.UUID

	sock Socket
	send chan []byte

	closeOnce sync.Once
	done      chan struct{}

	// onClose runs exactly once when the connection shuts down,
	// regardless of who initiated it. The registry uses it to
	// unregister the connection.
	onClose func(*Connection)
}

// NewConnection wraps sock for userID. The caller must start the write
// pump with Run (usually via Registry.Register).
func NewConnection(userID uuid.UUID, sock Socket, onClose func(*Connection)) *Connection {
	return &Connection{
		ID:      uuid.New(),
		UserID:  userID,
		sock:    sock,
		send:    make(chan []byte, constants.ConnectionSendBuffer),
		done:    make(chan struct{}),
		onClose: onClose,
	}
}

// Enqueue queues an already-marshaled frame for delivery. It never
// blocks: if the send buffer is full the frame is rejected and the
// caller decides what to do with the connection.
func (c *Connection) Enqueue(frame []byte) error {
	select {
	case <-c.done:
		return errors.ConnectionClosedError()
	default:
	}

	select {
	case c.send <- frame:
		return nil
	case <-c.done:
		return errors.ConnectionClosedError()
	default:
		return errors.SendBufferFullError()
	}
}

// Run drains the send channel onto the socket and emits periodic pings.
// It returns when the connection is closed or a write fails; either way
// the connection ends up closed and unregistered.
func (c *Connection) Run() {
	ticker := time.NewTicker(constants.WebSocketPingInterval)
	defer ticker.Stop()
	defer c.Close()

	for {
		select {
		case frame := <-c.send:
			if err := c.write(websocket.TextMessage, frame); err != nil {
				logger.Debug("websocket write failed",
					zap.String("user_id", c.UserID.String()),
					zap.Error(err))
				return
			}
		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

func (c *Connection) write(messageType int, data []byte) error {
	if err := c.sock.SetWriteDeadline(time.Now().Add(constants.WebSocketWriteTimeout)); err != nil {
		return err
	}
	return c.sock.WriteMessage(messageType, data)
}

// Close tears the connection down. Safe to call from any goroutine and
// any number of times; the underlying socket is closed and onClose runs
// exactly once.
func (c *Connection) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.sock.Close()
		if c.onClose != nil {
			c.onClose(c)
		}
	})
}

// Closed reports whether Close has completed its first call.
func (c *Connection) Closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}
