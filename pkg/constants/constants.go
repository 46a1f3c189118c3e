// Package constants defines application-wide constants for timeouts, limits, and durations.
package constants

import "time"

// Time-related constants
const (
	// DefaultTimeout is the default timeout for most operations
	DefaultTimeout = 30 * time.Second

	// WebSocketPingInterval is the interval for WebSocket ping/pong
	WebSocketPingInterval = 60 * time.Second

	// WebSocketWriteTimeout bounds a single outbound frame write; a write
	// that exceeds it counts as a delivery failure and drops the connection
	WebSocketWriteTimeout = 10 * time.Second

	// ConnectionSendBuffer is the per-connection outbound queue size
	ConnectionSendBuffer = 256

	// DefaultRingTimeout is how long a call may stay in ringing before the
	// system marks it missed
	DefaultRingTimeout = 60 * time.Second

	// PresenceTTL is how long a Redis presence key lives without a refresh
	PresenceTTL = 5 * time.Minute
)

// Pagination limits
const (
	DefaultPageSize = 20
	MaxPageSize     = 100

	// DefaultMessageFetchLimit is the default page size for conversation history
	DefaultMessageFetchLimit = 50
)

// Upload limits
const (
	// MaxUploadSize is the maximum accepted file upload size (10 MB)
	MaxUploadSize = 10 << 20
)
