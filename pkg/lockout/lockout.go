package lockout

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Manager tracks failed login attempts in Redis and locks accounts
// after too many consecutive failures
type Manager struct {
	redisClient  *redis.Client
	maxAttempts  int
	lockDuration time.Duration
}

// NewManager creates a lockout manager with default policy (5 attempts, 15 minute lock)
func NewManager(redisClient *redis.Client) *Manager {
	return &Manager{
		redisClient:  redisClient,
		maxAttempts:  5,
		lockDuration: 15 * time.Minute,
	}
}

// Config holds lockout configuration
type Config struct {
	MaxAttempts  int
	LockDuration time.Duration
}

// SetConfig updates lockout policy
func (m *Manager) SetConfig(cfg Config) {
	if cfg.MaxAttempts > 0 {
		m.maxAttempts = cfg.MaxAttempts
	}
	if cfg.LockDuration > 0 {
		m.lockDuration = cfg.LockDuration
	}
}

func (m *Manager) failedKey(identifier string) string {
	return fmt.Sprintf("lockout:failed:%s", identifier)
}

// RecordFailedAttempt records a failed login attempt for the identifier
func (m *Manager) RecordFailedAttempt(ctx context.Context, identifier string) error {
	key := m.failedKey(identifier)

	pipe := m.redisClient.Pipeline()
	pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, m.lockDuration)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to record login attempt: %w", err)
	}
	return nil
}

// IsLocked reports whether the identifier has exceeded the attempt limit
func (m *Manager) IsLocked(ctx context.Context, identifier string) (bool, error) {
	count, err := m.redisClient.Get(ctx, m.failedKey(identifier)).Int()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check lockout state: %w", err)
	}
	return count >= m.maxAttempts, nil
}

// Reset clears failed attempts after a successful login
func (m *Manager) Reset(ctx context.Context, identifier string) error {
	if err := m.redisClient.Del(ctx, m.failedKey(identifier)).Err(); err != nil {
		return fmt.Errorf("failed to reset lockout state: %w", err)
	}
	return nil
}
