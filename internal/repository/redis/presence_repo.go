package redis

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"eduadvise-backend/pkg/constants"
)

// PresenceRepository mirrors WebSocket presence into Redis so other
// service instances (and ops tooling) can see who is reachable. The
// in-process registry remains the source of truth for local delivery;
// keys carry a TTL so a crashed instance cannot leave ghosts behind.
type PresenceRepository struct {
	client *redis.Client
}

// NewPresenceRepository creates a new PresenceRepository
func NewPresenceRepository(client *redis.Client) *PresenceRepository {
	return &PresenceRepository{client: client}
}

func presenceKey(userID uuid.UUID) string {
	return fmt.Sprintf("presence:%s", userID)
}

// SetOnline marks the user online with an auto-expiring key
func (r *PresenceRepository) SetOnline(ctx context.Context, userID uuid.UUID) error {
	pipe := r.client.Pipeline()
	pipe.Set(ctx, presenceKey(userID), "online", constants.PresenceTTL)
	pipe.SAdd(ctx, "presence:online", userID.String())
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to set user online: %w", err)
	}
	return nil
}

// SetOffline removes the user's presence
func (r *PresenceRepository) SetOffline(ctx context.Context, userID uuid.UUID) error {
	pipe := r.client.Pipeline()
	pipe.Del(ctx, presenceKey(userID))
	pipe.SRem(ctx, "presence:online", userID.String())
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to set user offline: %w", err)
	}
	return nil
}

// Refresh extends the presence TTL, driven by client pings
func (r *PresenceRepository) Refresh(ctx context.Context, userID uuid.UUID) error {
	if err := r.client.Expire(ctx, presenceKey(userID), constants.PresenceTTL).Err(); err != nil {
		return fmt.Errorf("failed to refresh presence: %w", err)
	}
	return nil
}

// IsOnline checks whether the user has a live presence key
func (r *PresenceRepository) IsOnline(ctx context.Context, userID uuid.UUID) (bool, error) {
	exists, err := r.client.Exists(ctx, presenceKey(userID)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check presence: %w", err)
	}
	return exists > 0, nil
}

// OnlineUsers lists currently online user ids
func (r *PresenceRepository) OnlineUsers(ctx context.Context) ([]uuid.UUID, error) {
	members, err := r.client.SMembers(ctx, "presence:online").Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list online users: %w", err)
	}

	userIDs := make([]uuid.UUID, 0, len(members))
	for _, member := range members {
		userID, err := uuid.Parse(member)
		if err != nil {
			continue
		}
		userIDs = append(userIDs, userID)
	}
	return userIDs, nil
}
