package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RevocationRepository blocklists JWT ids that were logged out before
// their natural expiry. Each entry's TTL matches the remaining token
// lifetime, so Redis garbage-collects the list by itself.
type RevocationRepository struct {
	client *redis.Client
}

// NewRevocationRepository creates a new RevocationRepository
func NewRevocationRepository(client *redis.Client) *RevocationRepository {
	return &RevocationRepository{client: client}
}

func revocationKey(tokenID string) string {
	return fmt.Sprintf("revoked:jwt:%s", tokenID)
}

// Revoke blocklists the token id for the remainder of its lifetime
func (r *RevocationRepository) Revoke(ctx context.Context, tokenID string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil // already expired, nothing to block
	}
	if err := r.client.Set(ctx, revocationKey(tokenID), "1", ttl).Err(); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	return nil
}

// IsRevoked checks whether the token id was blocklisted
func (r *RevocationRepository) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	exists, err := r.client.Exists(ctx, revocationKey(tokenID)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check token revocation: %w", err)
	}
	return exists > 0, nil
}
