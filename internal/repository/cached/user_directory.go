// Package cached wraps repositories with short-TTL memory caches for
// the hot lookups on the realtime path.
package cached

import (
	"context"
	"time"

	"github.com/google/uuid"

	"eduadvise-backend/internal/domain"
	"eduadvise-backend/pkg/cache"
)

const (
	userTTL     = 30 * time.Second
	userMaxSize = 10000
)

// UserDirectory caches user records in front of the CockroachDB user
// repository. Every message send and call initiation resolves both
// participants; their names and emails change rarely, so a short TTL
// of staleness is an acceptable trade for skipping the round-trip.
type UserDirectory struct {
	inner interface {
		GetByID(ctx context.Context, userID uuid.UUID) (*domain.User, error)
	}
	users *cache.Memory[*domain.User]
}

// NewUserDirectory wraps inner with a TTL cache.
func NewUserDirectory(inner interface {
	GetByID(ctx context.Context, userID uuid.UUID) (*domain.User, error)
}) *UserDirectory {
	return &UserDirectory{
		inner: inner,
		users: cache.NewMemory[*domain.User](userTTL, userMaxSize),
	}
}

// GetByID resolves a user, serving repeat lookups from the cache.
// Not-found results are not cached; the next lookup retries the store.
func (d *UserDirectory) GetByID(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	key := userID.String()
	if user, ok := d.users.Get(key); ok {
		return user, nil
	}

	user, err := d.inner.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	d.users.Set(key, user, 0)
	return user, nil
}

// Invalidate drops a user's cached record, for callers that just
// changed it.
func (d *UserDirectory) Invalidate(userID uuid.UUID) {
	d.users.Delete(userID.String())
}
