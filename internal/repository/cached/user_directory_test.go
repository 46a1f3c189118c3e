package cached

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eduadvise-backend/internal/domain"
	"eduadvise-backend/pkg/errors"
)

type countingDirectory struct {
	users map[uuid.UUID]*domain.User
	calls int
}

func (d *countingDirectory) GetByID(_ context.Context, id uuid.UUID) (*domain.User, error) {
	d.calls++
	u, ok := d.users[id]
	if !ok {
		return nil, errors.UserNotFoundError()
	}
	return u, nil
}

func TestGetByIDCachesHits(t *testing.T) {
	user := &domain.User{UserID: uuid.New(), Email: "mei@example.com", FullName: "Mei Chen"}
	inner := &countingDirectory{users: map[uuid.UUID]*domain.User{user.UserID: user}}
	dir := NewUserDirectory(inner)

	for i := 0; i < 5; i++ {
		got, err := dir.GetByID(context.Background(), user.UserID)
		require.NoError(t, err)
		assert.Equal(t, "Mei Chen", got.FullName)
	}
	assert.Equal(t, 1, inner.calls)
}

func TestGetByIDDoesNotCacheMisses(t *testing.T) {
	inner := &countingDirectory{users: map[uuid.UUID]*domain.User{}}
	dir := NewUserDirectory(inner)

	unknown := uuid.New()
	_, err := dir.GetByID(context.Background(), unknown)
	require.Error(t, err)
	_, err = dir.GetByID(context.Background(), unknown)
	require.Error(t, err)

	assert.Equal(t, 2, inner.calls, "misses should retry the store")
}

func TestInvalidateForcesRefetch(t *testing.T) {
	user := &domain.User{UserID: uuid.New(), FullName: "Amara Osei"}
	inner := &countingDirectory{users: map[uuid.UUID]*domain.User{user.UserID: user}}
	dir := NewUserDirectory(inner)

	_, err := dir.GetByID(context.Background(), user.UserID)
	require.NoError(t, err)

	dir.Invalidate(user.UserID)

	_, err = dir.GetByID(context.Background(), user.UserID)
	require.NoError(t, err)
	assert.Equal(t, 2, inner.calls)
}
