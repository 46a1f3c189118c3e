package cockroach

import (
	"context"
	stderrors "errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"eduadvise-backend/internal/domain"
	"eduadvise-backend/pkg/errors"
)

const userColumns = `user_id, email, password_hash, full_name, user_type, phone, country, timezone, avatar_url, is_active, created_at`

// UserRepository handles user records in CockroachDB
type UserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository creates a new UserRepository
func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

// Create inserts a new user
func (r *UserRepository) Create(ctx context.Context, user *domain.User) error {
	query := `
		INSERT INTO users (user_id, email, password_hash, full_name, user_type, phone, country, timezone, avatar_url, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at
	`
	err := r.pool.QueryRow(ctx, query,
		user.UserID,
		user.Email,
		user.PasswordHash,
		user.FullName,
		user.UserType,
		user.Phone,
		user.Country,
		user.Timezone,
		user.AvatarURL,
		user.IsActive,
	).Scan(&user.CreatedAt)
	if err != nil {
		return errors.DatabaseError(err)
	}
	return nil
}

func (r *UserRepository) scanUser(row pgx.Row) (*domain.User, error) {
	user := &domain.User{}
	err := row.Scan(
		&user.UserID,
		&user.Email,
		&user.PasswordHash,
		&user.FullName,
		&user.UserType,
		&user.Phone,
		&user.Country,
		&user.Timezone,
		&user.AvatarURL,
		&user.IsActive,
		&user.CreatedAt,
	)
	if err != nil {
		if stderrors.Is(err, pgx.ErrNoRows) {
			return nil, errors.UserNotFoundError()
		}
		return nil, errors.DatabaseError(err)
	}
	return user, nil
}

// GetByID retrieves a user by id
func (r *UserRepository) GetByID(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE user_id = $1`
	return r.scanUser(r.pool.QueryRow(ctx, query, userID))
}

// GetByEmail retrieves a user by email
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return r.scanUser(r.pool.QueryRow(ctx, query, email))
}

// ListCounselors returns active counselors for the student directory
func (r *UserRepository) ListCounselors(ctx context.Context, limit, offset int) ([]*domain.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE user_type = $1 AND is_active = true
		ORDER BY full_name
		LIMIT $2 OFFSET $3
	`
	rows, err := r.pool.Query(ctx, query, domain.UserTypeCounselor, limit, offset)
	if err != nil {
		return nil, errors.DatabaseError(err)
	}
	defer rows.Close()

	var users []*domain.User
	for rows.Next() {
		user, err := r.scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.DatabaseError(err)
	}
	return users, nil
}

// UpdateProfile updates the mutable profile fields
func (r *UserRepository) UpdateProfile(ctx context.Context, user *domain.User) error {
	query := `
		UPDATE users
		SET full_name = $1, phone = $2, country = $3, timezone = $4, avatar_url = $5
		WHERE user_id = $6
	`
	cmdTag, err := r.pool.Exec(ctx, query,
		user.FullName,
		user.Phone,
		user.Country,
		user.Timezone,
		user.AvatarURL,
		user.UserID,
	)
	if err != nil {
		return errors.DatabaseError(err)
	}
	if cmdTag.RowsAffected() == 0 {
		return errors.UserNotFoundError()
	}
	return nil
}

// UpdatePassword replaces the stored password hash
func (r *UserRepository) UpdatePassword(ctx context.Context, userID uuid.UUID, passwordHash string) error {
	query := `UPDATE users SET password_hash = $1 WHERE user_id = $2`
	cmdTag, err := r.pool.Exec(ctx, query, passwordHash, userID)
	if err != nil {
		return errors.DatabaseError(err)
	}
	if cmdTag.RowsAffected() == 0 {
		return errors.UserNotFoundError()
	}
	return nil
}

// SetActive toggles account activation
func (r *UserRepository) SetActive(ctx context.Context, userID uuid.UUID, active bool) error {
	query := `UPDATE users SET is_active = $1 WHERE user_id = $2`
	cmdTag, err := r.pool.Exec(ctx, query, active, userID)
	if err != nil {
		return errors.DatabaseError(err)
	}
	if cmdTag.RowsAffected() == 0 {
		return errors.UserNotFoundError()
	}
	return nil
}

// EmailExists checks whether the email is already registered
func (r *UserRepository) EmailExists(ctx context.Context, email string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM users WHERE email = $1)`

	var exists bool
	if err := r.pool.QueryRow(ctx, query, email).Scan(&exists); err != nil {
		return false, errors.DatabaseError(err)
	}
	return exists, nil
}
