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

const callColumns = `call_id, caller_id, receiver_id, call_type, status, created_at, started_at, ended_at, duration_seconds`

// CallRepository persists call history in CockroachDB
type CallRepository struct {
	pool *pgxpool.Pool
}

// NewCallRepository creates a new CallRepository
func NewCallRepository(pool *pgxpool.Pool) *CallRepository {
	return &CallRepository{pool: pool}
}

// Create inserts a new call record
func (r *CallRepository) Create(ctx context.Context, call *domain.Call) error {
	query := `
		INSERT INTO calls (call_id, caller_id, receiver_id, call_type, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.pool.Exec(ctx, query,
		call.CallID,
		call.CallerID,
		call.ReceiverID,
		call.CallType,
		call.Status,
		call.CreatedAt,
	)
	if err != nil {
		return errors.DatabaseError(err)
	}
	return nil
}

// Update persists the lifecycle fields of an existing call
func (r *CallRepository) Update(ctx context.Context, call *domain.Call) error {
	query := `
		UPDATE calls
		SET status = $1, started_at = $2, ended_at = $3, duration_seconds = $4
		WHERE call_id = $5
	`
	cmdTag, err := r.pool.Exec(ctx, query,
		call.Status,
		call.StartedAt,
		call.EndedAt,
		call.DurationSeconds,
		call.CallID,
	)
	if err != nil {
		return errors.DatabaseError(err)
	}
	if cmdTag.RowsAffected() == 0 {
		return errors.CallNotFoundError()
	}
	return nil
}

func (r *CallRepository) scanCall(row pgx.Row) (*domain.Call, error) {
	call := &domain.Call{}
	err := row.Scan(
		&call.CallID,
		&call.CallerID,
		&call.ReceiverID,
		&call.CallType,
		&call.Status,
		&call.CreatedAt,
		&call.StartedAt,
		&call.EndedAt,
		&call.DurationSeconds,
	)
	if err != nil {
		if stderrors.Is(err, pgx.ErrNoRows) {
			return nil, errors.CallNotFoundError()
		}
		return nil, errors.DatabaseError(err)
	}
	return call, nil
}

// GetByID retrieves one call
func (r *CallRepository) GetByID(ctx context.Context, callID uuid.UUID) (*domain.Call, error) {
	query := `SELECT ` + callColumns + ` FROM calls WHERE call_id = $1`
	return r.scanCall(r.pool.QueryRow(ctx, query, callID))
}

// GetUserCalls returns the user's call history, newest first
func (r *CallRepository) GetUserCalls(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*domain.Call, error) {
	query := `
		SELECT ` + callColumns + `
		FROM calls
		WHERE caller_id = $1 OR receiver_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.pool.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, errors.DatabaseError(err)
	}
	defer rows.Close()

	var calls []*domain.Call
	for rows.Next() {
		call, err := r.scanCall(rows)
		if err != nil {
			return nil, err
		}
		calls = append(calls, call)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.DatabaseError(err)
	}
	return calls, nil
}
