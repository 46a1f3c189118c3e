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

const conversationColumns = `conversation_id, participant_a, participant_b, last_message_text, last_message_sender, last_message_at, unread_a, unread_b, created_at, updated_at`

// ConversationRepository maintains per-pair conversation snapshots in
// CockroachDB: last-message preview plus unread counters for both sides.
type ConversationRepository struct {
	pool *pgxpool.Pool
}

// NewConversationRepository creates a new ConversationRepository
func NewConversationRepository(pool *pgxpool.Pool) *ConversationRepository {
	return &ConversationRepository{pool: pool}
}

// ApplyMessage folds one new message into the conversation row in a
// single upsert. First contact inserts the row; later messages refresh
// the snapshot and bump the receiver's unread counter. One statement
// keeps the row consistent under concurrent senders.
func (r *ConversationRepository) ApplyMessage(ctx context.Context, msg *domain.Message) error {
	a, b := domain.SortParticipants(msg.SenderID, msg.ReceiverID)

	query := `
		INSERT INTO conversations (
			conversation_id, participant_a, participant_b,
			last_message_text, last_message_sender, last_message_at,
			unread_a, unread_b, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			CASE WHEN $7 = $2 THEN 1 ELSE 0 END,
			CASE WHEN $7 = $3 THEN 1 ELSE 0 END,
			$6, $6
		)
		ON CONFLICT (conversation_id) DO UPDATE SET
			last_message_text = excluded.last_message_text,
			last_message_sender = excluded.last_message_sender,
			last_message_at = excluded.last_message_at,
			unread_a = conversations.unread_a + CASE WHEN $7 = conversations.participant_a THEN 1 ELSE 0 END,
			unread_b = conversations.unread_b + CASE WHEN $7 = conversations.participant_b THEN 1 ELSE 0 END,
			updated_at = excluded.updated_at
	`
	_, err := r.pool.Exec(ctx, query,
		msg.ConversationID,
		a,
		b,
		msg.Content,
		msg.SenderID,
		msg.CreatedAt,
		msg.ReceiverID,
	)
	if err != nil {
		return errors.DatabaseError(err)
	}
	return nil
}

func (r *ConversationRepository) scanConversation(row pgx.Row) (*domain.Conversation, error) {
	conv := &domain.Conversation{}
	err := row.Scan(
		&conv.ConversationID,
		&conv.ParticipantA,
		&conv.ParticipantB,
		&conv.LastMessageText,
		&conv.LastMessageSender,
		&conv.LastMessageAt,
		&conv.UnreadA,
		&conv.UnreadB,
		&conv.CreatedAt,
		&conv.UpdatedAt,
	)
	if err != nil {
		if stderrors.Is(err, pgx.ErrNoRows) {
			return nil, errors.NotFoundError("Conversation")
		}
		return nil, errors.DatabaseError(err)
	}
	return conv, nil
}

// GetByID retrieves one conversation
func (r *ConversationRepository) GetByID(ctx context.Context, conversationID uuid.UUID) (*domain.Conversation, error) {
	query := `SELECT ` + conversationColumns + ` FROM conversations WHERE conversation_id = $1`
	return r.scanConversation(r.pool.QueryRow(ctx, query, conversationID))
}

// ListForUser returns the user's conversations, most recently active first
func (r *ConversationRepository) ListForUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*domain.Conversation, error) {
	query := `
		SELECT ` + conversationColumns + `
		FROM conversations
		WHERE participant_a = $1 OR participant_b = $1
		ORDER BY updated_at DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.pool.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, errors.DatabaseError(err)
	}
	defer rows.Close()

	var conversations []*domain.Conversation
	for rows.Next() {
		conv, err := r.scanConversation(rows)
		if err != nil {
			return nil, err
		}
		conversations = append(conversations, conv)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.DatabaseError(err)
	}
	return conversations, nil
}

// ResetUnread zeroes the unread counter belonging to userID
func (r *ConversationRepository) ResetUnread(ctx context.Context, conversationID, userID uuid.UUID) error {
	query := `
		UPDATE conversations
		SET unread_a = CASE WHEN participant_a = $2 THEN 0 ELSE unread_a END,
		    unread_b = CASE WHEN participant_b = $2 THEN 0 ELSE unread_b END
		WHERE conversation_id = $1
	`
	cmdTag, err := r.pool.Exec(ctx, query, conversationID, userID)
	if err != nil {
		return errors.DatabaseError(err)
	}
	if cmdTag.RowsAffected() == 0 {
		return errors.NotFoundError("Conversation")
	}
	return nil
}

// TotalUnread sums unread counters across all of the user's conversations
func (r *ConversationRepository) TotalUnread(ctx context.Context, userID uuid.UUID) (int, error) {
	query := `
		SELECT COALESCE(SUM(
			CASE WHEN participant_a = $1 THEN unread_a
			     WHEN participant_b = $1 THEN unread_b
			     ELSE 0 END
		), 0)
		FROM conversations
		WHERE participant_a = $1 OR participant_b = $1
	`
	var total int
	if err := r.pool.QueryRow(ctx, query, userID).Scan(&total); err != nil {
		return 0, errors.DatabaseError(err)
	}
	return total, nil
}
