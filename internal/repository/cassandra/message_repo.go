package cassandra

import (
	"context"
	"fmt"
	"time"

	"github.com/gocql/gocql"
	"github.com/google/uuid"

	"eduadvise-backend/internal/domain"
)

// bucketScanHorizon bounds how many monthly partitions a history read
// walks backwards. One year of silence ends the conversation as far as
// paging is concerned.
const bucketScanHorizon = 12

// MessageRepository stores chat messages in Cassandra, partitioned by
// (conversation_id, bucket) with created_at DESC clustering so recent
// history is one partition read.
type MessageRepository struct {
	session *gocql.Session
}

// NewMessageRepository creates a message repository on an open session.
func NewMessageRepository(session *gocql.Session) *MessageRepository {
	return &MessageRepository{session: session}
}

// Save inserts one message. The bucket is derived from the creation
// timestamp when the caller did not set it.
func (r *MessageRepository) Save(ctx context.Context, msg *domain.Message) error {
	if msg.Bucket == 0 {
		msg.Bucket = domain.CalculateBucket(msg.CreatedAt)
	}
	if msg.MessageID == uuid.Nil {
		msg.MessageID = uuid.New()
	}

	query := `
		INSERT INTO messages (
			conversation_id, bucket, created_at, message_id,
			sender_id, receiver_id, content, file_url, file_name, is_read
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	err := r.session.Query(query,
		msg.ConversationID,
		msg.Bucket,
		msg.CreatedAt,
		msg.MessageID,
		msg.SenderID,
		msg.ReceiverID,
		msg.Content,
		msg.FileURL,
		msg.FileName,
		msg.IsRead,
	).WithContext(ctx).Exec()
	if err != nil {
		return fmt.Errorf("failed to save message: %w", err)
	}
	return nil
}

// ListByConversation returns up to limit messages created strictly
// before the cursor, oldest first. The read starts in the cursor's
// bucket and walks earlier months until the limit or the horizon.
func (r *MessageRepository) ListByConversation(ctx context.Context, conversationID uuid.UUID, before time.Time, limit int) ([]*domain.Message, error) {
	var collected []*domain.Message

	cursor := before.UTC()
	for i := 0; i < bucketScanHorizon && len(collected) < limit; i++ {
		bucket := domain.CalculateBucket(cursor)
		batch, err := r.readBucket(ctx, conversationID, bucket, before, limit-len(collected))
		if err != nil {
			return nil, err
		}
		collected = append(collected, batch...)
		cursor = cursor.AddDate(0, -1, 0)
	}

	// readBucket yields newest-first; callers want chronological order
	for i, j := 0, len(collected)-1; i < j; i, j = i+1, j-1 {
		collected[i], collected[j] = collected[j], collected[i]
	}
	return collected, nil
}

func (r *MessageRepository) readBucket(ctx context.Context, conversationID uuid.UUID, bucket int, before time.Time, limit int) ([]*domain.Message, error) {
	query := `
		SELECT conversation_id, bucket, created_at, message_id,
		       sender_id, receiver_id, content, file_url, file_name, is_read
		FROM messages
		WHERE conversation_id = ? AND bucket = ? AND created_at < ?
		LIMIT ?
	`
	iter := r.session.Query(query, conversationID, bucket, before, limit).WithContext(ctx).Iter()

	var messages []*domain.Message
	for {
		msg := &domain.Message{}
		if !iter.Scan(
			&msg.ConversationID,
			&msg.Bucket,
			&msg.CreatedAt,
			&msg.MessageID,
			&msg.SenderID,
			&msg.ReceiverID,
			&msg.Content,
			&msg.FileURL,
			&msg.FileName,
			&msg.IsRead,
		) {
			break
		}
		messages = append(messages, msg)
	}
	if err := iter.Close(); err != nil {
		return nil, fmt.Errorf("failed to fetch messages: %w", err)
	}
	return messages, nil
}

// MarkRead flags every message addressed to readerID and created at or
// before upTo as read. Rows are updated by full primary key, batched in
// an unlogged batch per bucket since they share a partition.
func (r *MessageRepository) MarkRead(ctx context.Context, conversationID, readerID uuid.UUID, upTo time.Time) error {
	cursor := upTo.UTC()
	for i := 0; i < bucketScanHorizon; i++ {
		bucket := domain.CalculateBucket(cursor)
		if err := r.markBucketRead(ctx, conversationID, bucket, readerID, upTo); err != nil {
			return err
		}
		cursor = cursor.AddDate(0, -1, 0)
	}
	return nil
}

func (r *MessageRepository) markBucketRead(ctx context.Context, conversationID uuid.UUID, bucket int, readerID uuid.UUID, upTo time.Time) error {
	query := `
		SELECT created_at, message_id, receiver_id, is_read
		FROM messages
		WHERE conversation_id = ? AND bucket = ? AND created_at <= ?
	`
	iter := r.session.Query(query, conversationID, bucket, upTo).WithContext(ctx).Iter()

	batch := r.session.NewBatch(gocql.UnloggedBatch).WithContext(ctx)
	var (
		createdAt  time.Time
		messageID  uuid.UUID
		receiverID uuid.UUID
		isRead     bool
	)
	for iter.Scan(&createdAt, &messageID, &receiverID, &isRead) {
		if receiverID != readerID || isRead {
			continue
		}
		batch.Query(
			`UPDATE messages SET is_read = true WHERE conversation_id = ? AND bucket = ? AND created_at = ? AND message_id = ?`,
			conversationID, bucket, createdAt, messageID,
		)
	}
	if err := iter.Close(); err != nil {
		return fmt.Errorf("failed to scan unread messages: %w", err)
	}

	if batch.Size() == 0 {
		return nil
	}
	if err := r.session.ExecuteBatch(batch); err != nil {
		return fmt.Errorf("failed to mark messages read: %w", err)
	}
	return nil
}

// Delete removes one message by full primary key. Used to take back a
// saved message when the conversation snapshot update fails.
func (r *MessageRepository) Delete(ctx context.Context, conversationID uuid.UUID, bucket int, createdAt time.Time, messageID uuid.UUID) error {
	query := `DELETE FROM messages WHERE conversation_id = ? AND bucket = ? AND created_at = ? AND message_id = ?`
	if err := r.session.Query(query, conversationID, bucket, createdAt, messageID).WithContext(ctx).Exec(); err != nil {
		return fmt.Errorf("failed to delete message: %w", err)
	}
	return nil
}
