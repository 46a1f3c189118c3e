package domain

import (
	"time"

	"github.com/google/uuid"
)

// Message represents a chat message entity
// Maps to Cassandra messages table, partitioned by (conversation_id, bucket)
// and clustered by created_at so the creation timestamp is the ordering key
type Message struct {
	MessageID      uuid.UUID `json:"message_id" cql:"message_id"`
	ConversationID uuid.UUID `json:"conversation_id" cql:"conversation_id"`
	SenderID       uuid.UUID `json:"sender_id" cql:"sender_id"`
	ReceiverID     uuid.UUID `json:"receiver_id" cql:"receiver_id"`
	Content        string    `json:"content" cql:"content"`
	FileURL        *string   `json:"file_url,omitempty" cql:"file_url"`
	FileName       *string   `json:"file_name,omitempty" cql:"file_name"`
	IsRead         bool      `json:"is_read" cql:"is_read"`
	CreatedAt      time.Time `json:"created_at" cql:"created_at"`
	Bucket         int       `json:"-" cql:"bucket"`
}

// HasAttachment reports whether the message carries a file reference
func (m *Message) HasAttachment() bool {
	return m.FileURL != nil && *m.FileURL != ""
}

// CalculateBucket maps a timestamp to a monthly partition bucket (YYYYMM)
func CalculateBucket(t time.Time) int {
	return t.UTC().Year()*100 + int(t.UTC().Month())
}
