package domain

import (
	"bytes"
	"time"

	"github.com/google/uuid"
)

// conversationNamespace seeds deterministic conversation identities.
// Changing it would orphan every existing conversation row.
var conversationNamespace = uuid.MustParse("9f2c1c7e-3b8a-4f60-9b2e-5a4d8c1e7f3a")

// ConversationIDFor derives the canonical conversation identity for a pair
// of users. The id is deterministic in participant order, so repeated
// messaging between the same pair always reuses one conversation.
func ConversationIDFor(a, b uuid.UUID) uuid.UUID {
	lo, hi := SortParticipants(a, b)
	name := make([]byte, 0, 32)
	name = append(name, lo[:]...)
	name = append(name, hi[:]...)
	return uuid.NewSHA1(conversationNamespace, name)
}

// SortParticipants orders two user ids by byte comparison
func SortParticipants(a, b uuid.UUID) (uuid.UUID, uuid.UUID) {
	if bytes.Compare(a[:], b[:]) <= 0 {
		return a, b
	}
	return b, a
}

// Conversation is the durable grouping of exactly two participants.
// Maps to CockroachDB conversations table. ParticipantA sorts before
// ParticipantB so the row is unique per pair.
type Conversation struct {
	ConversationID    uuid.UUID  `json:"conversation_id" db:"conversation_id"`
	ParticipantA      uuid.UUID  `json:"-" db:"participant_a"`
	ParticipantB      uuid.UUID  `json:"-" db:"participant_b"`
	LastMessageText   *string    `json:"-" db:"last_message_text"`
	LastMessageSender *uuid.UUID `json:"-" db:"last_message_sender"`
	LastMessageAt     *time.Time `json:"-" db:"last_message_at"`
	UnreadA           int        `json:"-" db:"unread_a"`
	UnreadB           int        `json:"-" db:"unread_b"`
	CreatedAt         time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at" db:"updated_at"`
}

// Participants returns both participant ids
func (c *Conversation) Participants() []uuid.UUID {
	return []uuid.UUID{c.ParticipantA, c.ParticipantB}
}

// HasParticipant reports whether the user belongs to the conversation
func (c *Conversation) HasParticipant(userID uuid.UUID) bool {
	return c.ParticipantA == userID || c.ParticipantB == userID
}

// OtherParticipant returns the counterpart of userID, or uuid.Nil if the
// user is not a participant
func (c *Conversation) OtherParticipant(userID uuid.UUID) uuid.UUID {
	switch userID {
	case c.ParticipantA:
		return c.ParticipantB
	case c.ParticipantB:
		return c.ParticipantA
	}
	return uuid.Nil
}

// UnreadFor returns the unread counter for the given participant
func (c *Conversation) UnreadFor(userID uuid.UUID) int {
	switch userID {
	case c.ParticipantA:
		return c.UnreadA
	case c.ParticipantB:
		return c.UnreadB
	}
	return 0
}

// ConversationResponse is the conversation payload returned to clients
type ConversationResponse struct {
	ConversationID uuid.UUID   `json:"conversation_id"`
	Participants   []uuid.UUID `json:"participants"`
	LastMessage    *Message    `json:"last_message,omitempty"`
	UnreadCount    int         `json:"unread_count"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

// ToResponse shapes the conversation for the given viewer: the unread count
// is the viewer's own counter and the last message is rebuilt from the snapshot
func (c *Conversation) ToResponse(viewer uuid.UUID) *ConversationResponse {
	resp := &ConversationResponse{
		ConversationID: c.ConversationID,
		Participants:   c.Participants(),
		UnreadCount:    c.UnreadFor(viewer),
		CreatedAt:      c.CreatedAt,
		UpdatedAt:      c.UpdatedAt,
	}

	if c.LastMessageText != nil && c.LastMessageSender != nil && c.LastMessageAt != nil {
		sender := *c.LastMessageSender
		resp.LastMessage = &Message{
			ConversationID: c.ConversationID,
			SenderID:       sender,
			ReceiverID:     c.OtherParticipant(sender),
			Content:        *c.LastMessageText,
			CreatedAt:      *c.LastMessageAt,
		}
	}

	return resp
}
