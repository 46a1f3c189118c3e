package chat

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"eduadvise-backend/internal/domain"
	"eduadvise-backend/internal/realtime"
	"eduadvise-backend/pkg/constants"
	"eduadvise-backend/pkg/errors"
	"eduadvise-backend/pkg/logger"
	"eduadvise-backend/pkg/metrics"
	"eduadvise-backend/pkg/sanitize"
)

// MessageRepository persists chat messages (Cassandra).
type MessageRepository interface {
	Save(ctx context.Context, msg *domain.Message) error
	Delete(ctx context.Context, conversationID uuid.UUID, bucket int, createdAt time.Time, messageID uuid.UUID) error
	ListByConversation(ctx context.Context, conversationID uuid.UUID, before time.Time, limit int) ([]*domain.Message, error)
	MarkRead(ctx context.Context, conversationID, readerID uuid.UUID, upTo time.Time) error
}

// ConversationRepository persists conversation snapshots (CockroachDB).
type ConversationRepository interface {
	// ApplyMessage upserts the conversation row for a new message in one
	// atomic statement: creates the row on first contact, refreshes the
	// last-message snapshot and bumps the receiver's unread counter.
	ApplyMessage(ctx context.Context, msg *domain.Message) error
	GetByID(ctx context.Context, conversationID uuid.UUID) (*domain.Conversation, error)
	ListForUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*domain.Conversation, error)
	ResetUnread(ctx context.Context, conversationID, userID uuid.UUID) error
}

// UserDirectory resolves users for receiver validation and offline email.
type UserDirectory interface {
	GetByID(ctx context.Context, userID uuid.UUID) (*domain.User, error)
}

// EventSink pushes realtime events toward a user's live connections.
type EventSink interface {
	Deliver(userID uuid.UUID, event realtime.Event) bool
	IsOnline(userID uuid.UUID) bool
}

// Notifier reaches users who are offline when a message arrives.
type Notifier interface {
	SendNewMessageNotification(ctx context.Context, to, senderName, preview string) error
}

// SendMessageInput carries one outbound message request.
type SendMessageInput struct {
	SenderID   uuid.UUID
	ReceiverID uuid.UUID
	Content    string
	FileURL    *string
	FileName   *string
}

// Service coordinates message flow: validate, persist to both stores,
// then push to the receiver's live connections. Persistence comes first
// so a delivered event always references a durable message.
type Service struct {
	messages      MessageRepository
	conversations ConversationRepository
	users         UserDirectory
	events        EventSink
	notifier      Notifier
}

// NewService wires a chat service.
func NewService(messages MessageRepository, conversations ConversationRepository, users UserDirectory, events EventSink, notifier Notifier) *Service {
	return &Service{
		messages:      messages,
		conversations: conversations,
		users:         users,
		events:        events,
		notifier:      notifier,
	}
}

// SendMessage validates, persists and delivers one message. The
// conversation identity is derived from the participant pair, so the
// first message between two users implicitly creates their conversation.
func (s *Service) SendMessage(ctx context.Context, in *SendMessageInput) (*domain.Message, error) {
	content := strings.TrimSpace(in.Content)
	hasFile := in.FileURL != nil && *in.FileURL != ""
	if content == "" && !hasFile {
		return nil, errors.EmptyMessageError()
	}
	if in.SenderID == in.ReceiverID {
		return nil, errors.InvalidPartyError("Cannot message yourself")
	}

	sender, err := s.users.GetByID(ctx, in.SenderID)
	if err != nil {
		return nil, err
	}
	receiver, err := s.users.GetByID(ctx, in.ReceiverID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	msg := &domain.Message{
		MessageID:      uuid.New(),
		ConversationID: domain.ConversationIDFor(in.SenderID, in.ReceiverID),
		SenderID:       in.SenderID,
		ReceiverID:     in.ReceiverID,
		Content:        content,
		FileURL:        in.FileURL,
		FileName:       in.FileName,
		CreatedAt:      now,
		Bucket:         domain.CalculateBucket(now),
	}

	if err := s.messages.Save(ctx, msg); err != nil {
		metrics.MessagesPersistedTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	if err := s.conversations.ApplyMessage(ctx, msg); err != nil {
		// the two stores must agree: take the message row back out so
		// history never shows a message the conversation snapshot lacks
		if delErr := s.messages.Delete(ctx, msg.ConversationID, msg.Bucket, msg.CreatedAt, msg.MessageID); delErr != nil {
			logger.Error("message compensation failed",
				zap.String("message_id", msg.MessageID.String()),
				zap.Error(delErr))
		}
		metrics.MessagesPersistedTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	metrics.MessagesPersistedTotal.WithLabelValues("ok").Inc()

	if !s.events.Deliver(in.ReceiverID, realtime.NewMessage(msg)) {
		s.notifyOffline(ctx, receiver, sender.FullName, msg)
	}
	// the sender's other devices stay in sync too
	s.events.Deliver(in.SenderID, realtime.NewMessage(msg))

	logger.FromContext(ctx).Debug("message sent",
		zap.String("message_id", msg.MessageID.String()),
		zap.String("conversation_id", msg.ConversationID.String()))
	return msg, nil
}

// GetMessages returns the newest messages of a conversation, oldest
// first, paged backwards with the before cursor. The requester must be
// a participant.
func (s *Service) GetMessages(ctx context.Context, requesterID, conversationID uuid.UUID, before time.Time, limit int) ([]*domain.Message, error) {
	if _, err := s.authorizedConversation(ctx, requesterID, conversationID); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > constants.MaxPageSize {
		limit = constants.DefaultMessageFetchLimit
	}
	if before.IsZero() {
		before = time.Now().UTC()
	}
	return s.messages.ListByConversation(ctx, conversationID, before, limit)
}

// ListConversations returns the requester's conversations, most recently
// active first.
func (s *Service) ListConversations(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*domain.ConversationResponse, error) {
	convs, err := s.conversations.ListForUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	out := make([]*domain.ConversationResponse, 0, len(convs))
	for _, c := range convs {
		out = append(out, c.ToResponse(userID))
	}
	return out, nil
}

// MarkConversationRead zeroes the requester's unread counter and flags
// the stored messages addressed to them as read.
func (s *Service) MarkConversationRead(ctx context.Context, requesterID, conversationID uuid.UUID) error {
	if _, err := s.authorizedConversation(ctx, requesterID, conversationID); err != nil {
		return err
	}
	if err := s.conversations.ResetUnread(ctx, conversationID, requesterID); err != nil {
		return err
	}
	return s.messages.MarkRead(ctx, conversationID, requesterID, time.Now().UTC())
}

// RelayTyping forwards a typing indicator to the other participant.
// Indicators are ephemeral: nothing is persisted and offline receivers
// are silently skipped.
func (s *Service) RelayTyping(ctx context.Context, userID, conversationID uuid.UUID, typing bool) error {
	conv, err := s.authorizedConversation(ctx, userID, conversationID)
	if err != nil {
		return err
	}

	var event realtime.Event
	if typing {
		event = realtime.NewTyping(userID, conversationID)
	} else {
		event = realtime.NewStopTyping(userID, conversationID)
	}
	s.events.Deliver(conv.OtherParticipant(userID), event)
	return nil
}

func (s *Service) authorizedConversation(ctx context.Context, userID, conversationID uuid.UUID) (*domain.Conversation, error) {
	conv, err := s.conversations.GetByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !conv.HasParticipant(userID) {
		return nil, errors.ForbiddenError("Not a participant of this conversation")
	}
	return conv, nil
}

func (s *Service) notifyOffline(ctx context.Context, receiver *domain.User, senderName string, msg *domain.Message) {
	if s.notifier == nil {
		return
	}
	preview := sanitize.MessagePreview(msg.Content, 120)
	if preview == "" && msg.HasAttachment() {
		preview = "Sent you a file"
	}
	if err := s.notifier.SendNewMessageNotification(ctx, receiver.Email, senderName, preview); err != nil {
		metrics.OfflineEmailsTotal.WithLabelValues("new_message", "error").Inc()
		logger.Warn("offline message email failed",
			zap.String("to", receiver.Email),
			zap.Error(err))
		return
	}
	metrics.OfflineEmailsTotal.WithLabelValues("new_message", "ok").Inc()
}
