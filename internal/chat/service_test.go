package chat

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eduadvise-backend/internal/domain"
	"eduadvise-backend/internal/realtime"
	"eduadvise-backend/pkg/errors"
)

type memMessages struct {
	mu    sync.Mutex
	saved []*domain.Message
}

func (m *memMessages) Save(_ context.Context, msg *domain.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *msg
	m.saved = append(m.saved, &cp)
	return nil
}

func (m *memMessages) Delete(_ context.Context, _ uuid.UUID, _ int, _ time.Time, messageID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, msg := range m.saved {
		if msg.MessageID == messageID {
			m.saved = append(m.saved[:i], m.saved[i+1:]...)
			return nil
		}
	}
	return nil
}

func (m *memMessages) ListByConversation(_ context.Context, conversationID uuid.UUID, before time.Time, limit int) ([]*domain.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Message
	for _, msg := range m.saved {
		if msg.ConversationID == conversationID && msg.CreatedAt.Before(before) {
			out = append(out, msg)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *memMessages) MarkRead(_ context.Context, conversationID, readerID uuid.UUID, upTo time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, msg := range m.saved {
		if msg.ConversationID == conversationID && msg.ReceiverID == readerID && !msg.CreatedAt.After(upTo) {
			msg.IsRead = true
		}
	}
	return nil
}

type memConversations struct {
	mu    sync.Mutex
	convs map[uuid.UUID]*domain.Conversation
}

func newMemConversations() *memConversations {
	return &memConversations{convs: make(map[uuid.UUID]*domain.Conversation)}
}

func (m *memConversations) ApplyMessage(_ context.Context, msg *domain.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	conv, ok := m.convs[msg.ConversationID]
	if !ok {
		a, b := domain.SortParticipants(msg.SenderID, msg.ReceiverID)
		conv = &domain.Conversation{
			ConversationID: msg.ConversationID,
			ParticipantA:   a,
			ParticipantB:   b,
			CreatedAt:      msg.CreatedAt,
		}
		m.convs[msg.ConversationID] = conv
	}
	text := msg.Content
	sender := msg.SenderID
	at := msg.CreatedAt
	conv.LastMessageText = &text
	conv.LastMessageSender = &sender
	conv.LastMessageAt = &at
	conv.UpdatedAt = at
	if msg.ReceiverID == conv.ParticipantA {
		conv.UnreadA++
	} else {
		conv.UnreadB++
	}
	return nil
}

func (m *memConversations) GetByID(_ context.Context, conversationID uuid.UUID) (*domain.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	conv, ok := m.convs[conversationID]
	if !ok {
		return nil, errors.NotFoundError("Conversation")
	}
	cp := *conv
	return &cp, nil
}

func (m *memConversations) ListForUser(_ context.Context, userID uuid.UUID, limit, offset int) ([]*domain.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Conversation
	for _, conv := range m.convs {
		if conv.HasParticipant(userID) {
			cp := *conv
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memConversations) ResetUnread(_ context.Context, conversationID, userID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	conv, ok := m.convs[conversationID]
	if !ok {
		return errors.NotFoundError("Conversation")
	}
	if userID == conv.ParticipantA {
		conv.UnreadA = 0
	} else if userID == conv.ParticipantB {
		conv.UnreadB = 0
	}
	return nil
}

type memDirectory struct {
	users map[uuid.UUID]*domain.User
}

func (d *memDirectory) GetByID(_ context.Context, userID uuid.UUID) (*domain.User, error) {
	u, ok := d.users[userID]
	if !ok {
		return nil, errors.UserNotFoundError()
	}
	return u, nil
}

type sinkEvent struct {
	userID uuid.UUID
	event  realtime.Event
}

type recordingSink struct {
	mu     sync.Mutex
	online map[uuid.UUID]bool
	events []sinkEvent
}

func newRecordingSink(online ...uuid.UUID) *recordingSink {
	s := &recordingSink{online: make(map[uuid.UUID]bool)}
	for _, id := range online {
		s.online[id] = true
	}
	return s
}

func (s *recordingSink) Deliver(userID uuid.UUID, event realtime.Event) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.online[userID] {
		return false
	}
	s.events = append(s.events, sinkEvent{userID: userID, event: event})
	return true
}

func (s *recordingSink) IsOnline(userID uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.online[userID]
}

func (s *recordingSink) eventsFor(userID uuid.UUID) []realtime.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []realtime.Event
	for _, e := range s.events {
		if e.userID == userID {
			out = append(out, e.event)
		}
	}
	return out
}

type recordingNotifier struct {
	mu       sync.Mutex
	previews []string
	sent     []string
}

func (n *recordingNotifier) SendNewMessageNotification(_ context.Context, to, _, preview string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, to)
	n.previews = append(n.previews, preview)
	return nil
}

type fixture struct {
	svc      *Service
	messages *memMessages
	convs    *memConversations
	sink     *recordingSink
	notifier *recordingNotifier
	student  *domain.User
	advisor  *domain.User
}

func newFixture(t *testing.T, online ...uuid.UUID) *fixture {
	t.Helper()
	student := &domain.User{UserID: uuid.New(), Email: "joao.silva@example.com", FullName: "Joao Silva", UserType: domain.UserTypeStudent}
	advisor := &domain.User{UserID: uuid.New(), Email: "li.wei@example.com", FullName: "Li Wei", UserType: domain.UserTypeCounselor}

	if online == nil {
		online = []uuid.UUID{student.UserID, advisor.UserID}
	}

	f := &fixture{
		messages: &memMessages{},
		convs:    newMemConversations(),
		sink:     newRecordingSink(online...),
		notifier: &recordingNotifier{},
		student:  student,
		advisor:  advisor,
	}
	dir := &memDirectory{users: map[uuid.UUID]*domain.User{
		student.UserID: student,
		advisor.UserID: advisor,
	}}
	f.svc = NewService(f.messages, f.convs, dir, f.sink, f.notifier)
	return f
}

func (f *fixture) send(t *testing.T, content string) *domain.Message {
	t.Helper()
	msg, err := f.svc.SendMessage(context.Background(), &SendMessageInput{
		SenderID:   f.student.UserID,
		ReceiverID: f.advisor.UserID,
		Content:    content,
	})
	require.NoError(t, err)
	return msg
}

func TestService_SendMessagePersistsThenDelivers(t *testing.T) {
	f := newFixture(t)
	msg := f.send(t, "Which universities fit a CS major?")

	require.Len(t, f.messages.saved, 1)
	assert.Equal(t, msg.MessageID, f.messages.saved[0].MessageID)

	events := f.sink.eventsFor(f.advisor.UserID)
	require.Len(t, events, 1)
	delivered, ok := events[0].(*realtime.NewMessageEvent)
	require.True(t, ok)
	assert.Equal(t, msg.MessageID, delivered.Message.MessageID)
	assert.False(t, delivered.Message.IsRead)
}

func TestService_SendMessageRejectsEmpty(t *testing.T) {
	f := newFixture(t)

	for _, content := range []string{"", "   ", "\n\t"} {
		_, err := f.svc.SendMessage(context.Background(), &SendMessageInput{
			SenderID:   f.student.UserID,
			ReceiverID: f.advisor.UserID,
			Content:    content,
		})
		require.Error(t, err)
		assert.True(t, errors.IsCode(err, errors.ErrCodeEmptyMessage))
	}
	assert.Empty(t, f.messages.saved)
}

func TestService_FileOnlyMessageIsValid(t *testing.T) {
	f := newFixture(t)
	fileURL := "https://files.example.com/transcript.pdf"
	fileName := "transcript.pdf"

	msg, err := f.svc.SendMessage(context.Background(), &SendMessageInput{
		SenderID:   f.student.UserID,
		ReceiverID: f.advisor.UserID,
		FileURL:    &fileURL,
		FileName:   &fileName,
	})
	require.NoError(t, err)
	assert.True(t, msg.HasAttachment())
	assert.Empty(t, msg.Content)
}

func TestService_SendMessageRejectsSelf(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.SendMessage(context.Background(), &SendMessageInput{
		SenderID:   f.student.UserID,
		ReceiverID: f.student.UserID,
		Content:    "note to self",
	})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidParty))
}

func TestService_SendMessageRejectsUnknownReceiver(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.SendMessage(context.Background(), &SendMessageInput{
		SenderID:   f.student.UserID,
		ReceiverID: uuid.New(),
		Content:    "hello?",
	})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeUserNotFound))
}

type failingConversations struct {
	*memConversations
}

func (f *failingConversations) ApplyMessage(context.Context, *domain.Message) error {
	return errors.DatabaseError(context.DeadlineExceeded)
}

func TestService_SendMessageTakesBackRowWhenSnapshotFails(t *testing.T) {
	f := newFixture(t)
	f.svc = NewService(f.messages, &failingConversations{f.convs}, &memDirectory{users: map[uuid.UUID]*domain.User{
		f.student.UserID: f.student,
		f.advisor.UserID: f.advisor,
	}}, f.sink, f.notifier)

	_, err := f.svc.SendMessage(context.Background(), &SendMessageInput{
		SenderID:   f.student.UserID,
		ReceiverID: f.advisor.UserID,
		Content:    "never happened",
	})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeDatabase))

	// the saved row must be compensated away and nothing delivered
	assert.Empty(t, f.messages.saved)
	assert.Empty(t, f.convs.convs)
	assert.Empty(t, f.sink.eventsFor(f.advisor.UserID))
	assert.Empty(t, f.notifier.sent)
}

func TestService_ConversationIDIsDeterministic(t *testing.T) {
	f := newFixture(t)
	first := f.send(t, "first")

	// reply in the opposite direction lands in the same conversation
	reply, err := f.svc.SendMessage(context.Background(), &SendMessageInput{
		SenderID:   f.advisor.UserID,
		ReceiverID: f.student.UserID,
		Content:    "reply",
	})
	require.NoError(t, err)
	assert.Equal(t, first.ConversationID, reply.ConversationID)
	assert.Equal(t, domain.ConversationIDFor(f.advisor.UserID, f.student.UserID), first.ConversationID)
	assert.Len(t, f.convs.convs, 1)
}

func TestService_UnreadCountsPerParticipant(t *testing.T) {
	f := newFixture(t)
	msg := f.send(t, "one")
	f.send(t, "two")

	conv, err := f.convs.GetByID(context.Background(), msg.ConversationID)
	require.NoError(t, err)
	assert.Equal(t, 2, conv.UnreadFor(f.advisor.UserID))
	assert.Equal(t, 0, conv.UnreadFor(f.student.UserID))

	require.NoError(t, f.svc.MarkConversationRead(context.Background(), f.advisor.UserID, msg.ConversationID))

	conv, err = f.convs.GetByID(context.Background(), msg.ConversationID)
	require.NoError(t, err)
	assert.Equal(t, 0, conv.UnreadFor(f.advisor.UserID))
	for _, saved := range f.messages.saved {
		assert.True(t, saved.IsRead)
	}
}

func TestService_OfflineReceiverGetsEmail(t *testing.T) {
	f := newFixture(t, uuid.New()) // both parties offline
	f.send(t, "Are you there?")

	assert.Empty(t, f.sink.eventsFor(f.advisor.UserID))
	require.Len(t, f.notifier.sent, 1)
	assert.Equal(t, f.advisor.Email, f.notifier.sent[0])
	assert.Contains(t, f.notifier.previews[0], "Are you there?")
}

func TestService_OnlineReceiverGetsNoEmail(t *testing.T) {
	f := newFixture(t)
	f.send(t, "ping")
	assert.Empty(t, f.notifier.sent)
}

func TestService_GetMessagesRequiresParticipation(t *testing.T) {
	f := newFixture(t)
	msg := f.send(t, "private")

	_, err := f.svc.GetMessages(context.Background(), uuid.New(), msg.ConversationID, time.Time{}, 10)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeForbidden))

	msgs, err := f.svc.GetMessages(context.Background(), f.advisor.UserID, msg.ConversationID, time.Time{}, 10)
	require.NoError(t, err)
	assert.Len(t, msgs, 1)
}

func TestService_ListConversationsShapesForViewer(t *testing.T) {
	f := newFixture(t)
	f.send(t, "hello advisor")

	convs, err := f.svc.ListConversations(context.Background(), f.advisor.UserID, 20, 0)
	require.NoError(t, err)
	require.Len(t, convs, 1)
	assert.Equal(t, 1, convs[0].UnreadCount)
	require.NotNil(t, convs[0].LastMessage)
	assert.Equal(t, "hello advisor", convs[0].LastMessage.Content)

	// the sender sees the same conversation with a zero unread counter
	convs, err = f.svc.ListConversations(context.Background(), f.student.UserID, 20, 0)
	require.NoError(t, err)
	require.Len(t, convs, 1)
	assert.Equal(t, 0, convs[0].UnreadCount)
}

func TestService_RelayTyping(t *testing.T) {
	f := newFixture(t)
	msg := f.send(t, "setup")

	require.NoError(t, f.svc.RelayTyping(context.Background(), f.student.UserID, msg.ConversationID, true))
	require.NoError(t, f.svc.RelayTyping(context.Background(), f.student.UserID, msg.ConversationID, false))

	events := f.sink.eventsFor(f.advisor.UserID)
	require.Len(t, events, 3) // new_message + typing + stop_typing
	assert.Equal(t, realtime.EventUserTyping, events[1].EventKind())
	assert.Equal(t, realtime.EventStopTyping, events[2].EventKind())

	err := f.svc.RelayTyping(context.Background(), uuid.New(), msg.ConversationID, true)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeForbidden))
}
