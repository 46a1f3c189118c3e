package call

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

type memStore struct {
	mu    sync.Mutex
	calls map[uuid.UUID]*domain.Call
}

func newMemStore() *memStore {
	return &memStore{calls: make(map[uuid.UUID]*domain.Call)}
}

func (s *memStore) Create(_ context.Context, call *domain.Call) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *call
	s.calls[call.CallID] = &cp
	return nil
}

func (s *memStore) Update(_ context.Context, call *domain.Call) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *call
	s.calls[call.CallID] = &cp
	return nil
}

func (s *memStore) GetByID(_ context.Context, callID uuid.UUID) (*domain.Call, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	call, ok := s.calls[callID]
	if !ok {
		return nil, errors.CallNotFoundError()
	}
	cp := *call
	return &cp, nil
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

// recordingSink captures delivered events and simulates per-user presence.
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
	mu   sync.Mutex
	sent []string
}

func (n *recordingNotifier) SendIncomingCallNotification(_ context.Context, to, _, _ string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, to)
	return nil
}

func (n *recordingNotifier) sentTo() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.sent...)
}

type fixture struct {
	manager  *Manager
	store    *memStore
	sink     *recordingSink
	notifier *recordingNotifier
	caller   *domain.User
	receiver *domain.User
}

func newFixture(t *testing.T, ringTimeout time.Duration, online ...uuid.UUID) *fixture {
	t.Helper()
	caller := &domain.User{UserID: uuid.New(), Email: "mei.chen@example.com", FullName: "Mei Chen", UserType: domain.UserTypeStudent}
	receiver := &domain.User{UserID: uuid.New(), Email: "amara.osei@example.com", FullName: "Amara Osei", UserType: domain.UserTypeCounselor}

	store := newMemStore()
	dir := &memDirectory{users: map[uuid.UUID]*domain.User{
		caller.UserID:   caller,
		receiver.UserID: receiver,
	}}
	if online == nil {
		online = []uuid.UUID{caller.UserID, receiver.UserID}
	}
	sink := newRecordingSink(online...)
	notifier := &recordingNotifier{}

	return &fixture{
		manager:  NewManager(store, dir, sink, notifier, ringTimeout),
		store:    store,
		sink:     sink,
		notifier: notifier,
		caller:   caller,
		receiver: receiver,
	}
}

func (f *fixture) startCall(t *testing.T) *domain.Call {
	t.Helper()
	call, err := f.manager.Start(context.Background(), f.caller.UserID, f.receiver.UserID, domain.CallTypeVideo)
	require.NoError(t, err)
	return call
}

func TestManager_StartDeliversIncomingCall(t *testing.T) {
	f := newFixture(t, 0)
	call := f.startCall(t)

	assert.Equal(t, domain.CallStatusRinging, call.Status)
	events := f.sink.eventsFor(f.receiver.UserID)
	require.Len(t, events, 1)

	incoming, ok := events[0].(*realtime.IncomingCallEvent)
	require.True(t, ok)
	assert.Equal(t, call.CallID, incoming.CallID)
	assert.Equal(t, f.caller.UserID, incoming.CallerID)
	assert.Equal(t, "Mei Chen", incoming.CallerName)
	assert.Equal(t, domain.CallTypeVideo, incoming.CallType)
	assert.Empty(t, f.notifier.sentTo())
}

func TestManager_StartToOfflineReceiverSendsEmail(t *testing.T) {
	f := newFixture(t, 0, uuid.New()) // nobody relevant online
	f.startCall(t)

	assert.Empty(t, f.sink.eventsFor(f.receiver.UserID))
	assert.Equal(t, []string{f.receiver.Email}, f.notifier.sentTo())
}

func TestManager_StartRejectsSelfCall(t *testing.T) {
	f := newFixture(t, 0)
	_, err := f.manager.Start(context.Background(), f.caller.UserID, f.caller.UserID, domain.CallTypeAudio)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidParty))
}

func TestManager_StartRejectsUnknownReceiver(t *testing.T) {
	f := newFixture(t, 0)
	_, err := f.manager.Start(context.Background(), f.caller.UserID, uuid.New(), domain.CallTypeAudio)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeUserNotFound))
}

func TestManager_StartRejectsInvalidCallType(t *testing.T) {
	f := newFixture(t, 0)
	_, err := f.manager.Start(context.Background(), f.caller.UserID, f.receiver.UserID, domain.CallType("hologram"))
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidInput))
}

func TestManager_AcceptByReceiver(t *testing.T) {
	f := newFixture(t, 0)
	call := f.startCall(t)

	updated, err := f.manager.UpdateStatus(context.Background(), call.CallID, f.receiver.UserID, domain.CallStatusAccepted)
	require.NoError(t, err)
	assert.Equal(t, domain.CallStatusAccepted, updated.Status)
	require.NotNil(t, updated.StartedAt)
	assert.Nil(t, updated.EndedAt)

	// the caller, not the receiver, learns about the acceptance
	events := f.sink.eventsFor(f.caller.UserID)
	require.Len(t, events, 1)
	status, ok := events[0].(*realtime.CallStatusEvent)
	require.True(t, ok)
	assert.Equal(t, domain.CallStatusAccepted, status.Status)
}

func TestManager_CallerCannotAcceptOwnCall(t *testing.T) {
	f := newFixture(t, 0)
	call := f.startCall(t)

	_, err := f.manager.UpdateStatus(context.Background(), call.CallID, f.caller.UserID, domain.CallStatusAccepted)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeForbidden))
}

func TestManager_ClientCannotMarkMissed(t *testing.T) {
	f := newFixture(t, 0)
	call := f.startCall(t)

	for _, requester := range []uuid.UUID{f.caller.UserID, f.receiver.UserID} {
		_, err := f.manager.UpdateStatus(context.Background(), call.CallID, requester, domain.CallStatusMissed)
		require.Error(t, err)
		assert.True(t, errors.IsCode(err, errors.ErrCodeForbidden))
	}
}

func TestManager_StrangerCannotTouchCall(t *testing.T) {
	f := newFixture(t, 0)
	call := f.startCall(t)

	_, err := f.manager.UpdateStatus(context.Background(), call.CallID, uuid.New(), domain.CallStatusEnded)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeForbidden))
}

func TestManager_TransitionTable(t *testing.T) {
	tests := []struct {
		name    string
		from    domain.CallStatus
		to      domain.CallStatus
		allowed bool
	}{
		{"ringing to accepted", domain.CallStatusRinging, domain.CallStatusAccepted, true},
		{"ringing to declined", domain.CallStatusRinging, domain.CallStatusDeclined, true},
		{"ringing to missed", domain.CallStatusRinging, domain.CallStatusMissed, true},
		{"ringing to ended", domain.CallStatusRinging, domain.CallStatusEnded, true},
		{"accepted to ended", domain.CallStatusAccepted, domain.CallStatusEnded, true},
		{"accepted to declined", domain.CallStatusAccepted, domain.CallStatusDeclined, false},
		{"accepted to missed", domain.CallStatusAccepted, domain.CallStatusMissed, false},
		{"declined to accepted", domain.CallStatusDeclined, domain.CallStatusAccepted, false},
		{"ended to accepted", domain.CallStatusEnded, domain.CallStatusAccepted, false},
		{"missed to ended", domain.CallStatusMissed, domain.CallStatusEnded, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.allowed, transitions[tt.from][tt.to])
		})
	}
}

func TestManager_DeclineIsTerminal(t *testing.T) {
	f := newFixture(t, 0)
	call := f.startCall(t)

	_, err := f.manager.UpdateStatus(context.Background(), call.CallID, f.receiver.UserID, domain.CallStatusDeclined)
	require.NoError(t, err)
	assert.Equal(t, 0, f.manager.ActiveCount())

	// a second terminal transition on the persisted record is a conflict
	_, err = f.manager.UpdateStatus(context.Background(), call.CallID, f.receiver.UserID, domain.CallStatusDeclined)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidTransition))
}

func TestManager_EndedByEitherParty(t *testing.T) {
	for _, who := range []string{"caller", "receiver"} {
		t.Run(who, func(t *testing.T) {
			f := newFixture(t, 0)
			call := f.startCall(t)

			_, err := f.manager.UpdateStatus(context.Background(), call.CallID, f.receiver.UserID, domain.CallStatusAccepted)
			require.NoError(t, err)

			requester := f.caller.UserID
			if who == "receiver" {
				requester = f.receiver.UserID
			}
			updated, err := f.manager.UpdateStatus(context.Background(), call.CallID, requester, domain.CallStatusEnded)
			require.NoError(t, err)
			assert.Equal(t, domain.CallStatusEnded, updated.Status)
			require.NotNil(t, updated.EndedAt)
			require.NotNil(t, updated.DurationSeconds)
			assert.GreaterOrEqual(t, *updated.DurationSeconds, 0)
		})
	}
}

func TestManager_RingTimeoutMarksMissedAndNotifiesBoth(t *testing.T) {
	f := newFixture(t, 30*time.Millisecond)
	call := f.startCall(t)

	require.Eventually(t, func() bool {
		stored, err := f.store.GetByID(context.Background(), call.CallID)
		return err == nil && stored.Status == domain.CallStatusMissed
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, 0, f.manager.ActiveCount())

	for _, party := range []uuid.UUID{f.caller.UserID, f.receiver.UserID} {
		var sawMissed bool
		for _, e := range f.sink.eventsFor(party) {
			if status, ok := e.(*realtime.CallStatusEvent); ok && status.Status == domain.CallStatusMissed {
				sawMissed = true
			}
		}
		assert.True(t, sawMissed, "party %s should see the missed update", party)
	}
}

func TestManager_ImmediateRingTimeoutStillResolvesSession(t *testing.T) {
	// A timeout short enough to fire while Start is still returning must
	// find the session already registered and land on missed cleanly.
	f := newFixture(t, time.Nanosecond)
	call := f.startCall(t)

	require.Eventually(t, func() bool {
		stored, err := f.store.GetByID(context.Background(), call.CallID)
		return err == nil && stored.Status == domain.CallStatusMissed
	}, 2*time.Second, 5*time.Millisecond)

	assert.Equal(t, 0, f.manager.ActiveCount())
}

func TestManager_AcceptCancelsRingTimeout(t *testing.T) {
	f := newFixture(t, 40*time.Millisecond)
	call := f.startCall(t)

	_, err := f.manager.UpdateStatus(context.Background(), call.CallID, f.receiver.UserID, domain.CallStatusAccepted)
	require.NoError(t, err)

	time.Sleep(100 * time.Millisecond)

	got, err := f.manager.Get(context.Background(), call.CallID)
	require.NoError(t, err)
	assert.Equal(t, domain.CallStatusAccepted, got.Status)
}

func TestManager_ConcurrentAcceptDeclineHasOneWinner(t *testing.T) {
	f := newFixture(t, 0)
	call := f.startCall(t)

	var wg sync.WaitGroup
	results := make(chan error, 2)
	for _, status := range []domain.CallStatus{domain.CallStatusAccepted, domain.CallStatusDeclined} {
		wg.Add(1)
		go func(s domain.CallStatus) {
			defer wg.Done()
			_, err := f.manager.UpdateStatus(context.Background(), call.CallID, f.receiver.UserID, s)
			results <- err
		}(status)
	}
	wg.Wait()
	close(results)

	var failures int
	for err := range results {
		if err != nil {
			failures++
			assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidTransition))
		}
	}
	assert.Equal(t, 1, failures, "exactly one of the two racing transitions must lose")
}

func TestManager_SignalRelaysToOtherParty(t *testing.T) {
	f := newFixture(t, 0)
	call := f.startCall(t)

	data := map[string]any{"sdp": "v=0"}
	err := f.manager.Signal(context.Background(), call.CallID, f.caller.UserID, domain.SignalTypeOffer, data)
	require.NoError(t, err)

	events := f.sink.eventsFor(f.receiver.UserID)
	require.Len(t, events, 2) // incoming_call + webrtc_signal
	signal, ok := events[1].(*realtime.WebRTCSignalEvent)
	require.True(t, ok)
	assert.Equal(t, domain.SignalTypeOffer, signal.SignalType)
	assert.Equal(t, data, signal.Data)
}

func TestManager_SignalRejectedOnInactiveCall(t *testing.T) {
	f := newFixture(t, 0)
	call := f.startCall(t)

	_, err := f.manager.UpdateStatus(context.Background(), call.CallID, f.receiver.UserID, domain.CallStatusDeclined)
	require.NoError(t, err)

	err = f.manager.Signal(context.Background(), call.CallID, f.caller.UserID, domain.SignalTypeICECandidate, nil)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeCallNotActive))
}

func TestManager_SignalRejectsNonParticipant(t *testing.T) {
	f := newFixture(t, 0)
	call := f.startCall(t)

	err := f.manager.Signal(context.Background(), call.CallID, uuid.New(), domain.SignalTypeAnswer, nil)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeForbidden))
}
