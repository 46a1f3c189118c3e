package call

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"eduadvise-backend/internal/domain"
	"eduadvise-backend/internal/realtime"
	"eduadvise-backend/pkg/errors"
	"eduadvise-backend/pkg/logger"
	"eduadvise-backend/pkg/metrics"
)

// SystemRequester marks status changes made by the server itself, such
// as the ring timeout. Clients can never hold the nil UUID, so it can
// never be spoofed by a request.
var SystemRequester = uuid.Nil

// transitions is the only legal set of status changes. Anything absent
// here is rejected; terminal states have no outgoing edges.
var transitions = map[domain.CallStatus]map[domain.CallStatus]bool{
	domain.CallStatusRinging: {
		domain.CallStatusAccepted: true,
		domain.CallStatusDeclined: true,
		domain.CallStatusMissed:   true,
		domain.CallStatusEnded:    true,
	},
	domain.CallStatusAccepted: {
		domain.CallStatusEnded: true,
	},
}

// Store persists call records.
type Store interface {
	Create(ctx context.Context, call *domain.Call) error
	Update(ctx context.Context, call *domain.Call) error
	GetByID(ctx context.Context, callID uuid.UUID) (*domain.Call, error)
}

// UserDirectory resolves user records for caller names and notification
// addresses.
type UserDirectory interface {
	GetByID(ctx context.Context, userID uuid.UUID) (*domain.User, error)
}

// EventSink pushes realtime events toward a user's live connections.
type EventSink interface {
	Deliver(userID uuid.UUID, event realtime.Event) bool
	IsOnline(userID uuid.UUID) bool
}

// Notifier reaches users who are offline when a call comes in.
type Notifier interface {
	SendIncomingCallNotification(ctx context.Context, to, callerName, callType string) error
}

// session is the in-flight state of one active call. Its mutex
// serializes all status changes and signal relays for that call, so
// concurrent accept/decline races resolve to exactly one winner.
type session struct {
	mu        sync.Mutex
	call      *domain.Call
	ringTimer *time.Timer
}

// Manager owns the call lifecycle: it creates sessions, enforces the
// transition table, arms the ring timeout and relays WebRTC signals
// between the two parties.
type Manager struct {
	store       Store
	users       UserDirectory
	events      EventSink
	notifier    Notifier
	ringTimeout time.Duration

	mu     sync.RWMutex
	active map[uuid.UUID]*session
}

// NewManager wires a call manager. A non-positive ringTimeout disables
// the automatic missed transition; production always passes one.
func NewManager(store Store, users UserDirectory, events EventSink, notifier Notifier, ringTimeout time.Duration) *Manager {
	return &Manager{
		store:       store,
		users:       users,
		events:      events,
		notifier:    notifier,
		ringTimeout: ringTimeout,
		active:      make(map[uuid.UUID]*session),
	}
}

// Start creates a ringing call from caller to receiver, persists it,
// notifies the receiver's connections and arms the ring timeout. An
// offline receiver gets an email instead of the incoming_call event.
func (m *Manager) Start(ctx context.Context, callerID, receiverID uuid.UUID, callType domain.CallType) (*domain.Call, error) {
	if !callType.Valid() {
		return nil, errors.InvalidInputError("call_type must be audio or video")
	}
	if callerID == receiverID {
		return nil, errors.InvalidPartyError("Cannot call yourself")
	}

	caller, err := m.users.GetByID(ctx, callerID)
	if err != nil {
		return nil, err
	}
	receiver, err := m.users.GetByID(ctx, receiverID)
	if err != nil {
		return nil, err
	}

	call := &domain.Call{
		CallID:     uuid.New(),
		CallerID:   callerID,
		ReceiverID: receiverID,
		CallType:   callType,
		Status:     domain.CallStatusRinging,
		CreatedAt:  time.Now().UTC(),
	}
	if err := m.store.Create(ctx, call); err != nil {
		return nil, err
	}

	sess := &session{call: call}
	m.mu.Lock()
	m.active[call.CallID] = sess
	m.mu.Unlock()

	// Armed only after the session is registered so the timeout callback
	// always resolves it through m.active.
	if m.ringTimeout > 0 {
		callID := call.CallID
		sess.mu.Lock()
		sess.ringTimer = time.AfterFunc(m.ringTimeout, func() {
			m.ringTimeoutFired(callID)
		})
		sess.mu.Unlock()
	}

	logger.Info("call started",
		zap.String("call_id", call.CallID.String()),
		zap.String("caller_id", callerID.String()),
		zap.String("receiver_id", receiverID.String()),
		zap.String("call_type", string(callType)))

	if !m.events.Deliver(receiverID, realtime.NewIncomingCall(call, caller.FullName)) {
		m.notifyOffline(ctx, receiver, caller.FullName, string(callType))
	}
	return call, nil
}

// UpdateStatus applies one transition requested by requesterID.
// Permission rules: accepted and declined belong to the receiver alone,
// ended belongs to either party, missed belongs to the system only.
func (m *Manager) UpdateStatus(ctx context.Context, callID, requesterID uuid.UUID, status domain.CallStatus) (*domain.Call, error) {
	sess, err := m.session(ctx, callID)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	call := sess.call
	if requesterID != SystemRequester && !call.HasParticipant(requesterID) {
		return nil, errors.ForbiddenError("Not a participant of this call")
	}

	if err := m.authorize(call, requesterID, status); err != nil {
		return nil, err
	}
	if !transitions[call.Status][status] {
		metrics.CallTransitionsRejectedTotal.Inc()
		return nil, errors.InvalidTransitionError(string(call.Status), string(status))
	}

	from := call.Status
	now := time.Now().UTC()
	call.Status = status
	switch status {
	case domain.CallStatusAccepted:
		call.StartedAt = &now
	case domain.CallStatusEnded, domain.CallStatusDeclined, domain.CallStatusMissed:
		call.EndedAt = &now
		if call.StartedAt != nil {
			d := int(now.Sub(*call.StartedAt).Seconds())
			call.DurationSeconds = &d
		}
	}

	if err := m.store.Update(ctx, call); err != nil {
		// roll back the in-memory state so a retry can succeed
		call.Status = from
		call.EndedAt = nil
		call.DurationSeconds = nil
		if status == domain.CallStatusAccepted {
			call.StartedAt = nil
		}
		return nil, err
	}

	metrics.CallTransitionsTotal.WithLabelValues(string(from), string(status)).Inc()
	logger.Info("call status updated",
		zap.String("call_id", call.CallID.String()),
		zap.String("from", string(from)),
		zap.String("to", string(status)))

	// Stop ringing once the call leaves the ringing state.
	if sess.ringTimer != nil {
		sess.ringTimer.Stop()
		sess.ringTimer = nil
	}
	if status.Terminal() {
		m.mu.Lock()
		delete(m.active, call.CallID)
		m.mu.Unlock()
	}

	m.broadcast(call, requesterID, status)
	snapshot := *call
	return &snapshot, nil
}

// Signal relays one WebRTC signaling payload from senderID to the other
// party. Signaling is only legal while the call is ringing or accepted.
func (m *Manager) Signal(ctx context.Context, callID, senderID uuid.UUID, signalType domain.SignalType, data map[string]any) error {
	if !signalType.Valid() {
		return errors.InvalidInputError("signal_type must be offer, answer or ice-candidate")
	}

	sess, err := m.session(ctx, callID)
	if err != nil {
		return err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	call := sess.call
	if !call.HasParticipant(senderID) {
		return errors.ForbiddenError("Not a participant of this call")
	}
	if call.Status != domain.CallStatusRinging && call.Status != domain.CallStatusAccepted {
		return errors.CallNotActiveError(string(call.Status))
	}

	m.events.Deliver(call.OtherParty(senderID), realtime.NewWebRTCSignal(callID, signalType, data))
	return nil
}

// Get returns the call record, from the active session if the call is
// still in flight, otherwise from the store.
func (m *Manager) Get(ctx context.Context, callID uuid.UUID) (*domain.Call, error) {
	m.mu.RLock()
	sess, ok := m.active[callID]
	m.mu.RUnlock()
	if ok {
		sess.mu.Lock()
		snapshot := *sess.call
		sess.mu.Unlock()
		return &snapshot, nil
	}
	return m.store.GetByID(ctx, callID)
}

// ActiveCount returns the number of in-flight call sessions.
func (m *Manager) ActiveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.active)
}

// session resolves an in-flight session, falling back to the store for
// calls that already reached a terminal state (their transition attempts
// must still produce the proper conflict error).
func (m *Manager) session(ctx context.Context, callID uuid.UUID) (*session, error) {
	m.mu.RLock()
	sess, ok := m.active[callID]
	m.mu.RUnlock()
	if ok {
		return sess, nil
	}

	call, err := m.store.GetByID(ctx, callID)
	if err != nil {
		return nil, err
	}
	return &session{call: call}, nil
}

// authorize checks who may request which status.
func (m *Manager) authorize(call *domain.Call, requesterID uuid.UUID, status domain.CallStatus) error {
	switch status {
	case domain.CallStatusAccepted, domain.CallStatusDeclined:
		if requesterID != call.ReceiverID {
			return errors.ForbiddenError("Only the call receiver can accept or decline")
		}
	case domain.CallStatusMissed:
		if requesterID != SystemRequester {
			return errors.ForbiddenError("Missed is set by the server only")
		}
	case domain.CallStatusEnded:
		if requesterID != SystemRequester && !call.HasParticipant(requesterID) {
			return errors.ForbiddenError("Not a participant of this call")
		}
	case domain.CallStatusRinging:
		return errors.InvalidTransitionError(string(call.Status), string(status))
	default:
		return errors.InvalidInputError("Unknown call status")
	}
	return nil
}

// broadcast fans a status change out per the notification rules:
// missed goes to both parties, everything else goes to the counterpart
// of whoever made the change.
func (m *Manager) broadcast(call *domain.Call, requesterID uuid.UUID, status domain.CallStatus) {
	event := realtime.NewCallStatus(call.CallID, status)
	if status == domain.CallStatusMissed {
		m.events.Deliver(call.CallerID, event)
		m.events.Deliver(call.ReceiverID, event)
		return
	}

	target := call.OtherParty(requesterID)
	if target == uuid.Nil {
		// system-requested end: tell both sides
		m.events.Deliver(call.CallerID, event)
		m.events.Deliver(call.ReceiverID, event)
		return
	}
	m.events.Deliver(target, event)
}

// ringTimeoutFired marks an unanswered call as missed. Transition rules
// make this a no-op when the receiver answered in the same instant: the
// session mutex orders the two and the loser sees an illegal edge.
func (m *Manager) ringTimeoutFired(callID uuid.UUID) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	call, err := m.UpdateStatus(ctx, callID, SystemRequester, domain.CallStatusMissed)
	if err != nil {
		if !errors.IsCode(err, errors.ErrCodeInvalidTransition) {
			logger.Warn("ring timeout handling failed",
				zap.String("call_id", callID.String()),
				zap.Error(err))
		}
		return
	}

	metrics.CallRingTimeoutsTotal.Inc()
	logger.Info("call missed after ring timeout",
		zap.String("call_id", call.CallID.String()),
		zap.String("receiver_id", call.ReceiverID.String()))
}

func (m *Manager) notifyOffline(ctx context.Context, receiver *domain.User, callerName, callType string) {
	if m.notifier == nil {
		return
	}
	if err := m.notifier.SendIncomingCallNotification(ctx, receiver.Email, callerName, callType); err != nil {
		metrics.OfflineEmailsTotal.WithLabelValues("incoming_call", "error").Inc()
		logger.Warn("offline call email failed",
			zap.String("to", receiver.Email),
			zap.Error(err))
		return
	}
	metrics.OfflineEmailsTotal.WithLabelValues("incoming_call", "ok").Inc()
}
