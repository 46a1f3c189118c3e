package realtime

import (
	"github.com/google/uuid"

	"eduadvise-backend/internal/domain"
)

// Event kinds pushed to clients. These strings are wire contract; clients
// switch on them and they must not be renamed.
const (
	EventNewMessage       = "new_message"
	EventUserTyping       = "user_typing"
	EventStopTyping       = "stop_typing"
	EventIncomingCall     = "incoming_call"
	EventCallStatusUpdate = "call_status_update"
	EventWebRTCSignal     = "webrtc_signal"
)

// Event is one outbound realtime payload. The set of implementations is
// closed: every kind the router can deliver has its own struct below, so
// missing fields are caught at construction, not in handler logic.
type Event interface {
	EventKind() string
}

// NewMessageEvent carries a full message record to its receiver
type NewMessageEvent struct {
	Type    string          `json:"type"`
	Message *domain.Message `json:"message"`
}

// NewMessage builds a new_message event
func NewMessage(msg *domain.Message) *NewMessageEvent {
	return &NewMessageEvent{Type: EventNewMessage, Message: msg}
}

func (e *NewMessageEvent) EventKind() string { return e.Type }

// TypingEvent signals that a user started or stopped typing in a conversation
type TypingEvent struct {
	Type           string    `json:"type"`
	UserID         uuid.UUID `json:"user_id"`
	ConversationID uuid.UUID `json:"conversation_id"`
}

// NewTyping builds a user_typing event
func NewTyping(userID, conversationID uuid.UUID) *TypingEvent {
	return &TypingEvent{Type: EventUserTyping, UserID: userID, ConversationID: conversationID}
}

// NewStopTyping builds a stop_typing event
func NewStopTyping(userID, conversationID uuid.UUID) *TypingEvent {
	return &TypingEvent{Type: EventStopTyping, UserID: userID, ConversationID: conversationID}
}

func (e *TypingEvent) EventKind() string { return e.Type }

// IncomingCallEvent notifies the receiver that a call is ringing
type IncomingCallEvent struct {
	Type       string          `json:"type"`
	CallID     uuid.UUID       `json:"call_id"`
	CallerID   uuid.UUID       `json:"caller_id"`
	CallerName string          `json:"caller_name"`
	CallType   domain.CallType `json:"call_type"`
}

// NewIncomingCall builds an incoming_call event
func NewIncomingCall(call *domain.Call, callerName string) *IncomingCallEvent {
	return &IncomingCallEvent{
		Type:       EventIncomingCall,
		CallID:     call.CallID,
		CallerID:   call.CallerID,
		CallerName: callerName,
		CallType:   call.CallType,
	}
}

func (e *IncomingCallEvent) EventKind() string { return e.Type }

// CallStatusEvent notifies a party that the call changed state
type CallStatusEvent struct {
	Type   string            `json:"type"`
	CallID uuid.UUID         `json:"call_id"`
	Status domain.CallStatus `json:"status"`
}

// NewCallStatus builds a call_status_update event
func NewCallStatus(callID uuid.UUID, status domain.CallStatus) *CallStatusEvent {
	return &CallStatusEvent{Type: EventCallStatusUpdate, CallID: callID, Status: status}
}

func (e *CallStatusEvent) EventKind() string { return e.Type }

// WebRTCSignalEvent relays opaque signaling data to the other call party.
// Data is forwarded verbatim; the router never interprets it.
type WebRTCSignalEvent struct {
	Type       string            `json:"type"`
	CallID     uuid.UUID         `json:"call_id"`
	SignalType domain.SignalType `json:"signal_type"`
	Data       map[string]any    `json:"data"`
}

// NewWebRTCSignal builds a webrtc_signal event
func NewWebRTCSignal(callID uuid.UUID, signalType domain.SignalType, data map[string]any) *WebRTCSignalEvent {
	return &WebRTCSignalEvent{Type: EventWebRTCSignal, CallID: callID, SignalType: signalType, Data: data}
}

func (e *WebRTCSignalEvent) EventKind() string { return e.Type }
