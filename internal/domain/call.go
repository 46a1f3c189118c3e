package domain

import (
	"time"

	"github.com/google/uuid"
)

// CallType is the media kind of a call
type CallType string

const (
	CallTypeAudio CallType = "audio"
	CallTypeVideo CallType = "video"
)

// Valid reports whether the call type is one of the known kinds
func (t CallType) Valid() bool {
	return t == CallTypeAudio || t == CallTypeVideo
}

// CallStatus is the lifecycle state of a call session
type CallStatus string

const (
	CallStatusRinging  CallStatus = "ringing"
	CallStatusAccepted CallStatus = "accepted"
	CallStatusDeclined CallStatus = "declined"
	CallStatusMissed   CallStatus = "missed"
	CallStatusEnded    CallStatus = "ended"
)

// Terminal reports whether the status ends the call lifecycle
func (s CallStatus) Terminal() bool {
	switch s {
	case CallStatusDeclined, CallStatusMissed, CallStatusEnded:
		return true
	}
	return false
}

// SignalType is the kind of a relayed WebRTC signal
type SignalType string

const (
	SignalTypeOffer        SignalType = "offer"
	SignalTypeAnswer       SignalType = "answer"
	SignalTypeICECandidate SignalType = "ice-candidate"
)

// Valid reports whether the signal type is one of the known kinds
func (t SignalType) Valid() bool {
	return t == SignalTypeOffer || t == SignalTypeAnswer || t == SignalTypeICECandidate
}

// Call tracks one call attempt between a caller and a receiver.
// The authoritative in-flight state lives in the call manager while the
// call is active; this record is the persisted history in CockroachDB.
type Call struct {
	CallID          uuid.UUID  `json:"call_id" db:"call_id"`
	CallerID        uuid.UUID  `json:"caller_id" db:"caller_id"`
	ReceiverID      uuid.UUID  `json:"receiver_id" db:"receiver_id"`
	CallType        CallType   `json:"call_type" db:"call_type"`
	Status          CallStatus `json:"status" db:"status"`
	CreatedAt       time.Time  `json:"created_at" db:"created_at"`
	StartedAt       *time.Time `json:"started_at,omitempty" db:"started_at"`
	EndedAt         *time.Time `json:"ended_at,omitempty" db:"ended_at"`
	DurationSeconds *int       `json:"duration_seconds,omitempty" db:"duration_seconds"`
}

// HasParticipant reports whether the user is the caller or the receiver
func (c *Call) HasParticipant(userID uuid.UUID) bool {
	return c.CallerID == userID || c.ReceiverID == userID
}

// OtherParty returns the counterpart of userID in the call, or uuid.Nil
// if the user is not a party
func (c *Call) OtherParty(userID uuid.UUID) uuid.UUID {
	switch userID {
	case c.CallerID:
		return c.ReceiverID
	case c.ReceiverID:
		return c.CallerID
	}
	return uuid.Nil
}
