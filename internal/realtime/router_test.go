package realtime

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eduadvise-backend/internal/domain"
)

func TestRouter_DeliverToOfflineUser(t *testing.T) {
	rt := NewRouter(NewRegistry())

	delivered := rt.Deliver(uuid.New(), NewStopTyping(uuid.New(), uuid.New()))
	assert.False(t, delivered)
}

func TestRouter_DeliverFansOutToAllDevices(t *testing.T) {
	reg := NewRegistry()
	rt := NewRouter(reg)
	userID := uuid.New()

	s1 := &fakeSocket{}
	s2 := &fakeSocket{}
	c1 := reg.Register(userID, s1)
	c2 := reg.Register(userID, s2)
	defer c1.Close()
	defer c2.Close()

	delivered := rt.Deliver(userID, NewCallStatus(uuid.New(), domain.CallStatusAccepted))
	assert.True(t, delivered)

	waitFor(t, func() bool { return len(s1.writtenFrames()) == 1 && len(s2.writtenFrames()) == 1 })
	assert.Equal(t, s1.writtenFrames(), s2.writtenFrames())
}

func TestRouter_NewMessageEventShape(t *testing.T) {
	reg := NewRegistry()
	rt := NewRouter(reg)
	receiver := uuid.New()

	sock := &fakeSocket{}
	conn := reg.Register(receiver, sock)
	defer conn.Close()

	msg := &domain.Message{
		MessageID:      uuid.New(),
		ConversationID: uuid.New(),
		SenderID:       uuid.New(),
		ReceiverID:     receiver,
		Content:        "hello",
		CreatedAt:      time.Now().UTC(),
	}
	require.True(t, rt.Deliver(receiver, NewMessage(msg)))

	waitFor(t, func() bool { return len(sock.writtenFrames()) == 1 })

	var frame map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(sock.writtenFrames()[0], &frame))

	var kind string
	require.NoError(t, json.Unmarshal(frame["type"], &kind))
	assert.Equal(t, EventNewMessage, kind)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(frame["message"], &payload))
	assert.Equal(t, msg.MessageID.String(), payload["message_id"])
	assert.Equal(t, msg.ConversationID.String(), payload["conversation_id"])
	assert.Equal(t, msg.SenderID.String(), payload["sender_id"])
	assert.Equal(t, msg.ReceiverID.String(), payload["receiver_id"])
	assert.Equal(t, "hello", payload["content"])
	assert.Contains(t, payload, "is_read")
	assert.Contains(t, payload, "created_at")
}

func TestRouter_IncomingCallEventShape(t *testing.T) {
	reg := NewRegistry()
	rt := NewRouter(reg)
	receiver := uuid.New()

	sock := &fakeSocket{}
	conn := reg.Register(receiver, sock)
	defer conn.Close()

	call := &domain.Call{
		CallID:     uuid.New(),
		CallerID:   uuid.New(),
		ReceiverID: receiver,
		CallType:   domain.CallTypeVideo,
		Status:     domain.CallStatusRinging,
	}
	require.True(t, rt.Deliver(receiver, NewIncomingCall(call, "Dr. Amara Osei")))

	waitFor(t, func() bool { return len(sock.writtenFrames()) == 1 })

	var payload map[string]any
	require.NoError(t, json.Unmarshal(sock.writtenFrames()[0], &payload))
	assert.Equal(t, "incoming_call", payload["type"])
	assert.Equal(t, call.CallID.String(), payload["call_id"])
	assert.Equal(t, call.CallerID.String(), payload["caller_id"])
	assert.Equal(t, "Dr. Amara Osei", payload["caller_name"])
	assert.Equal(t, "video", payload["call_type"])
}

func TestRouter_WebRTCSignalDataForwardedVerbatim(t *testing.T) {
	reg := NewRegistry()
	rt := NewRouter(reg)
	userID := uuid.New()

	sock := &fakeSocket{}
	conn := reg.Register(userID, sock)
	defer conn.Close()

	data := map[string]any{"sdp": "v=0...", "custom": float64(42)}
	require.True(t, rt.Deliver(userID, NewWebRTCSignal(uuid.New(), domain.SignalTypeOffer, data)))

	waitFor(t, func() bool { return len(sock.writtenFrames()) == 1 })

	var payload map[string]any
	require.NoError(t, json.Unmarshal(sock.writtenFrames()[0], &payload))
	assert.Equal(t, "webrtc_signal", payload["type"])
	assert.Equal(t, "offer", payload["signal_type"])
	assert.Equal(t, data, payload["data"])
}

func TestRouter_SlowConsumerIsEvicted(t *testing.T) {
	reg := NewRegistry()
	rt := NewRouter(reg)
	userID := uuid.New()

	// Connection whose pump never runs: build it directly so the send
	// buffer can actually fill up.
	conn := NewConnection(userID, &fakeSocket{}, nil)
	reg.mu.Lock()
	reg.conns[userID] = map[*Connection]struct{}{conn: {}}
	reg.mu.Unlock()

	event := NewStopTyping(uuid.New(), uuid.New())
	frame, err := json.Marshal(event)
	require.NoError(t, err)
	for cap(conn.send) > len(conn.send) {
		conn.send <- frame
	}

	delivered := rt.Deliver(userID, event)
	assert.False(t, delivered)
	assert.True(t, conn.Closed())
}

func TestRouter_DeliverToBoth(t *testing.T) {
	reg := NewRegistry()
	rt := NewRouter(reg)
	online := uuid.New()
	offline := uuid.New()

	sock := &fakeSocket{}
	conn := reg.Register(online, sock)
	defer conn.Close()

	a, b := rt.DeliverToBoth(online, offline, NewCallStatus(uuid.New(), domain.CallStatusMissed))
	assert.True(t, a)
	assert.False(t, b)
}
