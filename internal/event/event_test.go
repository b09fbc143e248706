package event

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/introlink/messaging/internal/domain"
)

func sampleMessage(t *testing.T) *domain.Message {
	t.Helper()
	msg, err := domain.NewMessage("m1", "c1", "alice", "hello", nil, 7, time.Now().UTC())
	require.NoError(t, err)
	return msg
}

func TestMessageReceivedRoundTrip(t *testing.T) {
	msg := sampleMessage(t)

	env, err := NewMessageReceived(msg)
	require.NoError(t, err)
	assert.Equal(t, TypeMessageReceived, env.Type)
	assert.Equal(t, msg.SentAt, env.OccurredAt)

	decoded, err := Decode(env)
	require.NoError(t, err)
	payload, ok := decoded.(MessageReceived)
	require.True(t, ok)
	assert.Equal(t, "m1", payload.Message.ID)
	assert.Equal(t, int64(7), payload.Message.Sequence)
}

func TestDecodeRejectsUnknownType(t *testing.T) {
	_, err := Decode(Envelope{Type: "mystery", Payload: json.RawMessage(`{}`)})
	assert.ErrorIs(t, err, ErrUnknownType)
}

func TestDecodeRejectsMissingIdentity(t *testing.T) {
	now := time.Now().UTC()

	cases := []Envelope{
		{Type: TypeMessageReceived, OccurredAt: now, Payload: json.RawMessage(`{"message":{}}`)},
		{Type: TypeMessageDeleted, OccurredAt: now, Payload: json.RawMessage(`{"conversation_id":"c1"}`)},
		{Type: TypeTyping, OccurredAt: now, Payload: json.RawMessage(`{"user_id":"alice"}`)},
		{Type: TypeNotification, OccurredAt: now, Payload: json.RawMessage(`{}`)},
	}
	for _, env := range cases {
		_, err := Decode(env)
		assert.Error(t, err, "type %s", env.Type)
	}
}

func TestDecodeRejectsMalformedPayload(t *testing.T) {
	_, err := Decode(Envelope{Type: TypeNotification, Payload: json.RawMessage(`not json`)})
	assert.Error(t, err)
}

func TestTypingEnvelopeTypes(t *testing.T) {
	env, err := NewTyping("c1", "alice", false, time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, TypeTyping, env.Type)

	env, err = NewTyping("c1", "alice", true, time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, TypeStopTyping, env.Type)

	decoded, err := Decode(env)
	require.NoError(t, err)
	payload, ok := decoded.(Typing)
	require.True(t, ok)
	assert.Equal(t, "c1", payload.ConversationID)
}

func TestNotificationRoundTrip(t *testing.T) {
	env, err := NewNotification(Notification{
		ID:        "n1",
		Kind:      NoticeRequestAccepted,
		ActorID:   "bob",
		RequestID: "r1",
	}, time.Now().UTC())
	require.NoError(t, err)

	decoded, err := Decode(env)
	require.NoError(t, err)
	payload, ok := decoded.(Notification)
	require.True(t, ok)
	assert.Equal(t, NoticeRequestAccepted, payload.Kind)
	assert.Equal(t, "r1", payload.RequestID)
}

func TestParseClientFrame(t *testing.T) {
	f, err := ParseClientFrame([]byte(`{"type":"setup"}`))
	require.NoError(t, err)
	assert.Equal(t, FrameSetup, f.Type)

	f, err = ParseClientFrame([]byte(`{"type":"join_chat","conversation_id":"c1"}`))
	require.NoError(t, err)
	assert.Equal(t, "c1", f.ConversationID)

	_, err = ParseClientFrame([]byte(`{"type":"join_chat"}`))
	assert.Error(t, err)

	_, err = ParseClientFrame([]byte(`{"type":"selfdestruct"}`))
	assert.Error(t, err)

	_, err = ParseClientFrame([]byte(`garbage`))
	assert.Error(t, err)
}
