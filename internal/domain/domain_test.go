package domain

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPairKeyIsOrderInsensitive(t *testing.T) {
	assert.Equal(t, PairKey("alice", "bob"), PairKey("bob", "alice"))
	assert.Equal(t, "direct:alice:bob", PairKey("bob", "alice"))
	assert.NotEqual(t, PairKey("alice", "bob"), PairKey("alice", "carol"))
}

func TestNewMessageValidation(t *testing.T) {
	now := time.Now().UTC()
	att := []Attachment{{URL: "/uploads/x.png", Filename: "x.png", Size: 10, Type: "image/png"}}

	tests := []struct {
		name        string
		text        string
		attachments []Attachment
		sequence    int64
		wantErr     error
	}{
		{name: "text only", text: "hi", sequence: 1},
		{name: "attachment only", attachments: att, sequence: 1},
		{name: "both", text: "hi", attachments: att, sequence: 1},
		{name: "neither", sequence: 1, wantErr: ErrEmptyMessage},
		{name: "too large", text: strings.Repeat("a", MaxMessageSize+1), sequence: 1, wantErr: ErrMessageTooLarge},
		{name: "at limit", text: strings.Repeat("a", MaxMessageSize), sequence: 1},
		{name: "bad sequence", text: "hi", sequence: 0, wantErr: ErrInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := NewMessage("m1", "c1", "alice", tt.text, tt.attachments, tt.sequence, now)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Nil(t, msg.DeletedAt)
		})
	}
}

func TestNewMessageRequest(t *testing.T) {
	now := time.Now().UTC()

	req, err := NewMessageRequest("r1", "alice", "bob", "m1", now)
	require.NoError(t, err)
	assert.Equal(t, RequestPending, req.Status)
	assert.Nil(t, req.ResolvedAt)

	_, err = NewMessageRequest("r1", "alice", "alice", "m1", now)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = NewMessageRequest("r1", "alice", "bob", "", now)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestCanResolve(t *testing.T) {
	req, err := NewMessageRequest("r1", "alice", "bob", "m1", time.Now().UTC())
	require.NoError(t, err)

	assert.NoError(t, req.CanResolve("bob"))
	assert.ErrorIs(t, req.CanResolve("alice"), ErrNotAuthorized)

	req.Status = RequestAccepted
	assert.ErrorIs(t, req.CanResolve("bob"), ErrInvalidState)
}

func TestNewConnectionNormalizesPair(t *testing.T) {
	conn, err := NewConnection("c1", "bob", "alice", time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, "alice", conn.UserA)
	assert.Equal(t, "bob", conn.UserB)
	assert.Equal(t, PairKey("alice", "bob"), conn.PairKey)
}

func TestConversationMembership(t *testing.T) {
	conv, err := NewConversation("c1", "alice", "bob", time.Now().UTC())
	require.NoError(t, err)

	assert.NoError(t, conv.CanSend("alice"))
	assert.ErrorIs(t, conv.CanSend("mallory"), ErrNotParticipant)
	assert.Equal(t, "bob", conv.OtherParticipant("alice"))
	assert.Equal(t, "alice", conv.OtherParticipant("bob"))
}
