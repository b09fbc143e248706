package application

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/introlink/messaging/internal/domain"
)

func TestOpenConversationRequiresConnection(t *testing.T) {
	f := newFixture()

	_, err := f.svc.OpenConversation(context.Background(), "alice", "bob")
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestOpenConversationIsIdempotent(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.connect("alice", "bob")

	first, err := f.svc.OpenConversation(ctx, "alice", "bob")
	require.NoError(t, err)

	// Opening from either side resolves the same conversation.
	second, err := f.svc.OpenConversation(ctx, "bob", "alice")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, domain.PairKey("alice", "bob"), first.PairKey)
}

func TestOpenConversationReusesRequestConversation(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	// First contact creates the conversation alongside the request.
	result, err := f.svc.AttemptSend(ctx, AttemptSendCommand{SenderID: "alice", ReceiverID: "bob", Text: "hi"})
	require.NoError(t, err)
	_, err = f.svc.AcceptRequest(ctx, result.Request.ID, "bob")
	require.NoError(t, err)

	conv, err := f.svc.OpenConversation(ctx, "bob", "alice")
	require.NoError(t, err)
	assert.Equal(t, result.ConversationID, conv.ID)
}

func TestListConversations(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.connect("alice", "bob")
	f.connect("alice", "carol")

	_, err := f.svc.OpenConversation(ctx, "alice", "bob")
	require.NoError(t, err)
	_, err = f.svc.OpenConversation(ctx, "alice", "carol")
	require.NoError(t, err)

	convs, err := f.svc.ListConversations(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, convs, 2)

	convs, err = f.svc.ListConversations(ctx, "bob")
	require.NoError(t, err)
	assert.Len(t, convs, 1)
}

func TestListMessagesPagination(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	convID := connectedConversation(t, f, "alice", "bob")

	for _, key := range []string{"k1", "k2", "k3", "k4", "k5"} {
		_, err := f.svc.PostMessage(ctx, PostMessageCommand{
			ConversationID: convID, SenderID: "alice", IdempotencyKey: key, Text: key,
		})
		require.NoError(t, err)
	}

	page, err := f.svc.ListMessages(ctx, convID, "bob", 0, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, int64(1), page[0].Sequence)

	// Cursor continues where the last page stopped.
	page, err = f.svc.ListMessages(ctx, convID, "bob", page[1].Sequence, 10)
	require.NoError(t, err)
	require.Len(t, page, 3)
	assert.Equal(t, int64(3), page[0].Sequence)
}

func TestListMessagesNonParticipant(t *testing.T) {
	f := newFixture()
	convID := connectedConversation(t, f, "alice", "bob")

	_, err := f.svc.ListMessages(context.Background(), convID, "mallory", 0, 10)
	assert.ErrorIs(t, err, domain.ErrNotParticipant)
}
