package application

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/introlink/messaging/internal/domain"
)

func TestCheckStatusTransitions(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	status, err := f.svc.CheckStatus(ctx, "alice", "bob")
	require.NoError(t, err)
	assert.Equal(t, domain.RelationNone, status)

	result, err := f.svc.AttemptSend(ctx, AttemptSendCommand{SenderID: "alice", ReceiverID: "bob", Text: "hi"})
	require.NoError(t, err)

	status, err = f.svc.CheckStatus(ctx, "alice", "bob")
	require.NoError(t, err)
	assert.Equal(t, domain.RelationPendingOutgoing, status)

	// Same relationship seen from the other side.
	status, err = f.svc.CheckStatus(ctx, "bob", "alice")
	require.NoError(t, err)
	assert.Equal(t, domain.RelationPendingIncoming, status)

	_, err = f.svc.AcceptRequest(ctx, result.Request.ID, "bob")
	require.NoError(t, err)

	for _, pair := range [][2]string{{"alice", "bob"}, {"bob", "alice"}} {
		status, err = f.svc.CheckStatus(ctx, pair[0], pair[1])
		require.NoError(t, err)
		assert.Equal(t, domain.RelationAccepted, status)
	}
}

func TestCheckStatusRejectedOnlyShownToSender(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	result, err := f.svc.AttemptSend(ctx, AttemptSendCommand{SenderID: "alice", ReceiverID: "bob", Text: "hi"})
	require.NoError(t, err)
	_, err = f.svc.RejectRequest(ctx, result.Request.ID, "bob")
	require.NoError(t, err)

	status, err := f.svc.CheckStatus(ctx, "alice", "bob")
	require.NoError(t, err)
	assert.Equal(t, domain.RelationRejected, status)

	// Bob never sent anything, so from his side there is no relationship.
	status, err = f.svc.CheckStatus(ctx, "bob", "alice")
	require.NoError(t, err)
	assert.Equal(t, domain.RelationNone, status)
}

func TestCheckStatusValidation(t *testing.T) {
	f := newFixture()

	_, err := f.svc.CheckStatus(context.Background(), "alice", "alice")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = f.svc.CheckStatus(context.Background(), "", "bob")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
