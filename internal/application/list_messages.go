package application

import (
	"context"

	"github.com/introlink/messaging/internal/domain"
)

// ListMessages pages conversation history oldest to newest. The cursor is the
// last sequence the caller has seen; because sequences are assigned at commit
// and never reused, a page boundary can never re-order already-returned rows.
func (s *Service) ListMessages(
	ctx context.Context,
	conversationID string,
	userID string,
	afterSequence int64,
	pageSize int,
) ([]*domain.Message, error) {

	if pageSize <= 0 || pageSize > 500 {
		pageSize = 100
	}

	conv, err := s.repo.GetConversation(ctx, nil, conversationID)
	if err != nil {
		return nil, err
	}
	if err := conv.CanSend(userID); err != nil {
		return nil, err
	}

	return s.repo.FetchMessages(ctx, conversationID, afterSequence, pageSize)
}

// VerifyParticipant gates realtime room joins on conversation membership.
func (s *Service) VerifyParticipant(
	ctx context.Context,
	conversationID, userID string,
) error {
	conv, err := s.repo.GetConversation(ctx, nil, conversationID)
	if err != nil {
		return err
	}
	return conv.CanSend(userID)
}
