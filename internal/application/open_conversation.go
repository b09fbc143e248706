package application

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/introlink/messaging/internal/domain"
)

// OpenConversation resolves the conversation between userID and otherID,
// creating it lazily. Only connected pairs may open a conversation directly;
// everyone else goes through AttemptSend.
func (s *Service) OpenConversation(
	ctx context.Context,
	userID, otherID string,
) (*domain.Conversation, error) {

	if userID == "" || otherID == "" || userID == otherID {
		return nil, domain.ErrInvalidInput
	}

	connected, err := s.repo.HasConnection(ctx, nil, userID, otherID)
	if err != nil {
		return nil, fmt.Errorf("check connection: %w", err)
	}
	if !connected {
		return nil, domain.ErrForbidden
	}

	var conv *domain.Conversation
	err = s.tx.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		conv, err = s.ensureConversation(ctx, tx, userID, otherID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return conv, nil
}

// ListConversations returns every conversation the user participates in,
// with lastMessage and per-participant unread counts attached.
func (s *Service) ListConversations(
	ctx context.Context,
	userID string,
) ([]*domain.Conversation, error) {
	return s.repo.ListConversations(ctx, userID)
}

// UnreadSnapshot is the authoritative unread state the fan-out poller uses to
// correct drift after missed bus events.
func (s *Service) UnreadSnapshot(
	ctx context.Context,
	userID string,
) (map[string]int, error) {
	return s.repo.UnreadCounts(ctx, userID)
}
