package application

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/introlink/messaging/internal/domain"
	"github.com/introlink/messaging/internal/event"
)

// DeleteMessage soft-deletes: the row is kept but drops out of listings.
// Only the original sender may delete. Unread counters are not rewound.
func (s *Service) DeleteMessage(
	ctx context.Context,
	messageID, actingUser string,
) error {

	var (
		conversationID string
		alreadyDeleted bool
	)

	err := s.tx.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		msg, err := s.repo.GetMessageForUpdate(ctx, tx, messageID)
		if err != nil {
			return err
		}

		if msg.SenderID != actingUser {
			return domain.ErrNotAuthorized
		}

		conversationID = msg.ConversationID

		// Second delete of the same message is a no-op.
		if msg.DeletedAt != nil {
			alreadyDeleted = true
			return nil
		}

		now := time.Now().UTC()
		if err := s.repo.MarkMessageDeleted(ctx, tx, messageID, now); err != nil {
			return fmt.Errorf("mark message deleted: %w", err)
		}

		env, err := event.NewMessageDeleted(conversationID, messageID, now)
		if err != nil {
			return err
		}
		payload, err := marshalEnvelope(env)
		if err != nil {
			return err
		}
		if err := s.repo.InsertOutbox(ctx, tx, "message", conversationID, "MESSAGE_DELETED", payload); err != nil {
			return fmt.Errorf("insert outbox: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if !alreadyDeleted {
		env, err := event.NewMessageDeleted(conversationID, messageID, time.Now().UTC())
		if err != nil {
			s.log.Error("marshal delete event", zap.Error(err))
			return nil
		}
		s.bus.PublishRoom(conversationID, env)
	}
	return nil
}

// MarkRead zeroes the caller's unread counter for a conversation.
func (s *Service) MarkRead(
	ctx context.Context,
	conversationID, userID string,
) error {
	conv, err := s.repo.GetConversation(ctx, nil, conversationID)
	if err != nil {
		return err
	}
	if err := conv.CanSend(userID); err != nil {
		return err
	}
	return s.repo.ResetUnread(ctx, nil, conversationID, userID)
}
