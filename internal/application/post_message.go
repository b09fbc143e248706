package application

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/introlink/messaging/internal/domain"
)

type PostMessageCommand struct {
	ConversationID string
	SenderID       string
	IdempotencyKey string
	Text           string
	Attachments    []domain.Attachment
}

// PostMessage persists a message into an existing conversation and, only
// after the transaction commits, broadcasts it to the room. A retry carrying
// the same idempotency key replays the stored response without inserting a
// second message, closing the lost-response duplicate window.
func (s *Service) PostMessage(
	ctx context.Context,
	cmd PostMessageCommand,
) (*domain.Message, error) {

	if cmd.ConversationID == "" || cmd.SenderID == "" || cmd.IdempotencyKey == "" {
		return nil, domain.ErrInvalidInput
	}

	var (
		result *domain.Message
		conv   *domain.Conversation
		replay bool
	)

	err := s.tx.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {

		owned, err := s.repo.TryInsertIdempotency(
			ctx, tx,
			cmd.IdempotencyKey,
			cmd.SenderID,
			cmd.ConversationID,
			time.Now().Add(24*time.Hour),
		)
		if err != nil {
			return fmt.Errorf("check idempotency: %w", err)
		}

		if !owned {
			payload, err := s.repo.GetIdempotencyForUpdate(
				ctx, tx,
				cmd.IdempotencyKey,
				cmd.SenderID,
				cmd.ConversationID,
			)
			if err != nil {
				return fmt.Errorf("fetch idempotency response: %w", err)
			}
			if payload != nil {
				var msg domain.Message
				if err := json.Unmarshal(payload, &msg); err != nil {
					return fmt.Errorf("unmarshal cached message: %w", err)
				}
				result = &msg
				replay = true
				return nil
			}
		}

		conv, err = s.repo.GetConversation(ctx, tx, cmd.ConversationID)
		if err != nil {
			return err
		}
		if err := conv.CanSend(cmd.SenderID); err != nil {
			return err
		}

		msg, err := s.appendMessage(ctx, tx, conv, cmd.SenderID, cmd.Text, cmd.Attachments)
		if err != nil {
			return err
		}

		payload, err := json.Marshal(msg)
		if err != nil {
			return fmt.Errorf("marshal message for idempotency: %w", err)
		}
		if err := s.repo.UpdateIdempotencyResponse(
			ctx, tx,
			cmd.IdempotencyKey,
			cmd.SenderID,
			cmd.ConversationID,
			payload,
		); err != nil {
			return fmt.Errorf("update idempotency response: %w", err)
		}

		result = msg
		return nil
	})
	if err != nil {
		return nil, err
	}

	// The original call already broadcast this message; a replay must not
	// echo it a second time.
	if !replay {
		s.broadcastMessage(conv, result)
		s.log.Info("message posted",
			zap.String("conversation_id", cmd.ConversationID),
			zap.String("message_id", result.ID),
			zap.Int64("sequence", result.Sequence),
		)
	}

	return result, nil
}
