package application

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/introlink/messaging/internal/domain"
	"github.com/introlink/messaging/internal/event"
)

type AttemptKind string

const (
	// AttemptSent: the pair is connected, the message went straight through.
	AttemptSent AttemptKind = "sent"
	// AttemptRequestCreated: first contact, message parked behind a pending request.
	AttemptRequestCreated AttemptKind = "request_created"
)

type AttemptSendCommand struct {
	SenderID    string
	ReceiverID  string
	Text        string
	Attachments []domain.Attachment
}

type AttemptSendResult struct {
	Kind           AttemptKind            `json:"kind"`
	ConversationID string                 `json:"conversation_id"`
	Message        *domain.Message        `json:"message"`
	Request        *domain.MessageRequest `json:"request,omitempty"`
}

// AttemptSend runs the connection-gate state machine for a sender->receiver
// first contact. Connected pairs send directly; unknown pairs get a pending
// MessageRequest wrapping the first message; an unresolved request blocks
// further sends from either side until the receiver accepts or rejects.
func (s *Service) AttemptSend(
	ctx context.Context,
	cmd AttemptSendCommand,
) (*AttemptSendResult, error) {

	if cmd.SenderID == "" || cmd.ReceiverID == "" || cmd.SenderID == cmd.ReceiverID {
		return nil, domain.ErrInvalidInput
	}

	var (
		result        AttemptSendResult
		notifyRequest *domain.MessageRequest
	)

	err := s.tx.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {

		connected, err := s.repo.HasConnection(ctx, tx, cmd.SenderID, cmd.ReceiverID)
		if err != nil {
			return fmt.Errorf("check connection: %w", err)
		}

		pending, err := s.repo.FindPendingRequest(ctx, tx, cmd.SenderID, cmd.ReceiverID)
		if err != nil && !errors.Is(err, domain.ErrRequestNotFound) {
			return fmt.Errorf("find pending request: %w", err)
		}
		if pending != nil {
			// An accept raced with this resend: the pair is connected now,
			// the caller should retry as a normal send.
			if connected {
				return domain.ErrAlreadyConnected
			}
			return domain.ErrRequestAlreadyPending
		}

		if connected {
			conv, err := s.ensureConversation(ctx, tx, cmd.SenderID, cmd.ReceiverID)
			if err != nil {
				return err
			}
			msg, err := s.appendMessage(ctx, tx, conv, cmd.SenderID, cmd.Text, cmd.Attachments)
			if err != nil {
				return err
			}
			result = AttemptSendResult{
				Kind:           AttemptSent,
				ConversationID: conv.ID,
				Message:        msg,
			}
			return nil
		}

		// The sender may be the receiver of someone else's pending request;
		// replying requires accepting first.
		incoming, err := s.repo.FindPendingRequest(ctx, tx, cmd.ReceiverID, cmd.SenderID)
		if err != nil && !errors.Is(err, domain.ErrRequestNotFound) {
			return fmt.Errorf("find incoming request: %w", err)
		}
		if incoming != nil {
			return domain.ErrRequestAlreadyPending
		}

		conv, err := s.ensureConversation(ctx, tx, cmd.SenderID, cmd.ReceiverID)
		if err != nil {
			return err
		}

		msg, err := s.appendMessage(ctx, tx, conv, cmd.SenderID, cmd.Text, cmd.Attachments)
		if err != nil {
			return err
		}

		req, err := domain.NewMessageRequest(
			uuid.NewString(),
			cmd.SenderID,
			cmd.ReceiverID,
			msg.ID,
			time.Now().UTC(),
		)
		if err != nil {
			return err
		}
		if err := s.repo.InsertRequest(ctx, tx, req); err != nil {
			return fmt.Errorf("insert request: %w", err)
		}

		env, err := event.NewNotification(event.Notification{
			ID:             uuid.NewString(),
			Kind:           event.NoticeRequestCreated,
			ActorID:        cmd.SenderID,
			RequestID:      req.ID,
			ConversationID: conv.ID,
		}, time.Now().UTC())
		if err != nil {
			return err
		}
		payload, err := marshalEnvelope(env)
		if err != nil {
			return err
		}
		if err := s.repo.InsertOutbox(ctx, tx, "request", req.ID, "REQUEST_CREATED", payload); err != nil {
			return fmt.Errorf("insert outbox: %w", err)
		}

		result = AttemptSendResult{
			Kind:           AttemptRequestCreated,
			ConversationID: conv.ID,
			Message:        msg,
			Request:        req,
		}
		notifyRequest = req
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Committed. Broadcast is best-effort from here on.
	switch result.Kind {
	case AttemptSent:
		conv, err := s.repo.GetConversation(ctx, nil, result.ConversationID)
		if err != nil {
			s.log.Error("reload conversation for broadcast", zap.Error(err))
		} else {
			s.broadcastMessage(conv, result.Message)
		}
	case AttemptRequestCreated:
		s.notifyUsers(event.Notification{
			Kind:           event.NoticeRequestCreated,
			ActorID:        cmd.SenderID,
			RequestID:      notifyRequest.ID,
			ConversationID: result.ConversationID,
		}, cmd.ReceiverID)
	}

	s.log.Info("attempt send resolved",
		zap.String("sender_id", cmd.SenderID),
		zap.String("receiver_id", cmd.ReceiverID),
		zap.String("kind", string(result.Kind)),
	)
	return &result, nil
}
