package application

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/introlink/messaging/internal/domain"
	"github.com/introlink/messaging/internal/event"
)

// ensureConversation finds or lazily creates the single conversation for the
// unordered pair. Concurrent first calls race on the pair key unique
// constraint; the loser re-reads the winner's row.
func (s *Service) ensureConversation(
	ctx context.Context,
	tx *sql.Tx,
	userA, userB string,
) (*domain.Conversation, error) {

	pairKey := domain.PairKey(userA, userB)

	conv, err := s.repo.GetConversationByPairKey(ctx, tx, pairKey)
	if err == nil {
		return conv, nil
	}
	if err != domain.ErrConversationNotFound {
		return nil, fmt.Errorf("lookup conversation: %w", err)
	}

	conv, err = domain.NewConversation(uuid.NewString(), userA, userB, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	created, err := s.repo.InsertConversation(ctx, tx, conv)
	if err != nil {
		return nil, fmt.Errorf("insert conversation: %w", err)
	}
	if !created {
		return s.repo.GetConversationByPairKey(ctx, tx, pairKey)
	}

	if err := s.repo.InitSequence(ctx, tx, conv.ID); err != nil {
		return nil, fmt.Errorf("init sequence: %w", err)
	}
	return conv, nil
}

// appendMessage persists a message plus its conversation bookkeeping
// (sequence claim, lastMessage pointer, unread increments, outbox row).
// Callers publish to the bus only after the surrounding tx commits.
func (s *Service) appendMessage(
	ctx context.Context,
	tx *sql.Tx,
	conv *domain.Conversation,
	senderID, text string,
	attachments []domain.Attachment,
) (*domain.Message, error) {

	seq, err := s.repo.NextSequence(ctx, tx, conv.ID)
	if err != nil {
		return nil, fmt.Errorf("claim sequence: %w", err)
	}

	msg, err := domain.NewMessage(
		uuid.NewString(),
		conv.ID,
		senderID,
		text,
		attachments,
		seq,
		time.Now().UTC(),
	)
	if err != nil {
		return nil, err
	}

	if err := s.repo.InsertMessage(ctx, tx, msg); err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}

	if err := s.repo.SetLastMessage(ctx, tx, conv.ID, msg.ID); err != nil {
		return nil, fmt.Errorf("update last message: %w", err)
	}

	if err := s.repo.IncrementUnread(ctx, tx, conv.ID, senderID); err != nil {
		return nil, fmt.Errorf("increment unread: %w", err)
	}

	env, err := event.NewMessageReceived(msg)
	if err != nil {
		return nil, err
	}
	payload, err := marshalEnvelope(env)
	if err != nil {
		return nil, err
	}
	if err := s.repo.InsertOutbox(ctx, tx, "message", conv.ID, "MESSAGE_SENT", payload); err != nil {
		return nil, fmt.Errorf("insert outbox: %w", err)
	}

	return msg, nil
}

// broadcastMessage fans a committed message out to the conversation room and
// to every participant's user channel (for cross-conversation fan-out).
func (s *Service) broadcastMessage(conv *domain.Conversation, msg *domain.Message) {
	env, err := event.NewMessageReceived(msg)
	if err != nil {
		s.log.Error("marshal message event", zap.Error(err))
		return
	}
	s.bus.PublishRoom(conv.ID, env)
	for userID := range conv.Participants {
		if userID != msg.SenderID {
			s.bus.PublishUser(userID, env)
		}
	}
}
