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

// AcceptRequest transitions a pending request to accepted and creates the
// Connection. The transition is a conditional update keyed on status=pending,
// so concurrent duplicate accepts are serialized: exactly one caller flips the
// row, later callers get ErrInvalidState. The connection insert is ON CONFLICT
// DO NOTHING on the pair key, so no duplicate Connection can exist either way.
func (s *Service) AcceptRequest(
	ctx context.Context,
	requestID, actingUser string,
) (*domain.MessageRequest, error) {

	var req *domain.MessageRequest

	err := s.tx.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		var err error
		req, err = s.repo.GetRequest(ctx, tx, requestID)
		if err != nil {
			return err
		}

		if err := req.CanResolve(actingUser); err != nil {
			return err
		}

		now := time.Now().UTC()
		ok, err := s.repo.UpdateRequestStatus(ctx, tx, requestID, domain.RequestAccepted, now)
		if err != nil {
			return fmt.Errorf("update request status: %w", err)
		}
		if !ok {
			return domain.ErrInvalidState
		}

		conn, err := domain.NewConnection(uuid.NewString(), req.SenderID, req.ReceiverID, now)
		if err != nil {
			return err
		}
		if err := s.repo.InsertConnection(ctx, tx, conn); err != nil {
			return fmt.Errorf("insert connection: %w", err)
		}

		req.Status = domain.RequestAccepted
		req.ResolvedAt = &now

		return s.insertRequestOutbox(ctx, tx, req, event.NoticeRequestAccepted, "REQUEST_ACCEPTED")
	})
	if err != nil {
		return nil, err
	}

	s.notifyUsers(event.Notification{
		Kind:      event.NoticeRequestAccepted,
		ActorID:   actingUser,
		RequestID: req.ID,
	}, req.SenderID, req.ReceiverID)

	s.log.Info("request accepted",
		zap.String("request_id", req.ID),
		zap.String("sender_id", req.SenderID),
		zap.String("receiver_id", req.ReceiverID),
	)
	return req, nil
}

// RejectRequest transitions a pending request to rejected. Terminal for this
// request only: the sender may attempt a fresh request later.
func (s *Service) RejectRequest(
	ctx context.Context,
	requestID, actingUser string,
) (*domain.MessageRequest, error) {

	var req *domain.MessageRequest

	err := s.tx.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		var err error
		req, err = s.repo.GetRequest(ctx, tx, requestID)
		if err != nil {
			return err
		}

		if err := req.CanResolve(actingUser); err != nil {
			return err
		}

		now := time.Now().UTC()
		ok, err := s.repo.UpdateRequestStatus(ctx, tx, requestID, domain.RequestRejected, now)
		if err != nil {
			return fmt.Errorf("update request status: %w", err)
		}
		if !ok {
			return domain.ErrInvalidState
		}

		req.Status = domain.RequestRejected
		req.ResolvedAt = &now

		return s.insertRequestOutbox(ctx, tx, req, event.NoticeRequestRejected, "REQUEST_REJECTED")
	})
	if err != nil {
		return nil, err
	}

	s.notifyUsers(event.Notification{
		Kind:      event.NoticeRequestRejected,
		ActorID:   actingUser,
		RequestID: req.ID,
	}, req.SenderID)

	s.log.Info("request rejected", zap.String("request_id", req.ID))
	return req, nil
}

func (s *Service) insertRequestOutbox(
	ctx context.Context,
	tx *sql.Tx,
	req *domain.MessageRequest,
	kind event.NotificationKind,
	eventType string,
) error {
	env, err := event.NewNotification(event.Notification{
		ID:        uuid.NewString(),
		Kind:      kind,
		ActorID:   req.ReceiverID,
		RequestID: req.ID,
	}, time.Now().UTC())
	if err != nil {
		return err
	}
	payload, err := marshalEnvelope(env)
	if err != nil {
		return err
	}
	if err := s.repo.InsertOutbox(ctx, tx, "request", req.ID, eventType, payload); err != nil {
		return fmt.Errorf("insert outbox: %w", err)
	}
	return nil
}

// ListIncomingRequests returns the pending requests awaiting actingUser.
func (s *Service) ListIncomingRequests(
	ctx context.Context,
	userID string,
) ([]*domain.MessageRequest, error) {
	return s.repo.ListPendingRequests(ctx, userID)
}
