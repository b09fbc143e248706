package application

import (
	"context"
	"errors"
	"fmt"

	"github.com/introlink/messaging/internal/domain"
)

// CheckStatus returns the effective relationship from userA's point of view.
// Accepted dominates; then an unresolved request in either direction; then the
// most recent rejection of userA's own attempt; otherwise none.
func (s *Service) CheckStatus(
	ctx context.Context,
	userA, userB string,
) (domain.RelationshipStatus, error) {

	if userA == "" || userB == "" || userA == userB {
		return "", domain.ErrInvalidInput
	}

	connected, err := s.repo.HasConnection(ctx, nil, userA, userB)
	if err != nil {
		return "", fmt.Errorf("check connection: %w", err)
	}
	if connected {
		return domain.RelationAccepted, nil
	}

	if _, err := s.repo.FindPendingRequest(ctx, nil, userA, userB); err == nil {
		return domain.RelationPendingOutgoing, nil
	} else if !errors.Is(err, domain.ErrRequestNotFound) {
		return "", err
	}

	if _, err := s.repo.FindPendingRequest(ctx, nil, userB, userA); err == nil {
		return domain.RelationPendingIncoming, nil
	} else if !errors.Is(err, domain.ErrRequestNotFound) {
		return "", err
	}

	latest, err := s.repo.LatestRequest(ctx, nil, userA, userB)
	if err == nil && latest.Status == domain.RequestRejected {
		return domain.RelationRejected, nil
	}
	if err != nil && !errors.Is(err, domain.ErrRequestNotFound) {
		return "", err
	}

	return domain.RelationNone, nil
}
