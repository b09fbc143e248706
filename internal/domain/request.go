package domain

import "time"

type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestAccepted RequestStatus = "accepted"
	RequestRejected RequestStatus = "rejected"
)

// MessageRequest Invariants:
// 1. At most one non-rejected request per ordered (sender, receiver) pair.
// 2. Status mutates only pending -> accepted or pending -> rejected, and
//    only by the receiver. Terminal afterward.
// 3. A rejected request does not block a later attempt from the same sender.
type MessageRequest struct {
	ID             string
	SenderID       string
	ReceiverID     string
	FirstMessageID string
	Status         RequestStatus
	CreatedAt      time.Time
	ResolvedAt     *time.Time
}

func NewMessageRequest(id, senderID, receiverID, firstMessageID string, now time.Time) (*MessageRequest, error) {
	if id == "" || senderID == "" || receiverID == "" || firstMessageID == "" {
		return nil, ErrInvalidInput
	}
	if senderID == receiverID {
		return nil, ErrInvalidInput
	}
	return &MessageRequest{
		ID:             id,
		SenderID:       senderID,
		ReceiverID:     receiverID,
		FirstMessageID: firstMessageID,
		Status:         RequestPending,
		CreatedAt:      now,
	}, nil
}

// CanResolve reports whether actingUser may accept or reject the request.
func (r *MessageRequest) CanResolve(actingUser string) error {
	if actingUser != r.ReceiverID {
		return ErrNotAuthorized
	}
	if r.Status != RequestPending {
		return ErrInvalidState
	}
	return nil
}
