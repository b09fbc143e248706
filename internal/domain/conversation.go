package domain

import "time"

type Participant struct {
	UserID      string `json:"user_id"`
	UnreadCount int    `json:"unread_count"`
}

// Conversation Invariants:
// 1. Exactly one Conversation per unordered participant pair (unique PairKey).
// 2. Created lazily: on first contact attempt, or on first open between
//    already-connected users.
// 3. LastMessage is a denormalized pointer to the newest non-deleted message.
type Conversation struct {
	ID           string
	PairKey      string
	Participants map[string]Participant
	LastMessage  *Message
	CreatedAt    time.Time
}

func NewConversation(id, userA, userB string, now time.Time) (*Conversation, error) {
	if id == "" || userA == "" || userB == "" || userA == userB {
		return nil, ErrInvalidInput
	}
	return &Conversation{
		ID:      id,
		PairKey: PairKey(userA, userB),
		Participants: map[string]Participant{
			userA: {UserID: userA},
			userB: {UserID: userB},
		},
		CreatedAt: now,
	}, nil
}

func (c *Conversation) CanSend(userID string) error {
	if _, ok := c.Participants[userID]; !ok {
		return ErrNotParticipant
	}
	return nil
}

// OtherParticipant returns the peer of userID in a two-party conversation.
func (c *Conversation) OtherParticipant(userID string) string {
	for id := range c.Participants {
		if id != userID {
			return id
		}
	}
	return ""
}
