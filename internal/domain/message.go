package domain

import "time"

const MaxMessageSize = 5000

type Attachment struct {
	URL      string `json:"url"`
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
	Type     string `json:"type"`
}

// Message Invariants:
// 1. Ordering: (SentAt, Sequence) is strictly increasing per conversation;
//    Sequence breaks SentAt ties and never repeats.
// 2. Immutability: standard fields never change. Only DeletedAt can be set.
// 3. A message carries text, attachments, or both. Never neither.
type Message struct {
	ID             string       `json:"id"`
	ConversationID string       `json:"conversation_id"`
	SenderID       string       `json:"sender_id"`
	Text           string       `json:"text,omitempty"`
	Attachments    []Attachment `json:"attachments,omitempty"`
	Sequence       int64        `json:"sequence"`
	SentAt         time.Time    `json:"sent_at"`
	DeletedAt      *time.Time   `json:"deleted_at,omitempty"`
}

func NewMessage(
	id string,
	conversationID string,
	senderID string,
	text string,
	attachments []Attachment,
	sequence int64,
	now time.Time,
) (*Message, error) {

	if id == "" || conversationID == "" || senderID == "" {
		return nil, ErrInvalidInput
	}

	if sequence <= 0 {
		return nil, ErrInvalidInput
	}

	if text == "" && len(attachments) == 0 {
		return nil, ErrEmptyMessage
	}

	if len(text) > MaxMessageSize {
		return nil, ErrMessageTooLarge
	}

	return &Message{
		ID:             id,
		ConversationID: conversationID,
		SenderID:       senderID,
		Text:           text,
		Attachments:    attachments,
		Sequence:       sequence,
		SentAt:         now,
	}, nil
}
