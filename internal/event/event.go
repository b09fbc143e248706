// Package event defines the tagged-union wire schema for the realtime bus.
// Every event is an Envelope carrying exactly one concrete payload shape per
// type, validated at the bus boundary so handlers never branch on loose maps.
package event

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/introlink/messaging/internal/domain"
)

type Type string

const (
	TypeMessageReceived Type = "message_received"
	TypeMessageDeleted  Type = "message_deleted"
	TypeTyping          Type = "typing"
	TypeStopTyping      Type = "stop_typing"
	TypeNotification    Type = "notification"
)

var ErrUnknownType = errors.New("unknown event type")

type Envelope struct {
	Type       Type            `json:"type"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
}

type MessageReceived struct {
	Message domain.Message `json:"message"`
}

type MessageDeleted struct {
	ConversationID string `json:"conversation_id"`
	MessageID      string `json:"message_id"`
}

// Typing is ephemeral: never persisted, coalesced by the client.
type Typing struct {
	ConversationID string `json:"conversation_id"`
	UserID         string `json:"user_id"`
}

type NotificationKind string

const (
	NoticeRequestCreated  NotificationKind = "request_created"
	NoticeRequestAccepted NotificationKind = "request_accepted"
	NoticeRequestRejected NotificationKind = "request_rejected"
	NoticeSystem          NotificationKind = "system"
)

type Notification struct {
	ID             string           `json:"id"`
	Kind           NotificationKind `json:"kind"`
	ActorID        string           `json:"actor_id,omitempty"`
	RequestID      string           `json:"request_id,omitempty"`
	ConversationID string           `json:"conversation_id,omitempty"`
	Text           string           `json:"text,omitempty"`
}

func newEnvelope(t Type, now time.Time, payload any) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s payload: %w", t, err)
	}
	return Envelope{Type: t, OccurredAt: now, Payload: raw}, nil
}

func NewMessageReceived(msg *domain.Message) (Envelope, error) {
	return newEnvelope(TypeMessageReceived, msg.SentAt, MessageReceived{Message: *msg})
}

func NewMessageDeleted(conversationID, messageID string, now time.Time) (Envelope, error) {
	return newEnvelope(TypeMessageDeleted, now, MessageDeleted{
		ConversationID: conversationID,
		MessageID:      messageID,
	})
}

func NewTyping(conversationID, userID string, stop bool, now time.Time) (Envelope, error) {
	t := TypeTyping
	if stop {
		t = TypeStopTyping
	}
	return newEnvelope(t, now, Typing{ConversationID: conversationID, UserID: userID})
}

func NewNotification(n Notification, now time.Time) (Envelope, error) {
	return newEnvelope(TypeNotification, now, n)
}

// Decode validates the envelope and returns its concrete payload:
// MessageReceived, MessageDeleted, Typing or Notification.
func Decode(env Envelope) (any, error) {
	switch env.Type {
	case TypeMessageReceived:
		var p MessageReceived
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return nil, fmt.Errorf("decode %s: %w", env.Type, err)
		}
		if p.Message.ID == "" || p.Message.ConversationID == "" {
			return nil, fmt.Errorf("decode %s: missing message identity", env.Type)
		}
		return p, nil

	case TypeMessageDeleted:
		var p MessageDeleted
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return nil, fmt.Errorf("decode %s: %w", env.Type, err)
		}
		if p.ConversationID == "" || p.MessageID == "" {
			return nil, fmt.Errorf("decode %s: missing ids", env.Type)
		}
		return p, nil

	case TypeTyping, TypeStopTyping:
		var p Typing
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return nil, fmt.Errorf("decode %s: %w", env.Type, err)
		}
		if p.ConversationID == "" || p.UserID == "" {
			return nil, fmt.Errorf("decode %s: missing ids", env.Type)
		}
		return p, nil

	case TypeNotification:
		var p Notification
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return nil, fmt.Errorf("decode %s: %w", env.Type, err)
		}
		if p.Kind == "" {
			return nil, fmt.Errorf("decode %s: missing kind", env.Type)
		}
		return p, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, env.Type)
	}
}
