package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/introlink/messaging/internal/domain"
)

type Repository interface {
	// Message requests
	InsertRequest(ctx context.Context, tx *sql.Tx, req *domain.MessageRequest) error
	GetRequest(ctx context.Context, tx *sql.Tx, requestID string) (*domain.MessageRequest, error)
	FindPendingRequest(ctx context.Context, tx *sql.Tx, senderID, receiverID string) (*domain.MessageRequest, error)
	LatestRequest(ctx context.Context, tx *sql.Tx, senderID, receiverID string) (*domain.MessageRequest, error)
	ListPendingRequests(ctx context.Context, receiverID string) ([]*domain.MessageRequest, error)
	// UpdateRequestStatus is a conditional transition keyed on the current
	// status being pending. Returns false when another caller won the race.
	UpdateRequestStatus(ctx context.Context, tx *sql.Tx, requestID string, to domain.RequestStatus, resolvedAt time.Time) (bool, error)

	// Connections
	InsertConnection(ctx context.Context, tx *sql.Tx, conn *domain.Connection) error
	HasConnection(ctx context.Context, tx *sql.Tx, userA, userB string) (bool, error)

	// Conversations
	InsertConversation(ctx context.Context, tx *sql.Tx, conv *domain.Conversation) (bool, error)
	InitSequence(ctx context.Context, tx *sql.Tx, conversationID string) error
	GetConversation(ctx context.Context, tx *sql.Tx, conversationID string) (*domain.Conversation, error)
	GetConversationByPairKey(ctx context.Context, tx *sql.Tx, pairKey string) (*domain.Conversation, error)
	ListConversations(ctx context.Context, userID string) ([]*domain.Conversation, error)
	NextSequence(ctx context.Context, tx *sql.Tx, conversationID string) (int64, error)
	SetLastMessage(ctx context.Context, tx *sql.Tx, conversationID, messageID string) error
	IncrementUnread(ctx context.Context, tx *sql.Tx, conversationID, exceptUserID string) error
	ResetUnread(ctx context.Context, tx *sql.Tx, conversationID, userID string) error
	UnreadCounts(ctx context.Context, userID string) (map[string]int, error)

	// Messages
	InsertMessage(ctx context.Context, tx *sql.Tx, msg *domain.Message) error
	GetMessageForUpdate(ctx context.Context, tx *sql.Tx, messageID string) (*domain.Message, error)
	FetchMessages(ctx context.Context, conversationID string, afterSequence int64, limit int) ([]*domain.Message, error)
	MarkMessageDeleted(ctx context.Context, tx *sql.Tx, messageID string, deletedAt time.Time) error

	// Idempotency
	TryInsertIdempotency(ctx context.Context, tx *sql.Tx, key, userID, conversationID string, expiresAt time.Time) (bool, error)
	GetIdempotencyForUpdate(ctx context.Context, tx *sql.Tx, key, userID, conversationID string) ([]byte, error)
	UpdateIdempotencyResponse(ctx context.Context, tx *sql.Tx, key, userID, conversationID string, payload []byte) error

	// Outbox
	InsertOutbox(ctx context.Context, tx *sql.Tx, aggregateType, aggregateID, eventType string, payload []byte) error
}
