package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/lib/pq"

	"github.com/introlink/messaging/internal/domain"
)

type Repository struct {
	DB *sql.DB
}

type queryable interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func (r *Repository) getter(tx *sql.Tx) queryable {
	if tx != nil {
		return tx
	}
	return r.DB
}

// ---- Message requests ----

func (r *Repository) InsertRequest(
	ctx context.Context,
	tx *sql.Tx,
	req *domain.MessageRequest,
) error {
	q := r.getter(tx)
	_, err := q.ExecContext(ctx, `
		INSERT INTO message_requests (
			id, sender_id, receiver_id, first_message_id, status, created_at
		)
		VALUES ($1,$2,$3,$4,$5,$6)
	`,
		req.ID,
		req.SenderID,
		req.ReceiverID,
		req.FirstMessageID,
		req.Status,
		req.CreatedAt,
	)
	return err
}

func scanRequest(row *sql.Row) (*domain.MessageRequest, error) {
	var req domain.MessageRequest
	err := row.Scan(
		&req.ID,
		&req.SenderID,
		&req.ReceiverID,
		&req.FirstMessageID,
		&req.Status,
		&req.CreatedAt,
		&req.ResolvedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrRequestNotFound
	}
	if err != nil {
		return nil, err
	}
	return &req, nil
}

const requestColumns = `id, sender_id, receiver_id, first_message_id, status, created_at, resolved_at`

func (r *Repository) GetRequest(
	ctx context.Context,
	tx *sql.Tx,
	requestID string,
) (*domain.MessageRequest, error) {
	q := r.getter(tx)
	return scanRequest(q.QueryRowContext(ctx, `
		SELECT `+requestColumns+`
		FROM message_requests
		WHERE id = $1
	`, requestID))
}

func (r *Repository) FindPendingRequest(
	ctx context.Context,
	tx *sql.Tx,
	senderID, receiverID string,
) (*domain.MessageRequest, error) {
	q := r.getter(tx)
	return scanRequest(q.QueryRowContext(ctx, `
		SELECT `+requestColumns+`
		FROM message_requests
		WHERE sender_id = $1 AND receiver_id = $2 AND status = 'pending'
	`, senderID, receiverID))
}

func (r *Repository) LatestRequest(
	ctx context.Context,
	tx *sql.Tx,
	senderID, receiverID string,
) (*domain.MessageRequest, error) {
	q := r.getter(tx)
	return scanRequest(q.QueryRowContext(ctx, `
		SELECT `+requestColumns+`
		FROM message_requests
		WHERE sender_id = $1 AND receiver_id = $2
		ORDER BY created_at DESC
		LIMIT 1
	`, senderID, receiverID))
}

func (r *Repository) ListPendingRequests(
	ctx context.Context,
	receiverID string,
) ([]*domain.MessageRequest, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT `+requestColumns+`
		FROM message_requests
		WHERE receiver_id = $1 AND status = 'pending'
		ORDER BY created_at DESC
	`, receiverID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var requests []*domain.MessageRequest
	for rows.Next() {
		var req domain.MessageRequest
		if err := rows.Scan(
			&req.ID,
			&req.SenderID,
			&req.ReceiverID,
			&req.FirstMessageID,
			&req.Status,
			&req.CreatedAt,
			&req.ResolvedAt,
		); err != nil {
			return nil, err
		}
		requests = append(requests, &req)
	}
	return requests, rows.Err()
}

// UpdateRequestStatus transitions a pending request. The WHERE clause on the
// current status serializes concurrent accept/reject: only the first caller
// sees an affected row.
func (r *Repository) UpdateRequestStatus(
	ctx context.Context,
	tx *sql.Tx,
	requestID string,
	to domain.RequestStatus,
	resolvedAt time.Time,
) (bool, error) {
	q := r.getter(tx)
	res, err := q.ExecContext(ctx, `
		UPDATE message_requests
		SET status = $2, resolved_at = $3
		WHERE id = $1 AND status = 'pending'
	`, requestID, to, resolvedAt)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// ---- Connections ----

func (r *Repository) InsertConnection(
	ctx context.Context,
	tx *sql.Tx,
	conn *domain.Connection,
) error {
	q := r.getter(tx)
	_, err := q.ExecContext(ctx, `
		INSERT INTO connections (id, pair_key, user_a, user_b, created_at)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (pair_key) DO NOTHING
	`,
		conn.ID,
		conn.PairKey,
		conn.UserA,
		conn.UserB,
		conn.CreatedAt,
	)
	return err
}

func (r *Repository) HasConnection(
	ctx context.Context,
	tx *sql.Tx,
	userA, userB string,
) (bool, error) {
	q := r.getter(tx)
	var exists bool
	err := q.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM connections WHERE pair_key = $1)
	`, domain.PairKey(userA, userB)).Scan(&exists)
	return exists, err
}

// ---- Conversations ----

func (r *Repository) InsertConversation(
	ctx context.Context,
	tx *sql.Tx,
	conv *domain.Conversation,
) (bool, error) {
	q := r.getter(tx)
	res, err := q.ExecContext(ctx, `
		INSERT INTO conversations (id, pair_key, created_at)
		VALUES ($1,$2,$3)
		ON CONFLICT (pair_key) DO NOTHING
	`, conv.ID, conv.PairKey, conv.CreatedAt)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, nil
	}

	for userID := range conv.Participants {
		if _, err := q.ExecContext(ctx, `
			INSERT INTO conversation_participants (conversation_id, user_id, unread_count)
			VALUES ($1, $2, 0)
		`, conv.ID, userID); err != nil {
			return false, err
		}
	}
	return true, nil
}

func (r *Repository) InitSequence(
	ctx context.Context,
	tx *sql.Tx,
	conversationID string,
) error {
	q := r.getter(tx)
	_, err := q.ExecContext(ctx, `
		INSERT INTO conversation_sequences (conversation_id, next_sequence)
		VALUES ($1, 0)
		ON CONFLICT (conversation_id) DO NOTHING
	`, conversationID)
	return err
}

func (r *Repository) loadConversation(
	ctx context.Context,
	q queryable,
	query string,
	arg string,
) (*domain.Conversation, error) {
	var (
		conv      domain.Conversation
		lastMsgID sql.NullString
	)
	err := q.QueryRowContext(ctx, query, arg).Scan(
		&conv.ID,
		&conv.PairKey,
		&conv.CreatedAt,
		&lastMsgID,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrConversationNotFound
	}
	if err != nil {
		return nil, err
	}

	rows, err := q.QueryContext(ctx, `
		SELECT user_id, unread_count
		FROM conversation_participants
		WHERE conversation_id = $1
	`, conv.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	conv.Participants = make(map[string]domain.Participant)
	for rows.Next() {
		var p domain.Participant
		if err := rows.Scan(&p.UserID, &p.UnreadCount); err != nil {
			return nil, err
		}
		conv.Participants[p.UserID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if lastMsgID.Valid {
		msg, err := r.getMessage(ctx, q, lastMsgID.String, false)
		if err != nil && !errors.Is(err, domain.ErrMessageNotFound) {
			return nil, err
		}
		conv.LastMessage = msg
	}
	return &conv, nil
}

const conversationColumns = `id, pair_key, created_at, last_message_id`

func (r *Repository) GetConversation(
	ctx context.Context,
	tx *sql.Tx,
	conversationID string,
) (*domain.Conversation, error) {
	return r.loadConversation(ctx, r.getter(tx), `
		SELECT `+conversationColumns+`
		FROM conversations
		WHERE id = $1
	`, conversationID)
}

func (r *Repository) GetConversationByPairKey(
	ctx context.Context,
	tx *sql.Tx,
	pairKey string,
) (*domain.Conversation, error) {
	return r.loadConversation(ctx, r.getter(tx), `
		SELECT `+conversationColumns+`
		FROM conversations
		WHERE pair_key = $1
	`, pairKey)
}

func (r *Repository) ListConversations(
	ctx context.Context,
	userID string,
) ([]*domain.Conversation, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT c.id
		FROM conversations c
		JOIN conversation_participants p ON p.conversation_id = c.id
		WHERE p.user_id = $1
		ORDER BY c.created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	conversations := make([]*domain.Conversation, 0, len(ids))
	for _, id := range ids {
		conv, err := r.GetConversation(ctx, nil, id)
		if err != nil {
			return nil, err
		}
		conversations = append(conversations, conv)
	}
	return conversations, nil
}

func (r *Repository) NextSequence(
	ctx context.Context,
	tx *sql.Tx,
	conversationID string,
) (int64, error) {
	var next int64
	q := r.getter(tx)
	err := q.QueryRowContext(ctx, `
		UPDATE conversation_sequences
		SET next_sequence = next_sequence + 1
		WHERE conversation_id = $1
		RETURNING next_sequence
	`, conversationID).Scan(&next)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, domain.ErrConversationNotFound
	}
	if err != nil {
		return 0, err
	}
	return next, nil
}

func (r *Repository) SetLastMessage(
	ctx context.Context,
	tx *sql.Tx,
	conversationID, messageID string,
) error {
	q := r.getter(tx)
	_, err := q.ExecContext(ctx, `
		UPDATE conversations SET last_message_id = $2 WHERE id = $1
	`, conversationID, messageID)
	return err
}

func (r *Repository) IncrementUnread(
	ctx context.Context,
	tx *sql.Tx,
	conversationID, exceptUserID string,
) error {
	q := r.getter(tx)
	_, err := q.ExecContext(ctx, `
		UPDATE conversation_participants
		SET unread_count = unread_count + 1
		WHERE conversation_id = $1 AND user_id <> $2
	`, conversationID, exceptUserID)
	return err
}

func (r *Repository) ResetUnread(
	ctx context.Context,
	tx *sql.Tx,
	conversationID, userID string,
) error {
	q := r.getter(tx)
	_, err := q.ExecContext(ctx, `
		UPDATE conversation_participants
		SET unread_count = 0
		WHERE conversation_id = $1 AND user_id = $2
	`, conversationID, userID)
	return err
}

func (r *Repository) UnreadCounts(
	ctx context.Context,
	userID string,
) (map[string]int, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT conversation_id, unread_count
		FROM conversation_participants
		WHERE user_id = $1 AND unread_count > 0
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var (
			convID string
			n      int
		)
		if err := rows.Scan(&convID, &n); err != nil {
			return nil, err
		}
		counts[convID] = n
	}
	return counts, rows.Err()
}

// ---- Messages ----

func (r *Repository) InsertMessage(
	ctx context.Context,
	tx *sql.Tx,
	msg *domain.Message,
) error {
	var attachments interface{}
	if len(msg.Attachments) > 0 {
		raw, err := json.Marshal(msg.Attachments)
		if err != nil {
			return err
		}
		attachments = raw
	}

	q := r.getter(tx)
	_, err := q.ExecContext(ctx, `
		INSERT INTO messages (
			id, conversation_id, sender_id,
			text, attachments, sequence, sent_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`,
		msg.ID,
		msg.ConversationID,
		msg.SenderID,
		msg.Text,
		attachments,
		msg.Sequence,
		msg.SentAt,
	)
	if err, ok := err.(*pq.Error); ok && err.Code.Name() == "unique_violation" {
		return domain.ErrInvalidInput
	}
	return err
}

const messageColumns = `id, conversation_id, sender_id, text, attachments, sequence, sent_at, deleted_at`

func (r *Repository) getMessage(
	ctx context.Context,
	q queryable,
	messageID string,
	forUpdate bool,
) (*domain.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	var (
		msg         domain.Message
		attachments []byte
	)
	err := q.QueryRowContext(ctx, query, messageID).Scan(
		&msg.ID,
		&msg.ConversationID,
		&msg.SenderID,
		&msg.Text,
		&attachments,
		&msg.Sequence,
		&msg.SentAt,
		&msg.DeletedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrMessageNotFound
	}
	if err != nil {
		return nil, err
	}
	if len(attachments) > 0 {
		if err := json.Unmarshal(attachments, &msg.Attachments); err != nil {
			return nil, err
		}
	}
	return &msg, nil
}

func (r *Repository) GetMessageForUpdate(
	ctx context.Context,
	tx *sql.Tx,
	messageID string,
) (*domain.Message, error) {
	return r.getMessage(ctx, r.getter(tx), messageID, tx != nil)
}

func (r *Repository) FetchMessages(
	ctx context.Context,
	conversationID string,
	afterSequence int64,
	limit int,
) ([]*domain.Message, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT `+messageColumns+`
		FROM messages
		WHERE conversation_id = $1
		  AND sequence > $2
		  AND deleted_at IS NULL
		ORDER BY sequence ASC
		LIMIT $3
	`, conversationID, afterSequence, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []*domain.Message
	for rows.Next() {
		var (
			msg         domain.Message
			attachments []byte
		)
		if err := rows.Scan(
			&msg.ID,
			&msg.ConversationID,
			&msg.SenderID,
			&msg.Text,
			&attachments,
			&msg.Sequence,
			&msg.SentAt,
			&msg.DeletedAt,
		); err != nil {
			return nil, err
		}
		if len(attachments) > 0 {
			if err := json.Unmarshal(attachments, &msg.Attachments); err != nil {
				return nil, err
			}
		}
		messages = append(messages, &msg)
	}
	return messages, rows.Err()
}

func (r *Repository) MarkMessageDeleted(
	ctx context.Context,
	tx *sql.Tx,
	messageID string,
	deletedAt time.Time,
) error {
	q := r.getter(tx)
	_, err := q.ExecContext(ctx, `
		UPDATE messages SET deleted_at = $2 WHERE id = $1
	`, messageID, deletedAt)
	return err
}

// ---- Idempotency ----

func (r *Repository) TryInsertIdempotency(
	ctx context.Context,
	tx *sql.Tx,
	key, userID, conversationID string,
	expiresAt time.Time,
) (bool, error) {
	q := r.getter(tx)
	res, err := q.ExecContext(ctx, `
		INSERT INTO idempotency_keys (key, user_id, conversation_id, expires_at)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (key, user_id, conversation_id) DO NOTHING
	`, key, userID, conversationID, expiresAt)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *Repository) GetIdempotencyForUpdate(
	ctx context.Context,
	tx *sql.Tx,
	key, userID, conversationID string,
) ([]byte, error) {
	q := r.getter(tx)
	var payload []byte
	err := q.QueryRowContext(ctx, `
		SELECT response
		FROM idempotency_keys
		WHERE key = $1 AND user_id = $2 AND conversation_id = $3
		FOR UPDATE
	`, key, userID, conversationID).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return payload, nil
}

func (r *Repository) UpdateIdempotencyResponse(
	ctx context.Context,
	tx *sql.Tx,
	key, userID, conversationID string,
	payload []byte,
) error {
	q := r.getter(tx)
	_, err := q.ExecContext(ctx, `
		UPDATE idempotency_keys
		SET response = $4
		WHERE key = $1 AND user_id = $2 AND conversation_id = $3
	`, key, userID, conversationID, payload)
	return err
}

// ---- Outbox ----

func (r *Repository) InsertOutbox(
	ctx context.Context,
	tx *sql.Tx,
	aggregateType, aggregateID, eventType string,
	payload []byte,
) error {
	q := r.getter(tx)
	_, err := q.ExecContext(ctx, `
		INSERT INTO outbox_events (aggregate_type, aggregate_id, event_type, payload)
		VALUES ($1,$2,$3,$4)
	`, aggregateType, aggregateID, eventType, payload)
	return err
}
