package application

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/introlink/messaging/internal/domain"
	"github.com/introlink/messaging/internal/event"
)

// memRepo is an in-memory Repository with the same conflict semantics as the
// postgres implementation: unique pair keys, conditional status transitions,
// first-writer-wins idempotency rows.
type memRepo struct {
	mu sync.Mutex

	requests       map[string]*domain.MessageRequest
	connections    map[string]*domain.Connection
	conversations  map[string]*domain.Conversation
	sequences      map[string]int64
	messages       map[string]*domain.Message
	idempotency    map[string][]byte
	idempotencySet map[string]bool
	outbox         []outboxRow
}

type outboxRow struct {
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

func newMemRepo() *memRepo {
	return &memRepo{
		requests:       make(map[string]*domain.MessageRequest),
		connections:    make(map[string]*domain.Connection),
		conversations:  make(map[string]*domain.Conversation),
		sequences:      make(map[string]int64),
		messages:       make(map[string]*domain.Message),
		idempotency:    make(map[string][]byte),
		idempotencySet: make(map[string]bool),
	}
}

func (m *memRepo) InsertRequest(_ context.Context, _ *sql.Tx, req *domain.MessageRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *req
	m.requests[req.ID] = &cp
	return nil
}

func (m *memRepo) GetRequest(_ context.Context, _ *sql.Tx, requestID string) (*domain.MessageRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	req, ok := m.requests[requestID]
	if !ok {
		return nil, domain.ErrRequestNotFound
	}
	cp := *req
	return &cp, nil
}

func (m *memRepo) FindPendingRequest(_ context.Context, _ *sql.Tx, senderID, receiverID string) (*domain.MessageRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, req := range m.requests {
		if req.SenderID == senderID && req.ReceiverID == receiverID && req.Status == domain.RequestPending {
			cp := *req
			return &cp, nil
		}
	}
	return nil, domain.ErrRequestNotFound
}

func (m *memRepo) LatestRequest(_ context.Context, _ *sql.Tx, senderID, receiverID string) (*domain.MessageRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest *domain.MessageRequest
	for _, req := range m.requests {
		if req.SenderID != senderID || req.ReceiverID != receiverID {
			continue
		}
		if latest == nil || req.CreatedAt.After(latest.CreatedAt) {
			latest = req
		}
	}
	if latest == nil {
		return nil, domain.ErrRequestNotFound
	}
	cp := *latest
	return &cp, nil
}

func (m *memRepo) ListPendingRequests(_ context.Context, receiverID string) ([]*domain.MessageRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.MessageRequest
	for _, req := range m.requests {
		if req.ReceiverID == receiverID && req.Status == domain.RequestPending {
			cp := *req
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *memRepo) UpdateRequestStatus(_ context.Context, _ *sql.Tx, requestID string, to domain.RequestStatus, resolvedAt time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	req, ok := m.requests[requestID]
	if !ok || req.Status != domain.RequestPending {
		return false, nil
	}
	req.Status = to
	at := resolvedAt
	req.ResolvedAt = &at
	return true, nil
}

func (m *memRepo) InsertConnection(_ context.Context, _ *sql.Tx, conn *domain.Connection) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.connections[conn.PairKey]; exists {
		return nil
	}
	cp := *conn
	m.connections[conn.PairKey] = &cp
	return nil
}

func (m *memRepo) HasConnection(_ context.Context, _ *sql.Tx, userA, userB string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.connections[domain.PairKey(userA, userB)]
	return ok, nil
}

func (m *memRepo) InsertConversation(_ context.Context, _ *sql.Tx, conv *domain.Conversation) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.conversations {
		if existing.PairKey == conv.PairKey {
			return false, nil
		}
	}
	m.conversations[conv.ID] = conv
	return true, nil
}

func (m *memRepo) InitSequence(_ context.Context, _ *sql.Tx, conversationID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sequences[conversationID] = 0
	return nil
}

func (m *memRepo) GetConversation(_ context.Context, _ *sql.Tx, conversationID string) (*domain.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	conv, ok := m.conversations[conversationID]
	if !ok {
		return nil, domain.ErrConversationNotFound
	}
	return conv, nil
}

func (m *memRepo) GetConversationByPairKey(_ context.Context, _ *sql.Tx, pairKey string) (*domain.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, conv := range m.conversations {
		if conv.PairKey == pairKey {
			return conv, nil
		}
	}
	return nil, domain.ErrConversationNotFound
}

func (m *memRepo) ListConversations(_ context.Context, userID string) ([]*domain.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Conversation
	for _, conv := range m.conversations {
		if _, ok := conv.Participants[userID]; ok {
			out = append(out, conv)
		}
	}
	return out, nil
}

func (m *memRepo) NextSequence(_ context.Context, _ *sql.Tx, conversationID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sequences[conversationID]++
	return m.sequences[conversationID], nil
}

func (m *memRepo) SetLastMessage(_ context.Context, _ *sql.Tx, conversationID, messageID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	conv, ok := m.conversations[conversationID]
	if !ok {
		return domain.ErrConversationNotFound
	}
	conv.LastMessage = m.messages[messageID]
	return nil
}

func (m *memRepo) IncrementUnread(_ context.Context, _ *sql.Tx, conversationID, exceptUserID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	conv, ok := m.conversations[conversationID]
	if !ok {
		return domain.ErrConversationNotFound
	}
	for id, p := range conv.Participants {
		if id != exceptUserID {
			p.UnreadCount++
			conv.Participants[id] = p
		}
	}
	return nil
}

func (m *memRepo) ResetUnread(_ context.Context, _ *sql.Tx, conversationID, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	conv, ok := m.conversations[conversationID]
	if !ok {
		return domain.ErrConversationNotFound
	}
	p := conv.Participants[userID]
	p.UnreadCount = 0
	conv.Participants[userID] = p
	return nil
}

func (m *memRepo) UnreadCounts(_ context.Context, userID string) (map[string]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]int)
	for id, conv := range m.conversations {
		if p, ok := conv.Participants[userID]; ok && p.UnreadCount > 0 {
			out[id] = p.UnreadCount
		}
	}
	return out, nil
}

func (m *memRepo) InsertMessage(_ context.Context, _ *sql.Tx, msg *domain.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *msg
	m.messages[msg.ID] = &cp
	return nil
}

func (m *memRepo) GetMessageForUpdate(_ context.Context, _ *sql.Tx, messageID string) (*domain.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg, ok := m.messages[messageID]
	if !ok {
		return nil, domain.ErrMessageNotFound
	}
	cp := *msg
	return &cp, nil
}

func (m *memRepo) FetchMessages(_ context.Context, conversationID string, afterSequence int64, limit int) ([]*domain.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Message
	for _, msg := range m.messages {
		if msg.ConversationID != conversationID || msg.DeletedAt != nil || msg.Sequence <= afterSequence {
			continue
		}
		cp := *msg
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Sequence < out[j].Sequence })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memRepo) MarkMessageDeleted(_ context.Context, _ *sql.Tx, messageID string, deletedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg, ok := m.messages[messageID]
	if !ok {
		return domain.ErrMessageNotFound
	}
	at := deletedAt
	msg.DeletedAt = &at
	return nil
}

func idemKey(key, userID, conversationID string) string {
	return key + "|" + userID + "|" + conversationID
}

func (m *memRepo) TryInsertIdempotency(_ context.Context, _ *sql.Tx, key, userID, conversationID string, _ time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := idemKey(key, userID, conversationID)
	if m.idempotencySet[k] {
		return false, nil
	}
	m.idempotencySet[k] = true
	return true, nil
}

func (m *memRepo) GetIdempotencyForUpdate(_ context.Context, _ *sql.Tx, key, userID, conversationID string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.idempotency[idemKey(key, userID, conversationID)], nil
}

func (m *memRepo) UpdateIdempotencyResponse(_ context.Context, _ *sql.Tx, key, userID, conversationID string, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.idempotency[idemKey(key, userID, conversationID)] = payload
	return nil
}

func (m *memRepo) InsertOutbox(_ context.Context, _ *sql.Tx, aggregateType, aggregateID, eventType string, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outbox = append(m.outbox, outboxRow{
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		EventType:     eventType,
		Payload:       payload,
	})
	return nil
}

func (m *memRepo) outboxTypes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.outbox))
	for _, row := range m.outbox {
		out = append(out, row.EventType)
	}
	return out
}

// nopTx runs the closure directly. The memRepo ignores tx handles, so the
// commit boundary in tests is simply "the closure returned nil".
type nopTx struct{}

func (nopTx) WithTx(ctx context.Context, fn func(ctx context.Context, tx *sql.Tx) error) error {
	return fn(ctx, nil)
}

type publishedFrame struct {
	Scope    string
	TargetID string
	Envelope event.Envelope
}

// recordingBus captures publishes so tests can assert on broadcast behavior.
type recordingBus struct {
	mu     sync.Mutex
	frames []publishedFrame
}

func (b *recordingBus) PublishRoom(conversationID string, env event.Envelope) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.frames = append(b.frames, publishedFrame{Scope: "room", TargetID: conversationID, Envelope: env})
}

func (b *recordingBus) PublishUser(userID string, env event.Envelope) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.frames = append(b.frames, publishedFrame{Scope: "user", TargetID: userID, Envelope: env})
}

func (b *recordingBus) roomFrames(conversationID string) []publishedFrame {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []publishedFrame
	for _, f := range b.frames {
		if f.Scope == "room" && f.TargetID == conversationID {
			out = append(out, f)
		}
	}
	return out
}

func (b *recordingBus) userFrames(userID string) []publishedFrame {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []publishedFrame
	for _, f := range b.frames {
		if f.Scope == "user" && f.TargetID == userID {
			out = append(out, f)
		}
	}
	return out
}

type fixture struct {
	repo *memRepo
	bus  *recordingBus
	svc  *Service
}

func newFixture() *fixture {
	repo := newMemRepo()
	bus := &recordingBus{}
	return &fixture{
		repo: repo,
		bus:  bus,
		svc:  New(repo, nopTx{}, bus, zap.NewNop()),
	}
}

// connect wires two users as an already-accepted pair.
func (f *fixture) connect(userA, userB string) {
	conn, _ := domain.NewConnection("conn-"+userA+"-"+userB, userA, userB, time.Now().UTC())
	_ = f.repo.InsertConnection(context.Background(), nil, conn)
}
