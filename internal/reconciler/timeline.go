// Package reconciler keeps one canonical, duplicate-free, ordered message
// list per open conversation. It merges three sources of the same truth:
// optimistic local sends, the server's POST response, and bus-delivered
// echoes. Merging is always by message id; the visible list contains each
// distinct id exactly once, sorted by (sentAt, sequence, id).
package reconciler

import (
	"sort"
	"sync"

	"github.com/introlink/messaging/internal/domain"
	"github.com/introlink/messaging/internal/event"
)

type Timeline struct {
	mu             sync.Mutex
	conversationID string
	confirmed      map[string]*domain.Message // authoritative id -> message
	pending        map[string]*domain.Message // local placeholder id -> message
}

func NewTimeline(conversationID string) *Timeline {
	return &Timeline{
		conversationID: conversationID,
		confirmed:      make(map[string]*domain.Message),
		pending:        make(map[string]*domain.Message),
	}
}

// AppendLocal shows an optimistic placeholder while the POST is in flight.
// localID is client-generated and never collides with server ids.
func (t *Timeline) AppendLocal(localID string, msg domain.Message) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pending[localID] = &msg
}

// Confirm replaces the placeholder with the server's authoritative message.
// If the bus echo already delivered the same id, the placeholder is simply
// dropped: insertion would duplicate it.
func (t *Timeline) Confirm(localID string, msg domain.Message) {
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.pending, localID)
	if _, ok := t.confirmed[msg.ID]; ok {
		return
	}
	t.confirmed[msg.ID] = &msg
}

// Abort drops a placeholder whose send failed; the caller keeps the draft.
func (t *Timeline) Abort(localID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.pending, localID)
}

// Apply merges a bus-delivered event into the timeline. Events for other
// conversations and duplicate ids are ignored; deletes of unknown ids are
// no-ops to tolerate out-of-order delivery.
func (t *Timeline) Apply(env event.Envelope) error {
	decoded, err := event.Decode(env)
	if err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	switch p := decoded.(type) {
	case event.MessageReceived:
		if p.Message.ConversationID != t.conversationID {
			return nil
		}
		if _, ok := t.confirmed[p.Message.ID]; ok {
			return nil
		}
		msg := p.Message
		t.confirmed[msg.ID] = &msg

	case event.MessageDeleted:
		if p.ConversationID != t.conversationID {
			return nil
		}
		delete(t.confirmed, p.MessageID)
	}

	return nil
}

// Messages is the visible history: confirmed messages in order, then
// still-pending placeholders in local send order.
func (t *Timeline) Messages() []domain.Message {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]domain.Message, 0, len(t.confirmed)+len(t.pending))
	for _, m := range t.confirmed {
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].SentAt.Equal(out[j].SentAt) {
			return out[i].SentAt.Before(out[j].SentAt)
		}
		if out[i].Sequence != out[j].Sequence {
			return out[i].Sequence < out[j].Sequence
		}
		return out[i].ID < out[j].ID
	})

	placeholders := make([]domain.Message, 0, len(t.pending))
	for _, m := range t.pending {
		placeholders = append(placeholders, *m)
	}
	sort.Slice(placeholders, func(i, j int) bool {
		return placeholders[i].SentAt.Before(placeholders[j].SentAt)
	})

	return append(out, placeholders...)
}

// Len counts distinct visible entries.
func (t *Timeline) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.confirmed) + len(t.pending)
}
