// Package fanout turns user-channel bus events into unread badges and alerts
// for everything outside the currently open conversation.
package fanout

import (
	"sync"

	"github.com/introlink/messaging/internal/event"
)

// AlertFunc receives user-facing alerts. May be nil.
type AlertFunc func(event.Notification)

type Tracker struct {
	mu      sync.Mutex
	selfID  string
	active  string // conversation currently on screen, "" when none
	unread  map[string]int
	notices int
	alert   AlertFunc
}

func NewTracker(selfID string, alert AlertFunc) *Tracker {
	return &Tracker{
		selfID: selfID,
		unread: make(map[string]int),
		alert:  alert,
	}
}

// SetActive marks the conversation whose window is open; its messages are
// read as they arrive and never counted.
func (t *Tracker) SetActive(conversationID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.active = conversationID
	if conversationID != "" {
		delete(t.unread, conversationID)
	}
}

// HandleEvent consumes one user-channel envelope.
func (t *Tracker) HandleEvent(env event.Envelope) error {
	decoded, err := event.Decode(env)
	if err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	switch p := decoded.(type) {
	case event.MessageReceived:
		if p.Message.SenderID == t.selfID {
			return nil
		}
		if p.Message.ConversationID == t.active {
			return nil
		}
		t.unread[p.Message.ConversationID]++
		t.emitAlert(event.Notification{
			Kind:           event.NoticeSystem,
			ActorID:        p.Message.SenderID,
			ConversationID: p.Message.ConversationID,
			Text:           "new message",
		})

	case event.Notification:
		t.notices++
		t.emitAlert(p)
	}

	return nil
}

// MarkAsRead acknowledges one notice, clamped at zero.
func (t *Tracker) MarkAsRead(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.notices > 0 {
		t.notices--
	}
}

// ApplyAuthoritative replaces local counters with the store's truth. Called
// by the poller to correct drift after missed bus events.
func (t *Tracker) ApplyAuthoritative(unread map[string]int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.unread = make(map[string]int, len(unread))
	for conversationID, n := range unread {
		if conversationID == t.active || n <= 0 {
			continue
		}
		t.unread[conversationID] = n
	}
}

func (t *Tracker) Unread(conversationID string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.unread[conversationID]
}

func (t *Tracker) UnreadTotal() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	total := 0
	for _, n := range t.unread {
		total += n
	}
	return total
}

func (t *Tracker) Notices() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.notices
}

func (t *Tracker) emitAlert(n event.Notification) {
	if t.alert == nil {
		return
	}
	// Outside the lock would risk reordering; alerts must stay cheap.
	t.alert(n)
}
