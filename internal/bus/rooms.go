package bus

import "sync"

// Rooms is the conversation-room membership set: which live sessions have
// that chat window open. Join is idempotent so a rejoin after reconnect can
// never cause duplicate delivery to the same session.
type Rooms struct {
	mu      sync.RWMutex
	members map[string]map[string]*Session // conversationID -> sessionID -> session
	joined  map[string]map[string]struct{} // sessionID -> conversationIDs
}

func NewRooms() *Rooms {
	return &Rooms{
		members: make(map[string]map[string]*Session),
		joined:  make(map[string]map[string]struct{}),
	}
}

func (r *Rooms) Join(conversationID string, s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.members[conversationID] == nil {
		r.members[conversationID] = make(map[string]*Session)
	}
	r.members[conversationID][s.ID] = s

	if r.joined[s.ID] == nil {
		r.joined[s.ID] = make(map[string]struct{})
	}
	r.joined[s.ID][conversationID] = struct{}{}
}

func (r *Rooms) Leave(conversationID string, s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.leaveLocked(conversationID, s.ID)
}

// DropSession clears every room membership for a closing session.
func (r *Rooms) DropSession(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for conversationID := range r.joined[s.ID] {
		r.leaveLocked(conversationID, s.ID)
	}
	delete(r.joined, s.ID)
}

func (r *Rooms) leaveLocked(conversationID, sessionID string) {
	if members, ok := r.members[conversationID]; ok {
		delete(members, sessionID)
		if len(members) == 0 {
			delete(r.members, conversationID)
		}
	}
	if convs, ok := r.joined[sessionID]; ok {
		delete(convs, conversationID)
	}
}

func (r *Rooms) Members(conversationID string) []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*Session
	for _, s := range r.members[conversationID] {
		result = append(result, s)
	}
	return result
}

// Joined reports whether the session currently has the room open.
func (r *Rooms) Joined(conversationID string, s *Session) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.joined[s.ID][conversationID]
	return ok
}
