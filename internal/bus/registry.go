package bus

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/introlink/messaging/internal/observability"
)

// Registry is the user-channel membership set: every live session for an
// account, across devices. All mutation goes through Add/Remove/CloseAll
// under one mutex so concurrent connect/disconnect can't lose updates.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]map[string]*Session // userID -> deviceID -> session
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]map[string]*Session),
	}
}

func (r *Registry) Add(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sessions[s.UserID] == nil {
		r.sessions[s.UserID] = make(map[string]*Session)
	}

	// A reconnect for the same (user, device) replaces the old session.
	if old, ok := r.sessions[s.UserID][s.DeviceID]; ok {
		observability.GetLogger(context.Background()).Info("registry: replacing session",
			zap.String("user_id", s.UserID),
			zap.String("device_id", s.DeviceID),
			zap.String("old_session", old.ID),
			zap.String("new_session", s.ID),
		)
		old.CloseWithReason(4000, "session_replaced")
	}

	r.sessions[s.UserID][s.DeviceID] = s
}

func (r *Registry) Remove(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if devices, ok := r.sessions[s.UserID]; ok {
		// A late Remove from a replaced session must not evict its successor.
		if current, ok := devices[s.DeviceID]; ok && current.ID == s.ID {
			delete(devices, s.DeviceID)
			if len(devices) == 0 {
				delete(r.sessions, s.UserID)
			}
		}
	}
}

func (r *Registry) UserSessions(userID string) []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*Session
	for _, s := range r.sessions[userID] {
		result = append(result, s)
	}
	return result
}

func (r *Registry) CloseAll() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, devices := range r.sessions {
		for _, s := range devices {
			s.Close()
		}
	}
}
