package bus

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/introlink/messaging/internal/event"
	"github.com/introlink/messaging/internal/observability"
)

// Access gates room joins on conversation membership.
type Access interface {
	VerifyParticipant(ctx context.Context, conversationID, userID string) error
}

// TokenVerifier resolves a bearer token to a user id. Token issuance belongs
// to the auth collaborator; the bus only verifies.
type TokenVerifier func(token string) (string, error)

type Handler struct {
	registry    *Registry
	rooms       *Rooms
	bus         *Bus
	access      Access
	verify      TokenVerifier
	serviceName string
}

func NewHandler(registry *Registry, rooms *Rooms, b *Bus, access Access, verify TokenVerifier, serviceName string) *Handler {
	return &Handler{
		registry:    registry,
		rooms:       rooms,
		bus:         b,
		access:      access,
		verify:      verify,
		serviceName: serviceName,
	}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	log := observability.GetLogger(r.Context())

	userID, err := h.verify(r.URL.Query().Get("token"))
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	deviceID := r.URL.Query().Get("device_id")
	if deviceID == "" {
		http.Error(w, "missing device_id", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error("upgrade error", zap.Error(err))
		return
	}

	session := NewSession(uuid.NewString(), userID, deviceID, conn)
	session.Start()

	log.Info("connected", zap.String("user_id", userID), zap.String("device_id", deviceID))
	observability.WebSocketConnectionsActive.WithLabelValues(h.serviceName).Inc()

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	go h.readLoop(session)
}

func (h *Handler) readLoop(s *Session) {
	log := observability.GetLogger(context.Background())
	ready := false

	defer func() {
		h.rooms.DropSession(s)
		h.registry.Remove(s)
		s.Close()
		log.Info("disconnected", zap.String("user_id", s.UserID), zap.String("device_id", s.DeviceID))
		observability.WebSocketConnectionsActive.WithLabelValues(h.serviceName).Dec()
	}()

	for {
		_, raw, err := s.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error("read loop error",
					zap.String("user_id", s.UserID),
					zap.Error(err),
				)
			}
			return
		}

		frame, err := event.ParseClientFrame(raw)
		if err != nil {
			log.Warn("dropping malformed client frame",
				zap.String("user_id", s.UserID),
				zap.Error(err),
			)
			continue
		}

		// setup must come first: it binds the session to the user channel.
		if frame.Type == event.FrameSetup {
			if !ready {
				h.registry.Add(s)
				ready = true
			}
			continue
		}
		if !ready {
			log.Warn("frame before setup", zap.String("user_id", s.UserID), zap.String("type", frame.Type))
			continue
		}

		switch frame.Type {
		case event.FrameJoinChat:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			err := h.access.VerifyParticipant(ctx, frame.ConversationID, s.UserID)
			cancel()
			if err != nil {
				log.Warn("join refused",
					zap.String("user_id", s.UserID),
					zap.String("conversation_id", frame.ConversationID),
					zap.Error(err),
				)
				continue
			}
			h.rooms.Join(frame.ConversationID, s)

		case event.FrameLeaveChat:
			h.rooms.Leave(frame.ConversationID, s)

		case event.FrameTyping, event.FrameStopTyping:
			// Ephemeral: republished to the room, never persisted. Only
			// sessions that actually have the room open may emit it.
			if !h.rooms.Joined(frame.ConversationID, s) {
				continue
			}
			env, err := event.NewTyping(frame.ConversationID, s.UserID, frame.Type == event.FrameStopTyping, time.Now().UTC())
			if err != nil {
				continue
			}
			h.bus.PublishRoom(frame.ConversationID, env)
		}
	}
}
