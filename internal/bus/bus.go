package bus

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/introlink/messaging/internal/event"
	"github.com/introlink/messaging/internal/observability"
)

const (
	scopeRoom = "room"
	scopeUser = "user"
)

// frame is what travels over the redis bridge between instances: the
// envelope plus the scope it should be delivered to.
type frame struct {
	Scope    string         `json:"scope"`
	TargetID string         `json:"target_id"`
	Envelope event.Envelope `json:"envelope"`
}

// Bus fans events out to room members and user channels. Delivery is
// best-effort: a member joining after publish fetches history instead.
type Bus struct {
	registry    *Registry
	rooms       *Rooms
	router      *Router // nil when running single-instance
	serviceName string
	log         *zap.Logger
}

func New(registry *Registry, rooms *Rooms, router *Router, serviceName string, log *zap.Logger) *Bus {
	return &Bus{
		registry:    registry,
		rooms:       rooms,
		router:      router,
		serviceName: serviceName,
		log:         log,
	}
}

// Start subscribes to the redis bridge so frames published by peer instances
// reach locally connected sessions. No-op without a router.
func (b *Bus) Start(ctx context.Context) {
	if b.router == nil {
		return
	}
	b.router.Subscribe(ctx, func(raw []byte) {
		var f frame
		if err := json.Unmarshal(raw, &f); err != nil {
			b.log.Error("bus: bad bridge frame", zap.Error(err))
			return
		}
		if _, err := event.Decode(f.Envelope); err != nil {
			b.log.Error("bus: invalid bridged event", zap.Error(err))
			return
		}
		b.deliverLocal(f)
	})
}

func (b *Bus) PublishRoom(conversationID string, env event.Envelope) {
	b.publish(frame{Scope: scopeRoom, TargetID: conversationID, Envelope: env})
}

func (b *Bus) PublishUser(userID string, env event.Envelope) {
	b.publish(frame{Scope: scopeUser, TargetID: userID, Envelope: env})
}

func (b *Bus) publish(f frame) {
	observability.BusEventsPublished.WithLabelValues(
		b.serviceName, string(f.Envelope.Type), f.Scope,
	).Inc()

	b.deliverLocal(f)

	if b.router != nil {
		raw, err := json.Marshal(f)
		if err != nil {
			b.log.Error("bus: marshal bridge frame", zap.Error(err))
			return
		}
		if err := b.router.Publish(context.Background(), raw); err != nil {
			// Persistence already succeeded upstream; peers converge via refetch.
			b.log.Warn("bus: bridge publish failed", zap.Error(err))
		}
	}
}

func (b *Bus) deliverLocal(f frame) {
	raw, err := json.Marshal(f.Envelope)
	if err != nil {
		b.log.Error("bus: marshal envelope", zap.Error(err))
		return
	}

	var sessions []*Session
	switch f.Scope {
	case scopeRoom:
		sessions = b.rooms.Members(f.TargetID)
	case scopeUser:
		sessions = b.registry.UserSessions(f.TargetID)
	default:
		b.log.Error("bus: unknown frame scope", zap.String("scope", f.Scope))
		return
	}

	for _, s := range sessions {
		if !s.TrySend(raw) {
			observability.BusEventsDropped.WithLabelValues(b.serviceName).Inc()
		}
	}
}
