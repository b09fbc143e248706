package application

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/introlink/messaging/internal/event"
)

func marshalEnvelope(env event.Envelope) ([]byte, error) {
	return json.Marshal(env)
}

// notifyUsers publishes a notification event to each user channel.
// Best-effort: a missed event is corrected by the fan-out poller.
func (s *Service) notifyUsers(n event.Notification, userIDs ...string) {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	env, err := event.NewNotification(n, time.Now().UTC())
	if err != nil {
		s.log.Error("marshal notification event", zap.Error(err))
		return
	}
	for _, userID := range userIDs {
		s.bus.PublishUser(userID, env)
	}
}
