package application

import (
	"go.uber.org/zap"

	"github.com/introlink/messaging/internal/event"
	"github.com/introlink/messaging/internal/repository"
	"github.com/introlink/messaging/internal/tx"
)

// Publisher is the realtime bus surface the application layer needs.
// Publishing is best-effort and must never be attempted before the
// corresponding state is committed.
type Publisher interface {
	PublishRoom(conversationID string, env event.Envelope)
	PublishUser(userID string, env event.Envelope)
}

type Service struct {
	repo repository.Repository
	tx   tx.Transactor
	bus  Publisher
	log  *zap.Logger
}

func New(repo repository.Repository, transactor tx.Transactor, bus Publisher, log *zap.Logger) *Service {
	return &Service{repo: repo, tx: transactor, bus: bus, log: log}
}
