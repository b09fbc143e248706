package fanout

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Fetcher supplies the authoritative unread counts. In process this is the
// application service; a remote client would hit GET /api/conversations.
type Fetcher interface {
	UnreadSnapshot(ctx context.Context, userID string) (map[string]int, error)
}

// Poller is the safety net for missed bus events: at a fixed interval it
// refetches the authoritative counts and overwrites the tracker's view.
type Poller struct {
	Tracker  *Tracker
	Fetcher  Fetcher
	UserID   string
	Interval time.Duration
	Log      *zap.Logger
}

func (p *Poller) Run(ctx context.Context) {
	interval := p.Interval
	if interval <= 0 {
		interval = 30 * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.poll(ctx)
		}
	}
}

func (p *Poller) poll(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	unread, err := p.Fetcher.UnreadSnapshot(ctx, p.UserID)
	if err != nil {
		if p.Log != nil {
			p.Log.Warn("fanout poll failed", zap.String("user_id", p.UserID), zap.Error(err))
		}
		return
	}
	p.Tracker.ApplyAuthoritative(unread)
}
