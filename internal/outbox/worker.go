// Package outbox drains committed events to the external notification
// collaborator. Rows are written in the same transaction as the state they
// describe, so nothing is ever announced that did not persist.
package outbox

import (
	"context"
	"database/sql"
	"time"

	"go.uber.org/zap"

	"github.com/introlink/messaging/internal/kafka"
	"github.com/introlink/messaging/internal/observability"
)

type Worker struct {
	DB          *sql.DB
	Producer    *kafka.Producer
	Topic       string
	ServiceName string
	BatchSize   int
	PollDelay   time.Duration
	Log         *zap.Logger
}

func (w *Worker) Start(ctx context.Context) {
	w.Log.Info("outbox worker started")
	for {
		select {
		case <-ctx.Done():
			w.Log.Info("outbox worker stopping")
			return
		default:
			if err := w.processBatch(ctx); err != nil {
				w.Log.Error("outbox worker error", zap.Error(err))
				time.Sleep(time.Second)
			}
		}
	}
}

func (w *Worker) processBatch(ctx context.Context) error {
	tx, err := w.DB.BeginTx(ctx, &sql.TxOptions{
		Isolation: sql.LevelReadCommitted,
	})
	if err != nil {
		return err
	}

	rows, err := tx.QueryContext(ctx, `
		SELECT id, aggregate_id, event_type, payload, created_at
		FROM outbox_events
		WHERE processed_at IS NULL
		ORDER BY id
		FOR UPDATE SKIP LOCKED
		LIMIT $1
	`, w.BatchSize)

	if err != nil {
		tx.Rollback()
		return err
	}
	defer rows.Close()

	type outboxEvent struct {
		id          int64
		aggregateID string
		eventType   string
		payload     []byte
		createdAt   time.Time
	}

	var events []outboxEvent
	for rows.Next() {
		var e outboxEvent
		if err := rows.Scan(&e.id, &e.aggregateID, &e.eventType, &e.payload, &e.createdAt); err != nil {
			tx.Rollback()
			return err
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		tx.Rollback()
		return err
	}

	if len(events) == 0 {
		tx.Rollback()
		select {
		case <-ctx.Done():
		case <-time.After(w.PollDelay):
		}
		return nil
	}

	for _, e := range events {
		if err := w.Producer.Publish(ctx, w.Topic, e.aggregateID, e.payload); err != nil {
			tx.Rollback()
			return err
		}

		observability.OutboxPublishLag.WithLabelValues(w.ServiceName).
			Observe(time.Since(e.createdAt).Seconds())

		if _, err := tx.ExecContext(ctx, `
			UPDATE outbox_events
			SET processed_at = NOW()
			WHERE id = $1
		`, e.id); err != nil {
			tx.Rollback()
			return err
		}
	}

	return tx.Commit()
}
