// Package worker runs the background side of the system: it folds queued
// attendance events into the tally and expires QR codes on a schedule.
package worker

import (
	"context"
	"log"

	"github.com/robfig/cron/v3"

	"classattend/internal/metrics"
	"classattend/internal/queue"
)

// Handler applies one queued message.
type Handler interface {
	Handle(ctx context.Context, msg queue.Message) error
}

// Expirer deactivates every active QR code.
type Expirer interface {
	ExpireAll(ctx context.Context) (int64, error)
}

// Run consumes q until ctx is done or the queue closes. A failing message is
// logged and dropped; the ledger stays the source of truth.
func Run(ctx context.Context, q queue.Queue, h Handler) error {
	messages, err := q.Consume(ctx)
	if err != nil {
		return err
	}
	log.Println("worker started, waiting for messages...")
	for msg := range messages {
		if err := h.Handle(ctx, msg); err != nil {
			log.Printf("event %s (%s) failed: %v", msg.ID, msg.Type, err)
			metrics.EventsProcessed.WithLabelValues(msg.Type, "failed").Inc()
			continue
		}
		metrics.EventsProcessed.WithLabelValues(msg.Type, "processed").Inc()
	}
	log.Println("worker stopped")
	return nil
}

// ScheduleExpiry registers the QR expiry job on c under spec.
func ScheduleExpiry(ctx context.Context, c *cron.Cron, spec string, codes Expirer) (cron.EntryID, error) {
	return c.AddFunc(spec, func() {
		if _, err := codes.ExpireAll(ctx); err != nil {
			log.Printf("qr expiry failed: %v", err)
		}
	})
}
