// Package outbox forwards queued events to Kafka. Together with the
// publisher's transactional inserts this gives at-least-once delivery for
// every committed state change.
package outbox

import (
	"context"
	"database/sql"
	"math"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"order-lifecycle-svc/kafka"
	"order-lifecycle-svc/middleware"
	"order-lifecycle-svc/store"
)

type Relay struct {
	db           *sql.DB
	producer     sarama.SyncProducer
	pollInterval time.Duration
	batchSize    int
	logger       *zap.Logger
}

func NewRelay(db *sql.DB, producer sarama.SyncProducer, pollInterval time.Duration, batchSize int, logger *zap.Logger) *Relay {
	return &Relay{
		db:           db,
		producer:     producer,
		pollInterval: pollInterval,
		batchSize:    batchSize,
		logger:       logger,
	}
}

// Start polls the outbox until the context is cancelled.
func (r *Relay) Start(ctx context.Context) {
	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	r.logger.Info("Outbox relay started",
		zap.Duration("poll_interval", r.pollInterval),
		zap.Int("batch_size", r.batchSize),
	)

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Outbox relay shutting down")
			return
		case <-ticker.C:
			r.processPending(ctx)
		}
	}
}

func (r *Relay) processPending(ctx context.Context) (sent, failed int) {
	messages, err := store.FetchPendingOutbox(ctx, r.db, r.batchSize)
	if err != nil {
		r.logger.Error("Failed to fetch pending outbox messages", zap.Error(err))
		return 0, 0
	}

	if len(messages) == 0 {
		return 0, 0
	}

	r.logger.Info("Relaying outbox messages", zap.Int("count", len(messages)))

	for _, msg := range messages {
		if err := kafka.SendMessage(ctx, r.producer, msg.Topic, msg.Key, msg.Payload, r.logger); err != nil {
			failed++
			retryCount := msg.RetryCount + 1
			backoff := time.Duration(math.Pow(2, float64(retryCount))) * time.Second
			nextRetryAt := time.Now().UTC().Add(backoff)

			r.logger.Warn("Failed to publish outbox message, will retry",
				zap.Int64("outbox_id", msg.ID),
				zap.String("event_id", msg.EventID),
				zap.Int("retry_count", retryCount),
				zap.Time("next_retry", nextRetryAt),
				zap.Error(err),
			)
			middleware.RecordOutboxRelay("failed")

			if err := store.MarkOutboxFailed(ctx, r.db, msg.ID, retryCount, err.Error(), nextRetryAt); err != nil {
				r.logger.Error("Failed to record outbox retry state", zap.Int64("outbox_id", msg.ID), zap.Error(err))
			}
			continue
		}

		sent++
		middleware.RecordOutboxRelay("sent")
		if err := store.MarkOutboxSent(ctx, r.db, msg.ID); err != nil {
			// The message will be fetched and sent again next tick;
			// consumers already tolerate duplicate delivery.
			r.logger.Error("Failed to mark outbox message sent", zap.Int64("outbox_id", msg.ID), zap.Error(err))
		}
	}

	return sent, failed
}
