// Package reaper sweeps orders stuck in PROCESSING past the expiry timeout
// into EXPIRED and queues the matching expiry events.
package reaper

import (
	"context"
	"database/sql"
	"time"

	"go.uber.org/zap"

	"order-lifecycle-svc/middleware"
	"order-lifecycle-svc/models"
	"order-lifecycle-svc/store"
)

// ExpiryPublisher queues the expiry event inside the transaction that
// commits the EXPIRED transition.
type ExpiryPublisher interface {
	PublishExpired(ctx context.Context, q store.Querier, orderID int64) error
}

type Reaper struct {
	db        *sql.DB
	publisher ExpiryPublisher
	interval  time.Duration
	expiry    time.Duration
	logger    *zap.Logger
}

func NewReaper(db *sql.DB, publisher ExpiryPublisher, interval, expiry time.Duration, logger *zap.Logger) *Reaper {
	return &Reaper{
		db:        db,
		publisher: publisher,
		interval:  interval,
		expiry:    expiry,
		logger:    logger,
	}
}

// Start runs the sweep on a fixed interval until the context is cancelled.
// The sweep runs inline in this goroutine, so ticks never overlap.
func (r *Reaper) Start(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info("Expiration reaper started",
		zap.Duration("interval", r.interval),
		zap.Duration("expiry", r.expiry),
	)

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Expiration reaper shutting down")
			return
		case <-ticker.C:
			r.Sweep(ctx)
		}
	}
}

// Sweep expires every PROCESSING order whose last update is older than the
// expiry timeout. Each order is its own transaction, so one failure neither
// rolls back nor blocks the rest of the batch.
func (r *Reaper) Sweep(ctx context.Context) (expired, failed int) {
	cutoff := time.Now().UTC().Add(-r.expiry)

	orders, err := store.FindByStatusAndUpdatedBefore(ctx, r.db, models.OrderStatusProcessing, cutoff)
	if err != nil {
		r.logger.Error("Failed to query stale orders", zap.Error(err))
		return 0, 0
	}

	if len(orders) == 0 {
		r.logger.Debug("No orders to expire")
		return 0, 0
	}

	r.logger.Info("Found orders to expire", zap.Int("count", len(orders)))

	for _, order := range orders {
		err := store.WithTx(ctx, r.db, func(q store.Querier) error {
			moved, err := store.UpdateOrderStatusIf(ctx, q, order.ID, models.OrderStatusProcessing, models.OrderStatusExpired)
			if err != nil {
				return err
			}
			if !moved {
				// Completed (or already expired) between the
				// query and this transaction; nothing to do.
				return nil
			}
			if err := r.publisher.PublishExpired(ctx, q, order.ID); err != nil {
				return err
			}

			expired++
			middleware.RecordOrderExpired()
			r.logger.Info("Order expired",
				zap.Int64("order_id", order.ID),
				zap.Time("last_updated", order.UpdatedAt),
			)
			return nil
		})
		if err != nil {
			failed++
			r.logger.Error("Failed to expire order",
				zap.Int64("order_id", order.ID),
				zap.Error(err),
			)
		}
	}

	if failed > 0 {
		r.logger.Warn("Expiration sweep finished with failures",
			zap.Int("expired", expired),
			zap.Int("failed", failed),
		)
	} else {
		r.logger.Info("Expiration sweep finished", zap.Int("expired", expired))
	}

	return expired, failed
}
