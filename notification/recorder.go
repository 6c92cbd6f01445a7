// Package notification records an audit row for every completion and expiry
// event. It subscribes to the whole topic under its own consumer group and
// never reads or writes order state.
package notification

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/IBM/sarama"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"order-lifecycle-svc/kafka"
	"order-lifecycle-svc/middleware"
	"order-lifecycle-svc/models"
	"order-lifecycle-svc/store"
)

type Recorder struct {
	db      *sql.DB
	groupID string
	logger  *zap.Logger
}

func NewRecorder(db *sql.DB, groupID string, logger *zap.Logger) *Recorder {
	return &Recorder{
		db:      db,
		groupID: groupID,
		logger:  logger,
	}
}

func (r *Recorder) Setup(sarama.ConsumerGroupSession) error { return nil }

func (r *Recorder) Cleanup(sarama.ConsumerGroupSession) error { return nil }

// ConsumeClaim handles each message independently; one malformed or
// mis-persisted event never blocks the ones behind it.
func (r *Recorder) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for message := range claim.Messages() {
		r.handleMessage(session.Context(), message)
		session.MarkMessage(message, "")
	}
	return nil
}

func (r *Recorder) handleMessage(ctx context.Context, message *sarama.ConsumerMessage) {
	propagator := otel.GetTextMapPropagator()
	ctx = propagator.Extract(ctx, kafka.ConsumerHeaderCarrier(message.Headers))

	ctx, span := otel.Tracer("notification-recorder").Start(ctx, "RecordNotification")
	defer span.End()

	var envelope models.EventEnvelope
	if err := json.Unmarshal(message.Value, &envelope); err != nil {
		span.RecordError(err)
		r.logger.Error("Failed to unmarshal event envelope", zap.Error(err))
		middleware.RecordEventSkipped(r.groupID)
		return
	}

	span.SetAttributes(attribute.String("event.kind", string(envelope.Kind)))

	switch envelope.Kind {
	case models.EventKindOrderCompleted:
		var event models.OrderCompletedEvent
		if err := json.Unmarshal(message.Value, &event); err != nil {
			span.RecordError(err)
			r.logger.Error("Failed to unmarshal OrderCompletedEvent", zap.Error(err))
			return
		}
		middleware.RecordEventConsumed(r.groupID, string(envelope.Kind))
		r.recordCompleted(ctx, event)

	case models.EventKindOrderExpired:
		var event models.OrderExpiredEvent
		if err := json.Unmarshal(message.Value, &event); err != nil {
			span.RecordError(err)
			r.logger.Error("Failed to unmarshal OrderExpiredEvent", zap.Error(err))
			return
		}
		middleware.RecordEventConsumed(r.groupID, string(envelope.Kind))
		r.recordExpired(ctx, event)

	default:
		// Creation events and anything unrecognized are not this
		// component's business.
		middleware.RecordEventSkipped(r.groupID)
		r.logger.Debug("Ignoring event", zap.String("kind", string(envelope.Kind)))
	}
}

func (r *Recorder) recordCompleted(ctx context.Context, event models.OrderCompletedEvent) {
	traceID := middleware.GetTraceID(ctx)
	r.logger.Info("Received OrderCompletedEvent",
		zap.String("trace_id", traceID),
		zap.Int64("order_id", event.OrderID),
	)

	message := fmt.Sprintf("Order %d has been completed successfully!", event.OrderID)
	r.persist(ctx, models.Notification{
		OrderID: event.OrderID,
		Type:    models.NotificationTypeOrderCompleted,
		Message: message,
	})
}

func (r *Recorder) recordExpired(ctx context.Context, event models.OrderExpiredEvent) {
	traceID := middleware.GetTraceID(ctx)
	r.logger.Info("Received OrderExpiredEvent",
		zap.String("trace_id", traceID),
		zap.Int64("order_id", event.OrderID),
	)

	message := fmt.Sprintf("Order %d has expired after 10 minutes in PROCESSING state", event.OrderID)
	r.persist(ctx, models.Notification{
		OrderID: event.OrderID,
		Type:    models.NotificationTypeOrderExpired,
		Message: message,
	})
}

func (r *Recorder) persist(ctx context.Context, n models.Notification) {
	inserted, err := store.InsertNotification(ctx, r.db, &n)
	if err != nil {
		r.logger.Error("Failed to save notification",
			zap.Int64("order_id", n.OrderID),
			zap.String("type", string(n.Type)),
			zap.Error(err),
		)
		return
	}
	if !inserted {
		r.logger.Info("Notification already recorded, skipping duplicate",
			zap.Int64("order_id", n.OrderID),
			zap.String("type", string(n.Type)),
		)
		return
	}

	middleware.RecordNotificationRecorded(string(n.Type))
	r.logger.Info("Notification saved",
		zap.Int64("order_id", n.OrderID),
		zap.String("type", string(n.Type)),
		zap.String("message", n.Message),
	)
}
