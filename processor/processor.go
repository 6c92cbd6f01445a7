// Package processor consumes creation events and drives orders through the
// simulated payment: PENDING -> PROCESSING -> COMPLETED on success, or left
// in PROCESSING for the reaper on failure.
package processor

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/IBM/sarama"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"order-lifecycle-svc/kafka"
	"order-lifecycle-svc/middleware"
	"order-lifecycle-svc/models"
	"order-lifecycle-svc/store"
)

// CompletionPublisher queues the completion event inside the transaction
// that commits the COMPLETED transition.
type CompletionPublisher interface {
	PublishCompleted(ctx context.Context, q store.Querier, orderID int64) error
}

type claimOutcome int

const (
	claimAccepted claimOutcome = iota
	claimDuplicate
	claimNotFound
	claimOutOfState
)

type Processor struct {
	db        *sql.DB
	gateway   PaymentGateway
	publisher CompletionPublisher
	groupID   string
	logger    *zap.Logger
}

func NewProcessor(db *sql.DB, gateway PaymentGateway, publisher CompletionPublisher, groupID string, logger *zap.Logger) *Processor {
	return &Processor{
		db:        db,
		gateway:   gateway,
		publisher: publisher,
		groupID:   groupID,
		logger:    logger,
	}
}

func (p *Processor) Setup(sarama.ConsumerGroupSession) error { return nil }

func (p *Processor) Cleanup(sarama.ConsumerGroupSession) error { return nil }

// ConsumeClaim runs once per claimed partition, so a slow payment only
// stalls its own partition. No message error ever stops the loop.
func (p *Processor) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for message := range claim.Messages() {
		p.handleMessage(session.Context(), message)
		session.MarkMessage(message, "")
	}
	return nil
}

func (p *Processor) handleMessage(ctx context.Context, message *sarama.ConsumerMessage) {
	propagator := otel.GetTextMapPropagator()
	ctx = propagator.Extract(ctx, kafka.ConsumerHeaderCarrier(message.Headers))

	ctx, span := otel.Tracer("order-processor").Start(ctx, "ProcessOrderCreated")
	defer span.End()

	var envelope models.EventEnvelope
	if err := json.Unmarshal(message.Value, &envelope); err != nil {
		span.RecordError(err)
		p.logger.Error("Failed to unmarshal event envelope", zap.Error(err))
		middleware.RecordEventSkipped(p.groupID)
		return
	}

	if envelope.Kind != models.EventKindOrderCreated {
		middleware.RecordEventSkipped(p.groupID)
		p.logger.Debug("Ignoring event",
			zap.String("kind", string(envelope.Kind)),
			zap.String("event_id", envelope.EventID),
		)
		return
	}

	var event models.OrderCreatedEvent
	if err := json.Unmarshal(message.Value, &event); err != nil {
		span.RecordError(err)
		p.logger.Error("Failed to unmarshal OrderCreatedEvent", zap.Error(err))
		return
	}

	middleware.RecordEventConsumed(p.groupID, string(event.Kind))
	span.SetAttributes(
		attribute.Int64("order.id", event.OrderID),
		attribute.Int64("user.id", event.UserID),
	)

	traceID := middleware.GetTraceID(ctx)
	p.logger.Info("Received OrderCreatedEvent",
		zap.String("trace_id", traceID),
		zap.Int64("order_id", event.OrderID),
		zap.String("event_id", event.EventID),
	)

	order, outcome, err := p.claimOrder(ctx, event)
	if err != nil {
		span.RecordError(err)
		p.logger.Error("Failed to claim order for processing",
			zap.Int64("order_id", event.OrderID),
			zap.Error(err),
		)
		return
	}

	switch outcome {
	case claimDuplicate:
		p.logger.Info("Skipping already-processed event",
			zap.String("event_id", event.EventID),
			zap.Int64("order_id", event.OrderID),
		)
		return
	case claimNotFound:
		p.logger.Warn("Order not found, dropping event",
			zap.Int64("order_id", event.OrderID),
			zap.String("event_id", event.EventID),
		)
		return
	case claimOutOfState:
		p.logger.Info("Order no longer PENDING, dropping event",
			zap.Int64("order_id", event.OrderID),
		)
		return
	}

	p.logger.Info("Order status updated to PROCESSING", zap.Int64("order_id", order.ID))

	success, err := p.gateway.Charge(ctx, order)
	if err != nil {
		// Cancellation or gateway failure: the order stays in
		// PROCESSING and the reaper will pick it up.
		span.RecordError(err)
		middleware.RecordPaymentProcessed("aborted")
		p.logger.Error("Payment simulation aborted",
			zap.Int64("order_id", order.ID),
			zap.Error(err),
		)
		return
	}

	span.SetAttributes(attribute.Bool("payment.success", success))

	if !success {
		middleware.RecordPaymentProcessed("failed")
		p.logger.Info("Payment failed, order remains in PROCESSING", zap.Int64("order_id", order.ID))
		return
	}

	if err := p.completeOrder(ctx, order.ID); err != nil {
		span.RecordError(err)
		p.logger.Error("Failed to complete order",
			zap.Int64("order_id", order.ID),
			zap.Error(err),
		)
		return
	}

	middleware.RecordPaymentProcessed("success")
	p.logger.Info("Payment successful, order status updated to COMPLETED",
		zap.String("trace_id", traceID),
		zap.Int64("order_id", order.ID),
	)
}

// claimOrder claims the event id and flips the order to PROCESSING in one
// transaction, so a redelivered event never re-runs the payment. A missing
// order still commits the claim: the event is dropped permanently instead
// of spinning on redelivery.
func (p *Processor) claimOrder(ctx context.Context, event models.OrderCreatedEvent) (*models.Order, claimOutcome, error) {
	var (
		order   *models.Order
		outcome = claimAccepted
	)

	err := store.WithTx(ctx, p.db, func(q store.Querier) error {
		fresh, err := store.MarkEventProcessed(ctx, q, event.EventID, event.OrderID, event.Kind)
		if err != nil {
			return err
		}
		if !fresh {
			outcome = claimDuplicate
			return nil
		}

		o, err := store.GetOrder(ctx, q, event.OrderID)
		if errors.Is(err, store.ErrOrderNotFound) {
			outcome = claimNotFound
			return nil
		}
		if err != nil {
			return err
		}

		moved, err := store.UpdateOrderStatusIf(ctx, q, o.ID, models.OrderStatusPending, models.OrderStatusProcessing)
		if err != nil {
			return err
		}
		if !moved {
			outcome = claimOutOfState
			return nil
		}

		o.Status = models.OrderStatusProcessing
		order = o
		return nil
	})
	if err != nil {
		return nil, claimAccepted, err
	}

	return order, outcome, nil
}

// completeOrder commits the COMPLETED transition and queues the completion
// event atomically. The CAS guards against the reaper having expired the
// order while the payment was in flight.
func (p *Processor) completeOrder(ctx context.Context, orderID int64) error {
	return store.WithTx(ctx, p.db, func(q store.Querier) error {
		moved, err := store.UpdateOrderStatusIf(ctx, q, orderID, models.OrderStatusProcessing, models.OrderStatusCompleted)
		if err != nil {
			return err
		}
		if !moved {
			p.logger.Info("Order no longer PROCESSING, not completing", zap.Int64("order_id", orderID))
			return nil
		}
		return p.publisher.PublishCompleted(ctx, q, orderID)
	})
}
