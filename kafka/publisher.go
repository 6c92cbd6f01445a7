package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"order-lifecycle-svc/middleware"
	"order-lifecycle-svc/models"
	"order-lifecycle-svc/store"
)

// EventPublisher turns lifecycle transitions into outbox rows. The rows are
// written through the caller's Querier so the event commits or rolls back
// together with the state change; the relay forwards them to Kafka later.
// Callers never observe delivery failures.
type EventPublisher struct {
	topic  string
	logger *zap.Logger
}

func NewEventPublisher(topic string, logger *zap.Logger) *EventPublisher {
	return &EventPublisher{
		topic:  topic,
		logger: logger,
	}
}

func (p *EventPublisher) PublishCreated(ctx context.Context, q store.Querier, order *models.Order) error {
	event := models.NewOrderCreatedEvent(order)
	return p.enqueue(ctx, q, event.EventID, event.Kind, event.Key(), event)
}

func (p *EventPublisher) PublishCompleted(ctx context.Context, q store.Querier, orderID int64) error {
	event := models.NewOrderCompletedEvent(orderID)
	return p.enqueue(ctx, q, event.EventID, event.Kind, event.Key(), event)
}

func (p *EventPublisher) PublishExpired(ctx context.Context, q store.Querier, orderID int64) error {
	event := models.NewOrderExpiredEvent(orderID)
	return p.enqueue(ctx, q, event.EventID, event.Kind, event.Key(), event)
}

func (p *EventPublisher) enqueue(ctx context.Context, q store.Querier, eventID string, kind models.EventKind, key string, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", kind, err)
	}

	if err := store.InsertOutbox(ctx, q, eventID, p.topic, key, payload); err != nil {
		return err
	}

	middleware.RecordEventPublished(string(kind))
	p.logger.Info("Event queued for publish",
		zap.String("event_id", eventID),
		zap.String("kind", string(kind)),
		zap.String("key", key),
	)
	return nil
}
