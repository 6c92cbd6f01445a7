package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type EventKind string

const (
	EventKindOrderCreated   EventKind = "ORDER_CREATED"
	EventKindOrderCompleted EventKind = "ORDER_COMPLETED"
	EventKindOrderExpired   EventKind = "ORDER_EXPIRED"
)

// All three event kinds share one topic. Consumers read the envelope first
// and switch on Kind; anything they do not recognize is skipped.
type EventEnvelope struct {
	EventID string    `json:"eventId"`
	Kind    EventKind `json:"kind"`
}

type OrderCreatedEvent struct {
	EventID   string          `json:"eventId"`
	Kind      EventKind       `json:"kind"`
	OrderID   int64           `json:"orderId"`
	UserID    int64           `json:"userId"`
	Total     decimal.Decimal `json:"total"`
	Timestamp time.Time       `json:"timestamp"`
}

type OrderCompletedEvent struct {
	EventID   string    `json:"eventId"`
	Kind      EventKind `json:"kind"`
	OrderID   int64     `json:"orderId"`
	Timestamp time.Time `json:"timestamp"`
}

type OrderExpiredEvent struct {
	EventID   string    `json:"eventId"`
	Kind      EventKind `json:"kind"`
	OrderID   int64     `json:"orderId"`
	Timestamp time.Time `json:"timestamp"`
}

func NewOrderCreatedEvent(order *Order) OrderCreatedEvent {
	return OrderCreatedEvent{
		EventID:   uuid.NewString(),
		Kind:      EventKindOrderCreated,
		OrderID:   order.ID,
		UserID:    order.UserID,
		Total:     order.Total,
		Timestamp: time.Now().UTC(),
	}
}

func NewOrderCompletedEvent(orderID int64) OrderCompletedEvent {
	return OrderCompletedEvent{
		EventID:   uuid.NewString(),
		Kind:      EventKindOrderCompleted,
		OrderID:   orderID,
		Timestamp: time.Now().UTC(),
	}
}

func NewOrderExpiredEvent(orderID int64) OrderExpiredEvent {
	return OrderExpiredEvent{
		EventID:   uuid.NewString(),
		Kind:      EventKindOrderExpired,
		OrderID:   orderID,
		Timestamp: time.Now().UTC(),
	}
}

// Ordering keys route all events for one order and kind to the same
// partition.
func (e OrderCreatedEvent) Key() string {
	return fmt.Sprintf("order-created-%d", e.OrderID)
}

func (e OrderCompletedEvent) Key() string {
	return fmt.Sprintf("order-completed-%d", e.OrderID)
}

func (e OrderExpiredEvent) Key() string {
	return fmt.Sprintf("order-expired-%d", e.OrderID)
}
