package models

import "time"

type NotificationType string

const (
	NotificationTypeOrderCompleted NotificationType = "ORDER_COMPLETED"
	NotificationTypeOrderExpired   NotificationType = "ORDER_EXPIRED"
)

// Notification is the audit record the recorder writes for each terminal
// order event. Write-once; never updated or deleted.
type Notification struct {
	ID        int64            `json:"id"`
	OrderID   int64            `json:"order_id"`
	Type      NotificationType `json:"type"`
	Message   string           `json:"message"`
	CreatedAt time.Time        `json:"created_at"`
}
