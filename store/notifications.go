package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"order-lifecycle-svc/models"
)

// InsertNotification persists an audit record. The (order_id, type) unique
// index turns duplicate deliveries of the same terminal event into no-ops;
// the bool reports whether a row was actually written.
func InsertNotification(ctx context.Context, q Querier, n *models.Notification) (bool, error) {
	err := q.QueryRowContext(ctx,
		"INSERT INTO notifications (order_id, type, message) VALUES ($1, $2, $3) ON CONFLICT (order_id, type) DO NOTHING RETURNING id, created_at",
		n.OrderID, n.Type, n.Message,
	).Scan(&n.ID, &n.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to insert notification for order %d: %w", n.OrderID, err)
	}
	return true, nil
}

func ListNotifications(ctx context.Context, q Querier) ([]models.Notification, error) {
	return queryNotifications(ctx, q,
		"SELECT id, order_id, type, message, created_at FROM notifications ORDER BY created_at DESC")
}

func ListNotificationsByOrder(ctx context.Context, q Querier, orderID int64) ([]models.Notification, error) {
	return queryNotifications(ctx, q,
		"SELECT id, order_id, type, message, created_at FROM notifications WHERE order_id = $1 ORDER BY created_at DESC",
		orderID)
}

func queryNotifications(ctx context.Context, q Querier, query string, args ...any) ([]models.Notification, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query notifications: %w", err)
	}
	defer rows.Close()

	var notifications []models.Notification
	for rows.Next() {
		var n models.Notification
		if err := rows.Scan(&n.ID, &n.OrderID, &n.Type, &n.Message, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		notifications = append(notifications, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating notifications: %w", err)
	}

	return notifications, nil
}
