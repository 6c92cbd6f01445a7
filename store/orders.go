package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"order-lifecycle-svc/models"
)

// GetOrder loads an order and its items.
func GetOrder(ctx context.Context, q Querier, id int64) (*models.Order, error) {
	var order models.Order
	err := q.QueryRowContext(ctx,
		"SELECT id, user_id, status, total, created_at, updated_at FROM orders WHERE id = $1",
		id,
	).Scan(&order.ID, &order.UserID, &order.Status, &order.Total, &order.CreatedAt, &order.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order %d: %w", id, err)
	}

	rows, err := q.QueryContext(ctx,
		"SELECT id, order_id, product_id, quantity, price FROM order_items WHERE order_id = $1 ORDER BY id",
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get items for order %d: %w", id, err)
	}
	defer rows.Close()

	for rows.Next() {
		var item models.OrderItem
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.Quantity, &item.Price); err != nil {
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}
		order.Items = append(order.Items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating order items: %w", err)
	}

	return &order, nil
}

// CreateOrder inserts the order and its items, filling in the generated ids
// and timestamps.
func CreateOrder(ctx context.Context, q Querier, order *models.Order) error {
	err := q.QueryRowContext(ctx,
		"INSERT INTO orders (user_id, status, total) VALUES ($1, $2, $3) RETURNING id, created_at, updated_at",
		order.UserID, order.Status, order.Total,
	).Scan(&order.ID, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}

	for i := range order.Items {
		item := &order.Items[i]
		item.OrderID = order.ID
		err := q.QueryRowContext(ctx,
			"INSERT INTO order_items (order_id, product_id, quantity, price) VALUES ($1, $2, $3, $4) RETURNING id",
			item.OrderID, item.ProductID, item.Quantity, item.Price,
		).Scan(&item.ID)
		if err != nil {
			return fmt.Errorf("failed to insert order item: %w", err)
		}
	}

	return nil
}

// FindByStatusAndUpdatedBefore returns orders in the given status whose
// last update is older than the cutoff. Items are not loaded; the reaper
// only needs ids and timestamps.
func FindByStatusAndUpdatedBefore(ctx context.Context, q Querier, status models.OrderStatus, cutoff time.Time) ([]models.Order, error) {
	rows, err := q.QueryContext(ctx,
		"SELECT id, user_id, status, total, created_at, updated_at FROM orders WHERE status = $1 AND updated_at < $2 ORDER BY updated_at",
		status, cutoff,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders by status: %w", err)
	}
	defer rows.Close()

	var orders []models.Order
	for rows.Next() {
		var order models.Order
		if err := rows.Scan(&order.ID, &order.UserID, &order.Status, &order.Total, &order.CreatedAt, &order.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating orders: %w", err)
	}

	return orders, nil
}

// UpdateOrderStatusIf moves an order from one status to another only if it
// is still in the expected status, touching updated_at. Returns false when
// the order was not in the expected status (or does not exist), which makes
// redelivered events and racing writers no-ops.
func UpdateOrderStatusIf(ctx context.Context, q Querier, id int64, from, to models.OrderStatus) (bool, error) {
	result, err := q.ExecContext(ctx,
		"UPDATE orders SET status = $1, updated_at = CURRENT_TIMESTAMP WHERE id = $2 AND status = $3",
		to, id, from,
	)
	if err != nil {
		return false, fmt.Errorf("failed to update order %d status: %w", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return affected == 1, nil
}

// MarkEventProcessed claims an event id for processing. Returns false when
// the event was already claimed by an earlier delivery.
func MarkEventProcessed(ctx context.Context, q Querier, eventID string, orderID int64, kind models.EventKind) (bool, error) {
	result, err := q.ExecContext(ctx,
		"INSERT INTO processed_events (event_id, order_id, kind) VALUES ($1, $2, $3) ON CONFLICT (event_id) DO NOTHING",
		eventID, orderID, kind,
	)
	if err != nil {
		return false, fmt.Errorf("failed to mark event %s processed: %w", eventID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return affected == 1, nil
}
