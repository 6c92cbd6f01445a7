package store

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"order-lifecycle-svc/models"
)

func TestInsertNotification_WritesRow(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock database: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("INSERT INTO notifications \\(order_id, type, message\\)").
		WithArgs(int64(1), models.NotificationTypeOrderCompleted, "Order 1 has been completed successfully!").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(5, time.Now()))

	n := &models.Notification{
		OrderID: 1,
		Type:    models.NotificationTypeOrderCompleted,
		Message: "Order 1 has been completed successfully!",
	}

	inserted, err := InsertNotification(context.Background(), db, n)
	if err != nil {
		t.Fatalf("InsertNotification returned error: %v", err)
	}
	if !inserted {
		t.Error("Expected notification to be inserted")
	}
	if n.ID != 5 {
		t.Errorf("Expected id 5, got %d", n.ID)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Database expectations were not met: %v", err)
	}
}

func TestInsertNotification_DuplicateIsNoOp(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock database: %v", err)
	}
	defer db.Close()

	// ON CONFLICT DO NOTHING returns no row for the duplicate.
	mock.ExpectQuery("INSERT INTO notifications \\(order_id, type, message\\)").
		WithArgs(int64(1), models.NotificationTypeOrderExpired, sqlmock.AnyArg()).
		WillReturnError(sql.ErrNoRows)

	n := &models.Notification{
		OrderID: 1,
		Type:    models.NotificationTypeOrderExpired,
		Message: "Order 1 has expired after 10 minutes in PROCESSING state",
	}

	inserted, err := InsertNotification(context.Background(), db, n)
	if err != nil {
		t.Fatalf("InsertNotification returned error: %v", err)
	}
	if inserted {
		t.Error("Expected duplicate insert to be a no-op")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Database expectations were not met: %v", err)
	}
}

func TestListNotificationsByOrder(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock database: %v", err)
	}
	defer db.Close()

	rows := sqlmock.NewRows([]string{"id", "order_id", "type", "message", "created_at"}).
		AddRow(1, 9, models.NotificationTypeOrderExpired, "Order 9 has expired after 10 minutes in PROCESSING state", time.Now())

	mock.ExpectQuery("SELECT id, order_id, type, message, created_at FROM notifications WHERE order_id = \\$1").
		WithArgs(int64(9)).
		WillReturnRows(rows)

	notifications, err := ListNotificationsByOrder(context.Background(), db, 9)
	if err != nil {
		t.Fatalf("ListNotificationsByOrder returned error: %v", err)
	}
	if len(notifications) != 1 {
		t.Fatalf("Expected 1 notification, got %d", len(notifications))
	}
	if notifications[0].Type != models.NotificationTypeOrderExpired {
		t.Errorf("Unexpected type: %s", notifications[0].Type)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Database expectations were not met: %v", err)
	}
}
