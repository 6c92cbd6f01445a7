package notification

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/IBM/sarama"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"order-lifecycle-svc/models"
)

func setupRecorderTest(t *testing.T) (*Recorder, sqlmock.Sqlmock, *sql.DB) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock database: %v", err)
	}

	logger := zaptest.NewLogger(t, zaptest.Level(zap.InfoLevel))
	return NewRecorder(db, "notification-service-group", logger), mock, db
}

func message(t *testing.T, event any) *sarama.ConsumerMessage {
	payload, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("Failed to marshal event: %v", err)
	}
	return &sarama.ConsumerMessage{Value: payload}
}

func TestHandleMessage_RecordsCompletedNotification(t *testing.T) {
	r, mock, db := setupRecorderTest(t)
	defer db.Close()

	mock.ExpectQuery("INSERT INTO notifications \\(order_id, type, message\\)").
		WithArgs(int64(1), models.NotificationTypeOrderCompleted, "Order 1 has been completed successfully!").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(10, time.Now()))

	r.handleMessage(context.Background(), message(t, models.NewOrderCompletedEvent(1)))

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Database expectations were not met: %v", err)
	}
}

func TestHandleMessage_RecordsExpiredNotification(t *testing.T) {
	r, mock, db := setupRecorderTest(t)
	defer db.Close()

	mock.ExpectQuery("INSERT INTO notifications \\(order_id, type, message\\)").
		WithArgs(int64(9), models.NotificationTypeOrderExpired, "Order 9 has expired after 10 minutes in PROCESSING state").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(11, time.Now()))

	r.handleMessage(context.Background(), message(t, models.NewOrderExpiredEvent(9)))

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Database expectations were not met: %v", err)
	}
}

func TestHandleMessage_IgnoresCreationEvents(t *testing.T) {
	r, mock, db := setupRecorderTest(t)
	defer db.Close()

	order := &models.Order{ID: 1, UserID: 7}
	r.handleMessage(context.Background(), message(t, models.NewOrderCreatedEvent(order)))

	// No SQL expected: creation events are the processor's business.
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Database expectations were not met: %v", err)
	}
}

func TestHandleMessage_DuplicateDeliveryWritesOneRow(t *testing.T) {
	r, mock, db := setupRecorderTest(t)
	defer db.Close()

	event := models.NewOrderCompletedEvent(4)

	mock.ExpectQuery("INSERT INTO notifications \\(order_id, type, message\\)").
		WithArgs(int64(4), models.NotificationTypeOrderCompleted, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(12, time.Now()))
	mock.ExpectQuery("INSERT INTO notifications \\(order_id, type, message\\)").
		WithArgs(int64(4), models.NotificationTypeOrderCompleted, sqlmock.AnyArg()).
		WillReturnError(sql.ErrNoRows)

	r.handleMessage(context.Background(), message(t, event))
	r.handleMessage(context.Background(), message(t, event))

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Database expectations were not met: %v", err)
	}
}

func TestHandleMessage_MalformedPayloadDoesNotBlock(t *testing.T) {
	r, mock, db := setupRecorderTest(t)
	defer db.Close()

	r.handleMessage(context.Background(), &sarama.ConsumerMessage{Value: []byte("not json")})

	mock.ExpectQuery("INSERT INTO notifications \\(order_id, type, message\\)").
		WithArgs(int64(2), models.NotificationTypeOrderCompleted, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(13, time.Now()))

	// The next event is still processed.
	r.handleMessage(context.Background(), message(t, models.NewOrderCompletedEvent(2)))

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Database expectations were not met: %v", err)
	}
}

func TestHandleMessage_InsertFailureIsSwallowed(t *testing.T) {
	r, mock, db := setupRecorderTest(t)
	defer db.Close()

	mock.ExpectQuery("INSERT INTO notifications \\(order_id, type, message\\)").
		WithArgs(int64(3), models.NotificationTypeOrderExpired, sqlmock.AnyArg()).
		WillReturnError(sql.ErrConnDone)

	// Must not panic or halt; the error is logged and the loop moves on.
	r.handleMessage(context.Background(), message(t, models.NewOrderExpiredEvent(3)))

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Database expectations were not met: %v", err)
	}
}
