package reaper

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"order-lifecycle-svc/models"
	"order-lifecycle-svc/store"
)

type fakeExpiryPublisher struct {
	expired []int64
	err     error
}

func (p *fakeExpiryPublisher) PublishExpired(ctx context.Context, q store.Querier, orderID int64) error {
	if p.err != nil {
		return p.err
	}
	p.expired = append(p.expired, orderID)
	return nil
}

func setupReaperTest(t *testing.T, publisher *fakeExpiryPublisher) (*Reaper, sqlmock.Sqlmock, *sql.DB) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock database: %v", err)
	}

	logger := zaptest.NewLogger(t, zaptest.Level(zap.InfoLevel))
	return NewReaper(db, publisher, time.Minute, 10*time.Minute, logger), mock, db
}

func staleOrderRows(ids ...int64) *sqlmock.Rows {
	stale := time.Now().Add(-11 * time.Minute)
	rows := sqlmock.NewRows([]string{"id", "user_id", "status", "total", "created_at", "updated_at"})
	for _, id := range ids {
		rows.AddRow(id, 7, models.OrderStatusProcessing, "10.00", stale, stale)
	}
	return rows
}

func TestSweep_ExpiresStaleOrders(t *testing.T) {
	publisher := &fakeExpiryPublisher{}
	r, mock, db := setupReaperTest(t, publisher)
	defer db.Close()

	mock.ExpectQuery("SELECT id, user_id, status, total, created_at, updated_at FROM orders WHERE status = \\$1 AND updated_at < \\$2").
		WithArgs(models.OrderStatusProcessing, sqlmock.AnyArg()).
		WillReturnRows(staleOrderRows(1, 2))

	for _, id := range []int64{1, 2} {
		mock.ExpectBegin()
		mock.ExpectExec("UPDATE orders SET status").
			WithArgs(models.OrderStatusExpired, id, models.OrderStatusProcessing).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()
	}

	expired, failed := r.Sweep(context.Background())

	if expired != 2 || failed != 0 {
		t.Errorf("Expected 2 expired / 0 failed, got %d / %d", expired, failed)
	}
	if len(publisher.expired) != 2 {
		t.Errorf("Expected 2 expiry events, got %v", publisher.expired)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Database expectations were not met: %v", err)
	}
}

func TestSweep_EmptyResultIsNoOp(t *testing.T) {
	publisher := &fakeExpiryPublisher{}
	r, mock, db := setupReaperTest(t, publisher)
	defer db.Close()

	mock.ExpectQuery("SELECT id, user_id, status, total, created_at, updated_at FROM orders WHERE status = \\$1 AND updated_at < \\$2").
		WithArgs(models.OrderStatusProcessing, sqlmock.AnyArg()).
		WillReturnRows(staleOrderRows())

	expired, failed := r.Sweep(context.Background())

	if expired != 0 || failed != 0 {
		t.Errorf("Expected no-op sweep, got %d / %d", expired, failed)
	}
	if len(publisher.expired) != 0 {
		t.Errorf("Expected no expiry events, got %v", publisher.expired)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Database expectations were not met: %v", err)
	}
}

func TestSweep_SkipsOrderCompletedMeanwhile(t *testing.T) {
	publisher := &fakeExpiryPublisher{}
	r, mock, db := setupReaperTest(t, publisher)
	defer db.Close()

	mock.ExpectQuery("SELECT id, user_id, status, total, created_at, updated_at FROM orders WHERE status = \\$1 AND updated_at < \\$2").
		WithArgs(models.OrderStatusProcessing, sqlmock.AnyArg()).
		WillReturnRows(staleOrderRows(1, 2))

	// Order 1 was completed between the query and the update.
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE orders SET status").
		WithArgs(models.OrderStatusExpired, int64(1), models.OrderStatusProcessing).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE orders SET status").
		WithArgs(models.OrderStatusExpired, int64(2), models.OrderStatusProcessing).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	expired, failed := r.Sweep(context.Background())

	if expired != 1 || failed != 0 {
		t.Errorf("Expected 1 expired / 0 failed, got %d / %d", expired, failed)
	}
	if len(publisher.expired) != 1 || publisher.expired[0] != 2 {
		t.Errorf("Expected expiry event only for order 2, got %v", publisher.expired)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Database expectations were not met: %v", err)
	}
}

func TestSweep_OneFailureDoesNotBlockTheBatch(t *testing.T) {
	publisher := &fakeExpiryPublisher{}
	r, mock, db := setupReaperTest(t, publisher)
	defer db.Close()

	mock.ExpectQuery("SELECT id, user_id, status, total, created_at, updated_at FROM orders WHERE status = \\$1 AND updated_at < \\$2").
		WithArgs(models.OrderStatusProcessing, sqlmock.AnyArg()).
		WillReturnRows(staleOrderRows(1, 2))

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE orders SET status").
		WithArgs(models.OrderStatusExpired, int64(1), models.OrderStatusProcessing).
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE orders SET status").
		WithArgs(models.OrderStatusExpired, int64(2), models.OrderStatusProcessing).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	expired, failed := r.Sweep(context.Background())

	if expired != 1 || failed != 1 {
		t.Errorf("Expected 1 expired / 1 failed, got %d / %d", expired, failed)
	}
	if len(publisher.expired) != 1 || publisher.expired[0] != 2 {
		t.Errorf("Expected expiry event only for order 2, got %v", publisher.expired)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Database expectations were not met: %v", err)
	}
}
