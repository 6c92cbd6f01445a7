package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// OutboxMessage is an event waiting to be forwarded to Kafka. Rows are
// written in the same transaction as the state change they describe, so a
// committed transition can never lose its event.
type OutboxMessage struct {
	ID         int64
	EventID    string
	Topic      string
	Key        string
	Payload    []byte
	RetryCount int
	LastError  sql.NullString
	CreatedAt  time.Time
	SentAt     sql.NullTime
}

func InsertOutbox(ctx context.Context, q Querier, eventID, topic, key string, payload []byte) error {
	_, err := q.ExecContext(ctx,
		"INSERT INTO outbox (event_id, topic, key, payload) VALUES ($1, $2, $3, $4)",
		eventID, topic, key, payload,
	)
	if err != nil {
		return fmt.Errorf("failed to insert outbox message: %w", err)
	}
	return nil
}

// FetchPendingOutbox returns unsent messages whose retry time has come, in
// insertion order so per-order event ordering survives the relay.
func FetchPendingOutbox(ctx context.Context, q Querier, limit int) ([]OutboxMessage, error) {
	rows, err := q.QueryContext(ctx,
		"SELECT id, event_id, topic, key, payload, retry_count FROM outbox WHERE sent_at IS NULL AND next_retry_at <= CURRENT_TIMESTAMP ORDER BY id LIMIT $1",
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query outbox: %w", err)
	}
	defer rows.Close()

	var messages []OutboxMessage
	for rows.Next() {
		var msg OutboxMessage
		if err := rows.Scan(&msg.ID, &msg.EventID, &msg.Topic, &msg.Key, &msg.Payload, &msg.RetryCount); err != nil {
			return nil, fmt.Errorf("failed to scan outbox message: %w", err)
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating outbox messages: %w", err)
	}

	return messages, nil
}

func MarkOutboxSent(ctx context.Context, q Querier, id int64) error {
	_, err := q.ExecContext(ctx,
		"UPDATE outbox SET sent_at = CURRENT_TIMESTAMP WHERE id = $1",
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to mark outbox message %d sent: %w", id, err)
	}
	return nil
}

func MarkOutboxFailed(ctx context.Context, q Querier, id int64, retryCount int, lastError string, nextRetryAt time.Time) error {
	_, err := q.ExecContext(ctx,
		"UPDATE outbox SET retry_count = $1, last_error = $2, next_retry_at = $3 WHERE id = $4",
		retryCount, lastError, nextRetryAt, id,
	)
	if err != nil {
		return fmt.Errorf("failed to record outbox failure for message %d: %w", id, err)
	}
	return nil
}
