package database

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"order-lifecycle-svc/config"
)

func InitDB(cfg *config.Config, logger *zap.Logger) (*sql.DB, error) {
	psqlInfo := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBName)

	db, err := sql.Open("postgres", psqlInfo)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Bootstrap the schema if it doesn't exist yet
	createTablesQuery := `
	CREATE TABLE IF NOT EXISTS orders (
		id SERIAL PRIMARY KEY,
		user_id INTEGER NOT NULL,
		status VARCHAR(20) NOT NULL DEFAULT 'PENDING',
		total DECIMAL(10, 2) NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS order_items (
		id SERIAL PRIMARY KEY,
		order_id INTEGER NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
		product_id INTEGER NOT NULL,
		quantity INTEGER NOT NULL CHECK (quantity >= 1),
		price DECIMAL(10, 2) NOT NULL CHECK (price >= 0)
	);

	CREATE INDEX IF NOT EXISTS idx_orders_status_updated_at ON orders (status, updated_at);

	CREATE TABLE IF NOT EXISTS notifications (
		id SERIAL PRIMARY KEY,
		order_id INTEGER NOT NULL,
		type VARCHAR(50) NOT NULL,
		message VARCHAR(500) NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE (order_id, type)
	);

	CREATE TABLE IF NOT EXISTS outbox (
		id SERIAL PRIMARY KEY,
		event_id UUID NOT NULL,
		topic VARCHAR(255) NOT NULL,
		key VARCHAR(255) NOT NULL,
		payload JSONB NOT NULL,
		retry_count INTEGER NOT NULL DEFAULT 0,
		last_error TEXT,
		next_retry_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		sent_at TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS processed_events (
		event_id UUID PRIMARY KEY,
		order_id INTEGER NOT NULL,
		kind VARCHAR(50) NOT NULL,
		processed_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);
	`

	if _, err := db.Exec(createTablesQuery); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	logger.Info("Database connection established")
	return db, nil
}
