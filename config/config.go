package config

import (
	"os"
	"strconv"
	"time"
)

// Config collects every knob the service reads from the environment.
type Config struct {
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	KafkaBroker    string
	KafkaTopic     string
	ProcessorGroup string
	RecorderGroup  string

	HTTPAddr       string
	JaegerEndpoint string

	ReaperInterval     time.Duration
	OrderExpiry        time.Duration
	PaymentLatency     time.Duration
	PaymentSuccessRate float64

	OutboxPollInterval time.Duration
	OutboxBatchSize    int
}

func Load() *Config {
	return &Config{
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", "postgres"),
		DBName:     getEnv("DB_NAME", "orderdb"),

		KafkaBroker:    getEnv("KAFKA_BROKER", "localhost:9092"),
		KafkaTopic:     getEnv("KAFKA_TOPIC", "order-events"),
		ProcessorGroup: getEnv("KAFKA_PROCESSOR_GROUP", "order-processor-group"),
		RecorderGroup:  getEnv("KAFKA_RECORDER_GROUP", "notification-service-group"),

		HTTPAddr:       getEnv("HTTP_ADDR", ":8082"),
		JaegerEndpoint: getEnv("JAEGER_ENDPOINT", "http://localhost:14268/api/traces"),

		ReaperInterval:     getDuration("REAPER_INTERVAL", 60*time.Second),
		OrderExpiry:        getDuration("ORDER_EXPIRY", 10*time.Minute),
		PaymentLatency:     getDuration("PAYMENT_LATENCY", 5*time.Second),
		PaymentSuccessRate: getFloat("PAYMENT_SUCCESS_RATE", 0.5),

		OutboxPollInterval: getDuration("OUTBOX_POLL_INTERVAL", 5*time.Second),
		OutboxBatchSize:    getInt("OUTBOX_BATCH_SIZE", 100),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}
