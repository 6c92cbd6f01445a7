package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	eventsPublishedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "events_published_total",
			Help: "Total number of lifecycle events queued for publish",
		},
		[]string{"kind"},
	)

	eventsConsumedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "events_consumed_total",
			Help: "Total number of lifecycle events handled per consumer group",
		},
		[]string{"group", "kind"},
	)

	eventsSkippedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "events_skipped_total",
			Help: "Total number of messages a consumer group ignored",
		},
		[]string{"group"},
	)

	paymentProcessedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_processed_total",
			Help: "Total number of simulated payments by outcome",
		},
		[]string{"status"},
	)

	ordersExpiredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "orders_expired_total",
			Help: "Total number of orders expired by the reaper",
		},
	)

	notificationsRecordedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_recorded_total",
			Help: "Total number of notification audit records written",
		},
		[]string{"type"},
	)

	outboxRelayTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "outbox_relay_total",
			Help: "Total number of outbox relay attempts by result",
		},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(httpRequestsTotal)
	prometheus.MustRegister(httpRequestDuration)
	prometheus.MustRegister(eventsPublishedTotal)
	prometheus.MustRegister(eventsConsumedTotal)
	prometheus.MustRegister(eventsSkippedTotal)
	prometheus.MustRegister(paymentProcessedTotal)
	prometheus.MustRegister(ordersExpiredTotal)
	prometheus.MustRegister(notificationsRecordedTotal)
	prometheus.MustRegister(outboxRelayTotal)
}

func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		c.Next()

		status := strconv.Itoa(c.Writer.Status())
		duration := time.Since(start).Seconds()

		httpRequestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
		httpRequestDuration.WithLabelValues(c.Request.Method, path).Observe(duration)
	}
}

func PrometheusHandler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}

func RecordEventPublished(kind string) {
	eventsPublishedTotal.WithLabelValues(kind).Inc()
}

func RecordEventConsumed(group, kind string) {
	eventsConsumedTotal.WithLabelValues(group, kind).Inc()
}

func RecordEventSkipped(group string) {
	eventsSkippedTotal.WithLabelValues(group).Inc()
}

func RecordPaymentProcessed(status string) {
	paymentProcessedTotal.WithLabelValues(status).Inc()
}

func RecordOrderExpired() {
	ordersExpiredTotal.Inc()
}

func RecordNotificationRecorded(notificationType string) {
	notificationsRecordedTotal.WithLabelValues(notificationType).Inc()
}

func RecordOutboxRelay(result string) {
	outboxRelayTotal.WithLabelValues(result).Inc()
}
