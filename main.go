package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"order-lifecycle-svc/config"
	"order-lifecycle-svc/database"
	"order-lifecycle-svc/handlers"
	"order-lifecycle-svc/kafka"
	"order-lifecycle-svc/middleware"
	"order-lifecycle-svc/notification"
	"order-lifecycle-svc/outbox"
	"order-lifecycle-svc/processor"
	"order-lifecycle-svc/reaper"
)

func main() {
	// Initialize logger
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	cfg := config.Load()

	// Initialize OpenTelemetry
	shutdownTracing, err := middleware.InitTracing("order-lifecycle-svc")
	if err != nil {
		logger.Fatal("Failed to initialize tracing", zap.Error(err))
	}
	defer shutdownTracing()

	// Initialize database
	db, err := database.InitDB(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	// Initialize Kafka producer for the outbox relay
	producer, err := kafka.InitProducer(cfg.KafkaBroker, logger)
	if err != nil {
		logger.Fatal("Failed to initialize Kafka producer", zap.Error(err))
	}
	defer producer.Close()

	publisher := kafka.NewEventPublisher(cfg.KafkaTopic, logger)

	// Background workers share one cancellable context
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	relay := outbox.NewRelay(db, producer, cfg.OutboxPollInterval, cfg.OutboxBatchSize, logger)
	go relay.Start(ctx)

	// Order processor consumer group
	gateway := processor.NewSimulatedGateway(cfg.PaymentLatency, cfg.PaymentSuccessRate)
	proc := processor.NewProcessor(db, gateway, publisher, cfg.ProcessorGroup, logger)

	processorGroup, err := kafka.InitConsumerGroup(cfg.KafkaBroker, cfg.ProcessorGroup, logger)
	if err != nil {
		logger.Fatal("Failed to initialize processor consumer group", zap.Error(err))
	}
	defer processorGroup.Close()
	go kafka.RunConsumerGroup(ctx, processorGroup, cfg.KafkaTopic, proc, logger)

	// Notification recorder consumer group
	recorder := notification.NewRecorder(db, cfg.RecorderGroup, logger)

	recorderGroup, err := kafka.InitConsumerGroup(cfg.KafkaBroker, cfg.RecorderGroup, logger)
	if err != nil {
		logger.Fatal("Failed to initialize recorder consumer group", zap.Error(err))
	}
	defer recorderGroup.Close()
	go kafka.RunConsumerGroup(ctx, recorderGroup, cfg.KafkaTopic, recorder, logger)

	// Expiration reaper
	expirer := reaper.NewReaper(db, publisher, cfg.ReaperInterval, cfg.OrderExpiry, logger)
	go expirer.Start(ctx)

	// Collaborator HTTP surface
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.LoggerMiddleware(logger))
	router.Use(middleware.MetricsMiddleware())

	router.GET("/health", handlers.HealthCheck)
	router.GET("/metrics", middleware.PrometheusHandler())

	orderHandler := handlers.NewOrderHandler(db, publisher, logger)
	router.POST("/orders", orderHandler.CreateOrder)
	router.GET("/orders/:id", orderHandler.GetOrder)

	notificationHandler := handlers.NewNotificationHandler(db, logger)
	router.GET("/orders/:id/notifications", notificationHandler.ListOrderNotifications)
	router.GET("/notifications", notificationHandler.ListNotifications)

	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start HTTP server", zap.Error(err))
		}
	}()

	logger.Info("Order lifecycle service started", zap.String("addr", cfg.HTTPAddr))

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("HTTP server forced to shutdown", zap.Error(err))
	}

	logger.Info("Service exited")
}
