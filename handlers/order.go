// Package handlers exposes the minimal collaborator surface: creating a
// PENDING order and reading orders and notifications back.
package handlers

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"order-lifecycle-svc/models"
	"order-lifecycle-svc/store"
)

// CreatedPublisher queues the creation event in the same transaction that
// inserts the order.
type CreatedPublisher interface {
	PublishCreated(ctx context.Context, q store.Querier, order *models.Order) error
}

type OrderHandler struct {
	db        *sql.DB
	publisher CreatedPublisher
	logger    *zap.Logger
}

func NewOrderHandler(db *sql.DB, publisher CreatedPublisher, logger *zap.Logger) *OrderHandler {
	return &OrderHandler{
		db:        db,
		publisher: publisher,
		logger:    logger,
	}
}

func (h *OrderHandler) CreateOrder(c *gin.Context) {
	ctx, span := otel.Tracer("order-lifecycle").Start(c.Request.Context(), "CreateOrder")
	defer span.End()

	var req models.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	total := decimal.Zero
	items := make([]models.OrderItem, 0, len(req.Items))
	for _, item := range req.Items {
		if item.Price.IsNegative() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "item price must not be negative"})
			return
		}
		items = append(items, models.OrderItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Price:     item.Price,
		})
		total = total.Add(item.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}

	span.SetAttributes(
		attribute.Int64("user.id", req.UserID),
		attribute.Int("items.count", len(items)),
	)

	order := models.Order{
		UserID: req.UserID,
		Status: models.OrderStatusPending,
		Total:  total,
		Items:  items,
	}

	err := store.WithTx(ctx, h.db, func(q store.Querier) error {
		if err := store.CreateOrder(ctx, q, &order); err != nil {
			return err
		}
		return h.publisher.PublishCreated(ctx, q, &order)
	})
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to create order", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	span.SetAttributes(attribute.Int64("order.id", order.ID))
	h.logger.Info("Order created", zap.Int64("order_id", order.ID))
	c.JSON(http.StatusCreated, order)
}

func (h *OrderHandler) GetOrder(c *gin.Context) {
	ctx, span := otel.Tracer("order-lifecycle").Start(c.Request.Context(), "GetOrder")
	defer span.End()

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid order id"})
		return
	}

	order, err := store.GetOrder(ctx, h.db, id)
	if errors.Is(err, store.ErrOrderNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
		return
	}
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to get order", zap.Int64("order_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, order)
}
