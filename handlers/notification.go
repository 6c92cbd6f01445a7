package handlers

import (
	"database/sql"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"order-lifecycle-svc/store"
)

type NotificationHandler struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewNotificationHandler(db *sql.DB, logger *zap.Logger) *NotificationHandler {
	return &NotificationHandler{
		db:     db,
		logger: logger,
	}
}

func (h *NotificationHandler) ListNotifications(c *gin.Context) {
	notifications, err := store.ListNotifications(c.Request.Context(), h.db)
	if err != nil {
		h.logger.Error("Failed to list notifications", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, notifications)
}

func (h *NotificationHandler) ListOrderNotifications(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid order id"})
		return
	}

	notifications, err := store.ListNotificationsByOrder(c.Request.Context(), h.db, id)
	if err != nil {
		h.logger.Error("Failed to list notifications for order", zap.Int64("order_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, notifications)
}
