package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"freelancehub/internal/apperr"
	"freelancehub/internal/model"
	"freelancehub/internal/store"
)

const defaultNotificationLimit = 50

// NotificationStore reads the notifications written by the worker.
type NotificationStore interface {
	ListByUser(ctx context.Context, userID int64, limit int) ([]model.Notification, error)
	MarkRead(ctx context.Context, userID, id int64) error
}

type NotificationHandler struct {
	notifications NotificationStore
	logger        *zap.Logger
}

func NewNotificationHandler(notifications NotificationStore, logger *zap.Logger) *NotificationHandler {
	return &NotificationHandler{notifications: notifications, logger: logger}
}

// List handles GET /api/notifications?limit=50
func (h *NotificationHandler) List(c *gin.Context) {
	caller, ok := mustIdentity(c)
	if !ok {
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultNotificationLimit)))
	if err != nil || limit <= 0 || limit > 200 {
		limit = defaultNotificationLimit
	}

	items, err := h.notifications.ListByUser(c.Request.Context(), caller.UserID, limit)
	if err != nil {
		writeError(c, h.logger, apperr.Internal("failed to list notifications", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": items})
}

// MarkRead handles PUT /api/notifications/:id/read
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	caller, ok := mustIdentity(c)
	if !ok {
		return
	}
	id, err := pathID(c, "id")
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	if err := h.notifications.MarkRead(c.Request.Context(), caller.UserID, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(c, h.logger, apperr.NotFound("notification not found"))
			return
		}
		writeError(c, h.logger, apperr.Internal("failed to update notification", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "read", "notification_id": id})
}
