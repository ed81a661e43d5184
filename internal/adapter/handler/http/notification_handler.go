package http

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/irevahq/payments/internal/domain/repository"
	"github.com/irevahq/payments/internal/middleware/auth"
)

// NotificationHandler exposes a user's notification feed
type NotificationHandler struct {
	logger        *zap.Logger
	notifications repository.NotificationRepository
}

// NewNotificationHandler creates a new NotificationHandler instance
func NewNotificationHandler(logger *zap.Logger, notifications repository.NotificationRepository) *NotificationHandler {
	return &NotificationHandler{
		logger:        logger,
		notifications: notifications,
	}
}

// List returns the authenticated user's notifications, newest first
func (h *NotificationHandler) List(c echo.Context) error {
	user, err := auth.RequireAuth(c)
	if err != nil {
		return err
	}

	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	offset, _ := strconv.Atoi(c.QueryParam("offset"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	notifications, err := h.notifications.ListByUser(c.Request().Context(), user.UserID, limit, offset)
	if err != nil {
		h.logger.Error("Failed to list notifications",
			zap.String("user_id", user.UserID.String()),
			zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{
			"error": "Failed to list notifications",
			"code":  "NOTIFICATION_QUERY_FAILED",
		})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"notifications": notifications,
		"limit":         limit,
		"offset":        offset,
	})
}
