package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"forum-service/internal/api/middleware"
	"forum-service/internal/models"
	"forum-service/internal/services"
	"forum-service/pkg/response"

	"github.com/gin-gonic/gin"
)

type NotificationHandler struct {
	notificationService *services.NotificationService
}

func NewNotificationHandler(notificationService *services.NotificationService) *NotificationHandler {
	return &NotificationHandler{notificationService: notificationService}
}

// List godoc
// @Summary List notifications
// @Tags notifications
// @Produce json
// @Param limit query int false "Maximum results (default 20)"
// @Success 200 {array} models.Notification
// @Router /api/notifications [get]
func (h *NotificationHandler) List(c *gin.Context) {
	limit := services.DefaultNotificationLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			response.Error(c, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = n
	}

	list, err := h.notificationService.List(c.Request.Context(), c.GetString(middleware.ContextUserID), limit)
	if err != nil {
		_ = c.Error(err)
		response.Error(c, http.StatusInternalServerError, "Failed to fetch notifications")
		return
	}
	c.JSON(http.StatusOK, list)
}

// UnreadCount godoc
// @Summary Count unread notifications
// @Tags notifications
// @Produce json
// @Success 200 {object} models.UnreadCountResponse
// @Router /api/notifications/unread-count [get]
func (h *NotificationHandler) UnreadCount(c *gin.Context) {
	count, err := h.notificationService.UnreadCount(c.Request.Context(), c.GetString(middleware.ContextUserID))
	if err != nil {
		_ = c.Error(err)
		response.Error(c, http.StatusInternalServerError, "Failed to fetch unread count")
		return
	}
	c.JSON(http.StatusOK, models.UnreadCountResponse{Count: count})
}

// MarkRead godoc
// @Summary Mark one notification read
// @Tags notifications
// @Param id path string true "Notification ID"
// @Success 204
// @Failure 404 {object} models.ErrorResponse
// @Router /api/notifications/{id}/read [put]
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	err := h.notificationService.MarkRead(c.Request.Context(), c.GetString(middleware.ContextUserID), c.Param("id"))
	if err != nil {
		if errors.Is(err, services.ErrNotificationNotFound) {
			response.Error(c, http.StatusNotFound, "Notification not found")
			return
		}
		_ = c.Error(err)
		response.Error(c, http.StatusInternalServerError, "Failed to mark notification read")
		return
	}
	c.Status(http.StatusNoContent)
}

// MarkAllRead godoc
// @Summary Mark every notification read
// @Tags notifications
// @Success 204
// @Router /api/notifications/read-all [put]
func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	if _, err := h.notificationService.MarkAllRead(c.Request.Context(), c.GetString(middleware.ContextUserID)); err != nil {
		_ = c.Error(err)
		response.Error(c, http.StatusInternalServerError, "Failed to mark notifications read")
		return
	}
	c.Status(http.StatusNoContent)
}
