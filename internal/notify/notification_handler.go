package notify

import (
	"net/http"
	"strconv"

	"resourcehive/pkg/apperrors"
	"resourcehive/pkg/security"

	"github.com/gin-gonic/gin"
)

type NotificationHandler struct {
	notifications *NotificationRepository
}

func NewNotificationHandler(nr *NotificationRepository) *NotificationHandler {
	return &NotificationHandler{notifications: nr}
}

func (h *NotificationHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/notifications", h.List)
	router.POST("/notifications/:id/read", h.MarkRead)
	router.POST("/notifications/read-all", h.MarkAllRead)
}

func (h *NotificationHandler) List(c *gin.Context) {
	unreadOnly := c.Query("unread") == "true"

	notifications, err := h.notifications.GetForUser(security.GetUserID(c), unreadOnly)
	if err != nil {
		c.JSON(apperrors.HTTPStatus(err), gin.H{"error": apperrors.UserMessage(err)})
		return
	}

	c.JSON(http.StatusOK, notifications)
}

func (h *NotificationHandler) MarkRead(c *gin.Context) {
	notificationID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid notification ID"})
		return
	}

	if err := h.notifications.MarkRead(notificationID, security.GetUserID(c)); err != nil {
		c.JSON(apperrors.HTTPStatus(err), gin.H{"error": apperrors.UserMessage(err)})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	if err := h.notifications.MarkAllRead(security.GetUserID(c)); err != nil {
		c.JSON(apperrors.HTTPStatus(err), gin.H{"error": apperrors.UserMessage(err)})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}
