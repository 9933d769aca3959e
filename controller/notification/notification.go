package notification

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"tasknotify/dto"
	"tasknotify/middleware"
	"tasknotify/model"
	"tasknotify/services"
)

func NotificationController(router *gin.Engine, store services.NotificationStore, secret string, log *zap.SugaredLogger) {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	group := router.Group("/notification", middleware.AccessTokenMiddleware(secret))
	group.GET("", func(c *gin.Context) {
		ListNotifications(c, store, log)
	})
	group.PUT("/:id/read", func(c *gin.Context) {
		MarkNotificationRead(c, store, log)
	})
}

func ListNotifications(c *gin.Context, store services.NotificationStore, log *zap.SugaredLogger) {
	userID := c.MustGet("userId").(string)

	var query dto.NotificationListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid query"})
		return
	}

	filter := model.NotificationFilter{UserID: &userID, Limit: query.Limit}
	if query.Unread {
		unread := false
		filter.Read = &unread
	}

	notifications, err := store.List(c.Request.Context(), filter)
	if err != nil {
		log.Errorw("list notifications failed", "userId", userID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load notifications"})
		return
	}

	c.JSON(http.StatusOK, dto.NewNotificationListResponse(notifications))
}

func MarkNotificationRead(c *gin.Context, store services.NotificationStore, log *zap.SugaredLogger) {
	userID := c.MustGet("userId").(string)
	id := c.Param("id")
	ctx := c.Request.Context()

	n, err := store.Get(ctx, id)
	if errors.Is(err, services.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Notification not found"})
		return
	}
	if err != nil {
		log.Errorw("get notification failed", "notificationId", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load notification"})
		return
	}

	// Broadcast records have no owner and are read through the admin channel.
	if n.UserID == nil || *n.UserID != userID {
		c.JSON(http.StatusForbidden, gin.H{"error": "Forbidden"})
		return
	}

	if n.Read {
		c.JSON(http.StatusOK, dto.NewNotificationResponse(*n))
		return
	}

	now := time.Now()
	if err := store.MarkRead(ctx, id, now); err != nil {
		if errors.Is(err, services.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Notification not found"})
			return
		}
		log.Errorw("mark notification read failed", "notificationId", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update notification"})
		return
	}

	n.Read = true
	n.ReadAt = &now
	c.JSON(http.StatusOK, dto.NewNotificationResponse(*n))
}
