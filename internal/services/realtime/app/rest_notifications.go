package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	apperrors "github.com/louisbranch/pulse/internal/platform/errors"
	"github.com/louisbranch/pulse/internal/platform/i18n"
	"github.com/louisbranch/pulse/internal/services/notifications/domain"
	"github.com/louisbranch/pulse/internal/services/realtime/wire"
	"golang.org/x/text/message"
)

type notificationListResponse struct {
	Items      []wire.NotificationItem `json:"items"`
	NextCursor *string                 `json:"nextCursor"`
}

type notificationResponse struct {
	Notification wire.NotificationItem `json:"notification"`
}

type createNotificationRequest struct {
	OwnerID   string          `json:"ownerId" binding:"required"`
	Kind      string          `json:"kind" binding:"required,max=64"`
	Payload   json.RawMessage `json:"payload"`
	DedupeKey string          `json:"dedupeKey" binding:"max=255"`
}

type createNotificationResponse struct {
	Notification wire.NotificationItem `json:"notification"`
	Created      bool                  `json:"created"`
}

func (h *handler) listNotifications(c *gin.Context) {
	limit, err := parseLimit(c.Query("limit"))
	if err != nil {
		writeError(c, err)
		return
	}
	page, err := h.notifications.List(c.Request.Context(), domain.ListInput{
		OwnerID:    callerID(c),
		UnreadOnly: parseBool(c.Query("unreadOnly")),
		Limit:      limit,
		Cursor:     strings.TrimSpace(c.Query("cursor")),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	items, err := wire.NotificationViews(page.Notifications, localizer(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, notificationListResponse{Items: items, NextCursor: optionalCursor(page.NextCursor)})
}

func (h *handler) unreadCount(c *gin.Context) {
	count, err := h.notifications.UnreadCount(c.Request.Context(), callerID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"unreadCount": count})
}

func (h *handler) markNotificationRead(c *gin.Context) {
	notification, err := h.notifications.MarkRead(c.Request.Context(), callerID(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	item, err := wire.NotificationView(notification, localizer(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, notificationResponse{Notification: item})
}

func (h *handler) markAllNotificationsRead(c *gin.Context) {
	updated, err := h.notifications.MarkAllRead(c.Request.Context(), callerID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": updated})
}

func (h *handler) createNotification(c *gin.Context) {
	var request createNotificationRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		writeError(c, apperrors.Wrap(apperrors.CodeInvalidArgument, "invalid notification request", err))
		return
	}
	payload, err := domain.DecodePayload(request.Kind, request.Payload)
	if err != nil {
		writeError(c, err)
		return
	}
	result, err := h.notifications.Create(c.Request.Context(), domain.CreateInput{
		OwnerID:   request.OwnerID,
		Payload:   payload,
		DedupeKey: request.DedupeKey,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	item, err := wire.NotificationView(result.Notification, localizer(c))
	if err != nil {
		writeError(c, err)
		return
	}
	status := http.StatusOK
	if result.Created {
		status = http.StatusCreated
	}
	c.JSON(status, createNotificationResponse{Notification: item, Created: result.Created})
}

func localizer(c *gin.Context) *message.Printer {
	return message.NewPrinter(i18n.ResolveTag(c.Request))
}

func parseLimit(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperrors.Wrap(apperrors.CodeInvalidArgument, "limit must be an integer", err)
	}
	return limit, nil
}

func parseBool(raw string) bool {
	value, err := strconv.ParseBool(strings.TrimSpace(raw))
	return err == nil && value
}

func optionalCursor(cursor string) *string {
	if cursor == "" {
		return nil
	}
	return &cursor
}
