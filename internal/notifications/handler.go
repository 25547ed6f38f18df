package notifications

import (
	"github.com/gin-gonic/gin"

	"github.com/richxcame/courier-dispatch/pkg/common"
	"github.com/richxcame/courier-dispatch/pkg/middleware"
	"github.com/richxcame/courier-dispatch/pkg/pagination"
)

// Handler handles HTTP requests for the notification feed
type Handler struct {
	service *Service
}

// NewHandler creates a new notification handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// List returns a page of the caller's feed with the unread total.
func (h *Handler) List(c *gin.Context) {
	userID, ok := common.RequireUserID(c, middleware.GetUserID)
	if !ok {
		return
	}

	params := pagination.ParseParams(c)

	list, err := h.service.List(c.Request.Context(), userID, params.Limit, params.Offset)
	if common.HandleServiceError(c, err, "failed to list notifications") {
		return
	}

	common.SuccessEnvelope(c, common.Envelope{
		"notifications": list.Notifications,
		"unread_count":  list.UnreadCount,
	})
}

// MarkRead marks one notification as read.
func (h *Handler) MarkRead(c *gin.Context) {
	userID, ok := common.RequireUserID(c, middleware.GetUserID)
	if !ok {
		return
	}

	notificationID, ok := common.ParseUUIDParam(c, "id", "notification ID")
	if !ok {
		return
	}

	n, err := h.service.MarkRead(c.Request.Context(), notificationID, userID)
	if common.HandleServiceError(c, err, "failed to mark notification read") {
		return
	}

	common.SuccessResponse(c, "notification", n)
}

// MarkAllRead marks the caller's entire feed as read.
func (h *Handler) MarkAllRead(c *gin.Context) {
	userID, ok := common.RequireUserID(c, middleware.GetUserID)
	if !ok {
		return
	}

	count, err := h.service.MarkAllRead(c.Request.Context(), userID)
	if common.HandleServiceError(c, err, "failed to mark notifications read") {
		return
	}

	common.SuccessEnvelope(c, common.Envelope{"marked_read": count})
}
