package messages

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/richxcame/courier-dispatch/pkg/common"
	"github.com/richxcame/courier-dispatch/pkg/middleware"
	"github.com/richxcame/courier-dispatch/pkg/validation"
)

// Handler handles HTTP requests for delivery messages
type Handler struct {
	service *Service
}

// NewHandler creates a new message handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func requesterFrom(c *gin.Context) (Requester, bool) {
	req := Requester{TrackingToken: c.Query("tracking_token")}
	if userID, err := middleware.GetUserID(c); err == nil {
		req.UserID = userID
		req.Role, _ = middleware.GetUserRole(c)
	}
	if req.UserID == uuid.Nil && req.TrackingToken == "" {
		common.ErrorResponse(c, 401, "authentication or a tracking token is required")
		return req, false
	}
	return req, true
}

// GetConversation returns the message thread for a delivery.
func (h *Handler) GetConversation(c *gin.Context) {
	deliveryID, ok := common.ParseUUIDParam(c, "delivery_id", "delivery ID")
	if !ok {
		return
	}
	req, ok := requesterFrom(c)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if limit < 1 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	conv, err := h.service.GetConversation(c.Request.Context(), deliveryID, req, limit, offset)
	if common.HandleServiceError(c, err, "failed to get conversation") {
		return
	}

	common.SuccessResponse(c, "conversation", conv)
}

// Send posts a message on a delivery's thread.
func (h *Handler) Send(c *gin.Context) {
	deliveryID, ok := common.ParseUUIDParam(c, "delivery_id", "delivery ID")
	if !ok {
		return
	}
	req, ok := requesterFrom(c)
	if !ok {
		return
	}

	var body validation.SendMessageRequest
	if !common.BindJSON(c, &body) {
		return
	}

	m, err := h.service.Send(c.Request.Context(), deliveryID, req, &body)
	if common.HandleServiceError(c, err, "failed to send message") {
		return
	}

	common.CreatedResponse(c, "message", m)
}

// MarkRead marks a message as read by its recipient.
func (h *Handler) MarkRead(c *gin.Context) {
	userID, ok := common.RequireUserID(c, middleware.GetUserID)
	if !ok {
		return
	}

	messageID, ok := common.ParseUUIDParam(c, "id", "message ID")
	if !ok {
		return
	}

	m, err := h.service.MarkRead(c.Request.Context(), messageID, userID)
	if common.HandleServiceError(c, err, "failed to mark message read") {
		return
	}

	common.SuccessResponse(c, "message", m)
}
