package ratings

import (
	"github.com/gin-gonic/gin"

	"github.com/richxcame/courier-dispatch/pkg/common"
	"github.com/richxcame/courier-dispatch/pkg/middleware"
	"github.com/richxcame/courier-dispatch/pkg/validation"
)

// Handler handles HTTP requests for delivery ratings
type Handler struct {
	service *Service
}

// NewHandler creates a new rating handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Rate submits the caller's rating for a delivery.
func (h *Handler) Rate(c *gin.Context) {
	userID, ok := common.RequireUserID(c, middleware.GetUserID)
	if !ok {
		return
	}

	deliveryID, ok := common.ParseUUIDParam(c, "id", "delivery ID")
	if !ok {
		return
	}

	var req validation.RatingRequest
	if !common.BindJSON(c, &req) {
		return
	}

	rating, err := h.service.Rate(c.Request.Context(), deliveryID, userID, &req)
	if common.HandleServiceError(c, err, "failed to submit rating") {
		return
	}

	common.CreatedResponse(c, "rating", rating)
}
