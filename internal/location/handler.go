package location

import (
	"github.com/gin-gonic/gin"

	"github.com/richxcame/courier-dispatch/pkg/common"
	"github.com/richxcame/courier-dispatch/pkg/middleware"
	"github.com/richxcame/courier-dispatch/pkg/validation"
)

// Handler handles HTTP requests for courier location reporting
type Handler struct {
	service *Service
}

// NewHandler creates a new location handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Update ingests a position sample posted directly by the courier app.
func (h *Handler) Update(c *gin.Context) {
	courierID, ok := common.RequireUserID(c, middleware.GetUserID)
	if !ok {
		return
	}

	var req validation.UpdateLocationRequest
	if !common.BindJSON(c, &req) {
		return
	}

	result, err := h.service.Ingest(c.Request.Context(), courierID, &req)
	if common.HandleServiceError(c, err, "failed to record location") {
		return
	}

	common.SuccessResponse(c, "location", result)
}
