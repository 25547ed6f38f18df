package issues

import (
	"github.com/gin-gonic/gin"

	"github.com/richxcame/courier-dispatch/pkg/common"
	"github.com/richxcame/courier-dispatch/pkg/middleware"
	"github.com/richxcame/courier-dispatch/pkg/validation"
)

// Handler handles HTTP requests for delivery issues
type Handler struct {
	service *Service
}

// NewHandler creates a new issue handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Report opens an issue on a delivery.
func (h *Handler) Report(c *gin.Context) {
	userID, ok := common.RequireUserID(c, middleware.GetUserID)
	if !ok {
		return
	}

	deliveryID, ok := common.ParseUUIDParam(c, "id", "delivery ID")
	if !ok {
		return
	}

	var req validation.ReportIssueRequest
	if !common.BindJSON(c, &req) {
		return
	}

	issue, err := h.service.Report(c.Request.Context(), deliveryID, userID, &req)
	if common.HandleServiceError(c, err, "failed to report issue") {
		return
	}

	common.CreatedResponse(c, "issue", issue)
}
