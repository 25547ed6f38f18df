package payments

import (
	"github.com/gin-gonic/gin"

	"github.com/richxcame/courier-dispatch/pkg/common"
	"github.com/richxcame/courier-dispatch/pkg/middleware"
)

// Handler handles HTTP requests for payments
type Handler struct {
	service *Service
}

// NewHandler creates a new payments handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// AddTip adjusts the tip on a delivered delivery. The request carries the
// new total tip; the courier is credited the increase.
func (h *Handler) AddTip(c *gin.Context) {
	userID, ok := common.RequireUserID(c, middleware.GetUserID)
	if !ok {
		return
	}

	deliveryID, ok := common.ParseUUIDParam(c, "id", "delivery ID")
	if !ok {
		return
	}

	var req struct {
		Amount float64 `json:"amount" binding:"required,gt=0"`
	}
	if !common.BindJSON(c, &req) {
		return
	}

	payment, err := h.service.AddTip(c.Request.Context(), deliveryID, userID, req.Amount)
	if common.HandleServiceError(c, err, "failed to add tip") {
		return
	}

	common.SuccessResponse(c, "payment", payment)
}

// GetReceipt returns the payment breakdown for a delivered delivery.
func (h *Handler) GetReceipt(c *gin.Context) {
	userID, ok := common.RequireUserID(c, middleware.GetUserID)
	if !ok {
		return
	}

	deliveryID, ok := common.ParseUUIDParam(c, "id", "delivery ID")
	if !ok {
		return
	}

	receipt, err := h.service.Receipt(c.Request.Context(), deliveryID, userID)
	if common.HandleServiceError(c, err, "failed to get receipt") {
		return
	}

	common.SuccessResponse(c, "receipt", receipt)
}
