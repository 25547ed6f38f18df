package promos

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/richxcame/courier-dispatch/pkg/common"
	"github.com/richxcame/courier-dispatch/pkg/middleware"
)

// Handler handles HTTP requests for promo codes
type Handler struct {
	service *Service
}

// NewHandler creates a new promos handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// ValidatePromoCode dry-runs a promo code against an order amount. The
// verdict is always 200; rejected codes carry valid=false with a message.
func (h *Handler) ValidatePromoCode(c *gin.Context) {
	userID, ok := common.RequireUserID(c, middleware.GetUserID)
	if !ok {
		return
	}

	var req struct {
		Code        string  `json:"code" binding:"required"`
		OrderAmount float64 `json:"order_amount" binding:"required,gt=0"`
	}
	if !common.BindJSON(c, &req) {
		return
	}

	verdict, err := h.service.Validate(c.Request.Context(), req.Code, userID, req.OrderAmount)
	if common.HandleServiceError(c, err, "failed to validate promo code") {
		return
	}

	common.SuccessResponse(c, "validation", verdict)
}

// HealthCheck returns service health
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "service": "promos"})
}
