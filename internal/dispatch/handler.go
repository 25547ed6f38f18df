package dispatch

import (
	"github.com/gin-gonic/gin"

	"github.com/richxcame/courier-dispatch/pkg/common"
	"github.com/richxcame/courier-dispatch/pkg/middleware"
)

// Handler handles HTTP requests for courier offers
type Handler struct {
	service *Service
}

// NewHandler creates a new dispatch handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// ListOffers returns the calling courier's open delivery offers, soonest
// deadline first.
func (h *Handler) ListOffers(c *gin.Context) {
	courierID, ok := common.RequireUserID(c, middleware.GetUserID)
	if !ok {
		return
	}

	offers, err := h.service.OffersForCourier(c.Request.Context(), courierID)
	if common.HandleServiceError(c, err, "failed to list offers") {
		return
	}
	if offers == nil {
		offers = []*Offer{}
	}

	common.SuccessResponse(c, "offers", offers)
}
