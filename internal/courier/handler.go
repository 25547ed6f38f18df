package courier

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/richxcame/courier-dispatch/pkg/common"
	"github.com/richxcame/courier-dispatch/pkg/middleware"
	"github.com/richxcame/courier-dispatch/pkg/validation"
)

// Handler handles HTTP requests for courier profiles, availability, earnings
// and payouts.
type Handler struct {
	service *Service
}

// NewHandler creates a new courier handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// CreateProfile registers the calling user as a courier. Admins may pass a
// different user_id.
func (h *Handler) CreateProfile(c *gin.Context) {
	callerID, ok := common.RequireUserID(c, middleware.GetUserID)
	if !ok {
		return
	}
	role, err := middleware.GetUserRole(c)
	if err != nil {
		common.ErrorResponse(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req validation.CreateCourierRequest
	if !common.BindJSON(c, &req) {
		return
	}

	profile, err := h.service.CreateProfile(c.Request.Context(), callerID, role, &req)
	if common.HandleServiceError(c, err, "failed to create courier profile") {
		return
	}

	common.CreatedResponse(c, "courier", profile)
}

// GetProfile returns the calling courier's profile.
func (h *Handler) GetProfile(c *gin.Context) {
	courierID, ok := common.RequireUserID(c, middleware.GetUserID)
	if !ok {
		return
	}

	profile, err := h.service.GetProfile(c.Request.Context(), courierID)
	if common.HandleServiceError(c, err, "failed to get courier profile") {
		return
	}

	common.SuccessResponse(c, "courier", profile)
}

// UpdateProfile applies a partial update to the calling courier's profile.
func (h *Handler) UpdateProfile(c *gin.Context) {
	courierID, ok := common.RequireUserID(c, middleware.GetUserID)
	if !ok {
		return
	}

	var req validation.UpdateCourierRequest
	if !common.BindJSON(c, &req) {
		return
	}

	profile, err := h.service.UpdateProfile(c.Request.Context(), courierID, &req)
	if common.HandleServiceError(c, err, "failed to update courier profile") {
		return
	}

	common.SuccessResponse(c, "courier", profile)
}

// SetAvailability toggles the calling courier on or off duty.
func (h *Handler) SetAvailability(c *gin.Context) {
	courierID, ok := common.RequireUserID(c, middleware.GetUserID)
	if !ok {
		return
	}

	var req validation.UpdateAvailabilityRequest
	if !common.BindJSON(c, &req) {
		return
	}

	profile, err := h.service.SetAvailability(c.Request.Context(), courierID, &req)
	if common.HandleServiceError(c, err, "failed to update availability") {
		return
	}

	common.SuccessResponse(c, "courier", profile)
}

// Earnings returns the earnings summary for ?period=day|week|month|all.
func (h *Handler) Earnings(c *gin.Context) {
	courierID, ok := common.RequireUserID(c, middleware.GetUserID)
	if !ok {
		return
	}

	summary, err := h.service.Earnings(c.Request.Context(), courierID, c.Query("period"))
	if common.HandleServiceError(c, err, "failed to aggregate earnings") {
		return
	}

	common.SuccessResponse(c, "earnings", summary)
}

// RequestPayout withdraws the calling courier's current balance.
func (h *Handler) RequestPayout(c *gin.Context) {
	courierID, ok := common.RequireUserID(c, middleware.GetUserID)
	if !ok {
		return
	}

	payout, err := h.service.RequestPayout(c.Request.Context(), courierID)
	if common.HandleServiceError(c, err, "failed to process payout") {
		return
	}

	common.CreatedResponse(c, "payout", payout)
}
