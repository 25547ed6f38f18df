package delivery

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/richxcame/courier-dispatch/pkg/common"
	"github.com/richxcame/courier-dispatch/pkg/middleware"
	"github.com/richxcame/courier-dispatch/pkg/pagination"
	"github.com/richxcame/courier-dispatch/pkg/validation"
)

// Handler handles HTTP requests for deliveries
type Handler struct {
	service *Service
}

// NewHandler creates a new delivery handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Estimate prices a prospective delivery without creating it.
func (h *Handler) Estimate(c *gin.Context) {
	userID, ok := common.RequireUserID(c, middleware.GetUserID)
	if !ok {
		return
	}

	var req validation.EstimateRequest
	if !common.BindJSON(c, &req) {
		return
	}

	estimate, err := h.service.Estimate(c.Request.Context(), userID, &req)
	if common.HandleServiceError(c, err, "failed to estimate delivery") {
		return
	}

	common.SuccessResponse(c, "estimate", estimate)
}

// Create books a delivery: payment hold, tracking links, courier search.
func (h *Handler) Create(c *gin.Context) {
	userID, ok := common.RequireUserID(c, middleware.GetUserID)
	if !ok {
		return
	}

	var req validation.CreateDeliveryRequest
	if !common.BindJSON(c, &req) {
		return
	}

	result, err := h.service.Create(c.Request.Context(), userID, &req)
	if common.HandleServiceError(c, err, "failed to create delivery") {
		return
	}

	common.CreatedEnvelope(c, common.Envelope{
		"delivery":      result.Delivery,
		"payment":       result.Payment,
		"tracking_urls": result.TrackingURLs,
	})
}

// List returns the caller's deliveries with optional status and date filters.
func (h *Handler) List(c *gin.Context) {
	userID, ok := common.RequireUserID(c, middleware.GetUserID)
	if !ok {
		return
	}
	role, _ := middleware.GetUserRole(c)

	params := pagination.ParseParams(c)

	filters := &ListFilters{}
	if status := c.Query("status"); status != "" {
		filters.Status = &status
	}
	if from := c.Query("from_date"); from != "" {
		t, err := time.Parse(time.RFC3339, from)
		if err != nil {
			common.ErrorResponse(c, 400, "invalid from_date, expected RFC3339")
			return
		}
		filters.FromDate = &t
	}
	if to := c.Query("to_date"); to != "" {
		t, err := time.Parse(time.RFC3339, to)
		if err != nil {
			common.ErrorResponse(c, 400, "invalid to_date, expected RFC3339")
			return
		}
		filters.ToDate = &t
	}

	deliveries, total, err := h.service.List(c.Request.Context(), userID, role, filters, params.Limit, params.Offset)
	if common.HandleServiceError(c, err, "failed to list deliveries") {
		return
	}

	common.SuccessResponseWithMeta(c, "deliveries", deliveries, pagination.BuildMeta(params.Limit, params.Offset, total))
}

// Get returns one delivery with its status timeline. Authenticated parties
// get the full record; a ?tracking_token= query gets the public view.
func (h *Handler) Get(c *gin.Context) {
	deliveryID, ok := common.ParseUUIDParam(c, "id", "delivery ID")
	if !ok {
		return
	}

	req := Requester{TrackingToken: c.Query("tracking_token")}
	if userID, err := middleware.GetUserID(c); err == nil {
		req.UserID = userID
		req.Role, _ = middleware.GetUserRole(c)
	}
	if req.UserID == uuid.Nil && req.TrackingToken == "" {
		common.ErrorResponse(c, 401, "authentication or a tracking token is required")
		return
	}

	view, err := h.service.Get(c.Request.Context(), deliveryID, req)
	if common.HandleServiceError(c, err, "failed to get delivery") {
		return
	}

	common.SuccessEnvelope(c, common.Envelope{
		"delivery": view.Delivery,
		"events":   view.Events,
	})
}

// Cancel cancels a delivery and reports the refund split.
func (h *Handler) Cancel(c *gin.Context) {
	userID, ok := common.RequireUserID(c, middleware.GetUserID)
	if !ok {
		return
	}
	role, _ := middleware.GetUserRole(c)

	deliveryID, ok := common.ParseUUIDParam(c, "id", "delivery ID")
	if !ok {
		return
	}

	var req struct {
		Reason string `json:"reason" binding:"required,min=1,max=500"`
	}
	if !common.BindJSON(c, &req) {
		return
	}

	result, err := h.service.Cancel(c.Request.Context(), deliveryID, userID, role, req.Reason)
	if common.HandleServiceError(c, err, "failed to cancel delivery") {
		return
	}

	common.SuccessEnvelope(c, common.Envelope{
		"delivery":         result.Delivery,
		"refund_amount":    result.RefundAmount,
		"cancellation_fee": result.CancellationFee,
	})
}

// AcceptDelivery claims a searching delivery for the calling courier. First
// accept wins; everyone else gets a conflict.
func (h *Handler) AcceptDelivery(c *gin.Context) {
	courierID, ok := common.RequireUserID(c, middleware.GetUserID)
	if !ok {
		return
	}

	deliveryID, ok := common.ParseUUIDParam(c, "id", "delivery ID")
	if !ok {
		return
	}

	delivery, err := h.service.Claim(c.Request.Context(), deliveryID, courierID)
	if common.HandleServiceError(c, err, "failed to accept delivery") {
		return
	}

	common.SuccessResponse(c, "delivery", delivery)
}

// UpdateDeliveryStatus applies a courier-driven lifecycle transition.
func (h *Handler) UpdateDeliveryStatus(c *gin.Context) {
	courierID, ok := common.RequireUserID(c, middleware.GetUserID)
	if !ok {
		return
	}

	deliveryID, ok := common.ParseUUIDParam(c, "id", "delivery ID")
	if !ok {
		return
	}

	var req validation.UpdateDeliveryStatusRequest
	if !common.BindJSON(c, &req) {
		return
	}

	delivery, err := h.service.UpdateStatus(c.Request.Context(), deliveryID, courierID, &req)
	if common.HandleServiceError(c, err, "failed to update delivery status") {
		return
	}

	common.SuccessResponse(c, "delivery", delivery)
}

// GetActiveDelivery returns the courier's in-flight delivery, if any.
func (h *Handler) GetActiveDelivery(c *gin.Context) {
	courierID, ok := common.RequireUserID(c, middleware.GetUserID)
	if !ok {
		return
	}

	view, err := h.service.GetActiveForCourier(c.Request.Context(), courierID)
	if common.HandleServiceError(c, err, "failed to get active delivery") {
		return
	}

	common.SuccessEnvelope(c, common.Envelope{
		"delivery": view.Delivery,
		"events":   view.Events,
	})
}
