package payments

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/richxcame/courier-dispatch/pkg/eventbus"
	"github.com/richxcame/courier-dispatch/pkg/logger"
)

// EventHandler watches delivery lifecycle events and settles payments. It
// backstops the synchronous capture on the delivered path: if that call
// failed, the JetStream redelivery loop retries here until the capture
// lands.
type EventHandler struct {
	service *Service
}

// NewEventHandler creates an event handler backed by the payments service.
func NewEventHandler(service *Service) *EventHandler {
	return &EventHandler{service: service}
}

// RegisterSubscriptions subscribes to delivery status events on the bus.
func (h *EventHandler) RegisterSubscriptions(ctx context.Context, bus *eventbus.Bus) error {
	if err := bus.Subscribe(ctx, eventbus.SubjectDeliveryStatusChanged, "payments-status-changed", h.handleStatusChanged); err != nil {
		return fmt.Errorf("subscribe to %s: %w", eventbus.SubjectDeliveryStatusChanged, err)
	}
	logger.Info("payments: subscribed to delivery status events for capture settlement")
	return nil
}

func (h *EventHandler) handleStatusChanged(ctx context.Context, event *eventbus.Event) error {
	var data eventbus.DeliveryStatusChangedData
	if err := json.Unmarshal(event.Data, &data); err != nil {
		return fmt.Errorf("unmarshal status changed: %w", err)
	}

	if data.NewStatus != "delivered" {
		return nil
	}

	payment, err := h.service.CaptureForDelivery(ctx, data.DeliveryID)
	if err != nil {
		logger.Error("payments: capture for delivered delivery failed",
			zap.String("delivery_id", data.DeliveryID.String()),
			zap.Error(err),
		)
		return fmt.Errorf("capture delivery payment: %w", err)
	}

	logger.Info("payments: delivered payment settled",
		zap.String("delivery_id", data.DeliveryID.String()),
		zap.String("status", payment.Status),
	)
	return nil
}
