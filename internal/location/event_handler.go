package location

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/richxcame/courier-dispatch/pkg/common"
	"github.com/richxcame/courier-dispatch/pkg/eventbus"
	"github.com/richxcame/courier-dispatch/pkg/logger"
	"github.com/richxcame/courier-dispatch/pkg/validation"
)

// EventHandler ingests raw location samples forwarded by the realtime
// gateway over NATS. Samples that fail validation are dropped with a log
// line instead of nacked: redelivering a malformed sample never fixes it.
type EventHandler struct {
	service *Service
}

// NewEventHandler creates an event handler backed by the location service.
func NewEventHandler(service *Service) *EventHandler {
	return &EventHandler{service: service}
}

// RegisterSubscriptions subscribes to the raw courier location channel.
func (h *EventHandler) RegisterSubscriptions(ctx context.Context, bus *eventbus.Bus) error {
	if err := bus.Subscribe(ctx, eventbus.SubjectCourierLocation, "location-ingest", h.handleSample); err != nil {
		return fmt.Errorf("subscribe to %s: %w", eventbus.SubjectCourierLocation, err)
	}
	logger.Info("location: subscribed to courier location samples")
	return nil
}

func (h *EventHandler) handleSample(ctx context.Context, event *eventbus.Event) error {
	var data eventbus.CourierLocationSampleData
	if err := json.Unmarshal(event.Data, &data); err != nil {
		logger.Warn("location: dropping unparsable sample", zap.Error(err))
		return nil
	}

	req := &validation.UpdateLocationRequest{
		Latitude:     data.Latitude,
		Longitude:    data.Longitude,
		Accuracy:     data.Accuracy,
		Heading:      data.Heading,
		SpeedMps:     data.SpeedMps,
		BatteryLevel: data.Battery,
	}
	if !data.SampledAt.IsZero() {
		req.SampledAt = &data.SampledAt
	}

	if _, err := h.service.Ingest(ctx, data.CourierID, req); err != nil {
		if appErr, ok := common.AsAppError(err); ok && appErr.ErrorCode == common.CodeValidation {
			logger.Warn("location: dropping invalid sample",
				zap.String("courier_id", data.CourierID.String()),
				zap.String("reason", appErr.Message))
			return nil
		}
		return fmt.Errorf("ingest location sample: %w", err)
	}
	return nil
}
