package dispatch

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/richxcame/courier-dispatch/pkg/eventbus"
	"github.com/richxcame/courier-dispatch/pkg/logger"
)

// EventHandler drives the dispatcher from delivery lifecycle events: a new
// search fans offers out, an assignment or cancellation revokes whatever is
// still open. Handler errors nack, so JetStream redelivers the fan-out.
type EventHandler struct {
	service *Service
}

// NewEventHandler creates an event handler backed by the dispatch service.
func NewEventHandler(service *Service) *EventHandler {
	return &EventHandler{service: service}
}

// RegisterSubscriptions subscribes the dispatcher to delivery events.
func (h *EventHandler) RegisterSubscriptions(ctx context.Context, bus *eventbus.Bus) error {
	subs := []struct {
		subject  string
		consumer string
		handler  eventbus.HandlerFunc
	}{
		{eventbus.SubjectDeliveryRequested, "dispatch-requested", h.handleRequested},
		{eventbus.SubjectDeliveryAssigned, "dispatch-assigned", h.handleAssigned},
		{eventbus.SubjectDeliveryCancelled, "dispatch-cancelled", h.handleCancelled},
	}
	for _, sub := range subs {
		if err := bus.Subscribe(ctx, sub.subject, sub.consumer, sub.handler); err != nil {
			return fmt.Errorf("subscribe to %s: %w", sub.subject, err)
		}
	}
	logger.Info("dispatch: subscribed to delivery lifecycle events")
	return nil
}

func (h *EventHandler) handleRequested(ctx context.Context, event *eventbus.Event) error {
	var data eventbus.DeliveryRequestedData
	if err := json.Unmarshal(event.Data, &data); err != nil {
		return fmt.Errorf("unmarshal delivery requested: %w", err)
	}
	return h.service.HandleDeliveryRequested(ctx, &data)
}

func (h *EventHandler) handleAssigned(ctx context.Context, event *eventbus.Event) error {
	var data eventbus.DeliveryAssignedData
	if err := json.Unmarshal(event.Data, &data); err != nil {
		return fmt.Errorf("unmarshal delivery assigned: %w", err)
	}
	return h.service.HandleDeliveryAssigned(ctx, &data)
}

func (h *EventHandler) handleCancelled(ctx context.Context, event *eventbus.Event) error {
	var data eventbus.DeliveryCancelledData
	if err := json.Unmarshal(event.Data, &data); err != nil {
		return fmt.Errorf("unmarshal delivery cancelled: %w", err)
	}
	return h.service.HandleDeliveryCancelled(ctx, &data)
}
