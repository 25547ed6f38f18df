package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/richxcame/courier-dispatch/pkg/eventbus"
	"github.com/richxcame/courier-dispatch/pkg/logger"
	ws "github.com/richxcame/courier-dispatch/pkg/websocket"
)

// EventHandler fans bus events out to connected WebSocket clients. Delivery
// toward clients is at-most-once: every handler acks, and a client that
// missed a frame recovers state by re-reading from the API. Personal events
// go to user rooms, per-delivery events to delivery rooms.
type EventHandler struct {
	service *Service
}

// NewEventHandler creates an event handler backed by the realtime service.
func NewEventHandler(service *Service) *EventHandler {
	return &EventHandler{service: service}
}

// RegisterSubscriptions wires the gateway's bus consumers.
func (h *EventHandler) RegisterSubscriptions(ctx context.Context, bus *eventbus.Bus) error {
	if err := bus.Subscribe(ctx, "deliveries.>", "realtime-deliveries", h.handleDeliveryEvent); err != nil {
		return fmt.Errorf("subscribe to deliveries: %w", err)
	}
	if err := bus.Subscribe(ctx, eventbus.SubjectCourierLocationUpdated, "realtime-locations", h.handleLocationUpdated); err != nil {
		return fmt.Errorf("subscribe to %s: %w", eventbus.SubjectCourierLocationUpdated, err)
	}
	if err := bus.Subscribe(ctx, "messages.>", "realtime-messages", h.handleMessageEvent); err != nil {
		return fmt.Errorf("subscribe to messages: %w", err)
	}
	if err := bus.Subscribe(ctx, eventbus.SubjectNotificationCreated, "realtime-notifications", h.handleNotificationCreated); err != nil {
		return fmt.Errorf("subscribe to %s: %w", eventbus.SubjectNotificationCreated, err)
	}
	logger.Info("realtime: subscribed to bus events")
	return nil
}

// handleDeliveryEvent pushes offer, assignment, status and search-expiry
// frames. Completion and cancellation reach rooms through their status
// change; persistent notices arrive via notifications.created.
func (h *EventHandler) handleDeliveryEvent(_ context.Context, event *eventbus.Event) error {
	switch event.Type {
	case "delivery.offered":
		var data eventbus.DeliveryOfferedData
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return h.dropUnparsable(event, err)
		}
		h.service.hub.SendToUser(data.CourierID.String(), h.frame("delivery_request", data.DeliveryID.String(), event))

	case "delivery.assigned":
		var data eventbus.DeliveryAssignedData
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return h.dropUnparsable(event, err)
		}
		h.service.hub.SendToUser(data.SenderID.String(), h.frame("delivery_request_accepted", data.DeliveryID.String(), event))

	case "delivery.status_changed":
		var data eventbus.DeliveryStatusChangedData
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return h.dropUnparsable(event, err)
		}
		h.service.hub.SendToDelivery(data.DeliveryID.String(), h.frame("delivery_status_change", data.DeliveryID.String(), event))

	case "delivery.search_expired":
		var data eventbus.SearchExpiredData
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return h.dropUnparsable(event, err)
		}
		h.service.hub.SendToUser(data.SenderID.String(), h.frame("search_expired", data.DeliveryID.String(), event))
	}
	return nil
}

// handleLocationUpdated pushes accepted courier positions to the delivery room
func (h *EventHandler) handleLocationUpdated(_ context.Context, event *eventbus.Event) error {
	var data eventbus.CourierLocationUpdatedData
	if err := json.Unmarshal(event.Data, &data); err != nil {
		return h.dropUnparsable(event, err)
	}

	// Idle couriers have no room to notify.
	if data.DeliveryID == nil {
		return nil
	}

	msg := h.frame("track_delivery_location", data.DeliveryID.String(), event)
	msg.UserID = data.CourierID.String()
	h.service.hub.SendToDelivery(data.DeliveryID.String(), msg)
	return nil
}

// handleMessageEvent pushes chat frames to the delivery room
func (h *EventHandler) handleMessageEvent(_ context.Context, event *eventbus.Event) error {
	switch event.Type {
	case "message.sent":
		var data eventbus.MessageSentData
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return h.dropUnparsable(event, err)
		}
		msg := h.frame("new_message", data.DeliveryID.String(), event)
		if data.SenderID != nil {
			msg.UserID = data.SenderID.String()
		}
		h.service.hub.SendToDelivery(data.DeliveryID.String(), msg)

	case "message.read":
		var data eventbus.MessageReadData
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return h.dropUnparsable(event, err)
		}
		msg := h.frame("message_read", data.DeliveryID.String(), event)
		msg.UserID = data.ReaderID.String()
		h.service.hub.SendToDelivery(data.DeliveryID.String(), msg)
	}
	return nil
}

// handleNotificationCreated pushes a notification frame to its user
func (h *EventHandler) handleNotificationCreated(_ context.Context, event *eventbus.Event) error {
	var data eventbus.NotificationCreatedData
	if err := json.Unmarshal(event.Data, &data); err != nil {
		return h.dropUnparsable(event, err)
	}

	h.service.hub.SendToUser(data.UserID.String(), &ws.Message{
		Type:      "notification",
		UserID:    data.UserID.String(),
		Timestamp: event.Timestamp,
		Data:      framePayload(event.Data),
	})
	return nil
}

// frame converts a bus event into a client frame, carrying the payload
// through with the field names it had on the wire.
func (h *EventHandler) frame(frameType, deliveryID string, event *eventbus.Event) *ws.Message {
	return &ws.Message{
		Type:       frameType,
		DeliveryID: deliveryID,
		Timestamp:  event.Timestamp,
		Data:       framePayload(event.Data),
	}
}

func framePayload(raw json.RawMessage) map[string]interface{} {
	payload := map[string]interface{}{}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return map[string]interface{}{}
	}
	return payload
}

func (h *EventHandler) dropUnparsable(event *eventbus.Event, err error) error {
	logger.Warn("realtime: dropping unparsable event",
		zap.String("type", event.Type),
		zap.Error(err),
	)
	return nil
}
