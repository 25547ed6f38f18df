package notifications

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/richxcame/courier-dispatch/pkg/eventbus"
	"github.com/richxcame/courier-dispatch/pkg/logger"
)

// statusTitles maps the lifecycle milestones a sender cares about to feed
// copy. Pre-pickup courier mechanics (en route, approaching, at pickup) are
// left out; they arrive over the live channel and would only pile up here.
var statusTitles = map[string]struct{ title, body string }{
	"picked_up":           {"Package picked up", "Your courier has your package."},
	"in_transit":          {"On the way", "Your package is in transit to the dropoff."},
	"approaching_dropoff": {"Courier nearby", "Your courier is close to the dropoff."},
	"at_dropoff":          {"Courier arrived", "Your courier is at the dropoff location."},
	"failed":              {"Delivery failed", "The courier could not complete the delivery."},
	"returned":            {"Package returned", "Your package is being returned to the pickup."},
}

// EventHandler turns lifecycle, payment and chat events into persistent feed
// entries. A failed write is logged and acked rather than redelivered: the
// feed is advisory and a retry would duplicate the sibling entries already
// written for the same event.
type EventHandler struct {
	service *Service
}

// NewEventHandler creates an event handler backed by the notification service.
func NewEventHandler(service *Service) *EventHandler {
	return &EventHandler{service: service}
}

// RegisterSubscriptions subscribes to delivery lifecycle and chat events.
func (h *EventHandler) RegisterSubscriptions(ctx context.Context, bus *eventbus.Bus) error {
	if err := bus.Subscribe(ctx, "deliveries.>", "notifications-deliveries", h.handleDeliveryEvent); err != nil {
		return fmt.Errorf("subscribe to delivery events: %w", err)
	}
	if err := bus.Subscribe(ctx, eventbus.SubjectMessageSent, "notifications-messages", h.handleMessageEvent); err != nil {
		return fmt.Errorf("subscribe to message events: %w", err)
	}
	logger.Info("notifications: subscribed to delivery and message events")
	return nil
}

func (h *EventHandler) handleDeliveryEvent(ctx context.Context, event *eventbus.Event) error {
	switch event.Type {
	case "delivery.assigned":
		return h.onAssigned(ctx, event)
	case "delivery.status_changed":
		return h.onStatusChanged(ctx, event)
	case "delivery.completed":
		return h.onCompleted(ctx, event)
	case "delivery.cancelled":
		return h.onCancelled(ctx, event)
	case "delivery.search_expired":
		return h.onSearchExpired(ctx, event)
	case "delivery.rated":
		return h.onRated(ctx, event)
	case "payment.captured":
		return h.onPaymentCaptured(ctx, event)
	case "payment.refunded":
		return h.onPaymentRefunded(ctx, event)
	default:
		// offers, ETA updates and raw status echoes stay off the feed
		logger.Debug("notifications: ignoring event", zap.String("type", event.Type))
		return nil
	}
}

func (h *EventHandler) onAssigned(ctx context.Context, event *eventbus.Event) error {
	var data eventbus.DeliveryAssignedData
	if err := json.Unmarshal(event.Data, &data); err != nil {
		logger.Warn("notifications: dropping unparsable assigned event", zap.Error(err))
		return nil
	}

	h.notify(ctx, &Notification{
		UserID:     data.SenderID,
		Type:       TypeStatusUpdate,
		Title:      "Courier assigned",
		Content:    fmt.Sprintf("%s accepted your delivery and is heading to the pickup.", data.CourierName),
		DeliveryID: &data.DeliveryID,
		SendPush:   true,
	})
	return nil
}

func (h *EventHandler) onStatusChanged(ctx context.Context, event *eventbus.Event) error {
	var data eventbus.DeliveryStatusChangedData
	if err := json.Unmarshal(event.Data, &data); err != nil {
		logger.Warn("notifications: dropping unparsable status event", zap.Error(err))
		return nil
	}

	text, ok := statusTitles[data.NewStatus]
	if !ok {
		return nil
	}

	h.notify(ctx, &Notification{
		UserID:     data.SenderID,
		Type:       TypeStatusUpdate,
		Title:      text.title,
		Content:    text.body,
		DeliveryID: &data.DeliveryID,
		SendPush:   true,
	})
	return nil
}

func (h *EventHandler) onCompleted(ctx context.Context, event *eventbus.Event) error {
	var data eventbus.DeliveryCompletedData
	if err := json.Unmarshal(event.Data, &data); err != nil {
		logger.Warn("notifications: dropping unparsable completed event", zap.Error(err))
		return nil
	}

	h.notify(ctx, &Notification{
		UserID:     data.SenderID,
		Type:       TypeStatusUpdate,
		Title:      "Package delivered",
		Content:    "Your package has been delivered. Thanks for sending with us!",
		DeliveryID: &data.DeliveryID,
		SendPush:   true,
	})
	h.notify(ctx, &Notification{
		UserID:     data.CourierID,
		Type:       TypePayment,
		Title:      "Delivery complete",
		Content:    fmt.Sprintf("You earned $%.2f for this delivery.", data.CourierEarnings),
		DeliveryID: &data.DeliveryID,
		SendPush:   true,
	})
	return nil
}

func (h *EventHandler) onCancelled(ctx context.Context, event *eventbus.Event) error {
	var data eventbus.DeliveryCancelledData
	if err := json.Unmarshal(event.Data, &data); err != nil {
		logger.Warn("notifications: dropping unparsable cancelled event", zap.Error(err))
		return nil
	}

	// Tell the counterparty, not whoever pulled the trigger.
	if data.CancelledBy == "sender" {
		if data.CourierID == uuid.Nil {
			return nil
		}
		h.notify(ctx, &Notification{
			UserID:     data.CourierID,
			Type:       TypeStatusUpdate,
			Title:      "Delivery cancelled",
			Content:    "The sender cancelled the delivery you were assigned to.",
			DeliveryID: &data.DeliveryID,
			SendPush:   true,
		})
		return nil
	}

	content := "Your delivery was cancelled."
	if data.RefundAmount > 0 {
		content = fmt.Sprintf("Your delivery was cancelled. $%.2f is on its way back to you.", data.RefundAmount)
	}
	h.notify(ctx, &Notification{
		UserID:     data.SenderID,
		Type:       TypeStatusUpdate,
		Title:      "Delivery cancelled",
		Content:    content,
		DeliveryID: &data.DeliveryID,
		SendPush:   true,
	})
	return nil
}

func (h *EventHandler) onSearchExpired(ctx context.Context, event *eventbus.Event) error {
	var data eventbus.SearchExpiredData
	if err := json.Unmarshal(event.Data, &data); err != nil {
		logger.Warn("notifications: dropping unparsable search event", zap.Error(err))
		return nil
	}

	h.notify(ctx, &Notification{
		UserID:     data.SenderID,
		Type:       TypeSystem,
		Title:      "Still looking for a courier",
		Content:    "No courier has picked up your delivery yet. We'll keep trying, or you can cancel for a full refund.",
		DeliveryID: &data.DeliveryID,
		SendPush:   true,
	})
	return nil
}

func (h *EventHandler) onRated(ctx context.Context, event *eventbus.Event) error {
	var data eventbus.DeliveryRatedData
	if err := json.Unmarshal(event.Data, &data); err != nil {
		logger.Warn("notifications: dropping unparsable rating event", zap.Error(err))
		return nil
	}

	h.notify(ctx, &Notification{
		UserID:     data.RateeID,
		Type:       TypeRating,
		Title:      "New rating",
		Content:    fmt.Sprintf("You received a %d-star rating on a recent delivery.", data.Rating),
		DeliveryID: &data.DeliveryID,
		SendPush:   true,
	})
	return nil
}

func (h *EventHandler) onPaymentCaptured(ctx context.Context, event *eventbus.Event) error {
	var data eventbus.PaymentCapturedData
	if err := json.Unmarshal(event.Data, &data); err != nil {
		logger.Warn("notifications: dropping unparsable capture event", zap.Error(err))
		return nil
	}

	h.notify(ctx, &Notification{
		UserID:     data.SenderID,
		Type:       TypePayment,
		Title:      "Payment receipt",
		Content:    fmt.Sprintf("$%.2f was charged for your delivery.", data.Amount),
		DeliveryID: &data.DeliveryID,
		SendPush:   true,
		SendEmail:  true,
	})
	return nil
}

func (h *EventHandler) onPaymentRefunded(ctx context.Context, event *eventbus.Event) error {
	var data eventbus.PaymentRefundedData
	if err := json.Unmarshal(event.Data, &data); err != nil {
		logger.Warn("notifications: dropping unparsable refund event", zap.Error(err))
		return nil
	}

	h.notify(ctx, &Notification{
		UserID:     data.SenderID,
		Type:       TypePayment,
		Title:      "Refund issued",
		Content:    fmt.Sprintf("$%.2f was refunded to your payment method.", data.Amount),
		DeliveryID: &data.DeliveryID,
		SendPush:   true,
		SendEmail:  true,
	})
	return nil
}

func (h *EventHandler) handleMessageEvent(ctx context.Context, event *eventbus.Event) error {
	if event.Type != "message.sent" {
		return nil
	}

	var data eventbus.MessageSentData
	if err := json.Unmarshal(event.Data, &data); err != nil {
		logger.Warn("notifications: dropping unparsable message event", zap.Error(err))
		return nil
	}

	h.notify(ctx, &Notification{
		UserID:     data.RecipientID,
		Type:       TypeMessage,
		Title:      "New message",
		Content:    preview(data.Content),
		DeliveryID: &data.DeliveryID,
		SendPush:   true,
	})
	return nil
}

func (h *EventHandler) notify(ctx context.Context, n *Notification) {
	if _, err := h.service.Notify(ctx, n); err != nil {
		logger.Warn("notifications: failed to write feed entry",
			zap.String("user_id", n.UserID.String()),
			zap.String("type", n.Type),
			zap.Error(err),
		)
	}
}

// preview truncates chat content for the feed.
func preview(content string) string {
	const max = 80
	runes := []rune(content)
	if len(runes) <= max {
		return content
	}
	return string(runes[:max]) + "..."
}
