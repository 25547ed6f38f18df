package realtime

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/richxcame/courier-dispatch/pkg/common"
	"github.com/richxcame/courier-dispatch/pkg/eventbus"
	"github.com/richxcame/courier-dispatch/pkg/logger"
	ws "github.com/richxcame/courier-dispatch/pkg/websocket"
)

const (
	// queryTimeout bounds admission lookups issued from frame handlers.
	queryTimeout = 5 * time.Second

	// publishTimeout bounds the forward of a location sample onto the bus.
	publishTimeout = 5 * time.Second
)

// Service owns the gateway side of the realtime channel: it admits clients
// to delivery rooms, relays typing indicators between room members, and
// forwards courier location samples onto the bus for the ingest pipeline.
type Service struct {
	hub *ws.Hub
	db  *sql.DB
	bus Publisher
}

// NewService creates the realtime service and registers its frame handlers.
func NewService(hub *ws.Hub, db *sql.DB, bus Publisher) *Service {
	s := &Service{
		hub: hub,
		db:  db,
		bus: bus,
	}
	s.registerHandlers()
	return s
}

// registerHandlers registers handlers for all inbound frame types
func (s *Service) registerHandlers() {
	s.hub.RegisterHandler("join_delivery", s.handleJoinDelivery)
	s.hub.RegisterHandler("leave_delivery", s.handleLeaveDelivery)
	s.hub.RegisterHandler("location_update", s.handleLocationUpdate)
	s.hub.RegisterHandler("typing", s.handleTyping)
}

// handleJoinDelivery admits a client to a delivery room. Admission is checked
// on subscribe, not per message: senders and couriers must be a party to the
// delivery, tracking-token viewers are bound to their delivery at connect
// time, admins may watch anything.
func (s *Service) handleJoinDelivery(client *ws.Client, msg *ws.Message) {
	deliveryID := msg.DeliveryID
	if deliveryID == "" {
		deliveryID = stringField(msg.Data, "delivery_id")
	}
	if deliveryID == "" {
		s.sendError(client, "delivery_id is required")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	allowed, err := s.mayWatchDelivery(ctx, client, deliveryID)
	if err != nil {
		logger.Warn("realtime: admission check failed",
			zap.String("client_id", client.ID),
			zap.String("delivery_id", deliveryID),
			zap.Error(err),
		)
	}
	if !allowed {
		s.sendError(client, "not authorized for this delivery")
		return
	}

	s.hub.AddClientToDelivery(client.ID, deliveryID)
}

// handleLeaveDelivery removes a client from its current delivery room
func (s *Service) handleLeaveDelivery(client *ws.Client, _ *ws.Message) {
	deliveryID := client.GetDelivery()
	if deliveryID == "" {
		return
	}
	s.hub.RemoveClientFromDelivery(client.ID, deliveryID)
}

// handleLocationUpdate forwards a courier location sample to the ingest
// pipeline over the bus. The gateway does not validate coordinates beyond
// presence; the ingest service owns validation, persistence and fan-out of
// the accepted sample back to the delivery room.
func (s *Service) handleLocationUpdate(client *ws.Client, msg *ws.Message) {
	if client.Role != "courier" {
		s.sendError(client, "only couriers can publish location updates")
		return
	}

	courierID, err := uuid.Parse(client.ID)
	if err != nil {
		s.sendError(client, "invalid courier identity")
		return
	}

	lat, latOK := msg.Data["latitude"].(float64)
	lng, lngOK := msg.Data["longitude"].(float64)
	if !latOK || !lngOK {
		s.sendError(client, "latitude and longitude are required")
		return
	}

	sampledAt := msg.Timestamp
	if sampledAt.IsZero() {
		sampledAt = time.Now()
	}
	if raw := stringField(msg.Data, "sampled_at"); raw != "" {
		if ts, err := time.Parse(time.RFC3339, raw); err == nil {
			sampledAt = ts
		}
	}

	sample := eventbus.CourierLocationSampleData{
		CourierID: courierID,
		Latitude:  lat,
		Longitude: lng,
		Accuracy:  floatField(msg.Data, "accuracy"),
		Heading:   floatField(msg.Data, "heading"),
		SpeedMps:  floatField(msg.Data, "speed_mps"),
		SampledAt: sampledAt.UTC(),
	}
	if battery, ok := msg.Data["battery_level"].(float64); ok {
		sample.Battery = &battery
	}

	if s.bus == nil {
		return
	}
	evt, err := eventbus.NewEvent("courier.location_sample", "realtime-gateway", sample)
	if err != nil {
		logger.Warn("realtime: failed to build location event", zap.Error(err))
		return
	}

	// Publish synchronously so samples from one connection stay ordered.
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := s.bus.Publish(ctx, eventbus.SubjectCourierLocation, evt); err != nil {
		logger.Warn("realtime: failed to forward location sample",
			zap.String("courier_id", client.ID),
			zap.Error(err),
		)
	}
}

// handleTyping relays a typing indicator to the other members of the
// client's delivery room
func (s *Service) handleTyping(client *ws.Client, msg *ws.Message) {
	deliveryID := client.GetDelivery()
	if deliveryID == "" {
		return
	}

	isTyping, ok := msg.Data["is_typing"].(bool)
	if !ok {
		return
	}

	for _, peer := range s.hub.GetClientsInDelivery(deliveryID) {
		if peer.ID == client.ID {
			continue
		}
		peer.SendMessage(&ws.Message{
			Type:       "typing_indicator",
			DeliveryID: deliveryID,
			UserID:     client.ID,
			Timestamp:  time.Now(),
			Data: map[string]interface{}{
				"is_typing":   isTyping,
				"sender_id":   client.ID,
				"sender_role": client.Role,
			},
		})
	}
}

// mayWatchDelivery decides room admission for a client
func (s *Service) mayWatchDelivery(ctx context.Context, client *ws.Client, deliveryID string) (bool, error) {
	switch client.Role {
	case "admin":
		return true, nil
	case "viewer":
		// Tracking sessions are bound to one delivery at connect time.
		return client.GetDelivery() == deliveryID, nil
	default:
		return s.isDeliveryParty(ctx, deliveryID, client.ID)
	}
}

// isDeliveryParty reports whether the user is the sender or the assigned
// courier of the delivery
func (s *Service) isDeliveryParty(ctx context.Context, deliveryID, userID string) (bool, error) {
	query := `
		SELECT COUNT(*) FROM deliveries
		WHERE id = $1 AND (sender_id = $2 OR courier_id = $2)
	`
	var count int
	if err := s.db.QueryRowContext(ctx, query, deliveryID, userID).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to check delivery membership: %w", err)
	}
	return count > 0, nil
}

// AuthorizeTrackingToken validates an opaque tracking token and returns the
// bound delivery ID. Each successful validation counts as an access.
func (s *Service) AuthorizeTrackingToken(ctx context.Context, token string) (string, error) {
	query := `
		UPDATE tracking_links
		SET access_count = access_count + 1, last_accessed_at = NOW()
		WHERE token = $1 AND expires_at > NOW()
		RETURNING delivery_id
	`
	var deliveryID string
	err := s.db.QueryRowContext(ctx, query, token).Scan(&deliveryID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", common.NewUnauthorizedError("invalid or expired tracking token")
	}
	if err != nil {
		return "", fmt.Errorf("failed to validate tracking token: %w", err)
	}
	return deliveryID, nil
}

// sendError pushes an error frame to a single client
func (s *Service) sendError(client *ws.Client, message string) {
	client.SendMessage(&ws.Message{
		Type:      "error",
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"message": message,
		},
	})
}

// GetHub returns the WebSocket hub
func (s *Service) GetHub() *ws.Hub {
	return s.hub
}

// GetStats returns connection statistics
func (s *Service) GetStats() map[string]interface{} {
	return map[string]interface{}{
		"connected_clients": s.hub.GetClientCount(),
		"active_deliveries": s.hub.GetDeliveryCount(),
	}
}

func stringField(data map[string]interface{}, key string) string {
	v, _ := data[key].(string)
	return v
}

func floatField(data map[string]interface{}, key string) float64 {
	v, _ := data[key].(float64)
	return v
}
