package location

import (
	"context"
	"encoding/json"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/richxcame/courier-dispatch/internal/delivery"
	"github.com/richxcame/courier-dispatch/pkg/async"
	"github.com/richxcame/courier-dispatch/pkg/cache"
	"github.com/richxcame/courier-dispatch/pkg/common"
	"github.com/richxcame/courier-dispatch/pkg/eventbus"
	"github.com/richxcame/courier-dispatch/pkg/geo"
	"github.com/richxcame/courier-dispatch/pkg/logger"
	"github.com/richxcame/courier-dispatch/pkg/validation"
)

const (
	// presenceTTL keeps a silent courier discoverable for a few minutes
	// before falling out of the geo index snapshot.
	presenceTTL = 5 * time.Minute

	// Proximity thresholds for the automatic approach transitions.
	approachPickupMeters  = 200.0
	approachDropoffMeters = 500.0

	// speedFloorMps keeps the ETA finite while the courier is stopped.
	speedFloorMps = 8.0

	// etaMinInterval throttles ETA recomputation per courier.
	etaMinInterval = 5 * time.Second
)

// Service ingests courier position samples: persists them, advances the
// courier profile, refreshes Redis presence, and drives proximity transitions
// and ETA updates for the active delivery.
type Service struct {
	repo       RepositoryInterface
	deliveries DeliveryService
	presence   PresenceStore
	eventBus   *eventbus.Bus

	mu      sync.Mutex
	lastETA map[uuid.UUID]time.Time
}

// NewService creates a new location service
func NewService(repo RepositoryInterface, deliveries DeliveryService, presence PresenceStore) *Service {
	return &Service{
		repo:       repo,
		deliveries: deliveries,
		presence:   presence,
		lastETA:    make(map[uuid.UUID]time.Time),
	}
}

// SetEventBus sets the NATS event bus for publishing location events
func (s *Service) SetEventBus(bus *eventbus.Bus) {
	s.eventBus = bus
}

// publishEvent publishes an event asynchronously
func (s *Service) publishEvent(subject string, eventType string, data interface{}) {
	if s.eventBus == nil {
		return
	}
	async.GoWithTimeout(context.Background(), "publish "+eventType, 5*time.Second, func(ctx context.Context) {
		evt, err := eventbus.NewEvent(eventType, "location-service", data)
		if err != nil {
			logger.Warn("failed to create location event", zap.String("type", eventType), zap.Error(err))
			return
		}
		if err := s.eventBus.Publish(ctx, subject, evt); err != nil {
			logger.Warn("failed to publish location event", zap.String("type", eventType), zap.Error(err))
		}
	})
}

// Ingest processes one position sample from a courier. Reordered samples are
// discarded by the profile timestamp guard before anything is written.
func (s *Service) Ingest(ctx context.Context, courierID uuid.UUID, req *validation.UpdateLocationRequest) (*IngestResult, error) {
	if err := validation.ValidateStruct(req); err != nil {
		return nil, common.NewValidationError(err.Error())
	}

	now := time.Now()
	recordedAt := now
	if req.SampledAt != nil && req.SampledAt.Before(now) {
		recordedAt = *req.SampledAt
	}

	active, err := s.activeDelivery(ctx, courierID)
	if err != nil {
		return nil, err
	}

	h3Cell := geo.PresenceCell(req.Latitude, req.Longitude)
	accepted, err := s.repo.UpdateCourierPosition(ctx, courierID, req.Latitude, req.Longitude, h3Cell, recordedAt)
	if err != nil {
		return nil, err
	}
	if !accepted {
		return &IngestResult{Accepted: false}, nil
	}

	sample := &Sample{
		ID:           uuid.New(),
		UserID:       courierID,
		Latitude:     req.Latitude,
		Longitude:    req.Longitude,
		AccuracyM:    req.Accuracy,
		Heading:      req.Heading,
		SpeedMps:     req.SpeedMps,
		BatteryLevel: req.BatteryLevel,
		RecordedAt:   recordedAt,
		CreatedAt:    now,
	}
	if active != nil {
		sample.DeliveryID = &active.ID
	}
	if err := s.repo.InsertSample(ctx, sample); err != nil {
		return nil, err
	}

	s.refreshPresence(ctx, courierID, req, h3Cell, now)

	result := &IngestResult{Accepted: true}
	event := eventbus.CourierLocationUpdatedData{
		CourierID: courierID,
		Latitude:  req.Latitude,
		Longitude: req.Longitude,
		Heading:   req.Heading,
		Speed:     req.SpeedMps,
		H3Cell:    h3Cell,
		Timestamp: recordedAt,
	}

	if active != nil {
		result.DeliveryID = &active.ID
		event.DeliveryID = &active.ID
		s.trackDelivery(ctx, courierID, active, req, result)
		if result.EtaMinutes > 0 {
			event.EtaMinutes = result.EtaMinutes
			eta := now.Add(time.Duration(result.EtaMinutes) * time.Minute)
			event.EstimatedDeliveryTime = &eta
		}
	}

	s.publishEvent(eventbus.SubjectCourierLocationUpdated, "courier.location_updated", event)
	return result, nil
}

// activeDelivery returns the courier's in-flight delivery, or nil when there
// is none.
func (s *Service) activeDelivery(ctx context.Context, courierID uuid.UUID) (*delivery.Delivery, error) {
	view, err := s.deliveries.GetActiveForCourier(ctx, courierID)
	if err != nil {
		if appErr, ok := common.AsAppError(err); ok && appErr.ErrorCode == common.CodeNotFound {
			return nil, nil
		}
		return nil, err
	}
	return view.Delivery, nil
}

// refreshPresence rewrites the courier's geo index entry and presence
// snapshot. Presence failures are logged, not returned: the sample is already
// durable and the next sample heals the index.
func (s *Service) refreshPresence(ctx context.Context, courierID uuid.UUID, req *validation.UpdateLocationRequest, h3Cell string, now time.Time) {
	if err := s.presence.GeoAdd(ctx, cache.Keys.CourierGeoSet(), req.Longitude, req.Latitude, courierID.String()); err != nil {
		logger.Warn("failed to update courier geo index",
			zap.String("courier_id", courierID.String()),
			zap.Error(err))
	}

	snapshot, err := json.Marshal(Presence{
		CourierID: courierID,
		Latitude:  req.Latitude,
		Longitude: req.Longitude,
		H3Cell:    h3Cell,
		Heading:   req.Heading,
		SpeedMps:  req.SpeedMps,
		UpdatedAt: now,
	})
	if err != nil {
		return
	}
	if err := s.presence.SetWithExpiration(ctx, cache.Keys.CourierLocation(courierID.String()), string(snapshot), presenceTTL); err != nil {
		logger.Warn("failed to write courier presence",
			zap.String("courier_id", courierID.String()),
			zap.Error(err))
	}
}

// trackDelivery computes the distance to the delivery's current target,
// attempts the proximity transitions, and refreshes the ETA.
func (s *Service) trackDelivery(ctx context.Context, courierID uuid.UUID, active *delivery.Delivery, req *validation.UpdateLocationRequest, result *IngestResult) {
	targetLat, targetLng, toPickup := deliveryTarget(active)

	meters := geo.Meters(req.Latitude, req.Longitude, targetLat, targetLng)
	result.DistanceToTargetMiles = math.Round(geo.KmToMiles(meters/1000.0)*100) / 100

	if toPickup && meters < approachPickupMeters {
		applied, err := s.deliveries.AutoTransition(ctx, active.ID, delivery.StatusApproachingPickup, req.Latitude, req.Longitude)
		if err != nil {
			logger.Warn("approach transition failed",
				zap.String("delivery_id", active.ID.String()),
				zap.Error(err))
		} else if applied {
			result.AutoTransitionedTo = delivery.StatusApproachingPickup
		}
	}
	if !toPickup && meters < approachDropoffMeters {
		applied, err := s.deliveries.AutoTransition(ctx, active.ID, delivery.StatusApproachingDropoff, req.Latitude, req.Longitude)
		if err != nil {
			logger.Warn("approach transition failed",
				zap.String("delivery_id", active.ID.String()),
				zap.Error(err))
		} else if applied {
			result.AutoTransitionedTo = delivery.StatusApproachingDropoff
		}
	}

	if !s.shouldRecomputeETA(courierID) {
		return
	}
	etaSeconds := meters / math.Max(req.SpeedMps, speedFloorMps)
	etaMinutes := int(math.Ceil(etaSeconds / 60))
	if etaMinutes < 1 {
		etaMinutes = 1
	}
	eta := time.Now().Add(time.Duration(etaSeconds * float64(time.Second)))
	if err := s.deliveries.RecordETA(ctx, active.ID, courierID, eta, etaMinutes, result.DistanceToTargetMiles); err != nil {
		logger.Warn("failed to record ETA",
			zap.String("delivery_id", active.ID.String()),
			zap.Error(err))
		return
	}
	result.EtaMinutes = etaMinutes
}

// shouldRecomputeETA rate-limits ETA writes per courier.
func (s *Service) shouldRecomputeETA(courierID uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if last, ok := s.lastETA[courierID]; ok && time.Since(last) < etaMinInterval {
		return false
	}
	s.lastETA[courierID] = time.Now()
	return true
}

// deliveryTarget returns the point the courier is currently heading to:
// pickup until the package is picked up, dropoff afterwards.
func deliveryTarget(d *delivery.Delivery) (lat, lng float64, toPickup bool) {
	switch d.Status {
	case delivery.StatusCourierAssigned, delivery.StatusEnRouteToPickup,
		delivery.StatusApproachingPickup, delivery.StatusAtPickup:
		return d.PickupLatitude, d.PickupLongitude, true
	default:
		return d.DropoffLatitude, d.DropoffLongitude, false
	}
}

// ClearPresence removes a courier from the live geo index and presence key.
// Called when the courier goes offline.
func (s *Service) ClearPresence(ctx context.Context, courierID uuid.UUID) {
	if err := s.presence.GeoRemove(ctx, cache.Keys.CourierGeoSet(), courierID.String()); err != nil {
		logger.Warn("failed to remove courier from geo index",
			zap.String("courier_id", courierID.String()),
			zap.Error(err))
	}
	if err := s.presence.Delete(ctx, cache.Keys.CourierLocation(courierID.String())); err != nil {
		logger.Warn("failed to delete courier presence",
			zap.String("courier_id", courierID.String()),
			zap.Error(err))
	}

	s.mu.Lock()
	delete(s.lastETA, courierID)
	s.mu.Unlock()
}
