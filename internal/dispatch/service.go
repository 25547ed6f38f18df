package dispatch

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/richxcame/courier-dispatch/pkg/async"
	"github.com/richxcame/courier-dispatch/pkg/cache"
	"github.com/richxcame/courier-dispatch/pkg/eventbus"
	"github.com/richxcame/courier-dispatch/pkg/geo"
	"github.com/richxcame/courier-dispatch/pkg/logger"
)

const (
	// offerWindow is how long an offer stays open, capped by the scheduled
	// pickup time when one is sooner.
	offerWindow = 15 * time.Minute

	// geoPrefilterLimit caps how many couriers the Redis geo index returns
	// before the database eligibility filter runs.
	geoPrefilterLimit = 200
)

// Service fans delivery requests out to eligible couriers and closes the
// search when a claim wins, the sender cancels, or the window runs out.
// Offers are advisory; the conditional claim in the lifecycle engine is the
// authority on who gets the delivery.
type Service struct {
	repo       RepositoryInterface
	offers     OfferStoreInterface
	deliveries DeliveryService
	settings   SettingsService
	geoIndex   GeoIndex
	eventBus   *eventbus.Bus

	mu     sync.Mutex
	timers map[uuid.UUID]*time.Timer
}

// NewService creates a new dispatch service
func NewService(
	repo RepositoryInterface,
	offers OfferStoreInterface,
	deliveries DeliveryService,
	settingsSvc SettingsService,
	geoIndex GeoIndex,
) *Service {
	return &Service{
		repo:       repo,
		offers:     offers,
		deliveries: deliveries,
		settings:   settingsSvc,
		geoIndex:   geoIndex,
		timers:     make(map[uuid.UUID]*time.Timer),
	}
}

// SetEventBus sets the NATS event bus for publishing offer events
func (s *Service) SetEventBus(bus *eventbus.Bus) {
	s.eventBus = bus
}

// publishEvent publishes an event asynchronously
func (s *Service) publishEvent(subject string, eventType string, data interface{}) {
	if s.eventBus == nil {
		return
	}
	async.GoWithTimeout(context.Background(), "publish "+eventType, 5*time.Second, func(ctx context.Context) {
		evt, err := eventbus.NewEvent(eventType, "dispatch-service", data)
		if err != nil {
			logger.Warn("failed to create dispatch event", zap.String("type", eventType), zap.Error(err))
			return
		}
		if err := s.eventBus.Publish(ctx, subject, evt); err != nil {
			logger.Warn("failed to publish dispatch event", zap.String("type", eventType), zap.Error(err))
		}
	})
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// OffersForCourier returns the courier's open offers.
func (s *Service) OffersForCourier(ctx context.Context, courierID uuid.UUID) ([]*Offer, error) {
	return s.offers.ListForCourier(ctx, courierID)
}

// HandleDeliveryRequested finds eligible couriers for a new search and sends
// each an offer. The search timeout is scheduled even when nobody qualifies,
// so the sender still learns the search expired.
func (s *Service) HandleDeliveryRequested(ctx context.Context, event *eventbus.DeliveryRequestedData) error {
	sys, err := s.settings.Snapshot(ctx)
	if err != nil {
		logger.Warn("dispatching with default settings", zap.Error(err))
	}

	candidates, distances, err := s.findEligibleCouriers(ctx, event, sys.MaxDeliveryDistanceMiles, sys.MinCourierRating, sys.CourierIdleTimeoutMinutes)
	if err != nil {
		return err
	}

	now := time.Now()
	expiresAt := now.Add(offerWindow)
	if event.ScheduledPickupTime != nil && event.ScheduledPickupTime.Before(expiresAt) {
		expiresAt = *event.ScheduledPickupTime
	}
	earnings := round2(event.EstimatedTotal * sys.CourierCommissionRate)

	offersSent := 0
	for _, c := range candidates {
		offer := &Offer{
			OfferID:               uuid.New(),
			DeliveryID:            event.DeliveryID,
			CourierID:             c.UserID,
			PickupLatitude:        event.PickupLatitude,
			PickupLongitude:       event.PickupLongitude,
			PickupAddress:         event.PickupAddress,
			DropoffAddress:        event.DropoffAddress,
			WeightLbs:             event.WeightLbs,
			Priority:              event.Priority,
			DistanceMiles:         event.DistanceMiles,
			DistanceToPickupMiles: distances[c.UserID],
			EstimatedEarnings:     earnings,
			ScheduledPickupTime:   event.ScheduledPickupTime,
			ExpiresAt:             expiresAt,
			OfferedAt:             now,
		}

		if err := s.offers.Put(ctx, offer); err != nil {
			logger.Error("failed to store offer",
				zap.String("delivery_id", event.DeliveryID.String()),
				zap.String("courier_id", c.UserID.String()),
				zap.Error(err))
			continue
		}

		s.publishEvent(eventbus.SubjectDeliveryOffered, "delivery.offered", eventbus.DeliveryOfferedData{
			OfferID:               offer.OfferID,
			DeliveryID:            offer.DeliveryID,
			CourierID:             offer.CourierID,
			PickupLatitude:        offer.PickupLatitude,
			PickupLongitude:       offer.PickupLongitude,
			PickupAddress:         offer.PickupAddress,
			DropoffAddress:        offer.DropoffAddress,
			DistanceToPickupMiles: offer.DistanceToPickupMiles,
			EstimatedEarnings:     offer.EstimatedEarnings,
			ExpiresAt:             offer.ExpiresAt,
			OfferedAt:             offer.OfferedAt,
		})
		offersSent++
	}

	if offersSent == 0 {
		logger.Warn("no eligible couriers for delivery",
			zap.String("delivery_id", event.DeliveryID.String()),
			zap.Float64("weight_lbs", event.WeightLbs))
	} else {
		logger.Info("offers sent",
			zap.String("delivery_id", event.DeliveryID.String()),
			zap.Int("count", offersSent))
	}

	s.scheduleSearchTimeout(event.DeliveryID, offersSent, sys.MaxSearchTimeMinutes)
	return nil
}

// findEligibleCouriers narrows the courier pool with the Redis geo index,
// applies the database eligibility rules, then keeps only couriers whose own
// service radius covers the pickup. Returns the survivors and their pickup
// distances.
func (s *Service) findEligibleCouriers(ctx context.Context, event *eventbus.DeliveryRequestedData, maxDistanceMiles, minRating float64, idleTimeoutMinutes int) ([]*Candidate, map[uuid.UUID]float64, error) {
	// The geo index narrows the pool; an unavailable or cold index falls
	// back to the bounded database query. The courier's own service radius
	// is always checked below.
	var ids []uuid.UUID
	nearby, err := s.geoIndex.GeoRadiusWithDist(ctx, cache.Keys.CourierGeoSet(), event.PickupLongitude, event.PickupLatitude, maxDistanceMiles, geoPrefilterLimit)
	if err != nil {
		logger.Warn("geo prefilter unavailable, querying all couriers", zap.Error(err))
	} else {
		for _, member := range nearby {
			id, err := uuid.Parse(member.Name)
			if err != nil {
				continue
			}
			ids = append(ids, id)
		}
	}

	locationAfter := time.Now().Add(-time.Duration(idleTimeoutMinutes) * time.Minute)
	candidates, err := s.repo.FindCandidates(ctx, event.WeightLbs, minRating, locationAfter, ids)
	if err != nil {
		return nil, nil, err
	}

	eligible := make([]*Candidate, 0, len(candidates))
	distances := make(map[uuid.UUID]float64, len(candidates))
	for _, c := range candidates {
		distance := geo.Miles(c.Latitude, c.Longitude, event.PickupLatitude, event.PickupLongitude)
		if distance > c.ServiceRadiusMiles {
			continue
		}
		eligible = append(eligible, c)
		distances[c.UserID] = round2(distance)
	}
	return eligible, distances, nil
}

// HandleDeliveryAssigned revokes the losing offers and stops the search timer.
func (s *Service) HandleDeliveryAssigned(ctx context.Context, event *eventbus.DeliveryAssignedData) error {
	s.clearSearchTimeout(event.DeliveryID)
	if err := s.offers.RemoveForDelivery(ctx, event.DeliveryID); err != nil {
		return err
	}
	logger.Info("revoked open offers after assignment",
		zap.String("delivery_id", event.DeliveryID.String()),
		zap.String("courier_id", event.CourierID.String()))
	return nil
}

// HandleDeliveryCancelled revokes open offers when the sender cancels during
// the search.
func (s *Service) HandleDeliveryCancelled(ctx context.Context, event *eventbus.DeliveryCancelledData) error {
	s.clearSearchTimeout(event.DeliveryID)
	if err := s.offers.RemoveForDelivery(ctx, event.DeliveryID); err != nil {
		return err
	}
	logger.Info("revoked open offers after cancellation",
		zap.String("delivery_id", event.DeliveryID.String()))
	return nil
}

// scheduleSearchTimeout arms the search-expiry timer for a delivery,
// replacing any previous one (redelivered events). Timers live in process
// memory only: a restart loses expiries for searches already in flight, and
// those deliveries stay in searching_courier until their requested event is
// redelivered or a courier claims them.
func (s *Service) scheduleSearchTimeout(deliveryID uuid.UUID, offersSent, searchMinutes int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.timers[deliveryID]; ok {
		t.Stop()
	}
	s.timers[deliveryID] = time.AfterFunc(time.Duration(searchMinutes)*time.Minute, func() {
		s.onSearchTimeout(deliveryID, offersSent, searchMinutes)
	})
}

// clearSearchTimeout stops and forgets the timer for a delivery.
func (s *Service) clearSearchTimeout(deliveryID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.timers[deliveryID]; ok {
		t.Stop()
		delete(s.timers, deliveryID)
	}
}

// onSearchTimeout fires when the search window closes without a claim. The
// lifecycle service re-checks the delivery status, so a race with a
// just-committed claim is harmless.
func (s *Service) onSearchTimeout(deliveryID uuid.UUID, offersSent, searchMinutes int) {
	s.clearSearchTimeout(deliveryID)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.deliveries.MarkSearchExpired(ctx, deliveryID, offersSent, searchMinutes); err != nil {
		logger.Error("failed to mark search expired",
			zap.String("delivery_id", deliveryID.String()),
			zap.Error(err))
	}
	if err := s.offers.RemoveForDelivery(ctx, deliveryID); err != nil {
		logger.Error("failed to revoke offers after search expiry",
			zap.String("delivery_id", deliveryID.String()),
			zap.Error(err))
	}
}

// Stop cancels all armed search timers. Used at shutdown.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
}
