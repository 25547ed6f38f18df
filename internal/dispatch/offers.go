package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/richxcame/courier-dispatch/pkg/cache"
	redisclient "github.com/richxcame/courier-dispatch/pkg/redis"
)

// offerIndexTTL bounds the courier and delivery index sets. Individual offer
// keys expire on their own; list reads prune stale index members.
const offerIndexTTL = 24 * time.Hour

// OfferStore keeps live offers in Redis. Each offer is a JSON value expiring
// at the offer deadline, indexed per courier (what can I take right now?) and
// per delivery (who must be told the search is over?).
type OfferStore struct {
	redis redisclient.ClientInterface
}

// NewOfferStore creates a new Redis-backed offer store
func NewOfferStore(redis redisclient.ClientInterface) *OfferStore {
	return &OfferStore{redis: redis}
}

var _ OfferStoreInterface = (*OfferStore)(nil)

// Put stores an offer under both indexes with a TTL ending at the offer
// deadline.
func (s *OfferStore) Put(ctx context.Context, offer *Offer) error {
	data, err := json.Marshal(offer)
	if err != nil {
		return fmt.Errorf("failed to marshal offer: %w", err)
	}

	ttl := time.Until(offer.ExpiresAt)
	if ttl <= 0 {
		return fmt.Errorf("offer for delivery %s expired before it was stored", offer.DeliveryID)
	}

	key := cache.Keys.DeliveryOffer(offer.CourierID.String(), offer.DeliveryID.String())
	if err := s.redis.SetWithExpiration(ctx, key, string(data), ttl); err != nil {
		return fmt.Errorf("failed to store offer: %w", err)
	}

	courierSet := cache.Keys.CourierOffers(offer.CourierID.String())
	if err := s.redis.SAdd(ctx, courierSet, key); err != nil {
		return fmt.Errorf("failed to index offer for courier: %w", err)
	}
	deliverySet := cache.Keys.DeliveryOfferIndex(offer.DeliveryID.String())
	if err := s.redis.SAdd(ctx, deliverySet, offer.CourierID.String()); err != nil {
		return fmt.Errorf("failed to index offer for delivery: %w", err)
	}

	// Index sets outlive single offers; list reads prune stale members.
	_ = s.redis.Expire(ctx, courierSet, offerIndexTTL)
	_ = s.redis.Expire(ctx, deliverySet, offerIndexTTL)

	return nil
}

// ListForCourier returns the courier's open offers, soonest deadline first.
// Index members whose offer key has expired are removed on the way.
func (s *OfferStore) ListForCourier(ctx context.Context, courierID uuid.UUID) ([]*Offer, error) {
	courierSet := cache.Keys.CourierOffers(courierID.String())
	members, err := s.redis.SMembers(ctx, courierSet)
	if err != nil {
		return nil, fmt.Errorf("failed to list offer keys: %w", err)
	}
	if len(members) == 0 {
		return nil, nil
	}

	values, err := s.redis.MGet(ctx, members...)
	if err != nil {
		return nil, fmt.Errorf("failed to load offers: %w", err)
	}

	now := time.Now()
	offers := make([]*Offer, 0, len(values))
	var stale []interface{}
	for i, value := range values {
		raw, ok := value.(string)
		if !ok {
			stale = append(stale, members[i])
			continue
		}
		var offer Offer
		if err := json.Unmarshal([]byte(raw), &offer); err != nil {
			stale = append(stale, members[i])
			continue
		}
		if offer.Expired(now) {
			stale = append(stale, members[i])
			continue
		}
		offers = append(offers, &offer)
	}

	if len(stale) > 0 {
		if err := s.redis.SRem(ctx, courierSet, stale...); err != nil {
			return nil, fmt.Errorf("failed to prune stale offers: %w", err)
		}
	}

	sort.Slice(offers, func(i, j int) bool {
		return offers[i].ExpiresAt.Before(offers[j].ExpiresAt)
	})
	return offers, nil
}

// RemoveForDelivery revokes every open offer on a delivery. Called when the
// delivery is claimed or cancelled.
func (s *OfferStore) RemoveForDelivery(ctx context.Context, deliveryID uuid.UUID) error {
	deliverySet := cache.Keys.DeliveryOfferIndex(deliveryID.String())
	courierIDs, err := s.redis.SMembers(ctx, deliverySet)
	if err != nil {
		return fmt.Errorf("failed to list offered couriers: %w", err)
	}

	for _, courierID := range courierIDs {
		key := cache.Keys.DeliveryOffer(courierID, deliveryID.String())
		if err := s.redis.Delete(ctx, key); err != nil {
			return fmt.Errorf("failed to delete offer: %w", err)
		}
		if err := s.redis.SRem(ctx, cache.Keys.CourierOffers(courierID), key); err != nil {
			return fmt.Errorf("failed to unindex offer: %w", err)
		}
	}

	if err := s.redis.Delete(ctx, deliverySet); err != nil {
		return fmt.Errorf("failed to delete offer index: %w", err)
	}
	return nil
}
