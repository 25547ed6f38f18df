package dispatch

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/richxcame/courier-dispatch/internal/settings"
	redisclient "github.com/richxcame/courier-dispatch/pkg/redis"
)

// RepositoryInterface defines the courier eligibility lookup.
type RepositoryInterface interface {
	// FindCandidates returns couriers able to carry the given weight: online
	// with no active delivery, approved and verified, rated at or above
	// minRating, and with a location sample fresher than locationAfter. A
	// non-empty ids slice restricts the search to those couriers.
	FindCandidates(ctx context.Context, weightLbs, minRating float64, locationAfter time.Time, ids []uuid.UUID) ([]*Candidate, error)
}

// DeliveryService is the slice of the lifecycle service the dispatcher calls
// back into when a search window closes without a claim.
type DeliveryService interface {
	MarkSearchExpired(ctx context.Context, deliveryID uuid.UUID, offersSent, searchMinutes int) error
}

// SettingsService supplies the system settings snapshot.
type SettingsService interface {
	Snapshot(ctx context.Context) (settings.SystemSettings, error)
}

// OfferStoreInterface keeps live offers where couriers poll them and where
// assignment and cancellation can revoke them.
type OfferStoreInterface interface {
	Put(ctx context.Context, offer *Offer) error
	ListForCourier(ctx context.Context, courierID uuid.UUID) ([]*Offer, error)
	RemoveForDelivery(ctx context.Context, deliveryID uuid.UUID) error
}

// GeoIndex is the slice of the Redis client the courier prefilter uses.
type GeoIndex interface {
	GeoRadiusWithDist(ctx context.Context, key string, longitude, latitude, radiusMiles float64, count int) ([]redisclient.GeoMember, error)
}
