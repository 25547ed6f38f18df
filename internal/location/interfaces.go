package location

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/richxcame/courier-dispatch/internal/delivery"
)

// RepositoryInterface defines the contract for location persistence.
type RepositoryInterface interface {
	InsertSample(ctx context.Context, s *Sample) error

	// UpdateCourierPosition moves the courier's profile position forward.
	// Returns false when the sample is older than the position already on
	// file, in which case nothing was written.
	UpdateCourierPosition(ctx context.Context, courierID uuid.UUID, lat, lng float64, h3Cell string, sampledAt time.Time) (bool, error)
}

// DeliveryService is the slice of the lifecycle service the ingest pipeline
// drives: proximity transitions and ETA updates for the active delivery.
type DeliveryService interface {
	GetActiveForCourier(ctx context.Context, courierID uuid.UUID) (*delivery.DeliveryView, error)
	AutoTransition(ctx context.Context, deliveryID uuid.UUID, to string, lat, lng float64) (bool, error)
	RecordETA(ctx context.Context, deliveryID, courierID uuid.UUID, eta time.Time, etaMinutes int, distanceMiles float64) error
}

// PresenceStore is the slice of the Redis client holding live courier
// positions: the geo index the dispatcher prefilters on plus a JSON snapshot
// per courier.
type PresenceStore interface {
	GeoAdd(ctx context.Context, key string, longitude, latitude float64, member string) error
	GeoRemove(ctx context.Context, key string, member string) error
	SetWithExpiration(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}
