package courier

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/richxcame/courier-dispatch/internal/location"
	"github.com/richxcame/courier-dispatch/pkg/validation"
)

// RepositoryInterface defines the courier repository operations.
type RepositoryInterface interface {
	Create(ctx context.Context, profile *Profile) error
	GetByUserID(ctx context.Context, userID uuid.UUID) (*Profile, error)
	UpdateProfile(ctx context.Context, userID uuid.UUID, vehicleType *string, maxWeightLbs, serviceRadiusMiles *float64) (*Profile, error)
	SetAvailability(ctx context.Context, userID uuid.UUID, available bool) (*Profile, error)
	EarningsBetween(ctx context.Context, courierID uuid.UUID, from *time.Time, to time.Time) (int, float64, error)
	DailyEarnings(ctx context.Context, courierID uuid.UUID, from *time.Time, to time.Time) ([]DailyEarning, error)
	RecentPayouts(ctx context.Context, courierID uuid.UUID, limit int) ([]*Payout, error)
	WithdrawBalance(ctx context.Context, courierID uuid.UUID) (*Payout, error)
}

// LocationService is the slice of the location pipeline the availability
// toggle needs: feeding an optional go-online position through ingest and
// dropping presence when the courier goes offline.
type LocationService interface {
	Ingest(ctx context.Context, courierID uuid.UUID, req *validation.UpdateLocationRequest) (*location.IngestResult, error)
	ClearPresence(ctx context.Context, courierID uuid.UUID)
}
