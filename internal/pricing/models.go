package pricing

import (
	"time"

	"github.com/google/uuid"
)

// Priority levels accepted on delivery requests.
const (
	PriorityStandard = "standard"
	PriorityExpress  = "express"
	PriorityUrgent   = "urgent"
)

// PackageType is a catalog entry (envelope, small, medium, large). Base price
// and the weight ceiling drive the fee formula.
type PackageType struct {
	ID           uuid.UUID `json:"id" db:"id"`
	Name         string    `json:"name" db:"name"`
	Description  *string   `json:"description,omitempty" db:"description"`
	BasePrice    float64   `json:"base_price" db:"base_price"`
	MaxWeightLbs float64   `json:"max_weight_lbs" db:"max_weight_lbs"`
	IsActive     bool      `json:"is_active" db:"is_active"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// QuoteInput carries everything the fee formula needs.
type QuoteInput struct {
	PickupLatitude   float64
	PickupLongitude  float64
	DropoffLatitude  float64
	DropoffLongitude float64
	WeightLbs        float64
	Priority         string
}

// Quote is the deterministic cost breakdown for a delivery. Discount is zero
// here; promo application subtracts from Total downstream.
type Quote struct {
	BaseFee                  float64 `json:"base_fee"`
	DistanceFee              float64 `json:"distance_fee"`
	WeightFee                float64 `json:"weight_fee"`
	PriorityFee              float64 `json:"priority_fee"`
	Tax                      float64 `json:"tax"`
	Total                    float64 `json:"total"`
	DistanceMiles            float64 `json:"distance_miles"`
	EstimatedDurationMinutes int     `json:"estimated_duration_minutes"`
}
