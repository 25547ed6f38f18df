package courier

import (
	"time"

	"github.com/google/uuid"
)

// Background check and ID verification states. Couriers receive offers only
// once both reach their positive state.
const (
	CheckPending  = "pending"
	CheckApproved = "approved"
	CheckRejected = "rejected"

	IDPending  = "pending"
	IDVerified = "verified"
	IDRejected = "rejected"
)

// Payout statuses.
const (
	PayoutPending    = "pending"
	PayoutProcessing = "processing"
	PayoutCompleted  = "completed"
	PayoutFailed     = "failed"
)

// newCourierRating seeds the rating of a fresh profile so the minimum-rating
// eligibility rule does not lock new couriers out before their first reviews.
const newCourierRating = 5.0

// Profile is a courier's dispatch profile: capacity, service area,
// verification state, live position and running counters. The balance moves
// only inside lifecycle, tip and payout transactions.
type Profile struct {
	UserID                uuid.UUID  `json:"user_id" db:"user_id"`
	VehicleType           string     `json:"vehicle_type" db:"vehicle_type"`
	MaxWeightLbs          float64    `json:"max_weight_lbs" db:"max_weight_lbs"`
	ServiceRadiusMiles    float64    `json:"service_radius_miles" db:"service_radius_miles"`
	IsAvailable           bool       `json:"is_available" db:"is_available"`
	ActiveDeliveryID      *uuid.UUID `json:"active_delivery_id,omitempty" db:"active_delivery_id"`
	BackgroundCheckStatus string     `json:"background_check_status" db:"background_check_status"`
	IDVerificationStatus  string     `json:"id_verification_status" db:"id_verification_status"`
	Rating                float64    `json:"rating" db:"rating"`
	CurrentLatitude       *float64   `json:"current_latitude,omitempty" db:"current_latitude"`
	CurrentLongitude      *float64   `json:"current_longitude,omitempty" db:"current_longitude"`
	LocationUpdatedAt     *time.Time `json:"location_updated_at,omitempty" db:"location_updated_at"`
	TotalDeliveries       int        `json:"total_deliveries" db:"total_deliveries"`
	CompletedDeliveries   int        `json:"completed_deliveries" db:"completed_deliveries"`
	CancelledDeliveries   int        `json:"cancelled_deliveries" db:"cancelled_deliveries"`
	AccountBalance        float64    `json:"account_balance" db:"account_balance"`
	CreatedAt             time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt             time.Time  `json:"updated_at" db:"updated_at"`
}

// Payout is one balance withdrawal. The period records which span of earnings
// the payout covered.
type Payout struct {
	ID          uuid.UUID  `json:"id" db:"id"`
	CourierID   uuid.UUID  `json:"courier_id" db:"courier_id"`
	Amount      float64    `json:"amount" db:"amount"`
	Status      string     `json:"status" db:"status"`
	Reference   string     `json:"reference" db:"reference"`
	PeriodStart time.Time  `json:"period_start" db:"period_start"`
	PeriodEnd   time.Time  `json:"period_end" db:"period_end"`
	ProcessedAt *time.Time `json:"processed_at,omitempty" db:"processed_at"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
}

// DailyEarning is one day of the earnings breakdown.
type DailyEarning struct {
	Date       string  `json:"date"`
	Deliveries int     `json:"deliveries"`
	Earned     float64 `json:"earned"`
}

// EarningsSummary aggregates a courier's earnings over a period together with
// the live balance and the most recent payouts.
type EarningsSummary struct {
	Period              string         `json:"period"`
	From                *time.Time     `json:"from,omitempty"`
	To                  time.Time      `json:"to"`
	DeliveriesCompleted int            `json:"deliveries_completed"`
	TotalEarned         float64        `json:"total_earned"`
	AccountBalance      float64        `json:"account_balance"`
	Daily               []DailyEarning `json:"daily_breakdown"`
	RecentPayouts       []*Payout      `json:"recent_payouts"`
}
