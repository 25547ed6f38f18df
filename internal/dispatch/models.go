package dispatch

import (
	"time"

	"github.com/google/uuid"
)

// Offer is what a courier sees when a delivery needs picking up. Offers are
// advisory: acceptance is decided by the claim, not by holding an offer.
type Offer struct {
	OfferID               uuid.UUID  `json:"offer_id"`
	DeliveryID            uuid.UUID  `json:"delivery_id"`
	CourierID             uuid.UUID  `json:"courier_id"`
	PickupLatitude        float64    `json:"pickup_latitude"`
	PickupLongitude       float64    `json:"pickup_longitude"`
	PickupAddress         string     `json:"pickup_address"`
	DropoffAddress        string     `json:"dropoff_address"`
	WeightLbs             float64    `json:"weight_lbs"`
	Priority              string     `json:"priority"`
	DistanceMiles         float64    `json:"distance_miles"`
	DistanceToPickupMiles float64    `json:"distance_to_pickup_miles"`
	EstimatedEarnings     float64    `json:"estimated_earnings"`
	ScheduledPickupTime   *time.Time `json:"scheduled_pickup_time,omitempty"`
	ExpiresAt             time.Time  `json:"expires_at"`
	OfferedAt             time.Time  `json:"offered_at"`
}

// Expired reports whether the offer window has passed.
func (o *Offer) Expired(now time.Time) bool {
	return now.After(o.ExpiresAt)
}

// Candidate is a courier who passed the database eligibility filter and still
// needs the per-courier service radius check.
type Candidate struct {
	UserID             uuid.UUID `db:"user_id"`
	Latitude           float64   `db:"current_latitude"`
	Longitude          float64   `db:"current_longitude"`
	ServiceRadiusMiles float64   `db:"service_radius_miles"`
	VehicleType        string    `db:"vehicle_type"`
	Rating             float64   `db:"rating"`
}
