package delivery

import (
	"time"

	"github.com/google/uuid"

	"github.com/richxcame/courier-dispatch/internal/payments"
	"github.com/richxcame/courier-dispatch/internal/promos"
)

// Delivery lifecycle statuses.
const (
	StatusPending            = "pending"
	StatusSearchingCourier   = "searching_courier"
	StatusCourierAssigned    = "courier_assigned"
	StatusEnRouteToPickup    = "en_route_to_pickup"
	StatusApproachingPickup  = "approaching_pickup"
	StatusAtPickup           = "at_pickup"
	StatusPickedUp           = "picked_up"
	StatusInTransit          = "in_transit"
	StatusApproachingDropoff = "approaching_dropoff"
	StatusAtDropoff          = "at_dropoff"
	StatusDelivered          = "delivered"
	StatusCancelled          = "cancelled"
	StatusFailed             = "failed"
	StatusReturned           = "returned"
)

// terminalStatuses admit no further transitions.
var terminalStatuses = map[string]bool{
	StatusDelivered: true,
	StatusCancelled: true,
	StatusFailed:    true,
	StatusReturned:  true,
}

// IsTerminal reports whether a status admits no further transitions.
func IsTerminal(status string) bool {
	return terminalStatuses[status]
}

// Delivery is the lifecycle aggregate. Address snapshots, the recipient
// contact and the verification code are immutable after creation.
type Delivery struct {
	ID                       uuid.UUID  `json:"id" db:"id"`
	SenderID                 uuid.UUID  `json:"sender_id" db:"sender_id"`
	CourierID                *uuid.UUID `json:"courier_id,omitempty" db:"courier_id"`
	Status                   string     `json:"status" db:"status"`
	StatusSince              time.Time  `json:"status_since" db:"status_since"`
	PickupLatitude           float64    `json:"pickup_latitude" db:"pickup_latitude"`
	PickupLongitude          float64    `json:"pickup_longitude" db:"pickup_longitude"`
	PickupAddress            string     `json:"pickup_address" db:"pickup_address"`
	PickupAccessCode         *string    `json:"pickup_access_code,omitempty" db:"pickup_access_code"`
	DropoffLatitude          float64    `json:"dropoff_latitude" db:"dropoff_latitude"`
	DropoffLongitude         float64    `json:"dropoff_longitude" db:"dropoff_longitude"`
	DropoffAddress           string     `json:"dropoff_address" db:"dropoff_address"`
	DropoffAccessCode        *string    `json:"dropoff_access_code,omitempty" db:"dropoff_access_code"`
	PackageTypeID            uuid.UUID  `json:"package_type_id" db:"package_type_id"`
	Description              *string    `json:"description,omitempty" db:"description"`
	WeightLbs                float64    `json:"weight_lbs" db:"weight_lbs"`
	Fragile                  bool       `json:"fragile" db:"fragile"`
	RequiresSignature        bool       `json:"requires_signature" db:"requires_signature"`
	RequiresIDVerification   bool       `json:"requires_id_verification" db:"requires_id_verification"`
	RequiresPhotoProof       bool       `json:"requires_photo_proof" db:"requires_photo_proof"`
	RecipientName            string     `json:"recipient_name" db:"recipient_name"`
	RecipientPhone           string     `json:"recipient_phone,omitempty" db:"recipient_phone"`
	RecipientEmail           *string    `json:"recipient_email,omitempty" db:"recipient_email"`
	VerificationCode         string     `json:"verification_code,omitempty" db:"verification_code"`
	SpecialInstructions      *string    `json:"special_instructions,omitempty" db:"special_instructions"`
	PackagePhotoURL          *string    `json:"package_photo_url,omitempty" db:"package_photo_url"`
	ProofPhotoURL            *string    `json:"proof_photo_url,omitempty" db:"proof_photo_url"`
	SignatureURL             *string    `json:"signature_url,omitempty" db:"signature_url"`
	IDVerified               bool       `json:"id_verified" db:"id_verified"`
	Priority                 string     `json:"priority" db:"priority"`
	DistanceMiles            float64    `json:"distance_miles" db:"distance_miles"`
	EstimatedDurationMinutes int        `json:"estimated_duration_minutes" db:"estimated_duration_minutes"`
	ScheduledPickupTime      *time.Time `json:"scheduled_pickup_time,omitempty" db:"scheduled_pickup_time"`
	ActualPickupTime         *time.Time `json:"actual_pickup_time,omitempty" db:"actual_pickup_time"`
	ActualDeliveryTime       *time.Time `json:"actual_delivery_time,omitempty" db:"actual_delivery_time"`
	EstimatedDeliveryTime    *time.Time `json:"estimated_delivery_time,omitempty" db:"estimated_delivery_time"`
	CancellationReason       *string    `json:"cancellation_reason,omitempty" db:"cancellation_reason"`
	CreatedAt                time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt                time.Time  `json:"updated_at" db:"updated_at"`
}

// PublicView returns a copy safe for tracking-token holders: no verification
// code, no access codes, no contact details.
func (d *Delivery) PublicView() *Delivery {
	view := *d
	view.VerificationCode = ""
	view.PickupAccessCode = nil
	view.DropoffAccessCode = nil
	view.RecipientPhone = ""
	view.RecipientEmail = nil
	return &view
}

// StatusEvent is one append-only entry in a delivery's status timeline.
type StatusEvent struct {
	ID         uuid.UUID  `json:"id" db:"id"`
	DeliveryID uuid.UUID  `json:"delivery_id" db:"delivery_id"`
	Status     string     `json:"status" db:"status"`
	Latitude   *float64   `json:"latitude,omitempty" db:"latitude"`
	Longitude  *float64   `json:"longitude,omitempty" db:"longitude"`
	Notes      *string    `json:"notes,omitempty" db:"notes"`
	ActorID    *uuid.UUID `json:"actor_id,omitempty" db:"actor_id"`
	IsSystem   bool       `json:"is_system" db:"is_system"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
}

// Transition is one validated state change handed to the repository. The
// service fills it after checking the transition table, proof gating and
// actor permissions; the repository serializes it against the delivery row.
type Transition struct {
	DeliveryID    uuid.UUID
	From          string
	To            string
	ActorID       *uuid.UUID
	ActorRole     string
	Latitude      *float64
	Longitude     *float64
	Notes         *string
	Reason        *string
	ProofPhotoURL *string
	SignatureURL  *string
	IDVerified    bool

	// Set on delivered: credited to the courier in the same transaction.
	CourierCredit float64
}

// TransitionResult reports what the repository did with a Transition.
type TransitionResult struct {
	Applied  bool // false when the delivery was already in the target status
	Delivery *Delivery
}

// CourierSummary is the slice of the courier profile the claim path needs.
type CourierSummary struct {
	UserID        uuid.UUID `db:"user_id"`
	VehicleType   string    `db:"vehicle_type"`
	Latitude      *float64  `db:"current_latitude"`
	Longitude     *float64  `db:"current_longitude"`
	CompletedJobs int       `db:"completed_deliveries"`
}

// ListFilters narrow the delivery list endpoint.
type ListFilters struct {
	Status   *string
	FromDate *time.Time
	ToDate   *time.Time
}

// TrackingURLs carries the two share links returned on creation.
type TrackingURLs struct {
	Recipient string `json:"recipient"`
	Sender    string `json:"sender"`
}

// CreateResult is the full response of delivery creation.
type CreateResult struct {
	Delivery     *Delivery         `json:"delivery"`
	Payment      *payments.Payment `json:"payment"`
	TrackingURLs TrackingURLs      `json:"tracking_urls"`
}

// EstimateResult is the dry-run pricing response, with an optional promo
// verdict when a code was supplied.
type EstimateResult struct {
	BaseFee                  float64                 `json:"base_fee"`
	DistanceFee              float64                 `json:"distance_fee"`
	WeightFee                float64                 `json:"weight_fee"`
	PriorityFee              float64                 `json:"priority_fee"`
	Tax                      float64                 `json:"tax"`
	Total                    float64                 `json:"total"`
	DistanceMiles            float64                 `json:"distance_miles"`
	EstimatedDurationMinutes int                     `json:"estimated_duration_minutes"`
	Promo                    *promos.PromoValidation `json:"promo,omitempty"`
}

// DeliveryView is a delivery plus its status timeline.
type DeliveryView struct {
	Delivery *Delivery      `json:"delivery"`
	Events   []*StatusEvent `json:"events"`
}

// CancelResult reports the refund accounting of a cancellation.
type CancelResult struct {
	Delivery        *Delivery `json:"delivery"`
	RefundAmount    float64   `json:"refund_amount"`
	CancellationFee float64   `json:"cancellation_fee"`
}
