package eventbus

import (
	"time"

	"github.com/google/uuid"
)

// DeliveryRequestedData is emitted when a delivery enters courier search.
// This contains all data the dispatcher needs to build offers for couriers.
type DeliveryRequestedData struct {
	DeliveryID          uuid.UUID  `json:"delivery_id"`
	SenderID            uuid.UUID  `json:"sender_id"`
	SenderName          string     `json:"sender_name"`
	PickupLatitude      float64    `json:"pickup_latitude"`
	PickupLongitude     float64    `json:"pickup_longitude"`
	PickupAddress       string     `json:"pickup_address"`
	DropoffLatitude     float64    `json:"dropoff_latitude"`
	DropoffLongitude    float64    `json:"dropoff_longitude"`
	DropoffAddress      string     `json:"dropoff_address"`
	WeightLbs           float64    `json:"weight_lbs"`
	Priority            string     `json:"priority"`
	DistanceMiles       float64    `json:"distance_miles"`
	EstimatedTotal      float64    `json:"estimated_total"`
	ScheduledPickupTime *time.Time `json:"scheduled_pickup_time,omitempty"`
	RequestedAt         time.Time  `json:"requested_at"`
}

// DeliveryOfferedData is emitted when the dispatcher offers a delivery to a courier.
type DeliveryOfferedData struct {
	OfferID               uuid.UUID `json:"offer_id"`
	DeliveryID            uuid.UUID `json:"delivery_id"`
	CourierID             uuid.UUID `json:"courier_id"`
	PickupLatitude        float64   `json:"pickup_latitude"`
	PickupLongitude       float64   `json:"pickup_longitude"`
	PickupAddress         string    `json:"pickup_address"`
	DropoffAddress        string    `json:"dropoff_address"`
	DistanceToPickupMiles float64   `json:"distance_to_pickup_miles"`
	EstimatedEarnings     float64   `json:"estimated_earnings"`
	ExpiresAt             time.Time `json:"expires_at"`
	OfferedAt             time.Time `json:"offered_at"`
}

// DeliveryAssignedData is emitted when a courier wins a delivery.
type DeliveryAssignedData struct {
	DeliveryID  uuid.UUID `json:"delivery_id"`
	SenderID    uuid.UUID `json:"sender_id"`
	CourierID   uuid.UUID `json:"courier_id"`
	CourierName string    `json:"courier_name"`
	VehicleType string    `json:"vehicle_type"`
	EtaMinutes  int       `json:"eta_minutes"`
	AssignedAt  time.Time `json:"assigned_at"`
}

// DeliveryStatusChangedData is emitted on every lifecycle transition.
type DeliveryStatusChangedData struct {
	DeliveryID     uuid.UUID `json:"delivery_id"`
	SenderID       uuid.UUID `json:"sender_id"`
	CourierID      uuid.UUID `json:"courier_id"` // zero if not yet assigned
	PreviousStatus string    `json:"previous_status"`
	NewStatus      string    `json:"new_status"`
	ActorRole      string    `json:"actor_role"` // "sender", "courier", "admin" or "system"
	ChangedAt      time.Time `json:"changed_at"`
}

// DeliveryETAUpdatedData is emitted when a courier location sample moves the ETA.
type DeliveryETAUpdatedData struct {
	DeliveryID            uuid.UUID `json:"delivery_id"`
	CourierID             uuid.UUID `json:"courier_id"`
	EtaMinutes            int       `json:"eta_minutes"`
	DistanceToTargetMiles float64   `json:"distance_to_target_miles"`
	UpdatedAt             time.Time `json:"updated_at"`
}

// DeliveryCompletedData is emitted when a delivery finishes.
type DeliveryCompletedData struct {
	DeliveryID      uuid.UUID `json:"delivery_id"`
	SenderID        uuid.UUID `json:"sender_id"`
	CourierID       uuid.UUID `json:"courier_id"`
	Total           float64   `json:"total"`
	CourierEarnings float64   `json:"courier_earnings"`
	DistanceMiles   float64   `json:"distance_miles"`
	CompletedAt     time.Time `json:"completed_at"`
}

// DeliveryCancelledData is emitted when a delivery is cancelled or fails.
type DeliveryCancelledData struct {
	DeliveryID      uuid.UUID `json:"delivery_id"`
	SenderID        uuid.UUID `json:"sender_id"`
	CourierID       uuid.UUID `json:"courier_id"` // zero if not yet assigned
	CancelledBy     string    `json:"cancelled_by"` // "sender", "courier" or "admin"
	Reason          string    `json:"reason"`
	RefundAmount    float64   `json:"refund_amount"`
	CancellationFee float64   `json:"cancellation_fee"`
	CancelledAt     time.Time `json:"cancelled_at"`
}

// PaymentCapturedData is emitted after a delivery payment is captured.
type PaymentCapturedData struct {
	PaymentID  uuid.UUID `json:"payment_id"`
	DeliveryID uuid.UUID `json:"delivery_id"`
	SenderID   uuid.UUID `json:"sender_id"`
	Amount     float64   `json:"amount"`
	TipAmount  float64   `json:"tip_amount"`
	Currency   string    `json:"currency"`
	Method     string    `json:"method"`
	CapturedAt time.Time `json:"captured_at"`
}

// PaymentRefundedData is emitted after a full or partial refund.
type PaymentRefundedData struct {
	PaymentID  uuid.UUID `json:"payment_id"`
	DeliveryID uuid.UUID `json:"delivery_id"`
	SenderID   uuid.UUID `json:"sender_id"`
	Amount     float64   `json:"amount"`
	Reason     string    `json:"reason"`
	RefundedAt time.Time `json:"refunded_at"`
}

// SearchExpiredData is emitted when no courier claims a delivery within the
// search window. The delivery stays in courier search for manual escalation.
type SearchExpiredData struct {
	DeliveryID     uuid.UUID `json:"delivery_id"`
	SenderID       uuid.UUID `json:"sender_id"`
	OffersSent     int       `json:"offers_sent"`
	SearchDuration int       `json:"search_duration_minutes"`
	ExpiredAt      time.Time `json:"expired_at"`
}

// CourierLocationSampleData is a raw sample forwarded by the realtime gateway
// before the ingest pipeline has validated or persisted it.
type CourierLocationSampleData struct {
	CourierID uuid.UUID `json:"courier_id"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Accuracy  float64   `json:"accuracy,omitempty"`
	Heading   float64   `json:"heading,omitempty"`
	SpeedMps  float64   `json:"speed_mps,omitempty"`
	Battery   *float64  `json:"battery_level,omitempty"`
	SampledAt time.Time `json:"sampled_at"`
}

// CourierLocationUpdatedData is emitted on accepted location samples.
type CourierLocationUpdatedData struct {
	CourierID             uuid.UUID  `json:"courier_id"`
	DeliveryID            *uuid.UUID `json:"delivery_id,omitempty"` // set while on an active delivery
	Latitude              float64    `json:"latitude"`
	Longitude             float64    `json:"longitude"`
	Heading               float64    `json:"heading"`
	Speed                 float64    `json:"speed"`
	H3Cell                string     `json:"h3_cell"`
	EtaMinutes            int        `json:"eta_minutes,omitempty"`
	EstimatedDeliveryTime *time.Time `json:"estimated_delivery_time,omitempty"`
	Timestamp             time.Time  `json:"timestamp"`
}

// CourierAvailabilityData is emitted on couriers.online / couriers.offline
// when a courier toggles availability.
type CourierAvailabilityData struct {
	CourierID   uuid.UUID `json:"courier_id"`
	IsAvailable bool      `json:"is_available"`
	ChangedAt   time.Time `json:"changed_at"`
}

// DeliveryRatedData is emitted when one delivery party rates the other.
type DeliveryRatedData struct {
	RatingID   uuid.UUID `json:"rating_id"`
	DeliveryID uuid.UUID `json:"delivery_id"`
	RaterID    uuid.UUID `json:"rater_id"`
	RateeID    uuid.UUID `json:"ratee_id"`
	RaterRole  string    `json:"rater_role"`
	Rating     int       `json:"rating"`
	RatedAt    time.Time `json:"rated_at"`
}

// DeliveryIssueReportedData is emitted when a party opens an issue on a delivery.
type DeliveryIssueReportedData struct {
	IssueID    uuid.UUID `json:"issue_id"`
	DeliveryID uuid.UUID `json:"delivery_id"`
	ReporterID uuid.UUID `json:"reporter_id"`
	IssueType  string    `json:"issue_type"`
	ReportedAt time.Time `json:"reported_at"`
}

// MessageSentData is emitted when a delivery chat message is stored.
// RecipientID is already resolved; SenderID is nil for messages authored by a
// tracking-token holder (SenderType "recipient").
type MessageSentData struct {
	MessageID     uuid.UUID  `json:"message_id"`
	DeliveryID    uuid.UUID  `json:"delivery_id"`
	SenderID      *uuid.UUID `json:"sender_id,omitempty"`
	SenderType    string     `json:"sender_type"`
	RecipientID   uuid.UUID  `json:"recipient_id"`
	Content       string     `json:"content"`
	AttachmentURL string     `json:"attachment_url,omitempty"`
	SentAt        time.Time  `json:"sent_at"`
}

// MessageReadData is emitted when the recipient marks a message read.
type MessageReadData struct {
	MessageID  uuid.UUID `json:"message_id"`
	DeliveryID uuid.UUID `json:"delivery_id"`
	ReaderID   uuid.UUID `json:"reader_id"`
	ReadAt     time.Time `json:"read_at"`
}

// NotificationCreatedData is emitted when a persistent notification is written.
type NotificationCreatedData struct {
	NotificationID uuid.UUID `json:"notification_id"`
	UserID         uuid.UUID `json:"user_id"`
	Type           string    `json:"type"`
	Title          string    `json:"title"`
	Body           string    `json:"body"`
	CreatedAt      time.Time `json:"created_at"`
}
