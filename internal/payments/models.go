package payments

import (
	"time"

	"github.com/google/uuid"
)

// Payment statuses. Status only moves forward: pending → authorized →
// captured, authorized → refunded, pending → failed.
const (
	StatusPending    = "pending"
	StatusAuthorized = "authorized"
	StatusCaptured   = "captured"
	StatusRefunded   = "refunded"
	StatusFailed     = "failed"
)

// Payment represents the single payment attached to a delivery
type Payment struct {
	ID            uuid.UUID  `json:"id"`
	DeliveryID    uuid.UUID  `json:"delivery_id"`
	SenderID      uuid.UUID  `json:"sender_id"`
	Amount        float64    `json:"amount"`
	Currency      string     `json:"currency"`
	PaymentMethod string     `json:"payment_method"`
	Status        string     `json:"status"`
	TxnID         *string    `json:"txn_id,omitempty"`
	BaseFee       float64    `json:"base_fee"`
	DistanceFee   float64    `json:"distance_fee"`
	WeightFee     float64    `json:"weight_fee"`
	PriorityFee   float64    `json:"priority_fee"`
	Tax           float64    `json:"tax"`
	Discount      float64    `json:"discount"`
	Tip           float64    `json:"tip"`
	RefundAmount  float64    `json:"refund_amount"`
	RefundReason  *string    `json:"refund_reason,omitempty"`
	PromoCodeID   *uuid.UUID `json:"promo_code_id,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// AuthorizeInput carries everything needed to place a hold for a new
// delivery. Amount is the discounted, taxed total; Tip starts at zero and
// is only adjustable after delivery.
type AuthorizeInput struct {
	DeliveryID      uuid.UUID
	SenderID        uuid.UUID
	PaymentMethodID string
	Amount          float64
	BaseFee         float64
	DistanceFee     float64
	WeightFee       float64
	PriorityFee     float64
	Tax             float64
	Discount        float64
	PromoCodeID     *uuid.UUID
}

// Receipt is the payment breakdown shown to either party of a delivered
// delivery.
type Receipt struct {
	DeliveryID   uuid.UUID `json:"delivery_id"`
	PaymentID    uuid.UUID `json:"payment_id"`
	Status       string    `json:"status"`
	BaseFee      float64   `json:"base_fee"`
	DistanceFee  float64   `json:"distance_fee"`
	WeightFee    float64   `json:"weight_fee"`
	PriorityFee  float64   `json:"priority_fee"`
	Tax          float64   `json:"tax"`
	Discount     float64   `json:"discount"`
	Tip          float64   `json:"tip"`
	Total        float64   `json:"total"`
	PromoCode    *string   `json:"promo_code,omitempty"`
	PaidAt       time.Time `json:"paid_at"`
}

// deliveryParties is the slice of a delivery the payment flows need:
// ownership for authorization checks and the courier for tip credits.
type deliveryParties struct {
	SenderID  uuid.UUID
	CourierID *uuid.UUID
	Status    string
}
