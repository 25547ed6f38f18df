package promos

import (
	"time"

	"github.com/google/uuid"
)

// Discount types
const (
	DiscountTypePercentage = "percentage"
	DiscountTypeFixed      = "fixed_amount"
)

// PromoCode represents a promotional discount code
type PromoCode struct {
	ID                uuid.UUID  `json:"id"`
	Code              string     `json:"code"`
	Description       *string    `json:"description,omitempty"`
	DiscountType      string     `json:"discount_type"` // "percentage" or "fixed_amount"
	DiscountValue     float64    `json:"discount_value"`
	MaxDiscount       *float64   `json:"maximum_discount,omitempty"`
	MinOrderAmount    float64    `json:"minimum_order_amount"`
	UsageLimit        *int       `json:"usage_limit,omitempty"`
	CurrentUsage      int        `json:"current_usage"`
	IsOneTime         bool       `json:"is_one_time"`
	IsFirstTimeUser   bool       `json:"is_first_time_user"`
	ValidFrom         time.Time  `json:"valid_from"`
	ValidUntil        time.Time  `json:"valid_until"`
	IsActive          bool       `json:"is_active"`
	CreatedBy         *uuid.UUID `json:"created_by,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// PromoUsage records a single redemption of a promo code on a delivery
type PromoUsage struct {
	ID             uuid.UUID `json:"id"`
	PromoCodeID    uuid.UUID `json:"promo_code_id"`
	UserID         uuid.UUID `json:"user_id"`
	DeliveryID     uuid.UUID `json:"delivery_id"`
	DiscountAmount float64   `json:"discount_amount"`
	OriginalAmount float64   `json:"original_amount"`
	FinalAmount    float64   `json:"final_amount"`
	UsedAt         time.Time `json:"used_at"`
}

// PromoValidation is the verdict of a validation attempt. Business
// rejections set Valid=false with a message; they are not errors.
type PromoValidation struct {
	Valid          bool       `json:"valid"`
	Message        string     `json:"message,omitempty"`
	PromoCodeID    *uuid.UUID `json:"promo_code_id,omitempty"`
	Code           string     `json:"code,omitempty"`
	DiscountAmount float64    `json:"discount_amount"`
	FinalAmount    float64    `json:"final_amount"`
}
