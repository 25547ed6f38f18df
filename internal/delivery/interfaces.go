package delivery

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/richxcame/courier-dispatch/internal/payments"
	"github.com/richxcame/courier-dispatch/internal/pricing"
	"github.com/richxcame/courier-dispatch/internal/promos"
	"github.com/richxcame/courier-dispatch/internal/settings"
	"github.com/richxcame/courier-dispatch/internal/tracking"
)

// RepositoryInterface defines the contract for delivery persistence.
type RepositoryInterface interface {
	// CreateDelivery persists the delivery, its first two status events, the
	// authorized payment, the promo usage (when a code applied) and both
	// tracking links in one transaction.
	CreateDelivery(ctx context.Context, d *Delivery, payment *payments.Payment, usage *promos.PromoUsage, links []*tracking.TrackingLink) error

	GetByID(ctx context.Context, id uuid.UUID) (*Delivery, error)
	List(ctx context.Context, userID uuid.UUID, asCourier bool, filters *ListFilters, limit, offset int) ([]*Delivery, int64, error)
	GetActiveByCourier(ctx context.Context, courierID uuid.UUID) (*Delivery, error)
	GetStatusEvents(ctx context.Context, deliveryID uuid.UUID) ([]*StatusEvent, error)

	// ApplyTransition serializes a state change against the delivery row,
	// writes the status event, and applies the courier profile side effects
	// of terminal and delivered transitions.
	ApplyTransition(ctx context.Context, t Transition) (*TransitionResult, error)

	// AtomicClaim binds the first claiming courier to a searching delivery.
	AtomicClaim(ctx context.Context, deliveryID, courierID uuid.UUID) (*CourierSummary, error)

	UpdateETA(ctx context.Context, deliveryID uuid.UUID, eta time.Time) error
}

// PricingService quotes delivery costs.
type PricingService interface {
	QuoteDelivery(ctx context.Context, in pricing.QuoteInput, packageTypeID uuid.UUID) (*pricing.Quote, *pricing.PackageType, error)
}

// PromoService validates promo codes; application is committed by the
// delivery creation transaction.
type PromoService interface {
	Validate(ctx context.Context, code string, userID uuid.UUID, orderAmount float64) (*promos.PromoValidation, error)
}

// PaymentService is the slice of the payments service the lifecycle uses.
type PaymentService interface {
	Authorize(ctx context.Context, in payments.AuthorizeInput) (*payments.Payment, error)
	ReleaseHold(ctx context.Context, txnID string)
	CaptureForDelivery(ctx context.Context, deliveryID uuid.UUID) (*payments.Payment, error)
	RefundForDelivery(ctx context.Context, deliveryID uuid.UUID, refundAmount float64, reason string) (*payments.Payment, error)
	GetByDeliveryID(ctx context.Context, deliveryID uuid.UUID) (*payments.Payment, error)
}

// TrackingService issues and validates the share links minted at creation.
type TrackingService interface {
	NewLinkPair(deliveryID uuid.UUID) (recipient, sender *tracking.TrackingLink, err error)
	ValidateForDelivery(ctx context.Context, token string, deliveryID uuid.UUID) (*tracking.TrackingLink, error)
}

// SettingsService supplies the system settings snapshot.
type SettingsService interface {
	Snapshot(ctx context.Context) (settings.SystemSettings, error)
}
