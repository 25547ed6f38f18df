package payments

import (
	"context"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v83"
)

// RepositoryInterface defines the interface for payments repository operations
type RepositoryInterface interface {
	GetByDeliveryID(ctx context.Context, deliveryID uuid.UUID) (*Payment, error)
	MarkCaptured(ctx context.Context, deliveryID uuid.UUID) (bool, error)
	MarkRefunded(ctx context.Context, deliveryID uuid.UUID, refundAmount float64, reason string) (bool, error)
	AddTip(ctx context.Context, paymentID, deliveryID uuid.UUID, oldTip, newTip float64, courierID uuid.UUID) error
	GetDeliveryParties(ctx context.Context, deliveryID uuid.UUID) (*deliveryParties, error)
	GetReceipt(ctx context.Context, deliveryID uuid.UUID) (*Receipt, error)
}

// GatewayInterface defines the payment gateway operations. Amounts are in
// cents, the gateway's native unit.
type GatewayInterface interface {
	Authorize(amountCents int64, currency, paymentMethodID, description, idempotencyKey string, metadata map[string]string) (*stripe.PaymentIntent, error)
	Capture(txnID string, amountCents *int64) (*stripe.PaymentIntent, error)
	Refund(txnID string, amountCents *int64, reason string) (*stripe.Refund, error)
	Cancel(txnID string) (*stripe.PaymentIntent, error)
	Get(txnID string) (*stripe.PaymentIntent, error)
}
