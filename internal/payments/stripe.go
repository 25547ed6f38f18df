package payments

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v83"
	"github.com/stripe/stripe-go/v83/paymentintent"
	"github.com/stripe/stripe-go/v83/refund"
)

// StripeGateway wraps Stripe API operations. Holds are placed as
// manual-capture PaymentIntents so funds are only taken on delivery.
type StripeGateway struct {
	apiKey string
}

// Ensure StripeGateway implements GatewayInterface.
var _ GatewayInterface = (*StripeGateway)(nil)

// NewStripeGateway creates a new Stripe gateway
func NewStripeGateway(apiKey string) *StripeGateway {
	stripe.Key = apiKey
	return &StripeGateway{apiKey: apiKey}
}

// Authorize places a hold on the sender's payment method. The idempotency
// key makes retried authorizations reuse the same intent instead of holding
// the amount twice.
func (s *StripeGateway) Authorize(amountCents int64, currency, paymentMethodID, description, idempotencyKey string, metadata map[string]string) (*stripe.PaymentIntent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(amountCents),
		Currency:      stripe.String(currency),
		PaymentMethod: stripe.String(paymentMethodID),
		Description:   stripe.String(description),
		CaptureMethod: stripe.String(string(stripe.PaymentIntentCaptureMethodManual)),
		Confirm:       stripe.Bool(true),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled:        stripe.Bool(true),
			AllowRedirects: stripe.String("never"),
		},
	}
	if idempotencyKey != "" {
		params.SetIdempotencyKey(idempotencyKey)
	}
	for key, value := range metadata {
		params.AddMetadata(key, value)
	}

	pi, err := paymentintent.New(params)
	if err != nil {
		return nil, fmt.Errorf("failed to authorize payment: %w", err)
	}

	return pi, nil
}

// Capture takes the held funds. A nil amount captures the full
// authorization; a partial amount releases the remainder.
func (s *StripeGateway) Capture(txnID string, amountCents *int64) (*stripe.PaymentIntent, error) {
	params := &stripe.PaymentIntentCaptureParams{}
	if amountCents != nil {
		params.AmountToCapture = stripe.Int64(*amountCents)
	}

	pi, err := paymentintent.Capture(txnID, params)
	if err != nil {
		return nil, fmt.Errorf("failed to capture payment: %w", err)
	}

	return pi, nil
}

// Refund returns captured funds. A nil amount refunds in full.
func (s *StripeGateway) Refund(txnID string, amountCents *int64, reason string) (*stripe.Refund, error) {
	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(txnID),
	}
	if amountCents != nil {
		params.Amount = stripe.Int64(*amountCents)
	}
	if reason != "" {
		params.Reason = stripe.String(refundReason(reason))
	}

	r, err := refund.New(params)
	if err != nil {
		return nil, fmt.Errorf("failed to create refund: %w", err)
	}

	return r, nil
}

// Cancel releases an uncaptured hold entirely.
func (s *StripeGateway) Cancel(txnID string) (*stripe.PaymentIntent, error) {
	pi, err := paymentintent.Cancel(txnID, &stripe.PaymentIntentCancelParams{})
	if err != nil {
		return nil, fmt.Errorf("failed to cancel payment: %w", err)
	}

	return pi, nil
}

// Get retrieves a payment intent
func (s *StripeGateway) Get(txnID string) (*stripe.PaymentIntent, error) {
	pi, err := paymentintent.Get(txnID, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get payment intent: %w", err)
	}

	return pi, nil
}

// refundReason maps free-text reasons onto Stripe's enum.
func refundReason(reason string) string {
	switch reason {
	case "fraudulent", "duplicate":
		return reason
	default:
		return string(stripe.RefundReasonRequestedByCustomer)
	}
}

// OfflineGateway satisfies GatewayInterface without calling out. Used when
// Stripe is disabled in config: local development and integration tests.
type OfflineGateway struct{}

var _ GatewayInterface = (*OfflineGateway)(nil)

// NewOfflineGateway creates a gateway that approves everything locally.
func NewOfflineGateway() *OfflineGateway {
	return &OfflineGateway{}
}

func (o *OfflineGateway) Authorize(amountCents int64, currency, paymentMethodID, description, idempotencyKey string, metadata map[string]string) (*stripe.PaymentIntent, error) {
	return &stripe.PaymentIntent{
		ID:       "offline_" + uuid.NewString(),
		Amount:   amountCents,
		Currency: stripe.Currency(currency),
		Status:   stripe.PaymentIntentStatusRequiresCapture,
	}, nil
}

func (o *OfflineGateway) Capture(txnID string, amountCents *int64) (*stripe.PaymentIntent, error) {
	return &stripe.PaymentIntent{ID: txnID, Status: stripe.PaymentIntentStatusSucceeded}, nil
}

func (o *OfflineGateway) Refund(txnID string, amountCents *int64, reason string) (*stripe.Refund, error) {
	return &stripe.Refund{ID: "re_offline_" + uuid.NewString(), Status: stripe.RefundStatusSucceeded}, nil
}

func (o *OfflineGateway) Cancel(txnID string) (*stripe.PaymentIntent, error) {
	return &stripe.PaymentIntent{ID: txnID, Status: stripe.PaymentIntentStatusCanceled}, nil
}

func (o *OfflineGateway) Get(txnID string) (*stripe.PaymentIntent, error) {
	return &stripe.PaymentIntent{ID: txnID, Status: stripe.PaymentIntentStatusRequiresCapture}, nil
}
