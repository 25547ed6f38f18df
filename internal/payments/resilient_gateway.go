package payments

import (
	"context"
	"errors"
	"time"

	"github.com/stripe/stripe-go/v83"
	"go.uber.org/zap"

	"github.com/richxcame/courier-dispatch/pkg/common"
	"github.com/richxcame/courier-dispatch/pkg/logger"
	"github.com/richxcame/courier-dispatch/pkg/resilience"
)

// ResilientGateway wraps a payment gateway with circuit breaker and retry
// logic. Declines and other 4xx results are never retried; only transient
// gateway failures are.
type ResilientGateway struct {
	gateway GatewayInterface
	breaker *resilience.CircuitBreaker
	retry   resilience.RetryConfig
}

// Ensure ResilientGateway implements GatewayInterface.
var _ GatewayInterface = (*ResilientGateway)(nil)

// NewResilientGateway creates a resilient wrapper around a gateway.
func NewResilientGateway(gateway GatewayInterface, breaker *resilience.CircuitBreaker) *ResilientGateway {
	if breaker == nil {
		breakerSettings := resilience.Settings{
			Name:             "stripe-api",
			Interval:         60 * time.Second,
			Timeout:          30 * time.Second,
			FailureThreshold: 5,
			SuccessThreshold: 2,
		}

		breaker = resilience.NewCircuitBreaker(breakerSettings, func(ctx context.Context, err error) (interface{}, error) {
			logger.Error("payment gateway circuit open",
				zap.Error(err),
			)
			return nil, common.NewDependencyError("payments are temporarily unavailable, please try again", err)
		})
	}

	retryConfig := resilience.DefaultRetryConfig()
	retryConfig.MaxAttempts = 3
	retryConfig.InitialBackoff = 1 * time.Second
	retryConfig.MaxBackoff = 10 * time.Second
	retryConfig.RetryableChecker = isStripeRetryable

	return &ResilientGateway{
		gateway: gateway,
		breaker: breaker,
		retry:   retryConfig,
	}
}

// Authorize places a hold with resilience
func (r *ResilientGateway) Authorize(amountCents int64, currency, paymentMethodID, description, idempotencyKey string, metadata map[string]string) (*stripe.PaymentIntent, error) {
	ctx := context.Background()

	result, err := resilience.RetryWithBreaker(ctx, r.retry, r.breaker, func(ctx context.Context) (interface{}, error) {
		return r.gateway.Authorize(amountCents, currency, paymentMethodID, description, idempotencyKey, metadata)
	})
	if err != nil {
		logger.Error("failed to authorize payment after retries",
			zap.Error(err),
			zap.Int64("amount_cents", amountCents),
			zap.String("currency", currency),
		)
		return nil, err
	}

	pi := result.(*stripe.PaymentIntent)
	logger.Info("payment authorized",
		zap.String("txn_id", pi.ID),
		zap.Int64("amount_cents", amountCents),
	)
	return pi, nil
}

// Capture takes held funds with resilience
func (r *ResilientGateway) Capture(txnID string, amountCents *int64) (*stripe.PaymentIntent, error) {
	ctx := context.Background()

	result, err := resilience.RetryWithBreaker(ctx, r.retry, r.breaker, func(ctx context.Context) (interface{}, error) {
		return r.gateway.Capture(txnID, amountCents)
	})
	if err != nil {
		logger.Error("failed to capture payment after retries",
			zap.Error(err),
			zap.String("txn_id", txnID),
		)
		return nil, err
	}

	return result.(*stripe.PaymentIntent), nil
}

// Refund returns captured funds with resilience
func (r *ResilientGateway) Refund(txnID string, amountCents *int64, reason string) (*stripe.Refund, error) {
	ctx := context.Background()

	result, err := resilience.RetryWithBreaker(ctx, r.retry, r.breaker, func(ctx context.Context) (interface{}, error) {
		return r.gateway.Refund(txnID, amountCents, reason)
	})
	if err != nil {
		logger.Error("failed to refund payment after retries",
			zap.Error(err),
			zap.String("txn_id", txnID),
		)
		return nil, err
	}

	return result.(*stripe.Refund), nil
}

// Cancel releases an uncaptured hold with resilience
func (r *ResilientGateway) Cancel(txnID string) (*stripe.PaymentIntent, error) {
	ctx := context.Background()

	result, err := resilience.RetryWithBreaker(ctx, r.retry, r.breaker, func(ctx context.Context) (interface{}, error) {
		return r.gateway.Cancel(txnID)
	})
	if err != nil {
		logger.Error("failed to cancel payment after retries",
			zap.Error(err),
			zap.String("txn_id", txnID),
		)
		return nil, err
	}

	return result.(*stripe.PaymentIntent), nil
}

// Get retrieves a payment intent with resilience
func (r *ResilientGateway) Get(txnID string) (*stripe.PaymentIntent, error) {
	ctx := context.Background()

	result, err := resilience.RetryWithBreaker(ctx, r.retry, r.breaker, func(ctx context.Context) (interface{}, error) {
		return r.gateway.Get(txnID)
	})
	if err != nil {
		logger.Error("failed to get payment intent after retries",
			zap.Error(err),
			zap.String("txn_id", txnID),
		)
		return nil, err
	}

	return result.(*stripe.PaymentIntent), nil
}

// isStripeRetryable determines if a Stripe error should be retried
func isStripeRetryable(err error) bool {
	if err == nil {
		return false
	}

	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		if stripeErr.Type == stripe.ErrorTypeAPI {
			return true
		}

		if stripeErr.HTTPStatusCode >= 500 && stripeErr.HTTPStatusCode < 600 {
			return true
		}

		// Rate limits and request timeouts are transient.
		if stripeErr.HTTPStatusCode == 429 || stripeErr.HTTPStatusCode == 408 {
			return true
		}

		// Remaining 4xx are declines, invalid requests, bad credentials.
		// Retrying will not change the answer.
		if stripeErr.HTTPStatusCode >= 400 && stripeErr.HTTPStatusCode < 500 {
			return false
		}

		if stripeErr.Type == stripe.ErrorTypeCard || stripeErr.Type == stripe.ErrorTypeInvalidRequest {
			return false
		}
	}

	// Non-Stripe errors are network problems; retry.
	return true
}
