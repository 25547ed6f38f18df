package payments

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v83"
	"go.uber.org/zap"

	"github.com/richxcame/courier-dispatch/pkg/async"
	"github.com/richxcame/courier-dispatch/pkg/common"
	"github.com/richxcame/courier-dispatch/pkg/eventbus"
	"github.com/richxcame/courier-dispatch/pkg/logger"
)

// Service handles payment business logic: holds at delivery creation,
// capture on delivery, refunds on cancellation and tip adjustments.
type Service struct {
	repo     RepositoryInterface
	gateway  GatewayInterface
	eventBus *eventbus.Bus
}

// NewService creates a new payments service
func NewService(repo RepositoryInterface, gateway GatewayInterface) *Service {
	return &Service{repo: repo, gateway: gateway}
}

// SetEventBus sets the NATS event bus for publishing payment events
func (s *Service) SetEventBus(bus *eventbus.Bus) {
	s.eventBus = bus
}

// publishEvent publishes an event asynchronously
func (s *Service) publishEvent(subject string, eventType string, data interface{}) {
	if s.eventBus == nil {
		return
	}
	async.GoWithTimeout(context.Background(), "publish "+eventType, 5*time.Second, func(ctx context.Context) {
		evt, err := eventbus.NewEvent(eventType, "payments-service", data)
		if err != nil {
			logger.Warn("failed to create payment event", zap.String("type", eventType), zap.Error(err))
			return
		}
		if err := s.eventBus.Publish(ctx, subject, evt); err != nil {
			logger.Warn("failed to publish payment event", zap.String("type", eventType), zap.Error(err))
		}
	})
}

// Authorize places a hold for a new delivery and returns the Payment row to
// be persisted inside the delivery creation transaction. The delivery ID
// doubles as the gateway idempotency key so a retried creation reuses the
// same hold.
func (s *Service) Authorize(ctx context.Context, in AuthorizeInput) (*Payment, error) {
	metadata := map[string]string{
		"delivery_id": in.DeliveryID.String(),
		"sender_id":   in.SenderID.String(),
	}

	pi, err := s.gateway.Authorize(
		toCents(in.Amount),
		"usd",
		in.PaymentMethodID,
		fmt.Sprintf("Delivery %s", in.DeliveryID),
		"delivery-"+in.DeliveryID.String(),
		metadata,
	)
	if err != nil {
		return nil, s.classifyGatewayError(err, "authorization")
	}

	if pi.Status != stripe.PaymentIntentStatusRequiresCapture {
		return nil, common.NewPaymentError(
			fmt.Sprintf("payment authorization is %s, expected a capturable hold", pi.Status), nil)
	}

	txnID := pi.ID
	now := time.Now()
	payment := &Payment{
		ID:            uuid.New(),
		DeliveryID:    in.DeliveryID,
		SenderID:      in.SenderID,
		Amount:        in.Amount,
		Currency:      "usd",
		PaymentMethod: in.PaymentMethodID,
		Status:        StatusAuthorized,
		TxnID:         &txnID,
		BaseFee:       in.BaseFee,
		DistanceFee:   in.DistanceFee,
		WeightFee:     in.WeightFee,
		PriorityFee:   in.PriorityFee,
		Tax:           in.Tax,
		Discount:      in.Discount,
		PromoCodeID:   in.PromoCodeID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	return payment, nil
}

// ReleaseHold cancels a hold whose delivery creation failed after the
// gateway authorized. Best effort; an orphaned hold expires on its own.
func (s *Service) ReleaseHold(ctx context.Context, txnID string) {
	if _, err := s.gateway.Cancel(txnID); err != nil {
		logger.Error("failed to release orphaned payment hold",
			zap.String("txn_id", txnID),
			zap.Error(err),
		)
	}
}

// CaptureForDelivery captures the payment of a delivered delivery. Safe to
// call more than once; an already captured payment is returned as-is.
func (s *Service) CaptureForDelivery(ctx context.Context, deliveryID uuid.UUID) (*Payment, error) {
	payment, err := s.repo.GetByDeliveryID(ctx, deliveryID)
	if err != nil {
		return nil, err
	}

	switch payment.Status {
	case StatusCaptured:
		return payment, nil
	case StatusAuthorized:
		// proceed
	default:
		return nil, common.NewPaymentError(
			fmt.Sprintf("payment is %s, cannot capture", payment.Status), nil)
	}

	if payment.TxnID == nil {
		return nil, common.NewPaymentError("payment has no transaction id", nil)
	}

	if _, err := s.gateway.Capture(*payment.TxnID, nil); err != nil {
		return nil, s.classifyGatewayError(err, "capture")
	}

	updated, err := s.repo.MarkCaptured(ctx, deliveryID)
	if err != nil {
		return nil, err
	}
	if !updated {
		// A concurrent capture won; reload for the caller.
		return s.repo.GetByDeliveryID(ctx, deliveryID)
	}

	payment.Status = StatusCaptured

	s.publishEvent(eventbus.SubjectDeliveryPaymentCaptured, "payment.captured", eventbus.PaymentCapturedData{
		PaymentID:  payment.ID,
		DeliveryID: deliveryID,
		SenderID:   payment.SenderID,
		Amount:     payment.Amount,
		TipAmount:  payment.Tip,
		Currency:   payment.Currency,
		Method:     payment.PaymentMethod,
		CapturedAt: time.Now(),
	})

	logger.Info("payment captured",
		zap.String("delivery_id", deliveryID.String()),
		zap.Float64("amount", payment.Amount),
	)

	return payment, nil
}

// RefundForDelivery settles a cancelled or voided delivery. A full refund
// releases the hold entirely; a partial refund captures the retained fee and
// the remainder of the hold falls away. Safe to call more than once.
func (s *Service) RefundForDelivery(ctx context.Context, deliveryID uuid.UUID, refundAmount float64, reason string) (*Payment, error) {
	payment, err := s.repo.GetByDeliveryID(ctx, deliveryID)
	if err != nil {
		return nil, err
	}

	switch payment.Status {
	case StatusRefunded:
		return payment, nil
	case StatusAuthorized:
		// proceed
	default:
		return nil, common.NewPaymentError(
			fmt.Sprintf("payment is %s, cannot refund", payment.Status), nil)
	}

	if payment.TxnID == nil {
		return nil, common.NewPaymentError("payment has no transaction id", nil)
	}

	if refundAmount < 0 || refundAmount > payment.Amount {
		return nil, common.NewValidationError("refund amount out of range")
	}

	retained := round2(payment.Amount - refundAmount)
	if retained > 0 {
		// Keep the cancellation fee, release the rest of the hold.
		fee := toCents(retained)
		if _, err := s.gateway.Capture(*payment.TxnID, &fee); err != nil {
			return nil, s.classifyGatewayError(err, "refund")
		}
	} else {
		if _, err := s.gateway.Cancel(*payment.TxnID); err != nil {
			return nil, s.classifyGatewayError(err, "refund")
		}
	}

	updated, err := s.repo.MarkRefunded(ctx, deliveryID, refundAmount, reason)
	if err != nil {
		return nil, err
	}
	if !updated {
		return s.repo.GetByDeliveryID(ctx, deliveryID)
	}

	payment.Status = StatusRefunded
	payment.RefundAmount = refundAmount
	payment.RefundReason = &reason

	s.publishEvent(eventbus.SubjectDeliveryPaymentRefunded, "payment.refunded", eventbus.PaymentRefundedData{
		PaymentID:  payment.ID,
		DeliveryID: deliveryID,
		SenderID:   payment.SenderID,
		Amount:     refundAmount,
		Reason:     reason,
		RefundedAt: time.Now(),
	})

	logger.Info("payment refunded",
		zap.String("delivery_id", deliveryID.String()),
		zap.Float64("refund_amount", refundAmount),
		zap.String("reason", reason),
	)

	return payment, nil
}

// AddTip raises the tip on a delivered delivery and credits the courier the
// delta in the same transaction.
func (s *Service) AddTip(ctx context.Context, deliveryID, senderID uuid.UUID, newTip float64) (*Payment, error) {
	parties, err := s.repo.GetDeliveryParties(ctx, deliveryID)
	if err != nil {
		return nil, err
	}
	if parties.SenderID != senderID {
		return nil, common.NewForbiddenError("only the sender can tip a delivery")
	}
	if parties.Status != "delivered" {
		return nil, common.NewValidationError("tips can only be added after delivery")
	}
	if parties.CourierID == nil {
		return nil, common.NewValidationError("delivery has no courier to tip")
	}

	payment, err := s.repo.GetByDeliveryID(ctx, deliveryID)
	if err != nil {
		return nil, err
	}

	newTip = round2(newTip)
	if newTip <= payment.Tip {
		return nil, common.NewValidationError("tip can only be increased")
	}

	if err := s.repo.AddTip(ctx, payment.ID, deliveryID, payment.Tip, newTip, *parties.CourierID); err != nil {
		return nil, err
	}

	delta := round2(newTip - payment.Tip)
	payment.Tip = newTip

	logger.Info("tip added",
		zap.String("delivery_id", deliveryID.String()),
		zap.Float64("tip", newTip),
		zap.Float64("delta", delta),
	)

	return payment, nil
}

// Receipt returns the payment breakdown of a delivered delivery to its
// sender or courier.
func (s *Service) Receipt(ctx context.Context, deliveryID, requesterID uuid.UUID) (*Receipt, error) {
	parties, err := s.repo.GetDeliveryParties(ctx, deliveryID)
	if err != nil {
		return nil, err
	}

	isParty := parties.SenderID == requesterID ||
		(parties.CourierID != nil && *parties.CourierID == requesterID)
	if !isParty {
		return nil, common.NewForbiddenError("not a party to this delivery")
	}
	if parties.Status != "delivered" {
		return nil, common.NewValidationError("receipt is available once the delivery is delivered")
	}

	return s.repo.GetReceipt(ctx, deliveryID)
}

// GetByDeliveryID retrieves the payment attached to a delivery
func (s *Service) GetByDeliveryID(ctx context.Context, deliveryID uuid.UUID) (*Payment, error) {
	return s.repo.GetByDeliveryID(ctx, deliveryID)
}

// classifyGatewayError maps gateway failures onto API errors: timeouts keep
// the payment pending, declines are payment errors.
func (s *Service) classifyGatewayError(err error, operation string) error {
	if appErr, ok := common.AsAppError(err); ok {
		return appErr
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return common.NewPaymentPendingError(
			fmt.Sprintf("payment %s timed out, status pending confirmation", operation))
	}

	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		if stripeErr.HTTPStatusCode == 408 {
			return common.NewPaymentPendingError(
				fmt.Sprintf("payment %s timed out, status pending confirmation", operation))
		}
		if stripeErr.Type == stripe.ErrorTypeCard {
			return common.NewPaymentError(fmt.Sprintf("payment %s declined: %s", operation, stripeErr.Msg), err)
		}
	}

	return common.NewPaymentError(fmt.Sprintf("payment %s failed", operation), err)
}

// toCents converts a dollar amount to the gateway's integer cents.
func toCents(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

// round2 rounds half away from zero to two decimals.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
