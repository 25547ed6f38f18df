package delivery

import (
	"context"
	"crypto/rand"
	"fmt"
	"math"
	"math/big"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/richxcame/courier-dispatch/internal/payments"
	"github.com/richxcame/courier-dispatch/internal/pricing"
	"github.com/richxcame/courier-dispatch/internal/promos"
	"github.com/richxcame/courier-dispatch/internal/tracking"
	"github.com/richxcame/courier-dispatch/pkg/async"
	"github.com/richxcame/courier-dispatch/pkg/common"
	"github.com/richxcame/courier-dispatch/pkg/eventbus"
	"github.com/richxcame/courier-dispatch/pkg/geo"
	"github.com/richxcame/courier-dispatch/pkg/logger"
	"github.com/richxcame/courier-dispatch/pkg/models"
	"github.com/richxcame/courier-dispatch/pkg/validation"
)

// Service orchestrates the delivery lifecycle: creation with payment hold and
// tracking links, the status state machine, courier claims, cancellation with
// refunds, and the money movements tied to terminal states.
type Service struct {
	repo     RepositoryInterface
	pricing  PricingService
	promos   PromoService
	payments PaymentService
	tracking TrackingService
	settings SettingsService

	publicBaseURL string
	eventBus      *eventbus.Bus
}

// NewService creates a new delivery service
func NewService(
	repo RepositoryInterface,
	pricingSvc PricingService,
	promoSvc PromoService,
	paymentSvc PaymentService,
	trackingSvc TrackingService,
	settingsSvc SettingsService,
	publicBaseURL string,
) *Service {
	return &Service{
		repo:          repo,
		pricing:       pricingSvc,
		promos:        promoSvc,
		payments:      paymentSvc,
		tracking:      trackingSvc,
		settings:      settingsSvc,
		publicBaseURL: publicBaseURL,
	}
}

// SetEventBus sets the NATS event bus for publishing delivery events
func (s *Service) SetEventBus(bus *eventbus.Bus) {
	s.eventBus = bus
}

// publishEvent publishes an event asynchronously
func (s *Service) publishEvent(subject string, eventType string, data interface{}) {
	if s.eventBus == nil {
		return
	}
	async.GoWithTimeout(context.Background(), "publish "+eventType, 5*time.Second, func(ctx context.Context) {
		evt, err := eventbus.NewEvent(eventType, "delivery-service", data)
		if err != nil {
			logger.Warn("failed to create delivery event", zap.String("type", eventType), zap.Error(err))
			return
		}
		if err := s.eventBus.Publish(ctx, subject, evt); err != nil {
			logger.Warn("failed to publish delivery event", zap.String("type", eventType), zap.Error(err))
		}
	})
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// newVerificationCode mints the 4-digit code the recipient reads to the
// courier at handoff.
func newVerificationCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(10000))
	if err != nil {
		return "", fmt.Errorf("failed to generate verification code: %w", err)
	}
	return fmt.Sprintf("%04d", n.Int64()), nil
}

// Requester identifies who is asking for a delivery: an authenticated user,
// or an anonymous holder of a tracking token.
type Requester struct {
	UserID        uuid.UUID
	Role          models.UserRole
	TrackingToken string
}

// Estimate prices a delivery without creating anything. An invalid promo code
// comes back in the verdict, not as an error, so clients can show why.
func (s *Service) Estimate(ctx context.Context, userID uuid.UUID, req *validation.EstimateRequest) (*EstimateResult, error) {
	if err := validation.ValidateStruct(req); err != nil {
		return nil, common.NewValidationError(err.Error())
	}

	packageTypeID, err := uuid.Parse(req.PackageTypeID)
	if err != nil {
		return nil, common.NewValidationError("invalid package type ID")
	}

	sys, err := s.settings.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	quote, _, err := s.pricing.QuoteDelivery(ctx, pricing.QuoteInput{
		PickupLatitude:   req.PickupLatitude,
		PickupLongitude:  req.PickupLongitude,
		DropoffLatitude:  req.DropoffLatitude,
		DropoffLongitude: req.DropoffLongitude,
		WeightLbs:        req.WeightLbs,
		Priority:         req.Priority,
	}, packageTypeID)
	if err != nil {
		return nil, err
	}

	if quote.DistanceMiles > sys.MaxDeliveryDistanceMiles {
		return nil, common.NewValidationError(fmt.Sprintf(
			"delivery distance %.1f miles exceeds the %.0f mile service area",
			quote.DistanceMiles, sys.MaxDeliveryDistanceMiles))
	}

	result := &EstimateResult{
		BaseFee:                  quote.BaseFee,
		DistanceFee:              quote.DistanceFee,
		WeightFee:                quote.WeightFee,
		PriorityFee:              quote.PriorityFee,
		Tax:                      quote.Tax,
		Total:                    quote.Total,
		DistanceMiles:            quote.DistanceMiles,
		EstimatedDurationMinutes: quote.EstimatedDurationMinutes,
	}

	if req.PromoCode != "" {
		verdict, err := s.promos.Validate(ctx, req.PromoCode, userID, quote.Total)
		if err != nil {
			return nil, err
		}
		result.Promo = verdict
		if verdict.Valid {
			result.Total = verdict.FinalAmount
		}
	}

	return result, nil
}

// Create authorizes payment, mints tracking links and a verification code,
// and persists the delivery already searching for a courier. The payment hold
// is placed before the transaction and released if persistence fails.
func (s *Service) Create(ctx context.Context, senderID uuid.UUID, req *validation.CreateDeliveryRequest) (*CreateResult, error) {
	if err := validation.ValidateDeliveryRequest(req); err != nil {
		return nil, common.NewValidationError(err.Error())
	}

	packageTypeID, err := uuid.Parse(req.PackageTypeID)
	if err != nil {
		return nil, common.NewValidationError("invalid package type ID")
	}

	sys, err := s.settings.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	quote, _, err := s.pricing.QuoteDelivery(ctx, pricing.QuoteInput{
		PickupLatitude:   req.PickupLatitude,
		PickupLongitude:  req.PickupLongitude,
		DropoffLatitude:  req.DropoffLatitude,
		DropoffLongitude: req.DropoffLongitude,
		WeightLbs:        req.WeightLbs,
		Priority:         req.Priority,
	}, packageTypeID)
	if err != nil {
		return nil, err
	}

	if quote.DistanceMiles > sys.MaxDeliveryDistanceMiles {
		return nil, common.NewValidationError(fmt.Sprintf(
			"delivery distance %.1f miles exceeds the %.0f mile service area",
			quote.DistanceMiles, sys.MaxDeliveryDistanceMiles))
	}

	deliveryID := uuid.New()
	amount := quote.Total
	var discount float64
	var promoCodeID *uuid.UUID
	var usage *promos.PromoUsage

	if req.PromoCode != "" {
		verdict, err := s.promos.Validate(ctx, req.PromoCode, senderID, quote.Total)
		if err != nil {
			return nil, err
		}
		if !verdict.Valid {
			return nil, common.NewValidationError(verdict.Message)
		}
		discount = verdict.DiscountAmount
		amount = verdict.FinalAmount
		promoCodeID = verdict.PromoCodeID
		usage = &promos.PromoUsage{
			ID:             uuid.New(),
			PromoCodeID:    *verdict.PromoCodeID,
			UserID:         senderID,
			DeliveryID:     deliveryID,
			DiscountAmount: verdict.DiscountAmount,
			OriginalAmount: quote.Total,
			FinalAmount:    verdict.FinalAmount,
			UsedAt:         time.Now(),
		}
	}

	verificationCode, err := newVerificationCode()
	if err != nil {
		return nil, common.NewInternalError("failed to prepare delivery", err)
	}

	payment, err := s.payments.Authorize(ctx, payments.AuthorizeInput{
		DeliveryID:      deliveryID,
		SenderID:        senderID,
		PaymentMethodID: req.PaymentMethodID,
		Amount:          amount,
		BaseFee:         quote.BaseFee,
		DistanceFee:     quote.DistanceFee,
		WeightFee:       quote.WeightFee,
		PriorityFee:     quote.PriorityFee,
		Tax:             quote.Tax,
		Discount:        discount,
		PromoCodeID:     promoCodeID,
	})
	if err != nil {
		return nil, err
	}

	recipientLink, senderLink, err := s.tracking.NewLinkPair(deliveryID)
	if err != nil {
		s.releaseHold(ctx, payment)
		return nil, err
	}

	now := time.Now()
	etaBase := now
	if req.ScheduledPickupTime != nil {
		etaBase = *req.ScheduledPickupTime
	}
	estimatedDelivery := etaBase.Add(time.Duration(quote.EstimatedDurationMinutes) * time.Minute)

	d := &Delivery{
		ID:                       deliveryID,
		SenderID:                 senderID,
		Status:                   StatusSearchingCourier,
		StatusSince:              now,
		PickupLatitude:           req.PickupLatitude,
		PickupLongitude:          req.PickupLongitude,
		PickupAddress:            req.PickupAddr,
		PickupAccessCode:         optionalString(req.PickupAccessCode),
		DropoffLatitude:          req.DropoffLatitude,
		DropoffLongitude:         req.DropoffLongitude,
		DropoffAddress:           req.DropoffAddr,
		DropoffAccessCode:        optionalString(req.DropoffAccessCode),
		PackageTypeID:            packageTypeID,
		Description:              optionalString(req.Description),
		WeightLbs:                req.WeightLbs,
		Fragile:                  req.Fragile,
		RequiresSignature:        req.RequiresSignature,
		RequiresIDVerification:   req.RequiresIDVerification,
		RequiresPhotoProof:       req.RequiresPhotoProof,
		RecipientName:            req.RecipientName,
		RecipientPhone:           req.RecipientPhone,
		RecipientEmail:           optionalString(req.RecipientEmail),
		VerificationCode:         verificationCode,
		SpecialInstructions:      optionalString(req.SpecialInstructions),
		PackagePhotoURL:          optionalString(req.PackagePhotoURL),
		Priority:                 req.Priority,
		DistanceMiles:            quote.DistanceMiles,
		EstimatedDurationMinutes: quote.EstimatedDurationMinutes,
		ScheduledPickupTime:      req.ScheduledPickupTime,
		EstimatedDeliveryTime:    &estimatedDelivery,
		CreatedAt:                now,
		UpdatedAt:                now,
	}

	links := []*tracking.TrackingLink{recipientLink, senderLink}
	if err := s.repo.CreateDelivery(ctx, d, payment, usage, links); err != nil {
		s.releaseHold(ctx, payment)
		return nil, err
	}

	s.publishEvent(eventbus.SubjectDeliveryRequested, "delivery.requested", eventbus.DeliveryRequestedData{
		DeliveryID:          d.ID,
		SenderID:            d.SenderID,
		PickupLatitude:      d.PickupLatitude,
		PickupLongitude:     d.PickupLongitude,
		PickupAddress:       d.PickupAddress,
		DropoffLatitude:     d.DropoffLatitude,
		DropoffLongitude:    d.DropoffLongitude,
		DropoffAddress:      d.DropoffAddress,
		WeightLbs:           d.WeightLbs,
		Priority:            d.Priority,
		DistanceMiles:       d.DistanceMiles,
		EstimatedTotal:      payment.Amount,
		ScheduledPickupTime: d.ScheduledPickupTime,
		RequestedAt:         now,
	})

	return &CreateResult{
		Delivery: d,
		Payment:  payment,
		TrackingURLs: TrackingURLs{
			Recipient: tracking.URL(s.publicBaseURL, recipientLink.Token),
			Sender:    tracking.URL(s.publicBaseURL, senderLink.Token),
		},
	}, nil
}

func (s *Service) releaseHold(ctx context.Context, payment *payments.Payment) {
	if payment.TxnID != nil {
		s.payments.ReleaseHold(ctx, *payment.TxnID)
	}
}

// Get returns a delivery with its status timeline. The sender, the assigned
// courier and admins see everything; a valid tracking token gets the public
// view.
func (s *Service) Get(ctx context.Context, deliveryID uuid.UUID, req Requester) (*DeliveryView, error) {
	d, err := s.repo.GetByID(ctx, deliveryID)
	if err != nil {
		return nil, err
	}

	isParty := req.UserID != uuid.Nil &&
		(d.SenderID == req.UserID ||
			(d.CourierID != nil && *d.CourierID == req.UserID) ||
			req.Role == models.RoleAdmin)

	if !isParty {
		if req.TrackingToken == "" {
			return nil, common.NewForbiddenError("you are not a party to this delivery")
		}
		if _, err := s.tracking.ValidateForDelivery(ctx, req.TrackingToken, deliveryID); err != nil {
			return nil, err
		}
		d = d.PublicView()
	}

	events, err := s.repo.GetStatusEvents(ctx, deliveryID)
	if err != nil {
		return nil, err
	}

	return &DeliveryView{Delivery: d, Events: events}, nil
}

// List returns the caller's deliveries: senders see what they sent, couriers
// what they carried.
func (s *Service) List(ctx context.Context, userID uuid.UUID, role models.UserRole, filters *ListFilters, limit, offset int) ([]*Delivery, int64, error) {
	return s.repo.List(ctx, userID, role == models.RoleCourier, filters, limit, offset)
}

// GetActiveForCourier returns the courier's current delivery with timeline.
func (s *Service) GetActiveForCourier(ctx context.Context, courierID uuid.UUID) (*DeliveryView, error) {
	d, err := s.repo.GetActiveByCourier(ctx, courierID)
	if err != nil {
		return nil, err
	}
	events, err := s.repo.GetStatusEvents(ctx, d.ID)
	if err != nil {
		return nil, err
	}
	return &DeliveryView{Delivery: d, Events: events}, nil
}

// Cancel moves a delivery to cancelled and refunds per the cancellation
// policy in effect at the moment of cancellation. Repeating a cancel is safe:
// it retries the refund if the first attempt did not stick.
func (s *Service) Cancel(ctx context.Context, deliveryID, userID uuid.UUID, role models.UserRole, reason string) (*CancelResult, error) {
	d, err := s.repo.GetByID(ctx, deliveryID)
	if err != nil {
		return nil, err
	}

	if d.SenderID != userID && role != models.RoleAdmin {
		return nil, common.NewForbiddenError("only the sender can cancel a delivery")
	}

	if d.Status == StatusCancelled {
		return s.settleCancelled(ctx, d, reason)
	}
	if !cancellable(d.Status) {
		return nil, common.NewInvalidTransitionError(
			fmt.Sprintf("a %s delivery can no longer be cancelled", d.Status))
	}

	payment, err := s.payments.GetByDeliveryID(ctx, deliveryID)
	if err != nil {
		return nil, err
	}
	refund, fee := refundFor(d.Status, payment.Amount)

	actorRole := ActorSender
	if role == models.RoleAdmin {
		actorRole = ActorSystem
	}
	previous := d.Status
	courierID := d.CourierID

	result, err := s.repo.ApplyTransition(ctx, Transition{
		DeliveryID: deliveryID,
		From:       previous,
		To:         StatusCancelled,
		ActorID:    &userID,
		ActorRole:  actorRole,
		Notes:      optionalString(reason),
		Reason:     optionalString(reason),
	})
	if err != nil {
		return nil, err
	}
	if !result.Applied {
		return s.settleCancelled(ctx, result.Delivery, reason)
	}

	if _, err := s.payments.RefundForDelivery(ctx, deliveryID, refund, reason); err != nil {
		logger.Error("failed to refund cancelled delivery",
			zap.String("delivery_id", deliveryID.String()),
			zap.Float64("refund", refund),
			zap.Error(err),
		)
	}

	s.publishStatusChanged(result.Delivery, previous, actorRole)
	s.publishEvent(eventbus.SubjectDeliveryCancelled, "delivery.cancelled", eventbus.DeliveryCancelledData{
		DeliveryID:      deliveryID,
		SenderID:        d.SenderID,
		CourierID:       derefUUID(courierID),
		CancelledBy:     actorRole,
		Reason:          reason,
		RefundAmount:    refund,
		CancellationFee: fee,
		CancelledAt:     time.Now(),
	})

	return &CancelResult{Delivery: result.Delivery, RefundAmount: refund, CancellationFee: fee}, nil
}

// settleCancelled handles a cancel of an already cancelled delivery. If the
// refund went through the recorded amounts are reported; if it did not, the
// refund basis is recovered from the status timeline and retried.
func (s *Service) settleCancelled(ctx context.Context, d *Delivery, reason string) (*CancelResult, error) {
	payment, err := s.payments.GetByDeliveryID(ctx, d.ID)
	if err != nil {
		return nil, err
	}
	if payment.Status == payments.StatusRefunded {
		return &CancelResult{
			Delivery:        d,
			RefundAmount:    payment.RefundAmount,
			CancellationFee: round2(payment.Amount - payment.RefundAmount),
		}, nil
	}

	basis, err := s.statusBeforeCancel(ctx, d.ID)
	if err != nil {
		return nil, err
	}
	refund, fee := refundFor(basis, payment.Amount)
	if _, err := s.payments.RefundForDelivery(ctx, d.ID, refund, reason); err != nil {
		return nil, err
	}
	return &CancelResult{Delivery: d, RefundAmount: refund, CancellationFee: fee}, nil
}

// statusBeforeCancel walks the timeline for the status the delivery was in
// when it got cancelled.
func (s *Service) statusBeforeCancel(ctx context.Context, deliveryID uuid.UUID) (string, error) {
	events, err := s.repo.GetStatusEvents(ctx, deliveryID)
	if err != nil {
		return "", err
	}
	basis := StatusPending
	for _, e := range events {
		if e.Status == StatusCancelled {
			break
		}
		basis = e.Status
	}
	return basis, nil
}

// Claim accepts a delivery on behalf of a courier. The conditional update in
// the repository decides the winner; everyone else gets AlreadyAssigned.
func (s *Service) Claim(ctx context.Context, deliveryID, courierID uuid.UUID) (*Delivery, error) {
	summary, err := s.repo.AtomicClaim(ctx, deliveryID, courierID)
	if err != nil {
		return nil, err
	}

	d, err := s.repo.GetByID(ctx, deliveryID)
	if err != nil {
		return nil, err
	}

	etaMinutes := 0
	if summary.Latitude != nil && summary.Longitude != nil {
		miles := geo.Miles(*summary.Latitude, *summary.Longitude, d.PickupLatitude, d.PickupLongitude)
		etaMinutes = geo.EstimateDurationMinutes(miles)
	}

	now := time.Now()
	s.publishEvent(eventbus.SubjectDeliveryAssigned, "delivery.assigned", eventbus.DeliveryAssignedData{
		DeliveryID:  d.ID,
		SenderID:    d.SenderID,
		CourierID:   courierID,
		VehicleType: summary.VehicleType,
		EtaMinutes:  etaMinutes,
		AssignedAt:  now,
	})
	s.publishStatusChanged(d, StatusSearchingCourier, ActorCourier)

	return d, nil
}

// UpdateStatus applies a courier-driven transition. Proof requirements gate
// delivered, failed and returned need a reason, and repeating the current
// status is a no-op success.
func (s *Service) UpdateStatus(ctx context.Context, deliveryID, courierID uuid.UUID, req *validation.UpdateDeliveryStatusRequest) (*Delivery, error) {
	if err := validation.ValidateStruct(req); err != nil {
		return nil, common.NewValidationError(err.Error())
	}

	d, err := s.repo.GetByID(ctx, deliveryID)
	if err != nil {
		return nil, err
	}
	if d.CourierID == nil || *d.CourierID != courierID {
		return nil, common.NewForbiddenError("only the assigned courier can update this delivery")
	}

	target := req.Status
	if d.Status == target {
		return d, nil
	}

	rule, err := ruleFor(d.Status, target, ActorCourier)
	if err != nil {
		return nil, err
	}

	if rule.proofGated {
		if err := s.checkProof(d, req); err != nil {
			return nil, err
		}
	}
	if rule.reasonNeeded && req.Notes == "" {
		return nil, common.NewValidationError(
			fmt.Sprintf("a reason is required to mark the delivery %s", target))
	}

	var payment *payments.Payment
	var credit float64
	if target == StatusDelivered || target == StatusFailed || target == StatusReturned {
		payment, err = s.payments.GetByDeliveryID(ctx, deliveryID)
		if err != nil {
			return nil, err
		}
	}
	if target == StatusDelivered {
		sys, err := s.settings.Snapshot(ctx)
		if err != nil {
			return nil, err
		}
		credit = round2(payment.Amount*sys.CourierCommissionRate) + payment.Tip
	}

	previous := d.Status
	result, err := s.repo.ApplyTransition(ctx, Transition{
		DeliveryID:    deliveryID,
		From:          previous,
		To:            target,
		ActorID:       &courierID,
		ActorRole:     ActorCourier,
		Latitude:      req.Latitude,
		Longitude:     req.Longitude,
		Notes:         optionalString(req.Notes),
		Reason:        optionalString(req.Notes),
		ProofPhotoURL: optionalString(req.ProofPhotoURL),
		SignatureURL:  optionalString(req.SignatureURL),
		IDVerified:    req.IDVerified,
		CourierCredit: credit,
	})
	if err != nil {
		return nil, err
	}
	if !result.Applied {
		return result.Delivery, nil
	}

	s.publishStatusChanged(result.Delivery, previous, ActorCourier)

	switch target {
	case StatusDelivered:
		s.settleDelivered(ctx, result.Delivery, payment, credit)
	case StatusFailed, StatusReturned:
		// A failed or returned delivery voids the charge.
		if _, err := s.payments.RefundForDelivery(ctx, deliveryID, payment.Amount, req.Notes); err != nil {
			logger.Error("failed to void payment for undeliverable package",
				zap.String("delivery_id", deliveryID.String()),
				zap.String("status", target),
				zap.Error(err),
			)
		}
	}

	return result.Delivery, nil
}

// settleDelivered captures the payment and announces completion. A capture
// failure is logged and left to the payment capture consumer to retry.
func (s *Service) settleDelivered(ctx context.Context, d *Delivery, payment *payments.Payment, credit float64) {
	if _, err := s.payments.CaptureForDelivery(ctx, d.ID); err != nil {
		logger.Error("failed to capture payment after delivery",
			zap.String("delivery_id", d.ID.String()),
			zap.Error(err),
		)
	}

	s.publishEvent(eventbus.SubjectDeliveryCompleted, "delivery.completed", eventbus.DeliveryCompletedData{
		DeliveryID:      d.ID,
		SenderID:        d.SenderID,
		CourierID:       derefUUID(d.CourierID),
		Total:           payment.Amount,
		CourierEarnings: credit,
		DistanceMiles:   d.DistanceMiles,
		CompletedAt:     time.Now(),
	})
}

// checkProof enforces the proof requirements chosen at creation before a
// delivery may complete. Proof already on file counts.
func (s *Service) checkProof(d *Delivery, req *validation.UpdateDeliveryStatusRequest) error {
	if d.RequiresPhotoProof && req.ProofPhotoURL == "" && d.ProofPhotoURL == nil {
		return common.NewProofRequiredError("photo proof is required to complete this delivery")
	}
	if d.RequiresSignature && req.SignatureURL == "" && d.SignatureURL == nil {
		return common.NewProofRequiredError("recipient signature is required to complete this delivery")
	}
	if d.RequiresIDVerification && !req.IDVerified && !d.IDVerified {
		return common.NewProofRequiredError("recipient ID verification is required to complete this delivery")
	}
	return nil
}

// autoTransitionSources maps each proximity-driven status to the only status
// it may fire from.
var autoTransitionSources = map[string]string{
	StatusApproachingPickup:  StatusEnRouteToPickup,
	StatusApproachingDropoff: StatusInTransit,
}

// AutoTransition applies a proximity-driven move. It is a hint, not a
// command: if the delivery is not in the one status the move fires from,
// nothing happens.
func (s *Service) AutoTransition(ctx context.Context, deliveryID uuid.UUID, to string, lat, lng float64) (bool, error) {
	from, ok := autoTransitionSources[to]
	if !ok {
		return false, common.NewValidationError(fmt.Sprintf("%s is not a proximity-driven status", to))
	}

	d, err := s.repo.GetByID(ctx, deliveryID)
	if err != nil {
		return false, err
	}
	if d.Status != from {
		return false, nil
	}

	result, err := s.repo.ApplyTransition(ctx, Transition{
		DeliveryID: deliveryID,
		From:       from,
		To:         to,
		ActorRole:  ActorSystem,
		Latitude:   &lat,
		Longitude:  &lng,
	})
	if err != nil {
		// A concurrent courier update beat the proximity hint.
		if appErr, ok := common.AsAppError(err); ok && appErr.ErrorCode == common.CodeInvalidTransition {
			return false, nil
		}
		return false, err
	}
	if !result.Applied {
		return false, nil
	}

	s.publishStatusChanged(result.Delivery, from, ActorSystem)
	return true, nil
}

// RecordETA persists a recomputed arrival estimate and announces it.
func (s *Service) RecordETA(ctx context.Context, deliveryID, courierID uuid.UUID, eta time.Time, etaMinutes int, distanceMiles float64) error {
	if err := s.repo.UpdateETA(ctx, deliveryID, eta); err != nil {
		return err
	}
	s.publishEvent(eventbus.SubjectDeliveryETAUpdated, "delivery.eta_updated", eventbus.DeliveryETAUpdatedData{
		DeliveryID:            deliveryID,
		CourierID:             courierID,
		EtaMinutes:            etaMinutes,
		DistanceToTargetMiles: distanceMiles,
		UpdatedAt:             time.Now(),
	})
	return nil
}

// MarkSearchExpired flags that the courier search ran out of time. The
// delivery stays in searching_courier so the sender can cancel or wait.
func (s *Service) MarkSearchExpired(ctx context.Context, deliveryID uuid.UUID, offersSent, searchMinutes int) error {
	d, err := s.repo.GetByID(ctx, deliveryID)
	if err != nil {
		return err
	}
	if d.Status != StatusSearchingCourier {
		return nil
	}

	s.publishEvent(eventbus.SubjectDeliverySearchExpired, "delivery.search_expired", eventbus.SearchExpiredData{
		DeliveryID:     deliveryID,
		SenderID:       d.SenderID,
		OffersSent:     offersSent,
		SearchDuration: searchMinutes,
		ExpiredAt:      time.Now(),
	})
	return nil
}

func (s *Service) publishStatusChanged(d *Delivery, previous, actorRole string) {
	s.publishEvent(eventbus.SubjectDeliveryStatusChanged, "delivery.status_changed", eventbus.DeliveryStatusChangedData{
		DeliveryID:     d.ID,
		SenderID:       d.SenderID,
		CourierID:      derefUUID(d.CourierID),
		PreviousStatus: previous,
		NewStatus:      d.Status,
		ActorRole:      actorRole,
		ChangedAt:      time.Now(),
	})
}

func derefUUID(id *uuid.UUID) uuid.UUID {
	if id == nil {
		return uuid.Nil
	}
	return *id
}
