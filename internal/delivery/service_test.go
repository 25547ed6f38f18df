package delivery

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/richxcame/courier-dispatch/internal/payments"
	"github.com/richxcame/courier-dispatch/internal/pricing"
	"github.com/richxcame/courier-dispatch/internal/promos"
	"github.com/richxcame/courier-dispatch/internal/settings"
	"github.com/richxcame/courier-dispatch/internal/tracking"
	"github.com/richxcame/courier-dispatch/pkg/common"
	"github.com/richxcame/courier-dispatch/pkg/models"
	"github.com/richxcame/courier-dispatch/pkg/validation"
)

// ============================================================================
// Mocks
// ============================================================================

type mockRepository struct {
	mock.Mock
}

func (m *mockRepository) CreateDelivery(ctx context.Context, d *Delivery, payment *payments.Payment, usage *promos.PromoUsage, links []*tracking.TrackingLink) error {
	args := m.Called(ctx, d, payment, usage, links)
	return args.Error(0)
}

func (m *mockRepository) GetByID(ctx context.Context, id uuid.UUID) (*Delivery, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Delivery), args.Error(1)
}

func (m *mockRepository) List(ctx context.Context, userID uuid.UUID, asCourier bool, filters *ListFilters, limit, offset int) ([]*Delivery, int64, error) {
	args := m.Called(ctx, userID, asCourier, filters, limit, offset)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]*Delivery), args.Get(1).(int64), args.Error(2)
}

func (m *mockRepository) GetActiveByCourier(ctx context.Context, courierID uuid.UUID) (*Delivery, error) {
	args := m.Called(ctx, courierID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Delivery), args.Error(1)
}

func (m *mockRepository) GetStatusEvents(ctx context.Context, deliveryID uuid.UUID) ([]*StatusEvent, error) {
	args := m.Called(ctx, deliveryID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*StatusEvent), args.Error(1)
}

func (m *mockRepository) ApplyTransition(ctx context.Context, t Transition) (*TransitionResult, error) {
	args := m.Called(ctx, t)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*TransitionResult), args.Error(1)
}

func (m *mockRepository) AtomicClaim(ctx context.Context, deliveryID, courierID uuid.UUID) (*CourierSummary, error) {
	args := m.Called(ctx, deliveryID, courierID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*CourierSummary), args.Error(1)
}

func (m *mockRepository) UpdateETA(ctx context.Context, deliveryID uuid.UUID, eta time.Time) error {
	args := m.Called(ctx, deliveryID, eta)
	return args.Error(0)
}

type mockPricing struct {
	mock.Mock
}

func (m *mockPricing) QuoteDelivery(ctx context.Context, in pricing.QuoteInput, packageTypeID uuid.UUID) (*pricing.Quote, *pricing.PackageType, error) {
	args := m.Called(ctx, in, packageTypeID)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0).(*pricing.Quote), args.Get(1).(*pricing.PackageType), args.Error(2)
}

type mockPromos struct {
	mock.Mock
}

func (m *mockPromos) Validate(ctx context.Context, code string, userID uuid.UUID, orderAmount float64) (*promos.PromoValidation, error) {
	args := m.Called(ctx, code, userID, orderAmount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*promos.PromoValidation), args.Error(1)
}

type mockPayments struct {
	mock.Mock
}

func (m *mockPayments) Authorize(ctx context.Context, in payments.AuthorizeInput) (*payments.Payment, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payments.Payment), args.Error(1)
}

func (m *mockPayments) ReleaseHold(ctx context.Context, txnID string) {
	m.Called(ctx, txnID)
}

func (m *mockPayments) CaptureForDelivery(ctx context.Context, deliveryID uuid.UUID) (*payments.Payment, error) {
	args := m.Called(ctx, deliveryID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payments.Payment), args.Error(1)
}

func (m *mockPayments) RefundForDelivery(ctx context.Context, deliveryID uuid.UUID, refundAmount float64, reason string) (*payments.Payment, error) {
	args := m.Called(ctx, deliveryID, refundAmount, reason)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payments.Payment), args.Error(1)
}

func (m *mockPayments) GetByDeliveryID(ctx context.Context, deliveryID uuid.UUID) (*payments.Payment, error) {
	args := m.Called(ctx, deliveryID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payments.Payment), args.Error(1)
}

type mockTracking struct {
	mock.Mock
}

func (m *mockTracking) NewLinkPair(deliveryID uuid.UUID) (*tracking.TrackingLink, *tracking.TrackingLink, error) {
	args := m.Called(deliveryID)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0).(*tracking.TrackingLink), args.Get(1).(*tracking.TrackingLink), args.Error(2)
}

func (m *mockTracking) ValidateForDelivery(ctx context.Context, token string, deliveryID uuid.UUID) (*tracking.TrackingLink, error) {
	args := m.Called(ctx, token, deliveryID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*tracking.TrackingLink), args.Error(1)
}

type mockSettings struct {
	mock.Mock
}

func (m *mockSettings) Snapshot(ctx context.Context) (settings.SystemSettings, error) {
	args := m.Called(ctx)
	return args.Get(0).(settings.SystemSettings), args.Error(1)
}

type serviceMocks struct {
	repo     *mockRepository
	pricing  *mockPricing
	promos   *mockPromos
	payments *mockPayments
	tracking *mockTracking
	settings *mockSettings
}

func newTestService() (*Service, *serviceMocks) {
	m := &serviceMocks{
		repo:     new(mockRepository),
		pricing:  new(mockPricing),
		promos:   new(mockPromos),
		payments: new(mockPayments),
		tracking: new(mockTracking),
		settings: new(mockSettings),
	}
	svc := NewService(m.repo, m.pricing, m.promos, m.payments, m.tracking, m.settings, "https://dispatch.example.com")
	return svc, m
}

// ============================================================================
// Fixtures
// ============================================================================

func validCreateRequest() *validation.CreateDeliveryRequest {
	return &validation.CreateDeliveryRequest{
		PickupLatitude:   37.7749,
		PickupLongitude:  -122.4194,
		PickupAddr:       "123 Market St, San Francisco",
		DropoffLatitude:  37.7849,
		DropoffLongitude: -122.4094,
		DropoffAddr:      "456 Mission St, San Francisco",
		PackageTypeID:    uuid.New().String(),
		WeightLbs:        5.5,
		Priority:         "standard",
		RecipientName:    "Jordan Smith",
		RecipientPhone:   "+14155550134",
		PaymentMethodID:  "pm_card_visa",
	}
}

func standardQuote() *pricing.Quote {
	return &pricing.Quote{
		BaseFee:                  9.99,
		DistanceFee:              2.03,
		WeightFee:                0,
		PriorityFee:              0,
		Tax:                      1.05,
		Total:                    13.07,
		DistanceMiles:            1.63,
		EstimatedDurationMinutes: 8,
	}
}

func smallPackageType() *pricing.PackageType {
	return &pricing.PackageType{ID: uuid.New(), Name: "small", BasePrice: 9.99, MaxWeightLbs: 20, IsActive: true}
}

func linkPair(deliveryID uuid.UUID) (*tracking.TrackingLink, *tracking.TrackingLink) {
	expires := time.Now().Add(tracking.TokenTTL)
	return &tracking.TrackingLink{ID: uuid.New(), DeliveryID: deliveryID, Token: "recipient-token", IsRecipient: true, ExpiresAt: expires},
		&tracking.TrackingLink{ID: uuid.New(), DeliveryID: deliveryID, Token: "sender-token", ExpiresAt: expires}
}

func assignedDelivery(senderID, courierID uuid.UUID, status string) *Delivery {
	return &Delivery{
		ID:               uuid.New(),
		SenderID:         senderID,
		CourierID:        &courierID,
		Status:           status,
		StatusSince:      time.Now(),
		PickupLatitude:   37.7749,
		PickupLongitude:  -122.4194,
		PickupAddress:    "123 Market St",
		DropoffLatitude:  37.7849,
		DropoffLongitude: -122.4094,
		DropoffAddress:   "456 Mission St",
		WeightLbs:        5.5,
		RecipientName:    "Jordan Smith",
		RecipientPhone:   "+14155550134",
		VerificationCode: "4821",
		Priority:         "standard",
		DistanceMiles:    1.63,
	}
}

// ============================================================================
// Create
// ============================================================================

func TestCreateAuthorizesAndPersists(t *testing.T) {
	svc, m := newTestService()
	senderID := uuid.New()
	req := validCreateRequest()

	m.settings.On("Snapshot", mock.Anything).Return(settings.DefaultSystemSettings(), nil)
	m.pricing.On("QuoteDelivery", mock.Anything, mock.Anything, mock.Anything).
		Return(standardQuote(), smallPackageType(), nil)

	var authIn payments.AuthorizeInput
	m.payments.On("Authorize", mock.Anything, mock.MatchedBy(func(in payments.AuthorizeInput) bool {
		authIn = in
		return in.SenderID == senderID && in.Amount == 13.07
	})).Return(&payments.Payment{
		ID:     uuid.New(),
		Amount: 13.07,
		Status: payments.StatusAuthorized,
	}, nil)

	recipientLink, senderLink := linkPair(uuid.Nil)
	m.tracking.On("NewLinkPair", mock.Anything).Return(recipientLink, senderLink, nil)
	m.repo.On("CreateDelivery", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	result, err := svc.Create(context.Background(), senderID, req)
	require.NoError(t, err)

	assert.Equal(t, StatusSearchingCourier, result.Delivery.Status)
	assert.Equal(t, senderID, result.Delivery.SenderID)
	assert.Nil(t, result.Delivery.CourierID)
	assert.Equal(t, 1.63, result.Delivery.DistanceMiles)
	assert.Len(t, result.Delivery.VerificationCode, 4)
	assert.Equal(t, authIn.DeliveryID, result.Delivery.ID)
	assert.Equal(t, "https://dispatch.example.com/track/recipient-token", result.TrackingURLs.Recipient)
	assert.Equal(t, "https://dispatch.example.com/track/sender-token", result.TrackingURLs.Sender)
	m.repo.AssertExpectations(t)
}

func TestCreateReleasesHoldWhenPersistenceFails(t *testing.T) {
	svc, m := newTestService()
	senderID := uuid.New()
	txnID := "pi_orphaned"

	m.settings.On("Snapshot", mock.Anything).Return(settings.DefaultSystemSettings(), nil)
	m.pricing.On("QuoteDelivery", mock.Anything, mock.Anything, mock.Anything).
		Return(standardQuote(), smallPackageType(), nil)
	m.payments.On("Authorize", mock.Anything, mock.Anything).Return(&payments.Payment{
		ID:     uuid.New(),
		Amount: 13.07,
		Status: payments.StatusAuthorized,
		TxnID:  &txnID,
	}, nil)
	recipientLink, senderLink := linkPair(uuid.Nil)
	m.tracking.On("NewLinkPair", mock.Anything).Return(recipientLink, senderLink, nil)
	m.repo.On("CreateDelivery", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(errors.New("connection reset"))
	m.payments.On("ReleaseHold", mock.Anything, "pi_orphaned").Return()

	_, err := svc.Create(context.Background(), senderID, validCreateRequest())
	require.Error(t, err)
	m.payments.AssertCalled(t, "ReleaseHold", mock.Anything, "pi_orphaned")
}

func TestCreateRejectsInvalidPromo(t *testing.T) {
	svc, m := newTestService()
	senderID := uuid.New()
	req := validCreateRequest()
	req.PromoCode = "EXPIRED1"

	m.settings.On("Snapshot", mock.Anything).Return(settings.DefaultSystemSettings(), nil)
	m.pricing.On("QuoteDelivery", mock.Anything, mock.Anything, mock.Anything).
		Return(standardQuote(), smallPackageType(), nil)
	m.promos.On("Validate", mock.Anything, "EXPIRED1", senderID, 13.07).
		Return(&promos.PromoValidation{Valid: false, Message: "promo code has expired"}, nil)

	_, err := svc.Create(context.Background(), senderID, req)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expired")
	m.payments.AssertNotCalled(t, "Authorize", mock.Anything, mock.Anything)
}

func TestCreateAppliesPromoDiscount(t *testing.T) {
	svc, m := newTestService()
	senderID := uuid.New()
	promoID := uuid.New()
	req := validCreateRequest()
	req.PromoCode = "SAVE20"

	m.settings.On("Snapshot", mock.Anything).Return(settings.DefaultSystemSettings(), nil)
	m.pricing.On("QuoteDelivery", mock.Anything, mock.Anything, mock.Anything).
		Return(standardQuote(), smallPackageType(), nil)
	m.promos.On("Validate", mock.Anything, "SAVE20", senderID, 13.07).
		Return(&promos.PromoValidation{
			Valid:          true,
			PromoCodeID:    &promoID,
			Code:           "SAVE20",
			DiscountAmount: 2.61,
			FinalAmount:    10.46,
		}, nil)
	m.payments.On("Authorize", mock.Anything, mock.MatchedBy(func(in payments.AuthorizeInput) bool {
		return in.Amount == 10.46 && in.Discount == 2.61 && in.PromoCodeID != nil && *in.PromoCodeID == promoID
	})).Return(&payments.Payment{ID: uuid.New(), Amount: 10.46, Status: payments.StatusAuthorized}, nil)
	recipientLink, senderLink := linkPair(uuid.Nil)
	m.tracking.On("NewLinkPair", mock.Anything).Return(recipientLink, senderLink, nil)
	m.repo.On("CreateDelivery", mock.Anything, mock.Anything, mock.Anything,
		mock.MatchedBy(func(usage *promos.PromoUsage) bool {
			return usage != nil && usage.PromoCodeID == promoID && usage.FinalAmount == 10.46
		}), mock.Anything).Return(nil)

	_, err := svc.Create(context.Background(), senderID, req)
	require.NoError(t, err)
	m.repo.AssertExpectations(t)
}

func TestCreateRejectsOutOfRangeDistance(t *testing.T) {
	svc, m := newTestService()

	m.settings.On("Snapshot", mock.Anything).Return(settings.DefaultSystemSettings(), nil)
	quote := standardQuote()
	quote.DistanceMiles = 42.7
	m.pricing.On("QuoteDelivery", mock.Anything, mock.Anything, mock.Anything).
		Return(quote, smallPackageType(), nil)

	_, err := svc.Create(context.Background(), uuid.New(), validCreateRequest())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds the 30 mile service area")
	m.payments.AssertNotCalled(t, "Authorize", mock.Anything, mock.Anything)
}

func TestCreateRejectsSameLocations(t *testing.T) {
	svc, _ := newTestService()
	req := validCreateRequest()
	req.DropoffLatitude = req.PickupLatitude
	req.DropoffLongitude = req.PickupLongitude

	_, err := svc.Create(context.Background(), uuid.New(), req)
	require.Error(t, err)
	appErr, ok := common.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, common.CodeValidation, appErr.ErrorCode)
}

// ============================================================================
// Estimate
// ============================================================================

func TestEstimateReturnsQuoteWithPromoVerdict(t *testing.T) {
	svc, m := newTestService()
	userID := uuid.New()
	promoID := uuid.New()

	m.settings.On("Snapshot", mock.Anything).Return(settings.DefaultSystemSettings(), nil)
	m.pricing.On("QuoteDelivery", mock.Anything, mock.Anything, mock.Anything).
		Return(standardQuote(), smallPackageType(), nil)
	m.promos.On("Validate", mock.Anything, "SAVE20", userID, 13.07).
		Return(&promos.PromoValidation{Valid: true, PromoCodeID: &promoID, DiscountAmount: 2.61, FinalAmount: 10.46}, nil)

	estimate, err := svc.Estimate(context.Background(), userID, &validation.EstimateRequest{
		PickupLatitude:   37.7749,
		PickupLongitude:  -122.4194,
		DropoffLatitude:  37.7849,
		DropoffLongitude: -122.4094,
		PackageTypeID:    uuid.New().String(),
		WeightLbs:        5.5,
		Priority:         "standard",
		PromoCode:        "SAVE20",
	})
	require.NoError(t, err)
	assert.Equal(t, 9.99, estimate.BaseFee)
	assert.Equal(t, 10.46, estimate.Total)
	require.NotNil(t, estimate.Promo)
	assert.True(t, estimate.Promo.Valid)
}

func TestEstimateKeepsTotalWhenPromoInvalid(t *testing.T) {
	svc, m := newTestService()
	userID := uuid.New()

	m.settings.On("Snapshot", mock.Anything).Return(settings.DefaultSystemSettings(), nil)
	m.pricing.On("QuoteDelivery", mock.Anything, mock.Anything, mock.Anything).
		Return(standardQuote(), smallPackageType(), nil)
	m.promos.On("Validate", mock.Anything, "BOGUS1", userID, 13.07).
		Return(&promos.PromoValidation{Valid: false, Message: "promo code not found"}, nil)

	estimate, err := svc.Estimate(context.Background(), userID, &validation.EstimateRequest{
		PickupLatitude:   37.7749,
		PickupLongitude:  -122.4194,
		DropoffLatitude:  37.7849,
		DropoffLongitude: -122.4094,
		PackageTypeID:    uuid.New().String(),
		WeightLbs:        5.5,
		Priority:         "standard",
		PromoCode:        "BOGUS1",
	})
	require.NoError(t, err)
	assert.Equal(t, 13.07, estimate.Total)
	require.NotNil(t, estimate.Promo)
	assert.False(t, estimate.Promo.Valid)
}

// ============================================================================
// Claim
// ============================================================================

func TestClaimBindsCourierAndPublishes(t *testing.T) {
	svc, m := newTestService()
	senderID := uuid.New()
	courierID := uuid.New()
	d := assignedDelivery(senderID, courierID, StatusCourierAssigned)
	lat, lng := 37.7700, -122.4100

	m.repo.On("AtomicClaim", mock.Anything, d.ID, courierID).Return(&CourierSummary{
		UserID:        courierID,
		VehicleType:   "bike",
		Latitude:      &lat,
		Longitude:     &lng,
		CompletedJobs: 52,
	}, nil)
	m.repo.On("GetByID", mock.Anything, d.ID).Return(d, nil)

	got, err := svc.Claim(context.Background(), d.ID, courierID)
	require.NoError(t, err)
	assert.Equal(t, StatusCourierAssigned, got.Status)
	require.NotNil(t, got.CourierID)
	assert.Equal(t, courierID, *got.CourierID)
}

func TestClaimPropagatesAlreadyAssigned(t *testing.T) {
	svc, m := newTestService()
	deliveryID := uuid.New()
	courierID := uuid.New()

	m.repo.On("AtomicClaim", mock.Anything, deliveryID, courierID).
		Return(nil, common.NewAlreadyAssignedError("delivery was already accepted by another courier"))

	_, err := svc.Claim(context.Background(), deliveryID, courierID)
	require.Error(t, err)
	appErr, ok := common.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, common.CodeAlreadyAssigned, appErr.ErrorCode)
}

// ============================================================================
// UpdateStatus
// ============================================================================

func TestUpdateStatusAppliesCourierMove(t *testing.T) {
	svc, m := newTestService()
	senderID := uuid.New()
	courierID := uuid.New()
	d := assignedDelivery(senderID, courierID, StatusCourierAssigned)

	after := *d
	after.Status = StatusEnRouteToPickup

	m.repo.On("GetByID", mock.Anything, d.ID).Return(d, nil)
	m.repo.On("ApplyTransition", mock.Anything, mock.MatchedBy(func(tr Transition) bool {
		return tr.From == StatusCourierAssigned && tr.To == StatusEnRouteToPickup &&
			tr.ActorRole == ActorCourier && tr.ActorID != nil && *tr.ActorID == courierID
	})).Return(&TransitionResult{Applied: true, Delivery: &after}, nil)

	got, err := svc.UpdateStatus(context.Background(), d.ID, courierID, &validation.UpdateDeliveryStatusRequest{
		Status: StatusEnRouteToPickup,
	})
	require.NoError(t, err)
	assert.Equal(t, StatusEnRouteToPickup, got.Status)
}

func TestUpdateStatusOnlyAssignedCourier(t *testing.T) {
	svc, m := newTestService()
	d := assignedDelivery(uuid.New(), uuid.New(), StatusCourierAssigned)
	stranger := uuid.New()

	m.repo.On("GetByID", mock.Anything, d.ID).Return(d, nil)

	_, err := svc.UpdateStatus(context.Background(), d.ID, stranger, &validation.UpdateDeliveryStatusRequest{
		Status: StatusEnRouteToPickup,
	})
	require.Error(t, err)
	appErr, ok := common.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, common.CodeForbidden, appErr.ErrorCode)
}

func TestUpdateStatusSameStatusIsNoop(t *testing.T) {
	svc, m := newTestService()
	senderID := uuid.New()
	courierID := uuid.New()
	d := assignedDelivery(senderID, courierID, StatusInTransit)

	m.repo.On("GetByID", mock.Anything, d.ID).Return(d, nil)

	got, err := svc.UpdateStatus(context.Background(), d.ID, courierID, &validation.UpdateDeliveryStatusRequest{
		Status: StatusInTransit,
	})
	require.NoError(t, err)
	assert.Equal(t, StatusInTransit, got.Status)
	m.repo.AssertNotCalled(t, "ApplyTransition", mock.Anything, mock.Anything)
}

func TestUpdateStatusRejectsIllegalMove(t *testing.T) {
	svc, m := newTestService()
	senderID := uuid.New()
	courierID := uuid.New()
	d := assignedDelivery(senderID, courierID, StatusCourierAssigned)

	m.repo.On("GetByID", mock.Anything, d.ID).Return(d, nil)

	_, err := svc.UpdateStatus(context.Background(), d.ID, courierID, &validation.UpdateDeliveryStatusRequest{
		Status: StatusDelivered,
	})
	requireInvalidTransition(t, err)
	m.repo.AssertNotCalled(t, "ApplyTransition", mock.Anything, mock.Anything)
}

func TestUpdateStatusDeliveredRequiresProof(t *testing.T) {
	svc, m := newTestService()
	senderID := uuid.New()
	courierID := uuid.New()
	d := assignedDelivery(senderID, courierID, StatusAtDropoff)
	d.RequiresPhotoProof = true

	m.repo.On("GetByID", mock.Anything, d.ID).Return(d, nil)

	_, err := svc.UpdateStatus(context.Background(), d.ID, courierID, &validation.UpdateDeliveryStatusRequest{
		Status: StatusDelivered,
	})
	require.Error(t, err)
	appErr, ok := common.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, common.CodeProofRequired, appErr.ErrorCode)
	m.repo.AssertNotCalled(t, "ApplyTransition", mock.Anything, mock.Anything)
}

func TestUpdateStatusDeliveredChecksEveryProofKind(t *testing.T) {
	svc, m := newTestService()
	senderID := uuid.New()
	courierID := uuid.New()
	d := assignedDelivery(senderID, courierID, StatusAtDropoff)
	d.RequiresPhotoProof = true
	d.RequiresSignature = true
	d.RequiresIDVerification = true

	m.repo.On("GetByID", mock.Anything, d.ID).Return(d, nil)

	// Photo alone is not enough.
	_, err := svc.UpdateStatus(context.Background(), d.ID, courierID, &validation.UpdateDeliveryStatusRequest{
		Status:        StatusDelivered,
		ProofPhotoURL: "https://cdn.example.com/proof.jpg",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "signature")

	_, err = svc.UpdateStatus(context.Background(), d.ID, courierID, &validation.UpdateDeliveryStatusRequest{
		Status:        StatusDelivered,
		ProofPhotoURL: "https://cdn.example.com/proof.jpg",
		SignatureURL:  "https://cdn.example.com/sig.png",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ID verification")
}

func TestUpdateStatusDeliveredCreditsAndCaptures(t *testing.T) {
	svc, m := newTestService()
	senderID := uuid.New()
	courierID := uuid.New()
	d := assignedDelivery(senderID, courierID, StatusAtDropoff)
	d.RequiresPhotoProof = true

	after := *d
	after.Status = StatusDelivered

	payment := &payments.Payment{
		ID:         uuid.New(),
		DeliveryID: d.ID,
		Amount:     13.07,
		Tip:        2.00,
		Status:     payments.StatusAuthorized,
	}

	m.repo.On("GetByID", mock.Anything, d.ID).Return(d, nil)
	m.payments.On("GetByDeliveryID", mock.Anything, d.ID).Return(payment, nil)
	m.settings.On("Snapshot", mock.Anything).Return(settings.DefaultSystemSettings(), nil)

	// 13.07 * 0.8 = 10.456, rounded to 10.46, plus the 2.00 tip.
	m.repo.On("ApplyTransition", mock.Anything, mock.MatchedBy(func(tr Transition) bool {
		return tr.To == StatusDelivered && tr.CourierCredit == 12.46 &&
			tr.ProofPhotoURL != nil && *tr.ProofPhotoURL == "https://cdn.example.com/proof.jpg"
	})).Return(&TransitionResult{Applied: true, Delivery: &after}, nil)
	m.payments.On("CaptureForDelivery", mock.Anything, d.ID).Return(payment, nil)

	got, err := svc.UpdateStatus(context.Background(), d.ID, courierID, &validation.UpdateDeliveryStatusRequest{
		Status:        StatusDelivered,
		ProofPhotoURL: "https://cdn.example.com/proof.jpg",
	})
	require.NoError(t, err)
	assert.Equal(t, StatusDelivered, got.Status)
	m.payments.AssertCalled(t, "CaptureForDelivery", mock.Anything, d.ID)
}

func TestUpdateStatusFailedRequiresReason(t *testing.T) {
	svc, m := newTestService()
	senderID := uuid.New()
	courierID := uuid.New()
	d := assignedDelivery(senderID, courierID, StatusAtPickup)

	m.repo.On("GetByID", mock.Anything, d.ID).Return(d, nil)

	_, err := svc.UpdateStatus(context.Background(), d.ID, courierID, &validation.UpdateDeliveryStatusRequest{
		Status: StatusFailed,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reason is required")
}

func TestUpdateStatusFailedVoidsPayment(t *testing.T) {
	svc, m := newTestService()
	senderID := uuid.New()
	courierID := uuid.New()
	d := assignedDelivery(senderID, courierID, StatusInTransit)

	after := *d
	after.Status = StatusFailed

	payment := &payments.Payment{ID: uuid.New(), DeliveryID: d.ID, Amount: 13.07, Status: payments.StatusAuthorized}

	m.repo.On("GetByID", mock.Anything, d.ID).Return(d, nil)
	m.payments.On("GetByDeliveryID", mock.Anything, d.ID).Return(payment, nil)
	m.repo.On("ApplyTransition", mock.Anything, mock.Anything).
		Return(&TransitionResult{Applied: true, Delivery: &after}, nil)
	m.payments.On("RefundForDelivery", mock.Anything, d.ID, 13.07, "recipient unreachable").
		Return(payment, nil)

	_, err := svc.UpdateStatus(context.Background(), d.ID, courierID, &validation.UpdateDeliveryStatusRequest{
		Status: StatusFailed,
		Notes:  "recipient unreachable",
	})
	require.NoError(t, err)
	m.payments.AssertCalled(t, "RefundForDelivery", mock.Anything, d.ID, 13.07, "recipient unreachable")
}

func TestUpdateStatusConcurrentLoserGetsCurrentState(t *testing.T) {
	svc, m := newTestService()
	senderID := uuid.New()
	courierID := uuid.New()
	d := assignedDelivery(senderID, courierID, StatusInTransit)

	m.repo.On("GetByID", mock.Anything, d.ID).Return(d, nil)
	m.repo.On("ApplyTransition", mock.Anything, mock.Anything).
		Return(nil, common.NewInvalidTransitionError("delivery is at_dropoff now, cannot move to at_dropoff"))

	_, err := svc.UpdateStatus(context.Background(), d.ID, courierID, &validation.UpdateDeliveryStatusRequest{
		Status: StatusAtDropoff,
	})
	requireInvalidTransition(t, err)
}

// ============================================================================
// Cancel
// ============================================================================

func TestCancelBeforeAssignmentRefundsEverything(t *testing.T) {
	svc, m := newTestService()
	senderID := uuid.New()
	d := assignedDelivery(senderID, uuid.New(), StatusSearchingCourier)
	d.CourierID = nil

	after := *d
	after.Status = StatusCancelled

	payment := &payments.Payment{ID: uuid.New(), DeliveryID: d.ID, Amount: 13.07, Status: payments.StatusAuthorized}

	m.repo.On("GetByID", mock.Anything, d.ID).Return(d, nil)
	m.payments.On("GetByDeliveryID", mock.Anything, d.ID).Return(payment, nil)
	m.repo.On("ApplyTransition", mock.Anything, mock.MatchedBy(func(tr Transition) bool {
		return tr.To == StatusCancelled && tr.ActorRole == ActorSender
	})).Return(&TransitionResult{Applied: true, Delivery: &after}, nil)
	m.payments.On("RefundForDelivery", mock.Anything, d.ID, 13.07, "changed my mind").Return(payment, nil)

	result, err := svc.Cancel(context.Background(), d.ID, senderID, models.RoleSender, "changed my mind")
	require.NoError(t, err)
	assert.Equal(t, 13.07, result.RefundAmount)
	assert.Equal(t, 0.0, result.CancellationFee)
}

func TestCancelAfterAssignmentKeepsFee(t *testing.T) {
	svc, m := newTestService()
	senderID := uuid.New()
	courierID := uuid.New()
	d := assignedDelivery(senderID, courierID, StatusCourierAssigned)

	after := *d
	after.Status = StatusCancelled
	after.CourierID = nil

	payment := &payments.Payment{ID: uuid.New(), DeliveryID: d.ID, Amount: 20.00, Status: payments.StatusAuthorized}

	m.repo.On("GetByID", mock.Anything, d.ID).Return(d, nil)
	m.payments.On("GetByDeliveryID", mock.Anything, d.ID).Return(payment, nil)
	m.repo.On("ApplyTransition", mock.Anything, mock.Anything).
		Return(&TransitionResult{Applied: true, Delivery: &after}, nil)
	m.payments.On("RefundForDelivery", mock.Anything, d.ID, 17.00, "courier too slow").Return(payment, nil)

	result, err := svc.Cancel(context.Background(), d.ID, senderID, models.RoleSender, "courier too slow")
	require.NoError(t, err)
	assert.Equal(t, 17.00, result.RefundAmount)
	assert.Equal(t, 3.00, result.CancellationFee)
}

func TestCancelOnlySenderOrAdmin(t *testing.T) {
	svc, m := newTestService()
	senderID := uuid.New()
	courierID := uuid.New()
	d := assignedDelivery(senderID, courierID, StatusCourierAssigned)

	m.repo.On("GetByID", mock.Anything, d.ID).Return(d, nil)

	_, err := svc.Cancel(context.Background(), d.ID, courierID, models.RoleCourier, "cannot make it")
	require.Error(t, err)
	appErr, ok := common.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, common.CodeForbidden, appErr.ErrorCode)
}

func TestCancelRejectsPostPickup(t *testing.T) {
	svc, m := newTestService()
	senderID := uuid.New()
	d := assignedDelivery(senderID, uuid.New(), StatusPickedUp)

	m.repo.On("GetByID", mock.Anything, d.ID).Return(d, nil)

	_, err := svc.Cancel(context.Background(), d.ID, senderID, models.RoleSender, "too late")
	requireInvalidTransition(t, err)
	m.payments.AssertNotCalled(t, "RefundForDelivery", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCancelRepeatedReportsRecordedRefund(t *testing.T) {
	svc, m := newTestService()
	senderID := uuid.New()
	d := assignedDelivery(senderID, uuid.New(), StatusCancelled)
	d.CourierID = nil

	payment := &payments.Payment{
		ID:           uuid.New(),
		DeliveryID:   d.ID,
		Amount:       20.00,
		Status:       payments.StatusRefunded,
		RefundAmount: 17.00,
	}

	m.repo.On("GetByID", mock.Anything, d.ID).Return(d, nil)
	m.payments.On("GetByDeliveryID", mock.Anything, d.ID).Return(payment, nil)

	result, err := svc.Cancel(context.Background(), d.ID, senderID, models.RoleSender, "again")
	require.NoError(t, err)
	assert.Equal(t, 17.00, result.RefundAmount)
	assert.Equal(t, 3.00, result.CancellationFee)
	m.repo.AssertNotCalled(t, "ApplyTransition", mock.Anything, mock.Anything)
}

func TestCancelRepeatedRetriesUnsettledRefund(t *testing.T) {
	svc, m := newTestService()
	senderID := uuid.New()
	d := assignedDelivery(senderID, uuid.New(), StatusCancelled)
	d.CourierID = nil

	// Refund never stuck: the payment is still authorized. The refund basis
	// comes from the timeline.
	payment := &payments.Payment{ID: uuid.New(), DeliveryID: d.ID, Amount: 20.00, Status: payments.StatusAuthorized}

	m.repo.On("GetByID", mock.Anything, d.ID).Return(d, nil)
	m.payments.On("GetByDeliveryID", mock.Anything, d.ID).Return(payment, nil)
	m.repo.On("GetStatusEvents", mock.Anything, d.ID).Return([]*StatusEvent{
		{Status: StatusPending},
		{Status: StatusSearchingCourier},
		{Status: StatusCourierAssigned},
		{Status: StatusCancelled},
	}, nil)
	m.payments.On("RefundForDelivery", mock.Anything, d.ID, 17.00, "retry").Return(payment, nil)

	result, err := svc.Cancel(context.Background(), d.ID, senderID, models.RoleSender, "retry")
	require.NoError(t, err)
	assert.Equal(t, 17.00, result.RefundAmount)
	m.payments.AssertCalled(t, "RefundForDelivery", mock.Anything, d.ID, 17.00, "retry")
}

// ============================================================================
// Get
// ============================================================================

func TestGetFullViewForParties(t *testing.T) {
	svc, m := newTestService()
	senderID := uuid.New()
	courierID := uuid.New()
	d := assignedDelivery(senderID, courierID, StatusInTransit)
	events := []*StatusEvent{{Status: StatusPending}, {Status: StatusSearchingCourier}}

	m.repo.On("GetByID", mock.Anything, d.ID).Return(d, nil)
	m.repo.On("GetStatusEvents", mock.Anything, d.ID).Return(events, nil)

	for _, r := range []Requester{
		{UserID: senderID, Role: models.RoleSender},
		{UserID: courierID, Role: models.RoleCourier},
		{UserID: uuid.New(), Role: models.RoleAdmin},
	} {
		view, err := svc.Get(context.Background(), d.ID, r)
		require.NoError(t, err)
		assert.Equal(t, "4821", view.Delivery.VerificationCode)
		assert.Len(t, view.Events, 2)
	}
}

func TestGetPublicViewForTrackingToken(t *testing.T) {
	svc, m := newTestService()
	d := assignedDelivery(uuid.New(), uuid.New(), StatusInTransit)

	m.repo.On("GetByID", mock.Anything, d.ID).Return(d, nil)
	m.tracking.On("ValidateForDelivery", mock.Anything, "recipient-token", d.ID).
		Return(&tracking.TrackingLink{DeliveryID: d.ID, Token: "recipient-token", IsRecipient: true}, nil)
	m.repo.On("GetStatusEvents", mock.Anything, d.ID).Return([]*StatusEvent{}, nil)

	view, err := svc.Get(context.Background(), d.ID, Requester{TrackingToken: "recipient-token"})
	require.NoError(t, err)
	assert.Empty(t, view.Delivery.VerificationCode)
	assert.Empty(t, view.Delivery.RecipientPhone)
	assert.Equal(t, d.DropoffAddress, view.Delivery.DropoffAddress)
}

func TestGetForbiddenForStrangers(t *testing.T) {
	svc, m := newTestService()
	d := assignedDelivery(uuid.New(), uuid.New(), StatusInTransit)

	m.repo.On("GetByID", mock.Anything, d.ID).Return(d, nil)

	_, err := svc.Get(context.Background(), d.ID, Requester{UserID: uuid.New(), Role: models.RoleSender})
	require.Error(t, err)
	appErr, ok := common.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, common.CodeForbidden, appErr.ErrorCode)
}

// ============================================================================
// AutoTransition
// ============================================================================

func TestAutoTransitionFiresFromMatchingStatus(t *testing.T) {
	svc, m := newTestService()
	senderID := uuid.New()
	courierID := uuid.New()
	d := assignedDelivery(senderID, courierID, StatusEnRouteToPickup)

	after := *d
	after.Status = StatusApproachingPickup

	m.repo.On("GetByID", mock.Anything, d.ID).Return(d, nil)
	m.repo.On("ApplyTransition", mock.Anything, mock.MatchedBy(func(tr Transition) bool {
		return tr.From == StatusEnRouteToPickup && tr.To == StatusApproachingPickup && tr.ActorRole == ActorSystem
	})).Return(&TransitionResult{Applied: true, Delivery: &after}, nil)

	applied, err := svc.AutoTransition(context.Background(), d.ID, StatusApproachingPickup, 37.7749, -122.4194)
	require.NoError(t, err)
	assert.True(t, applied)
}

func TestAutoTransitionSkipsWrongStatus(t *testing.T) {
	svc, m := newTestService()
	d := assignedDelivery(uuid.New(), uuid.New(), StatusAtPickup)

	m.repo.On("GetByID", mock.Anything, d.ID).Return(d, nil)

	applied, err := svc.AutoTransition(context.Background(), d.ID, StatusApproachingPickup, 37.7749, -122.4194)
	require.NoError(t, err)
	assert.False(t, applied)
	m.repo.AssertNotCalled(t, "ApplyTransition", mock.Anything, mock.Anything)
}

func TestAutoTransitionApproachingDropoffOnlyFromInTransit(t *testing.T) {
	svc, m := newTestService()
	d := assignedDelivery(uuid.New(), uuid.New(), StatusAtDropoff)

	m.repo.On("GetByID", mock.Anything, d.ID).Return(d, nil)

	applied, err := svc.AutoTransition(context.Background(), d.ID, StatusApproachingDropoff, 37.7849, -122.4094)
	require.NoError(t, err)
	assert.False(t, applied)
}

func TestAutoTransitionSwallowsRaceLoss(t *testing.T) {
	svc, m := newTestService()
	d := assignedDelivery(uuid.New(), uuid.New(), StatusInTransit)

	m.repo.On("GetByID", mock.Anything, d.ID).Return(d, nil)
	m.repo.On("ApplyTransition", mock.Anything, mock.Anything).
		Return(nil, common.NewInvalidTransitionError("delivery is at_dropoff now, cannot move to approaching_dropoff"))

	applied, err := svc.AutoTransition(context.Background(), d.ID, StatusApproachingDropoff, 37.7849, -122.4094)
	require.NoError(t, err)
	assert.False(t, applied)
}

func TestAutoTransitionRejectsUnknownTarget(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.AutoTransition(context.Background(), uuid.New(), StatusDelivered, 37.78, -122.41)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a proximity-driven status")
}

// ============================================================================
// PublicView
// ============================================================================

func TestPublicViewStripsSensitiveFields(t *testing.T) {
	code := "A1B2"
	d := assignedDelivery(uuid.New(), uuid.New(), StatusInTransit)
	d.PickupAccessCode = &code
	email := "jordan@example.com"
	d.RecipientEmail = &email

	view := d.PublicView()
	assert.Empty(t, view.VerificationCode)
	assert.Nil(t, view.PickupAccessCode)
	assert.Nil(t, view.RecipientEmail)
	assert.Empty(t, view.RecipientPhone)

	// The original is untouched.
	assert.Equal(t, "4821", d.VerificationCode)
	assert.NotNil(t, d.PickupAccessCode)
}
