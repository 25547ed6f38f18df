package ratings

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/richxcame/courier-dispatch/pkg/common"
	"github.com/richxcame/courier-dispatch/pkg/validation"
)

// ============================================================================
// Mocks
// ============================================================================

type mockRepository struct {
	mock.Mock
}

func (m *mockRepository) Create(ctx context.Context, rating *DeliveryRating) error {
	args := m.Called(ctx, rating)
	return args.Error(0)
}

func (m *mockRepository) GetDeliveryForRating(ctx context.Context, deliveryID uuid.UUID) (*ratedDelivery, error) {
	args := m.Called(ctx, deliveryID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ratedDelivery), args.Error(1)
}

func newTestService() (*Service, *mockRepository) {
	repo := new(mockRepository)
	return NewService(repo), repo
}

func deliveredDelivery(senderID uuid.UUID, courierID *uuid.UUID) *ratedDelivery {
	return &ratedDelivery{SenderID: senderID, CourierID: courierID, Status: "delivered"}
}

// ============================================================================
// Rate
// ============================================================================

func TestRateBySenderScoresCourier(t *testing.T) {
	svc, repo := newTestService()
	deliveryID, senderID, courierID := uuid.New(), uuid.New(), uuid.New()

	repo.On("GetDeliveryForRating", mock.Anything, deliveryID).
		Return(deliveredDelivery(senderID, &courierID), nil)
	repo.On("Create", mock.Anything, mock.MatchedBy(func(r *DeliveryRating) bool {
		return r.RaterRole == RaterSender &&
			r.RaterID == senderID &&
			r.RateeID == courierID &&
			r.Rating == 5 &&
			r.Timeliness != nil && *r.Timeliness == 4 &&
			r.Communication != nil && *r.Communication == 5 &&
			r.Handling != nil && *r.Handling == 5 &&
			r.Comment != nil && *r.Comment == "careful with the box"
	})).Return(nil)

	rating, err := svc.Rate(context.Background(), deliveryID, senderID, &validation.RatingRequest{
		Rating:        5,
		Timeliness:    4,
		Communication: 5,
		Handling:      5,
		Comment:       "careful with the box",
	})
	require.NoError(t, err)

	assert.Equal(t, RaterSender, rating.RaterRole)
	assert.Equal(t, courierID, rating.RateeID)
	repo.AssertExpectations(t)
}

func TestRateBySenderAxesAreOptional(t *testing.T) {
	svc, repo := newTestService()
	deliveryID, senderID, courierID := uuid.New(), uuid.New(), uuid.New()

	repo.On("GetDeliveryForRating", mock.Anything, deliveryID).
		Return(deliveredDelivery(senderID, &courierID), nil)
	repo.On("Create", mock.Anything, mock.MatchedBy(func(r *DeliveryRating) bool {
		return r.Timeliness == nil && r.Communication == nil && r.Handling == nil && r.Comment == nil
	})).Return(nil)

	_, err := svc.Rate(context.Background(), deliveryID, senderID, &validation.RatingRequest{Rating: 4})
	require.NoError(t, err)
	repo.AssertExpectations(t)
}

func TestRateByCourierScoresSender(t *testing.T) {
	svc, repo := newTestService()
	deliveryID, senderID, courierID := uuid.New(), uuid.New(), uuid.New()

	repo.On("GetDeliveryForRating", mock.Anything, deliveryID).
		Return(deliveredDelivery(senderID, &courierID), nil)
	repo.On("Create", mock.Anything, mock.MatchedBy(func(r *DeliveryRating) bool {
		return r.RaterRole == RaterCourier &&
			r.RaterID == courierID &&
			r.RateeID == senderID &&
			r.Rating == 3 &&
			r.Timeliness == nil
	})).Return(nil)

	rating, err := svc.Rate(context.Background(), deliveryID, courierID, &validation.RatingRequest{Rating: 3})
	require.NoError(t, err)

	assert.Equal(t, senderID, rating.RateeID)
	repo.AssertExpectations(t)
}

func TestRateByCourierRejectsDetailAxes(t *testing.T) {
	svc, repo := newTestService()
	deliveryID, senderID, courierID := uuid.New(), uuid.New(), uuid.New()

	repo.On("GetDeliveryForRating", mock.Anything, deliveryID).
		Return(deliveredDelivery(senderID, &courierID), nil)

	_, err := svc.Rate(context.Background(), deliveryID, courierID, &validation.RatingRequest{
		Rating:     4,
		Timeliness: 5,
	})
	require.Error(t, err)

	appErr, ok := common.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, common.CodeValidation, appErr.ErrorCode)
	repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestRateRequiresDeliveredStatus(t *testing.T) {
	svc, repo := newTestService()
	deliveryID, senderID, courierID := uuid.New(), uuid.New(), uuid.New()

	repo.On("GetDeliveryForRating", mock.Anything, deliveryID).
		Return(&ratedDelivery{SenderID: senderID, CourierID: &courierID, Status: "in_transit"}, nil)

	_, err := svc.Rate(context.Background(), deliveryID, senderID, &validation.RatingRequest{Rating: 5})
	require.Error(t, err)

	appErr, ok := common.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, common.CodeInvalidTransition, appErr.ErrorCode)
	repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestRateRejectsOutsider(t *testing.T) {
	svc, repo := newTestService()
	deliveryID, courierID := uuid.New(), uuid.New()

	repo.On("GetDeliveryForRating", mock.Anything, deliveryID).
		Return(deliveredDelivery(uuid.New(), &courierID), nil)

	_, err := svc.Rate(context.Background(), deliveryID, uuid.New(), &validation.RatingRequest{Rating: 5})
	require.Error(t, err)

	appErr, ok := common.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, common.CodeForbidden, appErr.ErrorCode)
}

func TestRateRejectsScoreOutOfRange(t *testing.T) {
	svc, repo := newTestService()

	_, err := svc.Rate(context.Background(), uuid.New(), uuid.New(), &validation.RatingRequest{Rating: 6})
	require.Error(t, err)

	appErr, ok := common.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, common.CodeValidation, appErr.ErrorCode)
	repo.AssertNotCalled(t, "GetDeliveryForRating", mock.Anything, mock.Anything)
}

func TestRateTwiceConflicts(t *testing.T) {
	svc, repo := newTestService()
	deliveryID, senderID, courierID := uuid.New(), uuid.New(), uuid.New()

	repo.On("GetDeliveryForRating", mock.Anything, deliveryID).
		Return(deliveredDelivery(senderID, &courierID), nil)
	repo.On("Create", mock.Anything, mock.Anything).
		Return(common.NewConflictError("you have already rated this delivery"))

	_, err := svc.Rate(context.Background(), deliveryID, senderID, &validation.RatingRequest{Rating: 5})
	require.Error(t, err)

	appErr, ok := common.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, common.CodeConflict, appErr.ErrorCode)
}
