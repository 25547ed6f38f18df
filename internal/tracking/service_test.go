package tracking

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/richxcame/courier-dispatch/pkg/common"
)

type mockRepository struct {
	mock.Mock
}

func (m *mockRepository) GetByToken(ctx context.Context, token string) (*TrackingLink, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*TrackingLink), args.Error(1)
}

func (m *mockRepository) GetByDelivery(ctx context.Context, deliveryID uuid.UUID) ([]*TrackingLink, error) {
	args := m.Called(ctx, deliveryID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*TrackingLink), args.Error(1)
}

func (m *mockRepository) RecordAccess(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockRepository) Delete(ctx context.Context, token string) error {
	args := m.Called(ctx, token)
	return args.Error(0)
}

func TestNewLinkPair(t *testing.T) {
	svc := NewService(new(mockRepository))
	deliveryID := uuid.New()

	recipient, sender, err := svc.NewLinkPair(deliveryID)
	require.NoError(t, err)

	assert.True(t, recipient.IsRecipient)
	assert.False(t, sender.IsRecipient)
	assert.Equal(t, deliveryID, recipient.DeliveryID)
	assert.Equal(t, deliveryID, sender.DeliveryID)
	assert.Len(t, recipient.Token, 64)
	assert.Len(t, sender.Token, 64)
	assert.NotEqual(t, recipient.Token, sender.Token)
	assert.WithinDuration(t, time.Now().Add(TokenTTL), recipient.ExpiresAt, 5*time.Second)
}

func TestValidateRecordsAccess(t *testing.T) {
	repo := new(mockRepository)
	svc := NewService(repo)

	link := &TrackingLink{
		ID:         uuid.New(),
		DeliveryID: uuid.New(),
		Token:      "abc123",
		ExpiresAt:  time.Now().Add(time.Hour),
	}
	repo.On("GetByToken", mock.Anything, "abc123").Return(link, nil)
	repo.On("RecordAccess", mock.Anything, link.ID).Return(nil)

	got, err := svc.Validate(context.Background(), "abc123")
	require.NoError(t, err)
	assert.Equal(t, link.DeliveryID, got.DeliveryID)
	repo.AssertExpectations(t)
}

func TestValidateExpiredToken(t *testing.T) {
	repo := new(mockRepository)
	svc := NewService(repo)

	link := &TrackingLink{
		ID:        uuid.New(),
		Token:     "stale",
		ExpiresAt: time.Now().Add(-time.Minute),
	}
	repo.On("GetByToken", mock.Anything, "stale").Return(link, nil)

	_, err := svc.Validate(context.Background(), "stale")
	require.Error(t, err)

	appErr, ok := common.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, common.CodeUnauthorized, appErr.ErrorCode)
	repo.AssertNotCalled(t, "RecordAccess", mock.Anything, mock.Anything)
}

func TestValidateUnknownToken(t *testing.T) {
	repo := new(mockRepository)
	svc := NewService(repo)

	repo.On("GetByToken", mock.Anything, "missing").
		Return(nil, common.NewNotFoundError("tracking link not found", nil))

	_, err := svc.Validate(context.Background(), "missing")
	require.Error(t, err)

	appErr, ok := common.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, common.CodeNotFound, appErr.ErrorCode)
}

func TestValidateForDeliveryMismatch(t *testing.T) {
	repo := new(mockRepository)
	svc := NewService(repo)

	link := &TrackingLink{
		ID:         uuid.New(),
		DeliveryID: uuid.New(),
		Token:      "tok",
		ExpiresAt:  time.Now().Add(time.Hour),
	}
	repo.On("GetByToken", mock.Anything, "tok").Return(link, nil)
	repo.On("RecordAccess", mock.Anything, link.ID).Return(nil)

	_, err := svc.ValidateForDelivery(context.Background(), "tok", uuid.New())
	require.Error(t, err)

	appErr, ok := common.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, common.CodeForbidden, appErr.ErrorCode)
}

func TestURL(t *testing.T) {
	assert.Equal(t, "https://dispatch.example.com/track/tok123", URL("https://dispatch.example.com", "tok123"))
}
