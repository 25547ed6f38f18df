package messages

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

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

func (m *mockRepository) Insert(ctx context.Context, msg *Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func (m *mockRepository) GetByID(ctx context.Context, id uuid.UUID) (*Message, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Message), args.Error(1)
}

func (m *mockRepository) ListByDelivery(ctx context.Context, deliveryID uuid.UUID, limit, offset int) ([]*Message, error) {
	args := m.Called(ctx, deliveryID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*Message), args.Error(1)
}

func (m *mockRepository) UnreadCount(ctx context.Context, deliveryID, recipientID uuid.UUID) (int, error) {
	args := m.Called(ctx, deliveryID, recipientID)
	return args.Int(0), args.Error(1)
}

func (m *mockRepository) MarkRead(ctx context.Context, id uuid.UUID) (time.Time, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(time.Time), args.Error(1)
}

func (m *mockRepository) GetDeliveryParties(ctx context.Context, deliveryID uuid.UUID) (*deliveryParties, error) {
	args := m.Called(ctx, deliveryID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*deliveryParties), args.Error(1)
}

type mockTracking struct {
	mock.Mock
}

func (m *mockTracking) ValidateForDelivery(ctx context.Context, token string, deliveryID uuid.UUID) (*tracking.TrackingLink, error) {
	args := m.Called(ctx, token, deliveryID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*tracking.TrackingLink), args.Error(1)
}

type serviceMocks struct {
	repo     *mockRepository
	tracking *mockTracking
}

func newTestService() (*Service, *serviceMocks) {
	m := &serviceMocks{
		repo:     new(mockRepository),
		tracking: new(mockTracking),
	}
	return NewService(m.repo, m.tracking), m
}

func sendBody(content string) *validation.SendMessageRequest {
	return &validation.SendMessageRequest{Content: content}
}

func recipientLink(deliveryID uuid.UUID) *tracking.TrackingLink {
	return &tracking.TrackingLink{
		ID:          uuid.New(),
		DeliveryID:  deliveryID,
		Token:       "recipient-token",
		IsRecipient: true,
		ExpiresAt:   time.Now().Add(time.Hour),
	}
}

// ============================================================================
// Send
// ============================================================================

func TestSendFromSenderRoutesToCourier(t *testing.T) {
	svc, m := newTestService()
	deliveryID, senderID, courierID := uuid.New(), uuid.New(), uuid.New()

	m.repo.On("GetDeliveryParties", mock.Anything, deliveryID).
		Return(&deliveryParties{SenderID: senderID, CourierID: &courierID}, nil)
	m.repo.On("Insert", mock.Anything, mock.MatchedBy(func(msg *Message) bool {
		return msg.SenderType == SenderTypeSender &&
			msg.SenderID != nil && *msg.SenderID == senderID &&
			msg.RecipientID == courierID
	})).Return(nil)

	msg, err := svc.Send(context.Background(), deliveryID, Requester{UserID: senderID, Role: models.RoleSender}, sendBody("package is fragile, please handle with care"))
	require.NoError(t, err)

	assert.Equal(t, deliveryID, msg.DeliveryID)
	assert.False(t, msg.IsRead)
	m.repo.AssertExpectations(t)
}

func TestSendFromCourierRoutesToSender(t *testing.T) {
	svc, m := newTestService()
	deliveryID, senderID, courierID := uuid.New(), uuid.New(), uuid.New()

	m.repo.On("GetDeliveryParties", mock.Anything, deliveryID).
		Return(&deliveryParties{SenderID: senderID, CourierID: &courierID}, nil)
	m.repo.On("Insert", mock.Anything, mock.MatchedBy(func(msg *Message) bool {
		return msg.SenderType == SenderTypeCourier &&
			msg.SenderID != nil && *msg.SenderID == courierID &&
			msg.RecipientID == senderID
	})).Return(nil)

	_, err := svc.Send(context.Background(), deliveryID, Requester{UserID: courierID, Role: models.RoleCourier}, sendBody("on my way to pickup"))
	require.NoError(t, err)
	m.repo.AssertExpectations(t)
}

func TestSendFromRecipientLinkPrefersCourier(t *testing.T) {
	svc, m := newTestService()
	deliveryID, senderID, courierID := uuid.New(), uuid.New(), uuid.New()

	m.repo.On("GetDeliveryParties", mock.Anything, deliveryID).
		Return(&deliveryParties{SenderID: senderID, CourierID: &courierID}, nil)
	m.tracking.On("ValidateForDelivery", mock.Anything, "recipient-token", deliveryID).
		Return(recipientLink(deliveryID), nil)
	m.repo.On("Insert", mock.Anything, mock.MatchedBy(func(msg *Message) bool {
		return msg.SenderType == SenderTypeRecipient &&
			msg.SenderID == nil &&
			msg.RecipientID == courierID
	})).Return(nil)

	_, err := svc.Send(context.Background(), deliveryID, Requester{TrackingToken: "recipient-token"}, sendBody("please leave it at the back door"))
	require.NoError(t, err)
	m.repo.AssertExpectations(t)
}

func TestSendFromRecipientLinkFallsBackToSender(t *testing.T) {
	svc, m := newTestService()
	deliveryID, senderID := uuid.New(), uuid.New()

	m.repo.On("GetDeliveryParties", mock.Anything, deliveryID).
		Return(&deliveryParties{SenderID: senderID}, nil)
	m.tracking.On("ValidateForDelivery", mock.Anything, "recipient-token", deliveryID).
		Return(recipientLink(deliveryID), nil)
	m.repo.On("Insert", mock.Anything, mock.MatchedBy(func(msg *Message) bool {
		return msg.SenderType == SenderTypeRecipient && msg.RecipientID == senderID
	})).Return(nil)

	_, err := svc.Send(context.Background(), deliveryID, Requester{TrackingToken: "recipient-token"}, sendBody("when will it ship?"))
	require.NoError(t, err)
	m.repo.AssertExpectations(t)
}

func TestSendFromSenderRequiresCourier(t *testing.T) {
	svc, m := newTestService()
	deliveryID, senderID := uuid.New(), uuid.New()

	m.repo.On("GetDeliveryParties", mock.Anything, deliveryID).
		Return(&deliveryParties{SenderID: senderID}, nil)

	_, err := svc.Send(context.Background(), deliveryID, Requester{UserID: senderID, Role: models.RoleSender}, sendBody("hello?"))
	require.Error(t, err)

	appErr, ok := common.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, common.CodeConflict, appErr.ErrorCode)
	m.repo.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything)
}

func TestSendRejectsOutsider(t *testing.T) {
	svc, m := newTestService()
	deliveryID, courierID := uuid.New(), uuid.New()

	m.repo.On("GetDeliveryParties", mock.Anything, deliveryID).
		Return(&deliveryParties{SenderID: uuid.New(), CourierID: &courierID}, nil)

	_, err := svc.Send(context.Background(), deliveryID, Requester{UserID: uuid.New(), Role: models.RoleSender}, sendBody("hi"))
	require.Error(t, err)

	appErr, ok := common.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, common.CodeForbidden, appErr.ErrorCode)
}

func TestSendRejectsSenderShareLink(t *testing.T) {
	svc, m := newTestService()
	deliveryID, courierID := uuid.New(), uuid.New()

	link := recipientLink(deliveryID)
	link.IsRecipient = false
	link.Token = "sender-token"

	m.repo.On("GetDeliveryParties", mock.Anything, deliveryID).
		Return(&deliveryParties{SenderID: uuid.New(), CourierID: &courierID}, nil)
	m.tracking.On("ValidateForDelivery", mock.Anything, "sender-token", deliveryID).
		Return(link, nil)

	_, err := svc.Send(context.Background(), deliveryID, Requester{TrackingToken: "sender-token"}, sendBody("hi"))
	require.Error(t, err)

	appErr, ok := common.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, common.CodeForbidden, appErr.ErrorCode)
	m.repo.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything)
}

func TestSendRejectsEmptyContent(t *testing.T) {
	svc, m := newTestService()

	_, err := svc.Send(context.Background(), uuid.New(), Requester{UserID: uuid.New()}, sendBody(""))
	require.Error(t, err)

	appErr, ok := common.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, common.CodeValidation, appErr.ErrorCode)
	m.repo.AssertNotCalled(t, "GetDeliveryParties", mock.Anything, mock.Anything)
}

func TestSendRequiresIdentity(t *testing.T) {
	svc, m := newTestService()
	deliveryID := uuid.New()

	m.repo.On("GetDeliveryParties", mock.Anything, deliveryID).
		Return(&deliveryParties{SenderID: uuid.New()}, nil)

	_, err := svc.Send(context.Background(), deliveryID, Requester{}, sendBody("hi"))
	require.Error(t, err)

	appErr, ok := common.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, common.CodeUnauthorized, appErr.ErrorCode)
}

// ============================================================================
// Conversation
// ============================================================================

func TestConversationForPartyIncludesUnread(t *testing.T) {
	svc, m := newTestService()
	deliveryID, senderID, courierID := uuid.New(), uuid.New(), uuid.New()

	thread := []*Message{
		{ID: uuid.New(), DeliveryID: deliveryID, SenderType: SenderTypeCourier, RecipientID: senderID, Content: "picked up"},
		{ID: uuid.New(), DeliveryID: deliveryID, SenderType: SenderTypeSender, RecipientID: courierID, Content: "great, thanks"},
	}

	m.repo.On("GetDeliveryParties", mock.Anything, deliveryID).
		Return(&deliveryParties{SenderID: senderID, CourierID: &courierID}, nil)
	m.repo.On("ListByDelivery", mock.Anything, deliveryID, 50, 0).Return(thread, nil)
	m.repo.On("UnreadCount", mock.Anything, deliveryID, senderID).Return(1, nil)

	conv, err := svc.GetConversation(context.Background(), deliveryID, Requester{UserID: senderID, Role: models.RoleSender}, 50, 0)
	require.NoError(t, err)

	assert.Len(t, conv.Messages, 2)
	assert.Equal(t, 1, conv.UnreadCount)
	m.repo.AssertExpectations(t)
}

func TestConversationViaTrackingTokenSkipsUnread(t *testing.T) {
	svc, m := newTestService()
	deliveryID, courierID := uuid.New(), uuid.New()

	m.repo.On("GetDeliveryParties", mock.Anything, deliveryID).
		Return(&deliveryParties{SenderID: uuid.New(), CourierID: &courierID}, nil)
	m.tracking.On("ValidateForDelivery", mock.Anything, "recipient-token", deliveryID).
		Return(recipientLink(deliveryID), nil)
	m.repo.On("ListByDelivery", mock.Anything, deliveryID, 50, 0).Return([]*Message{}, nil)

	conv, err := svc.GetConversation(context.Background(), deliveryID, Requester{TrackingToken: "recipient-token"}, 50, 0)
	require.NoError(t, err)

	assert.NotNil(t, conv.Messages)
	assert.Zero(t, conv.UnreadCount)
	m.repo.AssertNotCalled(t, "UnreadCount", mock.Anything, mock.Anything, mock.Anything)
}

func TestConversationRejectsOutsider(t *testing.T) {
	svc, m := newTestService()
	deliveryID := uuid.New()

	m.repo.On("GetDeliveryParties", mock.Anything, deliveryID).
		Return(&deliveryParties{SenderID: uuid.New()}, nil)

	_, err := svc.GetConversation(context.Background(), deliveryID, Requester{UserID: uuid.New(), Role: models.RoleCourier}, 50, 0)
	require.Error(t, err)

	appErr, ok := common.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, common.CodeForbidden, appErr.ErrorCode)
}

// ============================================================================
// Mark read
// ============================================================================

func TestMarkRead(t *testing.T) {
	svc, m := newTestService()
	messageID, recipientID := uuid.New(), uuid.New()
	readAt := time.Now().UTC()

	m.repo.On("GetByID", mock.Anything, messageID).Return(&Message{
		ID:          messageID,
		DeliveryID:  uuid.New(),
		SenderType:  SenderTypeSender,
		RecipientID: recipientID,
		Content:     "knock twice",
	}, nil)
	m.repo.On("MarkRead", mock.Anything, messageID).Return(readAt, nil)

	msg, err := svc.MarkRead(context.Background(), messageID, recipientID)
	require.NoError(t, err)

	assert.True(t, msg.IsRead)
	require.NotNil(t, msg.ReadAt)
	assert.True(t, msg.ReadAt.Equal(readAt))
	m.repo.AssertExpectations(t)
}

func TestMarkReadOnlyRecipient(t *testing.T) {
	svc, m := newTestService()
	messageID := uuid.New()

	m.repo.On("GetByID", mock.Anything, messageID).Return(&Message{
		ID:          messageID,
		RecipientID: uuid.New(),
	}, nil)

	_, err := svc.MarkRead(context.Background(), messageID, uuid.New())
	require.Error(t, err)

	appErr, ok := common.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, common.CodeForbidden, appErr.ErrorCode)
	m.repo.AssertNotCalled(t, "MarkRead", mock.Anything, mock.Anything)
}

func TestMarkReadTwiceIsNoOp(t *testing.T) {
	svc, m := newTestService()
	messageID, recipientID := uuid.New(), uuid.New()
	readAt := time.Now().Add(-time.Minute)

	m.repo.On("GetByID", mock.Anything, messageID).Return(&Message{
		ID:          messageID,
		RecipientID: recipientID,
		IsRead:      true,
		ReadAt:      &readAt,
	}, nil)

	msg, err := svc.MarkRead(context.Background(), messageID, recipientID)
	require.NoError(t, err)

	assert.True(t, msg.IsRead)
	m.repo.AssertNotCalled(t, "MarkRead", mock.Anything, mock.Anything)
}
