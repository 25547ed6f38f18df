package notifications

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/richxcame/courier-dispatch/pkg/common"
)

// ============================================================================
// Mocks
// ============================================================================

type mockRepository struct {
	mock.Mock
}

func (m *mockRepository) Create(ctx context.Context, n *Notification) error {
	args := m.Called(ctx, n)
	return args.Error(0)
}

func (m *mockRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*Notification, error) {
	args := m.Called(ctx, userID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*Notification), args.Error(1)
}

func (m *mockRepository) UnreadCount(ctx context.Context, userID uuid.UUID) (int, error) {
	args := m.Called(ctx, userID)
	return args.Int(0), args.Error(1)
}

func (m *mockRepository) MarkRead(ctx context.Context, id, userID uuid.UUID) (*Notification, error) {
	args := m.Called(ctx, id, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Notification), args.Error(1)
}

func (m *mockRepository) MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

func newTestService() (*Service, *mockRepository) {
	repo := new(mockRepository)
	return NewService(repo), repo
}

// ============================================================================
// Notify
// ============================================================================

func TestNotifyPersistsEntry(t *testing.T) {
	svc, repo := newTestService()
	userID, deliveryID := uuid.New(), uuid.New()

	repo.On("Create", mock.Anything, mock.MatchedBy(func(n *Notification) bool {
		return n.ID != uuid.Nil &&
			n.UserID == userID &&
			n.Type == TypeStatusUpdate &&
			n.DeliveryID != nil && *n.DeliveryID == deliveryID
	})).Return(nil)

	n, err := svc.Notify(context.Background(), &Notification{
		UserID:     userID,
		Type:       TypeStatusUpdate,
		Title:      "Package picked up",
		Content:    "Your courier has your package.",
		DeliveryID: &deliveryID,
		SendPush:   true,
	})
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, n.ID)
	repo.AssertExpectations(t)
}

func TestNotifyDefaultsTypeToSystem(t *testing.T) {
	svc, repo := newTestService()

	repo.On("Create", mock.Anything, mock.MatchedBy(func(n *Notification) bool {
		return n.Type == TypeSystem
	})).Return(nil)

	_, err := svc.Notify(context.Background(), &Notification{
		UserID:  uuid.New(),
		Title:   "Maintenance",
		Content: "Scheduled maintenance tonight.",
	})
	require.NoError(t, err)
	repo.AssertExpectations(t)
}

func TestNotifyRequiresUserAndCopy(t *testing.T) {
	svc, repo := newTestService()

	_, err := svc.Notify(context.Background(), &Notification{
		Title:   "Orphan",
		Content: "nobody to deliver to",
	})
	require.Error(t, err)

	appErr, ok := common.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, common.CodeValidation, appErr.ErrorCode)

	_, err = svc.Notify(context.Background(), &Notification{UserID: uuid.New(), Title: "No body"})
	require.Error(t, err)
	repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

// ============================================================================
// Feed
// ============================================================================

func TestListReturnsFeedAndUnread(t *testing.T) {
	svc, repo := newTestService()
	userID := uuid.New()

	feed := []*Notification{
		{ID: uuid.New(), UserID: userID, Type: TypeStatusUpdate, Title: "On the way"},
		{ID: uuid.New(), UserID: userID, Type: TypePayment, Title: "Payment receipt", IsRead: true},
	}
	repo.On("ListByUser", mock.Anything, userID, 20, 0).Return(feed, nil)
	repo.On("UnreadCount", mock.Anything, userID).Return(1, nil)

	list, err := svc.List(context.Background(), userID, 20, 0)
	require.NoError(t, err)

	assert.Len(t, list.Notifications, 2)
	assert.Equal(t, 1, list.UnreadCount)
}

func TestListEmptyFeedIsNotNil(t *testing.T) {
	svc, repo := newTestService()
	userID := uuid.New()

	repo.On("ListByUser", mock.Anything, userID, 20, 0).Return(nil, nil)
	repo.On("UnreadCount", mock.Anything, userID).Return(0, nil)

	list, err := svc.List(context.Background(), userID, 20, 0)
	require.NoError(t, err)

	assert.NotNil(t, list.Notifications)
	assert.Empty(t, list.Notifications)
}

func TestMarkAllRead(t *testing.T) {
	svc, repo := newTestService()
	userID := uuid.New()

	repo.On("MarkAllRead", mock.Anything, userID).Return(int64(7), nil)

	count, err := svc.MarkAllRead(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, int64(7), count)
}
