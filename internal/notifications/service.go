package notifications

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/richxcame/courier-dispatch/pkg/async"
	"github.com/richxcame/courier-dispatch/pkg/common"
	"github.com/richxcame/courier-dispatch/pkg/eventbus"
	"github.com/richxcame/courier-dispatch/pkg/logger"
)

// Service writes the per-user notification feed and announces new entries on
// the bus so connected clients see them without polling.
type Service struct {
	repo     RepositoryInterface
	eventBus *eventbus.Bus
}

// NewService creates a new notification service.
func NewService(repo RepositoryInterface) *Service {
	return &Service{repo: repo}
}

// SetEventBus sets the NATS event bus for publishing notification events.
func (s *Service) SetEventBus(bus *eventbus.Bus) {
	s.eventBus = bus
}

func (s *Service) publishEvent(subject string, eventType string, data interface{}) {
	if s.eventBus == nil {
		return
	}
	async.GoWithTimeout(context.Background(), "publish "+eventType, 5*time.Second, func(ctx context.Context) {
		evt, err := eventbus.NewEvent(eventType, "notification-service", data)
		if err != nil {
			logger.Warn("failed to create notification event", zap.String("type", eventType), zap.Error(err))
			return
		}
		if err := s.eventBus.Publish(ctx, subject, evt); err != nil {
			logger.Warn("failed to publish notification event", zap.String("type", eventType), zap.Error(err))
		}
	})
}

// Notify persists a feed entry and announces it. Callers are internal event
// handlers; there is no public create endpoint.
func (s *Service) Notify(ctx context.Context, n *Notification) (*Notification, error) {
	if n.UserID == uuid.Nil {
		return nil, common.NewValidationError("notification needs a user")
	}
	if n.Title == "" || n.Content == "" {
		return nil, common.NewValidationError("notification needs a title and content")
	}
	if n.Type == "" {
		n.Type = TypeSystem
	}
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}

	if err := s.repo.Create(ctx, n); err != nil {
		return nil, err
	}

	s.publishEvent(eventbus.SubjectNotificationCreated, "notification.created", eventbus.NotificationCreatedData{
		NotificationID: n.ID,
		UserID:         n.UserID,
		Type:           n.Type,
		Title:          n.Title,
		Body:           n.Content,
		CreatedAt:      n.CreatedAt,
	})

	return n, nil
}

// List returns a page of the user's feed with their unread total.
func (s *Service) List(ctx context.Context, userID uuid.UUID, limit, offset int) (*NotificationList, error) {
	feed, err := s.repo.ListByUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	if feed == nil {
		feed = []*Notification{}
	}

	unread, err := s.repo.UnreadCount(ctx, userID)
	if err != nil {
		return nil, err
	}

	return &NotificationList{Notifications: feed, UnreadCount: unread}, nil
}

// MarkRead flags one notification as read for its owner.
func (s *Service) MarkRead(ctx context.Context, id, userID uuid.UUID) (*Notification, error) {
	return s.repo.MarkRead(ctx, id, userID)
}

// MarkAllRead flags the user's entire feed as read.
func (s *Service) MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	return s.repo.MarkAllRead(ctx, userID)
}
