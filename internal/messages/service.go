package messages

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/richxcame/courier-dispatch/pkg/async"
	"github.com/richxcame/courier-dispatch/pkg/common"
	"github.com/richxcame/courier-dispatch/pkg/eventbus"
	"github.com/richxcame/courier-dispatch/pkg/logger"
	"github.com/richxcame/courier-dispatch/pkg/models"
	"github.com/richxcame/courier-dispatch/pkg/validation"
)

// Service relays chat messages between the parties of a delivery.
type Service struct {
	repo     RepositoryInterface
	tracking TrackingService
	eventBus *eventbus.Bus
}

// NewService creates a new message service.
func NewService(repo RepositoryInterface, trackingSvc TrackingService) *Service {
	return &Service{repo: repo, tracking: trackingSvc}
}

// SetEventBus sets the NATS event bus for publishing message events.
func (s *Service) SetEventBus(bus *eventbus.Bus) {
	s.eventBus = bus
}

func (s *Service) publishEvent(subject string, eventType string, data interface{}) {
	if s.eventBus == nil {
		return
	}
	async.GoWithTimeout(context.Background(), "publish "+eventType, 5*time.Second, func(ctx context.Context) {
		evt, err := eventbus.NewEvent(eventType, "message-service", data)
		if err != nil {
			logger.Warn("failed to create message event", zap.String("type", eventType), zap.Error(err))
			return
		}
		if err := s.eventBus.Publish(ctx, subject, evt); err != nil {
			logger.Warn("failed to publish message event", zap.String("type", eventType), zap.Error(err))
		}
	})
}

// Requester identifies who is on the thread: an authenticated user or a
// tracking-token holder.
type Requester struct {
	UserID        uuid.UUID
	Role          models.UserRole
	TrackingToken string
}

// Send stores a message on the delivery's thread and announces it on the bus.
// Authenticated parties write as themselves; a recipient link writes under
// the recipient sentinel. The message is addressed to the counterparty:
// sender and courier to each other, the recipient link to the courier when
// one is assigned, otherwise to the sender.
func (s *Service) Send(ctx context.Context, deliveryID uuid.UUID, req Requester, body *validation.SendMessageRequest) (*Message, error) {
	if err := validation.ValidateStruct(body); err != nil {
		return nil, common.NewValidationError(err.Error())
	}

	parties, err := s.repo.GetDeliveryParties(ctx, deliveryID)
	if err != nil {
		return nil, err
	}

	m := &Message{
		ID:            uuid.New(),
		DeliveryID:    deliveryID,
		Content:       body.Content,
		AttachmentURL: body.AttachmentURL,
	}

	switch {
	case req.UserID != uuid.Nil && req.UserID == parties.SenderID:
		if parties.CourierID == nil {
			return nil, common.NewConflictError("no courier has been assigned yet")
		}
		userID := req.UserID
		m.SenderID = &userID
		m.SenderType = SenderTypeSender
		m.RecipientID = *parties.CourierID

	case req.UserID != uuid.Nil && parties.CourierID != nil && req.UserID == *parties.CourierID:
		userID := req.UserID
		m.SenderID = &userID
		m.SenderType = SenderTypeCourier
		m.RecipientID = parties.SenderID

	case req.UserID != uuid.Nil:
		return nil, common.NewForbiddenError("you are not a party to this delivery")

	case req.TrackingToken != "":
		link, err := s.tracking.ValidateForDelivery(ctx, req.TrackingToken, deliveryID)
		if err != nil {
			return nil, err
		}
		if !link.IsRecipient {
			return nil, common.NewForbiddenError("only the recipient link can send messages")
		}
		m.SenderType = SenderTypeRecipient
		if parties.CourierID != nil {
			m.RecipientID = *parties.CourierID
		} else {
			m.RecipientID = parties.SenderID
		}

	default:
		return nil, common.NewUnauthorizedError("authentication or a tracking token is required")
	}

	if err := s.repo.Insert(ctx, m); err != nil {
		return nil, err
	}

	s.publishEvent(eventbus.SubjectMessageSent, "message.sent", eventbus.MessageSentData{
		MessageID:     m.ID,
		DeliveryID:    m.DeliveryID,
		SenderID:      m.SenderID,
		SenderType:    m.SenderType,
		RecipientID:   m.RecipientID,
		Content:       m.Content,
		AttachmentURL: stringValue(m.AttachmentURL),
		SentAt:        m.CreatedAt,
	})

	return m, nil
}

// GetConversation returns the delivery's thread. Parties and admins read by
// bearer identity; either share link admits a read-only view.
func (s *Service) GetConversation(ctx context.Context, deliveryID uuid.UUID, req Requester, limit, offset int) (*Conversation, error) {
	parties, err := s.repo.GetDeliveryParties(ctx, deliveryID)
	if err != nil {
		return nil, err
	}

	isParty := req.UserID != uuid.Nil &&
		(req.UserID == parties.SenderID ||
			(parties.CourierID != nil && req.UserID == *parties.CourierID) ||
			req.Role == models.RoleAdmin)

	if !isParty {
		if req.TrackingToken == "" {
			return nil, common.NewForbiddenError("you are not a party to this delivery")
		}
		if _, err := s.tracking.ValidateForDelivery(ctx, req.TrackingToken, deliveryID); err != nil {
			return nil, err
		}
	}

	msgs, err := s.repo.ListByDelivery(ctx, deliveryID, limit, offset)
	if err != nil {
		return nil, err
	}
	if msgs == nil {
		msgs = []*Message{}
	}

	unread := 0
	if isParty {
		unread, err = s.repo.UnreadCount(ctx, deliveryID, req.UserID)
		if err != nil {
			return nil, err
		}
	}

	return &Conversation{
		DeliveryID:  deliveryID,
		Messages:    msgs,
		UnreadCount: unread,
	}, nil
}

// MarkRead flags a message as read. Only the addressed recipient may do so;
// marking an already-read message is a no-op and does not republish.
func (s *Service) MarkRead(ctx context.Context, messageID, userID uuid.UUID) (*Message, error) {
	m, err := s.repo.GetByID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if m.RecipientID != userID {
		return nil, common.NewForbiddenError("only the recipient can mark a message read")
	}
	if m.IsRead {
		return m, nil
	}

	readAt, err := s.repo.MarkRead(ctx, messageID)
	if err != nil {
		return nil, err
	}
	m.IsRead = true
	m.ReadAt = &readAt

	s.publishEvent(eventbus.SubjectMessageRead, "message.read", eventbus.MessageReadData{
		MessageID:  m.ID,
		DeliveryID: m.DeliveryID,
		ReaderID:   userID,
		ReadAt:     readAt,
	})

	return m, nil
}

func stringValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
