package ratings

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/richxcame/courier-dispatch/pkg/async"
	"github.com/richxcame/courier-dispatch/pkg/common"
	"github.com/richxcame/courier-dispatch/pkg/eventbus"
	"github.com/richxcame/courier-dispatch/pkg/logger"
	"github.com/richxcame/courier-dispatch/pkg/validation"
)

// Service handles rating business logic
type Service struct {
	repo     RepositoryInterface
	eventBus *eventbus.Bus
}

// NewService creates a new rating service
func NewService(repo RepositoryInterface) *Service {
	return &Service{repo: repo}
}

// SetEventBus sets the NATS event bus for publishing rating events.
func (s *Service) SetEventBus(bus *eventbus.Bus) {
	s.eventBus = bus
}

func (s *Service) publishEvent(subject string, eventType string, data interface{}) {
	if s.eventBus == nil {
		return
	}
	async.GoWithTimeout(context.Background(), "publish "+eventType, 5*time.Second, func(ctx context.Context) {
		evt, err := eventbus.NewEvent(eventType, "rating-service", data)
		if err != nil {
			logger.Warn("failed to create rating event", zap.String("type", eventType), zap.Error(err))
			return
		}
		if err := s.eventBus.Publish(ctx, subject, evt); err != nil {
			logger.Warn("failed to publish rating event", zap.String("type", eventType), zap.Error(err))
		}
	})
}

// Rate records the caller's review of the other party on a delivered
// delivery. The rater's side is derived from the delivery row, not from the
// request: senders score the courier across all axes, couriers score the
// sender overall-only. One rating per rater per delivery.
func (s *Service) Rate(ctx context.Context, deliveryID, raterID uuid.UUID, req *validation.RatingRequest) (*DeliveryRating, error) {
	if err := validation.ValidateStruct(req); err != nil {
		return nil, common.NewValidationError(err.Error())
	}

	d, err := s.repo.GetDeliveryForRating(ctx, deliveryID)
	if err != nil {
		return nil, err
	}
	if d.Status != "delivered" {
		return nil, common.NewInvalidTransitionError("only delivered deliveries can be rated")
	}

	rating := &DeliveryRating{
		ID:         uuid.New(),
		DeliveryID: deliveryID,
		RaterID:    raterID,
		Rating:     req.Rating,
		Comment:    optionalString(req.Comment),
	}

	switch {
	case raterID == d.SenderID:
		if d.CourierID == nil {
			return nil, common.NewConflictError("no courier was assigned to this delivery")
		}
		rating.RaterRole = RaterSender
		rating.RateeID = *d.CourierID
		rating.Timeliness = optionalScore(req.Timeliness)
		rating.Communication = optionalScore(req.Communication)
		rating.Handling = optionalScore(req.Handling)
	case d.CourierID != nil && raterID == *d.CourierID:
		if req.Timeliness != 0 || req.Communication != 0 || req.Handling != 0 {
			return nil, common.NewValidationError("timeliness, communication and handling apply to sender ratings only")
		}
		rating.RaterRole = RaterCourier
		rating.RateeID = d.SenderID
	default:
		return nil, common.NewForbiddenError("you are not a party to this delivery")
	}

	if err := s.repo.Create(ctx, rating); err != nil {
		return nil, err
	}

	s.publishEvent(eventbus.SubjectDeliveryRated, "delivery.rated", &eventbus.DeliveryRatedData{
		RatingID:   rating.ID,
		DeliveryID: deliveryID,
		RaterID:    raterID,
		RateeID:    rating.RateeID,
		RaterRole:  rating.RaterRole,
		Rating:     rating.Rating,
		RatedAt:    rating.CreatedAt,
	})

	return rating, nil
}

func optionalScore(v int) *int {
	if v == 0 {
		return nil
	}
	return &v
}

func optionalString(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
