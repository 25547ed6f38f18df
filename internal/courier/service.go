package courier

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

const recentPayoutCount = 5

// Service handles courier profiles, the availability toggle, earnings and
// payouts.
type Service struct {
	repo     RepositoryInterface
	location LocationService
	eventBus *eventbus.Bus
}

// NewService creates a new courier service.
func NewService(repo RepositoryInterface, locationSvc LocationService) *Service {
	return &Service{repo: repo, location: locationSvc}
}

// SetEventBus sets the NATS event bus for publishing courier events.
func (s *Service) SetEventBus(bus *eventbus.Bus) {
	s.eventBus = bus
}

func (s *Service) publishEvent(subject string, eventType string, data interface{}) {
	if s.eventBus == nil {
		return
	}
	async.GoWithTimeout(context.Background(), "publish "+eventType, 5*time.Second, func(ctx context.Context) {
		evt, err := eventbus.NewEvent(eventType, "courier-service", data)
		if err != nil {
			logger.Warn("failed to create courier event", zap.String("type", eventType), zap.Error(err))
			return
		}
		if err := s.eventBus.Publish(ctx, subject, evt); err != nil {
			logger.Warn("failed to publish courier event", zap.String("type", eventType), zap.Error(err))
		}
	})
}

// CreateProfile registers a courier profile. Couriers register themselves;
// admins may register a profile for any user. Verification starts pending, so
// the new courier receives no offers until approval.
func (s *Service) CreateProfile(ctx context.Context, callerID uuid.UUID, callerRole models.UserRole, req *validation.CreateCourierRequest) (*Profile, error) {
	if err := validation.ValidateStruct(req); err != nil {
		return nil, common.NewValidationError(err.Error())
	}

	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		return nil, common.NewValidationError("invalid user id")
	}
	if callerRole != models.RoleAdmin && userID != callerID {
		return nil, common.NewForbiddenError("cannot create a courier profile for another user")
	}

	profile := &Profile{
		UserID:                userID,
		VehicleType:           req.VehicleType,
		MaxWeightLbs:          req.MaxWeightLbs,
		ServiceRadiusMiles:    req.ServiceRadiusMiles,
		BackgroundCheckStatus: CheckPending,
		IDVerificationStatus:  IDPending,
		Rating:                newCourierRating,
	}
	if err := s.repo.Create(ctx, profile); err != nil {
		return nil, err
	}

	logger.Info("courier profile created",
		zap.String("courier_id", userID.String()),
		zap.String("vehicle_type", req.VehicleType))

	return s.repo.GetByUserID(ctx, userID)
}

// GetProfile returns the courier's own profile.
func (s *Service) GetProfile(ctx context.Context, userID uuid.UUID) (*Profile, error) {
	return s.repo.GetByUserID(ctx, userID)
}

// UpdateProfile applies a partial update to capacity, vehicle or service
// radius.
func (s *Service) UpdateProfile(ctx context.Context, userID uuid.UUID, req *validation.UpdateCourierRequest) (*Profile, error) {
	if err := validation.ValidateStruct(req); err != nil {
		return nil, common.NewValidationError(err.Error())
	}
	if req.VehicleType == nil && req.MaxWeightLbs == nil && req.ServiceRadiusMiles == nil {
		return nil, common.NewValidationError("no fields to update")
	}
	return s.repo.UpdateProfile(ctx, userID, req.VehicleType, req.MaxWeightLbs, req.ServiceRadiusMiles)
}

// SetAvailability toggles the courier on or off duty. Going online may carry
// a position, which runs through the regular ingest pipeline; going offline
// removes the courier from the presence index so the dispatcher stops seeing
// them immediately. An active delivery is unaffected: the flag only gates new
// offers.
func (s *Service) SetAvailability(ctx context.Context, courierID uuid.UUID, req *validation.UpdateAvailabilityRequest) (*Profile, error) {
	if err := validation.ValidateStruct(req); err != nil {
		return nil, common.NewValidationError(err.Error())
	}
	if (req.Latitude == nil) != (req.Longitude == nil) {
		return nil, common.NewValidationError("latitude and longitude must be provided together")
	}

	available := *req.IsAvailable
	profile, err := s.repo.SetAvailability(ctx, courierID, available)
	if err != nil {
		return nil, err
	}

	if available {
		if req.Latitude != nil {
			if _, err := s.location.Ingest(ctx, courierID, &validation.UpdateLocationRequest{
				Latitude:  *req.Latitude,
				Longitude: *req.Longitude,
			}); err != nil {
				logger.Warn("failed to ingest go-online position",
					zap.String("courier_id", courierID.String()), zap.Error(err))
			}
		}
		s.publishEvent(eventbus.SubjectCourierOnline, "courier.online", &eventbus.CourierAvailabilityData{
			CourierID:   courierID,
			IsAvailable: true,
			ChangedAt:   time.Now(),
		})
	} else {
		s.location.ClearPresence(ctx, courierID)
		s.publishEvent(eventbus.SubjectCourierOffline, "courier.offline", &eventbus.CourierAvailabilityData{
			CourierID:   courierID,
			IsAvailable: false,
			ChangedAt:   time.Now(),
		})
	}

	logger.Info("courier availability changed",
		zap.String("courier_id", courierID.String()),
		zap.Bool("is_available", available))

	return profile, nil
}

// Earnings aggregates the courier's earnings over the period (day, week,
// month or all), with a per-day breakdown and the most recent payouts.
func (s *Service) Earnings(ctx context.Context, courierID uuid.UUID, period string) (*EarningsSummary, error) {
	if period == "" {
		period = "all"
	}
	from, to, err := periodRange(period)
	if err != nil {
		return nil, err
	}

	profile, err := s.repo.GetByUserID(ctx, courierID)
	if err != nil {
		return nil, err
	}

	completed, earned, err := s.repo.EarningsBetween(ctx, courierID, from, to)
	if err != nil {
		return nil, err
	}

	daily, err := s.repo.DailyEarnings(ctx, courierID, from, to)
	if err != nil {
		return nil, err
	}
	if daily == nil {
		daily = []DailyEarning{}
	}

	payouts, err := s.repo.RecentPayouts(ctx, courierID, recentPayoutCount)
	if err != nil {
		return nil, err
	}
	if payouts == nil {
		payouts = []*Payout{}
	}

	return &EarningsSummary{
		Period:              period,
		From:                from,
		To:                  to,
		DeliveriesCompleted: completed,
		TotalEarned:         earned,
		AccountBalance:      profile.AccountBalance,
		Daily:               daily,
		RecentPayouts:       payouts,
	}, nil
}

// RequestPayout withdraws the courier's entire current balance.
func (s *Service) RequestPayout(ctx context.Context, courierID uuid.UUID) (*Payout, error) {
	payout, err := s.repo.WithdrawBalance(ctx, courierID)
	if err != nil {
		return nil, err
	}

	logger.Info("payout completed",
		zap.String("courier_id", courierID.String()),
		zap.String("reference", payout.Reference),
		zap.Float64("amount", payout.Amount))

	return payout, nil
}

// periodRange maps a named period to a half-open window ending now. A nil
// from means unbounded.
func periodRange(period string) (*time.Time, time.Time, error) {
	now := time.Now()
	switch period {
	case "day":
		from := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
		return &from, now, nil
	case "week":
		weekday := int(now.Weekday())
		if weekday == 0 {
			weekday = 7
		}
		from := time.Date(now.Year(), now.Month(), now.Day()-weekday+1, 0, 0, 0, 0, now.Location())
		return &from, now, nil
	case "month":
		from := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
		return &from, now, nil
	case "", "all":
		return nil, now, nil
	default:
		return nil, time.Time{}, common.NewValidationError("period must be day, week, month or all")
	}
}
