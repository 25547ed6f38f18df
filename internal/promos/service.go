package promos

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/richxcame/courier-dispatch/pkg/common"
	"github.com/richxcame/courier-dispatch/pkg/validation"
)

// Service handles promo code business logic
type Service struct {
	repo RepositoryInterface
}

// NewService creates a new promos service
func NewService(repo RepositoryInterface) *Service {
	return &Service{repo: repo}
}

// Validate checks a promo code against an order amount for a user and
// calculates the discount. Business rejections come back as an invalid
// verdict, not an error; only storage failures surface as errors.
func (s *Service) Validate(ctx context.Context, code string, userID uuid.UUID, orderAmount float64) (*PromoValidation, error) {
	promo, err := s.repo.GetByCode(ctx, strings.ToUpper(strings.TrimSpace(code)))
	if err != nil {
		if appErr, ok := common.AsAppError(err); ok && appErr.ErrorCode == common.CodeNotFound {
			return invalid("Invalid promo code"), nil
		}
		return nil, err
	}

	if !promo.IsActive {
		return invalid("This promo code is no longer active"), nil
	}

	now := time.Now()
	if now.Before(promo.ValidFrom) {
		return invalid("This promo code is not yet valid"), nil
	}
	if now.After(promo.ValidUntil) {
		return invalid("This promo code has expired"), nil
	}

	if promo.UsageLimit != nil && promo.CurrentUsage >= *promo.UsageLimit {
		return invalid("This promo code has reached its usage limit"), nil
	}

	if orderAmount < promo.MinOrderAmount {
		return invalid(fmt.Sprintf("Minimum order amount of $%.2f required to use this promo code", promo.MinOrderAmount)), nil
	}

	if promo.IsOneTime {
		uses, err := s.repo.CountUsageByUser(ctx, promo.ID, userID)
		if err != nil {
			return nil, fmt.Errorf("failed to check promo code usage: %w", err)
		}
		if uses > 0 {
			return invalid("You have already used this promo code"), nil
		}
	}

	if promo.IsFirstTimeUser {
		delivered, err := s.repo.HasDeliveredDeliveries(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("failed to check delivery history: %w", err)
		}
		if delivered {
			return invalid("This promo code is only valid for first-time senders"), nil
		}
	}

	discount := s.discountFor(promo, orderAmount)

	return &PromoValidation{
		Valid:          true,
		PromoCodeID:    &promo.ID,
		Code:           promo.Code,
		DiscountAmount: discount,
		FinalAmount:    round2(orderAmount - discount),
	}, nil
}

// discountFor computes the discount a promo grants on an order amount.
// Percentage discounts honor the maximum_discount cap; no discount ever
// exceeds the order amount.
func (s *Service) discountFor(promo *PromoCode, orderAmount float64) float64 {
	var discount float64
	switch promo.DiscountType {
	case DiscountTypePercentage:
		discount = orderAmount * (promo.DiscountValue / 100.0)
		if promo.MaxDiscount != nil && discount > *promo.MaxDiscount {
			discount = *promo.MaxDiscount
		}
	default:
		discount = promo.DiscountValue
	}

	if discount > orderAmount {
		discount = orderAmount
	}
	return round2(discount)
}

// GetByCode retrieves a promo code for redemption by the delivery flow
func (s *Service) GetByCode(ctx context.Context, code string) (*PromoCode, error) {
	return s.repo.GetByCode(ctx, strings.ToUpper(strings.TrimSpace(code)))
}

// Create creates a new promo code
func (s *Service) Create(ctx context.Context, req *validation.CreatePromoCodeRequest, createdBy uuid.UUID) (*PromoCode, error) {
	if err := validation.ValidateStruct(req); err != nil {
		return nil, common.NewValidationError(err.Error())
	}

	if req.DiscountType == DiscountTypePercentage && req.DiscountValue > 100 {
		return nil, common.NewValidationError("percentage discount cannot exceed 100")
	}
	if !req.ValidFrom.Before(req.ValidUntil) {
		return nil, common.NewValidationError("valid_from must be before valid_until")
	}

	promo := &PromoCode{
		Code:            strings.ToUpper(strings.TrimSpace(req.Code)),
		DiscountType:    req.DiscountType,
		DiscountValue:   req.DiscountValue,
		MinOrderAmount:  req.MinimumOrderAmount,
		IsOneTime:       req.IsOneTime,
		IsFirstTimeUser: req.IsFirstTimeUser,
		ValidFrom:       req.ValidFrom,
		ValidUntil:      req.ValidUntil,
		IsActive:        true,
		CreatedBy:       &createdBy,
	}
	if req.UsageLimit > 0 {
		limit := req.UsageLimit
		promo.UsageLimit = &limit
	}
	if req.MaximumDiscount > 0 {
		max := req.MaximumDiscount
		promo.MaxDiscount = &max
	}

	if err := s.repo.Create(ctx, promo); err != nil {
		return nil, err
	}
	return promo, nil
}

// List retrieves promo codes with pagination
func (s *Service) List(ctx context.Context, limit, offset int) ([]*PromoCode, int, error) {
	return s.repo.List(ctx, limit, offset)
}

// Deactivate turns a promo code off
func (s *Service) Deactivate(ctx context.Context, id uuid.UUID) error {
	return s.repo.Deactivate(ctx, id)
}

func invalid(message string) *PromoValidation {
	return &PromoValidation{Valid: false, Message: message}
}

// round2 rounds half away from zero to two decimals.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
