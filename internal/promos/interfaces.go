package promos

import (
	"context"

	"github.com/google/uuid"
)

// RepositoryInterface defines the storage operations required by the service.
type RepositoryInterface interface {
	GetByCode(ctx context.Context, code string) (*PromoCode, error)
	GetByID(ctx context.Context, id uuid.UUID) (*PromoCode, error)
	CountUsageByUser(ctx context.Context, promoCodeID, userID uuid.UUID) (int, error)
	HasDeliveredDeliveries(ctx context.Context, userID uuid.UUID) (bool, error)
	Create(ctx context.Context, promo *PromoCode) error
	List(ctx context.Context, limit, offset int) ([]*PromoCode, int, error)
	Deactivate(ctx context.Context, id uuid.UUID) error
}
