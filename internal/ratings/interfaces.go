package ratings

import (
	"context"

	"github.com/google/uuid"
)

// RepositoryInterface defines the data access layer for delivery ratings.
type RepositoryInterface interface {
	Create(ctx context.Context, rating *DeliveryRating) error
	GetDeliveryForRating(ctx context.Context, deliveryID uuid.UUID) (*ratedDelivery, error)
}
