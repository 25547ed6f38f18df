package tracking

import (
	"context"

	"github.com/google/uuid"
)

// RepositoryInterface defines the interface for tracking link storage
type RepositoryInterface interface {
	GetByToken(ctx context.Context, token string) (*TrackingLink, error)
	GetByDelivery(ctx context.Context, deliveryID uuid.UUID) ([]*TrackingLink, error)
	RecordAccess(ctx context.Context, id uuid.UUID) error
	Delete(ctx context.Context, token string) error
}
