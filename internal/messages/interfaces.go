package messages

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/richxcame/courier-dispatch/internal/tracking"
)

// RepositoryInterface defines the contract for message persistence.
type RepositoryInterface interface {
	Insert(ctx context.Context, m *Message) error
	GetByID(ctx context.Context, id uuid.UUID) (*Message, error)
	ListByDelivery(ctx context.Context, deliveryID uuid.UUID, limit, offset int) ([]*Message, error)
	UnreadCount(ctx context.Context, deliveryID, recipientID uuid.UUID) (int, error)
	MarkRead(ctx context.Context, id uuid.UUID) (time.Time, error)
	GetDeliveryParties(ctx context.Context, deliveryID uuid.UUID) (*deliveryParties, error)
}

// TrackingService validates share-link tokens presented in place of a bearer
// identity.
type TrackingService interface {
	ValidateForDelivery(ctx context.Context, token string, deliveryID uuid.UUID) (*tracking.TrackingLink, error)
}
