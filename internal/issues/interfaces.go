package issues

import (
	"context"

	"github.com/google/uuid"
)

// RepositoryInterface defines the data access layer for delivery issues.
type RepositoryInterface interface {
	Insert(ctx context.Context, issue *DeliveryIssue) error
	GetDeliveryParties(ctx context.Context, deliveryID uuid.UUID) (*issueParties, error)
	HasOpenIssue(ctx context.Context, deliveryID, reporterID uuid.UUID) (bool, error)
}
