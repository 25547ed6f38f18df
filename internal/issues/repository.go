package issues

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/richxcame/courier-dispatch/pkg/common"
)

// Repository handles issue data access
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new issue repository
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

var _ RepositoryInterface = (*Repository)(nil)

// Insert stores a new issue report.
func (r *Repository) Insert(ctx context.Context, issue *DeliveryIssue) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO delivery_issues (
			id, delivery_id, reporter_id, reporter_role, issue_number,
			issue_type, description, status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
		RETURNING created_at, updated_at`,
		issue.ID, issue.DeliveryID, issue.ReporterID, issue.ReporterRole, issue.IssueNumber,
		issue.IssueType, issue.Description, issue.Status,
	).Scan(&issue.CreatedAt, &issue.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create issue: %w", err)
	}
	return nil
}

// GetDeliveryParties looks up the parties of a delivery for authorization.
func (r *Repository) GetDeliveryParties(ctx context.Context, deliveryID uuid.UUID) (*issueParties, error) {
	parties := &issueParties{}
	err := r.db.QueryRow(ctx,
		`SELECT sender_id, courier_id FROM deliveries WHERE id = $1`, deliveryID).
		Scan(&parties.SenderID, &parties.CourierID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, common.NewNotFoundError("delivery not found", err)
		}
		return nil, fmt.Errorf("failed to get delivery: %w", err)
	}

	return parties, nil
}

// HasOpenIssue reports whether the reporter already has an unresolved issue
// on the delivery.
func (r *Repository) HasOpenIssue(ctx context.Context, deliveryID, reporterID uuid.UUID) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM delivery_issues
			WHERE delivery_id = $1 AND reporter_id = $2 AND status != $3
		)`,
		deliveryID, reporterID, StatusResolved,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check open issues: %w", err)
	}
	return exists, nil
}
