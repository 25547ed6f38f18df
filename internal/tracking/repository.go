package tracking

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/richxcame/courier-dispatch/pkg/common"
)

// Repository handles database operations for tracking links
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new tracking repository
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// GetByToken retrieves a tracking link by its opaque token
func (r *Repository) GetByToken(ctx context.Context, token string) (*TrackingLink, error) {
	query := `
		SELECT id, delivery_id, token, is_recipient, expires_at, access_count, last_accessed_at, created_at
		FROM tracking_links WHERE token = $1
	`
	link := &TrackingLink{}
	err := r.db.QueryRow(ctx, query, token).Scan(
		&link.ID, &link.DeliveryID, &link.Token, &link.IsRecipient,
		&link.ExpiresAt, &link.AccessCount, &link.LastAccessedAt, &link.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, common.NewNotFoundError("tracking link not found", err)
		}
		return nil, fmt.Errorf("failed to get tracking link: %w", err)
	}
	return link, nil
}

// GetByDelivery returns both links issued for a delivery
func (r *Repository) GetByDelivery(ctx context.Context, deliveryID uuid.UUID) ([]*TrackingLink, error) {
	query := `
		SELECT id, delivery_id, token, is_recipient, expires_at, access_count, last_accessed_at, created_at
		FROM tracking_links WHERE delivery_id = $1
		ORDER BY is_recipient DESC
	`
	rows, err := r.db.Query(ctx, query, deliveryID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tracking links: %w", err)
	}
	defer rows.Close()

	links := make([]*TrackingLink, 0, 2)
	for rows.Next() {
		link := &TrackingLink{}
		err := rows.Scan(
			&link.ID, &link.DeliveryID, &link.Token, &link.IsRecipient,
			&link.ExpiresAt, &link.AccessCount, &link.LastAccessedAt, &link.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan tracking link: %w", err)
		}
		links = append(links, link)
	}
	return links, rows.Err()
}

// RecordAccess increments the access counter and stamps last access time
func (r *Repository) RecordAccess(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE tracking_links
		SET access_count = access_count + 1, last_accessed_at = NOW()
		WHERE id = $1
	`
	if _, err := r.db.Exec(ctx, query, id); err != nil {
		return fmt.Errorf("failed to record tracking access: %w", err)
	}
	return nil
}

// Delete revokes a tracking link. Tokens are never reissued.
func (r *Repository) Delete(ctx context.Context, token string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM tracking_links WHERE token = $1`, token)
	if err != nil {
		return fmt.Errorf("failed to delete tracking link: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return common.NewNotFoundError("tracking link not found", nil)
	}
	return nil
}
