package pricing

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/richxcame/courier-dispatch/pkg/common"
)

// Repository handles database operations for the package type catalog
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new pricing repository
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// GetPackageType retrieves a package type by ID
func (r *Repository) GetPackageType(ctx context.Context, id uuid.UUID) (*PackageType, error) {
	query := `
		SELECT id, name, description, base_price, max_weight_lbs, is_active, created_at, updated_at
		FROM package_types WHERE id = $1
	`
	pt := &PackageType{}
	err := r.db.QueryRow(ctx, query, id).Scan(
		&pt.ID, &pt.Name, &pt.Description, &pt.BasePrice, &pt.MaxWeightLbs,
		&pt.IsActive, &pt.CreatedAt, &pt.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, common.NewNotFoundError("package type not found", err)
		}
		return nil, fmt.Errorf("failed to get package type: %w", err)
	}
	return pt, nil
}

// ListActivePackageTypes returns the active catalog ordered by base price
func (r *Repository) ListActivePackageTypes(ctx context.Context) ([]*PackageType, error) {
	query := `
		SELECT id, name, description, base_price, max_weight_lbs, is_active, created_at, updated_at
		FROM package_types
		WHERE is_active = true
		ORDER BY base_price
	`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list package types: %w", err)
	}
	defer rows.Close()

	items := make([]*PackageType, 0)
	for rows.Next() {
		pt := &PackageType{}
		err := rows.Scan(
			&pt.ID, &pt.Name, &pt.Description, &pt.BasePrice, &pt.MaxWeightLbs,
			&pt.IsActive, &pt.CreatedAt, &pt.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan package type: %w", err)
		}
		items = append(items, pt)
	}
	return items, rows.Err()
}
