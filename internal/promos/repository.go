package promos

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/richxcame/courier-dispatch/pkg/common"
)

// Repository handles database operations for promo codes
type Repository struct {
	db *pgxpool.Pool
}

// Ensure Repository implements RepositoryInterface.
var _ RepositoryInterface = (*Repository)(nil)

// NewRepository creates a new promos repository
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

const promoColumns = `id, code, description, discount_type, discount_value, maximum_discount,
		minimum_order_amount, usage_limit, current_usage, is_one_time, is_first_time_user,
		valid_from, valid_until, is_active, created_by, created_at, updated_at`

// GetByCode retrieves a promo code by its code
func (r *Repository) GetByCode(ctx context.Context, code string) (*PromoCode, error) {
	query := fmt.Sprintf(`SELECT %s FROM promo_codes WHERE code = $1`, promoColumns)

	promo := &PromoCode{}
	err := r.db.QueryRow(ctx, query, code).Scan(
		&promo.ID,
		&promo.Code,
		&promo.Description,
		&promo.DiscountType,
		&promo.DiscountValue,
		&promo.MaxDiscount,
		&promo.MinOrderAmount,
		&promo.UsageLimit,
		&promo.CurrentUsage,
		&promo.IsOneTime,
		&promo.IsFirstTimeUser,
		&promo.ValidFrom,
		&promo.ValidUntil,
		&promo.IsActive,
		&promo.CreatedBy,
		&promo.CreatedAt,
		&promo.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, common.NewNotFoundError("promo code not found", err)
		}
		return nil, fmt.Errorf("failed to get promo code: %w", err)
	}

	return promo, nil
}

// GetByID retrieves a promo code by ID
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*PromoCode, error) {
	query := fmt.Sprintf(`SELECT %s FROM promo_codes WHERE id = $1`, promoColumns)

	promo := &PromoCode{}
	err := r.db.QueryRow(ctx, query, id).Scan(
		&promo.ID,
		&promo.Code,
		&promo.Description,
		&promo.DiscountType,
		&promo.DiscountValue,
		&promo.MaxDiscount,
		&promo.MinOrderAmount,
		&promo.UsageLimit,
		&promo.CurrentUsage,
		&promo.IsOneTime,
		&promo.IsFirstTimeUser,
		&promo.ValidFrom,
		&promo.ValidUntil,
		&promo.IsActive,
		&promo.CreatedBy,
		&promo.CreatedAt,
		&promo.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, common.NewNotFoundError("promo code not found", err)
		}
		return nil, fmt.Errorf("failed to get promo code: %w", err)
	}

	return promo, nil
}

// CountUsageByUser counts prior redemptions of a promo code by a single user
func (r *Repository) CountUsageByUser(ctx context.Context, promoCodeID, userID uuid.UUID) (int, error) {
	query := `SELECT COUNT(*) FROM promo_code_usage WHERE promo_code_id = $1 AND user_id = $2`

	var count int
	err := r.db.QueryRow(ctx, query, promoCodeID, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count promo code usage: %w", err)
	}

	return count, nil
}

// HasDeliveredDeliveries reports whether the user has any delivered deliveries
func (r *Repository) HasDeliveredDeliveries(ctx context.Context, userID uuid.UUID) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM deliveries WHERE sender_id = $1 AND status = 'delivered')`

	var exists bool
	err := r.db.QueryRow(ctx, query, userID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check delivered deliveries: %w", err)
	}

	return exists, nil
}

// Create creates a new promo code
func (r *Repository) Create(ctx context.Context, promo *PromoCode) error {
	query := `
		INSERT INTO promo_codes (id, code, description, discount_type, discount_value,
			maximum_discount, minimum_order_amount, usage_limit, current_usage, is_one_time,
			is_first_time_user, valid_from, valid_until, is_active, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`

	promo.ID = uuid.New()
	now := time.Now()
	promo.CreatedAt = now
	promo.UpdatedAt = now

	_, err := r.db.Exec(ctx, query,
		promo.ID,
		promo.Code,
		promo.Description,
		promo.DiscountType,
		promo.DiscountValue,
		promo.MaxDiscount,
		promo.MinOrderAmount,
		promo.UsageLimit,
		promo.CurrentUsage,
		promo.IsOneTime,
		promo.IsFirstTimeUser,
		promo.ValidFrom,
		promo.ValidUntil,
		promo.IsActive,
		promo.CreatedBy,
		promo.CreatedAt,
		promo.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create promo code: %w", err)
	}

	return nil
}

// List retrieves promo codes with pagination, newest first
func (r *Repository) List(ctx context.Context, limit, offset int) ([]*PromoCode, int, error) {
	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM promo_codes`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count promo codes: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM promo_codes ORDER BY created_at DESC LIMIT $1 OFFSET $2`, promoColumns)

	rows, err := r.db.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list promo codes: %w", err)
	}
	defer rows.Close()

	promoCodes := make([]*PromoCode, 0)
	for rows.Next() {
		promo := &PromoCode{}
		err := rows.Scan(
			&promo.ID,
			&promo.Code,
			&promo.Description,
			&promo.DiscountType,
			&promo.DiscountValue,
			&promo.MaxDiscount,
			&promo.MinOrderAmount,
			&promo.UsageLimit,
			&promo.CurrentUsage,
			&promo.IsOneTime,
			&promo.IsFirstTimeUser,
			&promo.ValidFrom,
			&promo.ValidUntil,
			&promo.IsActive,
			&promo.CreatedBy,
			&promo.CreatedAt,
			&promo.UpdatedAt,
		)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan promo code: %w", err)
		}
		promoCodes = append(promoCodes, promo)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate promo codes: %w", err)
	}

	return promoCodes, total, nil
}

// Deactivate turns a promo code off
func (r *Repository) Deactivate(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.Exec(ctx,
		`UPDATE promo_codes SET is_active = false, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to deactivate promo code: %w", err)
	}
	if result.RowsAffected() == 0 {
		return common.NewNotFoundError("promo code not found", nil)
	}
	return nil
}
