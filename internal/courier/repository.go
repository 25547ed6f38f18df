package courier

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/richxcame/courier-dispatch/pkg/common"
)

const courierColumns = `user_id, vehicle_type, max_weight_lbs, service_radius_miles,
		is_available, active_delivery_id, background_check_status, id_verification_status,
		rating, current_latitude, current_longitude, location_updated_at,
		total_deliveries, completed_deliveries, cancelled_deliveries, account_balance,
		created_at, updated_at`

// Repository handles courier profile, earnings and payout persistence.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new courier repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

func scanProfile(row pgx.Row) (*Profile, error) {
	p := &Profile{}
	err := row.Scan(
		&p.UserID, &p.VehicleType, &p.MaxWeightLbs, &p.ServiceRadiusMiles,
		&p.IsAvailable, &p.ActiveDeliveryID, &p.BackgroundCheckStatus, &p.IDVerificationStatus,
		&p.Rating, &p.CurrentLatitude, &p.CurrentLongitude, &p.LocationUpdatedAt,
		&p.TotalDeliveries, &p.CompletedDeliveries, &p.CancelledDeliveries, &p.AccountBalance,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Create inserts a new courier profile. A second profile for the same user is
// a conflict.
func (r *Repository) Create(ctx context.Context, profile *Profile) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO couriers (
			user_id, vehicle_type, max_weight_lbs, service_radius_miles,
			background_check_status, id_verification_status, rating,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())`,
		profile.UserID, profile.VehicleType, profile.MaxWeightLbs, profile.ServiceRadiusMiles,
		profile.BackgroundCheckStatus, profile.IDVerificationStatus, profile.Rating,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return common.NewConflictError("courier profile already exists")
		}
		return fmt.Errorf("failed to create courier profile: %w", err)
	}
	return nil
}

// GetByUserID loads a courier profile.
func (r *Repository) GetByUserID(ctx context.Context, userID uuid.UUID) (*Profile, error) {
	p, err := scanProfile(r.db.QueryRow(ctx,
		fmt.Sprintf(`SELECT %s FROM couriers WHERE user_id = $1`, courierColumns), userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, common.NewNotFoundError("courier profile not found", err)
		}
		return nil, fmt.Errorf("failed to get courier profile: %w", err)
	}
	return p, nil
}

// UpdateProfile applies a partial update; nil fields keep their value.
func (r *Repository) UpdateProfile(ctx context.Context, userID uuid.UUID, vehicleType *string, maxWeightLbs, serviceRadiusMiles *float64) (*Profile, error) {
	p, err := scanProfile(r.db.QueryRow(ctx, fmt.Sprintf(`
		UPDATE couriers
		SET vehicle_type = COALESCE($2, vehicle_type),
		    max_weight_lbs = COALESCE($3, max_weight_lbs),
		    service_radius_miles = COALESCE($4, service_radius_miles),
		    updated_at = NOW()
		WHERE user_id = $1
		RETURNING %s`, courierColumns),
		userID, vehicleType, maxWeightLbs, serviceRadiusMiles))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, common.NewNotFoundError("courier profile not found", err)
		}
		return nil, fmt.Errorf("failed to update courier profile: %w", err)
	}
	return p, nil
}

// SetAvailability flips the availability flag and returns the updated profile.
func (r *Repository) SetAvailability(ctx context.Context, userID uuid.UUID, available bool) (*Profile, error) {
	p, err := scanProfile(r.db.QueryRow(ctx, fmt.Sprintf(`
		UPDATE couriers
		SET is_available = $2, updated_at = NOW()
		WHERE user_id = $1
		RETURNING %s`, courierColumns),
		userID, available))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, common.NewNotFoundError("courier profile not found", err)
		}
		return nil, fmt.Errorf("failed to set availability: %w", err)
	}
	return p, nil
}

// EarningsBetween returns the delivered count and the earned sum over the
// window. A nil from means all time.
func (r *Repository) EarningsBetween(ctx context.Context, courierID uuid.UUID, from *time.Time, to time.Time) (int, float64, error) {
	query := `
		SELECT COUNT(*), COALESCE(SUM(courier_earned), 0)
		FROM deliveries
		WHERE courier_id = $1 AND status = 'delivered' AND actual_delivery_time <= $2`
	args := []interface{}{courierID, to}
	if from != nil {
		query += ` AND actual_delivery_time >= $3`
		args = append(args, *from)
	}

	var count int
	var earned float64
	if err := r.db.QueryRow(ctx, query, args...).Scan(&count, &earned); err != nil {
		return 0, 0, fmt.Errorf("failed to aggregate earnings: %w", err)
	}
	return count, earned, nil
}

// DailyEarnings returns the per-day breakdown of the window, newest first.
func (r *Repository) DailyEarnings(ctx context.Context, courierID uuid.UUID, from *time.Time, to time.Time) ([]DailyEarning, error) {
	query := `
		SELECT TO_CHAR(DATE(actual_delivery_time), 'YYYY-MM-DD'), COUNT(*), COALESCE(SUM(courier_earned), 0)
		FROM deliveries
		WHERE courier_id = $1 AND status = 'delivered' AND actual_delivery_time <= $2`
	args := []interface{}{courierID, to}
	if from != nil {
		query += ` AND actual_delivery_time >= $3`
		args = append(args, *from)
	}
	query += `
		GROUP BY DATE(actual_delivery_time)
		ORDER BY DATE(actual_delivery_time) DESC`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily earnings: %w", err)
	}
	defer rows.Close()

	var daily []DailyEarning
	for rows.Next() {
		var d DailyEarning
		if err := rows.Scan(&d.Date, &d.Deliveries, &d.Earned); err != nil {
			return nil, fmt.Errorf("failed to scan daily earning: %w", err)
		}
		daily = append(daily, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read daily earnings: %w", err)
	}
	return daily, nil
}

// RecentPayouts returns the courier's latest payouts, newest first.
func (r *Repository) RecentPayouts(ctx context.Context, courierID uuid.UUID, limit int) ([]*Payout, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, courier_id, amount, status, reference, period_start, period_end, processed_at, created_at
		FROM payouts
		WHERE courier_id = $1
		ORDER BY created_at DESC
		LIMIT $2`,
		courierID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query payouts: %w", err)
	}
	defer rows.Close()

	var payouts []*Payout
	for rows.Next() {
		p := &Payout{}
		if err := rows.Scan(&p.ID, &p.CourierID, &p.Amount, &p.Status, &p.Reference,
			&p.PeriodStart, &p.PeriodEnd, &p.ProcessedAt, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan payout: %w", err)
		}
		payouts = append(payouts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read payouts: %w", err)
	}
	return payouts, nil
}

// WithdrawBalance drains the courier's balance into a completed payout. The
// row lock serializes concurrent withdrawals; the second one sees a zero
// balance. The covered period runs from the previous payout (or the profile's
// creation) to now.
func (r *Repository) WithdrawBalance(ctx context.Context, courierID uuid.UUID) (*Payout, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var balance float64
	var createdAt time.Time
	err = tx.QueryRow(ctx, `
		SELECT account_balance, created_at FROM couriers
		WHERE user_id = $1
		FOR UPDATE`,
		courierID).Scan(&balance, &createdAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.NewNotFoundError("courier profile not found", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock courier balance: %w", err)
	}

	if balance <= 0 {
		return nil, common.NewValidationError("no balance to withdraw")
	}

	periodStart := createdAt
	err = tx.QueryRow(ctx, `
		SELECT period_end FROM payouts
		WHERE courier_id = $1 AND status = $2
		ORDER BY period_end DESC
		LIMIT 1`,
		courierID, PayoutCompleted).Scan(&periodStart)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to find previous payout: %w", err)
	}

	now := time.Now()
	payout := &Payout{
		ID:          uuid.New(),
		CourierID:   courierID,
		Amount:      balance,
		Status:      PayoutCompleted,
		Reference:   newPayoutReference(),
		PeriodStart: periodStart,
		PeriodEnd:   now,
		ProcessedAt: &now,
		CreatedAt:   now,
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO payouts (id, courier_id, amount, status, reference, period_start, period_end, processed_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		payout.ID, payout.CourierID, payout.Amount, payout.Status, payout.Reference,
		payout.PeriodStart, payout.PeriodEnd, payout.ProcessedAt, payout.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create payout: %w", err)
	}

	_, err = tx.Exec(ctx, `
		UPDATE couriers SET account_balance = 0, updated_at = NOW()
		WHERE user_id = $1`,
		courierID)
	if err != nil {
		return nil, fmt.Errorf("failed to zero balance: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit payout: %w", err)
	}
	return payout, nil
}

// newPayoutReference builds a human-readable payout reference. The alphabet
// drops lookalike characters.
func newPayoutReference() string {
	const chars = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	ref := make([]byte, 10)
	for i := range ref {
		n, _ := rand.Int(rand.Reader, big.NewInt(int64(len(chars))))
		ref[i] = chars[n.Int64()]
	}
	return fmt.Sprintf("PAY-%s", string(ref))
}
