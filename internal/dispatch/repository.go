package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository handles database operations for courier eligibility.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new dispatch repository
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

var _ RepositoryInterface = (*Repository)(nil)

// FindCandidates applies every eligibility rule the database can answer:
// availability, weight capacity, vetting, rating and location freshness.
// The per-courier service radius is checked by the caller, which knows the
// pickup point.
func (r *Repository) FindCandidates(ctx context.Context, weightLbs, minRating float64, locationAfter time.Time, ids []uuid.UUID) ([]*Candidate, error) {
	query := `
		SELECT user_id, current_latitude, current_longitude,
		       service_radius_miles, vehicle_type, rating
		FROM couriers
		WHERE is_available = TRUE
			AND active_delivery_id IS NULL
			AND max_weight_lbs >= $1
			AND background_check_status = 'approved'
			AND id_verification_status = 'verified'
			AND rating >= $2
			AND current_latitude IS NOT NULL
			AND current_longitude IS NOT NULL
			AND location_updated_at > $3`
	args := []interface{}{weightLbs, minRating, locationAfter}

	if len(ids) > 0 {
		query += fmt.Sprintf(" AND user_id = ANY($%d)", len(args)+1)
		args = append(args, ids)
	}
	query += " ORDER BY rating DESC, completed_deliveries DESC LIMIT 50"

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to find candidate couriers: %w", err)
	}
	defer rows.Close()

	var candidates []*Candidate
	for rows.Next() {
		c := &Candidate{}
		if err := rows.Scan(&c.UserID, &c.Latitude, &c.Longitude, &c.ServiceRadiusMiles, &c.VehicleType, &c.Rating); err != nil {
			return nil, fmt.Errorf("failed to scan candidate: %w", err)
		}
		candidates = append(candidates, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read candidates: %w", err)
	}

	return candidates, nil
}
