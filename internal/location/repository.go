package location

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository handles database operations for location samples.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new location repository
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

var _ RepositoryInterface = (*Repository)(nil)

// InsertSample appends a location sample row.
func (r *Repository) InsertSample(ctx context.Context, s *Sample) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO location_updates (
			id, user_id, delivery_id, latitude, longitude,
			accuracy_meters, heading, speed_mps, battery_level,
			recorded_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		s.ID, s.UserID, s.DeliveryID, s.Latitude, s.Longitude,
		s.AccuracyM, s.Heading, s.SpeedMps, s.BatteryLevel,
		s.RecordedAt, s.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert location sample: %w", err)
	}
	return nil
}

// UpdateCourierPosition advances the courier profile position. The timestamp
// guard makes reordered samples lose: only a sample newer than the one on
// file writes.
func (r *Repository) UpdateCourierPosition(ctx context.Context, courierID uuid.UUID, lat, lng float64, h3Cell string, sampledAt time.Time) (bool, error) {
	result, err := r.db.Exec(ctx, `
		UPDATE couriers
		SET current_latitude = $2,
		    current_longitude = $3,
		    h3_cell = $4,
		    location_updated_at = $5,
		    updated_at = NOW()
		WHERE user_id = $1
			AND (location_updated_at IS NULL OR location_updated_at < $5)`,
		courierID, lat, lng, h3Cell, sampledAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to update courier position: %w", err)
	}
	return result.RowsAffected() > 0, nil
}
