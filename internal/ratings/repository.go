package ratings

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/richxcame/courier-dispatch/pkg/common"
)

// Repository handles rating data access
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new rating repository
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

var _ RepositoryInterface = (*Repository)(nil)

// Create stores a rating and, when the ratee is a courier, folds it into the
// courier's aggregate in the same transaction so the dispatch eligibility
// filter never reads a stale average.
func (r *Repository) Create(ctx context.Context, rating *DeliveryRating) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin rating transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx, `
		INSERT INTO delivery_ratings (
			id, delivery_id, rater_id, ratee_id, rater_role,
			rating, timeliness, communication, handling, comment, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW())
		RETURNING created_at`,
		rating.ID, rating.DeliveryID, rating.RaterID, rating.RateeID, rating.RaterRole,
		rating.Rating, rating.Timeliness, rating.Communication, rating.Handling, rating.Comment,
	).Scan(&rating.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return common.NewConflictError("you have already rated this delivery")
		}
		return fmt.Errorf("failed to create rating: %w", err)
	}

	if rating.RaterRole == RaterSender {
		_, err = tx.Exec(ctx, `
			UPDATE couriers
			SET rating = (
				SELECT ROUND(AVG(rating)::numeric, 2)
				FROM delivery_ratings
				WHERE ratee_id = $1 AND rater_role = $2
			), updated_at = NOW()
			WHERE user_id = $1`,
			rating.RateeID, RaterSender,
		)
		if err != nil {
			return fmt.Errorf("failed to update courier rating: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit rating: %w", err)
	}

	return nil
}

// GetDeliveryForRating looks up the parties and status of a delivery.
func (r *Repository) GetDeliveryForRating(ctx context.Context, deliveryID uuid.UUID) (*ratedDelivery, error) {
	d := &ratedDelivery{}
	err := r.db.QueryRow(ctx,
		`SELECT sender_id, courier_id, status FROM deliveries WHERE id = $1`, deliveryID).
		Scan(&d.SenderID, &d.CourierID, &d.Status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, common.NewNotFoundError("delivery not found", err)
		}
		return nil, fmt.Errorf("failed to get delivery: %w", err)
	}

	return d, nil
}
