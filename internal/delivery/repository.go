package delivery

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/richxcame/courier-dispatch/internal/payments"
	"github.com/richxcame/courier-dispatch/internal/promos"
	"github.com/richxcame/courier-dispatch/internal/tracking"
	"github.com/richxcame/courier-dispatch/pkg/common"
)

// Repository handles database operations for deliveries
type Repository struct {
	db *pgxpool.Pool
}

// Ensure Repository implements RepositoryInterface.
var _ RepositoryInterface = (*Repository)(nil)

// NewRepository creates a new delivery repository
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

const deliveryColumns = `id, sender_id, courier_id, status, status_since,
		pickup_latitude, pickup_longitude, pickup_address, pickup_access_code,
		dropoff_latitude, dropoff_longitude, dropoff_address, dropoff_access_code,
		package_type_id, description, weight_lbs, fragile,
		requires_signature, requires_id_verification, requires_photo_proof,
		recipient_name, recipient_phone, recipient_email, verification_code,
		special_instructions, package_photo_url, proof_photo_url, signature_url, id_verified,
		priority, distance_miles, estimated_duration_minutes,
		scheduled_pickup_time, actual_pickup_time, actual_delivery_time, estimated_delivery_time,
		cancellation_reason, created_at, updated_at`

func scanDelivery(row pgx.Row) (*Delivery, error) {
	d := &Delivery{}
	err := row.Scan(
		&d.ID, &d.SenderID, &d.CourierID, &d.Status, &d.StatusSince,
		&d.PickupLatitude, &d.PickupLongitude, &d.PickupAddress, &d.PickupAccessCode,
		&d.DropoffLatitude, &d.DropoffLongitude, &d.DropoffAddress, &d.DropoffAccessCode,
		&d.PackageTypeID, &d.Description, &d.WeightLbs, &d.Fragile,
		&d.RequiresSignature, &d.RequiresIDVerification, &d.RequiresPhotoProof,
		&d.RecipientName, &d.RecipientPhone, &d.RecipientEmail, &d.VerificationCode,
		&d.SpecialInstructions, &d.PackagePhotoURL, &d.ProofPhotoURL, &d.SignatureURL, &d.IDVerified,
		&d.Priority, &d.DistanceMiles, &d.EstimatedDurationMinutes,
		&d.ScheduledPickupTime, &d.ActualPickupTime, &d.ActualDeliveryTime, &d.EstimatedDeliveryTime,
		&d.CancellationReason, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return d, nil
}

// CreateDelivery persists a new delivery and everything minted with it: the
// pending and searching_courier status events, the authorized payment, the
// promo usage when a code applied, and both tracking links. One transaction;
// a failed promo usage cap rolls back the whole creation.
func (r *Repository) CreateDelivery(ctx context.Context, d *Delivery, payment *payments.Payment, usage *promos.PromoUsage, links []*tracking.TrackingLink) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO deliveries (
			id, sender_id, status, status_since,
			pickup_latitude, pickup_longitude, pickup_address, pickup_access_code,
			dropoff_latitude, dropoff_longitude, dropoff_address, dropoff_access_code,
			package_type_id, description, weight_lbs, fragile,
			requires_signature, requires_id_verification, requires_photo_proof,
			recipient_name, recipient_phone, recipient_email, verification_code,
			special_instructions, package_photo_url, priority,
			distance_miles, estimated_duration_minutes,
			scheduled_pickup_time, estimated_delivery_time,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7, $8,
			$9, $10, $11, $12,
			$13, $14, $15, $16,
			$17, $18, $19,
			$20, $21, $22, $23,
			$24, $25, $26,
			$27, $28,
			$29, $30,
			$31, $32
		)`,
		d.ID, d.SenderID, d.Status, d.StatusSince,
		d.PickupLatitude, d.PickupLongitude, d.PickupAddress, d.PickupAccessCode,
		d.DropoffLatitude, d.DropoffLongitude, d.DropoffAddress, d.DropoffAccessCode,
		d.PackageTypeID, d.Description, d.WeightLbs, d.Fragile,
		d.RequiresSignature, d.RequiresIDVerification, d.RequiresPhotoProof,
		d.RecipientName, d.RecipientPhone, d.RecipientEmail, d.VerificationCode,
		d.SpecialInstructions, d.PackagePhotoURL, d.Priority,
		d.DistanceMiles, d.EstimatedDurationMinutes,
		d.ScheduledPickupTime, d.EstimatedDeliveryTime,
		d.CreatedAt, d.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert delivery: %w", err)
	}

	// The timeline starts with pending and searching_courier, both system
	// moves committed at creation.
	for i, status := range []string{StatusPending, StatusSearchingCourier} {
		if err := insertStatusEvent(ctx, tx, &StatusEvent{
			ID:         uuid.New(),
			DeliveryID: d.ID,
			Status:     status,
			IsSystem:   true,
			CreatedAt:  d.CreatedAt.Add(time.Duration(i) * time.Millisecond),
		}); err != nil {
			return err
		}
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO payments (
			id, delivery_id, sender_id, amount, currency, payment_method, status, txn_id,
			base_fee, distance_fee, weight_fee, priority_fee, tax, discount, tip,
			refund_amount, promo_code_id, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`,
		payment.ID, payment.DeliveryID, payment.SenderID, payment.Amount, payment.Currency,
		payment.PaymentMethod, payment.Status, payment.TxnID,
		payment.BaseFee, payment.DistanceFee, payment.WeightFee, payment.PriorityFee,
		payment.Tax, payment.Discount, payment.Tip,
		payment.RefundAmount, payment.PromoCodeID, payment.CreatedAt, payment.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert payment: %w", err)
	}

	if usage != nil {
		_, err = tx.Exec(ctx, `
			INSERT INTO promo_code_usage (
				id, promo_code_id, user_id, delivery_id,
				discount_amount, original_amount, final_amount, used_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			usage.ID, usage.PromoCodeID, usage.UserID, usage.DeliveryID,
			usage.DiscountAmount, usage.OriginalAmount, usage.FinalAmount, usage.UsedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert promo usage: %w", err)
		}

		result, err := tx.Exec(ctx, `
			UPDATE promo_codes
			SET current_usage = current_usage + 1, updated_at = NOW()
			WHERE id = $1 AND is_active = TRUE
				AND (usage_limit IS NULL OR current_usage < usage_limit)`,
			usage.PromoCodeID,
		)
		if err != nil {
			return fmt.Errorf("failed to increment promo usage: %w", err)
		}
		if result.RowsAffected() == 0 {
			return common.NewConflictError("promo code usage limit reached")
		}
	}

	for _, link := range links {
		_, err = tx.Exec(ctx, `
			INSERT INTO tracking_links (id, delivery_id, token, is_recipient, expires_at, access_count, created_at)
			VALUES ($1, $2, $3, $4, $5, 0, $6)`,
			link.ID, link.DeliveryID, link.Token, link.IsRecipient, link.ExpiresAt, link.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert tracking link: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit delivery creation: %w", err)
	}

	return nil
}

func insertStatusEvent(ctx context.Context, tx pgx.Tx, e *StatusEvent) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO delivery_status_updates (id, delivery_id, status, latitude, longitude, notes, actor_id, is_system, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		e.ID, e.DeliveryID, e.Status, e.Latitude, e.Longitude, e.Notes, e.ActorID, e.IsSystem, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert status event: %w", err)
	}
	return nil
}

// GetByID retrieves a delivery by ID
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Delivery, error) {
	d, err := scanDelivery(r.db.QueryRow(ctx,
		fmt.Sprintf(`SELECT %s FROM deliveries WHERE id = $1`, deliveryColumns), id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, common.NewNotFoundError("delivery not found", err)
		}
		return nil, fmt.Errorf("failed to get delivery: %w", err)
	}
	return d, nil
}

// ApplyTransition serializes one state change against the delivery row. The
// row lock makes concurrent transitions line up; a loser sees the winner's
// status and gets InvalidTransition, a repeat of the current status returns
// without writing an event.
func (r *Repository) ApplyTransition(ctx context.Context, t Transition) (*TransitionResult, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var current string
	var courierID *uuid.UUID
	err = tx.QueryRow(ctx,
		`SELECT status, courier_id FROM deliveries WHERE id = $1 FOR UPDATE`,
		t.DeliveryID,
	).Scan(&current, &courierID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, common.NewNotFoundError("delivery not found", err)
		}
		return nil, fmt.Errorf("failed to lock delivery: %w", err)
	}

	if current == t.To {
		tx.Rollback(ctx)
		d, err := r.GetByID(ctx, t.DeliveryID)
		if err != nil {
			return nil, err
		}
		return &TransitionResult{Applied: false, Delivery: d}, nil
	}
	if current != t.From {
		return nil, common.NewInvalidTransitionError(
			fmt.Sprintf("delivery is %s now, cannot move to %s", current, t.To))
	}

	if err := updateForTransition(ctx, tx, t); err != nil {
		return nil, err
	}

	if err := insertStatusEvent(ctx, tx, &StatusEvent{
		ID:         uuid.New(),
		DeliveryID: t.DeliveryID,
		Status:     t.To,
		Latitude:   t.Latitude,
		Longitude:  t.Longitude,
		Notes:      t.Notes,
		ActorID:    t.ActorID,
		IsSystem:   t.ActorRole == ActorSystem,
		CreatedAt:  time.Now(),
	}); err != nil {
		return nil, err
	}

	if courierID != nil {
		if err := applyCourierSideEffects(ctx, tx, t, *courierID); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transition: %w", err)
	}

	d, err := r.GetByID(ctx, t.DeliveryID)
	if err != nil {
		return nil, err
	}
	return &TransitionResult{Applied: true, Delivery: d}, nil
}

// updateForTransition writes the per-target column changes. Actual pickup and
// delivery times are set exactly once.
func updateForTransition(ctx context.Context, tx pgx.Tx, t Transition) error {
	var err error
	switch t.To {
	case StatusPickedUp:
		_, err = tx.Exec(ctx, `
			UPDATE deliveries
			SET status = $2, status_since = NOW(),
			    actual_pickup_time = COALESCE(actual_pickup_time, NOW()),
			    updated_at = NOW()
			WHERE id = $1`,
			t.DeliveryID, t.To)
	case StatusDelivered:
		_, err = tx.Exec(ctx, `
			UPDATE deliveries
			SET status = $2, status_since = NOW(),
			    actual_delivery_time = COALESCE(actual_delivery_time, NOW()),
			    proof_photo_url = COALESCE($3, proof_photo_url),
			    signature_url = COALESCE($4, signature_url),
			    id_verified = id_verified OR $5,
			    courier_earned = $6,
			    updated_at = NOW()
			WHERE id = $1`,
			t.DeliveryID, t.To, t.ProofPhotoURL, t.SignatureURL, t.IDVerified, t.CourierCredit)
	case StatusCancelled:
		_, err = tx.Exec(ctx, `
			UPDATE deliveries
			SET status = $2, status_since = NOW(),
			    cancellation_reason = $3, courier_id = NULL,
			    updated_at = NOW()
			WHERE id = $1`,
			t.DeliveryID, t.To, t.Reason)
	case StatusFailed, StatusReturned:
		_, err = tx.Exec(ctx, `
			UPDATE deliveries
			SET status = $2, status_since = NOW(),
			    cancellation_reason = $3,
			    updated_at = NOW()
			WHERE id = $1`,
			t.DeliveryID, t.To, t.Reason)
	default:
		_, err = tx.Exec(ctx, `
			UPDATE deliveries
			SET status = $2, status_since = NOW(), updated_at = NOW()
			WHERE id = $1`,
			t.DeliveryID, t.To)
	}
	if err != nil {
		return fmt.Errorf("failed to update delivery status: %w", err)
	}
	return nil
}

// applyCourierSideEffects keeps the courier profile consistent with terminal
// transitions: the active slot is freed, counters move, and on delivered the
// earning lands on the balance in the same transaction.
func applyCourierSideEffects(ctx context.Context, tx pgx.Tx, t Transition, courierID uuid.UUID) error {
	var err error
	switch t.To {
	case StatusDelivered:
		_, err = tx.Exec(ctx, `
			UPDATE couriers
			SET active_delivery_id = NULL,
			    completed_deliveries = completed_deliveries + 1,
			    account_balance = account_balance + $2,
			    updated_at = NOW()
			WHERE user_id = $1`,
			courierID, t.CourierCredit)
	case StatusCancelled, StatusFailed, StatusReturned:
		_, err = tx.Exec(ctx, `
			UPDATE couriers
			SET active_delivery_id = NULL,
			    cancelled_deliveries = cancelled_deliveries + 1,
			    updated_at = NOW()
			WHERE user_id = $1`,
			courierID)
	default:
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to update courier profile: %w", err)
	}
	return nil
}

// AtomicClaim binds the claiming courier to a searching delivery. Exactly the
// first claim wins; the conditional updates are the authority, not the offer.
func (r *Repository) AtomicClaim(ctx context.Context, deliveryID, courierID uuid.UUID) (*CourierSummary, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	result, err := tx.Exec(ctx, `
		UPDATE deliveries
		SET courier_id = $2, status = $3, status_since = NOW(), updated_at = NOW()
		WHERE id = $1 AND status = $4 AND courier_id IS NULL`,
		deliveryID, courierID, StatusCourierAssigned, StatusSearchingCourier,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to claim delivery: %w", err)
	}
	if result.RowsAffected() == 0 {
		var status string
		err := tx.QueryRow(ctx, `SELECT status FROM deliveries WHERE id = $1`, deliveryID).Scan(&status)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, common.NewNotFoundError("delivery not found", err)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to check delivery status: %w", err)
		}
		return nil, common.NewAlreadyAssignedError("delivery was already accepted by another courier")
	}

	result, err = tx.Exec(ctx, `
		UPDATE couriers
		SET active_delivery_id = $1, total_deliveries = total_deliveries + 1, updated_at = NOW()
		WHERE user_id = $2 AND active_delivery_id IS NULL`,
		deliveryID, courierID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to bind courier: %w", err)
	}
	if result.RowsAffected() == 0 {
		return nil, common.NewConflictError("you already have an active delivery")
	}

	summary := &CourierSummary{}
	err = tx.QueryRow(ctx, `
		SELECT user_id, vehicle_type, current_latitude, current_longitude, completed_deliveries
		FROM couriers WHERE user_id = $1`,
		courierID,
	).Scan(&summary.UserID, &summary.VehicleType, &summary.Latitude, &summary.Longitude, &summary.CompletedJobs)
	if err != nil {
		return nil, fmt.Errorf("failed to load courier summary: %w", err)
	}

	if err := insertStatusEvent(ctx, tx, &StatusEvent{
		ID:         uuid.New(),
		DeliveryID: deliveryID,
		Status:     StatusCourierAssigned,
		ActorID:    &courierID,
		CreatedAt:  time.Now(),
	}); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit claim: %w", err)
	}

	return summary, nil
}

// List returns deliveries scoped to the caller with optional status and date
// filters, newest first.
func (r *Repository) List(ctx context.Context, userID uuid.UUID, asCourier bool, filters *ListFilters, limit, offset int) ([]*Delivery, int64, error) {
	scopeColumn := "sender_id"
	if asCourier {
		scopeColumn = "courier_id"
	}

	where := []string{fmt.Sprintf("%s = $1", scopeColumn)}
	args := []interface{}{userID}
	argIdx := 2

	if filters != nil {
		if filters.Status != nil {
			where = append(where, fmt.Sprintf("status = $%d", argIdx))
			args = append(args, *filters.Status)
			argIdx++
		}
		if filters.FromDate != nil {
			where = append(where, fmt.Sprintf("created_at >= $%d", argIdx))
			args = append(args, *filters.FromDate)
			argIdx++
		}
		if filters.ToDate != nil {
			where = append(where, fmt.Sprintf("created_at <= $%d", argIdx))
			args = append(args, *filters.ToDate)
			argIdx++
		}
	}

	whereClause := strings.Join(where, " AND ")

	var total int64
	err := r.db.QueryRow(ctx,
		fmt.Sprintf("SELECT COUNT(*) FROM deliveries WHERE %s", whereClause),
		args...,
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count deliveries: %w", err)
	}

	args = append(args, limit, offset)
	rows, err := r.db.Query(ctx,
		fmt.Sprintf(`SELECT %s FROM deliveries WHERE %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
			deliveryColumns, whereClause, argIdx, argIdx+1),
		args...,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list deliveries: %w", err)
	}
	defer rows.Close()

	deliveries := make([]*Delivery, 0)
	for rows.Next() {
		d, err := scanDelivery(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan delivery: %w", err)
		}
		deliveries = append(deliveries, d)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to read deliveries: %w", err)
	}

	return deliveries, total, nil
}

// GetActiveByCourier returns the courier's current non-terminal delivery.
func (r *Repository) GetActiveByCourier(ctx context.Context, courierID uuid.UUID) (*Delivery, error) {
	d, err := scanDelivery(r.db.QueryRow(ctx,
		fmt.Sprintf(`
			SELECT %s FROM deliveries
			WHERE courier_id = $1 AND status NOT IN ($2, $3, $4, $5)
			ORDER BY status_since DESC
			LIMIT 1`, deliveryColumns),
		courierID, StatusDelivered, StatusCancelled, StatusFailed, StatusReturned,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, common.NewNotFoundError("no active delivery", err)
		}
		return nil, fmt.Errorf("failed to get active delivery: %w", err)
	}
	return d, nil
}

// GetStatusEvents returns the status timeline oldest first.
func (r *Repository) GetStatusEvents(ctx context.Context, deliveryID uuid.UUID) ([]*StatusEvent, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, delivery_id, status, latitude, longitude, notes, actor_id, is_system, created_at
		FROM delivery_status_updates
		WHERE delivery_id = $1
		ORDER BY created_at ASC`,
		deliveryID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get status events: %w", err)
	}
	defer rows.Close()

	events := make([]*StatusEvent, 0)
	for rows.Next() {
		e := &StatusEvent{}
		if err := rows.Scan(&e.ID, &e.DeliveryID, &e.Status, &e.Latitude, &e.Longitude,
			&e.Notes, &e.ActorID, &e.IsSystem, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan status event: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read status events: %w", err)
	}

	return events, nil
}

// UpdateETA persists a recomputed estimated delivery time.
func (r *Repository) UpdateETA(ctx context.Context, deliveryID uuid.UUID, eta time.Time) error {
	_, err := r.db.Exec(ctx, `
		UPDATE deliveries SET estimated_delivery_time = $2, updated_at = NOW() WHERE id = $1`,
		deliveryID, eta,
	)
	if err != nil {
		return fmt.Errorf("failed to update eta: %w", err)
	}
	return nil
}
