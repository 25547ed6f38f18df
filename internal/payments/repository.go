package payments

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/richxcame/courier-dispatch/pkg/common"
)

// Repository handles database operations for payments
type Repository struct {
	db *pgxpool.Pool
}

// Ensure Repository implements RepositoryInterface.
var _ RepositoryInterface = (*Repository)(nil)

// NewRepository creates a new payments repository
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

const paymentColumns = `id, delivery_id, sender_id, amount, currency, payment_method, status,
		txn_id, base_fee, distance_fee, weight_fee, priority_fee, tax, discount, tip,
		refund_amount, refund_reason, promo_code_id, created_at, updated_at`

func scanPayment(row pgx.Row) (*Payment, error) {
	p := &Payment{}
	err := row.Scan(
		&p.ID,
		&p.DeliveryID,
		&p.SenderID,
		&p.Amount,
		&p.Currency,
		&p.PaymentMethod,
		&p.Status,
		&p.TxnID,
		&p.BaseFee,
		&p.DistanceFee,
		&p.WeightFee,
		&p.PriorityFee,
		&p.Tax,
		&p.Discount,
		&p.Tip,
		&p.RefundAmount,
		&p.RefundReason,
		&p.PromoCodeID,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// GetByDeliveryID retrieves the payment for a delivery
func (r *Repository) GetByDeliveryID(ctx context.Context, deliveryID uuid.UUID) (*Payment, error) {
	query := fmt.Sprintf(`SELECT %s FROM payments WHERE delivery_id = $1`, paymentColumns)

	payment, err := scanPayment(r.db.QueryRow(ctx, query, deliveryID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, common.NewNotFoundError("payment not found", err)
		}
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}

	return payment, nil
}

// MarkCaptured moves an authorized payment to captured. Returns false when
// no row was in the authorized state, which callers treat as an already
// completed capture.
func (r *Repository) MarkCaptured(ctx context.Context, deliveryID uuid.UUID) (bool, error) {
	result, err := r.db.Exec(ctx, `
		UPDATE payments
		SET status = $1, updated_at = NOW()
		WHERE delivery_id = $2 AND status = $3`,
		StatusCaptured, deliveryID, StatusAuthorized)
	if err != nil {
		return false, fmt.Errorf("failed to mark payment captured: %w", err)
	}

	return result.RowsAffected() == 1, nil
}

// MarkRefunded moves an authorized payment to refunded, recording the
// refunded amount and reason. Returns false when the payment was not in a
// refundable state.
func (r *Repository) MarkRefunded(ctx context.Context, deliveryID uuid.UUID, refundAmount float64, reason string) (bool, error) {
	result, err := r.db.Exec(ctx, `
		UPDATE payments
		SET status = $1, refund_amount = $2, refund_reason = $3, updated_at = NOW()
		WHERE delivery_id = $4 AND status = $5`,
		StatusRefunded, refundAmount, reason, deliveryID, StatusAuthorized)
	if err != nil {
		return false, fmt.Errorf("failed to mark payment refunded: %w", err)
	}

	return result.RowsAffected() == 1, nil
}

// AddTip sets the new tip on the payment and credits the courier balance by
// the delta in one transaction. The tip column acts as the compare-and-swap
// guard against concurrent adjustments. The delivery's earned figure moves by
// the same delta so balance audits line up per delivery.
func (r *Repository) AddTip(ctx context.Context, paymentID, deliveryID uuid.UUID, oldTip, newTip float64, courierID uuid.UUID) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	result, err := tx.Exec(ctx, `
		UPDATE payments
		SET tip = $1, updated_at = NOW()
		WHERE id = $2 AND tip = $3`,
		newTip, paymentID, oldTip)
	if err != nil {
		return fmt.Errorf("failed to update tip: %w", err)
	}
	if result.RowsAffected() == 0 {
		return common.NewConflictError("tip was adjusted concurrently, retry")
	}

	delta := newTip - oldTip
	result, err = tx.Exec(ctx, `
		UPDATE couriers
		SET account_balance = account_balance + $1, updated_at = NOW()
		WHERE user_id = $2`,
		delta, courierID)
	if err != nil {
		return fmt.Errorf("failed to credit courier tip: %w", err)
	}
	if result.RowsAffected() == 0 {
		return common.NewNotFoundError("courier profile not found", nil)
	}

	_, err = tx.Exec(ctx, `
		UPDATE deliveries
		SET courier_earned = courier_earned + $1, updated_at = NOW()
		WHERE id = $2`,
		delta, deliveryID)
	if err != nil {
		return fmt.Errorf("failed to update delivery earnings: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit tip: %w", err)
	}

	return nil
}

// GetDeliveryParties looks up the sender, courier and current status of a
// delivery for authorization checks.
func (r *Repository) GetDeliveryParties(ctx context.Context, deliveryID uuid.UUID) (*deliveryParties, error) {
	parties := &deliveryParties{}
	err := r.db.QueryRow(ctx,
		`SELECT sender_id, courier_id, status FROM deliveries WHERE id = $1`, deliveryID).
		Scan(&parties.SenderID, &parties.CourierID, &parties.Status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, common.NewNotFoundError("delivery not found", err)
		}
		return nil, fmt.Errorf("failed to get delivery: %w", err)
	}

	return parties, nil
}

// GetReceipt builds the receipt view for a delivery's payment.
func (r *Repository) GetReceipt(ctx context.Context, deliveryID uuid.UUID) (*Receipt, error) {
	query := `
		SELECT p.delivery_id, p.id, p.status, p.base_fee, p.distance_fee, p.weight_fee,
			p.priority_fee, p.tax, p.discount, p.tip, p.amount, pc.code, p.updated_at
		FROM payments p
		LEFT JOIN promo_codes pc ON pc.id = p.promo_code_id
		WHERE p.delivery_id = $1`

	receipt := &Receipt{}
	err := r.db.QueryRow(ctx, query, deliveryID).Scan(
		&receipt.DeliveryID,
		&receipt.PaymentID,
		&receipt.Status,
		&receipt.BaseFee,
		&receipt.DistanceFee,
		&receipt.WeightFee,
		&receipt.PriorityFee,
		&receipt.Tax,
		&receipt.Discount,
		&receipt.Tip,
		&receipt.Total,
		&receipt.PromoCode,
		&receipt.PaidAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, common.NewNotFoundError("payment not found", err)
		}
		return nil, fmt.Errorf("failed to get receipt: %w", err)
	}

	return receipt, nil
}
