package messages

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

const messageColumns = `id, delivery_id, sender_id, sender_type, recipient_id,
	content, attachment_url, is_read, read_at, created_at`

// Repository handles message persistence
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new message repository
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

var _ RepositoryInterface = (*Repository)(nil)

func scanMessage(row pgx.Row) (*Message, error) {
	m := &Message{}
	err := row.Scan(
		&m.ID, &m.DeliveryID, &m.SenderID, &m.SenderType, &m.RecipientID,
		&m.Content, &m.AttachmentURL, &m.IsRead, &m.ReadAt, &m.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// Insert persists a message and fills in its creation timestamp.
func (r *Repository) Insert(ctx context.Context, m *Message) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO delivery_messages (
			id, delivery_id, sender_id, sender_type, recipient_id,
			content, attachment_url, is_read, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, FALSE, NOW())
		RETURNING created_at`,
		m.ID, m.DeliveryID, m.SenderID, m.SenderType, m.RecipientID,
		m.Content, m.AttachmentURL,
	).Scan(&m.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}
	return nil
}

// GetByID retrieves a single message.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Message, error) {
	m, err := scanMessage(r.db.QueryRow(ctx,
		`SELECT `+messageColumns+` FROM delivery_messages WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, common.NewNotFoundError("message not found", err)
		}
		return nil, fmt.Errorf("failed to get message: %w", err)
	}
	return m, nil
}

// ListByDelivery returns a delivery's messages oldest first.
func (r *Repository) ListByDelivery(ctx context.Context, deliveryID uuid.UUID, limit, offset int) ([]*Message, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+messageColumns+` FROM delivery_messages
		WHERE delivery_id = $1
		ORDER BY created_at ASC
		LIMIT $2 OFFSET $3`,
		deliveryID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	var msgs []*Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// UnreadCount counts messages addressed to the user that are still unread.
func (r *Repository) UnreadCount(ctx context.Context, deliveryID, recipientID uuid.UUID) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM delivery_messages
		WHERE delivery_id = $1 AND recipient_id = $2 AND is_read = FALSE`,
		deliveryID, recipientID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count unread messages: %w", err)
	}
	return count, nil
}

// MarkRead flips the read flag and returns the read timestamp.
func (r *Repository) MarkRead(ctx context.Context, id uuid.UUID) (time.Time, error) {
	var readAt time.Time
	err := r.db.QueryRow(ctx, `
		UPDATE delivery_messages
		SET is_read = TRUE, read_at = NOW()
		WHERE id = $1
		RETURNING read_at`,
		id,
	).Scan(&readAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return time.Time{}, common.NewNotFoundError("message not found", err)
		}
		return time.Time{}, fmt.Errorf("failed to mark message read: %w", err)
	}
	return readAt, nil
}

// GetDeliveryParties looks up the sender and courier of a delivery for
// routing and authorization.
func (r *Repository) GetDeliveryParties(ctx context.Context, deliveryID uuid.UUID) (*deliveryParties, error) {
	parties := &deliveryParties{}
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
