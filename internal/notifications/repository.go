package notifications

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/richxcame/courier-dispatch/pkg/common"
)

const notificationColumns = `id, user_id, type, title, content, delivery_id,
	action_url, send_push, send_sms, send_email, is_read, read_at, created_at`

// Repository handles notification persistence
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new notification repository
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

var _ RepositoryInterface = (*Repository)(nil)

func scanNotification(row pgx.Row) (*Notification, error) {
	n := &Notification{}
	err := row.Scan(
		&n.ID, &n.UserID, &n.Type, &n.Title, &n.Content, &n.DeliveryID,
		&n.ActionURL, &n.SendPush, &n.SendSMS, &n.SendEmail, &n.IsRead,
		&n.ReadAt, &n.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return n, nil
}

// Create persists a notification and fills in its creation timestamp.
func (r *Repository) Create(ctx context.Context, n *Notification) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO notifications (
			id, user_id, type, title, content, delivery_id,
			action_url, send_push, send_sms, send_email, is_read, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, FALSE, NOW())
		RETURNING created_at`,
		n.ID, n.UserID, n.Type, n.Title, n.Content, n.DeliveryID,
		n.ActionURL, n.SendPush, n.SendSMS, n.SendEmail,
	).Scan(&n.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}

// ListByUser returns a page of the user's feed, newest first.
func (r *Repository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*Notification, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+notificationColumns+` FROM notifications
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`,
		userID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer rows.Close()

	var feed []*Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		feed = append(feed, n)
	}
	return feed, rows.Err()
}

// UnreadCount counts the user's unread notifications.
func (r *Repository) UnreadCount(ctx context.Context, userID uuid.UUID) (int, error) {
	var count int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND is_read = FALSE`,
		userID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count unread notifications: %w", err)
	}
	return count, nil
}

// MarkRead flags one of the user's notifications as read. Repeating the call
// keeps the original read timestamp.
func (r *Repository) MarkRead(ctx context.Context, id, userID uuid.UUID) (*Notification, error) {
	n, err := scanNotification(r.db.QueryRow(ctx, `
		UPDATE notifications
		SET is_read = TRUE, read_at = COALESCE(read_at, NOW())
		WHERE id = $1 AND user_id = $2
		RETURNING `+notificationColumns,
		id, userID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, common.NewNotFoundError("notification not found", err)
		}
		return nil, fmt.Errorf("failed to mark notification read: %w", err)
	}
	return n, nil
}

// MarkAllRead flags every unread notification of the user and reports how
// many were flipped.
func (r *Repository) MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE notifications
		SET is_read = TRUE, read_at = NOW()
		WHERE user_id = $1 AND is_read = FALSE`,
		userID,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to mark notifications read: %w", err)
	}
	return tag.RowsAffected(), nil
}
