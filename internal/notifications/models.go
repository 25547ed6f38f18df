package notifications

import (
	"time"

	"github.com/google/uuid"
)

// Notification types surfaced to clients.
const (
	TypeStatusUpdate = "status_update"
	TypeMessage      = "message"
	TypeRating       = "rating"
	TypePayment      = "payment"
	TypePromotional  = "promotional"
	TypeSystem       = "system"
)

// Notification is a persistent per-user feed entry. The channel flags record
// where the notification should also be pushed; actual carrier delivery is
// handled outside this system.
type Notification struct {
	ID         uuid.UUID  `json:"id" db:"id"`
	UserID     uuid.UUID  `json:"user_id" db:"user_id"`
	Type       string     `json:"type" db:"type"`
	Title      string     `json:"title" db:"title"`
	Content    string     `json:"content" db:"content"`
	DeliveryID *uuid.UUID `json:"delivery_id,omitempty" db:"delivery_id"`
	ActionURL  *string    `json:"action_url,omitempty" db:"action_url"`
	SendPush   bool       `json:"send_push" db:"send_push"`
	SendSMS    bool       `json:"send_sms" db:"send_sms"`
	SendEmail  bool       `json:"send_email" db:"send_email"`
	IsRead     bool       `json:"is_read" db:"is_read"`
	ReadAt     *time.Time `json:"read_at,omitempty" db:"read_at"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
}

// NotificationList is one page of a user's feed plus their unread total.
type NotificationList struct {
	Notifications []*Notification `json:"notifications"`
	UnreadCount   int             `json:"unread_count"`
}
