package messages

import (
	"time"

	"github.com/google/uuid"
)

// Sender types stored on each message. SenderTypeRecipient is the sentinel
// for messages written through a recipient tracking link; those rows carry a
// NULL sender_id.
const (
	SenderTypeSender    = "sender"
	SenderTypeCourier   = "courier"
	SenderTypeRecipient = "recipient"
)

// Message is one entry in a delivery's chat thread. Messages always address
// a registered user: sender and courier write to each other, and
// recipient-link messages route to the courier when one is assigned,
// otherwise to the sender.
type Message struct {
	ID            uuid.UUID  `json:"id" db:"id"`
	DeliveryID    uuid.UUID  `json:"delivery_id" db:"delivery_id"`
	SenderID      *uuid.UUID `json:"sender_id,omitempty" db:"sender_id"`
	SenderType    string     `json:"sender_type" db:"sender_type"`
	RecipientID   uuid.UUID  `json:"recipient_id" db:"recipient_id"`
	Content       string     `json:"content" db:"content"`
	AttachmentURL *string    `json:"attachment_url,omitempty" db:"attachment_url"`
	IsRead        bool       `json:"is_read" db:"is_read"`
	ReadAt        *time.Time `json:"read_at,omitempty" db:"read_at"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
}

// Conversation is the thread for one delivery plus the caller's unread count.
// UnreadCount is zero for tracking-link viewers; link holders are never a
// message's recipient.
type Conversation struct {
	DeliveryID  uuid.UUID  `json:"delivery_id"`
	Messages    []*Message `json:"messages"`
	UnreadCount int        `json:"unread_count"`
}

// deliveryParties is the slice of a delivery the relay needs to route and
// authorize messages.
type deliveryParties struct {
	SenderID  uuid.UUID
	CourierID *uuid.UUID
}
