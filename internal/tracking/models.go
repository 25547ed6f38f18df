package tracking

import (
	"time"

	"github.com/google/uuid"
)

// TokenTTL is how long a tracking link stays valid after issuance.
const TokenTTL = 7 * 24 * time.Hour

// TrackingLink binds an opaque token to a delivery. Two are issued at
// creation: one for the recipient and one for the sender to share.
type TrackingLink struct {
	ID             uuid.UUID  `json:"id" db:"id"`
	DeliveryID     uuid.UUID  `json:"delivery_id" db:"delivery_id"`
	Token          string     `json:"token" db:"token"`
	IsRecipient    bool       `json:"is_recipient" db:"is_recipient"`
	ExpiresAt      time.Time  `json:"expires_at" db:"expires_at"`
	AccessCount    int        `json:"access_count" db:"access_count"`
	LastAccessedAt *time.Time `json:"last_accessed_at,omitempty" db:"last_accessed_at"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
}

// Expired reports whether the link is past its expiry.
func (t *TrackingLink) Expired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}
