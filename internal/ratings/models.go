package ratings

import (
	"time"

	"github.com/google/uuid"
)

// Rater roles stored on a rating row.
const (
	RaterSender  = "sender"
	RaterCourier = "courier"
)

// DeliveryRating is one party's review of the other after a delivery. Sender
// reviews carry the detailed axes (timeliness, communication, handling);
// courier reviews of senders are overall-only.
type DeliveryRating struct {
	ID            uuid.UUID `json:"id" db:"id"`
	DeliveryID    uuid.UUID `json:"delivery_id" db:"delivery_id"`
	RaterID       uuid.UUID `json:"rater_id" db:"rater_id"`
	RateeID       uuid.UUID `json:"ratee_id" db:"ratee_id"`
	RaterRole     string    `json:"rater_role" db:"rater_role"`
	Rating        int       `json:"rating" db:"rating"`
	Timeliness    *int      `json:"timeliness,omitempty" db:"timeliness"`
	Communication *int      `json:"communication,omitempty" db:"communication"`
	Handling      *int      `json:"handling,omitempty" db:"handling"`
	Comment       *string   `json:"comment,omitempty" db:"comment"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

// ratedDelivery is the slice of a deliveries row that rating decisions need.
type ratedDelivery struct {
	SenderID  uuid.UUID
	CourierID *uuid.UUID
	Status    string
}
