package issues

import (
	"time"

	"github.com/google/uuid"
)

// Issue types a party can report.
const (
	IssueDamaged = "damaged"
	IssueLate    = "late"
	IssueLost    = "lost"
	IssueCourier = "courier"
	IssueSender  = "sender"
	IssuePayment = "payment"
	IssueOther   = "other"
)

// Issue lifecycle statuses. Reports open as "open"; support moves them
// through "investigating" to "resolved" outside this API.
const (
	StatusOpen          = "open"
	StatusInvestigating = "investigating"
	StatusResolved      = "resolved"
)

// DeliveryIssue is a problem report one party filed against a delivery.
type DeliveryIssue struct {
	ID             uuid.UUID  `json:"id" db:"id"`
	DeliveryID     uuid.UUID  `json:"delivery_id" db:"delivery_id"`
	ReporterID     uuid.UUID  `json:"reporter_id" db:"reporter_id"`
	ReporterRole   string     `json:"reporter_role" db:"reporter_role"`
	IssueNumber    string     `json:"issue_number" db:"issue_number"`
	IssueType      string     `json:"issue_type" db:"issue_type"`
	Description    string     `json:"description" db:"description"`
	Status         string     `json:"status" db:"status"`
	ResolutionNote *string    `json:"resolution_note,omitempty" db:"resolution_note"`
	ResolvedAt     *time.Time `json:"resolved_at,omitempty" db:"resolved_at"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at" db:"updated_at"`
}

// issueParties is the slice of a deliveries row needed to authorize a report.
type issueParties struct {
	SenderID  uuid.UUID
	CourierID *uuid.UUID
}
