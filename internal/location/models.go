package location

import (
	"time"

	"github.com/google/uuid"
)

// Sample is one persisted courier position report.
type Sample struct {
	ID           uuid.UUID  `json:"id" db:"id"`
	UserID       uuid.UUID  `json:"user_id" db:"user_id"`
	DeliveryID   *uuid.UUID `json:"delivery_id,omitempty" db:"delivery_id"`
	Latitude     float64    `json:"latitude" db:"latitude"`
	Longitude    float64    `json:"longitude" db:"longitude"`
	AccuracyM    float64    `json:"accuracy_meters" db:"accuracy_meters"`
	Heading      float64    `json:"heading" db:"heading"`
	SpeedMps     float64    `json:"speed_mps" db:"speed_mps"`
	BatteryLevel *float64   `json:"battery_level,omitempty" db:"battery_level"`
	RecordedAt   time.Time  `json:"recorded_at" db:"recorded_at"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
}

// IngestResult reports what a location sample changed. A discarded sample
// (older than the courier's last accepted one) comes back with Accepted
// false and nothing else set.
type IngestResult struct {
	Accepted              bool       `json:"accepted"`
	DeliveryID            *uuid.UUID `json:"delivery_id,omitempty"`
	DistanceToTargetMiles float64    `json:"distance_to_target_miles,omitempty"`
	EtaMinutes            int        `json:"eta_minutes,omitempty"`
	AutoTransitionedTo    string     `json:"auto_transitioned_to,omitempty"`
}

// Presence is the JSON snapshot kept at the courier's presence key while the
// courier is reporting.
type Presence struct {
	CourierID uuid.UUID `json:"courier_id"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	H3Cell    string    `json:"h3_cell"`
	Heading   float64   `json:"heading"`
	SpeedMps  float64   `json:"speed_mps"`
	UpdatedAt time.Time `json:"updated_at"`
}
