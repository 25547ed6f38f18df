package models

import (
	"time"

	"github.com/google/uuid"
)

// UserRole represents user role type
type UserRole string

const (
	RoleSender  UserRole = "sender"
	RoleCourier UserRole = "courier"
	RoleAdmin   UserRole = "admin"
)

// User represents an account in the system (both senders and couriers)
type User struct {
	ID           uuid.UUID  `json:"id" db:"id"`
	Email        string     `json:"email" db:"email"`
	PhoneNumber  string     `json:"phone_number" db:"phone_number"`
	PasswordHash string     `json:"-" db:"password_hash"`
	FirstName    string     `json:"first_name" db:"first_name"`
	LastName     string     `json:"last_name" db:"last_name"`
	Role         UserRole   `json:"role" db:"role"`
	IsActive     bool       `json:"is_active" db:"is_active"`
	IsVerified   bool       `json:"is_verified" db:"is_verified"`
	ProfileImage *string    `json:"profile_image,omitempty" db:"profile_image"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at" db:"updated_at"`
	DeletedAt    *time.Time `json:"deleted_at,omitempty" db:"deleted_at"`
}

// Contact is the embeddable projection of a user shown to the other party of
// a delivery (courier sees sender, sender sees courier).
type Contact struct {
	ID           uuid.UUID `json:"id"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	PhoneNumber  string    `json:"phone_number"`
	ProfileImage *string   `json:"profile_image,omitempty"`
}

// ContactFromUser trims a full user record down to its shareable fields.
func ContactFromUser(u *User) *Contact {
	if u == nil {
		return nil
	}
	return &Contact{
		ID:           u.ID,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		PhoneNumber:  u.PhoneNumber,
		ProfileImage: u.ProfileImage,
	}
}
