package models

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserJSONHidesPasswordHash(t *testing.T) {
	user := User{
		ID:           uuid.New(),
		Email:        "sender@example.com",
		PasswordHash: "bcrypt-digest",
		FirstName:    "Avery",
		LastName:     "Kim",
		Role:         RoleSender,
		IsActive:     true,
		CreatedAt:    time.Now().UTC(),
		UpdatedAt:    time.Now().UTC(),
	}

	data, err := json.Marshal(user)
	require.NoError(t, err)

	assert.False(t, strings.Contains(string(data), "bcrypt-digest"))
	assert.True(t, strings.Contains(string(data), "sender@example.com"))
}

func TestContactFromUser(t *testing.T) {
	t.Run("nil user", func(t *testing.T) {
		assert.Nil(t, ContactFromUser(nil))
	})

	t.Run("trims to shareable fields", func(t *testing.T) {
		image := "https://cdn.example.com/avatar.jpg"
		user := &User{
			ID:           uuid.New(),
			Email:        "courier@example.com",
			PhoneNumber:  "+14155550111",
			PasswordHash: "secret",
			FirstName:    "Jordan",
			LastName:     "Lee",
			Role:         RoleCourier,
			ProfileImage: &image,
		}

		contact := ContactFromUser(user)
		require.NotNil(t, contact)
		assert.Equal(t, user.ID, contact.ID)
		assert.Equal(t, "Jordan", contact.FirstName)
		assert.Equal(t, "+14155550111", contact.PhoneNumber)

		data, err := json.Marshal(contact)
		require.NoError(t, err)
		assert.False(t, strings.Contains(string(data), "courier@example.com"))
		assert.False(t, strings.Contains(string(data), "secret"))
	})
}
