package dispatch

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/richxcame/courier-dispatch/pkg/models"
)

func setupTestContext(method, path string) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(method, path, nil)
	return c, w
}

func setUserContext(c *gin.Context, userID uuid.UUID, role models.UserRole) {
	c.Set("user_id", userID)
	c.Set("user_email", "user@example.com")
	c.Set("user_role", role)
}

func TestHandlerListOffers(t *testing.T) {
	svc, m := newTestService()
	handler := NewHandler(svc)
	courierID := uuid.New()

	m.offers.On("ListForCourier", mock.Anything, courierID).Return([]*Offer{
		{
			OfferID:           uuid.New(),
			DeliveryID:        uuid.New(),
			CourierID:         courierID,
			PickupAddress:     "123 Market St",
			EstimatedEarnings: 10.46,
			ExpiresAt:         time.Now().Add(10 * time.Minute),
		},
	}, nil)

	c, w := setupTestContext("GET", "/api/v1/courier/delivery-requests")
	setUserContext(c, courierID, models.RoleCourier)

	handler.ListOffers(c)

	assert.Equal(t, http.StatusOK, w.Code)
	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	offers := response["offers"].([]interface{})
	require.Len(t, offers, 1)
	offer := offers[0].(map[string]interface{})
	assert.Equal(t, "123 Market St", offer["pickup_address"])
	assert.Equal(t, 10.46, offer["estimated_earnings"])
}

func TestHandlerListOffersEmptyIsArray(t *testing.T) {
	svc, m := newTestService()
	handler := NewHandler(svc)
	courierID := uuid.New()

	m.offers.On("ListForCourier", mock.Anything, courierID).Return(nil, nil)

	c, w := setupTestContext("GET", "/api/v1/courier/delivery-requests")
	setUserContext(c, courierID, models.RoleCourier)

	handler.ListOffers(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"offers":[]`)
}

func TestHandlerListOffersRequiresAuth(t *testing.T) {
	svc, _ := newTestService()
	handler := NewHandler(svc)

	c, w := setupTestContext("GET", "/api/v1/courier/delivery-requests")

	handler.ListOffers(c)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
