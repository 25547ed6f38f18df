package payments

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func setupTestContext(method, path string, body interface{}) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	var req *http.Request
	if body != nil {
		bodyBytes, _ := json.Marshal(body)
		req = httptest.NewRequest(method, path, bytes.NewReader(bodyBytes))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	c.Request = req

	return c, w
}

func setUserContext(c *gin.Context, userID uuid.UUID) {
	c.Set("user_id", userID)
	c.Set("user_email", "sender@example.com")
	c.Set("user_role", "sender")
}

func parseResponse(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	return response
}

func TestHandlerAddTip(t *testing.T) {
	repo := new(mockRepository)
	handler := NewHandler(NewService(repo, new(mockGateway)))

	deliveryID := uuid.New()
	senderID := uuid.New()
	courierID := uuid.New()

	payment := authorizedPayment(deliveryID)
	payment.Status = StatusCaptured
	payment.SenderID = senderID
	payment.Tip = 0

	repo.On("GetDeliveryParties", mock.Anything, deliveryID).
		Return(&deliveryParties{SenderID: senderID, CourierID: &courierID, Status: "delivered"}, nil)
	repo.On("GetByDeliveryID", mock.Anything, deliveryID).Return(payment, nil)
	repo.On("AddTip", mock.Anything, payment.ID, deliveryID, 0.0, 5.0, courierID).Return(nil)

	c, w := setupTestContext("POST", "/api/v1/deliveries/"+deliveryID.String()+"/tip", map[string]interface{}{
		"amount": 5.0,
	})
	setUserContext(c, senderID)
	c.Params = gin.Params{{Key: "id", Value: deliveryID.String()}}

	handler.AddTip(c)

	assert.Equal(t, http.StatusOK, w.Code)
	response := parseResponse(t, w)
	assert.True(t, response["success"].(bool))

	body := response["payment"].(map[string]interface{})
	assert.Equal(t, 5.0, body["tip"].(float64))
	repo.AssertExpectations(t)
}

func TestHandlerAddTipRejectsNonPositiveAmount(t *testing.T) {
	handler := NewHandler(NewService(new(mockRepository), new(mockGateway)))

	deliveryID := uuid.New()
	c, w := setupTestContext("POST", "/api/v1/deliveries/"+deliveryID.String()+"/tip", map[string]interface{}{
		"amount": -1.0,
	})
	setUserContext(c, uuid.New())
	c.Params = gin.Params{{Key: "id", Value: deliveryID.String()}}

	handler.AddTip(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandlerAddTipInvalidDeliveryID(t *testing.T) {
	handler := NewHandler(NewService(new(mockRepository), new(mockGateway)))

	c, w := setupTestContext("POST", "/api/v1/deliveries/invalid-uuid/tip", map[string]interface{}{
		"amount": 5.0,
	})
	setUserContext(c, uuid.New())
	c.Params = gin.Params{{Key: "id", Value: "invalid-uuid"}}

	handler.AddTip(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandlerAddTipRequiresAuth(t *testing.T) {
	handler := NewHandler(NewService(new(mockRepository), new(mockGateway)))

	deliveryID := uuid.New()
	c, w := setupTestContext("POST", "/api/v1/deliveries/"+deliveryID.String()+"/tip", map[string]interface{}{
		"amount": 5.0,
	})
	c.Params = gin.Params{{Key: "id", Value: deliveryID.String()}}

	handler.AddTip(c)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestHandlerGetReceipt(t *testing.T) {
	repo := new(mockRepository)
	handler := NewHandler(NewService(repo, new(mockGateway)))

	deliveryID := uuid.New()
	senderID := uuid.New()
	courierID := uuid.New()

	repo.On("GetDeliveryParties", mock.Anything, deliveryID).
		Return(&deliveryParties{SenderID: senderID, CourierID: &courierID, Status: "delivered"}, nil)
	repo.On("GetReceipt", mock.Anything, deliveryID).
		Return(&Receipt{
			DeliveryID:  deliveryID,
			Status:      StatusCaptured,
			BaseFee:     9.99,
			DistanceFee: 2.03,
			Tax:         1.05,
			Tip:         2.00,
			Total:       15.07,
		}, nil)

	c, w := setupTestContext("GET", "/api/v1/deliveries/"+deliveryID.String()+"/receipt", nil)
	setUserContext(c, senderID)
	c.Params = gin.Params{{Key: "id", Value: deliveryID.String()}}

	handler.GetReceipt(c)

	assert.Equal(t, http.StatusOK, w.Code)
	response := parseResponse(t, w)
	assert.True(t, response["success"].(bool))

	receipt := response["receipt"].(map[string]interface{})
	assert.Equal(t, 15.07, receipt["total"].(float64))
	assert.Equal(t, 9.99, receipt["base_fee"].(float64))
}

func TestHandlerGetReceiptForbiddenForStranger(t *testing.T) {
	repo := new(mockRepository)
	handler := NewHandler(NewService(repo, new(mockGateway)))

	deliveryID := uuid.New()
	courierID := uuid.New()

	repo.On("GetDeliveryParties", mock.Anything, deliveryID).
		Return(&deliveryParties{SenderID: uuid.New(), CourierID: &courierID, Status: "delivered"}, nil)

	c, w := setupTestContext("GET", "/api/v1/deliveries/"+deliveryID.String()+"/receipt", nil)
	setUserContext(c, uuid.New())
	c.Params = gin.Params{{Key: "id", Value: deliveryID.String()}}

	handler.GetReceipt(c)

	assert.Equal(t, http.StatusForbidden, w.Code)
}
