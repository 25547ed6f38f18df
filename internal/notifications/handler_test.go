package notifications

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

func TestHandlerListFeed(t *testing.T) {
	svc, repo := newTestService()
	handler := NewHandler(svc)
	userID := uuid.New()

	repo.On("ListByUser", mock.Anything, userID, 20, 0).Return([]*Notification{
		{ID: uuid.New(), UserID: userID, Type: TypeStatusUpdate, Title: "On the way", CreatedAt: time.Now().UTC()},
	}, nil)
	repo.On("UnreadCount", mock.Anything, userID).Return(1, nil)

	c, w := setupTestContext("GET", "/api/v1/notifications")
	setUserContext(c, userID, models.RoleSender)

	handler.List(c)

	assert.Equal(t, http.StatusOK, w.Code)
	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Len(t, response["notifications"], 1)
	assert.Equal(t, float64(1), response["unread_count"])
}

func TestHandlerListRequiresAuth(t *testing.T) {
	svc, _ := newTestService()
	handler := NewHandler(svc)

	c, w := setupTestContext("GET", "/api/v1/notifications")

	handler.List(c)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestHandlerListClampsLimit(t *testing.T) {
	svc, repo := newTestService()
	handler := NewHandler(svc)
	userID := uuid.New()

	repo.On("ListByUser", mock.Anything, userID, 20, 0).Return([]*Notification{}, nil)
	repo.On("UnreadCount", mock.Anything, userID).Return(0, nil)

	c, w := setupTestContext("GET", "/api/v1/notifications?limit=5000")
	setUserContext(c, userID, models.RoleSender)

	handler.List(c)

	assert.Equal(t, http.StatusOK, w.Code)
	repo.AssertExpectations(t)
}

func TestHandlerMarkRead(t *testing.T) {
	svc, repo := newTestService()
	handler := NewHandler(svc)
	userID, notificationID := uuid.New(), uuid.New()
	readAt := time.Now().UTC()

	repo.On("MarkRead", mock.Anything, notificationID, userID).Return(&Notification{
		ID:     notificationID,
		UserID: userID,
		Type:   TypeMessage,
		Title:  "New message",
		IsRead: true,
		ReadAt: &readAt,
	}, nil)

	c, w := setupTestContext("PUT", "/api/v1/notifications/"+notificationID.String()+"/read")
	c.Params = gin.Params{{Key: "id", Value: notificationID.String()}}
	setUserContext(c, userID, models.RoleSender)

	handler.MarkRead(c)

	assert.Equal(t, http.StatusOK, w.Code)
	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	n := response["notification"].(map[string]interface{})
	assert.Equal(t, true, n["is_read"])
}

func TestHandlerMarkReadRejectsBadID(t *testing.T) {
	svc, _ := newTestService()
	handler := NewHandler(svc)

	c, w := setupTestContext("PUT", "/api/v1/notifications/not-a-uuid/read")
	c.Params = gin.Params{{Key: "id", Value: "not-a-uuid"}}
	setUserContext(c, uuid.New(), models.RoleSender)

	handler.MarkRead(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandlerMarkAllRead(t *testing.T) {
	svc, repo := newTestService()
	handler := NewHandler(svc)
	userID := uuid.New()

	repo.On("MarkAllRead", mock.Anything, userID).Return(int64(3), nil)

	c, w := setupTestContext("PUT", "/api/v1/notifications/read-all")
	setUserContext(c, userID, models.RoleSender)

	handler.MarkAllRead(c)

	assert.Equal(t, http.StatusOK, w.Code)
	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, float64(3), response["marked_read"])
}
