package realtime

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/richxcame/courier-dispatch/pkg/common"
	"github.com/richxcame/courier-dispatch/pkg/jwtkeys"
	"github.com/richxcame/courier-dispatch/pkg/logger"
	ws "github.com/richxcame/courier-dispatch/pkg/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// In production, implement proper origin checking
		return true
	},
}

// Handler handles HTTP requests for the realtime gateway
type Handler struct {
	service *Service
	jwtKeys jwtkeys.KeyProvider
}

// NewHandler creates a new handler
func NewHandler(service *Service, jwtKeys jwtkeys.KeyProvider) *Handler {
	return &Handler{
		service: service,
		jwtKeys: jwtKeys,
	}
}

// HandleWebSocket authenticates the caller and upgrades the connection.
// Senders, couriers and admins present a bearer token; package recipients
// present a tracking token and are admitted to that delivery's room only.
func (h *Handler) HandleWebSocket(c *gin.Context) {
	if trackingToken := c.Query("tracking_token"); trackingToken != "" {
		h.handleViewerConnect(c, trackingToken)
		return
	}

	tokenString := c.Query("token")
	if tokenString == "" {
		authHeader := c.GetHeader("Authorization")
		if parts := strings.Split(authHeader, " "); len(parts) == 2 && parts[0] == "Bearer" {
			tokenString = parts[1]
		}
	}
	if tokenString == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authorization required"})
		return
	}

	claims, err := ws.ParseClaims(tokenString, h.jwtKeys)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Error("failed to upgrade websocket", zap.Error(err))
		return
	}

	role := ws.HubRole(claims.Role)
	client := ws.NewClient(claims.UserID.String(), conn, h.service.GetHub(), role, logger.Get())
	h.service.GetHub().Register <- client

	go client.WritePump()
	go client.ReadPump()

	client.SendMessage(&ws.Message{
		Type:      "auth_response",
		UserID:    client.ID,
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"authenticated": true,
			"role":          role,
		},
	})
}

// handleViewerConnect admits a tracking-token holder as a read-mostly viewer
// of the bound delivery.
func (h *Handler) handleViewerConnect(c *gin.Context, token string) {
	deliveryID, err := h.service.AuthorizeTrackingToken(c.Request.Context(), token)
	if err != nil {
		common.HandleServiceError(c, err, "failed to validate tracking token")
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Error("failed to upgrade websocket", zap.Error(err))
		return
	}

	// Viewers get a synthetic identity so concurrent sessions on the same
	// link never evict each other, and join their room at registration.
	client := ws.NewClient("viewer:"+uuid.New().String(), conn, h.service.GetHub(), "viewer", logger.Get())
	client.SetDelivery(deliveryID)
	h.service.GetHub().Register <- client

	go client.WritePump()
	go client.ReadPump()

	client.SendMessage(&ws.Message{
		Type:       "auth_response",
		DeliveryID: deliveryID,
		Timestamp:  time.Now(),
		Data: map[string]interface{}{
			"authenticated": true,
			"role":          "viewer",
			"delivery_id":   deliveryID,
		},
	})
}

// GetStats returns connection statistics. Mounted behind the internal API key.
func (h *Handler) GetStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.service.GetStats())
}

// HealthCheck returns gateway health and connection counts
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "realtime",
		"stats":   h.service.GetStats(),
	})
}
