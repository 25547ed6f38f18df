package websocket

import (
	"sync"

	"github.com/richxcame/courier-dispatch/pkg/logger"
	"go.uber.org/zap"
)

// MessageHandler is a function that handles incoming messages
type MessageHandler func(*Client, *Message)

// Hub maintains the set of active clients and broadcasts messages
type Hub struct {
	// Registered clients by user ID
	clients map[string]*Client

	// Clients grouped by delivery ID
	deliveries map[string]map[string]*Client

	// Register requests from clients
	Register chan *Client

	// Unregister requests from clients
	Unregister chan *Client

	// Broadcast messages to specific users
	Broadcast chan *BroadcastMessage

	// Message handlers by message type
	handlers map[string]MessageHandler

	// Mutex for thread-safe operations
	mu sync.RWMutex
}

// BroadcastMessage represents a message to be broadcast
type BroadcastMessage struct {
	Target   string   // "user", "delivery", "all"
	TargetID string   // User ID or Delivery ID
	Message  *Message // Message to send
}

// NewHub creates a new Hub instance
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		deliveries: make(map[string]map[string]*Client),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		Broadcast:  make(chan *BroadcastMessage, 256),
		handlers:   make(map[string]MessageHandler),
	}
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	logger.Info("WebSocket Hub started")
	for {
		select {
		case client := <-h.Register:
			h.registerClient(client)

		case client := <-h.Unregister:
			h.unregisterClient(client)

		case broadcast := <-h.Broadcast:
			h.broadcastMessage(broadcast)
		}
	}
}

// registerClient adds a client to the hub
func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	// Replace an existing session with the same ID
	if existing, ok := h.clients[client.ID]; ok {
		h.removeFromDelivery(existing)
		existing.closeSend()
	}

	h.clients[client.ID] = client

	// Clients that arrive already bound to a delivery (tracking-token
	// viewers) join their room atomically with registration.
	if deliveryID := client.GetDelivery(); deliveryID != "" {
		h.joinDelivery(client, deliveryID)
	}

	logger.Debug("client registered", zap.String("client_id", client.ID), zap.String("role", client.Role))
}

// unregisterClient removes a client from the hub
func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	// A reconnect may have replaced this ID; only drop the exact session,
	// otherwise the new connection would be torn down with the old one.
	if current, ok := h.clients[client.ID]; !ok || current != client {
		return
	}

	delete(h.clients, client.ID)
	h.removeFromDelivery(client)
	client.closeSend()
	logger.Debug("client unregistered", zap.String("client_id", client.ID))
}

// joinDelivery adds the client to a delivery room. Caller must hold h.mu.
// Clients watch one delivery at a time, so joining leaves the previous room;
// otherwise the stale entry outlives the client and a later room fan-out
// would send on its closed channel.
func (h *Hub) joinDelivery(client *Client, deliveryID string) {
	if current := client.GetDelivery(); current != "" && current != deliveryID {
		h.removeFromDelivery(client)
	}
	if _, ok := h.deliveries[deliveryID]; !ok {
		h.deliveries[deliveryID] = make(map[string]*Client)
	}
	h.deliveries[deliveryID][client.ID] = client
	client.SetDelivery(deliveryID)
}

// removeFromDelivery drops the client from its current room, deleting the
// room when it empties. Caller must hold h.mu.
func (h *Hub) removeFromDelivery(client *Client) {
	deliveryID := client.GetDelivery()
	if deliveryID == "" {
		return
	}
	if room, ok := h.deliveries[deliveryID]; ok {
		delete(room, client.ID)
		if len(room) == 0 {
			delete(h.deliveries, deliveryID)
		}
	}
}

// broadcastMessage sends a message to target clients
func (h *Hub) broadcastMessage(broadcast *BroadcastMessage) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	switch broadcast.Target {
	case "user":
		// Send to specific user
		if client, ok := h.clients[broadcast.TargetID]; ok {
			client.SendMessage(broadcast.Message)
		}

	case "delivery":
		// Send to all clients watching a delivery
		if room, ok := h.deliveries[broadcast.TargetID]; ok {
			for _, client := range room {
				client.SendMessage(broadcast.Message)
			}
		}

	case "all":
		// Send to all connected clients
		for _, client := range h.clients {
			client.SendMessage(broadcast.Message)
		}
	}
}

// HandleMessage routes incoming messages to appropriate handlers
func (h *Hub) HandleMessage(client *Client, msg *Message) {
	h.mu.RLock()
	handler, exists := h.handlers[msg.Type]
	h.mu.RUnlock()

	if exists {
		handler(client, msg)
	} else {
		logger.Warn("no handler for message type", zap.String("type", msg.Type))
	}
}

// RegisterHandler registers a message handler for a specific type
func (h *Hub) RegisterHandler(msgType string, handler MessageHandler) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handlers[msgType] = handler
	logger.Debug("registered message handler", zap.String("type", msgType))
}

// AddClientToDelivery adds a client to a delivery room
func (h *Hub) AddClientToDelivery(clientID, deliveryID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	client, ok := h.clients[clientID]
	if !ok {
		return
	}
	h.joinDelivery(client, deliveryID)

	logger.Debug("client joined delivery room", zap.String("client_id", clientID), zap.String("delivery_id", deliveryID))
}

// RemoveClientFromDelivery removes a client from a delivery room
func (h *Hub) RemoveClientFromDelivery(clientID, deliveryID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if room, ok := h.deliveries[deliveryID]; ok {
		delete(room, clientID)
		if len(room) == 0 {
			delete(h.deliveries, deliveryID)
		}
	}

	if client, ok := h.clients[clientID]; ok {
		client.SetDelivery("")
	}

	logger.Debug("client left delivery room", zap.String("client_id", clientID), zap.String("delivery_id", deliveryID))
}

// SendToUser sends a message to a specific user
func (h *Hub) SendToUser(userID string, msg *Message) {
	h.Broadcast <- &BroadcastMessage{
		Target:   "user",
		TargetID: userID,
		Message:  msg,
	}
}

// SendToDelivery sends a message to all clients watching a delivery
func (h *Hub) SendToDelivery(deliveryID string, msg *Message) {
	h.Broadcast <- &BroadcastMessage{
		Target:   "delivery",
		TargetID: deliveryID,
		Message:  msg,
	}
}

// SendToAll broadcasts a message to all connected clients
func (h *Hub) SendToAll(msg *Message) {
	h.Broadcast <- &BroadcastMessage{
		Target:  "all",
		Message: msg,
	}
}

// GetClient returns a client by ID
func (h *Hub) GetClient(clientID string) (*Client, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	client, ok := h.clients[clientID]
	return client, ok
}

// GetClientsInDelivery returns all clients watching a delivery
func (h *Hub) GetClientsInDelivery(deliveryID string) []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()

	clients := make([]*Client, 0)
	if room, ok := h.deliveries[deliveryID]; ok {
		for _, client := range room {
			clients = append(clients, client)
		}
	}
	return clients
}

// GetClientCount returns the number of connected clients
func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// GetDeliveryCount returns the number of delivery rooms with watchers
func (h *Hub) GetDeliveryCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.deliveries)
}
