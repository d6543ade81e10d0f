package websocket

import (
	"context"
	"encoding/json"
	"time"

	"muhabbet/internal/logger"
	"muhabbet/internal/models"
	"muhabbet/internal/presence"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Event is the JSON envelope pushed to clients.
type Event struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

// MessageToSend defines the structure for sending a payload to a specific user.
type MessageToSend struct {
	TargetUserID uuid.UUID
	Payload      []byte
}

// Hub maintains the set of active clients and fans events out to them.
// Delivery is fire-and-forget: a slow or absent recipient never blocks or
// fails the operation that produced the event.
type Hub struct {
	// Registered clients. Maps user ID to a set of active client connections.
	clients map[uuid.UUID]map[*Client]bool

	// Channel for sending payloads to specific users.
	sendDirect chan *MessageToSend

	// Register requests from the clients.
	Register chan *Client

	// Unregister requests from clients.
	Unregister chan *Client

	// Optional cross-instance presence bookkeeping. Nil disables it.
	presence *presence.Store
}

func NewHub(presenceStore *presence.Store) *Hub {
	return &Hub{
		sendDirect: make(chan *MessageToSend, 256),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		clients:    make(map[uuid.UUID]map[*Client]bool),
		presence:   presenceStore,
	}
}

// Run starts the hub's processing loop. Only this goroutine touches the
// clients map, so no lock is needed.
func (h *Hub) Run() {
	logger.Info("WebSocket hub started")
	for {
		select {
		case client := <-h.Register:
			if _, ok := h.clients[client.UserID]; !ok {
				h.clients[client.UserID] = make(map[*Client]bool)
			}
			h.clients[client.UserID][client] = true
			h.markOnline(client.UserID, true)
			logger.Infof("WebSocket client registered for user %s, connections=%d", client.UserID, len(h.clients[client.UserID]))

		case client := <-h.Unregister:
			if userClients, ok := h.clients[client.UserID]; ok {
				if _, clientOk := userClients[client]; clientOk {
					delete(userClients, client)
					if len(userClients) == 0 {
						delete(h.clients, client.UserID)
						h.markOnline(client.UserID, false)
					}
					logger.Infof("WebSocket client unregistered for user %s, connections=%d", client.UserID, len(userClients))
				}
			}

		case directMessage := <-h.sendDirect:
			userClients, ok := h.clients[directMessage.TargetUserID]
			if !ok {
				// Offline recipients are simply skipped; they catch up
				// through history and delivery statuses.
				continue
			}
			for client := range userClients {
				select {
				case client.Send <- directMessage.Payload:
				default:
					logger.Warnf("Send buffer full for a client of user %s, event dropped", directMessage.TargetUserID)
				}
			}
		}
	}
}

// BroadcastMessage pushes a freshly sent message to its recipients.
func (h *Hub) BroadcastMessage(message *models.Message, recipientIDs []uuid.UUID) {
	h.sendEvent("message.new", message, recipientIDs)
}

// BroadcastToUsers pushes an arbitrary named event to the listed users.
func (h *Hub) BroadcastToUsers(userIDs []uuid.UUID, eventType string, payload interface{}) {
	h.sendEvent(eventType, payload, userIDs)
}

// BroadcastStatusUpdate pushes one recipient's delivery-status change to the
// message sender and the viewer itself.
func (h *Hub) BroadcastStatusUpdate(messageID, conversationID, viewerID, senderID uuid.UUID, status models.DeliveryStatus) {
	payload := map[string]interface{}{
		"messageId":      messageID,
		"conversationId": conversationID,
		"userId":         viewerID,
		"status":         status,
	}
	h.sendEvent("message.status", payload, []uuid.UUID{senderID, viewerID})
}

func (h *Hub) sendEvent(eventType string, payload interface{}, recipients []uuid.UUID) {
	data, err := json.Marshal(Event{Type: eventType, Payload: payload})
	if err != nil {
		logger.Error("Failed to marshal event", zap.String("type", eventType), zap.Error(err))
		return
	}
	for _, userID := range recipients {
		message := &MessageToSend{TargetUserID: userID, Payload: data}
		select {
		case h.sendDirect <- message:
		case <-time.After(1 * time.Second):
			logger.Warnf("Timeout queuing %s event for user %s", eventType, userID)
		}
	}
}

func (h *Hub) markOnline(userID uuid.UUID, online bool) {
	if h.presence == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	var err error
	if online {
		err = h.presence.SetOnline(ctx, userID.String())
	} else {
		err = h.presence.SetOffline(ctx, userID.String())
	}
	if err != nil {
		// Presence is advisory; delivery never depends on it.
		logger.Warnf("Failed to update presence for user %s: %v", userID, err)
	}
}
