package handlers

import (
	"log"

	"github.com/campuslink/comms-backend/internal/bus"
	"github.com/campuslink/comms-backend/internal/handlers/ws"
	"github.com/campuslink/comms-backend/internal/service"
	"github.com/gofiber/websocket/v2"
)

type WebSocketHandler struct {
	presenceService *service.PresenceService
	hub             *ws.Hub
}

func NewWebSocketHandler(presenceService *service.PresenceService, b *bus.Bus) *WebSocketHandler {
	return &WebSocketHandler{
		presenceService: presenceService,
		hub:             ws.NewHub(b, presenceService),
	}
}

// GetHub returns the hub instance (useful for tests and health reporting)
func (h *WebSocketHandler) GetHub() *ws.Hub {
	return h.hub
}

// HandleWebSocket runs the subscribe stream for one viewer: refresh
// signals flow out through the hub bridge; the read loop only accepts the
// small client-to-server frames (ping, heartbeat). Navigating away tears
// the socket down without error.
func (h *WebSocketHandler) HandleWebSocket(c *websocket.Conn) {
	userID := c.Locals("userID").(uint)

	client := h.hub.Register(userID, c)

	// Connecting is proof of life.
	if err := h.presenceService.Heartbeat(userID); err != nil {
		log.Printf("Failed to set user %d online: %v", userID, err)
	}

	defer func() {
		h.hub.Unregister(userID)
		// Socket teardown is the graceful disconnect path.
		if err := h.presenceService.MarkOffline(userID); err != nil {
			log.Printf("Failed to set user %d offline: %v", userID, err)
		}
	}()

	log.Printf("User %d connected via WebSocket", userID)

	ctx := &ws.MessageContext{
		UserID: userID,
		Client: client,
		Hub:    h.hub,
	}

	for {
		_, messageBytes, err := c.ReadMessage()
		if err != nil {
			log.Printf("Error reading message from user %d: %v", userID, err)
			break
		}

		msg, err := ws.Deserialize(messageBytes)
		if err != nil {
			log.Printf("Error deserializing message from user %d: %v", userID, err)
			ws.SendError(client, "invalid_message", "Invalid message format", err.Error())
			continue
		}

		if err := msg.Process(ctx); err != nil {
			log.Printf("Error processing message %s from user %d: %v", msg.GetType(), userID, err)
			ws.SendError(client, "processing_failed", "Failed to process message", err.Error())
		}
	}

	log.Printf("User %d disconnected from WebSocket", userID)
}
