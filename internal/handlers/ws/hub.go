package ws

import (
	"log"
	"sync"
	"time"

	"github.com/campuslink/comms-backend/internal/bus"
	"github.com/gofiber/websocket/v2"
)

// PresenceRefresher is the slice of the presence service the hub needs:
// keep connected sockets fresh and record their graceful teardown.
type PresenceRefresher interface {
	Heartbeat(userID uint) error
	MarkOffline(userID uint) error
}

// ClientConnection wraps a WebSocket connection with metadata
type ClientConnection struct {
	Conn       *websocket.Conn
	UserID     uint
	LastPong   time.Time
	PingTicker *time.Ticker
	CloseChan  chan struct{}
	Sub        *bus.Subscription

	writeMu sync.Mutex
}

// WriteJSON serializes writes; the ping routine, the bridge routine, and
// the read loop's error path all share this connection.
func (c *ClientConnection) WriteJSON(v interface{}) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.Conn.WriteJSON(v)
}

func (c *ClientConnection) writeControl(messageType int, deadline time.Time) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.Conn.WriteControl(messageType, []byte{}, deadline)
}

// Hub manages all active WebSocket connections and bridges change
// notification events to them. One connection per user; a reconnect
// replaces the previous registration.
type Hub struct {
	clients      map[uint]*ClientConnection
	clientsMux   sync.RWMutex
	bus          *bus.Bus
	presence     PresenceRefresher
	pingInterval time.Duration
	pongTimeout  time.Duration
}

// NewHub creates a new Hub instance
func NewHub(b *bus.Bus, presence PresenceRefresher) *Hub {
	hub := &Hub{
		clients:      make(map[uint]*ClientConnection),
		bus:          b,
		presence:     presence,
		pingInterval: 30 * time.Second,
		pongTimeout:  90 * time.Second,
	}

	go hub.connectionHealthChecker()

	return hub
}

// RefreshSignal is the wire shape of one server-to-client event. It names
// what changed, never carries the change itself; clients re-fetch the
// authoritative state over HTTP.
type RefreshSignal struct {
	Type  string    `json:"type"`
	Topic string    `json:"topic"`
	Kind  string    `json:"kind"`
	At    time.Time `json:"at"`
}

// Register adds a client connection with health monitoring and a bus
// subscription scoped to the viewer's topics.
func (h *Hub) Register(userID uint, conn *websocket.Conn) *ClientConnection {
	clientConn := &ClientConnection{
		Conn:       conn,
		UserID:     userID,
		LastPong:   time.Now(),
		PingTicker: time.NewTicker(h.pingInterval),
		CloseChan:  make(chan struct{}),
		Sub:        h.bus.Subscribe(bus.ForUser(userID)),
	}

	// Setup pong handler
	conn.SetPongHandler(func(appData string) error {
		h.clientsMux.Lock()
		if client, exists := h.clients[userID]; exists {
			client.LastPong = time.Now()
		}
		h.clientsMux.Unlock()
		return conn.SetReadDeadline(time.Now().Add(h.pongTimeout))
	})

	// Set read deadline for ping/pong
	conn.SetReadDeadline(time.Now().Add(h.pongTimeout))

	h.clientsMux.Lock()
	if prev, exists := h.clients[userID]; exists {
		h.teardownLocked(prev)
	}
	h.clients[userID] = clientConn
	total := len(h.clients)
	h.clientsMux.Unlock()

	go h.pingRoutine(clientConn)
	go h.bridgeRoutine(clientConn)

	log.Printf("User %d connected to hub (total: %d)", userID, total)
	return clientConn
}

// Unregister removes a client connection
func (h *Hub) Unregister(userID uint) {
	h.clientsMux.Lock()
	if client, exists := h.clients[userID]; exists {
		h.teardownLocked(client)
		delete(h.clients, userID)
	}
	count := len(h.clients)
	h.clientsMux.Unlock()
	log.Printf("User %d disconnected from hub (total: %d)", userID, count)
}

func (h *Hub) teardownLocked(client *ClientConnection) {
	if client.PingTicker != nil {
		client.PingTicker.Stop()
	}
	select {
	case <-client.CloseChan:
	default:
		close(client.CloseChan)
	}
	h.bus.Unsubscribe(client.Sub)
}

// IsConnected checks if a user has a live socket
func (h *Hub) IsConnected(userID uint) bool {
	h.clientsMux.RLock()
	defer h.clientsMux.RUnlock()
	_, exists := h.clients[userID]
	return exists
}

// Count returns the number of connected clients
func (h *Hub) Count() int {
	h.clientsMux.RLock()
	defer h.clientsMux.RUnlock()
	return len(h.clients)
}

// bridgeRoutine forwards bus events to the socket as refresh signals until
// the subscription or the connection is torn down.
func (h *Hub) bridgeRoutine(client *ClientConnection) {
	for {
		select {
		case <-client.CloseChan:
			return
		case ev, ok := <-client.Sub.C:
			if !ok {
				return
			}
			signal := RefreshSignal{
				Type:  "refresh",
				Topic: ev.Topic,
				Kind:  ev.Kind,
				At:    ev.At,
			}
			if err := client.WriteJSON(signal); err != nil {
				log.Printf("Error sending refresh to user %d: %v", client.UserID, err)
				h.Unregister(client.UserID)
				return
			}
		}
	}
}

// pingRoutine keeps the connection alive and the user's presence record
// fresh. A live socket is proof of life, so the server refreshes presence
// on the client's behalf each tick; a failed refresh waits for the next
// tick rather than retrying immediately.
func (h *Hub) pingRoutine(client *ClientConnection) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Ping routine recovered from panic for user %d: %v", client.UserID, r)
		}
	}()

	for {
		select {
		case <-client.CloseChan:
			return
		case <-client.PingTicker.C:
			h.clientsMux.RLock()
			_, exists := h.clients[client.UserID]
			h.clientsMux.RUnlock()

			if !exists {
				return
			}

			if err := client.writeControl(websocket.PingMessage, time.Now().Add(10*time.Second)); err != nil {
				log.Printf("Ping failed for user %d: %v", client.UserID, err)
				h.Unregister(client.UserID)
				return
			}

			if h.presence != nil {
				if err := h.presence.Heartbeat(client.UserID); err != nil {
					log.Printf("Presence refresh failed for user %d: %v", client.UserID, err)
				}
			}
		}
	}
}

// connectionHealthChecker monitors connection health and removes dead connections
func (h *Hub) connectionHealthChecker() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		h.clientsMux.RLock()
		deadConnections := make([]uint, 0)
		now := time.Now()

		for userID, client := range h.clients {
			if now.Sub(client.LastPong) > h.pongTimeout {
				deadConnections = append(deadConnections, userID)
			}
		}
		h.clientsMux.RUnlock()

		for _, userID := range deadConnections {
			log.Printf("Removing dead connection for user %d (no pong received)", userID)
			h.Unregister(userID)
		}
	}
}
