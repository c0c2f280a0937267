/*
Package chat provides the live chat room over WebSocket.

PURPOSE:
  A single hub fans messages out to every connected client. Two kinds of
  traffic share the room: chat messages typed by users, and ledger events
  (points awarded, items redeemed) the API broadcasts so the room shows
  live activity.

BACKPRESSURE:
  Each client has a bounded send buffer. A slow client never blocks the
  broadcast path; messages to a full buffer are dropped for that client.

SEE ALSO:
  - client.go:  per-connection read/write pumps
  - handler.go: HTTP upgrade endpoint
*/
package chat

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"
)

// =============================================================================
// MESSAGES
// =============================================================================

const (
	// TypeChat is a user-typed chat line.
	TypeChat = "chat"
	// TypePoints is a ledger award event.
	TypePoints = "points_awarded"
	// TypeRedemption is a marketplace redemption event.
	TypeRedemption = "item_redeemed"
)

// Message is the wire format for everything broadcast in the room.
type Message struct {
	Type   string         `json:"type"`
	Sender string         `json:"sender,omitempty"`
	Body   string         `json:"body,omitempty"`
	Extra  map[string]any `json:"extra,omitempty"`
	SentAt time.Time      `json:"sent_at"`
}

// NewChatMessage builds a user chat line.
func NewChatMessage(sender, body string) Message {
	return Message{Type: TypeChat, Sender: sender, Body: body, SentAt: time.Now().UTC()}
}

// NewEventMessage builds a system event (award, redemption).
func NewEventMessage(typ string, extra map[string]any) Message {
	return Message{Type: typ, Extra: extra, SentAt: time.Now().UTC()}
}

// =============================================================================
// HUB
// =============================================================================

// Hub maintains the set of active clients and broadcasts messages.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	logger  *slog.Logger
}

// NewHub creates a new Hub.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		clients: make(map[*Client]struct{}),
		logger:  logger,
	}
}

// Register adds a client to the hub.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

// Unregister removes a client from the hub and closes its send channel.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

// Count returns the number of connected clients.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast sends a message to all connected clients.
func (h *Hub) Broadcast(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("marshal broadcast", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			// Client buffer full - drop message to avoid blocking
		}
	}
}
