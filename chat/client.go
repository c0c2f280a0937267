package chat

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	ws "github.com/coder/websocket"
)

const (
	sendBufferSize = 16
	pingInterval   = 30 * time.Second
	maxBodyLen     = 500
)

// Client represents a single WebSocket connection in the room.
type Client struct {
	hub    *Hub
	conn   *ws.Conn
	send   chan []byte
	sender string
}

// NewClient creates a Client tied to the given hub and connection. The
// sender name comes from the authenticated account, never from the wire.
func NewClient(hub *Hub, conn *ws.Conn, sender string) *Client {
	return &Client{
		hub:    hub,
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
		sender: sender,
	}
}

// Run registers the client, starts the write pump, and runs the read pump.
// It blocks until the connection is closed, then unregisters.
func (c *Client) Run(ctx context.Context) {
	c.hub.Register(c)
	defer c.hub.Unregister(c)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go c.writePump(ctx)
	c.readPump(ctx)
}

// readPump reads incoming chat lines and rebroadcasts them to the room.
// It returns on error (connection close), which triggers cleanup.
func (c *Client) readPump(ctx context.Context) {
	for {
		_, data, err := c.conn.Read(ctx)
		if err != nil {
			return
		}

		var incoming struct {
			Body string `json:"body"`
		}
		if err := json.Unmarshal(data, &incoming); err != nil {
			continue
		}
		body := strings.TrimSpace(incoming.Body)
		if body == "" {
			continue
		}
		if len(body) > maxBodyLen {
			body = body[:maxBodyLen]
		}
		c.hub.Broadcast(NewChatMessage(c.sender, body))
	}
}

// writePump drains the send channel and writes messages to the WebSocket.
// It also sends periodic pings to detect stale connections.
func (c *Client) writePump(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				// Hub closed the channel - connection is done
				return
			}
			if err := c.conn.Write(ctx, ws.MessageText, msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.Ping(ctx); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}
