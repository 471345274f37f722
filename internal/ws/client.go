package ws

import (
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

// Client represents a single WebSocket connection watching one project
// thread. The server only pushes; inbound frames are ignored.
type Client struct {
	conn    *websocket.Conn
	send    chan []byte
	onClose func()
}

// NewClient creates a new WebSocket client. onClose runs once when the
// connection drops (used to detach the thread subscription).
func NewClient(conn *websocket.Conn, onClose func()) *Client {
	return &Client{
		conn:    conn,
		send:    make(chan []byte, 256),
		onClose: onClose,
	}
}

// Push queues a payload for delivery; slow consumers drop frames rather
// than block the feed
func (c *Client) Push(data []byte) {
	select {
	case c.send <- data:
	default:
	}
}

// ReadPump reads frames from the WebSocket (handles pong/close)
func (c *Client) ReadPump() {
	defer func() {
		if c.onClose != nil {
			c.onClose()
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait)) //nolint:errcheck
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait)) //nolint:errcheck
		return nil
	})

	for {
		_, _, err := c.conn.ReadMessage()
		if err != nil {
			break
		}
		// Client messages are ignored (server-push only)
	}
}

// WritePump sends queued payloads to the WebSocket
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait)) //nolint:errcheck
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{}) //nolint:errcheck
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message) //nolint:errcheck
			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait)) //nolint:errcheck
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
