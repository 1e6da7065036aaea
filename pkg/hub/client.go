package hub

import (
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	// Sync clients never send anything larger than a close frame or pong.
	maxMessageSize = 64 * 1024

	queueSize = 256
)

// Client is one sync subscriber.
type Client struct {
	ID string

	hub  *Hub
	conn *websocket.Conn
	send chan Message
}

// NewClient registers conn with the hub. The greeting is queued ahead of any
// broadcast so a late joiner starts from the current state. It returns nil
// when the hub has stopped.
func NewClient(hub *Hub, conn *websocket.Conn, greeting ...Message) *Client {
	c := &Client{
		ID:   uuid.New().String(),
		hub:  hub,
		conn: conn,
		send: make(chan Message, queueSize),
	}
	for _, msg := range greeting {
		select {
		case c.send <- msg:
		default:
		}
	}

	select {
	case hub.register <- c:
		return c
	case <-hub.done:
		return nil
	}
}

// Run pumps messages until the connection closes. Call it from the
// websocket handler; it blocks.
func (c *Client) Run() {
	go c.writePump()
	c.readPump()
}

// readPump discards inbound frames. Reading is still needed to notice a
// disconnect and to process pongs.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writePump is the only writer on conn.
func (c *Client) writePump() {
	ping := time.NewTicker(pingPeriod)
	defer func() {
		ping.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Dropped by the hub
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg.Data); err != nil {
				return
			}

		case <-ping.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
