package hub

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxMessageSize = 4096
	sendBuffer     = 256
)

// Client is one connected player.
type Client struct {
	hub  *Hub
	id   uuid.UUID
	name string
	conn *websocket.Conn
	send chan []byte

	// tracking holds the players this client currently renders. Loop only.
	tracking map[uuid.UUID]bool
}

func (c *Client) readPump() {
	defer func() {
		c.hub.loop.Post(func() { c.hub.unregister(c) })
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.log.Warn().Err(err).Str("user", c.id.String()).Msg("client read failed")
			}
			return
		}
		var op Op
		if err := json.Unmarshal(message, &op); err != nil {
			c.hub.log.Warn().Err(err).Str("user", c.id.String()).Msg("error decoding op")
			continue
		}
		c.hub.loop.Post(func() { c.hub.handle(c, op) })
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
