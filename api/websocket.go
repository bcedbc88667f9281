package api

import (
	"encoding/json"
	"net/http"
	"time"

	"drivemap/notify"

	"github.com/gorilla/websocket"
)

const (
	// pongWait is the time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// maxMessageSize is the maximum message size allowed from peer
	maxMessageSize = 512
)

// upgrader configures WebSocket connection upgrades.
// CORS is already validated by corsMiddleware before the upgrade.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// wsClient bridges a hub subscription onto a single WebSocket connection
type wsClient struct {
	api  *API
	conn *websocket.Conn
	sub  *notify.Subscription
}

// serveWs upgrades the connection and streams inventory events to the peer
func (a *API) serveWs(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.logger.Errorw("WebSocket upgrade failed", "error", err)
		return
	}

	client := &wsClient{
		api:  a,
		conn: conn,
		sub:  a.hub.Subscribe(),
	}

	go client.writePump()
	go client.readPump()
}

// readPump drains the connection to detect disconnects. Clients are not
// expected to send messages.
func (c *wsClient) readPump() {
	defer func() {
		c.api.hub.Unsubscribe(c.sub)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.api.logger.Debugw("WebSocket unexpected close", "error", err)
			}
			return
		}
	}
}

// writePump forwards hub events to the connection and keeps it alive with pings
func (c *wsClient) writePump() {
	writeWait := c.api.config.Notify.WriteTimeout
	ticker := time.NewTicker(c.api.config.Notify.PingInterval)
	defer func() {
		ticker.Stop()
		c.api.hub.Unsubscribe(c.sub)
		c.conn.Close()
	}()

	for {
		select {
		case event, ok := <-c.sub.C():
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Subscription was closed by the hub
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			payload, err := json.Marshal(event)
			if err != nil {
				c.api.logger.Errorw("Failed to marshal event", "type", event.Type, "error", err)
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
