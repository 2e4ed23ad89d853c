package relay

import (
	"time"

	"github.com/gorilla/websocket"

	"github.com/MinnaSync/minna-listen/internal/logger"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 64 * 1024
)

// Client is one participant's connection to a relay room.
type Client struct {
	user User
	conn *websocket.Conn
	room *Room
	send chan []byte
}

func newClient(user User, conn *websocket.Conn, room *Room) *Client {
	return &Client{
		user: user,
		conn: conn,
		room: room,
		send: make(chan []byte, 256),
	}
}

// kick closes the connection with an application close code.
func (c *Client) kick(code int, text string) {
	deadline := time.Now().Add(writeWait)
	c.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, text), deadline)
	c.conn.SetReadDeadline(time.Now().Add(time.Second))
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
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))

			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				logger.Log.Debug("Failed to write ping.", "err", err)
				return
			}
		}
	}
}

func (c *Client) readPump() {
	defer func() {
		c.room.leave(c)
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			logger.Log.Debug("Websocket disconnected.", "user", c.user.Name, "err", err)
			return
		}

		if !c.room.receive(inbound{client: c, data: message}) {
			return
		}
	}
}
