package ws

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/MinnaSync/minna-listen/internal/logger"
)

// Client is one live websocket connection to the room server.
type Client struct {
	id   string
	conn *websocket.Conn
	cfg  ChannelConfig

	send chan []byte

	closeOnce sync.Once
	closed    chan struct{}
}

func NewClient(conn *websocket.Conn, cfg ChannelConfig) *Client {
	cfg = cfg.withDefaults()

	return &Client{
		id:   uuid.NewString(),
		conn: conn,
		cfg:  cfg,

		send: make(chan []byte, cfg.SendBuffer),

		closed: make(chan struct{}),
	}
}

func (c *Client) ID() string {
	return c.id
}

// TrySend queues data for the write pump without blocking.
func (c *Client) TrySend(data []byte) error {
	select {
	case <-c.closed:
		return ErrTransportUnavailable
	default:
	}

	select {
	case c.send <- data:
		return nil
	default:
		return ErrBackpressure
	}
}

// Close starts the closing handshake with code and stops accepting sends.
func (c *Client) Close(code int, text string) {
	c.closeOnce.Do(func() {
		close(c.closed)

		msg := websocket.FormatCloseMessage(code, text)
		deadline := time.Now().Add(c.cfg.WriteTimeout)
		if err := c.conn.WriteControl(websocket.CloseMessage, msg, deadline); err != nil {
			logger.Log.Debug("Failed to write close frame.", "client", c.id, "err", err)
			c.conn.Close()
			return
		}

		// Don't wait on a server that never answers the close frame.
		c.conn.SetReadDeadline(deadline)
	})
}

// Run pumps frames until the connection ends and returns the close code the
// server sent, or 1006 when the connection dropped without one.
func (c *Client) Run(ctx context.Context, onFrame func([]byte)) (int, error) {
	stop := context.AfterFunc(ctx, func() {
		c.Close(websocket.CloseNormalClosure, "")
	})
	defer stop()

	go c.writePump()

	code, err := c.readPump(onFrame)
	c.closeOnce.Do(func() { close(c.closed) })
	c.conn.Close()

	return code, err
}

func (c *Client) writePump() {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case data := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))

			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				logger.Log.Debug("Failed to write message.", "client", c.id, "err", err)
				c.conn.Close()
				return
			}
		case <-ticker.C:
			deadline := time.Now().Add(c.cfg.WriteTimeout)

			if err := c.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				logger.Log.Debug("Failed to write ping.", "client", c.id, "err", err)
				c.conn.Close()
				return
			}
		case <-c.closed:
			return
		}
	}
}

func (c *Client) readPump(onFrame func([]byte)) (int, error) {
	c.conn.SetReadLimit(c.cfg.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))
	c.conn.SetPongHandler(func(_ string) error {
		c.conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			var ce *websocket.CloseError
			if errors.As(err, &ce) {
				return ce.Code, err
			}

			return websocket.CloseAbnormalClosure, err
		}

		c.conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))
		onFrame(data)
	}
}
