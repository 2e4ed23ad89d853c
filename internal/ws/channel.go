package ws

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/MinnaSync/minna-listen/internal/logger"
)

// Application close codes sent by the room server.
const (
	CloseAuthFailed = 4001
	CloseForbidden  = 4003
	CloseNotFound   = 4004
)

type CloseReason int

const (
	ReasonNormal CloseReason = iota
	ReasonAuthFailed
	ReasonForbidden
	ReasonNotFound
	ReasonTransient
)

func ClassifyClose(code int) CloseReason {
	switch code {
	case websocket.CloseNormalClosure:
		return ReasonNormal
	case CloseAuthFailed:
		return ReasonAuthFailed
	case CloseForbidden:
		return ReasonForbidden
	case CloseNotFound:
		return ReasonNotFound
	default:
		return ReasonTransient
	}
}

func (r CloseReason) String() string {
	switch r {
	case ReasonNormal:
		return "normal"
	case ReasonAuthFailed:
		return "auth_failed"
	case ReasonForbidden:
		return "forbidden"
	case ReasonNotFound:
		return "not_found"
	default:
		return "transient"
	}
}

// Status is the short connection status text shown to the user.
func (r CloseReason) Status() string {
	switch r {
	case ReasonNormal:
		return "Disconnected"
	case ReasonAuthFailed:
		return "Auth Failed"
	case ReasonForbidden:
		return "Access Denied"
	case ReasonNotFound:
		return "Room Not Found"
	default:
		return "Connection Lost"
	}
}

// Alert is the user-facing error for a terminal close, empty when none is due.
func (r CloseReason) Alert() string {
	switch r {
	case ReasonAuthFailed:
		return "Authentication failed. Please log in again."
	case ReasonForbidden:
		return "You are not a participant in this room."
	case ReasonNotFound:
		return "This room does not exist or is no longer active."
	default:
		return ""
	}
}

type CloseEvent struct {
	Code    int
	Reason  CloseReason
	Err     error
	Attempt int
	Retry   bool
	Delay   time.Duration
}

// CloseError is returned by Channel.Run when the channel stops for any
// reason other than a normal close.
type CloseError struct {
	Code   int
	Reason CloseReason
}

func (e *CloseError) Error() string {
	return fmt.Sprintf("channel closed: %s (%d)", e.Reason, e.Code)
}

type Callbacks struct {
	OnConnecting func(attempt int)
	OnOpen       func()
	OnFrame      func(data []byte)
	OnClose      func(CloseEvent)
}

// Channel keeps a single room connection alive, reconnecting with backoff
// after transient drops.
type Channel struct {
	cfg ChannelConfig
	cb  Callbacks

	mu       sync.Mutex
	client   *Client
	closing  bool
	attempts int

	quit chan struct{}
}

func NewChannel(cfg ChannelConfig, cb Callbacks) *Channel {
	return &Channel{
		cfg:  cfg.withDefaults(),
		cb:   cb,
		quit: make(chan struct{}),
	}
}

func (c *Channel) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.client != nil && !c.closing
}

func (c *Channel) TrySend(data []byte) error {
	c.mu.Lock()
	client := c.client
	c.mu.Unlock()

	if client == nil {
		return ErrTransportUnavailable
	}
	return client.TrySend(data)
}

func (c *Channel) Attempts() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.attempts
}

// Disconnect closes the connection with 1000 and stops any reconnect.
func (c *Channel) Disconnect() {
	c.mu.Lock()
	if c.closing {
		c.mu.Unlock()
		return
	}
	c.closing = true
	client := c.client
	close(c.quit)
	c.mu.Unlock()

	if client != nil {
		client.Close(websocket.CloseNormalClosure, "")
	}
}

// Run connects and blocks until the channel stops for good. It returns nil
// after a normal close, a *CloseError after a terminal close or exhausted
// retries, and ctx.Err() when ctx ends.
func (c *Channel) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if c.isClosing() {
			return nil
		}

		token := c.cfg.Token()
		if token == "" {
			logger.Log.Error("No access token, not connecting.", "url", c.cfg.URL)
			c.emitClose(CloseEvent{Code: CloseAuthFailed, Reason: ReasonAuthFailed, Err: ErrNoToken})
			return &CloseError{Code: CloseAuthFailed, Reason: ReasonAuthFailed}
		}

		if c.cb.OnConnecting != nil {
			c.cb.OnConnecting(c.Attempts())
		}

		code, err := c.connect(ctx, token)

		ev := CloseEvent{Code: code, Reason: ClassifyClose(code), Err: err}
		if c.isClosing() || ctx.Err() != nil {
			ev.Code = websocket.CloseNormalClosure
			ev.Reason = ReasonNormal
		}

		if ev.Reason == ReasonTransient {
			c.mu.Lock()
			if c.attempts < c.cfg.MaxReconnectAttempts {
				c.attempts++
				ev.Retry = true
				ev.Attempt = c.attempts
				ev.Delay = Backoff(c.attempts, c.cfg.ReconnectBaseDelay, c.cfg.ReconnectMaxDelay)
			} else {
				ev.Attempt = c.attempts
			}
			c.mu.Unlock()
		}

		logger.Log.Info("Channel closed.", "code", ev.Code, "reason", ev.Reason, "retry", ev.Retry, "attempt", ev.Attempt, "delay", ev.Delay, "err", err)
		c.emitClose(ev)

		if !ev.Retry {
			if ev.Reason == ReasonNormal {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return nil
			}
			return &CloseError{Code: ev.Code, Reason: ev.Reason}
		}

		select {
		case <-c.cfg.Clock.After(ev.Delay):
		case <-c.quit:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (c *Channel) connect(ctx context.Context, token string) (int, error) {
	u, err := url.Parse(c.cfg.URL)
	if err != nil {
		return websocket.CloseAbnormalClosure, fmt.Errorf("parse channel url: %w", err)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()

	conn, resp, err := c.cfg.Dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		if resp != nil {
			switch resp.StatusCode {
			case http.StatusUnauthorized:
				return CloseAuthFailed, err
			case http.StatusForbidden:
				return CloseForbidden, err
			case http.StatusNotFound:
				return CloseNotFound, err
			}
		}
		return websocket.CloseAbnormalClosure, err
	}

	client := NewClient(conn, c.cfg)

	c.mu.Lock()
	if c.closing {
		c.mu.Unlock()
		client.Close(websocket.CloseNormalClosure, "")
		conn.Close()
		return websocket.CloseNormalClosure, nil
	}
	c.client = client
	c.attempts = 0
	c.mu.Unlock()

	logger.Log.Info("Channel open.", "url", c.cfg.URL, "client", client.ID())
	if c.cb.OnOpen != nil {
		c.cb.OnOpen()
	}

	onFrame := c.cb.OnFrame
	if onFrame == nil {
		onFrame = func([]byte) {}
	}
	code, err := client.Run(ctx, onFrame)

	c.mu.Lock()
	c.client = nil
	c.mu.Unlock()

	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Log.Debug("Connection ended.", "client", client.ID(), "code", code, "err", err)
	}
	return code, err
}

func (c *Channel) isClosing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.closing
}

func (c *Channel) emitClose(ev CloseEvent) {
	if c.cb.OnClose != nil {
		c.cb.OnClose(ev)
	}
}
