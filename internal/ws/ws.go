package ws

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
)

const (
	// Time allowed to write a message to the server.
	ReplyWait = 10 * time.Second

	// Time allowed to read the next pong from the server.
	ResponseWait = 60 * time.Second

	// Send pings with this period. Must be less than ResponseWait.
	PingInterval = 30 * time.Second

	// Maximum inbound frame size.
	MaxBufferSize = 64 * 1024

	// Outbound frames buffered per connection before TrySend reports backpressure.
	SendBuffer = 32
)

var (
	ErrTransportUnavailable = errors.New("transport unavailable")
	ErrBackpressure         = errors.New("backpressure")
	ErrNoToken              = errors.New("no access token")
)

type ChannelConfig struct {
	URL   string
	Token func() string

	MaxReconnectAttempts int
	ReconnectBaseDelay   time.Duration
	ReconnectMaxDelay    time.Duration

	WriteTimeout   time.Duration
	ReadTimeout    time.Duration
	PingInterval   time.Duration
	MaxMessageSize int64
	SendBuffer     int

	Dialer *websocket.Dialer
	Clock  clockwork.Clock
}

func DefaultChannelConfig() ChannelConfig {
	return ChannelConfig{
		MaxReconnectAttempts: 5,
		ReconnectBaseDelay:   2 * time.Second,
		ReconnectMaxDelay:    30 * time.Second,
		WriteTimeout:         ReplyWait,
		ReadTimeout:          ResponseWait,
		PingInterval:         PingInterval,
		MaxMessageSize:       MaxBufferSize,
		SendBuffer:           SendBuffer,
	}
}

func (c ChannelConfig) withDefaults() ChannelConfig {
	d := DefaultChannelConfig()
	if c.ReconnectBaseDelay <= 0 {
		c.ReconnectBaseDelay = d.ReconnectBaseDelay
	}
	if c.ReconnectMaxDelay < c.ReconnectBaseDelay {
		c.ReconnectMaxDelay = c.ReconnectBaseDelay
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = d.WriteTimeout
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = d.ReadTimeout
	}
	if c.PingInterval <= 0 {
		c.PingInterval = d.PingInterval
	}
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = d.MaxMessageSize
	}
	if c.SendBuffer <= 0 {
		c.SendBuffer = d.SendBuffer
	}
	if c.Dialer == nil {
		c.Dialer = &websocket.Dialer{
			HandshakeTimeout: 45 * time.Second,
		}
	}
	if c.Clock == nil {
		c.Clock = clockwork.NewRealClock()
	}
	if c.Token == nil {
		c.Token = func() string { return "" }
	}
	return c
}

// RoomSocketURL maps the server's http(s) base URL onto the room socket endpoint.
func RoomSocketURL(serverURL, roomCode string) (string, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return "", fmt.Errorf("parse server url: %w", err)
	}

	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported server url scheme %q", u.Scheme)
	}

	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws/rooms/" + url.PathEscape(roomCode) + "/"
	u.RawQuery = ""

	return u.String(), nil
}

// Backoff returns the delay before reconnect attempt n (1-based): base
// doubled per attempt, capped at max.
func Backoff(attempt int, base, max time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	d := base
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= max || d <= 0 {
			return max
		}
	}

	if d > max {
		return max
	}
	return d
}
