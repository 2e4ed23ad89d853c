package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/MinnaSync/minna-listen/api/rest"
	"github.com/MinnaSync/minna-listen/internal/logger"
	"github.com/MinnaSync/minna-listen/internal/session"
	roomws "github.com/MinnaSync/minna-listen/internal/ws"
)

const (
	EventView  = "view"
	EventError = "error"
)

var (
	errUnknownEvent  = errors.New("unknown event")
	errInvalidSeek   = errors.New("either time or percent is required")
	errEmptyMessage  = errors.New("message is required")
	errInvalidFormat = errors.New("invalid command data")
)

// Session is a room session that can also stream its views.
type Session interface {
	rest.Session
	Subscribe() (<-chan session.View, func())
}

// Socket streams session views to the client and runs the commands it sends.
// An empty origins list falls back to the same-origin check.
func Socket(s Session, origins []string) gin.HandlerFunc {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  roomws.MaxBufferSize,
		WriteBufferSize: roomws.MaxBufferSize,
	}
	if len(origins) > 0 {
		upgrader.CheckOrigin = func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || OriginAllowed(origins, origin)
		}
	}

	return func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Log.Debug("Failed to upgrade view stream.", "err", err)
			return
		}
		defer conn.Close()

		ctx, cancel := context.WithCancel(c.Request.Context())
		defer cancel()

		views, unsubscribe := s.Subscribe()
		defer unsubscribe()

		replies := make(chan Message, roomws.SendBuffer)
		readDone := make(chan struct{})
		go func() {
			defer close(readDone)
			readPump(ctx, conn, s, replies)
		}()

		writePump(conn, views, replies, readDone)
	}
}

// OriginAllowed matches origin against a list that may hold "*" or patterns
// with a single wildcard such as "http://localhost:*", as rs/cors does.
func OriginAllowed(origins []string, origin string) bool {
	if slices.Contains(origins, "*") {
		return true
	}

	origin = strings.ToLower(origin)
	for _, o := range origins {
		o = strings.ToLower(o)
		prefix, suffix, ok := strings.Cut(o, "*")
		if !ok {
			if o == origin {
				return true
			}
			continue
		}

		if len(origin) >= len(prefix)+len(suffix) && strings.HasPrefix(origin, prefix) && strings.HasSuffix(origin, suffix) {
			return true
		}
	}
	return false
}

func writePump(conn *websocket.Conn, views <-chan session.View, replies <-chan Message, readDone <-chan struct{}) {
	ticker := time.NewTicker(roomws.PingInterval)
	defer ticker.Stop()

	write := func(msg Message) bool {
		conn.SetWriteDeadline(time.Now().Add(roomws.ReplyWait))
		return conn.WriteJSON(msg) == nil
	}

	for {
		select {
		case view, ok := <-views:
			if !ok {
				conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
					time.Now().Add(roomws.ReplyWait))
				return
			}

			if !write(Message{Event: EventView, Data: view}) {
				return
			}
		case reply := <-replies:
			if !write(reply) {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(roomws.ReplyWait))

			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-readDone:
			return
		}
	}
}

func readPump(ctx context.Context, conn *websocket.Conn, s Session, replies chan<- Message) {
	conn.SetReadLimit(int64(roomws.MaxBufferSize))
	conn.SetReadDeadline(time.Now().Add(roomws.ResponseWait))
	conn.SetPongHandler(func(_ string) error {
		conn.SetReadDeadline(time.Now().Add(roomws.ResponseWait))
		return nil
	})

	for {
		var cmd Command
		if err := conn.ReadJSON(&cmd); err != nil {
			var syntaxErr *json.SyntaxError
			if errors.As(err, &syntaxErr) {
				logger.Log.Debug("Control client sent invalid JSON.", "err", err)
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(roomws.ResponseWait))

		if err := run(ctx, s, cmd); err != nil {
			logger.Log.Debug("Control command failed.", "event", cmd.Event, "err", err)

			select {
			case replies <- Message{
				Event: EventError,
				Data:  CommandFailed{Event: cmd.Event, Message: err.Error()},
			}:
			case <-ctx.Done():
				return
			}
		}
	}
}

func decode(data json.RawMessage, v any) error {
	if len(data) == 0 {
		return errInvalidFormat
	}
	if err := json.Unmarshal(data, v); err != nil {
		return errInvalidFormat
	}
	return nil
}

func run(ctx context.Context, s Session, cmd Command) error {
	switch cmd.Event {
	case "toggle_playback":
		return s.TogglePlayback(ctx)
	case "next_song":
		return s.Next(ctx)
	case "previous_song":
		return s.Previous(ctx)
	case "seek":
		var seek ClientSeek
		if err := decode(cmd.Data, &seek); err != nil {
			return err
		}

		switch {
		case seek.Time != nil:
			return s.Seek(ctx, *seek.Time)
		case seek.Percent != nil:
			return s.SeekPercent(ctx, *seek.Percent)
		default:
			return errInvalidSeek
		}
	case "start_song":
		var start ClientStartSong
		if err := decode(cmd.Data, &start); err != nil {
			return err
		}
		return s.StartSong(ctx, start.URL, start.Title, start.Artist)
	case "add_song":
		var req session.AddSongRequest
		if err := decode(cmd.Data, &req); err != nil {
			return err
		}
		return s.AddSong(ctx, req)
	case "send_message":
		var msg ClientSendMessage
		if err := decode(cmd.Data, &msg); err != nil {
			return err
		}
		if msg.Message == "" {
			return errEmptyMessage
		}
		return s.SendChat(ctx, msg.Message)
	case "leave_room":
		return s.Leave(ctx)
	default:
		return errUnknownEvent
	}
}
