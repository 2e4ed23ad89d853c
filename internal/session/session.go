package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/MinnaSync/minna-listen/internal/auth"
	"github.com/MinnaSync/minna-listen/internal/controller"
	"github.com/MinnaSync/minna-listen/internal/logger"
	"github.com/MinnaSync/minna-listen/internal/notify"
	"github.com/MinnaSync/minna-listen/internal/playback"
	"github.com/MinnaSync/minna-listen/internal/room"
	"github.com/MinnaSync/minna-listen/internal/ws"
)

var (
	ErrAuthRejected = errors.New("authentication rejected")
	ErrClosed       = errors.New("session closed")
)

type RoomService interface {
	Get(ctx context.Context, code string) (room.Snapshot, error)
	Leave(ctx context.Context, code string) error
}

type Config struct {
	RoomCode  string
	ServerURL string

	// Channel carries reconnect and socket tuning. URL, Token and Clock are
	// filled in by the session.
	Channel ws.ChannelConfig

	SettleDelay time.Duration
	StartDelay  time.Duration
	AlertTTL    time.Duration
	StatusTTL   time.Duration

	Clock clockwork.Clock
}

// Session is one client's membership of one room. All room, player and
// controller state is owned by the session loop; other goroutines reach it
// through post and Do.
type Session struct {
	id     uuid.UUID
	cfg    Config
	tokens *auth.TokenStore
	rooms  RoomService

	adapter   *playback.Adapter
	messenger *ws.Messenger
	channel   *ws.Channel
	ctrl      *controller.Controller
	alerts    *notify.Board
	status    *notify.StatusLine

	mu     sync.Mutex
	queue  []func()
	closed bool
	wake   chan struct{}

	done     chan struct{}
	doneOnce sync.Once

	// Loop-owned.
	room         room.Snapshot
	participants []Participant
	chat         []ChatLine

	viewMu sync.RWMutex
	view   View

	subMu sync.Mutex
	subs  map[chan View]struct{}
}

func New(cfg Config, tokens *auth.TokenStore, rooms RoomService, media playback.Media) (*Session, error) {
	socketURL, err := ws.RoomSocketURL(cfg.ServerURL, cfg.RoomCode)
	if err != nil {
		return nil, err
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}

	s := &Session{
		id:     uuid.New(),
		cfg:    cfg,
		tokens: tokens,
		rooms:  rooms,
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
		subs:   make(map[chan View]struct{}),
	}

	s.alerts = notify.NewBoard(cfg.Clock, cfg.AlertTTL)
	s.status = notify.NewStatusLine(cfg.Clock, cfg.StatusTTL)
	s.alerts.OnChange(s.refresh)
	s.status.OnChange(s.refresh)

	s.adapter = playback.NewAdapter(media)
	s.messenger = ws.NewMessenger(cfg.RoomCode, nil)

	chCfg := cfg.Channel
	chCfg.URL = socketURL
	chCfg.Token = tokens.AccessToken
	chCfg.Clock = cfg.Clock
	s.channel = ws.NewChannel(chCfg, ws.Callbacks{
		OnConnecting: func(attempt int) {
			s.post(func() { s.status.Set(notify.ConnConnecting, "Connecting...") })
		},
		OnOpen: func() {
			s.post(s.handleOpen)
		},
		OnFrame: func(data []byte) {
			s.post(func() { s.messenger.Deliver(data) })
		},
		OnClose: func(ev ws.CloseEvent) {
			s.post(func() { s.handleClose(ev) })
		},
	})
	s.messenger.Attach(s.channel)

	s.ctrl = controller.New(s.adapter, s.messenger, s.alerts, controller.Config{
		SettleDelay: cfg.SettleDelay,
		StartDelay:  cfg.StartDelay,
		Clock:       cfg.Clock,
		Dispatch:    func(fn func()) { s.post(fn) },
	})
	s.ctrl.OnChange(s.publish)

	s.adapter.OnEvent(func(ev playback.Event) {
		s.post(func() { s.ctrl.HandleMediaEvent(ev) })
	})
	s.messenger.OnMessage(s.handleMessage)

	s.view = s.buildView()

	return s, nil
}

func (s *Session) ID() uuid.UUID {
	return s.id
}

// Run loads the room, connects, and serves the session loop until the
// channel stops for good or ctx ends. A rejected credential is reported as
// ErrAuthRejected after the stored token has been cleared.
func (s *Session) Run(ctx context.Context) error {
	defer s.finish()

	if !s.tokens.IsAuthenticated() {
		s.status.Set(notify.ConnDisconnected, "No Token")
		s.alerts.Error("Authentication required. Please log in again.")
		s.publish()
		return ErrAuthRejected
	}

	snap, err := s.rooms.Get(ctx, s.cfg.RoomCode)
	if err != nil {
		if errors.Is(err, room.ErrUnauthorized) {
			s.tokens.Clear()
			s.status.Set(notify.ConnDisconnected, "Auth Failed")
			s.publish()
			return ErrAuthRejected
		}

		s.alerts.Error("Failed to load room")
		s.publish()
		return fmt.Errorf("load room %s: %w", s.cfg.RoomCode, err)
	}
	s.applySnapshot(snap)
	s.publish()

	logger.Log.Info("Joining room.", "room", s.cfg.RoomCode, "session", s.id, "role", s.ctrl.Role())

	loopCtx, stopLoop := context.WithCancel(context.Background())
	loopDone := make(chan struct{})
	go func() {
		s.loop(loopCtx)
		close(loopDone)
	}()

	runErr := s.channel.Run(ctx)

	// Let callbacks already posted by the channel run before stopping.
	drained := make(chan struct{})
	s.post(func() { close(drained) })
	select {
	case <-drained:
	case <-s.cfg.Clock.After(time.Second):
	}
	stopLoop()
	<-loopDone

	s.ctrl.Reset()
	s.publish()

	var ce *ws.CloseError
	switch {
	case runErr == nil, errors.Is(runErr, context.Canceled):
		return nil
	case errors.As(runErr, &ce) && ce.Reason == ws.ReasonAuthFailed:
		return ErrAuthRejected
	default:
		return runErr
	}
}

func (s *Session) finish() {
	s.mu.Lock()
	s.closed = true
	s.queue = nil
	s.mu.Unlock()

	// Alerts raised while the loop was stopping were dropped with the queue.
	s.publish()

	s.doneOnce.Do(func() { close(s.done) })
}

// refresh republishes the view on the loop, or directly once the loop has
// stopped and nothing else touches session state.
func (s *Session) refresh() {
	if !s.post(s.publish) {
		s.publish()
	}
}

// Done is closed once Run has returned.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

func (s *Session) post(fn func()) bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	s.queue = append(s.queue, fn)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
	return true
}

func (s *Session) loop(ctx context.Context) {
	for {
		select {
		case <-s.wake:
			for {
				s.mu.Lock()
				if len(s.queue) == 0 {
					s.mu.Unlock()
					break
				}
				fn := s.queue[0]
				s.queue = s.queue[1:]
				s.mu.Unlock()

				fn()
			}
		case <-ctx.Done():
			return
		}
	}
}

// Do runs fn on the session loop and waits for its result. The view is
// republished before Do returns.
func (s *Session) Do(ctx context.Context, fn func() error) error {
	res := make(chan error, 1)
	ok := s.post(func() {
		err := fn()
		s.publish()
		res <- err
	})
	if !ok {
		return ErrClosed
	}

	select {
	case err := <-res:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-s.done:
		return ErrClosed
	}
}

func (s *Session) handleOpen() {
	s.status.Set(notify.ConnConnected, "Connected")
	s.messenger.Send(ws.Ping{Timestamp: s.cfg.Clock.Now().UnixMilli()})
}

func (s *Session) handleClose(ev ws.CloseEvent) {
	if ev.Retry {
		logger.Log.Warn("Connection lost, reconnecting.", "attempt", ev.Attempt, "delay", ev.Delay)
		s.status.Set(notify.ConnDisconnected, ev.Reason.Status())
		return
	}

	switch {
	case errors.Is(ev.Err, ws.ErrNoToken):
		s.status.Set(notify.ConnDisconnected, "No Token")
		s.alerts.Error("Authentication required. Please log in again.")
	default:
		s.status.Set(notify.ConnDisconnected, ev.Reason.Status())
		if msg := ev.Reason.Alert(); msg != "" {
			s.alerts.Error(msg)
		}
	}

	switch ev.Reason {
	case ws.ReasonAuthFailed:
		s.tokens.Clear()
	case ws.ReasonTransient:
		logger.Log.Error("Giving up on reconnecting.", "attempts", ev.Attempt)
	}
}

func (s *Session) handleMessage(msg ws.Message) {
	switch m := msg.(type) {
	case ws.UserJoined:
		s.userJoined(m)
	case ws.UserLeft:
		s.userLeft(m)
	case ws.ChatMessage:
		s.chat = append(s.chat, ChatLine{UserID: m.UserID, Name: m.Name, Message: m.Message})
		if len(s.chat) > maxChatLines {
			s.chat = s.chat[len(s.chat)-maxChatLines:]
		}
		s.alerts.Success(fmt.Sprintf("%s: %s", m.Name, m.Message))
	case ws.Pong:
		logger.Log.Debug("Received pong.", "timestamp", m.Timestamp)
	case ws.RoomUpdated:
		s.roomUpdated(m)
	case ws.Success:
		s.alerts.Success(m.Message)
	case ws.Error:
		text := m.Message
		if text == "" {
			text = "WebSocket error occurred"
		}
		logger.Log.Warn("Server reported an error.", "message", text)
		s.alerts.Error(text)
		s.ctrl.HandleMessage(m)
	default:
		s.ctrl.HandleMessage(msg)
	}

	s.publish()
}
