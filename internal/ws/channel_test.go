package ws

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var upgrader = websocket.Upgrader{}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/rooms/ROOM/"
}

func testConfig(srv *httptest.Server, clock clockwork.Clock) ChannelConfig {
	cfg := DefaultChannelConfig()
	cfg.URL = wsURL(srv)
	cfg.Token = func() string { return "secret" }
	cfg.Clock = clock
	cfg.ReconnectBaseDelay = time.Second
	cfg.ReconnectMaxDelay = 4 * time.Second
	return cfg
}

type closeLog struct {
	mu     sync.Mutex
	events []CloseEvent
}

func (l *closeLog) add(ev CloseEvent) {
	l.mu.Lock()
	l.events = append(l.events, ev)
	l.mu.Unlock()
}

func (l *closeLog) all() []CloseEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]CloseEvent{}, l.events...)
}

func TestBackoff(t *testing.T) {
	base, max := 2*time.Second, 30*time.Second

	assert.Equal(t, 2*time.Second, Backoff(1, base, max))
	assert.Equal(t, 4*time.Second, Backoff(2, base, max))
	assert.Equal(t, 8*time.Second, Backoff(3, base, max))
	assert.Equal(t, 16*time.Second, Backoff(4, base, max))
	assert.Equal(t, 30*time.Second, Backoff(5, base, max))
	assert.Equal(t, 30*time.Second, Backoff(60, base, max))
}

func TestClassifyClose(t *testing.T) {
	assert.Equal(t, ReasonNormal, ClassifyClose(1000))
	assert.Equal(t, ReasonAuthFailed, ClassifyClose(4001))
	assert.Equal(t, ReasonForbidden, ClassifyClose(4003))
	assert.Equal(t, ReasonNotFound, ClassifyClose(4004))
	assert.Equal(t, ReasonTransient, ClassifyClose(1006))
	assert.Equal(t, ReasonTransient, ClassifyClose(1011))

	assert.Equal(t, "Room Not Found", ReasonNotFound.Status())
	assert.Empty(t, ReasonTransient.Alert())
}

func TestRoomSocketURL(t *testing.T) {
	u, err := RoomSocketURL("https://listen.example/", "AB12")
	require.NoError(t, err)
	assert.Equal(t, "wss://listen.example/ws/rooms/AB12/", u)

	u, err = RoomSocketURL("http://localhost:8000", "AB12")
	require.NoError(t, err)
	assert.Equal(t, "ws://localhost:8000/ws/rooms/AB12/", u)

	_, err = RoomSocketURL("ftp://x", "AB12")
	assert.Error(t, err)
}

func TestChannelSendsTokenAndFrames(t *testing.T) {
	frames := make(chan string, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("token") != "secret" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		frames <- string(data)

		conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"pong"}`))
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	inbound := make(chan []byte, 1)
	var ch *Channel
	ch = NewChannel(testConfig(srv, clockwork.NewFakeClock()), Callbacks{
		OnOpen: func() {
			assert.True(t, ch.IsOpen())
			assert.NoError(t, ch.TrySend([]byte(`{"type":"ping"}`)))
		},
		OnFrame: func(data []byte) { inbound <- data },
	})

	done := make(chan error, 1)
	go func() { done <- ch.Run(context.Background()) }()

	select {
	case got := <-frames:
		assert.Equal(t, `{"type":"ping"}`, got)
	case <-time.After(5 * time.Second):
		t.Fatal("server never received frame")
	}

	select {
	case got := <-inbound:
		assert.JSONEq(t, `{"type":"pong"}`, string(got))
	case <-time.After(5 * time.Second):
		t.Fatal("client never received frame")
	}

	ch.Disconnect()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("run did not return after disconnect")
	}
	assert.False(t, ch.IsOpen())
	assert.ErrorIs(t, ch.TrySend([]byte("x")), ErrTransportUnavailable)
}

func TestChannelTerminalCloseCodes(t *testing.T) {
	for _, code := range []int{CloseAuthFailed, CloseForbidden, CloseNotFound} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			conn, err := upgrader.Upgrade(w, r, nil)
			if err != nil {
				return
			}
			defer conn.Close()

			conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(code, ""))
			conn.ReadMessage()
		}))

		var log closeLog
		ch := NewChannel(testConfig(srv, clockwork.NewFakeClock()), Callbacks{OnClose: log.add})

		err := ch.Run(context.Background())
		srv.Close()

		var ce *CloseError
		require.ErrorAs(t, err, &ce, "code %d", code)
		assert.Equal(t, code, ce.Code)
		assert.Equal(t, ClassifyClose(code), ce.Reason)

		events := log.all()
		require.Len(t, events, 1)
		assert.False(t, events[0].Retry)
	}
}

func TestChannelDialStatusMapsToCloseCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	ch := NewChannel(testConfig(srv, clockwork.NewFakeClock()), Callbacks{})

	var ce *CloseError
	require.ErrorAs(t, ch.Run(context.Background()), &ce)
	assert.Equal(t, ReasonNotFound, ce.Reason)
}

func TestChannelNoTokenNeverDials(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	cfg := testConfig(srv, clockwork.NewFakeClock())
	cfg.Token = func() string { return "" }

	var log closeLog
	ch := NewChannel(cfg, Callbacks{OnClose: log.add})

	var ce *CloseError
	require.ErrorAs(t, ch.Run(context.Background()), &ce)
	assert.Equal(t, ReasonAuthFailed, ce.Reason)
	assert.Zero(t, hits.Load())

	events := log.all()
	require.Len(t, events, 1)
	assert.ErrorIs(t, events[0].Err, ErrNoToken)
}

func TestChannelReconnectsWithBackoffUntilCap(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	clock := clockwork.NewFakeClock()
	cfg := testConfig(srv, clock)
	cfg.MaxReconnectAttempts = 3

	var log closeLog
	ch := NewChannel(cfg, Callbacks{OnClose: log.add})

	done := make(chan error, 1)
	go func() { done <- ch.Run(ctx) }()

	for _, delay := range []time.Duration{time.Second, 2 * time.Second, 4 * time.Second} {
		require.NoError(t, clock.BlockUntilContext(ctx, 1))
		clock.Advance(delay)
	}

	var err error
	select {
	case err = <-done:
	case <-ctx.Done():
		t.Fatal("run never gave up")
	}

	var ce *CloseError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, ReasonTransient, ce.Reason)
	assert.EqualValues(t, 4, hits.Load())

	events := log.all()
	require.Len(t, events, 4)
	for i, ev := range events[:3] {
		assert.True(t, ev.Retry)
		assert.Equal(t, i+1, ev.Attempt)
		assert.Equal(t, Backoff(i+1, time.Second, 4*time.Second), ev.Delay)
		assert.Equal(t, "Connection Lost", ev.Reason.Status())
	}
	assert.False(t, events[3].Retry)
}

func TestChannelDisconnectDuringBackoff(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	clock := clockwork.NewFakeClock()
	ch := NewChannel(testConfig(srv, clock), Callbacks{})

	done := make(chan error, 1)
	go func() { done <- ch.Run(ctx) }()

	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	ch.Disconnect()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-ctx.Done():
		t.Fatal("run did not stop")
	}
}
