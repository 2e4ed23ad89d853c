package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MinnaSync/minna-listen/internal/auth"
	"github.com/MinnaSync/minna-listen/internal/controller"
	"github.com/MinnaSync/minna-listen/internal/notify"
	"github.com/MinnaSync/minna-listen/internal/playback"
	"github.com/MinnaSync/minna-listen/internal/relay"
	"github.com/MinnaSync/minna-listen/internal/room"
	"github.com/MinnaSync/minna-listen/internal/session"
	"github.com/MinnaSync/minna-listen/internal/ws"
)

// guestSession refuses every control the way a guest's session does.
type guestSession struct{}

func (guestSession) View() session.View { return session.View{} }

func (guestSession) Subscribe() (<-chan session.View, func()) {
	return make(chan session.View), func() {}
}

func (guestSession) TogglePlayback(context.Context) error { return controller.ErrNotHost }

func (guestSession) Next(context.Context) error { return controller.ErrNotHost }

func (guestSession) Previous(context.Context) error { return controller.ErrNotHost }

func (guestSession) Seek(context.Context, float64) error { return controller.ErrNotHost }

func (guestSession) SeekPercent(context.Context, float64) error { return controller.ErrNotHost }

func (guestSession) StartSong(context.Context, string, string, string) error {
	return controller.ErrNotHost
}

func (guestSession) AddSong(context.Context, session.AddSongRequest) error { return nil }

func (guestSession) SendChat(context.Context, string) error { return nil }

func (guestSession) Leave(context.Context) error { return nil }

func TestRegister(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	Register(r, guestSession{}, Options{})

	tests := []struct {
		method string
		path   string
		status int
	}{
		{http.MethodGet, "/room", http.StatusOK},
		{http.MethodPost, "/playback/toggle", http.StatusForbidden},
		{http.MethodPost, "/playback/next", http.StatusForbidden},
		{http.MethodGet, "/ws", http.StatusUpgradeRequired},
	}

	for _, tt := range tests {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(tt.method, tt.path, nil))
		assert.Equal(t, tt.status, w.Code, tt.path)
	}
}

func member(t *testing.T, serverURL, token string) (*session.Session, *gin.Engine) {
	t.Helper()

	tokens := auth.NewTokenStore(token)
	media := playback.NewVirtualMedia(nil, nil, 20*time.Millisecond)

	ch := ws.DefaultChannelConfig()
	ch.ReconnectBaseDelay = 10 * time.Millisecond
	ch.ReconnectMaxDelay = 20 * time.Millisecond

	s, err := session.New(session.Config{
		RoomCode:    "ROOM01",
		ServerURL:   serverURL,
		Channel:     ch,
		SettleDelay: 50 * time.Millisecond,
		StartDelay:  20 * time.Millisecond,
		AlertTTL:    4 * time.Second,
		StatusTTL:   3 * time.Second,
	}, tokens, room.NewClient(serverURL, tokens), media)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go s.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-s.Done()
		media.Close()
	})

	require.Eventually(t, func() bool {
		return s.View().Connection.State == notify.ConnConnected
	}, 3*time.Second, 10*time.Millisecond)

	r := gin.New()
	Register(r, s, Options{})
	return s, r
}

func TestControlSurfaceDrivesRoom(t *testing.T) {
	gin.SetMode(gin.TestMode)

	srv := relay.NewServer()
	host := srv.AddUser("host-token", "1", "ana")
	guest := srv.AddUser("guest-token", "2", "bo")
	srv.CreateRoom("ROOM01", host, guest)

	httpSrv := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		httpSrv.Close()
		srv.Close()
	})

	_, hostAPI := member(t, httpSrv.URL, "host-token")
	guestSession, guestAPI := member(t, httpSrv.URL, "guest-token")

	w := httptest.NewRecorder()
	guestAPI.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/playback/toggle", nil))
	assert.Equal(t, http.StatusForbidden, w.Code)

	req := httptest.NewRequest(http.MethodPost, "/playback/start",
		strings.NewReader(`{"url":"https://cdn.example/song.mp3","title":"Song","artist":"Band"}`))
	req.Header.Set("Content-Type", "application/json")
	w = httptest.NewRecorder()
	hostAPI.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	require.Eventually(t, func() bool {
		v := guestSession.View()
		return v.Player.State == controller.StateLoaded && v.Player.Playback.SongURL == "https://cdn.example/song.mp3"
	}, 3*time.Second, 10*time.Millisecond)
}

func TestCORSDefaultsToLocalOrigins(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	Register(r, guestSession{}, Options{})
	h := CORS(r, Options{})

	tests := []struct {
		origin  string
		allowed bool
	}{
		{"http://localhost:5173", true},
		{"http://127.0.0.1:8080", true},
		{"http://localhost", true},
		{"https://evil.example", false},
		{"http://localhost.evil.example", false},
	}

	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/room", nil)
		req.Header.Set("Origin", tt.origin)

		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)

		if tt.allowed {
			assert.Equal(t, tt.origin, w.Header().Get("Access-Control-Allow-Origin"), tt.origin)
		} else {
			assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"), tt.origin)
		}
	}
}

func TestCORSUsesConfiguredOrigins(t *testing.T) {
	gin.SetMode(gin.TestMode)
	opts := Options{AllowOrigins: []string{"https://listen.example"}}
	r := gin.New()
	Register(r, guestSession{}, opts)
	h := CORS(r, opts)

	req := httptest.NewRequest(http.MethodGet, "/room", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))

	req.Header.Set("Origin", "https://listen.example")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, "https://listen.example", w.Header().Get("Access-Control-Allow-Origin"))
}
