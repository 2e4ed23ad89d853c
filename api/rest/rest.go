package rest

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/MinnaSync/minna-listen/internal/controller"
	"github.com/MinnaSync/minna-listen/internal/session"
	"github.com/MinnaSync/minna-listen/internal/ws"
)

// Session is the part of a room session the control surface drives.
type Session interface {
	View() session.View

	TogglePlayback(ctx context.Context) error
	Next(ctx context.Context) error
	Previous(ctx context.Context) error
	Seek(ctx context.Context, seconds float64) error
	SeekPercent(ctx context.Context, p float64) error
	StartSong(ctx context.Context, url, title, artist string) error

	AddSong(ctx context.Context, req session.AddSongRequest) error
	SendChat(ctx context.Context, message string) error
	Leave(ctx context.Context) error
}

func Register(r gin.IRouter, s Session, probe *http.Client) {
	h := &handler{session: s}

	r.GET("/room", h.Room)
	r.POST("/room/leave", h.Leave)

	playback := r.Group("/playback")
	playback.POST("/toggle", h.Toggle)
	playback.POST("/next", h.Next)
	playback.POST("/previous", h.Previous)
	playback.POST("/seek", h.Seek)
	playback.POST("/start", h.Start)

	r.POST("/queue", h.Queue)
	r.POST("/chat", h.Chat)

	r.GET("/probe/*url", Probe(probe))
}

type handler struct {
	session Session
}

// fail writes err with the status that best describes it.
func fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError

	switch {
	case errors.Is(err, controller.ErrNotHost):
		status = http.StatusForbidden
	case errors.Is(err, controller.ErrNoSong),
		errors.Is(err, controller.ErrUnknownDuration),
		errors.Is(err, session.ErrNeedsConfirmation):
		status = http.StatusConflict
	case errors.Is(err, controller.ErrInvalidSong):
		status = http.StatusBadRequest
	case errors.Is(err, ws.ErrTransportUnavailable),
		errors.Is(err, ws.ErrBackpressure),
		errors.Is(err, session.ErrClosed):
		status = http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
	}

	c.JSON(status, gin.H{
		"error": err.Error(),
	})
}

func (h *handler) done(c *gin.Context, err error) {
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, h.session.View())
}
