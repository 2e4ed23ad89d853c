package controller

import (
	"errors"
	"fmt"
	"math"
	"net/url"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/MinnaSync/minna-listen/internal/logger"
	"github.com/MinnaSync/minna-listen/internal/playback"
	"github.com/MinnaSync/minna-listen/internal/ws"
)

var (
	ErrNotHost         = errors.New("only the host can control playback")
	ErrNoSong          = errors.New("no song loaded")
	ErrInvalidSong     = errors.New("invalid song")
	ErrUnknownDuration = errors.New("song duration is not known yet")
)

// Server notice sent after next_song when the queue has run dry.
const queueEmptyNotice = "No songs in queue"

type Player interface {
	Load(url, title, artist string) bool
	Unload()
	Play()
	Pause()
	Seek(seconds float64)

	Track() playback.Track
	CurrentTime() float64
	Duration() float64
	Paused() bool
}

type Sender interface {
	Send(msg ws.Message) error
}

type Alerter interface {
	Error(message string)
}

type Config struct {
	// How long a remote-applied change may go without its media event
	// before the guard is released anyway.
	SettleDelay time.Duration

	// Buffering delay between loading a started song and playing it.
	StartDelay time.Duration

	Clock clockwork.Clock

	// Dispatch runs timer callbacks on the goroutine that owns the
	// controller. It must not run them inline on the timer goroutine.
	Dispatch func(func())
}

// pendingOp is one remote-applied media change waiting for its event.
type pendingOp struct {
	kind  playback.EventKind
	timer clockwork.Timer
}

// Controller applies inbound sync messages to the local player and
// broadcasts genuine host changes. It is not safe for concurrent use; every
// method must be called from the owning loop.
type Controller struct {
	player Player
	sender Sender
	alerts Alerter
	cfg    Config

	role     Role
	state    State
	playback PlaybackState
	ended    bool

	pending    []*pendingOp
	startTimer clockwork.Timer
	startGen   int

	onChange []func()
}

func New(player Player, sender Sender, alerts Alerter, cfg Config) *Controller {
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.Dispatch == nil {
		panic("controller: Config.Dispatch is required")
	}

	return &Controller{
		player: player,
		sender: sender,
		alerts: alerts,
		cfg:    cfg,
	}
}

func (c *Controller) OnChange(fn func()) {
	c.onChange = append(c.onChange, fn)
}

func (c *Controller) changed() {
	for _, fn := range c.onChange {
		fn()
	}
}

func (c *Controller) Role() Role {
	return c.role
}

func (c *Controller) SetRole(r Role) {
	if c.role == r {
		return
	}

	logger.Log.Info("Role changed.", "from", c.role, "to", r)
	c.role = r
	c.changed()
}

func (c *Controller) State() State {
	return c.state
}

// Applying reports whether a remote-applied change is still settling.
func (c *Controller) Applying() bool {
	return len(c.pending) > 0
}

func (c *Controller) Playback() PlaybackState {
	return c.playback
}

// HandleMessage applies one inbound sync message. Messages are applied in
// delivery order without staleness checks.
func (c *Controller) HandleMessage(msg ws.Message) {
	switch m := msg.(type) {
	case ws.SongStarted:
		c.applySongStarted(m)
	case ws.SongPaused:
		if c.state == StateNoSong {
			logger.Log.Debug("Ignoring pause with no song loaded.")
			return
		}
		c.applySeek(m.CurrentTime)
		c.applyPause()
	case ws.SongResumed:
		if c.state == StateNoSong {
			logger.Log.Debug("Ignoring resume with no song loaded.")
			return
		}
		c.applySeek(m.CurrentTime)
		c.applyPlay()
	case ws.SyncPlayback:
		if c.state == StateNoSong {
			logger.Log.Debug("Ignoring sync with no song loaded.")
			return
		}
		c.applySeek(m.CurrentTime)
		if m.IsPlaying {
			c.applyPlay()
		} else {
			c.applyPause()
		}
	case ws.Error:
		if m.Message == queueEmptyNotice && c.ended {
			c.toNoSong()
		} else {
			return
		}
	default:
		return
	}

	c.changed()
}

// HandleMediaEvent receives every event the local player emits.
func (c *Controller) HandleMediaEvent(ev playback.Event) {
	switch ev.Kind {
	case playback.EventPlay, playback.EventPause, playback.EventSeeked:
		matched := c.consume(ev.Kind)
		c.playback.IsPlaying = !c.player.Paused()
		c.playback.CurrentTime = c.player.CurrentTime()

		switch {
		case matched || c.Applying():
			logger.Log.Debug("Suppressed echo of applied change.", "event", ev.Kind)
		case c.role != RoleHost:
			logger.Log.Debug("Not broadcasting guest media change.", "event", ev.Kind)
		case c.state == StateNoSong:
		default:
			c.broadcastSync()
		}
	case playback.EventTimeUpdate:
		if c.Applying() {
			return
		}
		c.playback.CurrentTime = c.player.CurrentTime()
	case playback.EventLoadedMetadata:
		logger.Log.Debug("Loaded song metadata.", "duration", c.player.Duration())
	case playback.EventEnded:
		c.ended = true
		c.playback.IsPlaying = false

		if c.role == RoleHost {
			logger.Log.Info("Song ended, requesting next song.")
			if err := c.sender.Send(ws.NextSong{}); err != nil {
				logger.Log.Debug("Failed to request next song.", "err", err)
			}
		}
	case playback.EventError:
		msg := ev.Err.Message()
		logger.Log.Error("Media playback failed.", "message", msg)
		if c.alerts != nil {
			c.alerts.Error(msg)
		}
	}

	c.changed()
}

// StartSong loads a song locally and broadcasts it to the room.
func (c *Controller) StartSong(songURL, title, artist string) error {
	if err := c.requireHost("start_song"); err != nil {
		return err
	}

	u, err := url.Parse(songURL)
	if songURL == "" || err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%w: %q is not an absolute url", ErrInvalidSong, songURL)
	}

	start := 0.0
	msg := ws.SongStarted{
		URL:         songURL,
		Title:       title,
		Artist:      artist,
		IsPlaying:   true,
		CurrentTime: &start,
	}

	c.applySongStarted(msg)
	c.changed()

	return c.sender.Send(msg)
}

// TogglePlayback asks the server to flip play state. The server answers
// every participant, the host included, with song_paused or song_resumed.
func (c *Controller) TogglePlayback() error {
	if err := c.requireHost("toggle_playback"); err != nil {
		return err
	}
	if c.state == StateNoSong {
		return ErrNoSong
	}

	return c.sender.Send(ws.TogglePlayback{})
}

func (c *Controller) Next() error {
	if err := c.requireHost("next_song"); err != nil {
		return err
	}

	return c.sender.Send(ws.NextSong{})
}

func (c *Controller) Previous() error {
	if err := c.requireHost("previous_song"); err != nil {
		return err
	}

	return c.sender.Send(ws.PreviousSong{})
}

// Seek moves the host's player and broadcasts the new position.
func (c *Controller) Seek(seconds float64) error {
	if err := c.requireHost("seek"); err != nil {
		return err
	}
	if c.state == StateNoSong {
		return ErrNoSong
	}
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		return fmt.Errorf("seek: invalid position %v", seconds)
	}

	c.expect(playback.EventSeeked)
	c.player.Seek(seconds)
	c.playback.CurrentTime = c.player.CurrentTime()
	c.changed()

	return c.broadcastSync()
}

// SeekPercent seeks to a fraction of the song's duration, as a click on
// the progress bar does.
func (c *Controller) SeekPercent(p float64) error {
	if err := c.requireHost("seek"); err != nil {
		return err
	}
	if c.state == StateNoSong {
		return ErrNoSong
	}
	if math.IsNaN(p) || p < 0 || p > 1 {
		return fmt.Errorf("seek: percent %v out of range", p)
	}

	d := c.player.Duration()
	if math.IsNaN(d) || math.IsInf(d, 0) || d <= 0 {
		return ErrUnknownDuration
	}

	return c.Seek(p * d)
}

// Reset stops all timers and forgets the loaded song.
func (c *Controller) Reset() {
	c.cancelStart()
	for _, op := range c.pending {
		op.timer.Stop()
	}
	c.pending = nil

	c.state = StateNoSong
	c.playback = PlaybackState{}
	c.ended = false
}

func (c *Controller) requireHost(action string) error {
	if c.role == RoleHost {
		return nil
	}

	logger.Log.Debug("Denied guest control action.", "action", action)
	return ErrNotHost
}

func (c *Controller) broadcastSync() error {
	at := c.player.CurrentTime()
	return c.sender.Send(ws.SyncPlayback{
		CurrentTime: &at,
		IsPlaying:   !c.player.Paused(),
	})
}

func (c *Controller) applySongStarted(m ws.SongStarted) {
	c.cancelStart()

	if m.URL == "" {
		logger.Log.Info("Song started without a playable url.")
		c.toNoSong()
		return
	}

	if !c.player.Load(m.URL, m.Title, m.Artist) {
		return
	}

	c.state = StateLoaded
	c.ended = false
	c.playback = PlaybackState{
		SongURL: m.URL,
		Title:   m.Title,
		Artist:  m.Artist,
	}

	c.applySeek(m.CurrentTime)

	if !m.IsPlaying {
		return
	}

	c.playback.IsPlaying = true
	c.startGen++
	gen := c.startGen
	c.startTimer = c.cfg.Clock.AfterFunc(c.cfg.StartDelay, func() {
		c.cfg.Dispatch(func() {
			if gen != c.startGen || c.state != StateLoaded {
				return
			}
			c.startTimer = nil
			c.applyPlay()
			c.changed()
		})
	})
}

func (c *Controller) applySeek(at *float64) {
	if at == nil || math.IsNaN(*at) || math.IsInf(*at, 0) {
		return
	}

	c.expect(playback.EventSeeked)
	c.player.Seek(*at)
	c.playback.CurrentTime = *at
}

func (c *Controller) applyPlay() {
	c.playback.IsPlaying = true
	if !c.player.Paused() {
		return
	}

	c.expect(playback.EventPlay)
	c.player.Play()
}

func (c *Controller) applyPause() {
	c.cancelStart()

	c.playback.IsPlaying = false
	if c.player.Paused() {
		return
	}

	c.expect(playback.EventPause)
	c.player.Pause()
}

func (c *Controller) toNoSong() {
	c.cancelStart()

	if !c.player.Paused() {
		c.expect(playback.EventPause)
	}
	c.player.Unload()

	c.state = StateNoSong
	c.playback = PlaybackState{}
	c.ended = false
}

func (c *Controller) cancelStart() {
	c.startGen++
	if c.startTimer != nil {
		c.startTimer.Stop()
		c.startTimer = nil
	}
}

// expect registers a media event the controller is about to cause. The
// guard holds until that event arrives or SettleDelay passes.
func (c *Controller) expect(kind playback.EventKind) {
	op := &pendingOp{kind: kind}
	op.timer = c.cfg.Clock.AfterFunc(c.cfg.SettleDelay, func() {
		c.cfg.Dispatch(func() {
			if c.remove(op) {
				logger.Log.Debug("Applied change settled without an event.", "event", kind)
				c.changed()
			}
		})
	})

	c.pending = append(c.pending, op)
}

func (c *Controller) consume(kind playback.EventKind) bool {
	for _, op := range c.pending {
		if op.kind == kind {
			op.timer.Stop()
			return c.remove(op)
		}
	}
	return false
}

func (c *Controller) remove(op *pendingOp) bool {
	for i, p := range c.pending {
		if p == op {
			c.pending = append(c.pending[:i], c.pending[i+1:]...)
			return true
		}
	}
	return false
}
