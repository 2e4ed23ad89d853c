package controller

import (
	"math"

	"github.com/MinnaSync/minna-listen/internal/playback"
)

type Role int

const (
	RoleGuest Role = iota
	RoleHost
)

func (r Role) String() string {
	if r == RoleHost {
		return "host"
	}
	return "guest"
}

func (r Role) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

func RoleFor(isHost bool) Role {
	if isHost {
		return RoleHost
	}
	return RoleGuest
}

type State int

const (
	StateNoSong State = iota
	StateLoaded
)

func (s State) String() string {
	if s == StateLoaded {
		return "loaded"
	}
	return "no_song"
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

type PlaybackState struct {
	CurrentTime float64 `json:"current_time"`
	IsPlaying   bool    `json:"is_playing"`
	SongURL     string  `json:"song_url,omitempty"`
	Title       string  `json:"title"`
	Artist      string  `json:"artist"`
}

// View is the player panel as the control surface renders it.
type View struct {
	Role            Role          `json:"role"`
	State           State         `json:"state"`
	Playback        PlaybackState `json:"playback"`
	Duration        float64       `json:"duration"`
	Elapsed         string        `json:"elapsed"`
	Total           string        `json:"total"`
	Progress        float64       `json:"progress"`
	ControlsEnabled bool          `json:"controls_enabled"`
	Applying        bool          `json:"applying"`
}

func (c *Controller) View() View {
	v := View{
		Role:            c.role,
		State:           c.state,
		Playback:        c.playback,
		Elapsed:         playback.FormatTime(c.playback.CurrentTime),
		Total:           "0:00",
		ControlsEnabled: c.role == RoleHost,
		Applying:        c.Applying(),
	}

	if c.state == StateNoSong {
		v.Elapsed = "0:00"
		return v
	}

	if d := c.player.Duration(); !math.IsNaN(d) && !math.IsInf(d, 0) && d > 0 {
		v.Duration = d
		v.Total = playback.FormatTime(d)
		v.Progress = math.Min(100, c.playback.CurrentTime/d*100)
	}

	return v
}
