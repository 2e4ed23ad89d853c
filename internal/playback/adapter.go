package playback

import (
	"math"

	"github.com/MinnaSync/minna-listen/internal/logger"
)

type Track struct {
	URL    string `json:"song_url"`
	Title  string `json:"title"`
	Artist string `json:"artist"`
}

// Adapter wraps a Media primitive with song metadata. It forwards every
// media event unfiltered; deciding which events are genuine user actions is
// left to the owner of the feedback guard.
type Adapter struct {
	media   Media
	track   Track
	handler func(Event)
}

func NewAdapter(media Media) *Adapter {
	a := &Adapter{}
	a.Bind(media)
	return a
}

func (a *Adapter) Bind(media Media) {
	a.media = media
	if media != nil {
		media.SetEventHandler(a.emit)
	}
}

func (a *Adapter) Bound() bool {
	return a.media != nil
}

func (a *Adapter) OnEvent(h func(Event)) {
	a.handler = h
}

func (a *Adapter) emit(ev Event) {
	if h := a.handler; h != nil {
		h(ev)
	}
}

// Load sets the source and metadata. It reports false when no media
// primitive is bound.
func (a *Adapter) Load(url, title, artist string) bool {
	if a.media == nil {
		logger.Log.Error("Cannot load song. No media element is bound.", "url", url)
		return false
	}

	a.media.SetSource(url)
	a.track = Track{URL: url, Title: title, Artist: artist}

	return true
}

func (a *Adapter) Unload() {
	a.track = Track{}
	if a.media == nil {
		return
	}

	a.media.Pause()
	a.media.SetSource("")
}

func (a *Adapter) Play() {
	if a.media == nil {
		return
	}

	if err := a.media.Play(); err != nil {
		logger.Log.Debug("Play request was rejected.", "err", err)
	}
}

func (a *Adapter) Pause() {
	if a.media == nil {
		return
	}

	a.media.Pause()
}

func (a *Adapter) Seek(seconds float64) {
	if a.media == nil || math.IsNaN(seconds) {
		return
	}

	a.media.SetCurrentTime(seconds)
}

func (a *Adapter) Track() Track {
	return a.track
}

func (a *Adapter) CurrentTime() float64 {
	if a.media == nil {
		return 0
	}
	return a.media.CurrentTime()
}

func (a *Adapter) Duration() float64 {
	if a.media == nil {
		return math.NaN()
	}
	return a.media.Duration()
}

func (a *Adapter) Paused() bool {
	if a.media == nil {
		return true
	}
	return a.media.Paused()
}
