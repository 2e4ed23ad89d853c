package playback

import (
	"context"
	"errors"
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/MinnaSync/minna-listen/internal/logger"
	"github.com/MinnaSync/minna-listen/internal/m3u8_duration"
)

const probeTimeout = 15 * time.Second

var ErrNoSource = errors.New("no source")

// DurationProbe resolves the duration of a source in seconds. NaN means the
// duration is unknown.
type DurationProbe func(ctx context.Context, src string) (float64, error)

// HLSProbe measures HLS playlists; other sources report an unknown duration.
func HLSProbe(client *http.Client) DurationProbe {
	return func(ctx context.Context, src string) (float64, error) {
		if !m3u8_duration.IsPlaylist(src) {
			return math.NaN(), nil
		}
		return m3u8_duration.FetchM3u8Duration(ctx, client, src)
	}
}

// VirtualMedia is a clock-driven media primitive with no audio output. Its
// position advances with the clock while playing and it emits the same event
// sequence a browser media element would.
type VirtualMedia struct {
	mu sync.Mutex

	clock    clockwork.Clock
	probe    DurationProbe
	interval time.Duration

	src       string
	gen       int
	duration  float64
	position  float64
	resumedAt time.Time
	paused    bool

	stop    chan struct{}
	handler func(Event)
}

func NewVirtualMedia(clock clockwork.Clock, probe DurationProbe, interval time.Duration) *VirtualMedia {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if interval <= 0 {
		interval = 250 * time.Millisecond
	}

	return &VirtualMedia{
		clock:    clock,
		probe:    probe,
		interval: interval,
		duration: math.NaN(),
		paused:   true,
	}
}

func (v *VirtualMedia) SetEventHandler(h func(Event)) {
	v.mu.Lock()
	v.handler = h
	v.mu.Unlock()
}

func (v *VirtualMedia) emit(kinds ...EventKind) {
	v.mu.Lock()
	h := v.handler
	v.mu.Unlock()

	if h == nil {
		return
	}
	for _, k := range kinds {
		h(Event{Kind: k})
	}
}

func (v *VirtualMedia) SetSource(src string) {
	v.mu.Lock()
	v.stopTickerLocked()
	v.gen++
	gen := v.gen
	v.src = src
	v.position = 0
	v.paused = true
	v.duration = math.NaN()
	probe := v.probe
	v.mu.Unlock()

	if src == "" || probe == nil {
		return
	}

	go v.probeDuration(probe, src, gen)
}

func (v *VirtualMedia) probeDuration(probe DurationProbe, src string, gen int) {
	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	defer cancel()

	d, err := probe(ctx, src)

	v.mu.Lock()
	if v.gen != gen {
		v.mu.Unlock()
		return
	}
	h := v.handler
	if err == nil {
		v.duration = d
	}
	v.mu.Unlock()

	if h == nil {
		return
	}

	if err != nil {
		logger.Log.Debug("Failed to probe song duration.", "src", src, "err", err)
		h(Event{Kind: EventError, Err: &MediaError{Code: MediaErrNetwork, Err: err}})
		return
	}

	h(Event{Kind: EventLoadedMetadata})
}

func (v *VirtualMedia) Play() error {
	v.mu.Lock()
	if v.src == "" {
		v.mu.Unlock()
		return &MediaError{Code: MediaErrSrcNotSupported, Err: ErrNoSource}
	}
	if !v.paused {
		v.mu.Unlock()
		return nil
	}

	if !math.IsNaN(v.duration) && v.position >= v.duration {
		v.position = 0
	}
	v.paused = false
	v.resumedAt = v.clock.Now()
	v.startTickerLocked()
	v.mu.Unlock()

	v.emit(EventPlay)
	return nil
}

func (v *VirtualMedia) Pause() {
	v.mu.Lock()
	if v.paused {
		v.mu.Unlock()
		return
	}

	v.position = v.currentLocked()
	v.paused = true
	v.stopTickerLocked()
	v.mu.Unlock()

	v.emit(EventPause)
}

func (v *VirtualMedia) SetCurrentTime(seconds float64) {
	v.mu.Lock()
	if math.IsNaN(seconds) || seconds < 0 {
		seconds = 0
	}
	if !math.IsNaN(v.duration) && seconds > v.duration {
		seconds = v.duration
	}

	v.position = seconds
	v.resumedAt = v.clock.Now()
	v.mu.Unlock()

	v.emit(EventSeeked)
}

func (v *VirtualMedia) CurrentTime() float64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.currentLocked()
}

func (v *VirtualMedia) currentLocked() float64 {
	pos := v.position
	if !v.paused {
		pos += v.clock.Since(v.resumedAt).Seconds()
	}
	if !math.IsNaN(v.duration) && pos > v.duration {
		pos = v.duration
	}
	return pos
}

func (v *VirtualMedia) Duration() float64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.duration
}

func (v *VirtualMedia) Paused() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.paused
}

func (v *VirtualMedia) Source() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.src
}

// Close stops the progress ticker.
func (v *VirtualMedia) Close() {
	v.mu.Lock()
	v.stopTickerLocked()
	v.mu.Unlock()
}

func (v *VirtualMedia) startTickerLocked() {
	v.stopTickerLocked()

	stop := make(chan struct{})
	v.stop = stop
	ticker := v.clock.NewTicker(v.interval)

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.Chan():
				if !v.tick(stop) {
					return
				}
			case <-stop:
				return
			}
		}
	}()
}

func (v *VirtualMedia) stopTickerLocked() {
	if v.stop != nil {
		close(v.stop)
		v.stop = nil
	}
}

func (v *VirtualMedia) tick(stop chan struct{}) bool {
	v.mu.Lock()
	if v.stop != stop || v.paused {
		v.mu.Unlock()
		return false
	}

	if math.IsNaN(v.duration) || v.currentLocked() < v.duration {
		v.mu.Unlock()
		v.emit(EventTimeUpdate)
		return true
	}

	v.position = v.duration
	v.paused = true
	v.stopTickerLocked()
	v.mu.Unlock()

	v.emit(EventTimeUpdate, EventPause, EventEnded)
	return false
}
