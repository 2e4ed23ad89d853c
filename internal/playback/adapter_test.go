package playback

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMedia struct {
	src      string
	paused   bool
	position float64
	duration float64
	calls    []string
	handler  func(Event)
}

func newFakeMedia() *fakeMedia {
	return &fakeMedia{paused: true, duration: math.NaN()}
}

func (f *fakeMedia) SetSource(src string) { f.src = src; f.calls = append(f.calls, "src:"+src) }
func (f *fakeMedia) Play() error {
	f.calls = append(f.calls, "play")
	f.paused = false
	return nil
}
func (f *fakeMedia) Pause() { f.calls = append(f.calls, "pause"); f.paused = true }
func (f *fakeMedia) SetCurrentTime(s float64) {
	f.calls = append(f.calls, "seek")
	f.position = s
}
func (f *fakeMedia) CurrentTime() float64 { return f.position }
func (f *fakeMedia) Duration() float64 { return f.duration }
func (f *fakeMedia) Paused() bool { return f.paused }
func (f *fakeMedia) SetEventHandler(h func(Event)) { f.handler = h }

func TestAdapterLoadWithoutMedia(t *testing.T) {
	a := NewAdapter(nil)

	assert.False(t, a.Load("http://x.test/a.mp3", "A", "B"))
	assert.False(t, a.Bound())
	assert.Equal(t, Track{}, a.Track())
	assert.True(t, a.Paused())
	assert.Zero(t, a.CurrentTime())
	assert.True(t, math.IsNaN(a.Duration()))

	// No bound element: every call is a silent no-op.
	a.Play()
	a.Pause()
	a.Seek(3)
	a.Unload()
}

func TestAdapterLoadAndControl(t *testing.T) {
	m := newFakeMedia()
	a := NewAdapter(m)

	require.True(t, a.Load("http://x.test/a.mp3", "Song", "Artist"))
	assert.Equal(t, Track{URL: "http://x.test/a.mp3", Title: "Song", Artist: "Artist"}, a.Track())

	a.Play()
	assert.False(t, a.Paused())

	a.Seek(42)
	assert.Equal(t, 42.0, a.CurrentTime())

	a.Seek(math.NaN())
	assert.Equal(t, 42.0, a.CurrentTime())

	a.Pause()
	assert.True(t, a.Paused())

	assert.Equal(t, []string{"src:http://x.test/a.mp3", "play", "seek", "pause"}, m.calls)
}

func TestAdapterForwardsEvents(t *testing.T) {
	m := newFakeMedia()
	a := NewAdapter(m)

	var got []EventKind
	a.OnEvent(func(ev Event) { got = append(got, ev.Kind) })

	m.handler(Event{Kind: EventPlay})
	m.handler(Event{Kind: EventTimeUpdate})

	assert.Equal(t, []EventKind{EventPlay, EventTimeUpdate}, got)
}

func TestAdapterUnload(t *testing.T) {
	m := newFakeMedia()
	a := NewAdapter(m)
	a.Load("http://x.test/a.mp3", "Song", "Artist")

	a.Unload()

	assert.Equal(t, Track{}, a.Track())
	assert.Equal(t, "", m.src)
	assert.True(t, m.paused)
}

func TestMediaErrorMessages(t *testing.T) {
	assert.Equal(t, "Audio playback was aborted", (&MediaError{Code: MediaErrAborted}).Message())
	assert.Equal(t, "Network error while loading audio", (&MediaError{Code: MediaErrNetwork}).Message())
	assert.Equal(t, "Audio file format not supported or corrupted", (&MediaError{Code: MediaErrDecode}).Message())
	assert.Equal(t, "Audio source not supported. Please use direct MP3 links.", (&MediaError{Code: MediaErrSrcNotSupported}).Message())
	assert.Equal(t, "Unknown audio error", (&MediaError{Code: 99}).Message())

	var nilErr *MediaError
	assert.Equal(t, "Error playing audio", nilErr.Message())
}
