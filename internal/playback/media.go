package playback

import "fmt"

type EventKind int

const (
	EventPlay EventKind = iota
	EventPause
	EventSeeked
	EventTimeUpdate
	EventLoadedMetadata
	EventEnded
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventPlay:
		return "play"
	case EventPause:
		return "pause"
	case EventSeeked:
		return "seeked"
	case EventTimeUpdate:
		return "timeupdate"
	case EventLoadedMetadata:
		return "loadedmetadata"
	case EventEnded:
		return "ended"
	case EventError:
		return "error"
	default:
		return fmt.Sprintf("event(%d)", int(k))
	}
}

// Event is a state change reported by a Media primitive.
type Event struct {
	Kind EventKind
	Err  *MediaError
}

// Media is the playback primitive the adapter drives. Implementations
// report state changes through the registered handler; the handler may be
// invoked from any goroutine.
type Media interface {
	SetSource(src string)
	Play() error
	Pause()
	SetCurrentTime(seconds float64)

	CurrentTime() float64
	Duration() float64
	Paused() bool

	SetEventHandler(h func(Event))
}

type MediaErrorCode int

const (
	MediaErrAborted MediaErrorCode = iota + 1
	MediaErrNetwork
	MediaErrDecode
	MediaErrSrcNotSupported
)

type MediaError struct {
	Code MediaErrorCode
	Err  error
}

func (e *MediaError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("media error %d: %v", e.Code, e.Err)
	}
	return fmt.Sprintf("media error %d", e.Code)
}

func (e *MediaError) Unwrap() error {
	return e.Err
}

// Message is the text shown to the user for this error.
func (e *MediaError) Message() string {
	if e == nil {
		return "Error playing audio"
	}

	switch e.Code {
	case MediaErrAborted:
		return "Audio playback was aborted"
	case MediaErrNetwork:
		return "Network error while loading audio"
	case MediaErrDecode:
		return "Audio file format not supported or corrupted"
	case MediaErrSrcNotSupported:
		return "Audio source not supported. Please use direct MP3 links."
	default:
		return "Unknown audio error"
	}
}
