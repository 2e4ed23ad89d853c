package notify

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

type ConnState string

const (
	ConnConnecting   ConnState = "connecting"
	ConnConnected    ConnState = "connected"
	ConnDisconnected ConnState = "disconnected"
)

type Status struct {
	State   ConnState `json:"state"`
	Text    string    `json:"text"`
	Visible bool      `json:"visible"`
}

// StatusLine is the connection indicator. "connected" hides itself after
// the TTL; every other state stays visible.
type StatusLine struct {
	clock clockwork.Clock
	ttl   time.Duration

	mu       sync.Mutex
	status   Status
	timer    clockwork.Timer
	gen      int
	onChange []func()
}

func NewStatusLine(clock clockwork.Clock, ttl time.Duration) *StatusLine {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	return &StatusLine{
		clock:  clock,
		ttl:    ttl,
		status: Status{State: ConnDisconnected, Text: "Disconnected", Visible: true},
	}
}

func (s *StatusLine) OnChange(fn func()) {
	s.mu.Lock()
	s.onChange = append(s.onChange, fn)
	s.mu.Unlock()
}

func (s *StatusLine) Set(state ConnState, text string) {
	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.gen++
	s.status = Status{State: state, Text: text, Visible: true}

	if state == ConnConnected {
		gen := s.gen
		s.timer = s.clock.AfterFunc(s.ttl, func() {
			s.hide(gen)
		})
	}
	s.mu.Unlock()

	s.changed()
}

func (s *StatusLine) Get() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.status
}

func (s *StatusLine) hide(gen int) {
	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return
	}
	s.status.Visible = false
	s.timer = nil
	s.mu.Unlock()

	s.changed()
}

func (s *StatusLine) changed() {
	s.mu.Lock()
	fns := append([]func(){}, s.onChange...)
	s.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}
