package notify

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/MinnaSync/minna-listen/internal/logger"
)

type Severity string

const (
	SeveritySuccess Severity = "success"
	SeverityError   Severity = "error"
)

type Alert struct {
	ID        uuid.UUID `json:"id"`
	Message   string    `json:"message"`
	Severity  Severity  `json:"severity"`
	CreatedAt time.Time `json:"created_at"`
}

// Board holds the single visible alert. A new alert replaces the old one;
// success alerts dismiss themselves after the TTL, errors stay until
// replaced or dismissed.
type Board struct {
	clock clockwork.Clock
	ttl   time.Duration

	mu       sync.Mutex
	current  *Alert
	timer    clockwork.Timer
	onChange []func()
}

func NewBoard(clock clockwork.Clock, ttl time.Duration) *Board {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	return &Board{
		clock: clock,
		ttl:   ttl,
	}
}

func (b *Board) OnChange(fn func()) {
	b.mu.Lock()
	b.onChange = append(b.onChange, fn)
	b.mu.Unlock()
}

func (b *Board) Success(message string) {
	b.Show(message, SeveritySuccess)
}

func (b *Board) Error(message string) {
	b.Show(message, SeverityError)
}

func (b *Board) Show(message string, severity Severity) Alert {
	alert := Alert{
		ID:        uuid.New(),
		Message:   message,
		Severity:  severity,
		CreatedAt: b.clock.Now(),
	}

	b.mu.Lock()
	b.stopTimerLocked()
	b.current = &alert

	if severity == SeveritySuccess {
		id := alert.ID
		b.timer = b.clock.AfterFunc(b.ttl, func() {
			b.dismiss(id)
		})
	}
	b.mu.Unlock()

	logger.Log.Debug("Showing alert.", "severity", severity, "message", message)
	b.changed()

	return alert
}

func (b *Board) Current() (Alert, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.current == nil {
		return Alert{}, false
	}
	return *b.current, true
}

func (b *Board) Dismiss() {
	b.mu.Lock()
	b.stopTimerLocked()
	hadAlert := b.current != nil
	b.current = nil
	b.mu.Unlock()

	if hadAlert {
		b.changed()
	}
}

func (b *Board) dismiss(id uuid.UUID) {
	b.mu.Lock()
	if b.current == nil || b.current.ID != id {
		b.mu.Unlock()
		return
	}
	b.current = nil
	b.timer = nil
	b.mu.Unlock()

	b.changed()
}

func (b *Board) stopTimerLocked() {
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
}

func (b *Board) changed() {
	b.mu.Lock()
	fns := append([]func(){}, b.onChange...)
	b.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}
