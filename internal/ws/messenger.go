package ws

import (
	"errors"
	"fmt"
	"sync"

	"github.com/MinnaSync/minna-listen/internal/logger"
)

// Transport is the live connection a Messenger writes through.
type Transport interface {
	IsOpen() bool
	TrySend(data []byte) error
}

// Messenger encodes outbound messages for a single room and decodes inbound
// frames for its subscribers. Nothing is queued while the transport is down.
type Messenger struct {
	roomCode string

	mu        sync.RWMutex
	transport Transport
	handlers  []func(Message)
}

func NewMessenger(roomCode string, t Transport) *Messenger {
	return &Messenger{
		roomCode:  roomCode,
		transport: t,
	}
}

func (m *Messenger) RoomCode() string {
	return m.roomCode
}

func (m *Messenger) Attach(t Transport) {
	m.mu.Lock()
	m.transport = t
	m.mu.Unlock()
}

func (m *Messenger) IsOpen() bool {
	m.mu.RLock()
	t := m.transport
	m.mu.RUnlock()

	return t != nil && t.IsOpen()
}

func (m *Messenger) Send(msg Message) error {
	m.mu.RLock()
	t := m.transport
	m.mu.RUnlock()

	if t == nil || !t.IsOpen() {
		logger.Log.Warn("Channel is not open, dropping message.", "type", msg.Type())
		return ErrTransportUnavailable
	}

	data, err := Encode(m.roomCode, msg)
	if err != nil {
		logger.Log.Error("Failed to encode message.", "type", msg.Type(), "err", err)
		return err
	}

	if err := t.TrySend(data); err != nil {
		logger.Log.Warn("Failed to send message.", "type", msg.Type(), "err", err)
		if errors.Is(err, ErrBackpressure) {
			return err
		}
		return fmt.Errorf("%w: %w", ErrTransportUnavailable, err)
	}

	logger.Log.Debug("Sent message.", "type", msg.Type())
	return nil
}

func (m *Messenger) OnMessage(h func(Message)) {
	m.mu.Lock()
	m.handlers = append(m.handlers, h)
	m.mu.Unlock()
}

// Deliver decodes a raw inbound frame and hands it to every subscriber.
// Malformed and unknown frames are logged and dropped.
func (m *Messenger) Deliver(data []byte) {
	msg, err := Decode(data)
	if err != nil {
		if errors.Is(err, ErrUnknownType) {
			logger.Log.Debug("Ignoring unhandled message.", "err", err)
		} else {
			logger.Log.Error("Dropping malformed message.", "err", err)
		}
		return
	}

	m.mu.RLock()
	handlers := append([]func(Message){}, m.handlers...)
	m.mu.RUnlock()

	for _, h := range handlers {
		h(msg)
	}
}
