package session

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/MinnaSync/minna-listen/internal/controller"
	"github.com/MinnaSync/minna-listen/internal/logger"
	"github.com/MinnaSync/minna-listen/internal/ws"
)

var ErrNeedsConfirmation = errors.New("link does not look like a direct audio file")

var audioExtensions = []string{".mp3", ".wav", ".ogg", ".m4a", ".aac"}

type AddSongRequest struct {
	Title  string `json:"title"`
	Artist string `json:"artist"`
	URL    string `json:"url"`

	// Force queues links without a known audio extension.
	Force bool `json:"force"`
}

func (s *Session) TogglePlayback(ctx context.Context) error {
	return s.Do(ctx, s.ctrl.TogglePlayback)
}

func (s *Session) Next(ctx context.Context) error {
	return s.Do(ctx, s.ctrl.Next)
}

func (s *Session) Previous(ctx context.Context) error {
	return s.Do(ctx, s.ctrl.Previous)
}

func (s *Session) Seek(ctx context.Context, seconds float64) error {
	return s.Do(ctx, func() error {
		return s.ctrl.Seek(seconds)
	})
}

func (s *Session) SeekPercent(ctx context.Context, p float64) error {
	return s.Do(ctx, func() error {
		return s.ctrl.SeekPercent(p)
	})
}

func (s *Session) StartSong(ctx context.Context, url, title, artist string) error {
	return s.Do(ctx, func() error {
		return s.ctrl.StartSong(url, title, artist)
	})
}

// AddSong validates a song the way the add-song form does and queues it.
func (s *Session) AddSong(ctx context.Context, req AddSongRequest) error {
	return s.Do(ctx, func() error {
		title := strings.TrimSpace(req.Title)
		artist := strings.TrimSpace(req.Artist)
		url := strings.TrimSpace(req.URL)

		if artist == "" {
			artist = "Unknown Artist"
		}

		switch {
		case title == "":
			return s.reject("Song title is required")
		case url == "":
			return s.reject("Song URL is required")
		case strings.Contains(url, "youtube.com") || strings.Contains(url, "youtu.be"):
			return s.reject("YouTube URLs are not supported yet. Please use direct MP3 links for now.")
		}

		if !req.Force && !hasAudioExtension(url) {
			return ErrNeedsConfirmation
		}

		if !s.messenger.IsOpen() {
			s.alerts.Error("Not connected to room")
			return ws.ErrTransportUnavailable
		}

		logger.Log.Info("Adding song to queue.", "title", title, "artist", artist)
		return s.messenger.Send(ws.AddSong{Title: title, Artist: artist, URL: url})
	})
}

func (s *Session) SendChat(ctx context.Context, message string) error {
	return s.Do(ctx, func() error {
		text := strings.TrimSpace(message)
		if text == "" {
			return errors.New("chat message is empty")
		}

		if !s.messenger.IsOpen() {
			s.alerts.Error("Not connected to room")
			return ws.ErrTransportUnavailable
		}

		return s.messenger.Send(ws.ChatMessage{Message: text})
	})
}

// Leave closes the channel normally and tells the server the user left.
func (s *Session) Leave(ctx context.Context) error {
	s.channel.Disconnect()

	if err := s.rooms.Leave(ctx, s.cfg.RoomCode); err != nil {
		logger.Log.Error("Failed to leave room.", "room", s.cfg.RoomCode, "err", err)
		s.alerts.Error("Failed to leave room")
		return fmt.Errorf("leave room: %w", err)
	}

	s.alerts.Success("Left room successfully")
	return nil
}

func (s *Session) reject(message string) error {
	s.alerts.Error(message)
	return fmt.Errorf("%w: %s", controller.ErrInvalidSong, message)
}

func hasAudioExtension(url string) bool {
	lower := strings.ToLower(url)
	for _, ext := range audioExtensions {
		if strings.Contains(lower, ext) {
			return true
		}
	}
	return false
}
