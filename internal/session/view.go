package session

import (
	"encoding/json"

	"github.com/google/uuid"

	"github.com/MinnaSync/minna-listen/internal/controller"
	"github.com/MinnaSync/minna-listen/internal/logger"
	"github.com/MinnaSync/minna-listen/internal/notify"
	"github.com/MinnaSync/minna-listen/internal/room"
	"github.com/MinnaSync/minna-listen/internal/ws"
)

const (
	maxChatLines = 50
	viewBuffer   = 16
)

type Participant struct {
	UserID ws.ID  `json:"user_id"`
	Name   string `json:"name"`
	Role   string `json:"role"`
}

type ChatLine struct {
	UserID  ws.ID  `json:"user_id"`
	Name    string `json:"name"`
	Message string `json:"message"`
}

type RoomView struct {
	ID               uuid.UUID `json:"id"`
	Code             string    `json:"code"`
	Name             string    `json:"name"`
	Description      string    `json:"description"`
	Status           string    `json:"status"`
	ParticipantCount int       `json:"participant_count"`
	CurrentSong      string    `json:"current_song"`
	CurrentArtist    string    `json:"current_artist"`
}

// View is everything the room page shows, rebuilt after each change.
type View struct {
	SessionID    uuid.UUID       `json:"session_id"`
	Room         RoomView        `json:"room"`
	Participants []Participant   `json:"participants"`
	Player       controller.View `json:"player"`
	Connection   notify.Status   `json:"connection"`
	Alert        *notify.Alert   `json:"alert,omitempty"`
	Chat         []ChatLine      `json:"chat"`
}

func (s *Session) View() View {
	s.viewMu.RLock()
	defer s.viewMu.RUnlock()

	return s.view
}

// Subscribe streams views until cancel is called. Slow subscribers miss
// intermediate views rather than blocking the session.
func (s *Session) Subscribe() (<-chan View, func()) {
	ch := make(chan View, viewBuffer)

	s.subMu.Lock()
	s.subs[ch] = struct{}{}
	s.subMu.Unlock()

	select {
	case ch <- s.View():
	default:
	}

	cancel := func() {
		s.subMu.Lock()
		if _, ok := s.subs[ch]; ok {
			delete(s.subs, ch)
			close(ch)
		}
		s.subMu.Unlock()
	}

	return ch, cancel
}

func (s *Session) publish() {
	v := s.buildView()

	s.viewMu.Lock()
	s.view = v
	s.viewMu.Unlock()

	s.subMu.Lock()
	defer s.subMu.Unlock()

	for ch := range s.subs {
		select {
		case ch <- v:
		default:
		}
	}
}

func (s *Session) buildView() View {
	v := View{
		SessionID: s.id,
		Room: RoomView{
			ID:               s.room.ID,
			Code:             s.cfg.RoomCode,
			Name:             s.room.Name,
			Description:      s.room.Description,
			Status:           s.room.Status,
			ParticipantCount: s.room.ParticipantCount,
			CurrentSong:      s.room.CurrentSong,
			CurrentArtist:    s.room.CurrentArtist,
		},
		Participants: append([]Participant{}, s.participants...),
		Player:       s.ctrl.View(),
		Connection:   s.status.Get(),
		Chat:         append([]ChatLine{}, s.chat...),
	}

	if track := s.ctrl.Playback(); track.Title != "" {
		v.Room.CurrentSong = track.Title
		v.Room.CurrentArtist = track.Artist
	}
	if v.Room.CurrentSong != "" && v.Room.CurrentArtist == "" {
		v.Room.CurrentArtist = "Unknown Artist"
	}

	if alert, ok := s.alerts.Current(); ok {
		v.Alert = &alert
	}

	return v
}

func (s *Session) applySnapshot(snap room.Snapshot) {
	s.room = snap

	s.participants = s.participants[:0]
	for _, p := range snap.Participants {
		s.participants = append(s.participants, Participant{
			UserID: p.User.ID,
			Name:   p.User.Name,
			Role:   p.Role,
		})
	}

	s.ctrl.SetRole(controller.RoleFor(snap.IsUserHost))
}

func (s *Session) roomUpdated(m ws.RoomUpdated) {
	if len(m.Room) == 0 {
		return
	}

	var snap room.Snapshot
	if err := json.Unmarshal(m.Room, &snap); err != nil {
		logger.Log.Error("Dropping malformed room update.", "err", err)
		return
	}

	s.applySnapshot(snap)
}

func (s *Session) findParticipant(id ws.ID) int {
	for i, p := range s.participants {
		if p.UserID == id {
			return i
		}
	}
	return -1
}

func (s *Session) userJoined(m ws.UserJoined) {
	if s.findParticipant(m.UserID) >= 0 {
		return
	}

	s.participants = append(s.participants, Participant{UserID: m.UserID, Name: m.Name, Role: "guest"})
	s.room.ParticipantCount++
	s.alerts.Success(m.Name + " joined the room")
}

func (s *Session) userLeft(m ws.UserLeft) {
	i := s.findParticipant(m.UserID)
	if i < 0 {
		return
	}

	s.participants = append(s.participants[:i], s.participants[i+1:]...)
	s.room.ParticipantCount--
	s.alerts.Success(m.Name + " left the room")
}
