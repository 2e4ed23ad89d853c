package ws

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

type MessageType string

const (
	TypeSongStarted    MessageType = "song_started"
	TypeSongPaused     MessageType = "song_paused"
	TypeSongResumed    MessageType = "song_resumed"
	TypeSyncPlayback   MessageType = "sync_playback"
	TypePlaybackSynced MessageType = "playback_synced"
	TypeTogglePlayback MessageType = "toggle_playback"
	TypeNextSong       MessageType = "next_song"
	TypePreviousSong   MessageType = "previous_song"
	TypeAddSong        MessageType = "add_song"
	TypeChatMessage    MessageType = "chat_message"
	TypePing           MessageType = "ping"
	TypePong           MessageType = "pong"
	TypeUserJoined     MessageType = "user_joined"
	TypeUserLeft       MessageType = "user_left"
	TypeRoomUpdated    MessageType = "room_updated"
	TypeSuccess        MessageType = "success"
	TypeError          MessageType = "error"
)

var (
	ErrMalformedMessage = errors.New("malformed message")
	ErrUnknownType      = errors.New("unknown message type")
)

type Message interface {
	Type() MessageType
}

// SongStarted tells every participant to load a track. An empty URL means
// the queue has nothing to play.
type SongStarted struct {
	URL         string
	Title       string
	Artist      string
	IsPlaying   bool
	CurrentTime *float64
}

type SongPaused struct {
	CurrentTime *float64
}

type SongResumed struct {
	CurrentTime *float64
}

// SyncPlayback carries the host's position and play state. Relayed is set
// when the frame came back from the server as playback_synced.
type SyncPlayback struct {
	CurrentTime *float64
	IsPlaying   bool
	Relayed     bool
}

type TogglePlayback struct{}
type NextSong struct{}
type PreviousSong struct{}

type AddSong struct {
	Title  string
	Artist string
	URL    string
}

type ChatMessage struct {
	UserID  ID
	Name    string
	Message string
}

type Ping struct {
	Timestamp int64
}

type Pong struct {
	Timestamp int64
}

type UserJoined struct {
	UserID ID
	Name   string
}

type UserLeft struct {
	UserID ID
	Name   string
}

type RoomUpdated struct {
	Room json.RawMessage
}

type Success struct {
	Message string
}

type Error struct {
	Message string
}

func (SongStarted) Type() MessageType { return TypeSongStarted }
func (SongPaused) Type() MessageType { return TypeSongPaused }
func (SongResumed) Type() MessageType { return TypeSongResumed }
func (TogglePlayback) Type() MessageType { return TypeTogglePlayback }
func (NextSong) Type() MessageType { return TypeNextSong }
func (PreviousSong) Type() MessageType { return TypePreviousSong }
func (AddSong) Type() MessageType { return TypeAddSong }
func (ChatMessage) Type() MessageType { return TypeChatMessage }
func (Ping) Type() MessageType { return TypePing }
func (Pong) Type() MessageType { return TypePong }
func (UserJoined) Type() MessageType { return TypeUserJoined }
func (UserLeft) Type() MessageType { return TypeUserLeft }
func (RoomUpdated) Type() MessageType { return TypeRoomUpdated }
func (Success) Type() MessageType { return TypeSuccess }
func (Error) Type() MessageType { return TypeError }

func (m SyncPlayback) Type() MessageType {
	if m.Relayed {
		return TypePlaybackSynced
	}
	return TypeSyncPlayback
}

// ID is a participant id. The server sends integers, older rooms send strings.
type ID string

func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}

	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("user id: %w", err)
	}
	*id = ID(n.String())
	return nil
}

// MarshalJSON writes canonical integers as numbers and everything else,
// including "007" and "+5", as strings.
func (id ID) MarshalJSON() ([]byte, error) {
	if n, err := strconv.ParseInt(string(id), 10, 64); err == nil && strconv.FormatInt(n, 10) == string(id) {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

// frame is the flat wire shape shared by every message type.
type frame struct {
	Type          MessageType     `json:"type"`
	RoomCode      string          `json:"room_code,omitempty"`
	SongURL       *string         `json:"song_url,omitempty"`
	CurrentSong   string          `json:"current_song,omitempty"`
	CurrentArtist string          `json:"current_artist,omitempty"`
	SongTitle     string          `json:"song_title,omitempty"`
	Artist        string          `json:"artist,omitempty"`
	IsPlaying     *bool           `json:"is_playing,omitempty"`
	CurrentTime   *float64        `json:"current_time,omitempty"`
	SyncFromHost  bool            `json:"sync_from_host,omitempty"`
	Message       string          `json:"message,omitempty"`
	UserID        ID              `json:"user_id,omitempty"`
	Name          string          `json:"name,omitempty"`
	Timestamp     int64           `json:"timestamp,omitempty"`
	Room          json.RawMessage `json:"room,omitempty"`
}

// Encode renders m as a wire frame tagged with roomCode.
func Encode(roomCode string, m Message) ([]byte, error) {
	f := frame{Type: m.Type(), RoomCode: roomCode}

	switch msg := m.(type) {
	case SongStarted:
		f.CurrentSong = msg.Title
		f.CurrentArtist = msg.Artist
		f.IsPlaying = &msg.IsPlaying
		f.CurrentTime = msg.CurrentTime
		if msg.URL != "" {
			f.SongURL = &msg.URL
		}
	case SongPaused:
		f.CurrentTime = msg.CurrentTime
	case SongResumed:
		f.CurrentTime = msg.CurrentTime
	case SyncPlayback:
		f.CurrentTime = msg.CurrentTime
		f.IsPlaying = &msg.IsPlaying
		f.SyncFromHost = msg.Relayed
	case TogglePlayback, NextSong, PreviousSong:
	case AddSong:
		f.SongTitle = msg.Title
		f.Artist = msg.Artist
		f.SongURL = &msg.URL
	case ChatMessage:
		f.UserID = msg.UserID
		f.Name = msg.Name
		f.Message = msg.Message
	case Ping:
		f.Timestamp = msg.Timestamp
	case Pong:
		f.Timestamp = msg.Timestamp
	case UserJoined:
		f.UserID = msg.UserID
		f.Name = msg.Name
	case UserLeft:
		f.UserID = msg.UserID
		f.Name = msg.Name
	case RoomUpdated:
		f.Room = msg.Room
	case Success:
		f.Message = msg.Message
	case Error:
		f.Message = msg.Message
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownType, m)
	}

	return json.Marshal(f)
}

// Decode parses one inbound frame. Both sync_playback and playback_synced
// decode to SyncPlayback.
func Decode(data []byte) (Message, error) {
	var f frame
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}

	switch f.Type {
	case "":
		return nil, fmt.Errorf("%w: missing type", ErrMalformedMessage)
	case TypeSongStarted:
		msg := SongStarted{
			Title:       f.CurrentSong,
			Artist:      f.CurrentArtist,
			IsPlaying:   f.IsPlaying != nil && *f.IsPlaying,
			CurrentTime: f.CurrentTime,
		}
		if f.SongURL != nil {
			msg.URL = *f.SongURL
		}
		return msg, nil
	case TypeSongPaused:
		return SongPaused{CurrentTime: f.CurrentTime}, nil
	case TypeSongResumed:
		return SongResumed{CurrentTime: f.CurrentTime}, nil
	case TypeSyncPlayback, TypePlaybackSynced:
		return SyncPlayback{
			CurrentTime: f.CurrentTime,
			IsPlaying:   f.IsPlaying != nil && *f.IsPlaying,
			Relayed:     f.Type == TypePlaybackSynced,
		}, nil
	case TypeTogglePlayback:
		return TogglePlayback{}, nil
	case TypeNextSong:
		return NextSong{}, nil
	case TypePreviousSong:
		return PreviousSong{}, nil
	case TypeAddSong:
		msg := AddSong{Title: f.SongTitle, Artist: f.Artist}
		if f.SongURL != nil {
			msg.URL = *f.SongURL
		}
		return msg, nil
	case TypeChatMessage:
		return ChatMessage{UserID: f.UserID, Name: f.Name, Message: f.Message}, nil
	case TypePing:
		return Ping{Timestamp: f.Timestamp}, nil
	case TypePong:
		return Pong{Timestamp: f.Timestamp}, nil
	case TypeUserJoined:
		return UserJoined{UserID: f.UserID, Name: f.Name}, nil
	case TypeUserLeft:
		return UserLeft{UserID: f.UserID, Name: f.Name}, nil
	case TypeRoomUpdated:
		return RoomUpdated{Room: f.Room}, nil
	case TypeSuccess:
		return Success{Message: f.Message}, nil
	case TypeError:
		return Error{Message: f.Message}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, f.Type)
	}
}

// RoomCode extracts the room_code of a raw frame without decoding the body.
func RoomCode(data []byte) string {
	var f struct {
		RoomCode string `json:"room_code"`
	}
	_ = json.Unmarshal(data, &f)
	return f.RoomCode
}
