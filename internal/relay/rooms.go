package relay

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/MinnaSync/minna-listen/internal/logger"
	"github.com/MinnaSync/minna-listen/internal/room"
	"github.com/MinnaSync/minna-listen/internal/ws"
)

// Room is a relay room. Membership and message handling run on a single
// goroutine; the playback fields are also read by the REST handlers.
type Room struct {
	id   uuid.UUID
	code string
	host User

	clients map[*Client]bool

	connect    chan *Client
	disconnect chan *Client
	inbound    chan inbound
	kick       chan kickRequest
	closed     chan struct{}
	closeOnce  sync.Once

	mu        sync.Mutex
	members   []User
	current   *Song
	isPlaying bool
	position  float64
	queue     []Song
	history   []Song
}

type kickRequest struct {
	userID ws.ID
	code   int
}

func newRoom(code string, host User, guests ...User) *Room {
	r := &Room{
		id:         uuid.New(),
		code:       code,
		host:       host,
		clients:    make(map[*Client]bool),
		connect:    make(chan *Client),
		disconnect: make(chan *Client),
		inbound:    make(chan inbound, 256),
		kick:       make(chan kickRequest),
		closed:     make(chan struct{}),
		members:    append([]User{host}, guests...),
	}

	go r.run()
	return r
}

func (r *Room) Code() string {
	return r.code
}

func (r *Room) isHost(u User) bool {
	return u.ID == r.host.ID
}

func (r *Room) isMember(u User) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, m := range r.members {
		if m.ID == u.ID {
			return true
		}
	}
	return false
}

func (r *Room) removeMember(u User) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, m := range r.members {
		if m.ID == u.ID {
			r.members = append(r.members[:i], r.members[i+1:]...)
			return true
		}
	}
	return false
}

// Enqueue appends a song to the queue without announcing it.
func (r *Room) Enqueue(songs ...Song) {
	r.mu.Lock()
	r.queue = append(r.queue, songs...)
	r.mu.Unlock()
}

// Kick closes every connection of the user with code.
func (r *Room) Kick(userID ws.ID, code int) {
	select {
	case r.kick <- kickRequest{userID: userID, code: code}:
	case <-r.closed:
	}
}

func (r *Room) Close() {
	r.closeOnce.Do(func() { close(r.closed) })
}

func (r *Room) join(c *Client) bool {
	select {
	case r.connect <- c:
		return true
	case <-r.closed:
		return false
	}
}

func (r *Room) leave(c *Client) {
	select {
	case r.disconnect <- c:
	case <-r.closed:
	}
}

func (r *Room) receive(in inbound) bool {
	select {
	case r.inbound <- in:
		return true
	case <-r.closed:
		return false
	}
}

func (r *Room) run() {
	for {
		select {
		case client := <-r.connect:
			r.clients[client] = true
			r.broadcast(ws.UserJoined{UserID: client.user.ID, Name: client.user.Name}, nil)
		case client := <-r.disconnect:
			if _, ok := r.clients[client]; ok {
				delete(r.clients, client)
				close(client.send)

				r.broadcast(ws.UserLeft{UserID: client.user.ID, Name: client.user.Name}, nil)
			}
		case in := <-r.inbound:
			if r.clients[in.client] {
				r.handle(in.client, in.data)
			}
		case req := <-r.kick:
			for client := range r.clients {
				if client.user.ID == req.userID {
					client.kick(req.code, "")
				}
			}
		case <-r.closed:
			for client := range r.clients {
				delete(r.clients, client)
				close(client.send)
			}
			return
		}
	}
}

func (r *Room) handle(c *Client, data []byte) {
	msg, err := ws.Decode(data)
	if err != nil {
		if errors.Is(err, ws.ErrUnknownType) {
			r.reply(c, ws.Error{Message: "Unknown message type: " + frameType(data)})
		}
		logger.Log.Debug("Relay dropped message.", "user", c.user.Name, "err", err)
		return
	}

	switch m := msg.(type) {
	case ws.Ping:
		r.reply(c, ws.Pong{Timestamp: m.Timestamp})
	case ws.ChatMessage:
		text := strings.TrimSpace(m.Message)
		if text == "" {
			return
		}
		r.broadcast(ws.ChatMessage{UserID: c.user.ID, Name: c.user.Name, Message: text}, nil)
	case ws.AddSong:
		r.addSong(c, m)
	case ws.TogglePlayback, ws.NextSong, ws.PreviousSong, ws.SongStarted:
		if !r.isHost(c.user) {
			r.reply(c, ws.Error{Message: "Only host can control playback"})
			return
		}
		r.control(c, msg)
	case ws.SyncPlayback:
		if !r.isHost(c.user) {
			return
		}

		r.mu.Lock()
		if m.CurrentTime != nil {
			r.position = *m.CurrentTime
		}
		r.isPlaying = m.IsPlaying
		r.mu.Unlock()

		m.Relayed = true
		r.broadcast(m, c)
	default:
		r.reply(c, ws.Error{Message: fmt.Sprintf("Unknown message type: %s", msg.Type())})
	}
}

func (r *Room) control(c *Client, msg ws.Message) {
	switch m := msg.(type) {
	case ws.TogglePlayback:
		r.mu.Lock()
		r.isPlaying = !r.isPlaying
		playing, at := r.isPlaying, r.position
		r.mu.Unlock()

		if playing {
			r.broadcast(ws.SongResumed{CurrentTime: &at}, nil)
		} else {
			r.broadcast(ws.SongPaused{CurrentTime: &at}, nil)
		}
	case ws.NextSong:
		r.mu.Lock()
		if len(r.queue) == 0 {
			r.mu.Unlock()
			r.reply(c, ws.Error{Message: "No songs in queue"})
			return
		}
		next := r.queue[0]
		r.queue = r.queue[1:]
		if r.current != nil {
			r.history = append(r.history, *r.current)
		}
		r.mu.Unlock()

		r.start(next, nil)
	case ws.PreviousSong:
		r.mu.Lock()
		if len(r.history) == 0 {
			r.mu.Unlock()
			r.reply(c, ws.Error{Message: "No previous song"})
			return
		}
		prev := r.history[len(r.history)-1]
		r.history = r.history[:len(r.history)-1]
		if r.current != nil {
			r.queue = append([]Song{*r.current}, r.queue...)
		}
		r.mu.Unlock()

		r.start(prev, nil)
	case ws.SongStarted:
		if m.URL == "" {
			return
		}

		r.mu.Lock()
		if r.current != nil {
			r.history = append(r.history, *r.current)
		}
		r.mu.Unlock()

		r.start(Song{Title: m.Title, Artist: m.Artist, URL: m.URL}, c)
	}
}

func (r *Room) addSong(c *Client, m ws.AddSong) {
	title := strings.TrimSpace(m.Title)
	artist := strings.TrimSpace(m.Artist)
	url := strings.TrimSpace(m.URL)

	if title == "" || url == "" {
		r.reply(c, ws.Error{Message: "Song title and URL are required"})
		return
	}
	if artist == "" {
		artist = "Unknown Artist"
	}
	song := Song{Title: title, Artist: artist, URL: url}

	r.mu.Lock()
	idle := r.current == nil
	if !idle {
		r.queue = append(r.queue, song)
	}
	r.mu.Unlock()

	if idle {
		r.start(song, nil)
		r.reply(c, ws.Success{Message: fmt.Sprintf("Now playing %q", title)})
		return
	}

	r.reply(c, ws.Success{Message: fmt.Sprintf("Added %q to queue", title)})
}

// start makes song current and announces it to everyone except skip.
func (r *Room) start(song Song, skip *Client) {
	r.mu.Lock()
	r.current = &song
	r.isPlaying = true
	r.position = 0
	r.mu.Unlock()

	at := 0.0
	r.broadcast(ws.SongStarted{
		URL:         song.URL,
		Title:       song.Title,
		Artist:      song.Artist,
		IsPlaying:   true,
		CurrentTime: &at,
	}, skip)
}

func (r *Room) reply(c *Client, msg ws.Message) {
	data, err := ws.Encode("", msg)
	if err != nil {
		return
	}

	select {
	case c.send <- data:
	default:
	}
}

func (r *Room) broadcast(msg ws.Message, skip *Client) {
	data, err := ws.Encode("", msg)
	if err != nil {
		return
	}

	for client := range r.clients {
		if client == skip {
			continue
		}

		select {
		case client.send <- data:
		default:
		}
	}
}

// Snapshot renders the room as the REST API does for viewer.
func (r *Room) Snapshot(viewer User) room.Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap := room.Snapshot{
		ID:               r.id,
		Code:             r.code,
		Name:             "Room " + r.code,
		Status:           "active",
		ParticipantCount: len(r.members),
		IsUserHost:       r.isHost(viewer),
		IsPlaying:        r.isPlaying,
		CurrentPosition:  r.position,
	}

	if r.current != nil {
		snap.CurrentSong = r.current.Title
		snap.CurrentArtist = r.current.Artist
	}

	for _, m := range r.members {
		role := "guest"
		if r.isHost(m) {
			role = "host"
		}
		snap.Participants = append(snap.Participants, room.Participant{
			User:     room.User{ID: m.ID, Name: m.Name},
			Role:     role,
			IsActive: true,
		})
	}

	return snap
}

func frameType(data []byte) string {
	var f struct {
		Type string `json:"type"`
	}
	_ = json.Unmarshal(data, &f)
	return f.Type
}
