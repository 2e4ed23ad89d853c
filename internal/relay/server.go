package relay

import (
	"net/http"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/MinnaSync/minna-listen/internal/logger"
	"github.com/MinnaSync/minna-listen/internal/ws"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Server is an in-process room server speaking the listening room wire
// protocol and REST API.
type Server struct {
	mu    sync.Mutex
	users map[string]User
	rooms map[string]*Room

	engine *gin.Engine
}

func NewServer() *Server {
	s := &Server{
		users: make(map[string]User),
		rooms: make(map[string]*Room),
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.GET("/ws/rooms/:code/", s.handleSocket)
	r.GET("/rooms/api/rooms/:code/", s.handleRoom)
	r.POST("/rooms/api/rooms/:code/leave/", s.handleLeave)
	s.engine = r

	return s
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) AddUser(token string, id ws.ID, name string) User {
	u := User{ID: id, Name: name, Token: token}

	s.mu.Lock()
	s.users[token] = u
	s.mu.Unlock()

	return u
}

func (s *Server) CreateRoom(code string, host User, guests ...User) *Room {
	r := newRoom(code, host, guests...)

	s.mu.Lock()
	s.rooms[code] = r
	s.mu.Unlock()

	return r
}

func (s *Server) Room(code string) (*Room, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rooms[code]
	return r, ok
}

func (s *Server) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range s.rooms {
		r.Close()
	}
}

func (s *Server) user(token string) (User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[token]
	return u, ok && token != ""
}

func (s *Server) handleSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Log.Debug("Failed to upgrade relay connection.", "err", err)
		return
	}

	reject := func(code int) {
		client := &Client{conn: conn}
		client.kick(code, "")
		conn.ReadMessage()
		conn.Close()
	}

	user, ok := s.user(c.Query("token"))
	if !ok {
		reject(ws.CloseAuthFailed)
		return
	}

	room, ok := s.Room(c.Param("code"))
	if !ok {
		reject(ws.CloseNotFound)
		return
	}

	if !room.isMember(user) {
		reject(ws.CloseForbidden)
		return
	}

	client := newClient(user, conn, room)
	if !room.join(client) {
		reject(websocket.CloseGoingAway)
		return
	}

	go client.writePump()
	go client.readPump()
}

func (s *Server) viewer(c *gin.Context) (User, *Room, bool) {
	token := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
	user, ok := s.user(token)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"detail": "Authentication credentials were not provided."})
		return User{}, nil, false
	}

	room, ok := s.Room(c.Param("code"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Not found."})
		return User{}, nil, false
	}

	return user, room, true
}

func (s *Server) handleRoom(c *gin.Context) {
	user, room, ok := s.viewer(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, room.Snapshot(user))
}

func (s *Server) handleLeave(c *gin.Context) {
	user, room, ok := s.viewer(c)
	if !ok {
		return
	}

	if !room.removeMember(user) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "You are not in this room"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Left room successfully"})
}
