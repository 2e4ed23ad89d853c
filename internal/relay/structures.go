package relay

import (
	"github.com/MinnaSync/minna-listen/internal/ws"
)

type User struct {
	ID    ws.ID
	Name  string
	Token string
}

type Song struct {
	Title  string `json:"title"`
	Artist string `json:"artist"`
	URL    string `json:"url"`
}

type inbound struct {
	client *Client
	data   []byte
}
