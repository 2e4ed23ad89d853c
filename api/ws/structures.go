package ws

import "encoding/json"

// Message is a frame sent to a control surface client.
type Message struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// Command is a frame received from a control surface client. Data is decoded
// once the event is known.
type Command struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type CommandFailed struct {
	// The event that failed.
	Event string `json:"event"`

	// Why it failed.
	Message string `json:"message"`
}

type ClientSeek struct {
	// Absolute position in seconds.
	Time *float64 `json:"time"`

	// Position as a fraction of the song, used when Time is absent.
	Percent *float64 `json:"percent"`
}

type ClientStartSong struct {
	URL    string `json:"url"`
	Title  string `json:"title"`
	Artist string `json:"artist"`
}

type ClientSendMessage struct {
	// The message that was sent from the client
	Message string `json:"message"`
}
