package room

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/MinnaSync/minna-listen/internal/logger"
	"github.com/MinnaSync/minna-listen/internal/ws"
)

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotFound     = errors.New("room not found")
)

type User struct {
	ID   ws.ID  `json:"id"`
	Name string `json:"name"`
}

type Participant struct {
	User     User   `json:"user"`
	Role     string `json:"role"`
	IsActive bool   `json:"is_active"`
}

// Snapshot is the room as the REST API returns it.
type Snapshot struct {
	ID               uuid.UUID     `json:"id"`
	Code             string        `json:"code"`
	Name             string        `json:"name"`
	Description      string        `json:"description"`
	Status           string        `json:"status"`
	ParticipantCount int           `json:"participant_count"`
	IsUserHost       bool          `json:"is_user_host"`
	CurrentSong      string        `json:"current_song"`
	CurrentArtist    string        `json:"current_artist"`
	CurrentDuration  float64       `json:"current_duration"`
	CurrentPosition  float64       `json:"current_position"`
	IsPlaying        bool          `json:"is_playing"`
	Participants     []Participant `json:"participants_detail"`
}

type TokenSource interface {
	AccessToken() string
}

// Client talks to the room REST API.
type Client struct {
	baseURL string
	client  *http.Client
	tokens  TokenSource
}

func NewClient(baseURL string, tokens TokenSource) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		tokens: tokens,
	}
}

func (c *Client) SetTimeout(timeout time.Duration) {
	c.client.Timeout = timeout
}

func (c *Client) Get(ctx context.Context, code string) (Snapshot, error) {
	var snap Snapshot

	body, err := c.do(ctx, http.MethodGet, "/rooms/api/rooms/"+url.PathEscape(code)+"/")
	if err != nil {
		return snap, err
	}

	if err := json.Unmarshal(body, &snap); err != nil {
		return snap, fmt.Errorf("failed to decode room: %w", err)
	}
	return snap, nil
}

func (c *Client) Leave(ctx context.Context, code string) error {
	_, err := c.do(ctx, http.MethodPost, "/rooms/api/rooms/"+url.PathEscape(code)+"/leave/")
	return err
}

func (c *Client) do(ctx context.Context, method, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.tokens.AccessToken())

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, ErrUnauthorized
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		responseBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		logger.Log.Debug("Room API request failed.", "method", method, "endpoint", endpoint, "status", resp.StatusCode)
		return nil, fmt.Errorf("API returned status code: %d, response: %s", resp.StatusCode, string(responseBody))
	}

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return responseBody, nil
}
