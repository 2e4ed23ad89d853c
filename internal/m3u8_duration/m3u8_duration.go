package m3u8_duration

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/etherlabsio/go-m3u8/m3u8"
)

// Master playlists are followed at most this many levels deep.
const maxDepth = 3

var ErrNoVariant = errors.New("master playlist has no variant")

// IsPlaylist reports whether u looks like an HLS playlist URL.
func IsPlaylist(u string) bool {
	parsed, err := url.Parse(u)
	if err != nil {
		return false
	}

	return strings.HasSuffix(strings.ToLower(parsed.Path), ".m3u8")
}

func FetchM3u8Duration(ctx context.Context, client *http.Client, u string) (float64, error) {
	if client == nil {
		client = http.DefaultClient
	}

	return fetch(ctx, client, u, 0)
}

func fetch(ctx context.Context, client *http.Client, u string, depth int) (float64, error) {
	base, err := url.Parse(u)
	if err != nil {
		return 0, fmt.Errorf("parse playlist url: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base.String(), nil)
	if err != nil {
		return 0, err
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("fetch playlist: unexpected status %d", resp.StatusCode)
	}

	playlist, err := m3u8.Read(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("read playlist: %w", err)
	}

	if !playlist.IsMaster() {
		return playlist.Duration(), nil
	}

	if depth >= maxDepth {
		return 0, fmt.Errorf("master playlist nesting exceeds %d", maxDepth)
	}

	for _, item := range playlist.Items {
		switch item := item.(type) {
		case *m3u8.PlaylistItem:
			ref, err := url.Parse(item.URI)
			if err != nil {
				return 0, fmt.Errorf("parse variant uri: %w", err)
			}

			return fetch(ctx, client, base.ResolveReference(ref).String(), depth+1)
		}
	}

	return 0, ErrNoVariant
}
