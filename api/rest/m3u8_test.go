package rest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const playlist = `#EXTM3U
#EXT-X-VERSION:3
#EXT-X-TARGETDURATION:10
#EXTINF:10.0,
seg0.aac
#EXTINF:5.0,
seg1.aac
#EXT-X-ENDLIST
`

func probeRouter(client *http.Client) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/probe/*url", Probe(client))
	return r
}

func TestProbePlaylist(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/song.m3u8" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(playlist))
	}))
	defer srv.Close()

	r := probeRouter(srv.Client())

	w := do(r, http.MethodGet, "/probe/"+srv.URL+"/song.m3u8", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var body struct {
		Duration  float64 `json:"duration"`
		Formatted string  `json:"formatted"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.InDelta(t, 15.0, body.Duration, 0.001)
	assert.Equal(t, "0:15", body.Formatted)

	w = do(r, http.MethodGet, "/probe/"+srv.URL+"/missing.m3u8", "")
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestProbeRejectsNonPlaylists(t *testing.T) {
	r := probeRouter(nil)

	w := do(r, http.MethodGet, "/probe/https://cdn.example/song.mp3", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodGet, "/probe/not-a-url", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
