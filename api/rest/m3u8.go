package rest

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/MinnaSync/minna-listen/internal/logger"
	"github.com/MinnaSync/minna-listen/internal/m3u8_duration"
	"github.com/MinnaSync/minna-listen/internal/playback"
)

// Probe reports the duration of an HLS playlist before it is queued.
func Probe(client *http.Client) gin.HandlerFunc {
	if client == nil {
		client = http.DefaultClient
	}

	return func(c *gin.Context) {
		rawUrl := strings.TrimPrefix(c.Param("url"), "/")
		parsedUrl, err := url.Parse(rawUrl)
		if err != nil || parsedUrl.Host == "" {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Invalid URL.",
			})
			return
		}

		if !m3u8_duration.IsPlaylist(parsedUrl.String()) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "URL is not an M3U8 playlist.",
			})
			return
		}

		duration, err := m3u8_duration.FetchM3u8Duration(c.Request.Context(), client, parsedUrl.String())
		if err != nil {
			logger.Log.Debug("Failed to probe playlist.", "url", parsedUrl.String(), "err", err)
			c.JSON(http.StatusBadGateway, gin.H{
				"error": "Failed to fetch M3U8 playlist.",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"url":       parsedUrl.String(),
			"duration":  duration,
			"formatted": playback.FormatTime(duration),
		})
	}
}
