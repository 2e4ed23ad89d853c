package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type seekRequest struct {
	Time    *float64 `json:"time"`
	Percent *float64 `json:"percent"`
}

type startRequest struct {
	URL    string `json:"url" binding:"required"`
	Title  string `json:"title"`
	Artist string `json:"artist"`
}

func (h *handler) Toggle(c *gin.Context) {
	h.done(c, h.session.TogglePlayback(c.Request.Context()))
}

func (h *handler) Next(c *gin.Context) {
	h.done(c, h.session.Next(c.Request.Context()))
}

func (h *handler) Previous(c *gin.Context) {
	h.done(c, h.session.Previous(c.Request.Context()))
}

// Seek accepts either an absolute time in seconds or a fraction of the
// song, as a progress bar click sends.
func (h *handler) Seek(c *gin.Context) {
	var req seekRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid seek request.",
		})
		return
	}

	switch {
	case req.Time != nil:
		h.done(c, h.session.Seek(c.Request.Context(), *req.Time))
	case req.Percent != nil:
		h.done(c, h.session.SeekPercent(c.Request.Context(), *req.Percent))
	default:
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Either time or percent is required.",
		})
	}
}

func (h *handler) Start(c *gin.Context) {
	var req startRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Song URL is required.",
		})
		return
	}

	h.done(c, h.session.StartSong(c.Request.Context(), req.URL, req.Title, req.Artist))
}
