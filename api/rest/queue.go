package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/MinnaSync/minna-listen/internal/session"
)

type chatRequest struct {
	Message string `json:"message" binding:"required"`
}

func (h *handler) Queue(c *gin.Context) {
	var req session.AddSongRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid song.",
		})
		return
	}

	h.done(c, h.session.AddSong(c.Request.Context(), req))
}

func (h *handler) Chat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Message is required.",
		})
		return
	}

	h.done(c, h.session.SendChat(c.Request.Context(), req.Message))
}
