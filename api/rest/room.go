package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (h *handler) Room(c *gin.Context) {
	c.JSON(http.StatusOK, h.session.View())
}

func (h *handler) Leave(c *gin.Context) {
	if err := h.session.Leave(c.Request.Context()); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{
			"error": "Failed to leave room.",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Left room successfully",
	})
}
