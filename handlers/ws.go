package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

func WSUpgrader(c *gin.Context) {
	if !websocket.IsWebSocketUpgrade(c.Request) {
		c.AbortWithStatusJSON(http.StatusUpgradeRequired, gin.H{
			"error": "Upgrade Required",
		})
		return
	}

	c.Set("allowed", true)
	c.Next()
}
