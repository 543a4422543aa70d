package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "whatsapp-bot",
		"time":    time.Now().Unix(),
	})
}

// Ready answers 200 only once the chat bridge reports a linked session.
func Ready(ready func() bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !ready() {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "waiting_for_bridge"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	}
}
