package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// APIKeyAuth requires the X-API-Key header on every route it guards.
// Health endpoints stay open for probes.
func APIKeyAuth(expectedAPIKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.URL.Path == "/health" || c.Request.URL.Path == "/ready" {
			c.Next()
			return
		}

		if c.GetHeader("X-API-Key") != expectedAPIKey {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   "Unauthorized",
				"message": "Invalid or missing API key",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}
