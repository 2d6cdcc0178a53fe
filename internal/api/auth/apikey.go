package auth

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
)

// HeaderAPIKey carries the admin API key.
const HeaderAPIKey = "X-API-Key"

// RequireAPIKey returns a middleware that checks the X-API-Key header.
// Without a configured key the API is read-only: safe methods pass, everything else is forbidden.
func RequireAPIKey(apiKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if apiKey == "" {
			if c.Request.Method == http.MethodGet || c.Request.Method == http.MethodHead {
				c.Next()
				return
			}
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"success": false, "error": "API key not configured"})
			return
		}

		if subtle.ConstantTimeCompare([]byte(c.GetHeader(HeaderAPIKey)), []byte(apiKey)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Invalid API key"})
			return
		}
		c.Next()
	}
}
