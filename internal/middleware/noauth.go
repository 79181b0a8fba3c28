package middleware

import "github.com/gin-gonic/gin"

// NoAuth is a pass-through middleware for AuthMode=none (self-hosted,
// local development). It attaches a fixed anonymous user id for logging.
func NoAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("user_id", "anonymous")
		c.Next()
	}
}
