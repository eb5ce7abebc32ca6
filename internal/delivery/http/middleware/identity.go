package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	// UserIDHeader carries the caller's id, set by the authenticating gateway.
	UserIDHeader = "X-User-ID"
	userIDKey    = "user_id"
)

// Identity copies the gateway-provided user id into the request context.
// Requests without it continue as anonymous.
func Identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		if id := strings.TrimSpace(c.GetHeader(UserIDHeader)); id != "" {
			c.Set(userIDKey, id)
		}
		c.Next()
	}
}

// RequireUser aborts anonymous requests with 401.
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if GetUserID(c) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Authentication required",
				"code":  "UNAUTHENTICATED",
			})
			return
		}
		c.Next()
	}
}

// GetUserID returns the authenticated user id, or "" for anonymous callers.
func GetUserID(c *gin.Context) string {
	return c.GetString(userIDKey)
}
