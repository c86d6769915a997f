// file: internal/server/middleware/auth.go
// version: 1.1.0
// guid: 9f2b7c4d-3e8a-4d1f-b6c0-2a5e8d7f3b19

package middleware

import (
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"bookloft/internal/database"
)

const contextUserKey = "auth_user"

// CurrentUser fetches the authenticated user from Gin context.
func CurrentUser(c *gin.Context) (*database.User, bool) {
	if c == nil {
		return nil, false
	}
	value, ok := c.Get(contextUserKey)
	if !ok || value == nil {
		return nil, false
	}
	user, ok := value.(*database.User)
	return user, ok && user != nil
}

// TrustedHeader authenticates requests by the user name a trusted reverse
// proxy places in the configured header. The user row is created on first
// sight; requests without the header are rejected.
func TrustedHeader(store database.Store, header string) gin.HandlerFunc {
	return func(c *gin.Context) {
		name := strings.TrimSpace(c.GetHeader(header))
		if name == "" {
			c.String(http.StatusUnauthorized, "missing %s header", header)
			c.Abort()
			return
		}

		user, err := store.GetOrCreateUser(name)
		if err != nil {
			log.Printf("[ERROR] Failed to resolve user %q: %v", name, err)
			c.String(http.StatusInternalServerError, "failed to resolve user")
			c.Abort()
			return
		}

		c.Set(contextUserKey, user)
		c.Next()
	}
}
