// file: internal/server/error_handler.go
// version: 1.2.0
// guid: 3b8d5f2a-7c1e-4a9d-b4f6-8e2c0a5d7b93

package server

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"bookloft/internal/server/middleware"
)

// renderError logs the underlying error server-side and renders a generic
// failure page. Internal detail never reaches the client.
func renderError(c *gin.Context, status int, message string, err error) {
	if err != nil {
		log.Printf("[ERROR] %s %s: %s: %v", c.Request.Method, c.Request.URL.Path, message, err)
	} else {
		log.Printf("[ERROR] %s %s: %s", c.Request.Method, c.Request.URL.Path, message)
	}
	user, _ := middleware.CurrentUser(c)
	c.HTML(status, "error.html", gin.H{
		"User":    user,
		"Message": message,
	})
	c.Abort()
}

// renderNotFound renders the not-found page for a missing resource. This is
// a normal outcome, not a failure, so nothing is logged at error level.
func renderNotFound(c *gin.Context, resource string) {
	user, _ := middleware.CurrentUser(c)
	c.HTML(http.StatusNotFound, "not_found.html", gin.H{
		"User":     user,
		"Resource": resource,
	})
	c.Abort()
}
