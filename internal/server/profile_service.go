// file: internal/server/profile_service.go
// version: 1.1.0
// guid: 2a6e8d3f-4b9c-4e1a-8f5d-7c0b3a9e2d64

package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// handleProfile renders the profile page with the public-report toggle.
func (s *Server) handleProfile(c *gin.Context) {
	user, ok := mustUser(c)
	if !ok {
		return
	}

	c.HTML(http.StatusOK, "profile.html", gin.H{
		"User":      user,
		"PublicURL": "/public/" + user.ID + "/ongoing",
	})
}

// handleProfileUpdate toggles public visibility of the ongoing report.
func (s *Server) handleProfileUpdate(c *gin.Context) {
	user, ok := mustUser(c)
	if !ok {
		return
	}

	public := c.PostForm("public_ongoing") != ""
	if err := s.store.SetUserPublicOngoing(user.ID, public); err != nil {
		renderError(c, http.StatusInternalServerError, "failed to update profile", err)
		return
	}

	c.Redirect(http.StatusSeeOther, "/profile")
}
