// file: internal/server/covers.go
// version: 1.1.0
// guid: 1c7e9a4f-2b6d-4e8c-95a1-d3f0b8c62e74

package server

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// coverPath builds the on-disk location of a book's cover image.
func (s *Server) coverPath(userID, bookID string) string {
	return filepath.Join(s.cfg.Images.Dir, userID, bookID+".jpg")
}

// hasCover reports whether a cover image exists on disk.
func (s *Server) hasCover(userID, bookID string) bool {
	_, err := os.Stat(s.coverPath(userID, bookID))
	return err == nil
}

// saveCover decodes base64 image bytes and writes them under the images
// directory. An empty payload is a no-op.
func (s *Server) saveCover(userID, bookID, b64 string) error {
	if b64 == "" {
		return nil
	}
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return fmt.Errorf("failed to decode cover image: %w", err)
	}
	dir := filepath.Join(s.cfg.Images.Dir, userID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create image directory: %w", err)
	}
	if err := os.WriteFile(s.coverPath(userID, bookID), raw, 0o644); err != nil {
		return fmt.Errorf("failed to write cover image: %w", err)
	}
	return nil
}

// removeCover deletes a book's cover image if present.
func (s *Server) removeCover(userID, bookID string) error {
	err := os.Remove(s.coverPath(userID, bookID))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove cover image: %w", err)
	}
	return nil
}

// handleCover serves a cover image from disk. Both path segments must be
// UUIDs, which also rules out traversal.
func (s *Server) handleCover(c *gin.Context) {
	userID := c.Param("user")
	bookID := c.Param("book")
	if _, err := uuid.Parse(userID); err != nil {
		c.String(http.StatusBadRequest, "invalid user id")
		return
	}
	if _, err := uuid.Parse(bookID); err != nil {
		c.String(http.StatusBadRequest, "invalid book id")
		return
	}

	path := s.coverPath(userID, bookID)
	if _, err := os.Stat(path); err != nil {
		c.String(http.StatusNotFound, "no cover")
		return
	}
	c.File(path)
}
