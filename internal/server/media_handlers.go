// Package server contains HTTP and WebSocket handlers for the application's API endpoints.
package server

import (
	"strings"

	"chronicle/internal/models"

	"github.com/gofiber/fiber/v2"
)

// ServeMedia handles GET /media/i/:id/:file, serving stored post images
// directly from the media host's upload directory.
func (s *Server) ServeMedia(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	file := strings.TrimSpace(c.Params("file"))

	path, err := s.mediaHost.ResolveForServing(id, file)
	if err != nil {
		return models.RespondWithError(c, mapServiceError(err), err)
	}

	// Content hashes never change, so clients may cache aggressively.
	c.Set("Cache-Control", "public, max-age=31536000, immutable")
	return c.SendFile(path)
}
