// Package server contains HTTP and WebSocket handlers for the application's API endpoints.
package server

import (
	"strings"

	"chronicle/internal/models"

	"github.com/gofiber/fiber/v2"
)

// GetTags handles GET /api/tags, returning all tags ordered by popularity.
func (s *Server) GetTags(c *fiber.Ctx) error {
	tags, err := s.tagService.ListTags(c.UserContext())
	if err != nil {
		return models.RespondWithError(c, mapServiceError(err), err)
	}
	return c.JSON(tags)
}

// GetTagPosts handles GET /api/tags/:slug/posts
func (s *Server) GetTagPosts(c *fiber.Ctx) error {
	ctx := c.UserContext()
	slug := strings.TrimSpace(c.Params("slug"))
	if slug == "" {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid tag slug"))
	}

	page := parsePagination(c, 20)
	userID, _ := s.optionalUserID(c)

	tag, posts, err := s.postService.GetPostsByTagSlug(ctx, slug, userID, page.Limit, page.Offset)
	if err != nil {
		return models.RespondWithError(c, mapServiceError(err), err)
	}
	return c.JSON(fiber.Map{
		"tag":   tag,
		"posts": posts,
	})
}
