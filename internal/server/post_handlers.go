// Package server contains HTTP and WebSocket handlers for the application's API endpoints.
package server

import (
	"io"
	"mime/multipart"
	"strconv"
	"strings"
	"time"

	"chronicle/internal/models"
	"chronicle/internal/service"

	"github.com/gofiber/fiber/v2"
)

// postPayload is the transport-agnostic shape of a post create/update request.
// Nil pointers mean the field was absent; this matters for tags, where an
// absent field keeps existing tags but an empty list clears them.
type postPayload struct {
	Content     *string
	Description *string
	IsPublic    *bool
	Tags        *[]string
	Image       *service.UploadInput
	RemoveImage bool
}

// parsePostPayload accepts either a JSON body or a multipart form (the latter
// carries the optional image file).
func parsePostPayload(c *fiber.Ctx) (*postPayload, error) {
	if strings.HasPrefix(c.Get("Content-Type"), "multipart/form-data") {
		return parsePostMultipart(c)
	}

	var req struct {
		Content     *string   `json:"content"`
		Description *string   `json:"description"`
		IsPublic    *bool     `json:"is_public"`
		Tags        *[]string `json:"tags"`
		RemoveImage bool      `json:"remove_image"`
	}
	if err := c.BodyParser(&req); err != nil {
		return nil, models.NewValidationError("Invalid request body")
	}
	return &postPayload{
		Content:     req.Content,
		Description: req.Description,
		IsPublic:    req.IsPublic,
		Tags:        req.Tags,
		RemoveImage: req.RemoveImage,
	}, nil
}

func parsePostMultipart(c *fiber.Ctx) (*postPayload, error) {
	form, err := c.MultipartForm()
	if err != nil {
		return nil, models.NewValidationError("Invalid multipart form")
	}

	p := &postPayload{}
	if vals, ok := form.Value["content"]; ok && len(vals) > 0 {
		p.Content = &vals[0]
	}
	if vals, ok := form.Value["description"]; ok && len(vals) > 0 {
		p.Description = &vals[0]
	}
	if vals, ok := form.Value["is_public"]; ok && len(vals) > 0 {
		if parsed, parseErr := strconv.ParseBool(vals[0]); parseErr == nil {
			p.IsPublic = &parsed
		}
	}
	if vals, ok := form.Value["tags"]; ok {
		// Tags may repeat or arrive comma-separated within a single value.
		tags := make([]string, 0, len(vals))
		for _, v := range vals {
			for _, t := range strings.Split(v, ",") {
				if t = strings.TrimSpace(t); t != "" {
					tags = append(tags, t)
				}
			}
		}
		p.Tags = &tags
	}
	if vals, ok := form.Value["remove_image"]; ok && len(vals) > 0 {
		p.RemoveImage, _ = strconv.ParseBool(vals[0])
	}

	if files, ok := form.File["image"]; ok && len(files) > 0 {
		upload, readErr := readUpload(files[0])
		if readErr != nil {
			return nil, readErr
		}
		p.Image = upload
	}
	return p, nil
}

func readUpload(file *multipart.FileHeader) (*service.UploadInput, error) {
	src, err := file.Open()
	if err != nil {
		return nil, models.NewValidationError("Unable to read uploaded file")
	}
	defer func() { _ = src.Close() }()

	content, err := io.ReadAll(src)
	if err != nil {
		return nil, models.NewValidationError("Unable to read uploaded file")
	}
	return &service.UploadInput{
		Filename:    file.Filename,
		ContentType: file.Header.Get("Content-Type"),
		Content:     content,
	}, nil
}

// CreatePost handles POST /api/posts
func (s *Server) CreatePost(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := c.Locals("userID").(uint)

	payload, err := parsePostPayload(c)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest, err)
	}

	in := service.CreatePostInput{
		UserID:   userID,
		IsPublic: payload.IsPublic,
		Image:    payload.Image,
	}
	if payload.Content != nil {
		in.Content = *payload.Content
	}
	if payload.Description != nil {
		in.Description = *payload.Description
	}
	if payload.Tags != nil {
		in.Tags = *payload.Tags
		in.TagsProvided = true
	}

	post, err := s.postService.CreatePost(ctx, in)
	if err != nil {
		return models.RespondWithError(c, mapServiceError(err), err)
	}

	s.publishBroadcastEvent(EventPostCreated, map[string]interface{}{
		"post_id":    post.ID,
		"author_id":  post.UserID,
		"created_at": time.Now().UTC().Format(time.RFC3339Nano),
	})

	return c.Status(fiber.StatusCreated).JSON(post)
}

// GetPosts handles GET /api/posts
func (s *Server) GetPosts(c *fiber.Ctx) error {
	ctx := c.UserContext()
	page := parsePagination(c, 20)
	userID, _ := s.optionalUserID(c)

	posts, err := s.postService.ListPosts(ctx, userID, page.Limit, page.Offset)
	if err != nil {
		return models.RespondWithError(c, mapServiceError(err), err)
	}

	return c.JSON(posts)
}

// SearchPosts handles GET /api/posts/search?q=...
func (s *Server) SearchPosts(c *fiber.Ctx) error {
	ctx := c.UserContext()
	q := c.Query("q")
	page := parsePagination(c, 10)
	userID, _ := s.optionalUserID(c)

	posts, err := s.postService.SearchPosts(ctx, q, userID, page.Limit, page.Offset)
	if err != nil {
		return models.RespondWithError(c, mapServiceError(err), err)
	}

	return c.JSON(posts)
}

// GetPost handles GET /api/posts/:id
func (s *Server) GetPost(c *fiber.Ctx) error {
	ctx := c.UserContext()
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	userID, _ := s.optionalUserID(c)

	post, err := s.postService.GetPost(ctx, id, userID)
	if err != nil {
		return models.RespondWithError(c, mapServiceError(err), err)
	}

	return c.JSON(post)
}

// GetUserPosts handles GET /api/users/:id/posts
func (s *Server) GetUserPosts(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userIDParam, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	page := parsePagination(c, 20)
	currentUserID, _ := s.optionalUserID(c)

	posts, err := s.postService.GetUserPosts(ctx, userIDParam, currentUserID, page.Limit, page.Offset)
	if err != nil {
		return models.RespondWithError(c, mapServiceError(err), err)
	}

	return c.JSON(posts)
}

// UpdatePost handles PUT /api/posts/:id
func (s *Server) UpdatePost(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := c.Locals("userID").(uint)
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	payload, err := parsePostPayload(c)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest, err)
	}

	post, err := s.postService.UpdatePost(ctx, service.UpdatePostInput{
		UserID:      userID,
		PostID:      postID,
		Content:     payload.Content,
		Description: payload.Description,
		IsPublic:    payload.IsPublic,
		Tags:        payload.Tags,
		Image:       payload.Image,
		RemoveImage: payload.RemoveImage,
	})
	if err != nil {
		return models.RespondWithError(c, mapServiceError(err), err)
	}

	return c.JSON(post)
}

// DeletePost handles DELETE /api/posts/:id
func (s *Server) DeletePost(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := c.Locals("userID").(uint)
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	if err := s.postService.DeletePost(ctx, service.DeletePostInput{
		UserID: userID,
		PostID: postID,
	}); err != nil {
		return models.RespondWithError(c, mapServiceError(err), err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Post deleted",
	})
}

// LikePost handles POST /api/posts/:id/like
// This endpoint toggles the like status - if already liked, it unlikes; if not liked, it likes
func (s *Server) LikePost(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := c.Locals("userID").(uint)
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	post, err := s.postService.ToggleLike(ctx, userID, postID)
	if err != nil {
		return models.RespondWithError(c, mapServiceError(err), err)
	}

	s.publishBroadcastEvent(EventPostReactionUpdated, map[string]interface{}{
		"post_id":        post.ID,
		"likes_count":    post.LikesCount,
		"comments_count": post.CommentsCount,
		"updated_at":     time.Now().UTC().Format(time.RFC3339Nano),
	})

	return c.JSON(post)
}
