package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"gorm.io/gorm"

	"chronicle/internal/cache"
	"chronicle/internal/middleware"
	"chronicle/internal/models"
	"chronicle/internal/repository"
)

type PostService struct {
	postRepo repository.PostRepository
	tags     *TagService
	media    MediaHost
	isAdmin  func(ctx context.Context, userID uint) (bool, error)
}

type CreatePostInput struct {
	UserID      uint
	Content     string
	Description string
	IsPublic    *bool
	// Tags is only honored when TagsProvided is true; the zero value means
	// the request did not include a tags field at all.
	Tags         []string
	TagsProvided bool
	Image        *UploadInput
}

type UpdatePostInput struct {
	UserID      uint
	PostID      uint
	Content     *string
	Description *string
	IsPublic    *bool
	// A nil Tags means the field was absent and existing tags are kept.
	// A non-nil empty slice clears all tags.
	Tags        *[]string
	Image       *UploadInput
	RemoveImage bool
}

type DeletePostInput struct {
	UserID uint
	PostID uint
}

func NewPostService(
	postRepo repository.PostRepository,
	tags *TagService,
	media MediaHost,
	isAdmin func(ctx context.Context, userID uint) (bool, error),
) *PostService {
	return &PostService{
		postRepo: postRepo,
		tags:     tags,
		media:    media,
		isAdmin:  isAdmin,
	}
}

func (s *PostService) CreatePost(ctx context.Context, in CreatePostInput) (*models.Post, error) {
	// Content is stored trimmed; whitespace-only content does not count as
	// content for the content-or-image rule.
	in.Content = strings.TrimSpace(in.Content)
	if in.Content == "" && in.Image == nil {
		return nil, models.NewValidationError("Post must have content or an image")
	}
	if len(in.Content) > models.MaxPostContentLen {
		return nil, models.NewValidationError(fmt.Sprintf("Content too long (max %d characters)", models.MaxPostContentLen))
	}
	if len(in.Description) > models.MaxPostContentLen {
		return nil, models.NewValidationError(fmt.Sprintf("Description too long (max %d characters)", models.MaxPostContentLen))
	}

	var tags []models.Tag
	if in.TagsProvided {
		resolved, err := s.tags.ResolveTags(ctx, in.Tags)
		if err != nil {
			return nil, err
		}
		tags = resolved
	}

	post := &models.Post{
		Content:     in.Content,
		Description: in.Description,
		UserID:      in.UserID,
		IsPublic:    true,
		Tags:        tags,
	}
	if in.IsPublic != nil {
		post.IsPublic = *in.IsPublic
	}

	if in.Image != nil {
		stored, err := s.media.Upload(ctx, in.UserID, *in.Image)
		if err != nil {
			return nil, err
		}
		post.ImageURL = stored.URL
		post.ImagePublicID = stored.PublicID
	}

	if err := s.postRepo.Create(ctx, post); err != nil {
		if post.ImagePublicID != "" {
			s.deleteMedia(ctx, post.ImagePublicID)
		}
		return nil, models.NewInternalError(err)
	}

	s.adjustTagCounts(ctx, nil, post.TagIDs())

	return s.GetPost(ctx, post.ID, in.UserID)
}

func (s *PostService) GetPost(ctx context.Context, id uint, currentUserID uint) (*models.Post, error) {
	post, err := s.postRepo.GetByID(ctx, id, currentUserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Post", id)
		}
		return nil, models.NewInternalError(err)
	}
	return post, nil
}

func (s *PostService) ListPosts(ctx context.Context, currentUserID uint, limit, offset int) ([]models.Post, error) {
	var posts []models.Post
	var err error

	// The front page is hot enough to cache; it is stored viewer-agnostic
	// and the liked flags are layered back on afterwards.
	if offset == 0 && limit <= 20 {
		err = cache.Aside(ctx, cache.PostsListKey, &posts, cache.ListTTL, func() error {
			var fetchErr error
			posts, fetchErr = s.postRepo.List(ctx, 0, limit, offset)
			return fetchErr
		})
		if err != nil {
			return nil, models.NewInternalError(err)
		}
		if err := s.applyLikedFlags(ctx, posts, currentUserID); err != nil {
			return nil, err
		}
		return posts, nil
	}

	posts, err = s.postRepo.List(ctx, currentUserID, limit, offset)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return posts, nil
}

func (s *PostService) SearchPosts(ctx context.Context, query string, currentUserID uint, limit, offset int) ([]models.Post, error) {
	if query == "" {
		return nil, models.NewValidationError("Search query is required")
	}
	posts, err := s.postRepo.Search(ctx, query, currentUserID, limit, offset)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return posts, nil
}

func (s *PostService) GetUserPosts(ctx context.Context, userID uint, currentUserID uint, limit, offset int) ([]models.Post, error) {
	posts, err := s.postRepo.GetByUserID(ctx, userID, currentUserID, limit, offset)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return posts, nil
}

// GetPostsByTagSlug returns the tag identified by slug together with the
// public posts carrying it. An unknown slug is a not-found error, never an
// empty page.
func (s *PostService) GetPostsByTagSlug(ctx context.Context, slug string, currentUserID uint, limit, offset int) (*models.Tag, []models.Post, error) {
	tag, err := s.tags.GetBySlug(ctx, slug)
	if err != nil {
		return nil, nil, err
	}
	posts, err := s.postRepo.GetByTagID(ctx, tag.ID, currentUserID, limit, offset)
	if err != nil {
		return nil, nil, models.NewInternalError(err)
	}
	return tag, posts, nil
}

func (s *PostService) UpdatePost(ctx context.Context, in UpdatePostInput) (*models.Post, error) {
	post, err := s.GetPost(ctx, in.PostID, in.UserID)
	if err != nil {
		return nil, err
	}
	if post.UserID != in.UserID {
		return nil, models.NewUnauthorizedError("You can only update your own posts")
	}

	if in.Content != nil {
		post.Content = strings.TrimSpace(*in.Content)
	}
	if in.Description != nil {
		post.Description = *in.Description
	}
	if in.IsPublic != nil {
		post.IsPublic = *in.IsPublic
	}
	if len(post.Content) > models.MaxPostContentLen {
		return nil, models.NewValidationError(fmt.Sprintf("Content too long (max %d characters)", models.MaxPostContentLen))
	}
	if len(post.Description) > models.MaxPostContentLen {
		return nil, models.NewValidationError(fmt.Sprintf("Description too long (max %d characters)", models.MaxPostContentLen))
	}

	oldPublicID := post.ImagePublicID
	var uploadedPublicID string

	if in.Image != nil {
		stored, uploadErr := s.media.Upload(ctx, in.UserID, *in.Image)
		if uploadErr != nil {
			return nil, uploadErr
		}
		post.ImageURL = stored.URL
		post.ImagePublicID = stored.PublicID
		uploadedPublicID = stored.PublicID
	} else if in.RemoveImage {
		post.ImageURL = ""
		post.ImagePublicID = ""
	}

	if post.Content == "" && post.ImageURL == "" {
		if uploadedPublicID != "" {
			s.deleteMedia(ctx, uploadedPublicID)
		}
		return nil, models.NewValidationError("Post must have content or an image")
	}

	previousTagIDs := post.TagIDs()
	var nextTags []models.Tag
	tagsChanged := false
	if in.Tags != nil {
		nextTags, err = s.tags.ResolveTags(ctx, *in.Tags)
		if err != nil {
			if uploadedPublicID != "" {
				s.deleteMedia(ctx, uploadedPublicID)
			}
			return nil, err
		}
		tagsChanged = true
	}

	if err := s.postRepo.Update(ctx, post); err != nil {
		if uploadedPublicID != "" {
			s.deleteMedia(ctx, uploadedPublicID)
		}
		return nil, models.NewInternalError(err)
	}

	if tagsChanged {
		if err := s.postRepo.ReplaceTags(ctx, post, nextTags); err != nil {
			return nil, models.NewInternalError(err)
		}
		s.adjustTagCounts(ctx, previousTagIDs, post.TagIDs())
	}

	// The replaced or removed image is cleaned up only after the row update
	// succeeded, so a failed update never orphans the post's current image.
	if oldPublicID != "" && oldPublicID != post.ImagePublicID {
		s.deleteMedia(ctx, oldPublicID)
	}

	return s.GetPost(ctx, post.ID, in.UserID)
}

func (s *PostService) DeletePost(ctx context.Context, in DeletePostInput) error {
	post, err := s.GetPost(ctx, in.PostID, in.UserID)
	if err != nil {
		return err
	}

	if post.UserID != in.UserID {
		if s.isAdmin == nil {
			return models.NewUnauthorizedError("You can only delete your own posts")
		}
		admin, adminErr := s.isAdmin(ctx, in.UserID)
		if adminErr != nil {
			return models.NewInternalError(adminErr)
		}
		if !admin {
			return models.NewUnauthorizedError("You can only delete your own posts")
		}
	}

	tagIDs := post.TagIDs()
	if err := s.postRepo.Delete(ctx, in.PostID); err != nil {
		return models.NewInternalError(err)
	}

	s.adjustTagCounts(ctx, tagIDs, nil)

	if post.ImagePublicID != "" {
		s.deleteMedia(ctx, post.ImagePublicID)
	}
	return nil
}

func (s *PostService) ToggleLike(ctx context.Context, userID, postID uint) (*models.Post, error) {
	if _, err := s.GetPost(ctx, postID, userID); err != nil {
		return nil, err
	}

	liked, err := s.postRepo.IsLiked(ctx, postID, userID)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	if liked {
		err = s.postRepo.Unlike(ctx, postID, userID)
	} else {
		err = s.postRepo.Like(ctx, postID, userID)
	}
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	return s.GetPost(ctx, postID, userID)
}

func (s *PostService) applyLikedFlags(ctx context.Context, posts []models.Post, currentUserID uint) error {
	if currentUserID == 0 || len(posts) == 0 {
		return nil
	}
	ids := make([]uint, len(posts))
	for i := range posts {
		ids[i] = posts[i].ID
	}
	liked, err := s.postRepo.GetLikedPostIDs(ctx, currentUserID, ids)
	if err != nil {
		return models.NewInternalError(err)
	}
	for i := range posts {
		posts[i].Liked = liked[posts[i].ID]
	}
	return nil
}

// adjustTagCounts is best effort: a failed count update leaves a stale
// denormalized counter, not a broken post, so the request still succeeds.
func (s *PostService) adjustTagCounts(ctx context.Context, previous, next []uint) {
	if err := s.tags.ApplyTagDiff(ctx, previous, next); err != nil {
		middleware.TagCountAdjustFailures.Inc()
		middleware.Logger.ErrorContext(ctx, "tag count adjustment failed",
			slog.Any("error", err))
	}
}

func (s *PostService) deleteMedia(ctx context.Context, publicID string) {
	if s.media == nil || publicID == "" {
		return
	}
	if err := s.media.Delete(ctx, publicID); err != nil {
		middleware.Logger.WarnContext(ctx, "media cleanup failed",
			slog.String("public_id", publicID),
			slog.Any("error", err))
	}
}
