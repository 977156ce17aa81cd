package repository

import (
	"context"

	"gorm.io/gorm"

	"chronicle/internal/cache"
	"chronicle/internal/models"
	"chronicle/internal/observability"
)

type PostRepository interface {
	Create(ctx context.Context, post *models.Post) error
	GetByID(ctx context.Context, id uint, currentUserID uint) (*models.Post, error)
	GetByUserID(ctx context.Context, userID uint, currentUserID uint, limit, offset int) ([]models.Post, error)
	GetByTagID(ctx context.Context, tagID uint, currentUserID uint, limit, offset int) ([]models.Post, error)
	List(ctx context.Context, currentUserID uint, limit, offset int) ([]models.Post, error)
	Search(ctx context.Context, query string, currentUserID uint, limit, offset int) ([]models.Post, error)
	Update(ctx context.Context, post *models.Post) error
	ReplaceTags(ctx context.Context, post *models.Post, tags []models.Tag) error
	Delete(ctx context.Context, id uint) error
	IsLiked(ctx context.Context, postID, userID uint) (bool, error)
	GetLikedPostIDs(ctx context.Context, userID uint, postIDs []uint) (map[uint]bool, error)
	Like(ctx context.Context, postID, userID uint) error
	Unlike(ctx context.Context, postID, userID uint) error
}

type postRepository struct {
	db      *gorm.DB
	metrics *observability.DatabaseMetrics
}

func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{db: db, metrics: observability.NewDatabaseMetrics(db)}
}

// applyPostDetails attaches the computed columns every post read carries:
// comment and like counts, plus whether currentUserID has liked the post.
func applyPostDetails(db *gorm.DB, currentUserID uint) *gorm.DB {
	likedExpr := "false AS liked"
	args := []interface{}{}
	if currentUserID != 0 {
		likedExpr = "EXISTS(SELECT 1 FROM likes WHERE likes.post_id = posts.id AND likes.user_id = ?) AS liked"
		args = append(args, currentUserID)
	}
	return db.Select(
		"posts.*, "+
			"(SELECT COUNT(*) FROM comments WHERE comments.post_id = posts.id AND comments.deleted_at IS NULL) AS comments_count, "+
			"(SELECT COUNT(*) FROM likes WHERE likes.post_id = posts.id) AS likes_count, "+
			likedExpr,
		args...,
	)
}

func (r *postRepository) Create(ctx context.Context, post *models.Post) error {
	if err := r.db.WithContext(ctx).Create(post).Error; err != nil {
		return err
	}
	cache.InvalidatePostsList(ctx)
	return nil
}

func (r *postRepository) GetByID(ctx context.Context, id uint, currentUserID uint) (*models.Post, error) {
	fetch := func(post *models.Post) error {
		return applyPostDetails(r.db.WithContext(ctx), currentUserID).
			Preload("User").
			Preload("Tags").
			First(post, id).Error
	}

	var post models.Post
	// Only anonymous reads are cacheable; the liked flag is per-viewer.
	if currentUserID == 0 {
		err := cache.Aside(ctx, cache.PostKey(id), &post, cache.PostTTL, func() error {
			return fetch(&post)
		})
		if err != nil {
			return nil, err
		}
		return &post, nil
	}

	if err := fetch(&post); err != nil {
		return nil, err
	}
	return &post, nil
}

func (r *postRepository) GetByUserID(ctx context.Context, userID uint, currentUserID uint, limit, offset int) ([]models.Post, error) {
	q := applyPostDetails(r.db.WithContext(ctx), currentUserID).
		Preload("User").
		Preload("Tags").
		Where("posts.user_id = ?", userID)
	if currentUserID != userID {
		q = q.Where("posts.is_public = ?", true)
	}
	var posts []models.Post
	err := q.Order("posts.created_at DESC").
		Limit(limit).Offset(offset).
		Find(&posts).Error
	return posts, err
}

func (r *postRepository) GetByTagID(ctx context.Context, tagID uint, currentUserID uint, limit, offset int) ([]models.Post, error) {
	var posts []models.Post
	err := applyPostDetails(r.db.WithContext(ctx), currentUserID).
		Preload("User").
		Preload("Tags").
		Joins("JOIN post_tags ON post_tags.post_id = posts.id").
		Where("post_tags.tag_id = ?", tagID).
		Where("posts.is_public = ?", true).
		Order("posts.created_at DESC").
		Limit(limit).Offset(offset).
		Find(&posts).Error
	return posts, err
}

func (r *postRepository) List(ctx context.Context, currentUserID uint, limit, offset int) ([]models.Post, error) {
	defer r.metrics.TrackQuery("select", "posts")()
	var posts []models.Post
	err := applyPostDetails(r.db.WithContext(ctx), currentUserID).
		Preload("User").
		Preload("Tags").
		Where("posts.is_public = ?", true).
		Order("posts.created_at DESC").
		Limit(limit).Offset(offset).
		Find(&posts).Error
	return posts, err
}

func (r *postRepository) Search(ctx context.Context, query string, currentUserID uint, limit, offset int) ([]models.Post, error) {
	defer r.metrics.TrackQuery("search", "posts")()
	pattern := "%" + query + "%"
	var posts []models.Post
	err := applyPostDetails(r.db.WithContext(ctx), currentUserID).
		Preload("User").
		Preload("Tags").
		Where("posts.is_public = ?", true).
		Where("posts.content ILIKE ? OR posts.description ILIKE ?", pattern, pattern).
		Order("posts.created_at DESC").
		Limit(limit).Offset(offset).
		Find(&posts).Error
	return posts, err
}

func (r *postRepository) Update(ctx context.Context, post *models.Post) error {
	err := r.db.WithContext(ctx).
		Session(&gorm.Session{FullSaveAssociations: false}).
		Omit("Tags", "User").
		Save(post).Error
	if err != nil {
		return err
	}
	cache.InvalidatePost(ctx, post.ID)
	return nil
}

// ReplaceTags swaps the post's tag associations wholesale. Counts are
// adjusted separately by the caller.
func (r *postRepository) ReplaceTags(ctx context.Context, post *models.Post, tags []models.Tag) error {
	err := r.db.WithContext(ctx).Model(post).Association("Tags").Replace(tags)
	if err != nil {
		return err
	}
	post.Tags = tags
	cache.InvalidatePost(ctx, post.ID)
	return nil
}

func (r *postRepository) Delete(ctx context.Context, id uint) error {
	if err := r.db.WithContext(ctx).Delete(&models.Post{}, id).Error; err != nil {
		return err
	}
	cache.InvalidatePost(ctx, id)
	return nil
}

func (r *postRepository) IsLiked(ctx context.Context, postID, userID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Like{}).
		Where("post_id = ? AND user_id = ?", postID, userID).
		Count(&count).Error
	return count > 0, err
}

func (r *postRepository) GetLikedPostIDs(ctx context.Context, userID uint, postIDs []uint) (map[uint]bool, error) {
	liked := make(map[uint]bool, len(postIDs))
	if userID == 0 || len(postIDs) == 0 {
		return liked, nil
	}
	var ids []uint
	err := r.db.WithContext(ctx).
		Model(&models.Like{}).
		Where("user_id = ? AND post_id IN ?", userID, postIDs).
		Pluck("post_id", &ids).Error
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		liked[id] = true
	}
	return liked, nil
}

// Like is idempotent: re-liking an already liked post is a no-op.
func (r *postRepository) Like(ctx context.Context, postID, userID uint) error {
	err := r.db.WithContext(ctx).
		Exec("INSERT INTO likes (post_id, user_id, created_at) VALUES (?, ?, NOW()) ON CONFLICT DO NOTHING",
			postID, userID).Error
	if err != nil {
		return err
	}
	cache.InvalidatePost(ctx, postID)
	return nil
}

func (r *postRepository) Unlike(ctx context.Context, postID, userID uint) error {
	err := r.db.WithContext(ctx).
		Where("post_id = ? AND user_id = ?", postID, userID).
		Delete(&models.Like{}).Error
	if err != nil {
		return err
	}
	cache.InvalidatePost(ctx, postID)
	return nil
}
