package repository

import (
	"context"

	"gorm.io/gorm"

	"chronicle/internal/models"
)

type CommentRepository interface {
	Create(ctx context.Context, comment *models.Comment) error
	GetByID(ctx context.Context, id uint, currentUserID uint) (*models.Comment, error)
	ListByPost(ctx context.Context, postID uint, currentUserID uint, limit, offset int) ([]models.Comment, error)
	Delete(ctx context.Context, id uint) error
	IsLiked(ctx context.Context, commentID, userID uint) (bool, error)
	Like(ctx context.Context, commentID, userID uint) error
	Unlike(ctx context.Context, commentID, userID uint) error
}

type commentRepository struct {
	db *gorm.DB
}

func NewCommentRepository(db *gorm.DB) CommentRepository {
	return &commentRepository{db: db}
}

func applyCommentDetails(db *gorm.DB, currentUserID uint) *gorm.DB {
	likedExpr := "false AS liked"
	args := []interface{}{}
	if currentUserID != 0 {
		likedExpr = "EXISTS(SELECT 1 FROM comment_likes WHERE comment_likes.comment_id = comments.id AND comment_likes.user_id = ?) AS liked"
		args = append(args, currentUserID)
	}
	return db.Select(
		"comments.*, "+
			"(SELECT COUNT(*) FROM comment_likes WHERE comment_likes.comment_id = comments.id) AS likes_count, "+
			likedExpr,
		args...,
	)
}

func (r *commentRepository) Create(ctx context.Context, comment *models.Comment) error {
	return r.db.WithContext(ctx).Create(comment).Error
}

func (r *commentRepository) GetByID(ctx context.Context, id uint, currentUserID uint) (*models.Comment, error) {
	var comment models.Comment
	err := applyCommentDetails(r.db.WithContext(ctx), currentUserID).
		Preload("User").
		First(&comment, id).Error
	if err != nil {
		return nil, err
	}
	return &comment, nil
}

func (r *commentRepository) ListByPost(ctx context.Context, postID uint, currentUserID uint, limit, offset int) ([]models.Comment, error) {
	var comments []models.Comment
	err := applyCommentDetails(r.db.WithContext(ctx), currentUserID).
		Preload("User").
		Where("comments.post_id = ?", postID).
		Order("comments.created_at DESC").
		Limit(limit).Offset(offset).
		Find(&comments).Error
	return comments, err
}

func (r *commentRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&models.Comment{}, id).Error
}

func (r *commentRepository) IsLiked(ctx context.Context, commentID, userID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.CommentLike{}).
		Where("comment_id = ? AND user_id = ?", commentID, userID).
		Count(&count).Error
	return count > 0, err
}

func (r *commentRepository) Like(ctx context.Context, commentID, userID uint) error {
	return r.db.WithContext(ctx).
		Exec("INSERT INTO comment_likes (comment_id, user_id, created_at) VALUES (?, ?, NOW()) ON CONFLICT DO NOTHING",
			commentID, userID).Error
}

func (r *commentRepository) Unlike(ctx context.Context, commentID, userID uint) error {
	return r.db.WithContext(ctx).
		Where("comment_id = ? AND user_id = ?", commentID, userID).
		Delete(&models.CommentLike{}).Error
}
