package repository

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"chronicle/internal/cache"
	"chronicle/internal/models"
	"chronicle/internal/observability"
)

// TagRepository handles persistence for tags, including the denormalized
// post_count column that the service layer keeps in sync.
type TagRepository interface {
	Create(ctx context.Context, tag *models.Tag) error
	GetByName(ctx context.Context, name string) (*models.Tag, error)
	GetBySlug(ctx context.Context, slug string) (*models.Tag, error)
	List(ctx context.Context) ([]models.Tag, error)
	AdjustPostCounts(ctx context.Context, ids []uint, delta int) error
}

type tagRepository struct {
	db      *gorm.DB
	metrics *observability.DatabaseMetrics
}

func NewTagRepository(db *gorm.DB) TagRepository {
	return &tagRepository{db: db, metrics: observability.NewDatabaseMetrics(db)}
}

func (r *tagRepository) Create(ctx context.Context, tag *models.Tag) error {
	return r.db.WithContext(ctx).Create(tag).Error
}

func (r *tagRepository) GetByName(ctx context.Context, name string) (*models.Tag, error) {
	var tag models.Tag
	if err := r.db.WithContext(ctx).Where("name = ?", name).First(&tag).Error; err != nil {
		return nil, err
	}
	return &tag, nil
}

func (r *tagRepository) GetBySlug(ctx context.Context, slug string) (*models.Tag, error) {
	var tag models.Tag
	if err := r.db.WithContext(ctx).Where("slug = ?", slug).First(&tag).Error; err != nil {
		return nil, err
	}
	return &tag, nil
}

// List returns all tags ordered by popularity, most-used first. Ties are
// broken alphabetically so the ordering is stable across requests.
func (r *tagRepository) List(ctx context.Context) ([]models.Tag, error) {
	var tags []models.Tag
	err := cache.Aside(ctx, cache.TagListKey, &tags, cache.TagListTTL, func() error {
		return r.db.WithContext(ctx).
			Order("post_count DESC, name ASC").
			Find(&tags).Error
	})
	if err != nil {
		return nil, err
	}
	return tags, nil
}

// AdjustPostCounts applies a single relative update to every tag in ids.
// The increment happens inside the UPDATE itself, so concurrent adjustments
// never clobber each other.
func (r *tagRepository) AdjustPostCounts(ctx context.Context, ids []uint, delta int) error {
	if len(ids) == 0 || delta == 0 {
		return nil
	}
	defer r.metrics.TrackQuery("update", "tags")()
	err := r.db.WithContext(ctx).
		Model(&models.Tag{}).
		Where("id IN ?", ids).
		UpdateColumn("post_count", gorm.Expr("post_count + ?", delta)).Error
	if err != nil {
		return err
	}
	cache.InvalidateTagList(ctx)
	return nil
}

// IsUniqueViolation reports whether err came from a unique-constraint
// conflict. Matched textually so it works for both Postgres and SQLite.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "unique failed")
}
