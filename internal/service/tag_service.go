package service

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"chronicle/internal/models"
	"chronicle/internal/repository"
)

// TagService turns user-supplied tag names into canonical tag rows and keeps
// each tag's post_count in step with post create/update/delete.
type TagService struct {
	repo repository.TagRepository
}

func NewTagService(repo repository.TagRepository) *TagService {
	return &TagService{repo: repo}
}

// ResolveTags maps raw names to tag rows, creating tags that don't exist yet.
// Names are normalized (trimmed, lowercased) before lookup, so "Go" and
// "go " resolve to the same tag. Blank entries are skipped and duplicates
// collapse to one tag, preserving first-seen order.
func (s *TagService) ResolveTags(ctx context.Context, raw []string) ([]models.Tag, error) {
	tags := make([]models.Tag, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))

	for _, entry := range raw {
		name := models.NormalizeTagName(entry)
		if name == "" {
			continue
		}
		if len(name) > models.MaxTagNameLen {
			return nil, models.NewValidationError(fmt.Sprintf("Tag name too long (max %d characters)", models.MaxTagNameLen))
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}

		tag, err := s.resolveOne(ctx, name)
		if err != nil {
			return nil, err
		}
		tags = append(tags, *tag)
	}

	return tags, nil
}

func (s *TagService) resolveOne(ctx context.Context, name string) (*models.Tag, error) {
	tag, err := s.repo.GetByName(ctx, name)
	if err == nil {
		return tag, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, models.NewInternalError(err)
	}

	created := &models.Tag{
		Name: name,
		Slug: models.SlugifyTagName(name),
	}
	if createErr := s.repo.Create(ctx, created); createErr != nil {
		// A concurrent request may have created the tag between our lookup
		// and insert; the unique index on name turns that race into a
		// conflict we resolve by re-fetching.
		if repository.IsUniqueViolation(createErr) {
			tag, err = s.repo.GetByName(ctx, name)
			if err != nil {
				return nil, models.NewInternalError(err)
			}
			return tag, nil
		}
		return nil, models.NewInternalError(createErr)
	}
	return created, nil
}

// ApplyTagDiff adjusts post counts after a post's tag set changes. Tags in
// next but not previous gain one post; tags in previous but not next lose
// one. Unchanged tags are untouched.
func (s *TagService) ApplyTagDiff(ctx context.Context, previous, next []uint) error {
	toAdd, toRemove := diffTagIDs(previous, next)

	if err := s.repo.AdjustPostCounts(ctx, toAdd, 1); err != nil {
		return fmt.Errorf("incrementing tag counts: %w", err)
	}
	if err := s.repo.AdjustPostCounts(ctx, toRemove, -1); err != nil {
		return fmt.Errorf("decrementing tag counts: %w", err)
	}
	return nil
}

// ListTags returns all tags, most-used first.
func (s *TagService) ListTags(ctx context.Context) ([]models.Tag, error) {
	tags, err := s.repo.List(ctx)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return tags, nil
}

// GetBySlug looks a tag up by its URL slug.
func (s *TagService) GetBySlug(ctx context.Context, slug string) (*models.Tag, error) {
	tag, err := s.repo.GetBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Tag", slug)
		}
		return nil, models.NewInternalError(err)
	}
	return tag, nil
}

func diffTagIDs(previous, next []uint) (toAdd, toRemove []uint) {
	prevSet := make(map[uint]struct{}, len(previous))
	for _, id := range previous {
		prevSet[id] = struct{}{}
	}
	nextSet := make(map[uint]struct{}, len(next))
	for _, id := range next {
		nextSet[id] = struct{}{}
	}

	for id := range nextSet {
		if _, ok := prevSet[id]; !ok {
			toAdd = append(toAdd, id)
		}
	}
	for id := range prevSet {
		if _, ok := nextSet[id]; !ok {
			toRemove = append(toRemove, id)
		}
	}
	return toAdd, toRemove
}
