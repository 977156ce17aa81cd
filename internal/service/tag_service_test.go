package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"chronicle/internal/models"
)

// tagRepoStub is a stub for repository.TagRepository.
type tagRepoStub struct {
	createFn           func(context.Context, *models.Tag) error
	getByNameFn        func(context.Context, string) (*models.Tag, error)
	getBySlugFn        func(context.Context, string) (*models.Tag, error)
	listFn             func(context.Context) ([]models.Tag, error)
	adjustPostCountsFn func(context.Context, []uint, int) error
}

func (s *tagRepoStub) Create(ctx context.Context, tag *models.Tag) error {
	return s.createFn(ctx, tag)
}
func (s *tagRepoStub) GetByName(ctx context.Context, name string) (*models.Tag, error) {
	return s.getByNameFn(ctx, name)
}
func (s *tagRepoStub) GetBySlug(ctx context.Context, slug string) (*models.Tag, error) {
	return s.getBySlugFn(ctx, slug)
}
func (s *tagRepoStub) List(ctx context.Context) ([]models.Tag, error) {
	return s.listFn(ctx)
}
func (s *tagRepoStub) AdjustPostCounts(ctx context.Context, ids []uint, delta int) error {
	return s.adjustPostCountsFn(ctx, ids, delta)
}

func noopTagRepo() *tagRepoStub {
	return &tagRepoStub{
		createFn:           func(_ context.Context, _ *models.Tag) error { return nil },
		getByNameFn:        func(_ context.Context, _ string) (*models.Tag, error) { return nil, gorm.ErrRecordNotFound },
		getBySlugFn:        func(_ context.Context, _ string) (*models.Tag, error) { return nil, gorm.ErrRecordNotFound },
		listFn:             func(_ context.Context) ([]models.Tag, error) { return nil, nil },
		adjustPostCountsFn: func(_ context.Context, _ []uint, _ int) error { return nil },
	}
}

// memoryTagRepo backs the stub with an in-memory table so create/lookup
// behave like the real thing, unique index included.
func memoryTagRepo() *tagRepoStub {
	byName := make(map[string]*models.Tag)
	nextID := uint(1)

	repo := noopTagRepo()
	repo.getByNameFn = func(_ context.Context, name string) (*models.Tag, error) {
		if tag, ok := byName[name]; ok {
			copied := *tag
			return &copied, nil
		}
		return nil, gorm.ErrRecordNotFound
	}
	repo.createFn = func(_ context.Context, tag *models.Tag) error {
		if _, ok := byName[tag.Name]; ok {
			return errors.New(`duplicate key value violates unique constraint "idx_tags_name"`)
		}
		tag.ID = nextID
		nextID++
		stored := *tag
		byName[tag.Name] = &stored
		return nil
	}
	return repo
}

// assertValidationError asserts that err is an AppError with code VALIDATION_ERROR.
func assertValidationError(t *testing.T, err error) {
	t.Helper()
	require.Error(t, err)
	var appErr *models.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %T: %v", err, err)
	assert.Equal(t, "VALIDATION_ERROR", appErr.Code)
}

// assertUnauthorizedError asserts that err is an AppError with code UNAUTHORIZED.
func assertUnauthorizedError(t *testing.T, err error) {
	t.Helper()
	require.Error(t, err)
	var appErr *models.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %T: %v", err, err)
	assert.Equal(t, "UNAUTHORIZED", appErr.Code)
}

// assertNotFoundError asserts that err is an AppError with code NOT_FOUND.
func assertNotFoundError(t *testing.T, err error) {
	t.Helper()
	require.Error(t, err)
	var appErr *models.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %T: %v", err, err)
	assert.Equal(t, "NOT_FOUND", appErr.Code)
}

func TestTagService_ResolveTags_NormalizesAndDedupes(t *testing.T) {
	t.Parallel()

	repo := memoryTagRepo()
	svc := NewTagService(repo)

	tags, err := svc.ResolveTags(context.Background(), []string{"Go", "go ", "  GO"})
	require.NoError(t, err)
	require.Len(t, tags, 1, "variants of the same name must collapse to one tag")
	assert.Equal(t, "go", tags[0].Name)
	assert.Equal(t, "go", tags[0].Slug)
}

func TestTagService_ResolveTags_SlugsSpecialCharacters(t *testing.T) {
	t.Parallel()

	repo := memoryTagRepo()
	svc := NewTagService(repo)

	tags, err := svc.ResolveTags(context.Background(), []string{"C++"})
	require.NoError(t, err)
	require.Len(t, tags, 1)
	assert.Equal(t, "c++", tags[0].Name)
	assert.Equal(t, "c--", tags[0].Slug)
}

func TestTagService_ResolveTags_SkipsBlankEntries(t *testing.T) {
	t.Parallel()

	repo := memoryTagRepo()
	svc := NewTagService(repo)

	tags, err := svc.ResolveTags(context.Background(), []string{"  ", "", "go", "\t"})
	require.NoError(t, err)
	require.Len(t, tags, 1)
	assert.Equal(t, "go", tags[0].Name)
}

func TestTagService_ResolveTags_RejectsOverlongName(t *testing.T) {
	t.Parallel()

	svc := NewTagService(noopTagRepo())

	_, err := svc.ResolveTags(context.Background(), []string{strings.Repeat("x", models.MaxTagNameLen+1)})
	assertValidationError(t, err)
}

func TestTagService_ResolveTags_PreservesFirstSeenOrder(t *testing.T) {
	t.Parallel()

	repo := memoryTagRepo()
	svc := NewTagService(repo)

	tags, err := svc.ResolveTags(context.Background(), []string{"zebra", "alpha", "Zebra", "mid"})
	require.NoError(t, err)
	require.Len(t, tags, 3)
	assert.Equal(t, "zebra", tags[0].Name)
	assert.Equal(t, "alpha", tags[1].Name)
	assert.Equal(t, "mid", tags[2].Name)
}

func TestTagService_ResolveTags_ReusesExistingTag(t *testing.T) {
	t.Parallel()

	created := 0
	repo := noopTagRepo()
	repo.getByNameFn = func(_ context.Context, name string) (*models.Tag, error) {
		return &models.Tag{ID: 7, Name: name, Slug: name, PostCount: 3}, nil
	}
	repo.createFn = func(_ context.Context, _ *models.Tag) error {
		created++
		return nil
	}
	svc := NewTagService(repo)

	tags, err := svc.ResolveTags(context.Background(), []string{"go"})
	require.NoError(t, err)
	require.Len(t, tags, 1)
	assert.Equal(t, uint(7), tags[0].ID)
	assert.Zero(t, created, "existing tag must not be re-created")
}

func TestTagService_ResolveTags_RefetchesOnUniqueConflict(t *testing.T) {
	t.Parallel()

	// First lookup misses, the insert collides with a concurrent create, the
	// second lookup finds the winner's row.
	lookups := 0
	repo := noopTagRepo()
	repo.getByNameFn = func(_ context.Context, name string) (*models.Tag, error) {
		lookups++
		if lookups == 1 {
			return nil, gorm.ErrRecordNotFound
		}
		return &models.Tag{ID: 42, Name: name, Slug: name}, nil
	}
	repo.createFn = func(_ context.Context, _ *models.Tag) error {
		return errors.New(`duplicate key value violates unique constraint "idx_tags_name"`)
	}
	svc := NewTagService(repo)

	tags, err := svc.ResolveTags(context.Background(), []string{"go"})
	require.NoError(t, err)
	require.Len(t, tags, 1)
	assert.Equal(t, uint(42), tags[0].ID)
	assert.Equal(t, 2, lookups)
}

func TestTagService_ResolveTags_PropagatesCreateError(t *testing.T) {
	t.Parallel()

	repo := noopTagRepo()
	repo.createFn = func(_ context.Context, _ *models.Tag) error {
		return errors.New("connection refused")
	}
	svc := NewTagService(repo)

	_, err := svc.ResolveTags(context.Background(), []string{"go"})
	require.Error(t, err)
	var appErr *models.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "INTERNAL_ERROR", appErr.Code)
}

type countAdjustment struct {
	ids   []uint
	delta int
}

func recordingAdjustRepo() (*tagRepoStub, *[]countAdjustment) {
	var calls []countAdjustment
	repo := noopTagRepo()
	repo.adjustPostCountsFn = func(_ context.Context, ids []uint, delta int) error {
		if len(ids) > 0 {
			calls = append(calls, countAdjustment{ids: ids, delta: delta})
		}
		return nil
	}
	return repo, &calls
}

func TestTagService_ApplyTagDiff(t *testing.T) {
	t.Parallel()

	t.Run("added tags gain a post", func(t *testing.T) {
		t.Parallel()
		repo, calls := recordingAdjustRepo()
		svc := NewTagService(repo)

		require.NoError(t, svc.ApplyTagDiff(context.Background(), nil, []uint{1, 2}))
		require.Len(t, *calls, 1)
		assert.ElementsMatch(t, []uint{1, 2}, (*calls)[0].ids)
		assert.Equal(t, 1, (*calls)[0].delta)
	})

	t.Run("removed tags lose a post", func(t *testing.T) {
		t.Parallel()
		repo, calls := recordingAdjustRepo()
		svc := NewTagService(repo)

		require.NoError(t, svc.ApplyTagDiff(context.Background(), []uint{3, 4}, nil))
		require.Len(t, *calls, 1)
		assert.ElementsMatch(t, []uint{3, 4}, (*calls)[0].ids)
		assert.Equal(t, -1, (*calls)[0].delta)
	})

	t.Run("unchanged tags are untouched", func(t *testing.T) {
		t.Parallel()
		repo, calls := recordingAdjustRepo()
		svc := NewTagService(repo)

		require.NoError(t, svc.ApplyTagDiff(context.Background(), []uint{1, 2}, []uint{2, 3}))
		require.Len(t, *calls, 2)
		for _, call := range *calls {
			switch call.delta {
			case 1:
				assert.Equal(t, []uint{3}, call.ids)
			case -1:
				assert.Equal(t, []uint{1}, call.ids)
			default:
				t.Fatalf("unexpected delta %d", call.delta)
			}
		}
	})

	t.Run("identical sets adjust nothing", func(t *testing.T) {
		t.Parallel()
		repo, calls := recordingAdjustRepo()
		svc := NewTagService(repo)

		require.NoError(t, svc.ApplyTagDiff(context.Background(), []uint{5}, []uint{5}))
		assert.Empty(t, *calls)
	})
}

func TestTagService_GetBySlug_NotFound(t *testing.T) {
	t.Parallel()

	svc := NewTagService(noopTagRepo())

	_, err := svc.GetBySlug(context.Background(), "missing")
	assertNotFoundError(t, err)
}

func TestTagService_ListTags(t *testing.T) {
	t.Parallel()

	repo := noopTagRepo()
	repo.listFn = func(_ context.Context) ([]models.Tag, error) {
		return []models.Tag{
			{Name: "go", PostCount: 10},
			{Name: "rust", PostCount: 4},
		}, nil
	}
	svc := NewTagService(repo)

	tags, err := svc.ListTags(context.Background())
	require.NoError(t, err)
	require.Len(t, tags, 2)
	assert.Equal(t, "go", tags[0].Name)
}
