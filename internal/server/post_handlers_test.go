package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"chronicle/internal/models"
)

func doJSON(t *testing.T, app *fiber.App, method, path string, body any) (*http.Response, []byte) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	payload, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	_ = resp.Body.Close()
	return resp, payload
}

func tagByName(t *testing.T, db *gorm.DB, name string) *models.Tag {
	t.Helper()
	var tag models.Tag
	if err := db.Where("name = ?", name).First(&tag).Error; err != nil {
		t.Fatalf("tag %q missing: %v", name, err)
	}
	return &tag
}

func TestCreatePost_NormalizesDuplicateTags(t *testing.T) {
	t.Parallel()

	s, db := newTestServer(t)
	user := createTestUser(t, db, "author")
	app := newTestApp(s, user.ID)

	resp, body := doJSON(t, app, http.MethodPost, "/api/posts", map[string]any{
		"content": "hello world",
		"tags":    []string{"Go", "go "},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	var post models.Post
	require.NoError(t, json.Unmarshal(body, &post))
	require.Len(t, post.Tags, 1)
	assert.Equal(t, "go", post.Tags[0].Name)

	tag := tagByName(t, db, "go")
	assert.Equal(t, int64(1), tag.PostCount)

	var tagCount int64
	require.NoError(t, db.Model(&models.Tag{}).Count(&tagCount).Error)
	assert.Equal(t, int64(1), tagCount)
}

func TestCreatePost_SlugsSpecialCharacters(t *testing.T) {
	t.Parallel()

	s, db := newTestServer(t)
	user := createTestUser(t, db, "author")
	app := newTestApp(s, user.ID)

	resp, body := doJSON(t, app, http.MethodPost, "/api/posts", map[string]any{
		"content": "systems post",
		"tags":    []string{"C++"},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	tag := tagByName(t, db, "c++")
	assert.Equal(t, "c--", tag.Slug)
}

func TestCreatePost_RequiresContentOrImage(t *testing.T) {
	t.Parallel()

	s, db := newTestServer(t)
	user := createTestUser(t, db, "author")
	app := newTestApp(s, user.ID)

	resp, body := doJSON(t, app, http.MethodPost, "/api/posts", map[string]any{
		"description": "only a description",
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var envelope models.ErrorResponse
	require.NoError(t, json.Unmarshal(body, &envelope))
	assert.False(t, envelope.Success)
	assert.Equal(t, "VALIDATION_ERROR", envelope.Code)
	assert.NotEmpty(t, envelope.Error)
}

func TestUpdatePost_TagSemantics(t *testing.T) {
	t.Parallel()

	s, db := newTestServer(t)
	user := createTestUser(t, db, "author")
	app := newTestApp(s, user.ID)

	resp, body := doJSON(t, app, http.MethodPost, "/api/posts", map[string]any{
		"content": "tagged post",
		"tags":    []string{"go", "rust"},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var post models.Post
	require.NoError(t, json.Unmarshal(body, &post))

	t.Run("absent tags field keeps tags", func(t *testing.T) {
		resp, body := doJSON(t, app, http.MethodPut, fmt.Sprintf("/api/posts/%d", post.ID), map[string]any{
			"content": "tagged post, edited",
		})
		require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

		var updated models.Post
		require.NoError(t, json.Unmarshal(body, &updated))
		assert.Len(t, updated.Tags, 2)
		assert.Equal(t, int64(1), tagByName(t, db, "go").PostCount)
		assert.Equal(t, int64(1), tagByName(t, db, "rust").PostCount)
	})

	t.Run("explicit empty list clears tags and decrements", func(t *testing.T) {
		resp, body := doJSON(t, app, http.MethodPut, fmt.Sprintf("/api/posts/%d", post.ID), map[string]any{
			"tags": []string{},
		})
		require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

		var updated models.Post
		require.NoError(t, json.Unmarshal(body, &updated))
		assert.Empty(t, updated.Tags)
		assert.Equal(t, int64(0), tagByName(t, db, "go").PostCount)
		assert.Equal(t, int64(0), tagByName(t, db, "rust").PostCount)
	})
}

func TestPostLifecycle_TagCountsReturnToZero(t *testing.T) {
	t.Parallel()

	s, db := newTestServer(t)
	user := createTestUser(t, db, "author")
	app := newTestApp(s, user.ID)

	resp, body := doJSON(t, app, http.MethodPost, "/api/posts", map[string]any{
		"content": "tag churn",
		"tags":    []string{"go", "web"},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var post models.Post
	require.NoError(t, json.Unmarshal(body, &post))
	require.Equal(t, int64(1), tagByName(t, db, "go").PostCount)
	require.Equal(t, int64(1), tagByName(t, db, "web").PostCount)

	resp, body = doJSON(t, app, http.MethodPut, fmt.Sprintf("/api/posts/%d", post.ID), map[string]any{
		"tags": []string{"web", "rust"},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.Equal(t, int64(0), tagByName(t, db, "go").PostCount)
	assert.Equal(t, int64(1), tagByName(t, db, "web").PostCount, "kept tag must not be touched")
	assert.Equal(t, int64(1), tagByName(t, db, "rust").PostCount)

	resp, body = doJSON(t, app, http.MethodDelete, fmt.Sprintf("/api/posts/%d", post.ID), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	for _, name := range []string{"go", "web", "rust"} {
		assert.Equal(t, int64(0), tagByName(t, db, name).PostCount, "tag %q", name)
	}
}

func TestUpdatePost_OnlyAuthor(t *testing.T) {
	t.Parallel()

	s, db := newTestServer(t)
	author := createTestUser(t, db, "author")
	intruder := createTestUser(t, db, "intruder")

	authorApp := newTestApp(s, author.ID)
	resp, body := doJSON(t, authorApp, http.MethodPost, "/api/posts", map[string]any{
		"content": "mine",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var post models.Post
	require.NoError(t, json.Unmarshal(body, &post))

	intruderApp := newTestApp(s, intruder.ID)
	resp, body = doJSON(t, intruderApp, http.MethodPut, fmt.Sprintf("/api/posts/%d", post.ID), map[string]any{
		"content": "now it's mine",
	})
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	var envelope models.ErrorResponse
	require.NoError(t, json.Unmarshal(body, &envelope))
	assert.Equal(t, "UNAUTHORIZED", envelope.Code)
}

func TestDeletePost_Lifecycle(t *testing.T) {
	t.Parallel()

	s, db := newTestServer(t)
	user := createTestUser(t, db, "author")
	app := newTestApp(s, user.ID)

	resp, body := doJSON(t, app, http.MethodPost, "/api/posts", map[string]any{
		"content": "short lived",
		"tags":    []string{"go"},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var post models.Post
	require.NoError(t, json.Unmarshal(body, &post))
	require.Equal(t, int64(1), tagByName(t, db, "go").PostCount)

	resp, body = doJSON(t, app, http.MethodDelete, fmt.Sprintf("/api/posts/%d", post.ID), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var confirmation struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}
	require.NoError(t, json.Unmarshal(body, &confirmation))
	assert.True(t, confirmation.Success)

	assert.Equal(t, int64(0), tagByName(t, db, "go").PostCount)

	resp, body = doJSON(t, app, http.MethodGet, fmt.Sprintf("/api/posts/%d", post.ID), nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode, string(body))

	var envelope models.ErrorResponse
	require.NoError(t, json.Unmarshal(body, &envelope))
	assert.Equal(t, "NOT_FOUND", envelope.Code)
}

func TestDeletePost_NonAuthorForbidden(t *testing.T) {
	t.Parallel()

	s, db := newTestServer(t)
	author := createTestUser(t, db, "author")
	intruder := createTestUser(t, db, "intruder")

	resp, body := doJSON(t, newTestApp(s, author.ID), http.MethodPost, "/api/posts", map[string]any{
		"content": "keep out",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var post models.Post
	require.NoError(t, json.Unmarshal(body, &post))

	resp, _ = doJSON(t, newTestApp(s, intruder.ID), http.MethodDelete, fmt.Sprintf("/api/posts/%d", post.ID), nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	// The post is still there for its author.
	resp, _ = doJSON(t, newTestApp(s, author.ID), http.MethodGet, fmt.Sprintf("/api/posts/%d", post.ID), nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestCreateComment_Lifecycle(t *testing.T) {
	t.Parallel()

	s, db := newTestServer(t)
	author := createTestUser(t, db, "author")
	commenter := createTestUser(t, db, "commenter")

	resp, body := doJSON(t, newTestApp(s, author.ID), http.MethodPost, "/api/posts", map[string]any{
		"content": "discuss",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var post models.Post
	require.NoError(t, json.Unmarshal(body, &post))

	commenterApp := newTestApp(s, commenter.ID)
	resp, body = doJSON(t, commenterApp, http.MethodPost, fmt.Sprintf("/api/posts/%d/comments", post.ID), map[string]any{
		"content": "interesting take",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var comment models.Comment
	require.NoError(t, json.Unmarshal(body, &comment))
	assert.Equal(t, commenter.ID, comment.UserID)

	resp, body = doJSON(t, commenterApp, http.MethodGet, fmt.Sprintf("/api/posts/%d/comments", post.ID), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var comments []models.Comment
	require.NoError(t, json.Unmarshal(body, &comments))
	assert.Len(t, comments, 1)

	// Commenting on a missing post is a 404.
	resp, _ = doJSON(t, commenterApp, http.MethodPost, "/api/posts/9999/comments", map[string]any{
		"content": "lost",
	})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
