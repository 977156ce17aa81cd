package server

import (
	"testing"

	"github.com/gofiber/fiber/v2"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"chronicle/internal/config"
	"chronicle/internal/models"
	"chronicle/internal/repository"
	"chronicle/internal/service"
)

// newTestServer wires a Server against an in-memory sqlite database. The
// Prometheus middleware is left nil so repeated test setups don't collide on
// the default metrics registry.
func newTestServer(t *testing.T) (*Server, *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(
		&models.User{},
		&models.Tag{},
		&models.Post{},
		&models.Comment{},
		&models.Like{},
		&models.CommentLike{},
	); err != nil {
		t.Fatalf("migrate sqlite: %v", err)
	}

	cfg := &config.Config{
		JWTSecret:            "test-secret-for-handler-tests-32ch",
		Port:                 "0",
		Env:                  "test",
		MediaUploadDir:       t.TempDir(),
		MediaMaxUploadSizeMB: 10,
	}

	s := &Server{
		config:      cfg,
		db:          db,
		userRepo:    repository.NewUserRepository(db),
		postRepo:    repository.NewPostRepository(db),
		tagRepo:     repository.NewTagRepository(db),
		commentRepo: repository.NewCommentRepository(db),
		mediaHost:   service.NewLocalMediaHost(cfg),
	}
	s.tagService = service.NewTagService(s.tagRepo)
	s.postService = service.NewPostService(s.postRepo, s.tagService, s.mediaHost, s.isAdminByUserID)
	s.commentService = service.NewCommentService(s.commentRepo, s.postRepo, s.isAdminByUserID)
	s.userService = service.NewUserService(s.userRepo)

	return s, db
}

// newTestApp mounts the post, tag and comment routes with a stub auth
// middleware that trusts the given user ID.
func newTestApp(s *Server, userID uint) *fiber.App {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		if userID != 0 {
			c.Locals("userID", userID)
		}
		return c.Next()
	})

	app.Post("/api/posts", s.CreatePost)
	app.Get("/api/posts", s.GetPosts)
	app.Get("/api/posts/:id", s.GetPost)
	app.Put("/api/posts/:id", s.UpdatePost)
	app.Delete("/api/posts/:id", s.DeletePost)
	app.Post("/api/posts/:id/comments", s.CreateComment)
	app.Get("/api/posts/:id/comments", s.GetComments)
	app.Delete("/api/posts/:id/comments/:commentId", s.DeleteComment)
	app.Get("/api/tags", s.GetTags)
	app.Get("/api/tags/:slug/posts", s.GetTagPosts)
	return app
}

func createTestUser(t *testing.T, db *gorm.DB, username string) *models.User {
	t.Helper()
	user := &models.User{
		Username: username,
		Email:    username + "@example.com",
		Password: "not-a-real-hash",
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("create user %s: %v", username, err)
	}
	return user
}
