// Package seed provides database seeding utilities for development and testing.
package seed

import (
	"fmt"
	"log"
	"math/rand"
	"time"

	"chronicle/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Options configuration for the seeder
type Options struct {
	NumUsers    int
	NumPosts    int
	ShouldClean bool
}

var seedTagNames = []string{
	"go", "programming", "music", "travel", "food", "photography",
	"books", "fitness", "gaming", "science", "art", "movies",
	"diy", "nature", "history", "startups", "web-dev", "coffee",
}

// Seed populates the database with test data
func Seed(db *gorm.DB, opts Options) error {
	log.Printf("Starting database seeding with %d users and %d posts...", opts.NumUsers, opts.NumPosts)

	gofakeit.Seed(time.Now().UnixNano())
	r := rand.New(rand.NewSource(time.Now().UnixNano()))

	if opts.ShouldClean {
		if err := clearData(db); err != nil {
			log.Println("Warning: could not clear all existing data, continuing anyway...")
		}
	}

	users, err := createUsers(db, opts.NumUsers)
	if err != nil {
		return fmt.Errorf("failed to create users: %w", err)
	}
	log.Printf("created %d test users", len(users))

	tags, err := createTags(db)
	if err != nil {
		return fmt.Errorf("failed to create tags: %w", err)
	}
	log.Printf("created %d tags", len(tags))

	posts, err := createPosts(db, r, users, tags, opts.NumPosts)
	if err != nil {
		return fmt.Errorf("failed to create posts: %w", err)
	}
	log.Printf("created %d posts", len(posts))

	if err := recalculateTagCounts(db); err != nil {
		return fmt.Errorf("failed to recalculate tag counts: %w", err)
	}

	if err := createComments(db, r, users, posts); err != nil {
		return fmt.Errorf("failed to create comments: %w", err)
	}
	if err := createLikes(db, r, users, posts); err != nil {
		return fmt.Errorf("failed to create likes: %w", err)
	}

	log.Println("Seeding complete")
	return nil
}

func clearData(db *gorm.DB) error {
	tables := []string{"comment_likes", "likes", "comments", "post_tags", "posts", "tags", "users"}
	for _, t := range tables {
		if err := db.Exec("DELETE FROM " + t).Error; err != nil {
			return err
		}
	}
	return nil
}

func createUsers(db *gorm.DB, n int) ([]models.User, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte("Password123!Seed"), bcrypt.MinCost)
	if err != nil {
		return nil, err
	}

	users := make([]models.User, 0, n)
	for i := 0; i < n; i++ {
		user := models.User{
			Username: fmt.Sprintf("%s%d", gofakeit.Username(), i),
			Email:    fmt.Sprintf("user%d@%s", i, gofakeit.DomainName()),
			Password: string(hashed),
			Bio:      gofakeit.Sentence(8),
			Avatar:   fmt.Sprintf("https://picsum.photos/seed/avatar-%d/200/200", i),
		}
		if err := db.Create(&user).Error; err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, nil
}

func createTags(db *gorm.DB) ([]models.Tag, error) {
	tags := make([]models.Tag, 0, len(seedTagNames))
	for _, name := range seedTagNames {
		tag := models.Tag{
			Name: models.NormalizeTagName(name),
			Slug: models.SlugifyTagName(name),
		}
		if err := db.Where("name = ?", tag.Name).FirstOrCreate(&tag).Error; err != nil {
			return nil, err
		}
		tags = append(tags, tag)
	}
	return tags, nil
}

func createPosts(db *gorm.DB, r *rand.Rand, users []models.User, tags []models.Tag, n int) ([]models.Post, error) {
	posts := make([]models.Post, 0, n)
	for i := 0; i < n; i++ {
		user := users[r.Intn(len(users))]
		post := models.Post{
			Content:     gofakeit.Paragraph(1, 3, 8, "\n"),
			Description: gofakeit.Sentence(6),
			UserID:      user.ID,
			IsPublic:    r.Intn(10) != 0,
			CreatedAt:   randomPastTime(r, 90),
		}
		// up to three tags per post, no duplicates
		perm := r.Perm(len(tags))
		for _, idx := range perm[:r.Intn(4)] {
			post.Tags = append(post.Tags, tags[idx])
		}
		if r.Intn(3) == 0 {
			post.ImageURL = fmt.Sprintf("https://picsum.photos/seed/%s/800/800", gofakeit.UUID())
		}
		if err := db.Create(&post).Error; err != nil {
			return nil, err
		}
		posts = append(posts, post)
	}
	return posts, nil
}

// recalculateTagCounts rebuilds the denormalized post_count column from the
// join table so seeded data starts out consistent.
func recalculateTagCounts(db *gorm.DB) error {
	return db.Exec(`
		UPDATE tags SET post_count = (
			SELECT COUNT(*) FROM post_tags WHERE post_tags.tag_id = tags.id
		)`).Error
}

func createComments(db *gorm.DB, r *rand.Rand, users []models.User, posts []models.Post) error {
	for i := range posts {
		for j := 0; j < r.Intn(4); j++ {
			comment := models.Comment{
				Content:   gofakeit.Sentence(10),
				UserID:    users[r.Intn(len(users))].ID,
				PostID:    posts[i].ID,
				CreatedAt: posts[i].CreatedAt.Add(time.Duration(j+1) * time.Hour),
			}
			if err := db.Create(&comment).Error; err != nil {
				return err
			}
		}
	}
	return nil
}

func createLikes(db *gorm.DB, r *rand.Rand, users []models.User, posts []models.Post) error {
	for i := range posts {
		perm := r.Perm(len(users))
		for _, idx := range perm[:r.Intn(len(users)/2+1)] {
			like := models.Like{
				UserID: users[idx].ID,
				PostID: posts[i].ID,
			}
			if err := db.Create(&like).Error; err != nil {
				return err
			}
		}
	}
	return nil
}

func randomPastTime(r *rand.Rand, maxDays int) time.Time {
	daysBack := r.Intn(maxDays)
	hoursBack := r.Intn(24)
	minsBack := r.Intn(60)
	return time.Now().
		Add(-time.Duration(daysBack)*24*time.Hour -
			time.Duration(hoursBack)*time.Hour -
			time.Duration(minsBack)*time.Minute)
}
