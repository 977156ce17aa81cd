// Package models contains data structures for the application's domain models.
package models

import (
	"time"

	"gorm.io/gorm"
)

// MaxPostContentLen caps both content and description.
const MaxPostContentLen = 2500

// Post represents a blog entry in Chronicle. A post must carry text content
// or an image; tags are optional and attached through the post_tags join table.
type Post struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	Content     string `gorm:"type:text" json:"content"`
	Description string `gorm:"type:text" json:"description"`
	// ImageURL and ImagePublicID are set and cleared together. The public ID
	// is what the media host needs to delete the asset later.
	ImageURL      string `json:"image_url"`
	ImagePublicID string `json:"-"`
	IsPublic      bool   `gorm:"default:true" json:"is_public"`
	UserID        uint   `gorm:"not null;index" json:"user_id"`
	User          User   `gorm:"foreignKey:UserID" json:"user"`
	Tags          []Tag  `gorm:"many2many:post_tags" json:"tags"`
	// LikesCount is not persisted; computed at query time
	LikesCount int `gorm:"->" json:"likes_count"`
	// CommentsCount is not persisted; computed at query time
	CommentsCount int `gorm:"->" json:"comments_count"`
	// Liked indicates whether the current requesting user liked this post (computed)
	Liked     bool           `gorm:"->" json:"liked"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// TagIDs returns the IDs of the post's attached tags, in attachment order.
func (p *Post) TagIDs() []uint {
	ids := make([]uint, 0, len(p.Tags))
	for _, t := range p.Tags {
		ids = append(ids, t.ID)
	}
	return ids
}
