package models

import (
	"strings"
	"time"
)

// MaxTagNameLen is the longest normalized tag name accepted.
const MaxTagNameLen = 30

// Tag is a normalized label shared across posts. Name and Slug are unique;
// PostCount is a denormalized counter maintained by atomic SQL increments,
// never by read-modify-write.
type Tag struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"uniqueIndex;size:30;not null" json:"name"`
	Slug      string    `gorm:"uniqueIndex;not null" json:"slug"`
	PostCount int64     `gorm:"not null;default:0" json:"post_count"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NormalizeTagName trims surrounding whitespace and lower-cases the name.
// Two raw strings that normalize equally denote the same tag.
func NormalizeTagName(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// SlugifyTagName derives the URL slug from a normalized name: every byte
// outside [a-z0-9] becomes a hyphen. "c++" therefore slugs to "c--".
func SlugifyTagName(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for i := 0; i < len(name); i++ {
		ch := name[i]
		if (ch >= 'a' && ch <= 'z') || (ch >= '0' && ch <= '9') {
			b.WriteByte(ch)
		} else {
			b.WriteByte('-')
		}
	}
	return b.String()
}
