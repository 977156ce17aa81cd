package cache

import (
	"context"
	"fmt"
	"time"
)

const (
	UserKeyPrefix = "user:%d"
	PostKeyPrefix = "post:%d"

	// Singleton keys for hot list endpoints.
	TagListKey   = "tags:all"
	PostsListKey = "posts:front"
)

const (
	UserTTL    = 5 * time.Minute
	PostTTL    = 30 * time.Minute
	TagListTTL = 5 * time.Minute
	ListTTL    = 1 * time.Minute
)

func UserKey(userID uint) string {
	return fmt.Sprintf(UserKeyPrefix, userID)
}

func PostKey(postID uint) string {
	return fmt.Sprintf(PostKeyPrefix, postID)
}

func Invalidate(ctx context.Context, key string) {
	if client != nil {
		client.Del(ctx, key)
	}
}

func InvalidateUser(ctx context.Context, userID uint) {
	Invalidate(ctx, UserKey(userID))
}

// InvalidatePost drops both the post entry and the cached front page, since
// the page embeds denormalized counts for every post on it.
func InvalidatePost(ctx context.Context, postID uint) {
	Invalidate(ctx, PostKey(postID))
	Invalidate(ctx, PostsListKey)
}

func InvalidatePostsList(ctx context.Context) {
	Invalidate(ctx, PostsListKey)
}

func InvalidateTagList(ctx context.Context) {
	Invalidate(ctx, TagListKey)
}
