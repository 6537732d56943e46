package cache

import (
	"context"
	"encoding/json"
	"time"

	dom "github.com/dordunu1/taskboard/internal/domain"

	"github.com/redis/go-redis/v9"
)

const keyComments = "comments:"

// CommentCache caches per-task comment lists in Redis.
type CommentCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewCommentCache returns a new CommentCache.
func NewCommentCache(rdb *redis.Client, ttl time.Duration) *CommentCache {
	return &CommentCache{rdb: rdb, ttl: ttl}
}

// Get returns the cached list or nil on miss.
func (c *CommentCache) Get(ctx context.Context, taskID string) ([]dom.Comment, error) {
	b, err := c.rdb.Get(ctx, keyComments+taskID).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var list []dom.Comment
	if err := json.Unmarshal(b, &list); err != nil {
		return nil, err
	}
	if list == nil {
		list = []dom.Comment{}
	}
	return list, nil
}

// Set stores the list in cache.
func (c *CommentCache) Set(ctx context.Context, taskID string, list []dom.Comment) error {
	if list == nil {
		list = []dom.Comment{}
	}
	b, err := json.Marshal(list)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, keyComments+taskID, b, c.ttl).Err()
}

// Invalidate drops the task's cached list (on write).
func (c *CommentCache) Invalidate(ctx context.Context, taskID string) error {
	return c.rdb.Del(ctx, keyComments+taskID).Err()
}
