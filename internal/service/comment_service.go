package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dordunu1/taskboard/internal/cache"
	dom "github.com/dordunu1/taskboard/internal/domain"
	"github.com/dordunu1/taskboard/internal/repo"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"golang.org/x/sync/singleflight"
)

var ErrEmptyComment = errors.New("comment text is required")

const anonymous = "Anonymous"

// CommentService appends and lists task comments.
type CommentService struct {
	comments repo.CommentRepo
	tasks    repo.TaskRepo
	cache    *cache.CommentCache
	sf       singleflight.Group
	now      func() time.Time
	newID    func() string
}

// NewCommentService creates a CommentService. If c is nil, caching is disabled.
func NewCommentService(comments repo.CommentRepo, tasks repo.TaskRepo, c *cache.CommentCache) *CommentService {
	return &CommentService{
		comments: comments,
		tasks:    tasks,
		cache:    c,
		now:      func() time.Time { return time.Now().UTC() },
		newID:    uuid.NewString,
	}
}

// Add appends a comment to a task visible to who. The task itself is not
// written, so its updated_at does not move.
func (s *CommentService) Add(ctx context.Context, who dom.Identity, taskID, text, userName string) (dom.Comment, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return dom.Comment{}, ErrEmptyComment
	}
	userName = strings.TrimSpace(userName)
	if userName == "" {
		userName = anonymous
	}
	if _, err := s.tasks.GetVisible(ctx, who, taskID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return dom.Comment{}, ErrNotFound
		}
		return dom.Comment{}, err
	}
	c, err := s.comments.Create(ctx, dom.Comment{
		ID:        s.newID(),
		TaskID:    taskID,
		Text:      text,
		UserName:  userName,
		CreatedAt: s.now(),
	})
	if err != nil {
		return dom.Comment{}, fmt.Errorf("create comment: %w", err)
	}
	if s.cache != nil {
		_ = s.cache.Invalidate(ctx, taskID)
	}
	return c, nil
}

// List returns the task's comments, newest first. It does not require the
// task to still exist.
func (s *CommentService) List(ctx context.Context, taskID string) ([]dom.Comment, error) {
	if s.cache != nil {
		v, err, _ := s.sf.Do(taskID, func() (interface{}, error) {
			if list, err := s.cache.Get(ctx, taskID); err == nil && list != nil {
				return list, nil
			}
			list, err := s.comments.ListByTask(ctx, taskID)
			if err != nil {
				return nil, err
			}
			_ = s.cache.Set(ctx, taskID, list)
			return list, nil
		})
		if err != nil {
			return nil, err
		}
		return v.([]dom.Comment), nil
	}
	return s.comments.ListByTask(ctx, taskID)
}
