// Package handlers is the gin HTTP surface of the board.
package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/dordunu1/taskboard/internal/auth"
	dom "github.com/dordunu1/taskboard/internal/domain"
	"github.com/dordunu1/taskboard/internal/service"
	"github.com/dordunu1/taskboard/internal/tasksync"

	"github.com/gin-gonic/gin"
)

// TaskService is the write side of the board.
type TaskService interface {
	Create(ctx context.Context, who dom.Identity, in dom.NewTask) (dom.Task, error)
	Get(ctx context.Context, who dom.Identity, id string) (dom.Task, error)
	Update(ctx context.Context, who dom.Identity, id string, patch dom.TaskPatch) (dom.Task, error)
	Move(ctx context.Context, who dom.Identity, id string, to dom.Status) (dom.Task, error)
	Delete(ctx context.Context, who dom.Identity, id string) error
	AddAttachment(ctx context.Context, who dom.Identity, id string, a dom.MediaAttachment) (dom.Task, error)
	RemoveAttachment(ctx context.Context, who dom.Identity, id, attachmentID string) (dom.Task, error)
}

type AttachmentService interface {
	MaxBytes() int64
	Upload(ctx context.Context, who dom.Identity, taskID string, f service.FileUpload) (dom.MediaAttachment, error)
}

type CommentService interface {
	Add(ctx context.Context, who dom.Identity, taskID, text, userName string) (dom.Comment, error)
	List(ctx context.Context, taskID string) ([]dom.Comment, error)
}

type UserService interface {
	Register(ctx context.Context, email, password, displayName string) (dom.User, error)
	ValidateCredentials(ctx context.Context, email, password string) (dom.User, error)
	SignInFederated(ctx context.Context, provider, email, displayName, photoURL string) (dom.User, error)
	GetByID(ctx context.Context, id string) (dom.User, error)
	RequestPasswordReset(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, password string) error
}

// Boards hands out per-session synchronizers; *tasksync.Manager implements it.
type Boards interface {
	Acquire(ctx context.Context, sess tasksync.Session) (*tasksync.Synchronizer, error)
	Release(sessionID string)
}

// GoogleFlow is the Google sign-in flow; *auth.Google implements it.
type GoogleFlow interface {
	AuthURL(ctx context.Context) (string, error)
	Exchange(ctx context.Context, state, code string) (auth.GoogleProfile, error)
}

// session returns the caller set by auth.RequireSession.
func session(c *gin.Context) (tasksync.Session, bool) {
	who, ok := auth.IdentityFromContext(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authorization required"})
		return tasksync.Session{}, false
	}
	return tasksync.Session{ID: auth.SessionIDFromContext(c), Identity: who}, true
}

// writeError maps service errors to status codes.
func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, service.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, service.ErrEmptyTitle),
		errors.Is(err, service.ErrInvalidStatus),
		errors.Is(err, service.ErrInvalidPriority),
		errors.Is(err, service.ErrInvalidCategory),
		errors.Is(err, service.ErrEmptyComment),
		errors.Is(err, service.ErrEmptyFile),
		errors.Is(err, service.ErrInvalidEmail),
		errors.Is(err, service.ErrWeakPassword),
		errors.Is(err, service.ErrInvalidResetToken):
		status = http.StatusBadRequest
	case errors.Is(err, service.ErrFileTooLarge):
		status = http.StatusRequestEntityTooLarge
	case errors.Is(err, service.ErrFileTypeNotAllowed):
		status = http.StatusUnsupportedMediaType
	case errors.Is(err, service.ErrEmailTaken):
		status = http.StatusConflict
	case errors.Is(err, service.ErrInvalidCredentials),
		errors.Is(err, tasksync.ErrReleased):
		status = http.StatusUnauthorized
	case errors.Is(err, service.ErrResetUnavailable):
		status = http.StatusServiceUnavailable
	}
	if status == http.StatusInternalServerError {
		log.Printf("%s %s: %v", c.Request.Method, c.FullPath(), err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
