package handlers

import (
	"context"
	"net/http"

	dom "github.com/dordunu1/taskboard/internal/domain"
	"github.com/dordunu1/taskboard/internal/dto"

	"github.com/gin-gonic/gin"
)

// Profiles resolves the default display name of a comment author.
type Profiles interface {
	GetByID(ctx context.Context, id string) (dom.User, error)
}

type CommentHandler struct {
	comments CommentService
	profiles Profiles
}

func NewCommentHandler(comments CommentService, profiles Profiles) *CommentHandler {
	return &CommentHandler{comments: comments, profiles: profiles}
}

// List godoc
// @Summary      List comments of a task
// @Description  Newest first. Comments stay readable after their task is deleted.
// @Tags         comments
// @Produce      json
// @Security     CookieAuth
// @Param        id   path      string  true  "Task ID"
// @Success      200  {object}  dto.ListCommentsResponse
// @Failure      500  {object}  map[string]string
// @Router       /tasks/{id}/comments [get]
func (h *CommentHandler) List(c *gin.Context) {
	if _, ok := session(c); !ok {
		return
	}
	list, err := h.comments.List(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	items := make([]dto.CommentResponse, len(list))
	for i, cm := range list {
		items[i] = commentToResponse(cm)
	}
	c.JSON(http.StatusOK, dto.ListCommentsResponse{Items: items})
}

// Create godoc
// @Summary      Comment on a task
// @Tags         comments
// @Accept       json
// @Produce      json
// @Security     CookieAuth
// @Param        id    path      string                    true  "Task ID"
// @Param        body  body      dto.CreateCommentRequest  true  "Comment"
// @Success      201   {object}  dto.CommentResponse
// @Failure      400   {object}  map[string]string
// @Failure      404   {object}  map[string]string
// @Failure      500   {object}  map[string]string
// @Router       /tasks/{id}/comments [post]
func (h *CommentHandler) Create(c *gin.Context) {
	sess, ok := session(c)
	if !ok {
		return
	}
	var req dto.CreateCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ctx := c.Request.Context()
	name := req.UserName
	if name == "" && h.profiles != nil {
		if u, err := h.profiles.GetByID(ctx, sess.Identity.UserID); err == nil {
			name = u.DisplayName
		}
	}
	cm, err := h.comments.Add(ctx, sess.Identity, c.Param("id"), req.Text, name)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, commentToResponse(cm))
}
