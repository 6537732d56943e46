package handlers

import (
	"errors"
	"net/http"
	"strings"

	dom "github.com/dordunu1/taskboard/internal/domain"
	"github.com/dordunu1/taskboard/internal/dto"
	"github.com/dordunu1/taskboard/internal/service"

	"github.com/gin-gonic/gin"
)

// multipartSlack is room for multipart framing on top of the file cap.
const multipartSlack = 1 << 20

type TaskHandler struct {
	tasks   TaskService
	uploads AttachmentService
}

func NewTaskHandler(tasks TaskService, uploads AttachmentService) *TaskHandler {
	return &TaskHandler{tasks: tasks, uploads: uploads}
}

// Create godoc
// @Summary      Create a task
// @Tags         tasks
// @Accept       json
// @Produce      json
// @Security     CookieAuth
// @Param        body  body      dto.CreateTaskRequest  true  "Task body"
// @Success      201   {object}  dto.TaskResponse
// @Failure      400   {object}  map[string]string
// @Failure      500   {object}  map[string]string
// @Router       /tasks [post]
func (h *TaskHandler) Create(c *gin.Context) {
	sess, ok := session(c)
	if !ok {
		return
	}
	var req dto.CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	t, err := h.tasks.Create(c.Request.Context(), sess.Identity, dom.NewTask{
		Title:       req.Title,
		Description: req.Description,
		Status:      dom.Status(req.Status),
		Priority:    dom.Priority(req.Priority),
		Category:    dom.Category(req.Category),
		DueDate:     req.DueDate.Ptr(),
		Assignee:    req.Assignee,
		Links:       req.Links,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, taskToResponse(t))
}

// GetByID godoc
// @Summary      Get a task by ID
// @Tags         tasks
// @Produce      json
// @Security     CookieAuth
// @Param        id   path      string  true  "Task ID"
// @Success      200  {object}  dto.TaskResponse
// @Failure      404  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /tasks/{id} [get]
func (h *TaskHandler) GetByID(c *gin.Context) {
	sess, ok := session(c)
	if !ok {
		return
	}
	t, err := h.tasks.Get(c.Request.Context(), sess.Identity, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, taskToResponse(t))
}

// Update godoc
// @Summary      Update a task
// @Description  Writes only the fields present in the body and stamps updated_at.
// @Tags         tasks
// @Accept       json
// @Produce      json
// @Security     CookieAuth
// @Param        id    path      string                 true  "Task ID"
// @Param        body  body      dto.UpdateTaskRequest  true  "Partial update"
// @Success      200   {object}  dto.TaskResponse
// @Failure      400   {object}  map[string]string
// @Failure      404   {object}  map[string]string
// @Failure      500   {object}  map[string]string
// @Router       /tasks/{id} [patch]
func (h *TaskHandler) Update(c *gin.Context) {
	sess, ok := session(c)
	if !ok {
		return
	}
	var req dto.UpdateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	t, err := h.tasks.Update(c.Request.Context(), sess.Identity, c.Param("id"), patchFromRequest(req))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, taskToResponse(t))
}

func patchFromRequest(req dto.UpdateTaskRequest) dom.TaskPatch {
	p := dom.TaskPatch{
		Title:       req.Title,
		Description: req.Description,
		Assignee:    req.Assignee,
		Links:       req.Links,
	}
	if req.Status != nil {
		st := dom.Status(*req.Status)
		p.Status = &st
	}
	if req.Priority != nil {
		pr := dom.Priority(*req.Priority)
		p.Priority = &pr
	}
	if req.Category != nil {
		cat := dom.Category(*req.Category)
		p.Category = &cat
	}
	if req.DueDate.Set() {
		if d := req.DueDate.Ptr(); d != nil {
			p.DueDate = d
		} else {
			p.ClearDueDate = true
		}
	}
	return p
}

// Move godoc
// @Summary      Move a task to another column
// @Description  Any status may move to any other status.
// @Tags         tasks
// @Accept       json
// @Produce      json
// @Security     CookieAuth
// @Param        id    path      string               true  "Task ID"
// @Param        body  body      dto.MoveTaskRequest  true  "Target status"
// @Success      200   {object}  dto.TaskResponse
// @Failure      400   {object}  map[string]string
// @Failure      404   {object}  map[string]string
// @Router       /tasks/{id}/status [patch]
func (h *TaskHandler) Move(c *gin.Context) {
	sess, ok := session(c)
	if !ok {
		return
	}
	var req dto.MoveTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	t, err := h.tasks.Move(c.Request.Context(), sess.Identity, c.Param("id"), dom.Status(req.Status))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, taskToResponse(t))
}

// Delete godoc
// @Summary      Delete a task
// @Description  Comments and uploaded files of the task are kept.
// @Tags         tasks
// @Security     CookieAuth
// @Param        id   path  string  true  "Task ID"
// @Success      204
// @Failure      404  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /tasks/{id} [delete]
func (h *TaskHandler) Delete(c *gin.Context) {
	sess, ok := session(c)
	if !ok {
		return
	}
	if err := h.tasks.Delete(c.Request.Context(), sess.Identity, c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// UploadAttachment godoc
// @Summary      Attach a file to a task
// @Description  Images, PDF, plain text and Word documents up to the configured size cap.
// @Tags         tasks
// @Accept       multipart/form-data
// @Produce      json
// @Security     CookieAuth
// @Param        id    path      string  true  "Task ID"
// @Param        file  formData  file    true  "File"
// @Success      201   {object}  dto.UploadResponse
// @Failure      400   {object}  map[string]string
// @Failure      404   {object}  map[string]string
// @Failure      413   {object}  map[string]string
// @Failure      415   {object}  map[string]string
// @Failure      500   {object}  map[string]string
// @Router       /tasks/{id}/attachments [post]
func (h *TaskHandler) UploadAttachment(c *gin.Context) {
	sess, ok := session(c)
	if !ok {
		return
	}
	id := c.Param("id")
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.uploads.MaxBytes()+multipartSlack)
	fh, err := c.FormFile("file")
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) || strings.Contains(err.Error(), "request body too large") {
			writeError(c, service.ErrFileTooLarge)
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "multipart field \"file\" is required"})
		return
	}
	f, err := fh.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	defer f.Close()

	ctx := c.Request.Context()
	att, err := h.uploads.Upload(ctx, sess.Identity, id, service.FileUpload{
		Name:        fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Size:        fh.Size,
		Body:        f,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	t, err := h.tasks.AddAttachment(ctx, sess.Identity, id, att)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, dto.UploadResponse{
		Attachment: attachmentToResponse(att),
		Task:       taskToResponse(t),
	})
}

// RemoveAttachment godoc
// @Summary      Remove an attachment from a task
// @Description  Drops the reference only; the stored file is kept.
// @Tags         tasks
// @Produce      json
// @Security     CookieAuth
// @Param        id            path      string  true  "Task ID"
// @Param        attachmentId  path      string  true  "Attachment ID"
// @Success      200           {object}  dto.TaskResponse
// @Failure      404           {object}  map[string]string
// @Failure      500           {object}  map[string]string
// @Router       /tasks/{id}/attachments/{attachmentId} [delete]
func (h *TaskHandler) RemoveAttachment(c *gin.Context) {
	sess, ok := session(c)
	if !ok {
		return
	}
	t, err := h.tasks.RemoveAttachment(c.Request.Context(), sess.Identity, c.Param("id"), c.Param("attachmentId"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, taskToResponse(t))
}
