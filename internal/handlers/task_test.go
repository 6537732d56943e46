package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	dom "github.com/dordunu1/taskboard/internal/domain"
	"github.com/dordunu1/taskboard/internal/dto"
	"github.com/dordunu1/taskboard/internal/service"

	"github.com/gin-gonic/gin"
)

var at = time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)

func sampleTask(id string) dom.Task {
	return dom.Task{
		ID: id, Title: "Write docs", Status: dom.StatusTodo, Priority: dom.PriorityMedium,
		Category: dom.CategoryGeneral, CreatedBy: alice.UserID, CreatedAt: at, UpdatedAt: at,
	}
}

func newTaskRouter(tasks *mockTasks, uploads *mockUploads) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewTaskHandler(tasks, uploads)
	r := gin.New()
	g := r.Group("/tasks", withIdentity("sess-1", alice))
	g.POST("", h.Create)
	g.GET("/:id", h.GetByID)
	g.PATCH("/:id", h.Update)
	g.PATCH("/:id/status", h.Move)
	g.DELETE("/:id", h.Delete)
	g.POST("/:id/attachments", h.UploadAttachment)
	g.DELETE("/:id/attachments/:attachmentId", h.RemoveAttachment)
	return r
}

func doJSON(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestTaskHandlerCreate(t *testing.T) {
	var got dom.NewTask
	tasks := &mockTasks{
		CreateFunc: func(_ context.Context, who dom.Identity, in dom.NewTask) (dom.Task, error) {
			if who != alice {
				t.Errorf("who = %+v", who)
			}
			got = in
			task := sampleTask("t1")
			task.Title = in.Title
			task.Links = in.Links
			return task, nil
		},
	}
	r := newTaskRouter(tasks, nil)

	w := doJSON(r, http.MethodPost, "/tasks",
		`{"title":"Write docs","priority":"HIGH","due_date":"2026-05-01","links":["https://example.com/spec"]}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}
	if got.Priority != dom.PriorityHigh || got.DueDate == nil || !got.DueDate.Equal(time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("input = %+v", got)
	}
	var resp dto.TaskResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.ID != "t1" || resp.Status != "TODO" || len(resp.Links) != 1 || resp.Attachments == nil {
		t.Errorf("resp = %+v", resp)
	}
}

func TestTaskHandlerCreateValidation(t *testing.T) {
	tasks := &mockTasks{
		CreateFunc: func(context.Context, dom.Identity, dom.NewTask) (dom.Task, error) {
			t.Fatal("service called for invalid input")
			return dom.Task{}, nil
		},
	}
	r := newTaskRouter(tasks, nil)
	tests := []struct{ name, body string }{
		{"missing title", `{"description":"x"}`},
		{"bad status", `{"title":"a","status":"DONE"}`},
		{"bad priority", `{"title":"a","priority":"URGENT"}`},
		{"bad link", `{"title":"a","links":["not a url"]}`},
		{"bad due date", `{"title":"a","due_date":"tomorrow"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if w := doJSON(r, http.MethodPost, "/tasks", tt.body); w.Code != http.StatusBadRequest {
				t.Errorf("status = %d body=%s", w.Code, w.Body.String())
			}
		})
	}
}

func TestTaskHandlerUpdatePatch(t *testing.T) {
	var got dom.TaskPatch
	tasks := &mockTasks{
		UpdateFunc: func(_ context.Context, _ dom.Identity, id string, p dom.TaskPatch) (dom.Task, error) {
			got = p
			return sampleTask(id), nil
		},
	}
	r := newTaskRouter(tasks, nil)

	tests := []struct {
		name  string
		body  string
		check func(t *testing.T, p dom.TaskPatch)
	}{
		{"status only", `{"status":"COMPLETED"}`, func(t *testing.T, p dom.TaskPatch) {
			if p.Status == nil || *p.Status != dom.StatusCompleted || p.Title != nil || p.DueDate != nil || p.ClearDueDate {
				t.Errorf("patch = %+v", p)
			}
		}},
		{"clear due date", `{"due_date":null}`, func(t *testing.T, p dom.TaskPatch) {
			if !p.ClearDueDate || p.DueDate != nil {
				t.Errorf("patch = %+v", p)
			}
		}},
		{"set due date", `{"due_date":"2026-06-01T10:00:00+02:00"}`, func(t *testing.T, p dom.TaskPatch) {
			if p.ClearDueDate || p.DueDate == nil || !p.DueDate.Equal(time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)) {
				t.Errorf("patch = %+v", p)
			}
		}},
		{"unassign and links", `{"assignee":"","links":[]}`, func(t *testing.T, p dom.TaskPatch) {
			if p.Assignee == nil || *p.Assignee != "" || p.Links == nil || len(*p.Links) != 0 {
				t.Errorf("patch = %+v", p)
			}
		}},
		{"empty body touches", `{}`, func(t *testing.T, p dom.TaskPatch) {
			if p.Title != nil || p.Description != nil || p.Status != nil || p.Priority != nil ||
				p.Category != nil || p.DueDate != nil || p.ClearDueDate || p.Assignee != nil || p.Links != nil {
				t.Errorf("patch = %+v", p)
			}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got = dom.TaskPatch{}
			w := doJSON(r, http.MethodPatch, "/tasks/t1", tt.body)
			if w.Code != http.StatusOK {
				t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
			}
			tt.check(t, got)
		})
	}
}

func TestTaskHandlerMove(t *testing.T) {
	tasks := &mockTasks{
		MoveFunc: func(_ context.Context, _ dom.Identity, id string, to dom.Status) (dom.Task, error) {
			if id == "gone" {
				return dom.Task{}, service.ErrNotFound
			}
			task := sampleTask(id)
			task.Status = to
			return task, nil
		},
	}
	r := newTaskRouter(tasks, nil)

	tests := []struct {
		name, path, body string
		want             int
	}{
		{"ok", "/tasks/t1/status", `{"status":"IN_PROGRESS"}`, http.StatusOK},
		{"backwards is fine", "/tasks/t1/status", `{"status":"IDEATION"}`, http.StatusOK},
		{"unknown status", "/tasks/t1/status", `{"status":"ARCHIVED"}`, http.StatusBadRequest},
		{"missing", "/tasks/gone/status", `{"status":"TODO"}`, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if w := doJSON(r, http.MethodPatch, tt.path, tt.body); w.Code != tt.want {
				t.Errorf("status = %d, want %d (%s)", w.Code, tt.want, w.Body.String())
			}
		})
	}
}

func TestTaskHandlerGetAndDeleteErrors(t *testing.T) {
	tasks := &mockTasks{
		GetFunc: func(context.Context, dom.Identity, string) (dom.Task, error) {
			return dom.Task{}, service.ErrNotFound
		},
		DeleteFunc: func(_ context.Context, _ dom.Identity, id string) error {
			switch id {
			case "t1":
				return nil
			case "broken":
				return fmt.Errorf("delete task: %w", errors.New("connection refused"))
			}
			return service.ErrNotFound
		},
	}
	r := newTaskRouter(tasks, nil)

	tests := []struct {
		method, path string
		want         int
	}{
		{http.MethodGet, "/tasks/nope", http.StatusNotFound},
		{http.MethodDelete, "/tasks/t1", http.StatusNoContent},
		{http.MethodDelete, "/tasks/nope", http.StatusNotFound},
		{http.MethodDelete, "/tasks/broken", http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			if w := doJSON(r, tt.method, tt.path, ""); w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}

func TestTaskHandlerRemoveAttachment(t *testing.T) {
	var gotTask, gotAttachment string
	tasks := &mockTasks{
		RemoveAttachmentFunc: func(_ context.Context, who dom.Identity, id, attachmentID string) (dom.Task, error) {
			if who != alice {
				t.Errorf("who = %+v", who)
			}
			gotTask, gotAttachment = id, attachmentID
			if attachmentID == "gone" {
				return dom.Task{}, fmt.Errorf("attachment gone: %w", service.ErrNotFound)
			}
			task := sampleTask(id)
			task.Attachments = []dom.MediaAttachment{{ID: "a1", FileName: "keep.png", UploadedAt: at}}
			return task, nil
		},
	}
	r := newTaskRouter(tasks, nil)

	w := doJSON(r, http.MethodDelete, "/tasks/t1/attachments/a2", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}
	if gotTask != "t1" || gotAttachment != "a2" {
		t.Errorf("called with %q %q", gotTask, gotAttachment)
	}
	var resp dto.TaskResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Attachments) != 1 || resp.Attachments[0].ID != "a1" {
		t.Errorf("attachments = %+v", resp.Attachments)
	}

	if w := doJSON(r, http.MethodDelete, "/tasks/t1/attachments/gone", ""); w.Code != http.StatusNotFound {
		t.Errorf("missing attachment status = %d", w.Code)
	}
}

func TestTaskHandlerServiceEnumErrors(t *testing.T) {
	tasks := &mockTasks{
		UpdateFunc: func(context.Context, dom.Identity, string, dom.TaskPatch) (dom.Task, error) {
			return dom.Task{}, fmt.Errorf("%w: %q", service.ErrInvalidPriority, "URGENT")
		},
	}
	r := newTaskRouter(tasks, nil)
	if w := doJSON(r, http.MethodPatch, "/tasks/t1", `{"title":"x"}`); w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func multipartBody(t *testing.T, field, name, contentType string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	h := textproto.MIMEHeader{}
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, name))
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	if err != nil {
		t.Fatal(err)
	}
	_, _ = part.Write(data)
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	return &buf, mw.FormDataContentType()
}

func TestTaskHandlerUploadAttachment(t *testing.T) {
	uploads := &mockUploads{
		Max: 1 << 20,
		UploadFunc: func(_ context.Context, _ dom.Identity, taskID string, f service.FileUpload) (dom.MediaAttachment, error) {
			b, _ := io.ReadAll(f.Body)
			if f.ContentType != "image/png" || f.Name != "shot.png" || f.Size != 4 || string(b) != "\x89PNG" {
				t.Errorf("upload = %+v body=%q", f, b)
			}
			return dom.MediaAttachment{ID: "a1", FileName: f.Name, FileURL: "https://blobs/x.png", FileType: f.ContentType, FileSize: f.Size, UploadedAt: at, UploadedBy: alice.UserID}, nil
		},
	}
	tasks := &mockTasks{
		AddAttachmentFunc: func(_ context.Context, _ dom.Identity, id string, a dom.MediaAttachment) (dom.Task, error) {
			task := sampleTask(id)
			task.Attachments = []dom.MediaAttachment{a}
			return task, nil
		},
	}
	r := newTaskRouter(tasks, uploads)

	body, ct := multipartBody(t, "file", "shot.png", "image/png", []byte("\x89PNG"))
	req := httptest.NewRequest(http.MethodPost, "/tasks/t1/attachments", body)
	req.Header.Set("Content-Type", ct)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}
	var resp dto.UploadResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Attachment.ID != "a1" || len(resp.Task.Attachments) != 1 || resp.Task.Attachments[0].FileURL != "https://blobs/x.png" {
		t.Errorf("resp = %+v", resp)
	}
}

func TestTaskHandlerUploadRejections(t *testing.T) {
	uploads := &mockUploads{
		Max: 64,
		UploadFunc: func(_ context.Context, _ dom.Identity, _ string, f service.FileUpload) (dom.MediaAttachment, error) {
			return dom.MediaAttachment{}, service.ErrFileTypeNotAllowed
		},
	}
	tasks := &mockTasks{
		AddAttachmentFunc: func(context.Context, dom.Identity, string, dom.MediaAttachment) (dom.Task, error) {
			t.Fatal("attachment merged after rejection")
			return dom.Task{}, nil
		},
	}
	r := newTaskRouter(tasks, uploads)

	send := func(field, ct string, data []byte) int {
		body, formCT := multipartBody(t, field, "f.bin", ct, data)
		req := httptest.NewRequest(http.MethodPost, "/tasks/t1/attachments", body)
		req.Header.Set("Content-Type", formCT)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}
	if code := send("file", "application/x-executable", []byte("MZ")); code != http.StatusUnsupportedMediaType {
		t.Errorf("disallowed type: %d", code)
	}
	if code := send("other", "image/png", []byte("x")); code != http.StatusBadRequest {
		t.Errorf("missing field: %d", code)
	}
	if code := send("file", "image/png", bytes.Repeat([]byte("x"), 2<<20)); code != http.StatusRequestEntityTooLarge {
		t.Errorf("oversized body: %d", code)
	}
}
