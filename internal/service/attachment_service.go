package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path"
	"strings"
	"time"

	"github.com/dordunu1/taskboard/internal/blob"
	dom "github.com/dordunu1/taskboard/internal/domain"
	"github.com/dordunu1/taskboard/internal/repo"
	"github.com/dordunu1/taskboard/internal/utils"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var (
	ErrFileTooLarge       = errors.New("file is too large")
	ErrFileTypeNotAllowed = errors.New("file type is not allowed")
	ErrEmptyFile          = errors.New("file is empty")
)

// DefaultMaxUpload is the attachment size cap (10 MiB).
const DefaultMaxUpload int64 = 10 << 20

// allowedTypes maps accepted MIME types to the extension used when the
// file name has none.
var allowedTypes = map[string]string{
	"image/jpeg":         "jpg",
	"image/png":          "png",
	"image/gif":          "gif",
	"application/pdf":    "pdf",
	"text/plain":         "txt",
	"application/msword": "doc",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": "docx",
}

// FileUpload is a file received from a client.
type FileUpload struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.Reader
}

// AttachmentService stores task attachments in blob storage.
type AttachmentService struct {
	store    blob.Store
	tasks    repo.TaskRepo
	maxBytes int64
	now      func() time.Time
	newID    func() string
}

// NewAttachmentService returns a new AttachmentService. maxBytes <= 0 uses DefaultMaxUpload.
func NewAttachmentService(store blob.Store, tasks repo.TaskRepo, maxBytes int64) *AttachmentService {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxUpload
	}
	return &AttachmentService{
		store:    store,
		tasks:    tasks,
		maxBytes: maxBytes,
		now:      func() time.Time { return time.Now().UTC() },
		newID:    uuid.NewString,
	}
}

// MaxBytes is the configured size cap.
func (s *AttachmentService) MaxBytes() int64 { return s.maxBytes }

// Validate checks size and type. It performs no I/O.
func (s *AttachmentService) Validate(f FileUpload) error {
	if f.Size <= 0 {
		return ErrEmptyFile
	}
	if f.Size > s.maxBytes {
		return fmt.Errorf("%w: %d bytes, limit %d", ErrFileTooLarge, f.Size, s.maxBytes)
	}
	if _, ok := allowedTypes[mediaType(f.ContentType)]; !ok {
		return fmt.Errorf("%w: %q", ErrFileTypeNotAllowed, f.ContentType)
	}
	return nil
}

// Upload validates f, writes it under the task's attachment prefix and
// returns the attachment record. The caller merges it into the task.
func (s *AttachmentService) Upload(ctx context.Context, who dom.Identity, taskID string, f FileUpload) (dom.MediaAttachment, error) {
	if err := s.Validate(f); err != nil {
		return dom.MediaAttachment{}, err
	}
	if _, err := s.tasks.GetVisible(ctx, who, taskID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return dom.MediaAttachment{}, ErrNotFound
		}
		return dom.MediaAttachment{}, err
	}

	now := s.now()
	ct := mediaType(f.ContentType)
	p, err := attachmentPath(taskID, f.Name, ct, now)
	if err != nil {
		return dom.MediaAttachment{}, err
	}
	if err := s.store.Put(ctx, p, ct, f.Body, f.Size); err != nil {
		return dom.MediaAttachment{}, fmt.Errorf("upload %s: %w", p, err)
	}
	url, err := s.store.URL(ctx, p)
	if err != nil {
		return dom.MediaAttachment{}, fmt.Errorf("resolve url %s: %w", p, err)
	}
	return dom.MediaAttachment{
		ID:         s.newID(),
		FileName:   path.Base(strings.ReplaceAll(f.Name, "\\", "/")),
		FileURL:    url,
		FileType:   ct,
		FileSize:   f.Size,
		UploadedAt: now,
		UploadedBy: who.UserID,
	}, nil
}

// attachmentPath is tasks/{taskID}/attachments/{unixMillis}-{random}.{ext}.
func attachmentPath(taskID, name, contentType string, at time.Time) (string, error) {
	suffix, err := utils.RandomBase36(11)
	if err != nil {
		return "", err
	}
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(name), "."))
	if ext == "" || strings.ContainsAny(ext, "/\\ ") {
		ext = allowedTypes[contentType]
	}
	return fmt.Sprintf("tasks/%s/attachments/%d-%s.%s", taskID, at.UnixMilli(), suffix, ext), nil
}

func mediaType(ct string) string {
	mt, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(ct))
	}
	return mt
}
