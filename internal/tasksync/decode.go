package tasksync

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dordunu1/taskboard/internal/domain"
	"github.com/dordunu1/taskboard/internal/repo"
)

// flexTime accepts the timestamp shapes found in stored attachment
// documents: RFC3339 strings, date-only strings, unix seconds or
// milliseconds, and {"seconds","nanoseconds"} objects.
type flexTime struct{ t time.Time }

func (f *flexTime) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		f.t = time.Time{}
		return nil
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		return f.parseString(strings.TrimSpace(s))
	case '{':
		var obj struct {
			Seconds      *int64 `json:"seconds"`
			Nanoseconds  int64  `json:"nanoseconds"`
			USeconds     *int64 `json:"_seconds"`
			UNanoseconds int64  `json:"_nanoseconds"`
		}
		if err := json.Unmarshal(data, &obj); err != nil {
			return err
		}
		switch {
		case obj.Seconds != nil:
			f.t = time.Unix(*obj.Seconds, obj.Nanoseconds).UTC()
		case obj.USeconds != nil:
			f.t = time.Unix(*obj.USeconds, obj.UNanoseconds).UTC()
		default:
			return errors.New("timestamp object without seconds")
		}
		return nil
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("timestamp: %w", err)
		}
		v, err := n.Int64()
		if err != nil {
			return fmt.Errorf("timestamp: %w", err)
		}
		// Anything below 1e11 is seconds (that is year 5138 in seconds).
		if v < 1e11 {
			f.t = time.Unix(v, 0).UTC()
		} else {
			f.t = time.UnixMilli(v).UTC()
		}
		return nil
	}
}

func (f *flexTime) parseString(s string) error {
	if s == "" {
		f.t = time.Time{}
		return nil
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			f.t = t.UTC()
			return nil
		}
	}
	return fmt.Errorf("timestamp %q: unsupported format", s)
}

type attachmentDoc struct {
	ID         string   `json:"id"`
	FileName   string   `json:"fileName"`
	FileURL    string   `json:"fileUrl"`
	FileType   string   `json:"fileType"`
	FileSize   int64    `json:"fileSize"`
	UploadedAt flexTime `json:"uploadedAt"`
	UploadedBy string   `json:"uploadedBy"`
}

// DecodeTask maps a stored record to a Task. Unknown enum values are coerced
// to their fallbacks and reported in notes; a record that cannot be decoded
// at all returns an error and should be skipped.
func DecodeTask(rec repo.TaskRecord) (domain.Task, []string, error) {
	var notes []string
	if rec.ID == "" {
		return domain.Task{}, nil, errors.New("record without id")
	}
	status, ok := domain.ParseStatus(rec.Status)
	if !ok {
		notes = append(notes, fmt.Sprintf("status %q coerced to %s", rec.Status, status))
	}
	priority, ok := domain.ParsePriority(rec.Priority)
	if !ok {
		notes = append(notes, fmt.Sprintf("priority %q coerced to %s", rec.Priority, priority))
	}
	category, ok := domain.ParseCategory(rec.Category)
	if !ok {
		notes = append(notes, fmt.Sprintf("category %q coerced to %s", rec.Category, category))
	}

	var attachments []domain.MediaAttachment
	if s := strings.TrimSpace(rec.Attachments); s != "" && s != "null" {
		var docs []attachmentDoc
		if err := json.Unmarshal([]byte(s), &docs); err != nil {
			return domain.Task{}, notes, fmt.Errorf("attachments: %w", err)
		}
		attachments = make([]domain.MediaAttachment, len(docs))
		for i, d := range docs {
			attachments[i] = domain.MediaAttachment{
				ID:         d.ID,
				FileName:   d.FileName,
				FileURL:    d.FileURL,
				FileType:   d.FileType,
				FileSize:   d.FileSize,
				UploadedAt: d.UploadedAt.t,
				UploadedBy: d.UploadedBy,
			}
		}
	}

	updated := rec.UpdatedAt
	if updated.Before(rec.CreatedAt) {
		notes = append(notes, "updated_at before created_at, clamped")
		updated = rec.CreatedAt
	}

	var links []string
	if len(rec.Links) > 0 {
		links = append([]string(nil), rec.Links...)
	}

	return domain.Task{
		ID:          rec.ID,
		Title:       rec.Title,
		Description: rec.Description,
		Status:      status,
		Priority:    priority,
		Category:    category,
		DueDate:     rec.DueDate,
		Assignee:    rec.Assignee,
		Links:       links,
		Attachments: attachments,
		CreatedBy:   rec.CreatedBy,
		CreatedAt:   rec.CreatedAt,
		UpdatedAt:   updated,
	}, notes, nil
}
