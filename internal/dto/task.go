package dto

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// DueAt parses a due date from JSON as either date-only ("2006-01-02") or RFC3339.
// Date-only is stored as start of that day in UTC. Null or "" clears it.
type DueAt struct {
	t   *time.Time
	set bool
}

func (d *DueAt) UnmarshalJSON(data []byte) error {
	d.set = true
	var raw *string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil || strings.TrimSpace(*raw) == "" {
		d.t = nil
		return nil
	}
	s := strings.TrimSpace(*raw)
	layouts := []string{
		"2006-01-02",     // date only
		time.RFC3339,     // 2006-01-02T15:04:05Z07:00
		time.RFC3339Nano, // with nanoseconds
		"2006-01-02T15:04:05",
	}
	for _, layout := range layouts {
		parsed, err := time.Parse(layout, s)
		if err == nil {
			parsed = parsed.UTC()
			d.t = &parsed
			return nil
		}
	}
	return fmt.Errorf("due_date: use date (YYYY-MM-DD) or RFC3339 datetime")
}

// Ptr returns *time.Time for use in service/domain.
func (d DueAt) Ptr() *time.Time { return d.t }

// Set reports whether the field was present in the body.
func (d DueAt) Set() bool { return d.set }

type CreateTaskRequest struct {
	Title       string   `json:"title" binding:"required,min=1,max=200"`
	Description string   `json:"description" binding:"max=5000"`
	Status      string   `json:"status" binding:"omitempty,oneof=IDEATION TODO IN_PROGRESS COMPLETED"`
	Priority    string   `json:"priority" binding:"omitempty,oneof=LOW MEDIUM HIGH"`
	Category    string   `json:"category" binding:"omitempty,oneof=BLOCKCHAIN GENERAL"`
	DueDate     DueAt    `json:"due_date"` // optional: "2026-02-19" or RFC3339
	Assignee    string   `json:"assignee" binding:"max=320"`
	Links       []string `json:"links" binding:"max=50,dive,url"`
}

// UpdateTaskRequest is a partial update. Absent fields are left alone;
// "due_date": null clears the date and "assignee": "" unassigns.
type UpdateTaskRequest struct {
	Title       *string   `json:"title" binding:"omitempty,min=1,max=200"`
	Description *string   `json:"description" binding:"omitempty,max=5000"`
	Status      *string   `json:"status" binding:"omitempty,oneof=IDEATION TODO IN_PROGRESS COMPLETED"`
	Priority    *string   `json:"priority" binding:"omitempty,oneof=LOW MEDIUM HIGH"`
	Category    *string   `json:"category" binding:"omitempty,oneof=BLOCKCHAIN GENERAL"`
	DueDate     DueAt     `json:"due_date"`
	Assignee    *string   `json:"assignee" binding:"omitempty,max=320"`
	Links       *[]string `json:"links" binding:"omitempty,max=50,dive,url"`
}

// MoveTaskRequest is the body of a drag-and-drop status change.
type MoveTaskRequest struct {
	Status string `json:"status" binding:"required,oneof=IDEATION TODO IN_PROGRESS COMPLETED"`
}

type AttachmentResponse struct {
	ID         string    `json:"id"`
	FileName   string    `json:"file_name"`
	FileURL    string    `json:"file_url"`
	FileType   string    `json:"file_type"`
	FileSize   int64     `json:"file_size"`
	UploadedAt time.Time `json:"uploaded_at"`
	UploadedBy string    `json:"uploaded_by"`
}

type TaskResponse struct {
	ID          string               `json:"id"`
	Title       string               `json:"title"`
	Description string               `json:"description"`
	Status      string               `json:"status"`
	Priority    string               `json:"priority"`
	Category    string               `json:"category"`
	DueDate     *time.Time           `json:"due_date"`
	Assignee    string               `json:"assignee,omitempty"`
	Links       []string             `json:"links"`
	Attachments []AttachmentResponse `json:"attachments"`
	CreatedBy   string               `json:"created_by"`
	CreatedAt   time.Time            `json:"created_at"`
	UpdatedAt   time.Time            `json:"updated_at"`
}

// UploadResponse is returned after an attachment upload: the new
// attachment and the task it was merged into.
type UploadResponse struct {
	Attachment AttachmentResponse `json:"attachment"`
	Task       TaskResponse       `json:"task"`
}
