package domain

import "time"

// Status is the board column a task sits in.
type Status string

const (
	StatusIdeation   Status = "IDEATION"
	StatusTodo       Status = "TODO"
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
)

// Statuses lists every column in board order.
var Statuses = []Status{StatusIdeation, StatusTodo, StatusInProgress, StatusCompleted}

// ParseStatus maps a stored string to a Status. Unknown values fall back to
// StatusTodo with ok == false.
func ParseStatus(s string) (st Status, ok bool) {
	switch Status(s) {
	case StatusIdeation, StatusTodo, StatusInProgress, StatusCompleted:
		return Status(s), true
	}
	return StatusTodo, false
}

// Label is the column heading shown for the status.
func (s Status) Label() string {
	switch s {
	case StatusIdeation:
		return "Ideation"
	case StatusTodo:
		return "To Do"
	case StatusInProgress:
		return "In Progress"
	case StatusCompleted:
		return "Completed"
	}
	return string(s)
}

type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityMedium Priority = "MEDIUM"
	PriorityHigh   Priority = "HIGH"
)

// ParsePriority falls back to PriorityMedium.
func ParsePriority(s string) (Priority, bool) {
	switch Priority(s) {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return Priority(s), true
	}
	return PriorityMedium, false
}

type Category string

const (
	CategoryBlockchain Category = "BLOCKCHAIN"
	CategoryGeneral    Category = "GENERAL"
)

// ParseCategory falls back to CategoryGeneral.
func ParseCategory(s string) (Category, bool) {
	switch Category(s) {
	case CategoryBlockchain, CategoryGeneral:
		return Category(s), true
	}
	return CategoryGeneral, false
}

// Task is a card on the board.
// Не зависит от Gin, Postgres, Redis.
type Task struct {
	ID          string
	Title       string
	Description string
	Status      Status
	Priority    Priority
	Category    Category
	DueDate     *time.Time
	Assignee    string
	Links       []string
	Attachments []MediaAttachment

	CreatedBy string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// VisibleTo reports whether the identity owns the task or is assigned to it.
func (t Task) VisibleTo(id Identity) bool {
	if t.CreatedBy == id.UserID {
		return true
	}
	return t.Assignee != "" && (t.Assignee == id.UserID || t.Assignee == id.Email)
}

// NewTask is the input of a create: everything except id and timestamps.
type NewTask struct {
	Title       string
	Description string
	Status      Status
	Priority    Priority
	Category    Category
	DueDate     *time.Time
	Assignee    string
	Links       []string
	Attachments []MediaAttachment
}

// TaskPatch is a partial update. Nil fields are left untouched.
type TaskPatch struct {
	Title       *string
	Description *string
	Status      *Status
	Priority    *Priority
	Category    *Category
	DueDate     *time.Time
	// ClearDueDate removes the due date; it wins over DueDate.
	ClearDueDate bool
	// Assignee set to "" unassigns.
	Assignee    *string
	Links       *[]string
	Attachments *[]MediaAttachment

	// AppendAttachments and RemoveAttachmentID edit the stored list in
	// place, after Attachments is applied.
	AppendAttachments  []MediaAttachment
	RemoveAttachmentID string
}

// MediaAttachment references a file in blob storage. Never mutated.
type MediaAttachment struct {
	ID         string    `json:"id"`
	FileName   string    `json:"fileName"`
	FileURL    string    `json:"fileUrl"`
	FileType   string    `json:"fileType"`
	FileSize   int64     `json:"fileSize"`
	UploadedAt time.Time `json:"uploadedAt"`
	UploadedBy string    `json:"uploadedBy"`
}

// Comment is append-only. UserName is whatever the author typed.
type Comment struct {
	ID        string
	TaskID    string
	Text      string
	UserName  string
	CreatedAt time.Time
}
