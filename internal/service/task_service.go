package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	dom "github.com/dordunu1/taskboard/internal/domain"
	"github.com/dordunu1/taskboard/internal/repo"
	"github.com/dordunu1/taskboard/internal/tasksync"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrEmptyTitle      = errors.New("title is required")
	ErrInvalidStatus   = errors.New("invalid status")
	ErrInvalidPriority = errors.New("invalid priority")
	ErrInvalidCategory = errors.New("invalid category")
)

// TaskService writes tasks straight to the store. Readers see the result
// through the live feed; nothing here touches a synchronizer cache.
type TaskService struct {
	repo  repo.TaskRepo
	now   func() time.Time
	newID func() string
}

// NewTaskService returns a new TaskService.
func NewTaskService(r repo.TaskRepo) *TaskService {
	return &TaskService{
		repo:  r,
		now:   func() time.Time { return time.Now().UTC() },
		newID: uuid.NewString,
	}
}

// Create inserts a task owned by who. Status, priority and category fall
// back to their defaults when unset and are rejected when unknown.
func (s *TaskService) Create(ctx context.Context, who dom.Identity, in dom.NewTask) (dom.Task, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return dom.Task{}, ErrEmptyTitle
	}
	status := dom.StatusTodo
	if in.Status != "" {
		status = in.Status
	}
	priority := dom.PriorityMedium
	if in.Priority != "" {
		priority = in.Priority
	}
	category := dom.CategoryGeneral
	if in.Category != "" {
		category = in.Category
	}
	if err := checkEnums(&status, &priority, &category); err != nil {
		return dom.Task{}, err
	}
	now := s.now()

	rec, err := s.repo.Create(ctx, dom.Task{
		ID:          s.newID(),
		Title:       title,
		Description: strings.TrimSpace(in.Description),
		Status:      status,
		Priority:    priority,
		Category:    category,
		DueDate:     in.DueDate,
		Assignee:    strings.TrimSpace(in.Assignee),
		Links:       cleanLinks(in.Links),
		Attachments: in.Attachments,
		CreatedBy:   who.UserID,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		return dom.Task{}, fmt.Errorf("create task: %w", err)
	}
	return decode(rec)
}

// Get returns a task visible to who.
func (s *TaskService) Get(ctx context.Context, who dom.Identity, id string) (dom.Task, error) {
	rec, err := s.repo.GetVisible(ctx, who, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return dom.Task{}, ErrNotFound
		}
		return dom.Task{}, err
	}
	return decode(rec)
}

// Update writes the fields present in patch and stamps updated_at. Any
// status may move to any other status.
func (s *TaskService) Update(ctx context.Context, who dom.Identity, id string, patch dom.TaskPatch) (dom.Task, error) {
	if patch.Title != nil {
		t := strings.TrimSpace(*patch.Title)
		if t == "" {
			return dom.Task{}, ErrEmptyTitle
		}
		patch.Title = &t
	}
	if err := checkEnums(patch.Status, patch.Priority, patch.Category); err != nil {
		return dom.Task{}, err
	}
	if patch.Assignee != nil {
		a := strings.TrimSpace(*patch.Assignee)
		patch.Assignee = &a
	}
	if patch.Links != nil {
		l := cleanLinks(*patch.Links)
		patch.Links = &l
	}
	rec, err := s.repo.Update(ctx, who, id, patch, s.now())
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return dom.Task{}, ErrNotFound
		}
		return dom.Task{}, fmt.Errorf("update task: %w", err)
	}
	return decode(rec)
}

// Move changes only the status (board drag and drop).
func (s *TaskService) Move(ctx context.Context, who dom.Identity, id string, to dom.Status) (dom.Task, error) {
	return s.Update(ctx, who, id, dom.TaskPatch{Status: &to})
}

// Delete removes the task. Its comments and uploaded files stay where they are.
func (s *TaskService) Delete(ctx context.Context, who dom.Identity, id string) error {
	ok, err := s.repo.Delete(ctx, who, id)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

// AddAttachment appends a to the task's attachment list. The append happens
// in the store, so concurrent uploads do not drop each other.
func (s *TaskService) AddAttachment(ctx context.Context, who dom.Identity, id string, a dom.MediaAttachment) (dom.Task, error) {
	return s.Update(ctx, who, id, dom.TaskPatch{AppendAttachments: []dom.MediaAttachment{a}})
}

// RemoveAttachment drops the attachment reference from the task. The stored
// file is left in place.
func (s *TaskService) RemoveAttachment(ctx context.Context, who dom.Identity, id, attachmentID string) (dom.Task, error) {
	t, err := s.Get(ctx, who, id)
	if err != nil {
		return dom.Task{}, err
	}
	found := false
	for _, a := range t.Attachments {
		if a.ID == attachmentID {
			found = true
			break
		}
	}
	if !found {
		return dom.Task{}, fmt.Errorf("attachment %s: %w", attachmentID, ErrNotFound)
	}
	return s.Update(ctx, who, id, dom.TaskPatch{RemoveAttachmentID: attachmentID})
}

// checkEnums rejects values outside the known sets. Nil pointers are skipped.
func checkEnums(st *dom.Status, pr *dom.Priority, ca *dom.Category) error {
	if st != nil {
		if _, ok := dom.ParseStatus(string(*st)); !ok {
			return fmt.Errorf("%w: %q", ErrInvalidStatus, *st)
		}
	}
	if pr != nil {
		if _, ok := dom.ParsePriority(string(*pr)); !ok {
			return fmt.Errorf("%w: %q", ErrInvalidPriority, *pr)
		}
	}
	if ca != nil {
		if _, ok := dom.ParseCategory(string(*ca)); !ok {
			return fmt.Errorf("%w: %q", ErrInvalidCategory, *ca)
		}
	}
	return nil
}

func decode(rec repo.TaskRecord) (dom.Task, error) {
	t, notes, err := tasksync.DecodeTask(rec)
	if err != nil {
		return dom.Task{}, fmt.Errorf("decode task %s: %w", rec.ID, err)
	}
	for _, n := range notes {
		log.Printf("task %s: %s", rec.ID, n)
	}
	return t, nil
}

// cleanLinks trims entries and drops empty ones, keeping order.
func cleanLinks(in []string) []string {
	out := make([]string, 0, len(in))
	for _, l := range in {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return out
}
