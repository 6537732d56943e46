package service

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"

	dom "github.com/dordunu1/taskboard/internal/domain"
	"github.com/dordunu1/taskboard/internal/repo"

	"github.com/jackc/pgx/v5"
)

var (
	alice = dom.Identity{UserID: "u-alice", Email: "alice@example.com"}
	bob   = dom.Identity{UserID: "u-bob", Email: "bob@example.com"}
)

func fixedClock(t time.Time) func() time.Time { return func() time.Time { return t } }

func recordOf(t dom.Task) repo.TaskRecord {
	att := "[]"
	if len(t.Attachments) > 0 {
		b, _ := json.Marshal(t.Attachments)
		att = string(b)
	}
	return repo.TaskRecord{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Status:      string(t.Status),
		Priority:    string(t.Priority),
		Category:    string(t.Category),
		DueDate:     t.DueDate,
		Assignee:    t.Assignee,
		Links:       t.Links,
		Attachments: att,
		CreatedBy:   t.CreatedBy,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

// memTasks is an in-memory TaskRepo with the same visibility and
// updated_at rules as the Postgres one.
type memTasks struct {
	mu   sync.Mutex
	rows map[string]dom.Task
}

func newMemTasks() *memTasks { return &memTasks{rows: map[string]dom.Task{}} }

func (m *memTasks) Create(_ context.Context, t dom.Task) (repo.TaskRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[t.ID] = t
	return recordOf(t), nil
}

func (m *memTasks) GetVisible(_ context.Context, who dom.Identity, id string) (repo.TaskRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.rows[id]
	if !ok || !t.VisibleTo(who) {
		return repo.TaskRecord{}, pgx.ErrNoRows
	}
	return recordOf(t), nil
}

func (m *memTasks) ListVisible(_ context.Context, who dom.Identity) ([]repo.TaskRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []repo.TaskRecord
	for _, t := range m.rows {
		if t.VisibleTo(who) {
			out = append(out, recordOf(t))
		}
	}
	return out, nil
}

func (m *memTasks) Update(_ context.Context, who dom.Identity, id string, p dom.TaskPatch, stamp time.Time) (repo.TaskRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.rows[id]
	if !ok || !t.VisibleTo(who) {
		return repo.TaskRecord{}, pgx.ErrNoRows
	}
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Status != nil {
		t.Status = *p.Status
	}
	if p.Priority != nil {
		t.Priority = *p.Priority
	}
	if p.Category != nil {
		t.Category = *p.Category
	}
	if p.ClearDueDate {
		t.DueDate = nil
	} else if p.DueDate != nil {
		t.DueDate = p.DueDate
	}
	if p.Assignee != nil {
		t.Assignee = *p.Assignee
	}
	if p.Links != nil {
		t.Links = *p.Links
	}
	if p.Attachments != nil {
		t.Attachments = *p.Attachments
	}
	if p.RemoveAttachmentID != "" {
		kept := []dom.MediaAttachment{}
		for _, a := range t.Attachments {
			if a.ID != p.RemoveAttachmentID {
				kept = append(kept, a)
			}
		}
		t.Attachments = kept
	}
	if len(p.AppendAttachments) > 0 {
		t.Attachments = append(append([]dom.MediaAttachment(nil), t.Attachments...), p.AppendAttachments...)
	}
	next := t.UpdatedAt.Add(time.Microsecond)
	if stamp.After(next) {
		next = stamp
	}
	t.UpdatedAt = next
	m.rows[id] = t
	return recordOf(t), nil
}

func (m *memTasks) Delete(_ context.Context, who dom.Identity, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.rows[id]
	if !ok || !t.VisibleTo(who) {
		return false, nil
	}
	delete(m.rows, id)
	return true, nil
}

type mockTaskRepo struct {
	repo.TaskRepo
	GetVisibleFunc func(ctx context.Context, who dom.Identity, id string) (repo.TaskRecord, error)
	UpdateFunc     func(ctx context.Context, who dom.Identity, id string, p dom.TaskPatch, stamp time.Time) (repo.TaskRecord, error)
	DeleteFunc     func(ctx context.Context, who dom.Identity, id string) (bool, error)
}

func (m *mockTaskRepo) GetVisible(ctx context.Context, who dom.Identity, id string) (repo.TaskRecord, error) {
	return m.GetVisibleFunc(ctx, who, id)
}

func (m *mockTaskRepo) Update(ctx context.Context, who dom.Identity, id string, p dom.TaskPatch, stamp time.Time) (repo.TaskRecord, error) {
	return m.UpdateFunc(ctx, who, id, p, stamp)
}

func (m *mockTaskRepo) Delete(ctx context.Context, who dom.Identity, id string) (bool, error) {
	return m.DeleteFunc(ctx, who, id)
}

type memComments struct {
	mu    sync.Mutex
	list  []dom.Comment
	lists int
}

func (m *memComments) Create(_ context.Context, c dom.Comment) (dom.Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.list = append(m.list, c)
	return c, nil
}

func (m *memComments) ListByTask(_ context.Context, taskID string) ([]dom.Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lists++
	out := []dom.Comment{}
	for i := len(m.list) - 1; i >= 0; i-- {
		if m.list[i].TaskID == taskID {
			out = append(out, m.list[i])
		}
	}
	return out, nil
}

type mockStore struct {
	PutFunc func(ctx context.Context, path, contentType string, r io.Reader, size int64) error
	URLFunc func(ctx context.Context, path string) (string, error)
	puts    int
}

func (m *mockStore) Put(ctx context.Context, path, contentType string, r io.Reader, size int64) error {
	m.puts++
	if m.PutFunc == nil {
		return nil
	}
	return m.PutFunc(ctx, path, contentType, r, size)
}

func (m *mockStore) URL(ctx context.Context, path string) (string, error) {
	if m.URLFunc == nil {
		return "https://blobs.example.com/" + path, nil
	}
	return m.URLFunc(ctx, path)
}

type mockUserRepo struct {
	GetByEmailFunc      func(ctx context.Context, email string) (dom.User, error)
	GetByIDFunc         func(ctx context.Context, id string) (dom.User, error)
	CreateFunc          func(ctx context.Context, u dom.User) (dom.User, error)
	UpsertFederatedFunc func(ctx context.Context, u dom.User) (dom.User, error)
	SetPasswordHashFunc func(ctx context.Context, id, hash string) error
}

func (m *mockUserRepo) GetByEmail(ctx context.Context, email string) (dom.User, error) {
	return m.GetByEmailFunc(ctx, email)
}

func (m *mockUserRepo) GetByID(ctx context.Context, id string) (dom.User, error) {
	return m.GetByIDFunc(ctx, id)
}

func (m *mockUserRepo) Create(ctx context.Context, u dom.User) (dom.User, error) {
	return m.CreateFunc(ctx, u)
}

func (m *mockUserRepo) UpsertFederated(ctx context.Context, u dom.User) (dom.User, error) {
	return m.UpsertFederatedFunc(ctx, u)
}

func (m *mockUserRepo) SetPasswordHash(ctx context.Context, id, hash string) error {
	return m.SetPasswordHashFunc(ctx, id, hash)
}

type mockTokens struct {
	IssueFunc   func(ctx context.Context, userID string) (string, error)
	ConsumeFunc func(ctx context.Context, token string) (string, error)
}

func (m *mockTokens) Issue(ctx context.Context, userID string) (string, error) {
	return m.IssueFunc(ctx, userID)
}

func (m *mockTokens) Consume(ctx context.Context, token string) (string, error) {
	return m.ConsumeFunc(ctx, token)
}

type sentMail struct{ to, subject, body string }

type mockMailer struct{ sent []sentMail }

func (m *mockMailer) Send(_ context.Context, to, subject, body string) error {
	m.sent = append(m.sent, sentMail{to, subject, body})
	return nil
}
