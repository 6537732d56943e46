package handlers

import (
	"context"
	"sync"

	"github.com/dordunu1/taskboard/internal/auth"
	dom "github.com/dordunu1/taskboard/internal/domain"
	"github.com/dordunu1/taskboard/internal/repo"
	"github.com/dordunu1/taskboard/internal/service"
	"github.com/dordunu1/taskboard/internal/tasksync"

	"github.com/gin-gonic/gin"
)

var alice = dom.Identity{UserID: "u-alice", Email: "alice@example.com"}

// withIdentity stands in for auth.RequireSession.
func withIdentity(sessionID string, who dom.Identity) gin.HandlerFunc {
	return func(c *gin.Context) {
		auth.SetContext(c, sessionID, who)
		c.Next()
	}
}

type mockTasks struct {
	CreateFunc           func(ctx context.Context, who dom.Identity, in dom.NewTask) (dom.Task, error)
	GetFunc              func(ctx context.Context, who dom.Identity, id string) (dom.Task, error)
	UpdateFunc           func(ctx context.Context, who dom.Identity, id string, p dom.TaskPatch) (dom.Task, error)
	MoveFunc             func(ctx context.Context, who dom.Identity, id string, to dom.Status) (dom.Task, error)
	DeleteFunc           func(ctx context.Context, who dom.Identity, id string) error
	AddAttachmentFunc    func(ctx context.Context, who dom.Identity, id string, a dom.MediaAttachment) (dom.Task, error)
	RemoveAttachmentFunc func(ctx context.Context, who dom.Identity, id, attachmentID string) (dom.Task, error)
}

func (m *mockTasks) Create(ctx context.Context, who dom.Identity, in dom.NewTask) (dom.Task, error) {
	return m.CreateFunc(ctx, who, in)
}

func (m *mockTasks) Get(ctx context.Context, who dom.Identity, id string) (dom.Task, error) {
	return m.GetFunc(ctx, who, id)
}

func (m *mockTasks) Update(ctx context.Context, who dom.Identity, id string, p dom.TaskPatch) (dom.Task, error) {
	return m.UpdateFunc(ctx, who, id, p)
}

func (m *mockTasks) Move(ctx context.Context, who dom.Identity, id string, to dom.Status) (dom.Task, error) {
	return m.MoveFunc(ctx, who, id, to)
}

func (m *mockTasks) Delete(ctx context.Context, who dom.Identity, id string) error {
	return m.DeleteFunc(ctx, who, id)
}

func (m *mockTasks) AddAttachment(ctx context.Context, who dom.Identity, id string, a dom.MediaAttachment) (dom.Task, error) {
	return m.AddAttachmentFunc(ctx, who, id, a)
}

func (m *mockTasks) RemoveAttachment(ctx context.Context, who dom.Identity, id, attachmentID string) (dom.Task, error) {
	return m.RemoveAttachmentFunc(ctx, who, id, attachmentID)
}

type mockUploads struct {
	Max        int64
	UploadFunc func(ctx context.Context, who dom.Identity, taskID string, f service.FileUpload) (dom.MediaAttachment, error)
}

func (m *mockUploads) MaxBytes() int64 { return m.Max }

func (m *mockUploads) Upload(ctx context.Context, who dom.Identity, taskID string, f service.FileUpload) (dom.MediaAttachment, error) {
	return m.UploadFunc(ctx, who, taskID, f)
}

type mockComments struct {
	AddFunc  func(ctx context.Context, who dom.Identity, taskID, text, userName string) (dom.Comment, error)
	ListFunc func(ctx context.Context, taskID string) ([]dom.Comment, error)
}

func (m *mockComments) Add(ctx context.Context, who dom.Identity, taskID, text, userName string) (dom.Comment, error) {
	return m.AddFunc(ctx, who, taskID, text, userName)
}

func (m *mockComments) List(ctx context.Context, taskID string) ([]dom.Comment, error) {
	return m.ListFunc(ctx, taskID)
}

type mockUsers struct {
	RegisterFunc             func(ctx context.Context, email, password, displayName string) (dom.User, error)
	ValidateCredentialsFunc  func(ctx context.Context, email, password string) (dom.User, error)
	SignInFederatedFunc      func(ctx context.Context, provider, email, displayName, photoURL string) (dom.User, error)
	GetByIDFunc              func(ctx context.Context, id string) (dom.User, error)
	RequestPasswordResetFunc func(ctx context.Context, email string) error
	ResetPasswordFunc        func(ctx context.Context, token, password string) error
}

func (m *mockUsers) Register(ctx context.Context, email, password, displayName string) (dom.User, error) {
	return m.RegisterFunc(ctx, email, password, displayName)
}

func (m *mockUsers) ValidateCredentials(ctx context.Context, email, password string) (dom.User, error) {
	return m.ValidateCredentialsFunc(ctx, email, password)
}

func (m *mockUsers) SignInFederated(ctx context.Context, provider, email, displayName, photoURL string) (dom.User, error) {
	return m.SignInFederatedFunc(ctx, provider, email, displayName, photoURL)
}

func (m *mockUsers) GetByID(ctx context.Context, id string) (dom.User, error) {
	return m.GetByIDFunc(ctx, id)
}

func (m *mockUsers) RequestPasswordReset(ctx context.Context, email string) error {
	return m.RequestPasswordResetFunc(ctx, email)
}

func (m *mockUsers) ResetPassword(ctx context.Context, token, password string) error {
	return m.ResetPasswordFunc(ctx, token, password)
}

type mockBoards struct {
	mu       sync.Mutex
	released []string
}

func (m *mockBoards) Acquire(context.Context, tasksync.Session) (*tasksync.Synchronizer, error) {
	return nil, nil
}

func (m *mockBoards) Release(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.released = append(m.released, sessionID)
}

type mockGoogle struct {
	AuthURLFunc  func(ctx context.Context) (string, error)
	ExchangeFunc func(ctx context.Context, state, code string) (auth.GoogleProfile, error)
}

func (m *mockGoogle) AuthURL(ctx context.Context) (string, error) { return m.AuthURLFunc(ctx) }

func (m *mockGoogle) Exchange(ctx context.Context, state, code string) (auth.GoogleProfile, error) {
	return m.ExchangeFunc(ctx, state, code)
}

// memSource is a feed.Source over a mutable slice of rows.
type memSource struct {
	mu   sync.Mutex
	rows []repo.TaskRecord
}

func (s *memSource) set(rows ...repo.TaskRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = rows
}

func (s *memSource) ListVisible(_ context.Context, who dom.Identity) ([]repo.TaskRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []repo.TaskRecord
	for _, r := range s.rows {
		if r.CreatedBy == who.UserID || (r.Assignee != "" && (r.Assignee == who.UserID || r.Assignee == who.Email)) {
			out = append(out, r)
		}
	}
	return out, nil
}
