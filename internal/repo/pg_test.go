package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	dom "github.com/dordunu1/taskboard/internal/domain"
	"github.com/dordunu1/taskboard/migrations"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// newTestPool connects to TEST_PG_DSN and applies the migrations. Tests
// using it are skipped when the variable is unset.
func newTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("TEST_PG_DSN")
	if dsn == "" {
		t.Skip("TEST_PG_DSN not set")
	}
	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		t.Fatal(err)
	}
	sqlDB, err := goose.OpenDBWithDriver("pgx", dsn)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer sqlDB.Close()
	if err := goose.Up(sqlDB, "."); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	pool, err := pgxpool.New(context.Background(), dsn)
	if err != nil {
		t.Fatalf("pool: %v", err)
	}
	t.Cleanup(pool.Close)
	return pool
}

func seedTask(t *testing.T, r *PGTaskRepo, owner dom.Identity, assignee string, at time.Time) TaskRecord {
	t.Helper()
	rec, err := r.Create(context.Background(), dom.Task{
		ID:        uuid.NewString(),
		Title:     "seed",
		Status:    dom.StatusTodo,
		Priority:  dom.PriorityMedium,
		Category:  dom.CategoryGeneral,
		Assignee:  assignee,
		CreatedBy: owner.UserID,
		CreatedAt: at,
		UpdatedAt: at,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	return rec
}

func TestPGTaskRepo_UpdateStampNeverGoesBack(t *testing.T) {
	pool := newTestPool(t)
	r := NewPGTaskRepo(pool)
	ctx := context.Background()
	owner := dom.Identity{UserID: uuid.NewString(), Email: "owner@example.com"}
	t0 := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	rec := seedTask(t, r, owner, "", t0)

	title := "later"
	got, err := r.Update(ctx, owner, rec.ID, dom.TaskPatch{Title: &title}, t0.Add(time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	if !got.UpdatedAt.Equal(t0.Add(time.Minute)) {
		t.Fatalf("updated_at = %v, want %v", got.UpdatedAt, t0.Add(time.Minute))
	}

	// A stale stamp still moves the row forward.
	title = "stale"
	stale, err := r.Update(ctx, owner, rec.ID, dom.TaskPatch{Title: &title}, t0)
	if err != nil {
		t.Fatal(err)
	}
	if !stale.UpdatedAt.After(got.UpdatedAt) {
		t.Fatalf("updated_at went from %v to %v", got.UpdatedAt, stale.UpdatedAt)
	}
	if stale.Title != "stale" {
		t.Errorf("title = %q", stale.Title)
	}
}

func TestPGTaskRepo_Visibility(t *testing.T) {
	pool := newTestPool(t)
	r := NewPGTaskRepo(pool)
	ctx := context.Background()
	owner := dom.Identity{UserID: uuid.NewString(), Email: "owner@example.com"}
	byEmail := dom.Identity{UserID: uuid.NewString(), Email: uuid.NewString() + "@example.com"}
	stranger := dom.Identity{UserID: uuid.NewString(), Email: "stranger@example.com"}
	now := time.Now().UTC()

	rec := seedTask(t, r, owner, byEmail.Email, now)

	if _, err := r.GetVisible(ctx, byEmail, rec.ID); err != nil {
		t.Errorf("assignee by email: %v", err)
	}
	if _, err := r.GetVisible(ctx, stranger, rec.ID); err != pgx.ErrNoRows {
		t.Errorf("stranger: err = %v, want ErrNoRows", err)
	}
	list, err := r.ListVisible(ctx, stranger)
	if err != nil {
		t.Fatal(err)
	}
	for _, got := range list {
		if got.ID == rec.ID {
			t.Error("stranger sees the task")
		}
	}
	ok, err := r.Delete(ctx, stranger, rec.ID)
	if err != nil || ok {
		t.Errorf("stranger delete = %v, %v", ok, err)
	}
}

func TestPGTaskRepo_DeleteKeepsComments(t *testing.T) {
	pool := newTestPool(t)
	tasks := NewPGTaskRepo(pool)
	comments := NewPGCommentRepo(pool)
	ctx := context.Background()
	owner := dom.Identity{UserID: uuid.NewString(), Email: "owner@example.com"}
	now := time.Now().UTC().Truncate(time.Microsecond)
	rec := seedTask(t, tasks, owner, "", now)

	for i, text := range []string{"first", "second"} {
		_, err := comments.Create(ctx, dom.Comment{
			ID: uuid.NewString(), TaskID: rec.ID, Text: text, UserName: "Owner",
			CreatedAt: now.Add(time.Duration(i) * time.Second),
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	ok, err := tasks.Delete(ctx, owner, rec.ID)
	if err != nil || !ok {
		t.Fatalf("delete = %v, %v", ok, err)
	}
	list, err := comments.ListByTask(ctx, rec.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 || list[0].Text != "second" {
		t.Fatalf("comments after delete = %+v", list)
	}
}

func TestAttachmentsExpr(t *testing.T) {
	one := []dom.MediaAttachment{{ID: "a1"}}
	tests := []struct {
		name    string
		patch   dom.TaskPatch
		changed bool
		want    []string
		args    int
	}{
		{"untouched", dom.TaskPatch{}, false, nil, 0},
		{"replace", dom.TaskPatch{Attachments: &one}, true, []string{"$5::text::jsonb"}, 1},
		{"append", dom.TaskPatch{AppendAttachments: one}, true, []string{"COALESCE(attachments, '[]'::jsonb) || $5::text::jsonb"}, 1},
		{"remove", dom.TaskPatch{RemoveAttachmentID: "a1"}, true, []string{"jsonb_array_elements(attachments)", "IS DISTINCT FROM $5"}, 1},
		{"remove then append", dom.TaskPatch{RemoveAttachmentID: "a1", AppendAttachments: one}, true,
			[]string{"IS DISTINCT FROM $5", "|| $6::text::jsonb"}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := []any{"u", "e", "id", time.Time{}}
			expr, changed, err := attachmentsExpr(tt.patch, &args)
			if err != nil {
				t.Fatal(err)
			}
			if changed != tt.changed {
				t.Fatalf("changed = %v", changed)
			}
			for _, part := range tt.want {
				if !strings.Contains(expr, part) {
					t.Errorf("expr %q lacks %q", expr, part)
				}
			}
			if len(args)-4 != tt.args {
				t.Errorf("added %d args, want %d", len(args)-4, tt.args)
			}
		})
	}
}

func TestPGTaskRepo_ConcurrentAppendsAndRemove(t *testing.T) {
	pool := newTestPool(t)
	r := NewPGTaskRepo(pool)
	ctx := context.Background()
	owner := dom.Identity{UserID: uuid.NewString(), Email: "owner@example.com"}
	rec := seedTask(t, r, owner, "", time.Now().UTC())

	const n = 8
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			a := dom.MediaAttachment{ID: fmt.Sprintf("a%d", i), FileName: "f.txt"}
			_, err := r.Update(ctx, owner, rec.ID, dom.TaskPatch{AppendAttachments: []dom.MediaAttachment{a}}, time.Now().UTC())
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatal(err)
		}
	}

	got, err := r.Update(ctx, owner, rec.ID, dom.TaskPatch{RemoveAttachmentID: "a3"}, time.Now().UTC())
	if err != nil {
		t.Fatal(err)
	}
	var list []dom.MediaAttachment
	if err := json.Unmarshal([]byte(got.Attachments), &list); err != nil {
		t.Fatal(err)
	}
	if len(list) != n-1 {
		t.Fatalf("attachments = %d, want %d", len(list), n-1)
	}
	for _, a := range list {
		if a.ID == "a3" {
			t.Error("removed attachment still present")
		}
	}
}
