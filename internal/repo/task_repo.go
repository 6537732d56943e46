package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	dom "github.com/dordunu1/taskboard/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TaskRecord is a tasks row as stored. Enum columns and the attachments
// document are left undecoded; readers decide how to treat bad values.
type TaskRecord struct {
	ID          string
	Title       string
	Description string
	Status      string
	Priority    string
	Category    string
	DueDate     *time.Time
	Assignee    string
	Links       []string
	Attachments string // JSON array
	CreatedBy   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type TaskRepo interface {
	Create(ctx context.Context, t dom.Task) (TaskRecord, error)
	GetVisible(ctx context.Context, who dom.Identity, id string) (TaskRecord, error)
	ListVisible(ctx context.Context, who dom.Identity) ([]TaskRecord, error)
	Update(ctx context.Context, who dom.Identity, id string, patch dom.TaskPatch, stamp time.Time) (TaskRecord, error)
	Delete(ctx context.Context, who dom.Identity, id string) (bool, error)
}

type PGTaskRepo struct {
	db *pgxpool.Pool
}

func NewPGTaskRepo(db *pgxpool.Pool) *PGTaskRepo {
	return &PGTaskRepo{db: db}
}

const taskColumns = `id, title, description, status, priority, category, due_date,
	COALESCE(assignee, ''), COALESCE(links, '{}'), COALESCE(attachments, '[]')::text,
	created_by, created_at, updated_at`

// visibleTo is appended to WHERE clauses; $1 is the user id and $2 the email.
const visibleTo = `(created_by = $1 OR assignee = $1 OR (assignee = $2 AND $2 <> ''))`

func scanTask(row pgx.Row) (TaskRecord, error) {
	var r TaskRecord
	err := row.Scan(&r.ID, &r.Title, &r.Description, &r.Status, &r.Priority, &r.Category,
		&r.DueDate, &r.Assignee, &r.Links, &r.Attachments,
		&r.CreatedBy, &r.CreatedAt, &r.UpdatedAt)
	return r, err
}

func (r *PGTaskRepo) Create(ctx context.Context, t dom.Task) (TaskRecord, error) {
	attachments, err := marshalAttachments(t.Attachments)
	if err != nil {
		return TaskRecord{}, err
	}
	query := `
		INSERT INTO tasks (id, title, description, status, priority, category, due_date,
			assignee, links, attachments, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''), $9, $10::text::jsonb, $11, $12, $13)
		RETURNING ` + taskColumns
	return scanTask(r.db.QueryRow(ctx, query,
		t.ID, t.Title, t.Description, string(t.Status), string(t.Priority), string(t.Category),
		t.DueDate, t.Assignee, nonNilLinks(t.Links), attachments,
		t.CreatedBy, t.CreatedAt, t.UpdatedAt,
	))
}

func (r *PGTaskRepo) GetVisible(ctx context.Context, who dom.Identity, id string) (TaskRecord, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = $3 AND ` + visibleTo
	return scanTask(r.db.QueryRow(ctx, query, who.UserID, who.Email, id))
}

// ListVisible returns every task the identity owns or is assigned to, most
// recently updated first.
func (r *PGTaskRepo) ListVisible(ctx context.Context, who dom.Identity) ([]TaskRecord, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE ` + visibleTo + ` ORDER BY updated_at DESC`
	rows, err := r.db.Query(ctx, query, who.UserID, who.Email)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []TaskRecord{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, t)
	}
	return list, rows.Err()
}

// Update writes only the fields present in patch. updated_at becomes the
// later of stamp and the previous value plus one microsecond, so it always
// moves forward even when stamps arrive out of order.
func (r *PGTaskRepo) Update(ctx context.Context, who dom.Identity, id string, patch dom.TaskPatch, stamp time.Time) (TaskRecord, error) {
	args := []any{who.UserID, who.Email, id, stamp}
	sets := []string{`updated_at = GREATEST($4, updated_at + interval '1 microsecond')`}
	add := func(col string, v any, cast string) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d%s", col, len(args), cast))
	}
	if patch.Title != nil {
		add("title", *patch.Title, "")
	}
	if patch.Description != nil {
		add("description", *patch.Description, "")
	}
	if patch.Status != nil {
		add("status", string(*patch.Status), "")
	}
	if patch.Priority != nil {
		add("priority", string(*patch.Priority), "")
	}
	if patch.Category != nil {
		add("category", string(*patch.Category), "")
	}
	if patch.ClearDueDate {
		sets = append(sets, "due_date = NULL")
	} else if patch.DueDate != nil {
		add("due_date", *patch.DueDate, "")
	}
	if patch.Assignee != nil {
		args = append(args, *patch.Assignee)
		sets = append(sets, fmt.Sprintf("assignee = NULLIF($%d, '')", len(args)))
	}
	if patch.Links != nil {
		add("links", nonNilLinks(*patch.Links), "")
	}
	if expr, changed, err := attachmentsExpr(patch, &args); err != nil {
		return TaskRecord{}, err
	} else if changed {
		sets = append(sets, "attachments = "+expr)
	}
	query := `UPDATE tasks SET ` + strings.Join(sets, ", ") +
		` WHERE id = $3 AND ` + visibleTo + ` RETURNING ` + taskColumns
	return scanTask(r.db.QueryRow(ctx, query, args...))
}

// Delete removes the row. Comments and blobs referencing it are kept.
func (r *PGTaskRepo) Delete(ctx context.Context, who dom.Identity, id string) (bool, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM tasks WHERE id = $3 AND `+visibleTo, who.UserID, who.Email, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// attachmentsExpr builds the new attachments value from the patch, editing
// the stored array in SQL so concurrent appends and removals compose.
func attachmentsExpr(patch dom.TaskPatch, args *[]any) (string, bool, error) {
	expr, changed := "attachments", false
	if patch.Attachments != nil {
		b, err := marshalAttachments(*patch.Attachments)
		if err != nil {
			return "", false, err
		}
		*args = append(*args, b)
		expr, changed = fmt.Sprintf("$%d::text::jsonb", len(*args)), true
	}
	if patch.RemoveAttachmentID != "" {
		*args = append(*args, patch.RemoveAttachmentID)
		expr = fmt.Sprintf(`COALESCE((SELECT jsonb_agg(e ORDER BY i) FROM jsonb_array_elements(%s) WITH ORDINALITY AS a(e, i) WHERE e->>'id' IS DISTINCT FROM $%d), '[]'::jsonb)`,
			expr, len(*args))
		changed = true
	}
	if len(patch.AppendAttachments) > 0 {
		b, err := marshalAttachments(patch.AppendAttachments)
		if err != nil {
			return "", false, err
		}
		*args = append(*args, b)
		expr = fmt.Sprintf("COALESCE(%s, '[]'::jsonb) || $%d::text::jsonb", expr, len(*args))
		changed = true
	}
	return expr, changed, nil
}

func marshalAttachments(list []dom.MediaAttachment) (string, error) {
	if list == nil {
		list = []dom.MediaAttachment{}
	}
	b, err := json.Marshal(list)
	if err != nil {
		return "", fmt.Errorf("marshal attachments: %w", err)
	}
	return string(b), nil
}

func nonNilLinks(l []string) []string {
	if l == nil {
		return []string{}
	}
	return l
}
