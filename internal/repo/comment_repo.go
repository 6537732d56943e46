package repo

import (
	"context"

	dom "github.com/dordunu1/taskboard/internal/domain"

	"github.com/jackc/pgx/v5/pgxpool"
)

// CommentRepo stores comments. There is no update or delete.
type CommentRepo interface {
	Create(ctx context.Context, c dom.Comment) (dom.Comment, error)
	ListByTask(ctx context.Context, taskID string) ([]dom.Comment, error)
}

type PGCommentRepo struct {
	db *pgxpool.Pool
}

func NewPGCommentRepo(db *pgxpool.Pool) *PGCommentRepo {
	return &PGCommentRepo{db: db}
}

func (r *PGCommentRepo) Create(ctx context.Context, c dom.Comment) (dom.Comment, error) {
	query := `
		INSERT INTO comments (id, task_id, text, user_name, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, task_id, text, user_name, created_at`
	var out dom.Comment
	err := r.db.QueryRow(ctx, query, c.ID, c.TaskID, c.Text, c.UserName, c.CreatedAt).Scan(
		&out.ID, &out.TaskID, &out.Text, &out.UserName, &out.CreatedAt,
	)
	return out, err
}

// ListByTask returns the comments of a task, newest first. The task itself
// may no longer exist.
func (r *PGCommentRepo) ListByTask(ctx context.Context, taskID string) ([]dom.Comment, error) {
	query := `
		SELECT id, task_id, text, user_name, created_at
		FROM comments WHERE task_id = $1 ORDER BY created_at DESC`
	rows, err := r.db.Query(ctx, query, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []dom.Comment{}
	for rows.Next() {
		var c dom.Comment
		if err := rows.Scan(&c.ID, &c.TaskID, &c.Text, &c.UserName, &c.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, c)
	}
	return list, rows.Err()
}
