package repo

import (
	"context"

	dom "github.com/dordunu1/taskboard/internal/domain"

	"github.com/jackc/pgx/v5/pgxpool"
)

// UserRepo provides user persistence.
type UserRepo interface {
	GetByEmail(ctx context.Context, email string) (dom.User, error)
	GetByID(ctx context.Context, id string) (dom.User, error)
	Create(ctx context.Context, u dom.User) (dom.User, error)
	// UpsertFederated creates the user on first federated sign-in and
	// refreshes the profile fields afterwards.
	UpsertFederated(ctx context.Context, u dom.User) (dom.User, error)
	SetPasswordHash(ctx context.Context, id, hash string) error
}

// PGUserRepo implements UserRepo with Postgres.
type PGUserRepo struct {
	db *pgxpool.Pool
}

// NewPGUserRepo returns a new PGUserRepo.
func NewPGUserRepo(db *pgxpool.Pool) *PGUserRepo {
	return &PGUserRepo{db: db}
}

const userColumns = `id, email, COALESCE(password_hash, ''), display_name, photo_url, provider, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(row scanner) (dom.User, error) {
	var u dom.User
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.DisplayName, &u.PhotoURL,
		&u.Provider, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

// GetByEmail returns the user by email (case-insensitive).
func (r *PGUserRepo) GetByEmail(ctx context.Context, email string) (dom.User, error) {
	return scanUser(r.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, email))
}

func (r *PGUserRepo) GetByID(ctx context.Context, id string) (dom.User, error) {
	return scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

// Create inserts a new user and returns it.
func (r *PGUserRepo) Create(ctx context.Context, u dom.User) (dom.User, error) {
	query := `
		INSERT INTO users (id, email, password_hash, display_name, photo_url, provider)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6)
		RETURNING ` + userColumns
	return scanUser(r.db.QueryRow(ctx, query,
		u.ID, u.Email, u.PasswordHash, u.DisplayName, u.PhotoURL, u.Provider))
}

func (r *PGUserRepo) UpsertFederated(ctx context.Context, u dom.User) (dom.User, error) {
	query := `
		INSERT INTO users (id, email, display_name, photo_url, provider)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (email) DO UPDATE
		SET display_name = EXCLUDED.display_name, photo_url = EXCLUDED.photo_url, updated_at = NOW()
		RETURNING ` + userColumns
	return scanUser(r.db.QueryRow(ctx, query, u.ID, u.Email, u.DisplayName, u.PhotoURL, u.Provider))
}

func (r *PGUserRepo) SetPasswordHash(ctx context.Context, id, hash string) error {
	_, err := r.db.Exec(ctx, `UPDATE users SET password_hash = $2, updated_at = NOW() WHERE id = $1`, id, hash)
	return err
}
