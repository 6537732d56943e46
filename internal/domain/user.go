package domain

import "time"

const (
	ProviderPassword = "password"
	ProviderGoogle   = "google"
)

// User is the domain entity for a user account.
type User struct {
	ID           string
	Email        string
	DisplayName  string
	PhotoURL     string
	Provider     string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Identity is who a session acts as. Assignees may be recorded by id or email.
type Identity struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}

func (u User) Identity() Identity {
	return Identity{UserID: u.ID, Email: u.Email}
}
