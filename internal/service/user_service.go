package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"strings"

	dom "github.com/dordunu1/taskboard/internal/domain"
	"github.com/dordunu1/taskboard/internal/repo"
	"github.com/dordunu1/taskboard/internal/utils"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailTaken         = errors.New("email already registered")
	ErrWeakPassword       = errors.New("password must be at least 8 characters")
	ErrInvalidEmail       = errors.New("invalid email")
	ErrInvalidResetToken  = errors.New("reset token is invalid or expired")
	ErrResetUnavailable   = errors.New("password reset is not configured")
)

const minPasswordLen = 8

// ResetTokens issues and redeems single-use password reset tokens.
type ResetTokens interface {
	Issue(ctx context.Context, userID string) (string, error)
	// Consume returns the user id the token was issued for. A token can be
	// consumed once.
	Consume(ctx context.Context, token string) (string, error)
}

// Mailer sends plain text mail.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// PasswordReset wires the reset flow. URL is the page that receives ?token=.
type PasswordReset struct {
	Tokens ResetTokens
	Mailer Mailer
	URL    string
}

// UserService handles user auth logic.
type UserService struct {
	repo  repo.UserRepo
	reset *PasswordReset
}

// NewUserService returns a new UserService. reset may be nil, which disables
// the password reset flow.
func NewUserService(r repo.UserRepo, reset *PasswordReset) *UserService {
	return &UserService{repo: r, reset: reset}
}

// ValidateCredentials checks email and password; returns user if valid.
func (s *UserService) ValidateCredentials(ctx context.Context, email, password string) (dom.User, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return dom.User{}, ErrInvalidCredentials
	}
	u, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return dom.User{}, ErrInvalidCredentials
		}
		return dom.User{}, err
	}
	// Federated accounts without a password cannot sign in this way.
	if u.PasswordHash == "" {
		return dom.User{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return dom.User{}, ErrInvalidCredentials
	}
	return u, nil
}

// Register creates a new user with hashed password.
func (s *UserService) Register(ctx context.Context, email, password, displayName string) (dom.User, error) {
	email = normalizeEmail(email)
	if !validEmail(email) {
		return dom.User{}, ErrInvalidEmail
	}
	if len(password) < minPasswordLen {
		return dom.User{}, ErrWeakPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return dom.User{}, err
	}
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		displayName = email[:strings.IndexByte(email, '@')]
	}
	u, err := s.repo.Create(ctx, dom.User{
		ID:           uuid.NewString(),
		Email:        email,
		DisplayName:  displayName,
		Provider:     dom.ProviderPassword,
		PasswordHash: string(hash),
	})
	if err != nil {
		if utils.IsPGUniqueViolation(err) {
			return dom.User{}, ErrEmailTaken
		}
		return dom.User{}, err
	}
	return u, nil
}

// SignInFederated creates or refreshes the account of a user who signed in
// with an external provider.
func (s *UserService) SignInFederated(ctx context.Context, provider, email, displayName, photoURL string) (dom.User, error) {
	email = normalizeEmail(email)
	if !validEmail(email) {
		return dom.User{}, ErrInvalidEmail
	}
	return s.repo.UpsertFederated(ctx, dom.User{
		ID:          uuid.NewString(),
		Email:       email,
		DisplayName: strings.TrimSpace(displayName),
		PhotoURL:    photoURL,
		Provider:    provider,
	})
}

// GetByID returns the user or ErrNotFound.
func (s *UserService) GetByID(ctx context.Context, id string) (dom.User, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return dom.User{}, ErrNotFound
		}
		return dom.User{}, err
	}
	return u, nil
}

// RequestPasswordReset mails a reset link when the address belongs to a user.
// Unknown addresses return nil so callers cannot tell which accounts exist.
func (s *UserService) RequestPasswordReset(ctx context.Context, email string) error {
	if s.reset == nil {
		return ErrResetUnavailable
	}
	u, err := s.repo.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		return err
	}
	token, err := s.reset.Tokens.Issue(ctx, u.ID)
	if err != nil {
		return fmt.Errorf("issue reset token: %w", err)
	}
	link := s.reset.URL + "?token=" + url.QueryEscape(token)
	body := "Hello " + u.DisplayName + ",\n\nOpen the link below to choose a new password:\n\n" +
		link + "\n\nIf you did not ask for this, ignore this mail.\n"
	if err := s.reset.Mailer.Send(ctx, u.Email, "Reset your password", body); err != nil {
		return fmt.Errorf("send reset mail: %w", err)
	}
	log.Printf("password reset mailed to user %s", u.ID)
	return nil
}

// ResetPassword redeems token and stores the new password.
func (s *UserService) ResetPassword(ctx context.Context, token, password string) error {
	if s.reset == nil {
		return ErrResetUnavailable
	}
	if len(password) < minPasswordLen {
		return ErrWeakPassword
	}
	userID, err := s.reset.Tokens.Consume(ctx, token)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidResetToken, err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	return s.repo.SetPasswordHash(ctx, userID, string(hash))
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func validEmail(s string) bool {
	at := strings.IndexByte(s, '@')
	return at > 0 && at < len(s)-1 && !strings.ContainsAny(s, " \t\r\n")
}
