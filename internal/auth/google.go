package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	goauth2 "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"
)

const (
	oauthStatePrefix = "oauth_state:"
	oauthStateTTL    = 10 * time.Minute
)

var (
	ErrStateInvalid     = errors.New("oauth state invalid or expired")
	ErrEmailNotVerified = errors.New("google account email is not verified")
)

// GoogleProfile is what the sign-in flow learns about the user.
type GoogleProfile struct {
	Email   string
	Name    string
	Picture string
}

// Google runs the authorization code flow against Google. Pending states
// are kept in Redis so any instance can finish the flow.
type Google struct {
	cfg *oauth2.Config
	rdb *redis.Client
	// apiOpts are extra options for the userinfo client.
	apiOpts []option.ClientOption
}

// NewGoogle returns a Google sign-in flow.
func NewGoogle(rdb *redis.Client, clientID, clientSecret, redirectURL string) *Google {
	return &Google{
		rdb: rdb,
		cfg: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Endpoint:     google.Endpoint,
			Scopes:       []string{goauth2.OpenIDScope, goauth2.UserinfoEmailScope, goauth2.UserinfoProfileScope},
		},
	}
}

// AuthURL starts a flow and returns the consent page URL.
func (g *Google) AuthURL(ctx context.Context) (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("rand: %w", err)
	}
	state := hex.EncodeToString(b)
	if err := g.rdb.Set(ctx, oauthStatePrefix+state, "1", oauthStateTTL).Err(); err != nil {
		return "", err
	}
	return g.cfg.AuthCodeURL(state, oauth2.AccessTypeOnline), nil
}

// Exchange finishes the flow: checks state, trades code for a token and
// reads the user's profile.
func (g *Google) Exchange(ctx context.Context, state, code string) (GoogleProfile, error) {
	if state == "" || code == "" {
		return GoogleProfile{}, ErrStateInvalid
	}
	n, err := g.rdb.Del(ctx, oauthStatePrefix+state).Result()
	if err != nil {
		return GoogleProfile{}, err
	}
	if n == 0 {
		return GoogleProfile{}, ErrStateInvalid
	}

	tok, err := g.cfg.Exchange(ctx, code)
	if err != nil {
		return GoogleProfile{}, fmt.Errorf("exchange code: %w", err)
	}
	opts := append([]option.ClientOption{option.WithTokenSource(g.cfg.TokenSource(ctx, tok))}, g.apiOpts...)
	svc, err := goauth2.NewService(ctx, opts...)
	if err != nil {
		return GoogleProfile{}, fmt.Errorf("userinfo client: %w", err)
	}
	info, err := svc.Userinfo.Get().Context(ctx).Do()
	if err != nil {
		return GoogleProfile{}, fmt.Errorf("userinfo: %w", err)
	}
	if info.VerifiedEmail != nil && !*info.VerifiedEmail {
		return GoogleProfile{}, ErrEmailNotVerified
	}
	return GoogleProfile{Email: info.Email, Name: info.Name, Picture: info.Picture}, nil
}
