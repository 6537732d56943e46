package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const resetKeyPrefix = "reset:"

var (
	ErrTokenInvalid = errors.New("token invalid")
	ErrTokenUsed    = errors.New("token already used")
)

// ResetTokens are signed JWTs whose id is remembered in Redis until the
// token is redeemed, so each token works once.
type ResetTokens struct {
	rdb    *redis.Client
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewResetTokens returns ResetTokens signing with secret. An empty secret
// gets a random one, so tokens stop working when the process restarts.
func NewResetTokens(rdb *redis.Client, secret string, ttl time.Duration) (*ResetTokens, error) {
	key := []byte(secret)
	if len(key) == 0 {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("rand: %w", err)
		}
		log.Printf("RESET_TOKEN_SECRET not set, using a per-process key")
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &ResetTokens{rdb: rdb, secret: key, ttl: ttl, now: time.Now}, nil
}

// Issue creates a token for userID.
func (t *ResetTokens) Issue(ctx context.Context, userID string) (string, error) {
	now := t.now()
	claims := jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", err
	}
	if err := t.rdb.Set(ctx, resetKeyPrefix+claims.ID, userID, t.ttl).Err(); err != nil {
		return "", err
	}
	return signed, nil
}

// Consume validates the token and burns it. It returns the user id.
func (t *ResetTokens) Consume(ctx context.Context, token string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return t.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(t.now), jwt.WithExpirationRequired())
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if !parsed.Valid || claims.ID == "" || claims.Subject == "" {
		return "", ErrTokenInvalid
	}
	owner, err := t.rdb.GetDel(ctx, resetKeyPrefix+claims.ID).Result()
	if err == redis.Nil {
		return "", ErrTokenUsed
	}
	if err != nil {
		return "", err
	}
	if owner != claims.Subject {
		return "", ErrTokenInvalid
	}
	return claims.Subject, nil
}
