package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	dom "github.com/dordunu1/taskboard/internal/domain"

	"github.com/redis/go-redis/v9"
)

const (
	sessionKeyPrefix = "session:"
	sessionTTL       = 24 * time.Hour
)

// Store manages sessions in Redis. The value is the identity as JSON.
type Store struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewStore returns a new session store.
func NewStore(rdb *redis.Client, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = sessionTTL
	}
	return &Store{rdb: rdb, ttl: ttl}
}

// TTL is how long a session lives.
func (s *Store) TTL() time.Duration { return s.ttl }

// Create stores a new session for who and returns its ID.
func (s *Store) Create(ctx context.Context, who dom.Identity) (string, error) {
	id, err := newSessionID()
	if err != nil {
		return "", err
	}
	b, err := json.Marshal(who)
	if err != nil {
		return "", err
	}
	if err := s.rdb.Set(ctx, sessionKeyPrefix+id, b, s.ttl).Err(); err != nil {
		return "", err
	}
	return id, nil
}

// Get returns the identity of a live session. ok is false when the session
// does not exist or has expired.
func (s *Store) Get(ctx context.Context, id string) (who dom.Identity, ok bool, err error) {
	b, err := s.rdb.Get(ctx, sessionKeyPrefix+id).Bytes()
	if err == redis.Nil {
		return dom.Identity{}, false, nil
	}
	if err != nil {
		return dom.Identity{}, false, err
	}
	if err := json.Unmarshal(b, &who); err != nil {
		return dom.Identity{}, false, fmt.Errorf("session %s: %w", id, err)
	}
	return who, who.UserID != "", nil
}

// Delete removes a session by ID.
func (s *Store) Delete(ctx context.Context, id string) error {
	return s.rdb.Del(ctx, sessionKeyPrefix+id).Err()
}

// Exists returns true if the session exists.
func (s *Store) Exists(ctx context.Context, id string) (bool, error) {
	n, err := s.rdb.Exists(ctx, sessionKeyPrefix+id).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func newSessionID() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("rand: %w", err)
	}
	return hex.EncodeToString(b), nil
}
