package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Channel is the NOTIFY channel written by the tasks trigger.
const Channel = "task_changes"

const reconnectDelay = time.Second

// Change is the payload of one task_changes notification.
type Change struct {
	Op    string    `json:"op"`
	ID    string    `json:"id"`
	Users []*string `json:"users"`
}

// Identities returns the distinct non-empty owner/assignee values.
func (c Change) Identities() []string {
	seen := make(map[string]struct{}, len(c.Users))
	out := make([]string, 0, len(c.Users))
	for _, u := range c.Users {
		if u == nil || *u == "" {
			continue
		}
		if _, ok := seen[*u]; ok {
			continue
		}
		seen[*u] = struct{}{}
		out = append(out, *u)
	}
	return out
}

// ParseChange decodes a notification payload.
func ParseChange(payload string) (Change, error) {
	var c Change
	if err := json.Unmarshal([]byte(payload), &c); err != nil {
		return Change{}, fmt.Errorf("decode change: %w", err)
	}
	return c, nil
}

// PGListener forwards task_changes notifications to a Hub.
type PGListener struct {
	db  *pgxpool.Pool
	hub *Hub
}

func NewPGListener(db *pgxpool.Pool, hub *Hub) *PGListener {
	return &PGListener{db: db, hub: hub}
}

// Run blocks until ctx is done. Lost connections are re-established and
// followed by a full refresh, since notifications sent meanwhile are gone.
func (l *PGListener) Run(ctx context.Context) error {
	first := true
	for {
		err := l.listen(ctx, !first)
		if ctx.Err() != nil {
			return nil
		}
		first = false
		log.Printf("feed: listener: %v; reconnecting in %s", err, reconnectDelay)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(reconnectDelay):
		}
	}
}

func (l *PGListener) listen(ctx context.Context, resync bool) error {
	pooled, err := l.db.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire: %w", err)
	}
	// The session holds LISTEN state; never hand it back to the pool.
	conn := pooled.Hijack()
	defer conn.Close(context.Background())

	if _, err := conn.Exec(ctx, "LISTEN "+Channel); err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	if resync {
		l.hub.RefreshAll(ctx)
	}
	for {
		n, err := conn.WaitForNotification(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			return fmt.Errorf("wait: %w", err)
		}
		c, err := ParseChange(n.Payload)
		if err != nil {
			log.Printf("feed: %v", err)
			continue
		}
		l.hub.Notify(ctx, c.Identities()...)
	}
}
