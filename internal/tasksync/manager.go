package tasksync

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"
)

// ErrReleased is returned by Acquire when the session was released while
// its synchronizer was starting.
var ErrReleased = errors.New("session released")

// Manager holds at most one Synchronizer per session.
type Manager struct {
	feed Feed

	mu   sync.Mutex
	byID map[string]*Synchronizer
}

func NewManager(f Feed) *Manager {
	return &Manager{feed: f, byID: make(map[string]*Synchronizer)}
}

// Acquire returns the session's synchronizer, starting it on first use.
func (m *Manager) Acquire(ctx context.Context, sess Session) (*Synchronizer, error) {
	m.mu.Lock()
	s, ok := m.byID[sess.ID]
	if !ok {
		s = New(m.feed)
		m.byID[sess.ID] = s
	}
	m.mu.Unlock()

	if err := s.Start(ctx, sess); err != nil {
		m.mu.Lock()
		if m.byID[sess.ID] == s && !s.Active() {
			delete(m.byID, sess.ID)
		}
		m.mu.Unlock()
		return nil, err
	}
	// A Release between the two locks already dropped s; do not leave it running.
	m.mu.Lock()
	current := m.byID[sess.ID] == s
	m.mu.Unlock()
	if !current {
		s.Stop()
		return nil, ErrReleased
	}
	return s, nil
}

func (m *Manager) lookup(sessionID string) (*Synchronizer, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.byID[sessionID]
	return s, ok
}

// Release stops and forgets the session's synchronizer. Called on sign-out.
func (m *Manager) Release(sessionID string) {
	m.mu.Lock()
	s, ok := m.byID[sessionID]
	delete(m.byID, sessionID)
	m.mu.Unlock()
	if ok {
		s.Stop()
	}
}

// Len is the number of managed sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byID)
}

// Reap releases every session for which alive reports false. Sessions whose
// check fails are kept.
func (m *Manager) Reap(ctx context.Context, alive func(ctx context.Context, sessionID string) (bool, error)) int {
	m.mu.Lock()
	ids := make([]string, 0, len(m.byID))
	for id := range m.byID {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	released := 0
	for _, id := range ids {
		ok, err := alive(ctx, id)
		if err != nil {
			log.Printf("tasksync: session check: %v", err)
			continue
		}
		if !ok {
			m.Release(id)
			released++
		}
	}
	return released
}

// RunReaper calls Reap every interval until ctx is done.
func (m *Manager) RunReaper(ctx context.Context, interval time.Duration, alive func(ctx context.Context, sessionID string) (bool, error)) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := m.Reap(ctx, alive); n > 0 {
				log.Printf("tasksync: released %d expired sessions", n)
			}
		}
	}
}

// Close stops every synchronizer.
func (m *Manager) Close() {
	m.mu.Lock()
	all := m.byID
	m.byID = make(map[string]*Synchronizer)
	m.mu.Unlock()
	for _, s := range all {
		s.Stop()
	}
}
