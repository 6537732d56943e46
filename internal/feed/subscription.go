package feed

import (
	"sync"

	"github.com/dordunu1/taskboard/internal/domain"
	"github.com/dordunu1/taskboard/internal/repo"
)

// Subscription delivers the full visible task list of one identity every
// time it changes. Only the newest undelivered snapshot is kept.
type Subscription struct {
	who  domain.Identity
	hub  *Hub
	mu   sync.Mutex
	ch   chan []repo.TaskRecord
	ver  uint64
	done bool
}

func newSubscription(h *Hub, who domain.Identity) *Subscription {
	return &Subscription{who: who, hub: h, ch: make(chan []repo.TaskRecord, 1)}
}

// Updates is closed after Unsubscribe.
func (s *Subscription) Updates() <-chan []repo.TaskRecord { return s.ch }

// Unsubscribe detaches from the hub. Safe to call more than once.
func (s *Subscription) Unsubscribe() {
	s.hub.remove(s)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return
	}
	s.done = true
	close(s.ch)
}

// deliver queues list unless a snapshot from a later read was already queued.
func (s *Subscription) deliver(list []repo.TaskRecord, ver uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done || ver < s.ver {
		return
	}
	s.ver = ver
	select {
	case <-s.ch: // drop the stale snapshot
	default:
	}
	s.ch <- list
}
