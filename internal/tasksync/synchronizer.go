// Package tasksync keeps a session's task list in step with the store.
//
// A Synchronizer owns one feed subscription for a signed-in session. Every
// snapshot the feed pushes replaces the cached list wholesale and is handed
// to the registered observers. There is no local optimistic state: writes
// become visible only when the feed reflects them back.
package tasksync

import (
	"context"
	"log"
	"sync"

	"github.com/dordunu1/taskboard/internal/domain"
	"github.com/dordunu1/taskboard/internal/feed"
)

// Session is the signed-in user a Synchronizer acts for.
type Session struct {
	ID       string
	Identity domain.Identity
}

// Feed opens live subscriptions; *feed.Hub implements it.
type Feed interface {
	Subscribe(ctx context.Context, who domain.Identity) (*feed.Subscription, error)
}

// Observer receives the full list after every change, and nil on Stop. The
// slice is shared between observers and must not be modified. Observers run
// on the delivery goroutine and must not call Stop.
type Observer func(tasks []domain.Task)

type observerEntry struct {
	id int
	fn Observer
}

type Synchronizer struct {
	feed Feed

	// life serializes Start and Stop.
	life sync.Mutex

	mu        sync.Mutex
	session   Session
	sub       *feed.Subscription
	done      chan struct{}
	loaded    chan struct{}
	tasks     []domain.Task
	observers []observerEntry
	nextID    int
}

func New(f Feed) *Synchronizer {
	loaded := make(chan struct{})
	close(loaded)
	return &Synchronizer{feed: f, loaded: loaded}
}

// Start subscribes for sess. Starting the session that is already active is
// a no-op; starting a different one replaces the current subscription.
func (s *Synchronizer) Start(ctx context.Context, sess Session) error {
	s.life.Lock()
	defer s.life.Unlock()

	s.mu.Lock()
	same := s.sub != nil && s.session.ID == sess.ID
	s.mu.Unlock()
	if same {
		return nil
	}
	s.stop()

	sub, err := s.feed.Subscribe(ctx, sess.Identity)
	if err != nil {
		return err
	}
	done := make(chan struct{})
	loaded := make(chan struct{})
	s.mu.Lock()
	s.session = sess
	s.sub = sub
	s.done = done
	s.loaded = loaded
	s.mu.Unlock()

	go s.run(sub, done, loaded)
	return nil
}

// Stop releases the subscription, empties the list and tells observers.
func (s *Synchronizer) Stop() {
	s.life.Lock()
	defer s.life.Unlock()
	s.stop()
}

func (s *Synchronizer) stop() {
	s.mu.Lock()
	sub, done := s.sub, s.done
	if sub == nil {
		s.mu.Unlock()
		return
	}
	s.sub = nil
	s.done = nil
	s.session = Session{}
	s.mu.Unlock()

	sub.Unsubscribe()
	<-done

	s.mu.Lock()
	s.tasks = nil
	loaded := make(chan struct{})
	close(loaded)
	s.loaded = loaded
	obs := s.snapshotObservers()
	s.mu.Unlock()
	for _, o := range obs {
		o.fn(nil)
	}
}

func (s *Synchronizer) run(sub *feed.Subscription, done, loaded chan struct{}) {
	defer close(done)
	first := true
	for recs := range sub.Updates() {
		tasks := make([]domain.Task, 0, len(recs))
		for _, rec := range recs {
			t, notes, err := DecodeTask(rec)
			for _, n := range notes {
				log.Printf("tasksync: task %s: %s", rec.ID, n)
			}
			if err != nil {
				log.Printf("tasksync: dropping task %q: %v", rec.ID, err)
				continue
			}
			tasks = append(tasks, t)
		}

		s.mu.Lock()
		if s.sub != sub {
			s.mu.Unlock()
			continue
		}
		s.tasks = tasks
		obs := s.snapshotObservers()
		s.mu.Unlock()

		for _, o := range obs {
			o.fn(tasks)
		}
		if first {
			close(loaded)
			first = false
		}
	}
}

// Observe registers fn and returns a func that removes it.
func (s *Synchronizer) Observe(fn Observer) (cancel func()) {
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.observers = append(s.observers, observerEntry{id: id, fn: fn})
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			for i, o := range s.observers {
				if o.id == id {
					s.observers = append(s.observers[:i:i], s.observers[i+1:]...)
					return
				}
			}
		})
	}
}

// Tasks returns a copy of the cached list; empty while no session is active.
func (s *Synchronizer) Tasks() []domain.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Task, len(s.tasks))
	copy(out, s.tasks)
	return out
}

// Active reports whether a subscription is open.
func (s *Synchronizer) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sub != nil
}

// Session returns the active session, zero when stopped.
func (s *Synchronizer) Session() Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session
}

// Loaded is closed once the first snapshot of the current subscription has
// been applied. It is already closed while stopped.
func (s *Synchronizer) Loaded() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loaded
}

// WaitLoaded blocks until Loaded or ctx is done.
func (s *Synchronizer) WaitLoaded(ctx context.Context) error {
	select {
	case <-s.Loaded():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Synchronizer) snapshotObservers() []observerEntry {
	out := make([]observerEntry, len(s.observers))
	copy(out, s.observers)
	return out
}
